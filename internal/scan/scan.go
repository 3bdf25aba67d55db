package scan

import (
	"context"
	"crypto/sha256"
	"log"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"

	"scenetunes/external/clamd"
	"scenetunes/internal/core"
)

// ClamdScanner fronts a clamd daemon with a bloom filter of content
// hashes the daemon already flagged. A filter hit skips the daemon round
// trip; a filter miss always goes to the daemon, so a false positive in
// the filter can only cost a rejection, never let an infected upload
// through unscanned.
type ClamdScanner struct {
	client clamd.Client

	mu     sync.Mutex
	filter *bloom.BloomFilter
}

func NewClamdScanner(client clamd.Client) *ClamdScanner {
	return &ClamdScanner{
		client: client,
		filter: bloom.NewWithEstimates(1_000_000, 0.01),
	}
}

func (s *ClamdScanner) Scan(ctx context.Context, blob []byte) (core.ScanVerdict, error) {
	hash := sha256.Sum256(blob)

	s.mu.Lock()
	seen := s.filter.Test(hash[:])
	s.mu.Unlock()
	if seen {
		return core.ScanInfected, nil
	}

	result, err := s.client.ScanStream(ctx, blob)
	if err != nil {
		return core.ScanUnavailable, err
	}

	if result.Infected {
		log.Printf("clamd flagged upload as %v", result.Signature)
		s.mu.Lock()
		s.filter.Add(hash[:])
		s.mu.Unlock()
		return core.ScanInfected, nil
	}

	return core.ScanClean, nil
}
