package core

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"scenetunes/internal/database"
)

// MaxUploadBytes is the hard cap on a single audio upload.
const MaxUploadBytes = 5 << 20

var id3Magic = []byte{'I', 'D', '3'}

// UploadCandidate is a not-yet-accepted upload. It only lives for the
// duration of one ingestion call and is never persisted itself.
type UploadCandidate struct {
	Name string
	Data []byte
}

func (c UploadCandidate) Size() int64 {
	return int64(len(c.Data))
}

type ScanVerdict int

const (
	ScanClean ScanVerdict = iota
	ScanInfected
	ScanUnavailable
)

// MalwareScanner submits bytes to a scanning backend. An Unavailable
// verdict is not a clean verdict.
type MalwareScanner interface {
	Scan(ctx context.Context, blob []byte) (ScanVerdict, error)
}

// MediaProber checks that the bytes demux/decode as real audio.
type MediaProber interface {
	CanDecode(ctx context.Context, blob []byte) bool
}

// Validator runs the upload validation chain: cheap checks first,
// expensive collaborator checks last, stopping at the first failure.
type Validator struct {
	Prober   MediaProber
	Scanner  MalwareScanner
	SkipScan bool
}

// Validate runs every stage against the candidate in order. Each stage
// reads the candidate from offset zero again, so stage order cannot leak
// a read position into the next stage.
func (v Validator) Validate(ctx context.Context, candidate UploadCandidate, quota database.StorageQuota) error {
	if err := checkBasics(candidate); err != nil {
		return err
	}

	if quota.UsedBytes+candidate.Size() > quota.MaxBytes {
		return fmt.Errorf("%v bytes used of %v. %w", quota.UsedBytes, quota.MaxBytes, ErrQuotaExceeded)
	}

	if err := checkSignature(bytes.NewReader(candidate.Data)); err != nil {
		return err
	}

	if !v.Prober.CanDecode(ctx, candidate.Data) {
		return fmt.Errorf("file does not decode as mp3. %w", ErrUnsupportedType)
	}

	if !v.SkipScan {
		verdict, err := v.Scanner.Scan(ctx, candidate.Data)
		if err != nil {
			return fmt.Errorf("v.Scanner.Scan(ctx, candidate.Data). %v. %w", err, ErrScanner)
		}
		switch verdict {
		case ScanInfected:
			return ErrMalwareDetected
		case ScanUnavailable:
			return ErrScanner
		}
	}

	return nil
}

func checkBasics(candidate UploadCandidate) error {
	if strings.TrimSpace(candidate.Name) == "" {
		return fmt.Errorf("missing file name. %w", ErrInvalidInput)
	}
	if candidate.Size() == 0 {
		return ErrEmptyFile
	}
	if candidate.Size() > MaxUploadBytes {
		return fmt.Errorf("%v bytes over the %v byte limit. %w", candidate.Size(), MaxUploadBytes, ErrFileTooLarge)
	}
	if !strings.EqualFold(filepath.Ext(candidate.Name), ".mp3") {
		return fmt.Errorf("only .mp3 uploads are accepted. %w", ErrUnsupportedType)
	}
	return nil
}

func checkSignature(r io.Reader) error {
	magic := make([]byte, len(id3Magic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return fmt.Errorf("io.ReadFull(r, magic). %v. %w", err, ErrUnsupportedType)
	}
	if !bytes.Equal(magic, id3Magic) {
		return fmt.Errorf("missing ID3 signature. %w", ErrUnsupportedType)
	}
	return nil
}
