package core

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log"
	"regexp"
	"strconv"

	"scenetunes/internal/database"
	audiofs "scenetunes/internal/io"
)

const audioContentType = "audio/mpeg"

// Range headers are matched against this exact shape. "bytes=a-b",
// "bytes=a-" and "bytes=-b" all parse through the two optional groups.
// Anything else is treated as if no Range header was sent at all, which
// is what existing scene-builder clients expect.
var rangeRe = regexp.MustCompile(`^bytes=(\d*)-(\d*)$`)

// StreamDescriptor is everything a handler needs to write one full or
// partial audio response. Body is bounded to exactly ContentLength bytes
// and owns the underlying file handle; the caller must close it. Body is
// nil for 416 responses.
type StreamDescriptor struct {
	Status        int
	ContentType   string
	ContentLength int64
	AcceptRanges  string
	ContentRange  string
	Body          io.ReadCloser
}

// StreamEngine resolves an asset to its physical file and builds the
// response descriptor for an optional byte-range request. It holds no
// per-request state; concurrent streams of the same asset each get their
// own handle.
type StreamEngine struct {
	Db    database.Database
	Files audiofs.AudioIO
}

// Stream builds the descriptor for one request. On ErrRangeNotSatisfiable
// the descriptor is still returned (status 416, Content-Range "bytes
// */total", no body) so the handler can render it.
func (e StreamEngine) Stream(ctx context.Context, assetId string, owner string, rangeHeader string) (desc *StreamDescriptor, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("recovered panic in stream engine: %+v", r)
			desc, err = nil, ErrInternal
		}
	}()

	asset, err := e.Db.GetAsset(assetId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		log.Printf("e.Db.GetAsset(assetId). %+v", err)
		return nil, ErrInternal
	}
	if asset.OwnerId != owner {
		return nil, ErrUnauthorized
	}

	file, total, err := e.Files.OpenBlob(asset.StorageKey)
	if err != nil {
		log.Printf("e.Files.OpenBlob(asset.StorageKey). %+v", err)
		return nil, ErrNotFound
	}

	start, end, partial := parseRange(rangeHeader, total)
	if !partial {
		return &StreamDescriptor{
			Status:        200,
			ContentType:   audioContentType,
			ContentLength: total,
			AcceptRanges:  "bytes",
			Body:          &boundedBody{r: io.LimitReader(file, total), closer: file},
		}, nil
	}

	if start >= total {
		file.Close()
		return &StreamDescriptor{
			Status:       416,
			ContentType:  audioContentType,
			AcceptRanges: "bytes",
			ContentRange: fmt.Sprintf("bytes */%d", total),
		}, ErrRangeNotSatisfiable
	}

	if end > total-1 {
		end = total - 1
	}
	length := end - start + 1

	_, err = file.Seek(start, io.SeekStart)
	if err != nil {
		file.Close()
		log.Printf("file.Seek(start, io.SeekStart). %+v", err)
		return nil, ErrInternal
	}

	return &StreamDescriptor{
		Status:        206,
		ContentType:   audioContentType,
		ContentLength: length,
		AcceptRanges:  "bytes",
		ContentRange:  fmt.Sprintf("bytes %d-%d/%d", start, end, total),
		Body:          &boundedBody{r: io.LimitReader(file, length), closer: file},
	}, nil
}

// parseRange turns a raw Range header into an inclusive [start, end]
// interval. partial=false means serve the whole file: either no header
// was sent or it did not match the documented shape (lenient fallback).
// start defaults to 0 and end to total-1 when a group is empty. The
// returned end is not yet clamped to the file size.
func parseRange(header string, total int64) (start, end int64, partial bool) {
	if header == "" {
		return 0, 0, false
	}

	m := rangeRe.FindStringSubmatch(header)
	if m == nil {
		return 0, 0, false
	}

	start = 0
	end = total - 1

	if m[1] != "" {
		v, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return 0, 0, false
		}
		start = v
	}
	if m[2] != "" {
		v, err := strconv.ParseInt(m[2], 10, 64)
		if err != nil {
			return 0, 0, false
		}
		end = v
	}

	if end < start {
		return 0, 0, false
	}

	return start, end, true
}

// boundedBody is a byte window over an open file handle. Reads never go
// past the window; Close always releases the handle, whether the body was
// fully consumed or abandoned mid-transfer.
type boundedBody struct {
	r      io.Reader
	closer io.Closer
}

func (b *boundedBody) Read(p []byte) (int, error) {
	return b.r.Read(p)
}

func (b *boundedBody) Close() error {
	return b.closer.Close()
}
