package io

import "io"

// AudioIO stores raw audio bytes on durable storage, keyed by a
// user-scoped storage key ("<owner>/<asset-id>.mp3").
type AudioIO interface {
	WriteBlob(key string, blob []byte) error
	// OpenBlob returns a seekable handle on the blob plus its total size.
	// The caller owns the handle and must close it.
	OpenBlob(key string) (io.ReadSeekCloser, int64, error)
	RemoveBlob(key string) error
	BlobPath(key string) string
	GetStoragePath() string
}
