package database

import (
	"context"
	"database/sql"
	"errors"
)

// ErrQuotaExceeded is returned by ReserveQuota when the owner does not
// have n bytes of budget left (or has no quota row at all).
var ErrQuotaExceeded = errors.New("quota exceeded")

// AudioAsset is the metadata record for one stored audio file. A record
// exists if and only if the matching blob exists on disk; the ingestion
// pipeline enforces that with compensating rollback, not a db transaction.
type AudioAsset struct {
	Id         string `db:"id"`
	OwnerId    string `db:"owner_id"`
	Name       string `db:"name"`
	SizeBytes  int64  `db:"size_bytes"`
	StorageKey string `db:"storage_key"`
	CreatedAt  uint64 `db:"created_at"`
}

// StorageQuota tracks the byte budget of one owner. UsedBytes stays in
// [0, MaxBytes] and is only ever moved through ReserveQuota/ReleaseQuota.
type StorageQuota struct {
	OwnerId   string `db:"owner_id"`
	UsedBytes int64  `db:"used_bytes"`
	MaxBytes  int64  `db:"max_bytes"`
}

type Database interface {
	BeginTransaction() (*sql.Tx, error)
	Ping(ctx context.Context) error
	Close() error

	AddAsset(tx *sql.Tx, asset AudioAsset) error
	GetAsset(id string) (AudioAsset, error)
	DeleteAsset(tx *sql.Tx, id string, owner string) error
	AssetBelongsToUser(id string, owner string) (bool, error)

	// EnsureQuota creates the owner's quota row with the given limit if it
	// does not exist yet and returns the current row either way.
	EnsureQuota(owner string, maxBytes int64) (StorageQuota, error)
	GetQuota(owner string) (StorageQuota, error)

	// ReserveQuota adds n to the owner's used bytes. The limit check and
	// the write are a single conditional UPDATE so concurrent reserves can
	// never push used past max.
	ReserveQuota(owner string, n int64) error

	// ReleaseQuota subtracts n from the owner's used bytes, clamped at 0.
	ReleaseQuota(owner string, n int64) error
}
