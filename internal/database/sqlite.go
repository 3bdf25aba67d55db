package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
)

type SqliteDB struct {
	Db *sql.DB
}

func (sq SqliteDB) BeginTransaction() (*sql.Tx, error) {
	tx, err := sq.Db.Begin()
	if err != nil {
		return nil, fmt.Errorf("sq.Db.Begin(). %w", err)
	}

	return tx, nil
}

func (sq SqliteDB) Ping(ctx context.Context) error {
	err := sq.Db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("sq.Db.PingContext(ctx). %w", err)
	}
	return nil
}

func (sq SqliteDB) Close() error {
	return sq.Db.Close()
}

func (sq SqliteDB) AddAsset(tx *sql.Tx, asset AudioAsset) error {
	_, err := tx.Exec("INSERT INTO audio_assets (id, owner_id, name, size_bytes, storage_key, created_at) values (?, ?, ?, ?, ?, ?)",
		asset.Id, asset.OwnerId, asset.Name, asset.SizeBytes, asset.StorageKey, asset.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf(`tx.Exec("INSERT INTO audio_assets. %w`, err)
	}

	return nil
}

func (sq SqliteDB) GetAsset(id string) (AudioAsset, error) {
	asset := AudioAsset{}

	stmt, err := sq.Db.Prepare("SELECT id, owner_id, name, size_bytes, storage_key, created_at FROM audio_assets WHERE id = ?")
	if err != nil {
		return asset, fmt.Errorf("sq.Db.Prepare(). %w", err)
	}
	defer stmt.Close()

	err = stmt.QueryRow(id).Scan(&asset.Id, &asset.OwnerId, &asset.Name, &asset.SizeBytes, &asset.StorageKey, &asset.CreatedAt)
	if err != nil {
		return asset, fmt.Errorf("stmt.QueryRow(id).Scan %w", err)
	}

	return asset, nil
}

func (sq SqliteDB) DeleteAsset(tx *sql.Tx, id string, owner string) error {
	res, err := tx.Exec("DELETE FROM audio_assets WHERE id = ? AND owner_id = ?", id, owner)
	if err != nil {
		return fmt.Errorf(`tx.Exec("DELETE FROM audio_assets. %w`, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("res.RowsAffected(). %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}

	return nil
}

func (sq SqliteDB) AssetBelongsToUser(id string, owner string) (bool, error) {
	stmt, err := sq.Db.Prepare("SELECT owner_id FROM audio_assets WHERE id = ?")
	if err != nil {
		return false, fmt.Errorf("sq.Db.Prepare(). %w", err)
	}
	defer stmt.Close()

	var storedOwner string
	err = stmt.QueryRow(id).Scan(&storedOwner)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("stmt.QueryRow(id).Scan %w", err)
	}

	return storedOwner == owner, nil
}

func (sq SqliteDB) EnsureQuota(owner string, maxBytes int64) (StorageQuota, error) {
	quota := StorageQuota{}

	_, err := sq.Db.Exec("INSERT INTO storage_quotas (owner_id, used_bytes, max_bytes) values (?, 0, ?) ON CONFLICT(owner_id) DO NOTHING", owner, maxBytes)
	if err != nil {
		return quota, fmt.Errorf(`sq.Db.Exec("INSERT INTO storage_quotas. %w`, err)
	}

	return sq.GetQuota(owner)
}

func (sq SqliteDB) GetQuota(owner string) (StorageQuota, error) {
	quota := StorageQuota{}

	stmt, err := sq.Db.Prepare("SELECT owner_id, used_bytes, max_bytes FROM storage_quotas WHERE owner_id = ?")
	if err != nil {
		return quota, fmt.Errorf("sq.Db.Prepare(). %w", err)
	}
	defer stmt.Close()

	err = stmt.QueryRow(owner).Scan(&quota.OwnerId, &quota.UsedBytes, &quota.MaxBytes)
	if err != nil {
		return quota, fmt.Errorf("stmt.QueryRow(owner).Scan %w", err)
	}

	return quota, nil
}

// ReserveQuota does the limit check and the increment in one conditional
// UPDATE. Concurrent reserves for the same owner serialize on the row, so
// used_bytes can never end up past max_bytes.
func (sq SqliteDB) ReserveQuota(owner string, n int64) error {
	if n < 0 {
		return fmt.Errorf("negative reservation of %v bytes", n)
	}

	res, err := sq.Db.Exec("UPDATE storage_quotas SET used_bytes = used_bytes + ? WHERE owner_id = ? AND used_bytes + ? <= max_bytes", n, owner, n)
	if err != nil {
		return fmt.Errorf(`sq.Db.Exec("UPDATE storage_quotas. %w`, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("res.RowsAffected(). %w", err)
	}
	if rows == 0 {
		return ErrQuotaExceeded
	}

	return nil
}

func (sq SqliteDB) ReleaseQuota(owner string, n int64) error {
	if n < 0 {
		return fmt.Errorf("negative release of %v bytes", n)
	}

	_, err := sq.Db.Exec("UPDATE storage_quotas SET used_bytes = MAX(0, used_bytes - ?) WHERE owner_id = ?", n, owner)
	if err != nil {
		return fmt.Errorf(`sq.Db.Exec("UPDATE storage_quotas. %w`, err)
	}

	return nil
}

func DatabaseSetup(ctx context.Context, databaseDir string, migrations fs.FS) (SqliteDB, error) {
	var sqlitedb SqliteDB

	db, err := sql.Open("sqlite3", databaseDir+"/"+"app.db")
	if err != nil {
		return sqlitedb, fmt.Errorf(`sql.Open("sqlite3", string + "app.db" ). %w`, err)

	}

	if err := goose.SetDialect("sqlite3"); err != nil {
		log.Fatalf("Error setting dialect: %v", err)
	}

	goose.SetBaseFS(migrations)

	if err := goose.Up(db, "migrations"); err != nil {
		log.Fatalf("Error running migrations: %v", err)
	}

	sqlitedb.Db = db

	return sqlitedb, nil
}
