package core

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"scenetunes/internal/database"
	"scenetunes/internal/io"
)

// Pipeline owns the full life of an audio asset: validation, quota
// reservation, blob write and metadata persist on create, and the reverse
// on delete. The blob store and the metadata store are independent
// systems, so the no-orphan invariant between them is kept by compensating
// rollback here rather than by a transaction.
type Pipeline struct {
	Validator  Validator
	Db         database.Database
	Files      io.AudioIO
	QuotaBytes int64
}

func MakeStorageKey(owner string, assetId string) string {
	return owner + "/" + assetId + ".mp3"
}

// Create runs the forward steps validate -> reserve -> write blob ->
// persist metadata. A failing step rolls back the completed ones in
// reverse order; a step that never ran is never rolled back.
func (p Pipeline) Create(ctx context.Context, candidate UploadCandidate, owner string) (asset database.AudioAsset, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("recovered panic in ingestion create: %+v", r)
			asset, err = database.AudioAsset{}, ErrInternal
		}
	}()

	quota, err := p.Db.EnsureQuota(owner, p.QuotaBytes)
	if err != nil {
		log.Printf("p.Db.EnsureQuota(owner, p.QuotaBytes). %+v", err)
		return asset, ErrInternal
	}

	err = p.Validator.Validate(ctx, candidate, quota)
	if err != nil {
		return asset, err
	}

	err = p.Db.ReserveQuota(owner, candidate.Size())
	if err != nil {
		if errors.Is(err, database.ErrQuotaExceeded) {
			return asset, fmt.Errorf("%v bytes requested. %w", candidate.Size(), ErrQuotaExceeded)
		}
		log.Printf("p.Db.ReserveQuota(owner, candidate.Size()). %+v", err)
		return asset, ErrInternal
	}

	assetId := uuid.NewString()
	key := MakeStorageKey(owner, assetId)

	err = p.Files.WriteBlob(key, candidate.Data)
	if err != nil {
		log.Printf("p.Files.WriteBlob(key, candidate.Data). %+v", err)
		p.releaseQuota(owner, candidate.Size())
		return asset, ErrUploadFailed
	}

	asset = database.AudioAsset{
		Id:         assetId,
		OwnerId:    owner,
		Name:       candidate.Name,
		SizeBytes:  candidate.Size(),
		StorageKey: key,
		CreatedAt:  uint64(time.Now().Unix()),
	}

	err = p.persistAsset(asset)
	if err != nil {
		log.Printf("p.persistAsset(asset). %+v", err)
		if removeErr := p.Files.RemoveBlob(key); removeErr != nil {
			log.Printf("p.Files.RemoveBlob(key) during rollback. %+v", removeErr)
		}
		p.releaseQuota(owner, candidate.Size())
		return database.AudioAsset{}, ErrMetadataPersist
	}

	return asset, nil
}

// Delete verifies ownership, removes the metadata record, best-effort
// removes the blob, then gives the bytes back to the owner's quota. It
// returns the byte size the delete freed. Metadata is authoritative: a
// missing physical file is not an error here.
func (p Pipeline) Delete(ctx context.Context, assetId string, owner string) (freed int64, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("recovered panic in ingestion delete: %+v", r)
			freed, err = 0, ErrInternal
		}
	}()

	asset, err := p.Db.GetAsset(assetId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		log.Printf("p.Db.GetAsset(assetId). %+v", err)
		return 0, ErrInternal
	}
	if asset.OwnerId != owner {
		return 0, ErrUnauthorized
	}

	err = p.removeAsset(assetId, owner)
	if err != nil {
		log.Printf("p.removeAsset(assetId, owner). %+v", err)
		return 0, ErrMetadataPersist
	}

	if removeErr := p.Files.RemoveBlob(asset.StorageKey); removeErr != nil {
		log.Printf("p.Files.RemoveBlob(asset.StorageKey). %+v", removeErr)
	}

	p.releaseQuota(owner, asset.SizeBytes)

	return asset.SizeBytes, nil
}

func (p Pipeline) persistAsset(asset database.AudioAsset) error {
	tx, err := p.Db.BeginTransaction()
	if err != nil {
		return fmt.Errorf("p.Db.BeginTransaction(). %w", err)
	}

	err = p.Db.AddAsset(tx, asset)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("p.Db.AddAsset(tx, asset). %w", err)
	}

	err = tx.Commit()
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("tx.Commit(). %w", err)
	}

	return nil
}

func (p Pipeline) removeAsset(assetId string, owner string) error {
	tx, err := p.Db.BeginTransaction()
	if err != nil {
		return fmt.Errorf("p.Db.BeginTransaction(). %w", err)
	}

	err = p.Db.DeleteAsset(tx, assetId, owner)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("p.Db.DeleteAsset(tx, assetId, owner). %w", err)
	}

	err = tx.Commit()
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("tx.Commit(). %w", err)
	}

	return nil
}

// releaseQuota is compensation. Its own failure is logged and swallowed
// so it never masks the primary error.
func (p Pipeline) releaseQuota(owner string, n int64) {
	if err := p.Db.ReleaseQuota(owner, n); err != nil {
		log.Printf("p.Db.ReleaseQuota(owner, n) during rollback. %+v", err)
	}
}
