package backup

import (
	"context"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/pkg/errors"
	"github.com/segmentio/ksuid"

	"github.com/ud-systems/UD-Leads-sub001/core"
	"github.com/ud-systems/UD-Leads-sub001/core/setting"
)

var (
	ErrNotFound         = core.NewNotFoundError("backup")
	ErrQuotaExceeded    = errors.New("backup exceeds storage quota")
	ErrChecksumMismatch = errors.New("backup is corrupted: checksum mismatch")
	ErrVersion          = errors.New("unsupported backup version")
	ErrTenantMismatch   = errors.New("backup belongs to another tenant")

	errQuotaFull = errors.New("backup quota is full")
)

const idPrefix = "bkp_"

type (
	Repository interface {
		CreateBackup(ctx context.Context, b Backup, payload []byte) (Backup, error)
		// QueryBackups returns the backups of the tenant, newest first.
		QueryBackups(ctx context.Context, tenantID string) ([]Backup, error)
		GetBackup(ctx context.Context, tenantID, id string) (Backup, error)
		GetPayload(ctx context.Context, tenantID, id string) ([]byte, error)
		DeleteBackup(ctx context.Context, tenantID, id string) error

		// ExportTenantData reads the data saved by a backup.
		ExportTenantData(ctx context.Context, tenantID string) (Snapshot, error)
		// ReplaceTenantData atomically swaps the tenant's territories, leads, visits, rules and settings for s.
		ReplaceTenantData(ctx context.Context, s Snapshot) error
	}

	Settings interface {
		Int(ctx context.Context, tenantID, key string) (int64, error)
	}

	Service struct {
		repo     Repository
		settings Settings
		cache    core.Cache
	}
)

func NewService(repo Repository, settings Settings, cache core.Cache) *Service {
	return &Service{repo: repo, settings: settings, cache: cache}
}

func newID() string {
	return idPrefix + ksuid.New().String()
}

func (svc *Service) quota(ctx context.Context, tenantID string) (maxCount int, maxBytes int64, err error) {
	n, err := svc.settings.Int(ctx, tenantID, setting.BackupMaxCount)
	if err != nil {
		return 0, 0, errors.Wrap(err, "getting backup max count")
	}
	b, err := svc.settings.Int(ctx, tenantID, setting.BackupMaxBytes)
	if err != nil {
		return 0, 0, errors.Wrap(err, "getting backup max bytes")
	}
	return int(n), b, nil
}

// Create saves a backup of the tenant data.
// When the full snapshot does not fit the quota, the visits are left out. Older backups are
// pruned, oldest first, until the new one fits.
func (svc *Service) Create(ctx context.Context, tenantID, actorID, kind string) (Backup, error) {
	maxCount, maxBytes, err := svc.quota(ctx, tenantID)
	if err != nil {
		return Backup{}, err
	}

	snap, err := svc.repo.ExportTenantData(ctx, tenantID)
	if err != nil {
		return Backup{}, errors.Wrap(err, "exporting tenant data")
	}
	now := time.Now().UTC()
	snap.Version = SnapshotVersion
	snap.TenantID = tenantID
	snap.CreatedAt = now

	payload, rawSize, err := Encode(snap)
	if err != nil {
		return Backup{}, err
	}
	if int64(len(payload)) > maxBytes {
		snap = snap.WithoutVisits()
		if payload, rawSize, err = Encode(snap); err != nil {
			return Backup{}, err
		}
		if int64(len(payload)) > maxBytes {
			return Backup{}, core.NewValidationError(ErrQuotaExceeded)
		}
	}

	b := Backup{
		ID:        newID(),
		TenantID:  tenantID,
		Kind:      kind,
		Partial:   snap.Partial,
		Size:      int64(len(payload)),
		RawSize:   rawSize,
		Checksum:  Checksum(payload),
		Counts:    snap.Counts(),
		CreatedBy: actorID,
		CreatedAt: now,
	}
	return svc.store(ctx, b, payload, maxCount, maxBytes)
}

// store writes b once the tenant backups leave room for it, pruning the oldest one per attempt.
func (svc *Service) store(ctx context.Context, b Backup, payload []byte, maxCount int, maxBytes int64) (Backup, error) {
	existing, err := svc.repo.QueryBackups(ctx, b.TenantID)
	if err != nil {
		return Backup{}, errors.Wrap(err, "querying backups")
	}

	var stored Backup
	err = retry.Do(
		func() error {
			backups, err := svc.repo.QueryBackups(ctx, b.TenantID)
			if err != nil {
				return retry.Unrecoverable(errors.Wrap(err, "querying backups"))
			}
			var total int64
			for _, bk := range backups {
				total += bk.Size
			}
			if len(backups) < maxCount && total+b.Size <= maxBytes {
				stored, err = svc.repo.CreateBackup(ctx, b, payload)
				if err != nil {
					return retry.Unrecoverable(errors.Wrap(err, "creating backup"))
				}
				return nil
			}
			if len(backups) == 0 {
				return retry.Unrecoverable(core.NewValidationError(ErrQuotaExceeded))
			}
			oldest := backups[len(backups)-1]
			if err := svc.repo.DeleteBackup(ctx, b.TenantID, oldest.ID); err != nil {
				return retry.Unrecoverable(errors.Wrap(err, "pruning backup"))
			}
			return errQuotaFull
		},
		retry.Attempts(uint(len(existing)+1)),
		retry.Delay(0),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
	)
	if err == errQuotaFull {
		err = core.NewValidationError(ErrQuotaExceeded)
	}
	return stored, err
}

func (svc *Service) List(ctx context.Context, tenantID string) ([]Backup, error) {
	return svc.repo.QueryBackups(ctx, tenantID)
}

func (svc *Service) Get(ctx context.Context, tenantID, id string) (Backup, error) {
	return svc.repo.GetBackup(ctx, tenantID, id)
}

// Download returns the backup with its gzipped payload.
func (svc *Service) Download(ctx context.Context, tenantID, id string) (Backup, []byte, error) {
	b, err := svc.repo.GetBackup(ctx, tenantID, id)
	if err != nil {
		return Backup{}, nil, err
	}
	payload, err := svc.repo.GetPayload(ctx, tenantID, id)
	if err != nil {
		return Backup{}, nil, errors.Wrap(err, "getting payload")
	}
	return b, payload, nil
}

func (svc *Service) Delete(ctx context.Context, tenantID, id string) error {
	if _, err := svc.repo.GetBackup(ctx, tenantID, id); err != nil {
		return err
	}
	return errors.Wrap(svc.repo.DeleteBackup(ctx, tenantID, id), "deleting backup")
}

// Restore replaces the tenant data with the backup's. Users are left untouched.
func (svc *Service) Restore(ctx context.Context, tenantID, id string) (Counts, error) {
	b, payload, err := svc.Download(ctx, tenantID, id)
	if err != nil {
		return Counts{}, err
	}
	if Checksum(payload) != b.Checksum {
		return Counts{}, core.NewValidationError(ErrChecksumMismatch)
	}
	snap, err := Decode(payload)
	if err != nil {
		return Counts{}, core.NewValidationError(err)
	}
	if snap.Version != SnapshotVersion {
		return Counts{}, core.NewValidationError(ErrVersion)
	}
	if snap.TenantID != tenantID {
		return Counts{}, core.NewValidationError(ErrTenantMismatch)
	}

	if err := svc.repo.ReplaceTenantData(ctx, snap); err != nil {
		return Counts{}, errors.Wrap(err, "replacing tenant data")
	}
	return snap.Counts(), core.BumpTenantVersion(ctx, svc.cache, tenantID)
}
