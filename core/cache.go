package core

import (
	"context"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

var ErrCacheMiss = errors.New("cache miss")

// Cache stores JSON-serializable values for a limited time.
type Cache interface {
	// Get decodes the value stored under key into dest; returns ErrCacheMiss if there is none.
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Incr(ctx context.Context, key string) (int64, error)
	Delete(ctx context.Context, keys ...string) error
}

func tenantVersionKey(tenantID string) string { return "tenant:" + tenantID + ":version" }

// TenantVersion returns the version of the tenant's data; cached reports embed it in their keys.
func TenantVersion(ctx context.Context, cache Cache, tenantID string) (int64, error) {
	if cache == nil {
		return 0, nil
	}
	var version int64
	if err := cache.Get(ctx, tenantVersionKey(tenantID), &version); err != nil {
		if errors.Cause(err) == ErrCacheMiss {
			return 0, nil
		}
		return 0, errors.Wrap(err, "getting tenant version")
	}
	return version, nil
}

// BumpTenantVersion invalidates every report cached for the tenant.
func BumpTenantVersion(ctx context.Context, cache Cache, tenantID string) error {
	if cache == nil {
		return nil
	}
	_, err := cache.Incr(ctx, tenantVersionKey(tenantID))
	return errors.Wrap(err, "bumping tenant version")
}

// TenantCacheKey builds a key bound to the current tenant version.
func TenantCacheKey(tenantID string, version int64, parts ...string) string {
	key := "tenant:" + tenantID + ":v" + strconv.FormatInt(version, 10)
	for _, p := range parts {
		key += ":" + p
	}
	return key
}
