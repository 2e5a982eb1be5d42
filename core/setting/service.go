package setting

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/ud-systems/UD-Leads-sub001/core"
)

var ErrNotFound = core.NewNotFoundError("setting")

// Setting is a value stored for a tenant; keys without one use their default.
type Setting struct {
	TenantID  string    `json:"-"`
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedBy string    `json:"updated_by"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Entry is the effective value of a known key.
type Entry struct {
	Definition
	Value     interface{} `json:"value"`
	IsDefault bool        `json:"is_default"`
	UpdatedBy string      `json:"updated_by,omitempty"`
	UpdatedAt *time.Time  `json:"updated_at,omitempty"`
}

type SetRequest struct {
	Value interface{} `json:"value"`
}

type Repository interface {
	QuerySettings(ctx context.Context, tenantID string) ([]Setting, error)
	UpsertSetting(ctx context.Context, s Setting) (Setting, error)
	// DeleteSetting is a no-op when the tenant has no value for key.
	DeleteSetting(ctx context.Context, tenantID, key string) error
}

type Service struct {
	repo  Repository
	cache core.Cache
}

func NewService(repo Repository, cache core.Cache) *Service {
	return &Service{repo: repo, cache: cache}
}

func newEntry(def Definition, s *Setting) Entry {
	if s == nil {
		return Entry{Definition: def, Value: def.Parse(def.Default), IsDefault: true}
	}
	updatedAt := s.UpdatedAt
	return Entry{
		Definition: def,
		Value:      def.Parse(s.Value),
		UpdatedBy:  s.UpdatedBy,
		UpdatedAt:  &updatedAt,
	}
}

func (svc *Service) stored(ctx context.Context, tenantID string) (map[string]Setting, error) {
	settings, err := svc.repo.QuerySettings(ctx, tenantID)
	if err != nil {
		return nil, errors.Wrap(err, "querying settings")
	}
	byKey := make(map[string]Setting, len(settings))
	for _, s := range settings {
		byKey[s.Key] = s
	}
	return byKey, nil
}

// List returns every known key with its effective value.
func (svc *Service) List(ctx context.Context, tenantID string) ([]Entry, error) {
	byKey, err := svc.stored(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(Registry))
	for _, def := range Registry {
		if s, ok := byKey[def.Key]; ok {
			entries = append(entries, newEntry(def, &s))
		} else {
			entries = append(entries, newEntry(def, nil))
		}
	}
	return entries, nil
}

func (svc *Service) Get(ctx context.Context, tenantID, key string) (Entry, error) {
	def, ok := Lookup(key)
	if !ok {
		return Entry{}, ErrNotFound
	}
	byKey, err := svc.stored(ctx, tenantID)
	if err != nil {
		return Entry{}, err
	}
	if s, ok := byKey[key]; ok {
		return newEntry(def, &s), nil
	}
	return newEntry(def, nil), nil
}

func (svc *Service) Set(ctx context.Context, tenantID, key string, value interface{}, actorID string) (Entry, error) {
	def, ok := Lookup(key)
	if !ok {
		return Entry{}, ErrNotFound
	}
	normalized, err := def.Normalize(value)
	if err != nil {
		return Entry{}, core.NewFieldError("value", err)
	}

	s, err := svc.repo.UpsertSetting(ctx, Setting{
		TenantID:  tenantID,
		Key:       key,
		Value:     normalized,
		UpdatedBy: actorID,
		UpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		return Entry{}, errors.Wrap(err, "saving setting")
	}
	if err := core.BumpTenantVersion(ctx, svc.cache, tenantID); err != nil {
		return Entry{}, err
	}
	return newEntry(def, &s), nil
}

// Reset drops the tenant's value so the default applies again.
func (svc *Service) Reset(ctx context.Context, tenantID, key string) (Entry, error) {
	def, ok := Lookup(key)
	if !ok {
		return Entry{}, ErrNotFound
	}
	if err := svc.repo.DeleteSetting(ctx, tenantID, key); err != nil {
		return Entry{}, errors.Wrap(err, "deleting setting")
	}
	if err := core.BumpTenantVersion(ctx, svc.cache, tenantID); err != nil {
		return Entry{}, err
	}
	return newEntry(def, nil), nil
}

// Typed readers

func (svc *Service) Int(ctx context.Context, tenantID, key string) (int64, error) {
	e, err := svc.Get(ctx, tenantID, key)
	if err != nil {
		return 0, err
	}
	n, ok := e.Value.(int64)
	if !ok {
		return 0, errors.Errorf("setting %s is not an int", key)
	}
	return n, nil
}

func (svc *Service) Bool(ctx context.Context, tenantID, key string) (bool, error) {
	e, err := svc.Get(ctx, tenantID, key)
	if err != nil {
		return false, err
	}
	b, ok := e.Value.(bool)
	if !ok {
		return false, errors.Errorf("setting %s is not a bool", key)
	}
	return b, nil
}

func (svc *Service) String(ctx context.Context, tenantID, key string) (string, error) {
	e, err := svc.Get(ctx, tenantID, key)
	if err != nil {
		return "", err
	}
	s, _ := e.Value.(string)
	return s, nil
}

// Location returns the tenant timezone.
func (svc *Service) Location(ctx context.Context, tenantID string) (*time.Location, error) {
	name, err := svc.String(ctx, tenantID, CompanyTimezone)
	if err != nil {
		return nil, err
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC, nil
	}
	return loc, nil
}
