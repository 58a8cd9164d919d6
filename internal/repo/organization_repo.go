// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// Organization model, the list provider consumed by metadata enrichment.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When an organization is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
//
// Usage:
//
//	org, err := repo.CreateOrganization(ctx, db, "350.org", "350.org", domain.StatusPending)
//	if err != nil {
//	    // handle DB failure
//	}
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-org-enricher/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateOrganization inserts a new Organization row. The ID is a random UUID
// and CreatedAt/UpdatedAt are set to UTC now.
func CreateOrganization(ctx context.Context, db *gorm.DB, name, website, status string) (*domain.Organization, error) {
	now := time.Now().UTC()
	o := &domain.Organization{
		ID:        uuid.NewString(),
		OrgName:   name,
		Website:   website,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := db.WithContext(ctx).Create(o).Error; err != nil {
		return nil, err
	}
	return o, nil
}

// GetOrganization fetches a single organization by ID. Soft-deleted rows are
// excluded. Missing rows return ErrNotFound.
func GetOrganization(ctx context.Context, db *gorm.DB, id string) (*domain.Organization, error) {
	var o domain.Organization
	if err := db.WithContext(ctx).Where("id = ?", id).First(&o).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

// ListOrganizations returns every organization ordered by name, then ID for a
// stable order among duplicates. The enrichment sweep consumes this list.
func ListOrganizations(ctx context.Context, db *gorm.DB) ([]domain.Organization, error) {
	var out []domain.Organization
	err := db.WithContext(ctx).
		Order("org_name asc").
		Order("id asc").
		Find(&out).Error
	return out, err
}

// CountOrganizations returns the number of live organizations.
func CountOrganizations(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Model(&domain.Organization{}).Count(&total).Error
	return total, err
}

// ListOrganizationsPage returns a page of organizations in the same order as
// ListOrganizations. The caller computes offset and limit.
func ListOrganizationsPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Organization, error) {
	var out []domain.Organization
	err := db.WithContext(ctx).
		Order("org_name asc").
		Order("id asc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// Organizations adapts the package functions to services.OrganizationRepo.
type Organizations struct{}

func (Organizations) CreateOrganization(ctx context.Context, db *gorm.DB, name, website, status string) (*domain.Organization, error) {
	return CreateOrganization(ctx, db, name, website, status)
}

func (Organizations) GetOrganization(ctx context.Context, db *gorm.DB, id string) (*domain.Organization, error) {
	return GetOrganization(ctx, db, id)
}

func (Organizations) ListOrganizations(ctx context.Context, db *gorm.DB) ([]domain.Organization, error) {
	return ListOrganizations(ctx, db)
}

func (Organizations) CountOrganizations(ctx context.Context, db *gorm.DB) (int64, error) {
	return CountOrganizations(ctx, db)
}

func (Organizations) ListOrganizationsPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Organization, error) {
	return ListOrganizationsPage(ctx, db, offset, limit)
}
