// Package services – OrganizationService
//
// OrganizationService manages the organization directory that feeds the
// enrichment sweep. It normalizes names, validates review status and
// coordinates repository operations for creating, fetching and listing
// (with pagination) organizations.
package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/tbourn/go-org-enricher/internal/domain"
	"github.com/tbourn/go-org-enricher/internal/utils"
)

// OrganizationRepo defines the repository contract required by
// OrganizationService.
type OrganizationRepo interface {
	CreateOrganization(ctx context.Context, db *gorm.DB, name, website, status string) (*domain.Organization, error)
	GetOrganization(ctx context.Context, db *gorm.DB, id string) (*domain.Organization, error)
	ListOrganizations(ctx context.Context, db *gorm.DB) ([]domain.Organization, error)
	CountOrganizations(ctx context.Context, db *gorm.DB) (int64, error)
	ListOrganizationsPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Organization, error)
}

// OrganizationService provides organization-level operations.
type OrganizationService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the organization repository used by this service.
	Repo OrganizationRepo

	// NameMaxLen caps stored names by rune length.
	NameMaxLen int
}

// NewOrganizationService constructs an OrganizationService with defaults.
func NewOrganizationService(db *gorm.DB, r OrganizationRepo) *OrganizationService {
	return &OrganizationService{DB: db, Repo: r, NameMaxLen: 255}
}

// Create validates and inserts a new organization. A blank status defaults to
// pending; the website is stored raw (trimmed) because enrichment keys its
// cache by the string as entered.
func (s *OrganizationService) Create(ctx context.Context, name, website, status string) (*domain.Organization, error) {
	name = normalizeName(name)
	if name == "" {
		return nil, ErrEmptyOrgName
	}
	if s.NameMaxLen > 0 && utf8.RuneCountInString(name) > s.NameMaxLen {
		return nil, ErrNameTooLong
	}
	status = strings.ToLower(strings.TrimSpace(status))
	if status == "" {
		status = domain.StatusPending
	}
	if !domain.ValidStatus(status) {
		return nil, ErrInvalidStatus
	}
	return s.Repo.CreateOrganization(ctx, s.DB, name, strings.TrimSpace(website), status)
}

// Get returns one organization, mapping a missing row to
// ErrOrganizationNotFound.
func (s *OrganizationService) Get(ctx context.Context, id string) (*domain.Organization, error) {
	o, err := s.Repo.GetOrganization(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrganizationNotFound
		}
		return nil, err
	}
	return o, nil
}

// List returns every organization (non-paginated). The enrichment sweep
// reconciles against this list.
func (s *OrganizationService) List(ctx context.Context) ([]domain.Organization, error) {
	return s.Repo.ListOrganizations(ctx, s.DB)
}

// ListPage returns a page of organizations and the total count. Invalid
// page/pageSize values fall back to 1 and 20.
func (s *OrganizationService) ListPage(ctx context.Context, page, pageSize int) ([]domain.Organization, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := utils.Offset(page, pageSize)

	total, err := s.Repo.CountOrganizations(ctx, s.DB)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Organization{}, 0, nil
	}

	items, err := s.Repo.ListOrganizationsPage(ctx, s.DB, offset, pageSize)
	return items, total, err
}

// normalizeName trims whitespace and collapses inner runs to one space.
func normalizeName(s string) string {
	return whitespaceRE.ReplaceAllString(strings.TrimSpace(s), " ")
}

var whitespaceRE = regexp.MustCompile(`\s+`)
