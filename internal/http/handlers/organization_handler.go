// Organization HTTP handlers.
//
// This file exposes REST endpoints for the organization directory that the
// enrichment sweep reads:
//   - POST   /organizations        (create)
//   - GET    /organizations        (list, paginated, ETag support)
//   - GET    /organizations/{id}   (fetch one)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses (including conditional responses).
//
// Idempotency:
// If the client supplies an Idempotency-Key header on create and a live
// record exists for that key, the handler returns the originally created
// organization with 200 and sets `Idempotency-Replayed: true`.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-org-enricher/internal/domain"
	"github.com/tbourn/go-org-enricher/internal/http/middleware"
	"github.com/tbourn/go-org-enricher/internal/repo"
	"github.com/tbourn/go-org-enricher/internal/services"
	"github.com/tbourn/go-org-enricher/internal/utils"
)

//
// Service contracts (context-aware)
//

// OrganizationService defines directory operations consumed by HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type OrganizationService interface {
	// Create inserts an organization; status defaults to pending.
	Create(ctx context.Context, name, website, status string) (*domain.Organization, error)
	// Get returns one organization or services.ErrOrganizationNotFound.
	Get(ctx context.Context, id string) (*domain.Organization, error)
	// ListPage returns a page of organizations and the total count.
	ListPage(ctx context.Context, page, pageSize int) ([]domain.Organization, int64, error)
}

// MetadataService resolves website metadata for the enrichment endpoint.
type MetadataService interface {
	// Lookup returns a complete record for rawURL, or services.ErrURLRequired /
	// services.ErrInvalidURL for input that cannot be looked up.
	Lookup(ctx context.Context, rawURL string) (domain.Metadata, error)
}

//
// Handler wiring
//

// Handlers groups HTTP endpoints for organizations and website metadata.
type Handlers struct {
	orgSvc  OrganizationService
	metaSvc MetadataService
	idemTTL time.Duration
}

// DefaultIdempotencyTTL bounds how long a create can be replayed by key when
// no WithIdempotencyTTL option is given.
const DefaultIdempotencyTTL = 24 * time.Hour

// Option customizes Handlers.
type Option func(*Handlers)

// WithIdempotencyTTL sets how long an Idempotency-Key replays its create.
// Non-positive values keep the default.
func WithIdempotencyTTL(d time.Duration) Option {
	return func(h *Handlers) {
		if d > 0 {
			h.idemTTL = d
		}
	}
}

// New constructs and returns a Handlers instance bound to the given services.
func New(orgSvc OrganizationService, metaSvc MetadataService, opts ...Option) *Handlers {
	h := &Handlers{orgSvc: orgSvc, metaSvc: metaSvc, idemTTL: DefaultIdempotencyTTL}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

//
// DTOs
//

// CreateOrganizationRequest is the JSON payload for creating an organization.
type CreateOrganizationRequest struct {
	OrgName string `json:"org_name" binding:"required,max=255" example:"Climate Action Network"`
	// Website is stored as entered; a missing scheme defaults to https at lookup time.
	Website string `json:"website" binding:"max=2048" example:"climatenetwork.org"`
	// Status is one of pending, approved, rejected (default pending).
	Status string `json:"status" example:"pending"`
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListOrganizationsResponse wraps a page of organizations and pagination information.
type ListOrganizationsResponse struct {
	Organizations []domain.Organization `json:"organizations"`
	Pagination    Pagination            `json:"pagination"`
}

//
// Helpers
//

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.Clamp(utils.AtoiDefault(c.Query("page_size"), defaultPageSize), 1, maxPageSize)
	return
}

//
// Handlers
//

// CreateOrganization godoc
// @ID          createOrganization
// @Summary     Create an organization
// @Description Adds an organization to the directory. Its website becomes an enrichment candidate.
// @Tags        Organizations
// @Accept      json
// @Produce     json
//
// @Param       Idempotency-Key  header  string  false  "Idempotency key for safe retries (UUID recommended)"
// @Param       body             body    handlers.CreateOrganizationRequest  true  "Organization payload"
//
// @Success     200  {object}  domain.Organization  "Replayed by Idempotency-Key"
// @Success     201  {object}  domain.Organization
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     413  {object}  handlers.ErrorResponse  "Body too large"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /organizations [post]
func (h *Handlers) CreateOrganization(c *gin.Context) {
	var req CreateOrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			fail(c, http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge, "request body too large")
			return
		}
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body (org_name required)")
		return
	}

	ctx := c.Request.Context()
	idemKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
	if len(idemKey) > 128 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "Idempotency-Key must be at most 128 characters")
		return
	}

	// Replay path.
	var db *gorm.DB
	if svc, isOrgSvc := h.orgSvc.(*services.OrganizationService); isOrgSvc {
		db = svc.DB
	}
	if idemKey != "" && db != nil {
		if rec, err := repo.GetIdempotency(ctx, db, domain.IdempotencyScopeCreateOrganization, idemKey, time.Now().UTC()); err == nil {
			if prev, err2 := h.orgSvc.Get(ctx, rec.ResourceID); err2 == nil {
				c.Header("Idempotency-Replayed", "true")
				ok(c, http.StatusOK, prev)
				return
			}
		}
	}

	o, err := h.orgSvc.Create(ctx, req.OrgName, req.Website, req.Status)
	switch {
	case errors.Is(err, services.ErrInvalidStatus):
		fail(c, http.StatusBadRequest, ErrCodeInvalidStatus, err.Error())
		return
	case errors.Is(err, services.ErrEmptyOrgName), errors.Is(err, services.ErrNameTooLong):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeCreateFailed, err.Error())
		return
	}

	// Store path (best effort).
	if idemKey != "" && db != nil {
		if _, err := repo.CreateIdempotency(ctx, db, domain.IdempotencyScopeCreateOrganization, idemKey, o.ID, http.StatusCreated, h.idemTTL); err != nil && !errors.Is(err, repo.ErrDuplicate) {
			middleware.LoggerFrom(c).Warn().Err(err).Str("org_id", o.ID).Msg("idempotency record not stored")
		}
	}
	ok(c, http.StatusCreated, o)
}

// ListOrganizations godoc
// @ID          listOrganizations
// @Summary     List organizations (paginated)
// @Description Returns a page of organizations ordered by name. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Organizations
// @Produce     json
//
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"  example(W/\"abc123\")
// @Param       page           query   int     false "Page number"                  minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"               minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListOrganizationsResponse
// @Header      200  {string} ETag           "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /organizations [get]
func (h *Handlers) ListOrganizations(c *gin.Context) {
	ctx := c.Request.Context()
	page, pageSize := clampPagination(c)

	// ETag pre-check (best effort).
	var db *gorm.DB
	if svc, ok := h.orgSvc.(*services.OrganizationService); ok {
		db = svc.DB
	}
	if db != nil {
		count, maxTS, err := repo.OrganizationsStats(ctx, db)
		if err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.Unix()
			}
			etag := fmt.Sprintf(`W/"orgs:%d:%d:%d:%d"`, count, ts, page, pageSize)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	items, total, err := h.orgSvc.ListPage(ctx, page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	totalPages := utils.TotalPages(total, pageSize)
	ok(c, http.StatusOK, ListOrganizationsResponse{
		Organizations: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}

// GetOrganization godoc
// @ID          getOrganization
// @Summary     Get an organization
// @Tags        Organizations
// @Produce     json
//
// @Param       id  path  string  true  "Organization ID (UUID)"  format(uuid)
//
// @Success     200  {object} domain.Organization
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Organization not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /organizations/{id} [get]
func (h *Handlers) GetOrganization(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "organization id must be a UUID")
		return
	}
	o, err := h.orgSvc.Get(c.Request.Context(), id)
	if errors.Is(err, services.ErrOrganizationNotFound) {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "organization not found")
		return
	}
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, o)
}
