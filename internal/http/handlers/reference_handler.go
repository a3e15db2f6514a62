// Reference-data HTTP handlers.
//
// This file exposes REST endpoints for the cached reference data:
//   - GET  /reference/devices                  (list, paginated, ETag support)
//   - GET  /reference/devices/lookup           (cache lookup by model + code)
//   - GET  /reference/specimens                (list, paginated, ETag support)
//   - GET  /reference/specimens/lookup         (cache lookup by name)
//   - POST /reference/caches/refresh           (manual evict + eager rebuild)
//
// Handlers are transport-thin: they validate input, call application
// services, and translate results into HTTP responses (including
// conditional responses).
package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tbourn/go-lab-backend/internal/domain"
	"github.com/tbourn/go-lab-backend/internal/repo"
	"github.com/tbourn/go-lab-backend/internal/services"
	"github.com/tbourn/go-lab-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// ReferenceService defines the cached reference lookups consumed by
// HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type ReferenceService interface {
	// FindDevice resolves a (model, testPerformedCode) pair against the
	// device code map.
	FindDevice(ctx context.Context, model, testPerformedCode string) (*domain.DeviceType, error)
	// FindSpecimenCode resolves a specimen name to its SNOMED code.
	FindSpecimenCode(ctx context.Context, name string) (string, error)
	// RefreshAll evicts and eagerly rebuilds every cached key-space.
	RefreshAll(ctx context.Context) error
}

// ReferenceLister defines the paginated listing reads used by the admin
// endpoints. Kept separate from ReferenceService because listings read
// the table directly, not the cache.
type ReferenceLister interface {
	ListDevicesPage(ctx context.Context, page, pageSize int) ([]domain.DeviceType, int64, error)
	ListSpecimensPage(ctx context.Context, page, pageSize int) ([]domain.SpecimenType, int64, error)
}

//
// Handler wiring
//

// Handlers groups HTTP endpoints for reference data and patient links.
// It depends on abstract service interfaces to keep transport concerns
// separate from business logic. DB is used for cheap ETag stats queries
// on the listing endpoints and for safe-retry records on the link POST
// endpoints; idemTTL bounds how long those records stay replayable.
type Handlers struct {
	refSvc  ReferenceService
	lister  ReferenceLister
	linkSvc LinkService
	db      *gorm.DB
	idemTTL time.Duration
}

// New constructs and returns a Handlers instance bound to the given
// services. A non-positive idemTTL falls back to 24h.
func New(refSvc ReferenceService, lister ReferenceLister, linkSvc LinkService, db *gorm.DB, idemTTL time.Duration) *Handlers {
	return &Handlers{refSvc: refSvc, lister: lister, linkSvc: linkSvc, db: db, idemTTL: idemTTL}
}

//
// DTOs
//

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListDevicesResponse wraps a page of device types and pagination
// information.
type ListDevicesResponse struct {
	Devices    []domain.DeviceType `json:"devices"`
	Pagination Pagination          `json:"pagination"`
}

// ListSpecimensResponse wraps a page of specimen types and pagination
// information.
type ListSpecimensResponse struct {
	Specimens  []domain.SpecimenType `json:"specimens"`
	Pagination Pagination            `json:"pagination"`
}

// SpecimenCodeResponse is the result of a specimen-name lookup.
type SpecimenCodeResponse struct {
	Name     string `json:"name"`
	TypeCode string `json:"type_code"`
}

//
// Helpers
//

// clampPagination parses and bounds page and page_size query params to
// sane defaults and limits, returning (page, pageSize).
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
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

// paginationFor assembles the metadata block for a page.
func paginationFor(page, pageSize int, total int64) Pagination {
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
	}
}

//
// Handlers
//

// LookupDevice godoc
// @ID          lookupDevice
// @Summary     Resolve a device by model and test performed code
// @Description Case-insensitive lookup against the cached device code map. The first read after an eviction rebuilds the map from the database.
// @Tags        Reference
// @Produce     json
//
// @Param       model                query  string  true  "Device model string"
// @Param       test_performed_code  query  string  true  "Test performed LOINC code"
//
// @Success     200  {object}  domain.DeviceType
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Unknown device"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error (e.g., cache rebuild failure)"
// @Router      /reference/devices/lookup [get]
func (h *Handlers) LookupDevice(c *gin.Context) {
	model := strings.TrimSpace(c.Query("model"))
	code := strings.TrimSpace(c.Query("test_performed_code"))
	if model == "" || code == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "model and test_performed_code required")
		return
	}

	device, err := h.refSvc.FindDevice(c.Request.Context(), model, code)
	if err != nil {
		if errors.Is(err, services.ErrUnknownDevice) {
			fail(c, http.StatusNotFound, ErrCodeUnknownDevice, "unknown device model and test performed code")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeLookupFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, device)
}

// LookupSpecimen godoc
// @ID          lookupSpecimen
// @Summary     Resolve a specimen name to its SNOMED code
// @Description Case-insensitive lookup against the cached specimen code map: database rows first, compiled-in synonyms as fallback.
// @Tags        Reference
// @Produce     json
//
// @Param       name  query  string  true  "Specimen name"
//
// @Success     200  {object}  handlers.SpecimenCodeResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Unknown specimen"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error (e.g., cache rebuild failure)"
// @Router      /reference/specimens/lookup [get]
func (h *Handlers) LookupSpecimen(c *gin.Context) {
	name := strings.TrimSpace(c.Query("name"))
	if name == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "name required")
		return
	}

	code, err := h.refSvc.FindSpecimenCode(c.Request.Context(), name)
	if err != nil {
		if errors.Is(err, services.ErrUnknownSpecimen) {
			fail(c, http.StatusNotFound, ErrCodeUnknownSpecimen, "unknown specimen name")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeLookupFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, SpecimenCodeResponse{Name: name, TypeCode: code})
}

// RefreshCaches godoc
// @ID          refreshCaches
// @Summary     Evict and rebuild the reference caches
// @Description Performs the same evict + eager rebuild the hourly scheduler runs, on demand. A failing rebuild leaves the previous map in place.
// @Tags        Reference
// @Produce     json
//
// @Success     204  {string}  string  "No Content"
// @Failure     500  {object}  handlers.ErrorResponse  "Rebuild failed"
// @Router      /reference/caches/refresh [post]
func (h *Handlers) RefreshCaches(c *gin.Context) {
	if err := h.refSvc.RefreshAll(c.Request.Context()); err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeRefreshFailed, err.Error())
		return
	}
	noContent(c)
}

// ListDevices godoc
// @ID          listDevices
// @Summary     List device types (paginated)
// @Description Returns a page of the device reference table. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Reference
// @Produce     json
//
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"
// @Param       page           query   int     false "Page number"     minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"  minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListDevicesResponse
// @Header      200  {string} ETag "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /reference/devices [get]
func (h *Handlers) ListDevices(c *gin.Context) {
	ctx := c.Request.Context()
	page, pageSize := clampPagination(c)

	// ETag pre-check (best effort).
	if h.db != nil {
		count, maxTS, err := repo.DeviceTypesStats(ctx, h.db)
		if err == nil && h.etagMatch(c, "devices", count, maxTS) {
			return
		}
	}

	items, total, err := h.lister.ListDevicesPage(ctx, page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, ListDevicesResponse{
		Devices:    items,
		Pagination: paginationFor(page, pageSize, total),
	})
}

// ListSpecimens godoc
// @ID          listSpecimens
// @Summary     List specimen types (paginated)
// @Description Returns a page of the specimen reference table. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Reference
// @Produce     json
//
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"
// @Param       page           query   int     false "Page number"     minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"  minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListSpecimensResponse
// @Header      200  {string} ETag "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /reference/specimens [get]
func (h *Handlers) ListSpecimens(c *gin.Context) {
	ctx := c.Request.Context()
	page, pageSize := clampPagination(c)

	// ETag pre-check (best effort).
	if h.db != nil {
		count, maxTS, err := repo.SpecimenTypesStats(ctx, h.db)
		if err == nil && h.etagMatch(c, "specimens", count, maxTS) {
			return
		}
	}

	items, total, err := h.lister.ListSpecimensPage(ctx, page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, ListSpecimensResponse{
		Specimens:  items,
		Pagination: paginationFor(page, pageSize, total),
	})
}

// etagMatch sets a weak ETag derived from table stats and reports true
// (after writing 304) when If-None-Match already carries it.
func (h *Handlers) etagMatch(c *gin.Context, table string, count int64, maxTS *time.Time) bool {
	var ts int64
	if maxTS != nil {
		ts = maxTS.Unix()
	}
	etag := fmt.Sprintf(`W/"%s:%d:%d"`, table, count, ts)
	c.Header("ETag", etag)
	if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
		c.Status(http.StatusNotModified)
		return true
	}
	return false
}
