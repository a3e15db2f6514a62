// Patient-link HTTP handlers.
//
// This file exposes the patient-facing endpoints for the time-bounded
// link capability:
//   - POST /links                    (create, bound to a test order)
//   - GET  /links/{id}/organization  (freshness-gated probe)
//   - POST /links/{id}/verify        (birth-date identity check)
//   - POST /links/{id}/refresh       (restart the validity window)
//
// Handlers are transport-thin: they validate input, call application
// services, and translate results into HTTP responses. Verify and
// refresh stay separate endpoints on purpose; the client combines them
// to re-activate an expired link.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tbourn/go-lab-backend/internal/domain"
	"github.com/tbourn/go-lab-backend/internal/http/middleware"
	"github.com/tbourn/go-lab-backend/internal/repo"
	"github.com/tbourn/go-lab-backend/internal/services"
)

// birthDateLayout is the wire format for birth dates: calendar date
// only, no time component.
const birthDateLayout = "2006-01-02"

//
// Service contracts (context-aware)
//

// LinkService defines patient-link operations consumed by HTTP
// handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type LinkService interface {
	// Create issues a new link for a test order.
	Create(ctx context.Context, testOrderID string) (*domain.PatientLink, error)
	// CurrentOrganization returns the org context for a fresh link, nil
	// for a stale one.
	CurrentOrganization(ctx context.Context, linkID string) (*domain.Organization, error)
	// VerifyIdentity checks the birth-date secret and returns the
	// patient.
	VerifyIdentity(ctx context.Context, linkID string, birthDate time.Time) (*domain.Person, error)
	// Refresh restarts the link's validity window.
	Refresh(ctx context.Context, linkID string) (*domain.PatientLink, error)
}

//
// DTOs
//

// CreateLinkRequest is the JSON payload for creating a patient link.
type CreateLinkRequest struct {
	// TestOrderID is the order the link grants access to.
	TestOrderID string `json:"test_order_id" binding:"required" example:"141add05-4415-4938-b5a1-17e0d3171aff"`
}

// VerifyLinkRequest is the JSON payload for identity verification.
type VerifyLinkRequest struct {
	// BirthDate is the patient's birth date, formatted YYYY-MM-DD.
	BirthDate string `json:"birth_date" binding:"required" example:"1987-06-05"`
}

// OrganizationResponse wraps the organization context of a fresh link.
type OrganizationResponse struct {
	Organization domain.Organization `json:"organization"`
}

//
// Handlers
//

// CreateLink godoc
// @ID          createLink
// @Summary     Create a patient link
// @Description Issues a new time-bounded link for a test order. One link per order.
// @Tags        Links
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.CreateLinkRequest  true  "Create link payload"
//
// @Success     201  {object}  domain.PatientLink
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Test order not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Link already exists"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /links [post]
func (h *Handlers) CreateLink(c *gin.Context) {
	var req CreateLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.TestOrderID) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "test_order_id required")
		return
	}
	if _, err := uuid.Parse(req.TestOrderID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "test_order_id must be a UUID")
		return
	}

	link, err := h.linkSvc.Create(c.Request.Context(), req.TestOrderID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrTestOrderNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "test order not found")
		case errors.Is(err, services.ErrLinkExists):
			fail(c, http.StatusConflict, ErrCodeConflict, "a link already exists for this test order")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeCreateFailed, err.Error())
		}
		return
	}
	ok(c, http.StatusCreated, link)
}

// CurrentOrganization godoc
// @ID          linkOrganization
// @Summary     Look up the organization behind a fresh link
// @Description Side-effect-free probe. Returns the organization context while the link is inside its validity window; 410 once expired. Does not check the birth date and does not refresh the link.
// @Tags        Links
// @Produce     json
//
// @Param       id  path  string  true  "Link ID (UUID)"  format(uuid)
//
// @Success     200  {object}  handlers.OrganizationResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Link not found"
// @Failure     410  {object}  handlers.ErrorResponse  "Link expired"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /links/{id}/organization [get]
func (h *Handlers) CurrentOrganization(c *gin.Context) {
	linkID, okParam := linkIDParam(c)
	if !okParam {
		return
	}

	org, err := h.linkSvc.CurrentOrganization(c.Request.Context(), linkID)
	if err != nil {
		if errors.Is(err, services.ErrLinkNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "patient link not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeLookupFailed, err.Error())
		return
	}
	if org == nil {
		// Stale link: no organization context until verified + refreshed.
		fail(c, http.StatusGone, ErrCodeLinkExpired, "patient link has expired")
		return
	}
	ok(c, http.StatusOK, OrganizationResponse{Organization: *org})
}

// VerifyLink godoc
// @ID          verifyLink
// @Summary     Verify patient identity for a link
// @Description Checks the supplied birth date against the patient on record. Allowed for stale links; a successful verify is how an expired link becomes eligible for refresh. Supports Idempotency-Key for safe retries.
// @Tags        Links
// @Accept      json
// @Produce     json
//
// @Param       id               path    string  true   "Link ID (UUID)"  format(uuid)
// @Param       Idempotency-Key  header  string  false  "Client-chosen retry key"
// @Param       body             body    handlers.VerifyLinkRequest  true  "Birth date payload"
//
// @Success     200  {object}  domain.Person
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     403  {object}  handlers.ErrorResponse  "Incorrect birth date"
// @Failure     404  {object}  handlers.ErrorResponse  "Link not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /links/{id}/verify [post]
func (h *Handlers) VerifyLink(c *gin.Context) {
	linkID, okParam := linkIDParam(c)
	if !okParam {
		return
	}

	var req VerifyLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	birthDate, err := time.ParseInLocation(birthDateLayout, strings.TrimSpace(req.BirthDate), time.UTC)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "birth_date must be formatted YYYY-MM-DD")
		return
	}

	person, err := h.linkSvc.VerifyIdentity(c.Request.Context(), linkID, birthDate)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrLinkNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "patient link not found")
		case errors.Is(err, services.ErrIncorrectBirthDate):
			fail(c, http.StatusForbidden, ErrCodeIncorrectBirthDate, "incorrect birth date")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}

	if middleware.IsReplay(c) {
		c.Header("Idempotency-Replayed", "true")
	}
	h.recordIdempotency(c, linkID, "verify")
	ok(c, http.StatusOK, person)
}

// RefreshLink godoc
// @ID          refreshLink
// @Summary     Refresh a patient link
// @Description Unconditionally restarts the validity window. No identity re-verification happens here; clients must verify first when re-activating an expired link. Supports Idempotency-Key for safe retries.
// @Tags        Links
// @Accept      json
// @Produce     json
//
// @Param       id               path    string  true   "Link ID (UUID)"  format(uuid)
// @Param       Idempotency-Key  header  string  false  "Client-chosen retry key"
//
// @Success     200  {object}  domain.PatientLink
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Link not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /links/{id}/refresh [post]
func (h *Handlers) RefreshLink(c *gin.Context) {
	linkID, okParam := linkIDParam(c)
	if !okParam {
		return
	}

	link, err := h.linkSvc.Refresh(c.Request.Context(), linkID)
	if err != nil {
		if errors.Is(err, services.ErrLinkNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "patient link not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeRefreshFailed, err.Error())
		return
	}

	if middleware.IsReplay(c) {
		c.Header("Idempotency-Replayed", "true")
	}
	h.recordIdempotency(c, linkID, "refresh")
	ok(c, http.StatusOK, link)
}

// recordIdempotency persists a safe-retry record after a successful
// link POST, best effort. It is a no-op without a validated
// Idempotency-Key header or a DB handle. A duplicate (link_id, key)
// means a concurrent retry already stored one.
func (h *Handlers) recordIdempotency(c *gin.Context, linkID, operation string) {
	key, okKey := middleware.GetIdempotencyKey(c)
	if !okKey || h.db == nil {
		return
	}
	ttl := h.idemTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	_, _ = repo.CreateIdempotency(c.Request.Context(), h.db, linkID, key, operation, http.StatusOK, ttl)
}

// linkIDParam validates the :id path parameter as a UUID, writing a 400
// response and returning false when it is not.
func linkIDParam(c *gin.Context) (string, bool) {
	linkID := c.Param("id")
	if _, err := uuid.Parse(linkID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "link id must be a UUID")
		return "", false
	}
	return linkID, true
}
