package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func Test_fail_500_LogsAndBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	// capture logs from LoggerFrom(c)
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	// simulate RequestID + request-scoped logger
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("X-Request-ID", "rid-500")
		c.Set("logger", &logger)
		c.Next()
	})

	r.POST("/links/:id/refresh", func(c *gin.Context) {
		fail(c, http.StatusInternalServerError, ErrCodeRefreshFailed, "db down")
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/links/L1/refresh", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d", w.Code)
	}

	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json: %v", err)
	}
	if resp.RequestID != "rid-500" || resp.Code != ErrCodeRefreshFailed || resp.Message != "db down" {
		t.Fatalf("unexpected body: %+v", resp)
	}

	// 5xx failures are logged at error level
	if !strings.Contains(buf.String(), `"level":"error"`) {
		t.Fatalf("expected error log, got: %s", buf.String())
	}
}

func Test_Fail_Gone_And_SuccessHelpers(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	// set request id for envelope
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("X-Request-ID", "rid-410")
		c.Next()
	})

	// exported Fail (4xx path, no error log)
	r.GET("/links/:id/organization", func(c *gin.Context) {
		Fail(c, http.StatusGone, ErrCodeLinkExpired, "patient link has expired")
	})

	// ok helper
	r.POST("/links", func(c *gin.Context) {
		ok(c, http.StatusCreated, gin.H{"id": "L1", "test_order_id": "O1"})
	})

	// noContent helper, as used by the cache refresh endpoint
	r.POST("/reference/caches/refresh", func(c *gin.Context) {
		noContent(c)
	})

	// 410
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/links/L1/organization", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusGone {
		t.Fatalf("status=%d", w.Code)
	}
	var er ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &er); err != nil {
		t.Fatalf("json 410: %v", err)
	}
	if er.RequestID != "rid-410" || er.Code != ErrCodeLinkExpired || er.Message != "patient link has expired" {
		t.Fatalf("unexpected 410 body: %+v", er)
	}

	// ok (201)
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/links", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("status=%d", w.Code)
	}
	var created map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("json 201: %v", err)
	}
	if created["id"] != "L1" || created["test_order_id"] != "O1" {
		t.Fatalf("unexpected created body: %#v", created)
	}

	// noContent (204)
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/reference/caches/refresh", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("status=%d", w.Code)
	}
	if w.Body.Len() != 0 {
		t.Fatalf("expected empty body for 204")
	}
}
