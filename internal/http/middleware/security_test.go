package middleware

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

// orgRouter mounts a stand-in for the organization lookup endpoint with
// the given security posture, mirroring how the router wires it.
func orgRouter(opt SecurityOptions, pre gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	if pre != nil {
		r.Use(pre)
	}
	r.Use(SecurityHeaders(opt))
	r.GET("/links/:id/organization", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"organization": gin.H{"name": "Elm Street Clinic"}})
	})
	return r
}

func getOrg(r http.Handler, mutate func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/links/L1/organization", nil)
	if mutate != nil {
		mutate(req)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSecurityHeaders_BaselineAndRequestIDExposure(t *testing.T) {
	t.Run("baseline only, request id exposed", func(t *testing.T) {
		r := orgRouter(SecurityOptions{}, func(c *gin.Context) {
			c.Header("X-Request-ID", "rid-123")
			c.Next()
		})
		h := getOrg(r, nil).Header()

		if h.Get("X-Content-Type-Options") != "nosniff" ||
			h.Get("X-Frame-Options") != "DENY" ||
			h.Get("Referrer-Policy") != "no-referrer" {
			t.Fatalf("baseline headers missing: %#v", h)
		}
		if h.Get("Permissions-Policy") != "" || h.Get("X-Permitted-Cross-Domain-Policies") != "" {
			t.Fatalf("unexpected policy headers: %#v", h)
		}
		if h.Get("Cache-Control") != "" || h.Get("Pragma") != "" || h.Get("Expires") != "" {
			t.Fatalf("unexpected cache headers: %#v", h)
		}
		if h.Get("Strict-Transport-Security") != "" {
			t.Fatalf("unexpected HSTS: %#v", h)
		}
		if h.Get("Access-Control-Expose-Headers") != "X-Request-ID" {
			t.Fatalf("Access-Control-Expose-Headers = %q", h.Get("Access-Control-Expose-Headers"))
		}
	})

	t.Run("appends to an existing expose header", func(t *testing.T) {
		r := orgRouter(SecurityOptions{}, func(c *gin.Context) {
			c.Header("X-Request-ID", "rid-abc")
			c.Header("Access-Control-Expose-Headers", "Content-Length")
			c.Next()
		})
		got := getOrg(r, nil).Header().Get("Access-Control-Expose-Headers")
		if got != "Content-Length, X-Request-ID" {
			t.Fatalf("expose header = %q", got)
		}
	})

	t.Run("does not duplicate an already exposed id", func(t *testing.T) {
		r := orgRouter(SecurityOptions{}, func(c *gin.Context) {
			c.Header("X-Request-ID", "rid-xyz")
			c.Header("Access-Control-Expose-Headers", "X-Request-ID, Content-Length")
			c.Next()
		})
		got := getOrg(r, nil).Header().Get("Access-Control-Expose-Headers")
		if got != "X-Request-ID, Content-Length" {
			t.Fatalf("expose header = %q", got)
		}
	})
}

func TestSecurityHeaders_PatientDataPosture(t *testing.T) {
	// The router's production posture: no-store for patient data,
	// browser policies on, HSTS behind TLS.
	r := orgRouter(SecurityOptions{
		EnableHSTS:   true,
		HSTSMaxAge:   24 * time.Hour,
		NoStore:      true,
		EnablePolicy: true,
	}, nil)
	h := getOrg(r, func(req *http.Request) {
		req.TLS = &tls.ConnectionState{}
	}).Header()

	if h.Get("Permissions-Policy") == "" || h.Get("X-Permitted-Cross-Domain-Policies") != "none" {
		t.Fatalf("missing policy headers: %#v", h)
	}
	if h.Get("Cache-Control") != "no-store" || h.Get("Pragma") != "no-cache" || h.Get("Expires") != "0" {
		t.Fatalf("patient responses must be no-store: %#v", h)
	}
	wantHSTS := "max-age=86400; includeSubDomains; preload"
	if h.Get("Strict-Transport-Security") != wantHSTS {
		t.Fatalf("HSTS = %q, want %q", h.Get("Strict-Transport-Security"), wantHSTS)
	}
}

func TestSecurityHeaders_HSTSBehindProxy(t *testing.T) {
	r := orgRouter(SecurityOptions{EnableHSTS: true, HSTSMaxAge: time.Hour}, nil)
	got := getOrg(r, func(req *http.Request) {
		req.Header.Set("X-Forwarded-Proto", "https")
	}).Header().Get("Strict-Transport-Security")
	if !strings.HasPrefix(got, "max-age=3600") {
		t.Fatalf("HSTS behind proxy = %q", got)
	}
}

func TestSecurityHeaders_NoHSTSOnPlainHTTP(t *testing.T) {
	r := orgRouter(SecurityOptions{EnableHSTS: true, HSTSMaxAge: time.Hour}, nil)
	if got := getOrg(r, nil).Header().Get("Strict-Transport-Security"); got != "" {
		t.Fatalf("HSTS on plain HTTP = %q, want empty", got)
	}
}

func TestSecurityHeaders_DefaultHSTSMaxAge(t *testing.T) {
	// Zero max-age falls back to 180 days.
	r := orgRouter(SecurityOptions{EnableHSTS: true}, nil)
	got := getOrg(r, func(req *http.Request) {
		req.TLS = &tls.ConnectionState{}
	}).Header().Get("Strict-Transport-Security")
	if !strings.HasPrefix(got, "max-age=15552000") {
		t.Fatalf("default HSTS = %q", got)
	}
}

func Test_isHTTPS(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if isHTTPS(req) {
		t.Fatal("plain HTTP should not be https")
	}
	req2 := httptest.NewRequest(http.MethodGet, "/", nil)
	req2.TLS = &tls.ConnectionState{}
	if !isHTTPS(req2) {
		t.Fatal("TLS request should be https")
	}
	req3 := httptest.NewRequest(http.MethodGet, "/", nil)
	req3.Header.Set("X-Forwarded-Proto", "https")
	if !isHTTPS(req3) {
		t.Fatal("X-Forwarded-Proto=https should be https")
	}
}
