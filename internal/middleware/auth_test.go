package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthMiddlewareOpenPaths(t *testing.T) {
	handler := AuthMiddleware(okHandler())

	for _, path := range []string{"/login", "/auth/login", "/api/health", "/static/style.css"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

		if rec.Code != http.StatusOK {
			t.Errorf("Expected %s to be open, got %d", path, rec.Code)
		}
	}
}

func TestAuthMiddlewareUnauthenticatedAPI(t *testing.T) {
	handler := AuthMiddleware(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/measurements", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 for an API call without a cookie, got %d", rec.Code)
	}
}

func TestAuthMiddlewareUnauthenticatedPage(t *testing.T) {
	handler := AuthMiddleware(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/history", nil))

	if rec.Code != http.StatusSeeOther {
		t.Errorf("Expected a redirect for a page request, got %d", rec.Code)
	}
	if location := rec.Header().Get("Location"); location != "/login" {
		t.Errorf("Expected redirect to /login, got %s", location)
	}
}

func TestAuthMiddlewareXHRGets401(t *testing.T) {
	handler := AuthMiddleware(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/history", nil)
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 for an XHR request, got %d", rec.Code)
	}
}

func TestAuthMiddlewareWithCookie(t *testing.T) {
	handler := AuthMiddleware(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/history", nil)
	req.AddCookie(&http.Cookie{Name: "authenticated", Value: "true"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200 with a valid cookie, got %d", rec.Code)
	}
}

func TestAuthMiddlewareWrongCookieValue(t *testing.T) {
	handler := AuthMiddleware(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	req.AddCookie(&http.Cookie{Name: "authenticated", Value: "false"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 with a wrong cookie value, got %d", rec.Code)
	}
}
