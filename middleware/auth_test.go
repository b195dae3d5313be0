package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func okHandler(called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		w.WriteHeader(http.StatusOK)
	})
}

// forgeToken builds a structurally valid JWT signed with a key Clerk never
// issued, so verification must reject it.
func forgeToken(t *testing.T) string {
	t.Helper()

	claims := jwt.MapClaims{
		"sub": "user_2abcDEFghiJKLmnoPQRstuv",
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(time.Hour).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte("not-clerks-key"))
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}
	return signed
}

func TestClerkAuthMiddlewareMissingHeader(t *testing.T) {
	called := false
	handler := ClerkAuthMiddleware(okHandler(&called))

	req := httptest.NewRequest("GET", "/api/v1/user/streak", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", rr.Code)
	}
	if called {
		t.Error("Next handler should not run without an Authorization header")
	}
}

func TestClerkAuthMiddlewareBadFormat(t *testing.T) {
	called := false
	handler := ClerkAuthMiddleware(okHandler(&called))

	req := httptest.NewRequest("GET", "/api/v1/user/streak", nil)
	req.Header.Set("Authorization", "Token abc123")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", rr.Code)
	}
	if called {
		t.Error("Next handler should not run with a non-Bearer header")
	}
}

func TestClerkAuthMiddlewareForgedToken(t *testing.T) {
	called := false
	handler := ClerkAuthMiddleware(okHandler(&called))

	req := httptest.NewRequest("GET", "/api/v1/user/streak", nil)
	req.Header.Set("Authorization", "Bearer "+forgeToken(t))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 for forged token, got %d", rr.Code)
	}
	if called {
		t.Error("Next handler should not run with a forged token")
	}
}

func TestTimeZoneMiddleware(t *testing.T) {
	var gotTZ string
	handler := TimeZoneMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotTZ = GetTimeZone(r.Context())
	}))

	req := httptest.NewRequest("GET", "/api/v1/user/streak", nil)
	req.Header.Set("X-Time-Zone", "Europe/Sofia")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if gotTZ != "Europe/Sofia" {
		t.Errorf("Expected Europe/Sofia from context, got %q", gotTZ)
	}
}

func TestTimeZoneMiddlewareAbsentHeader(t *testing.T) {
	var gotTZ string
	handler := TimeZoneMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotTZ = GetTimeZone(r.Context())
	}))

	req := httptest.NewRequest("GET", "/api/v1/user/streak", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if gotTZ != "" {
		t.Errorf("Expected empty timezone, got %q", gotTZ)
	}
}

func TestGetClerkIDMissing(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	if _, ok := GetClerkID(req.Context()); ok {
		t.Error("Expected no clerk ID in a bare context")
	}
}
