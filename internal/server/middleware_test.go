package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/tally/internal/common"
)

const testJWTSecret = "test-secret-for-middleware"

func testConfig() *common.Config {
	cfg := common.NewDefaultConfig()
	cfg.Auth.JWTSecret = testJWTSecret
	return cfg
}

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func validClaims(sub string) jwt.MapClaims {
	now := time.Now()
	return jwt.MapClaims{
		"sub": sub,
		"iss": "tally",
		"iat": now.Unix(),
		"exp": now.Add(time.Hour).Unix(),
	}
}

// captureUser returns a handler recording the resolved UserContext.
func captureUser(got **common.UserContext) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*got = common.UserContextFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func TestBearerTokenMiddleware_ValidToken(t *testing.T) {
	var uc *common.UserContext
	handler := bearerTokenMiddleware(testConfig())(captureUser(&uc))

	req := httptest.NewRequest(http.MethodGet, "/api/expenses", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testJWTSecret, validClaims("user-42")))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, uc)
	assert.Equal(t, "user-42", uc.UserID)
	assert.Equal(t, "token", uc.Source)
}

func TestBearerTokenMiddleware_Rejects(t *testing.T) {
	expired := validClaims("user-42")
	expired["exp"] = time.Now().Add(-time.Minute).Unix()

	wrongIssuer := validClaims("user-42")
	wrongIssuer["iss"] = "someone-else"

	noSubject := validClaims("")

	tests := []struct {
		name  string
		token string
	}{
		{"wrong secret", signToken(t, "other-secret", validClaims("user-42"))},
		{"expired", signToken(t, testJWTSecret, expired)},
		{"wrong issuer", signToken(t, testJWTSecret, wrongIssuer)},
		{"no subject", signToken(t, testJWTSecret, noSubject)},
		{"garbage", "not.a.token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var uc *common.UserContext
			handler := bearerTokenMiddleware(testConfig())(captureUser(&uc))

			req := httptest.NewRequest(http.MethodGet, "/api/expenses", nil)
			req.Header.Set("Authorization", "Bearer "+tt.token)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "invalid_token")
			assert.Nil(t, uc)
		})
	}
}

func TestBearerTokenMiddleware_RejectsNoneAlgorithm(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodNone, validClaims("user-42"))
	s, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	var uc *common.UserContext
	handler := bearerTokenMiddleware(testConfig())(captureUser(&uc))
	req := httptest.NewRequest(http.MethodGet, "/api/expenses", nil)
	req.Header.Set("Authorization", "Bearer "+s)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Nil(t, uc)
}

func TestBearerTokenMiddleware_NoHeaderPassesThrough(t *testing.T) {
	var uc *common.UserContext
	handler := bearerTokenMiddleware(testConfig())(captureUser(&uc))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, uc)
}

func TestUserContextMiddleware_DevHeader(t *testing.T) {
	var uc *common.UserContext
	handler := userContextMiddleware(testConfig())(captureUser(&uc))

	req := httptest.NewRequest(http.MethodGet, "/api/expenses", nil)
	req.Header.Set(UserIDHeader, " dev-user ")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.NotNil(t, uc)
	assert.Equal(t, "dev-user", uc.UserID)
	assert.Equal(t, "header", uc.Source)
}

func TestUserContextMiddleware_IgnoredInProduction(t *testing.T) {
	cfg := testConfig()
	cfg.Environment = "production"

	var uc *common.UserContext
	handler := userContextMiddleware(cfg)(captureUser(&uc))

	req := httptest.NewRequest(http.MethodGet, "/api/expenses", nil)
	req.Header.Set(UserIDHeader, "dev-user")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	assert.Nil(t, uc)

	cfg.Auth.AllowDevHeader = true
	handler = userContextMiddleware(cfg)(captureUser(&uc))
	handler.ServeHTTP(httptest.NewRecorder(), req)
	require.NotNil(t, uc)
	assert.Equal(t, "dev-user", uc.UserID)
}

func TestApplyMiddleware_TokenWinsOverHeader(t *testing.T) {
	var uc *common.UserContext
	handler := applyMiddleware(captureUser(&uc), common.NewSilentLogger(), testConfig())

	req := httptest.NewRequest(http.MethodGet, "/api/expenses", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testJWTSecret, validClaims("token-user")))
	req.Header.Set(UserIDHeader, "header-user")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.NotNil(t, uc)
	assert.Equal(t, "token-user", uc.UserID)
	assert.NotEmpty(t, rec.Header().Get("X-Correlation-ID"))
}

func TestCorsMiddleware_Preflight(t *testing.T) {
	handler := corsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("preflight must not reach the handler")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/expenses", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), UserIDHeader)
}

func TestCorrelationIDMiddleware_PreservesRequestID(t *testing.T) {
	handler := correlationIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("X-Request-ID", "req-123")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "req-123", rec.Header().Get("X-Correlation-ID"))
}

func TestRecoveryMiddleware(t *testing.T) {
	handler := recoveryMiddleware(common.NewSilentLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/expenses", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
