package middleware_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"orderengine/internal/config"
	"orderengine/internal/logging"
	"orderengine/internal/metrics"
	"orderengine/internal/middleware"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

const secret = "test-secret"

// =====================
// レスポンス確認用
// =====================

type mwErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type mwOKResponse struct {
	UserID int64  `json:"user_id"`
	Role   string `json:"role"`
}

// =====================
// helper
// =====================

func mustMakeJWT(t *testing.T, secret string, claims jwt.MapClaims, signingMethod jwt.SigningMethod) string {
	t.Helper()

	token := jwt.NewWithClaims(signingMethod, claims)
	s, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func userClaims(sub interface{}, role string) jwt.MapClaims {
	return jwt.MapClaims{"sub": sub, "role": role, "iat": 1, "exp": 9999999999}
}

func newEcho() *echo.Echo {
	e := echo.New()
	cfg := config.Config{JWTSecret: secret}

	g := e.Group("/me")
	g.Use(middleware.AuthJWT(cfg))
	g.GET("", func(c echo.Context) error {
		return c.JSON(http.StatusOK, mwOKResponse{
			UserID: c.Get(middleware.CtxUserIDKey).(int64),
			Role:   c.Get(middleware.CtxUserRoleKey).(string),
		})
	})

	admin := e.Group("/admin")
	admin.Use(middleware.AuthJWT(cfg))
	admin.Use(middleware.AdminRoleGuard())
	admin.GET("/ping", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })
	return e
}

func runRequest(t *testing.T, e *echo.Echo, method string, path string, authHeader string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeMWError(t *testing.T, rec *httptest.ResponseRecorder) mwErrorResponse {
	t.Helper()
	var r mwErrorResponse
	_ = json.NewDecoder(rec.Body).Decode(&r)
	return r
}

// =====================
// AuthJWT
// =====================

func TestAuthJWT_OK(t *testing.T) {
	e := newEcho()
	tok := mustMakeJWT(t, secret, userClaims(float64(42), "user"), jwt.SigningMethodHS256)

	rec := runRequest(t, e, http.MethodGet, "/me", "Bearer "+tok)
	require.Equal(t, http.StatusOK, rec.Code)

	var body mwOKResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, int64(42), body.UserID)
	assert.Equal(t, "USER", body.Role)
}

func TestAuthJWT_StringSub(t *testing.T) {
	e := newEcho()
	tok := mustMakeJWT(t, secret, userClaims("7", "ADMIN"), jwt.SigningMethodHS256)

	rec := runRequest(t, e, http.MethodGet, "/me", "Bearer "+tok)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthJWT_Rejects(t *testing.T) {
	e := newEcho()

	cases := map[string]string{
		"missing header": "",
		"not bearer":     "Basic abc",
		"empty token":    "Bearer ",
		"bad signature":  "Bearer " + mustMakeJWT(t, "other-secret", userClaims(float64(1), "USER"), jwt.SigningMethodHS256),
		"wrong alg":      "Bearer " + mustMakeJWT(t, secret, userClaims(float64(1), "USER"), jwt.SigningMethodHS512),
		"expired":        "Bearer " + mustMakeJWT(t, secret, jwt.MapClaims{"sub": float64(1), "role": "USER", "exp": 1}, jwt.SigningMethodHS256),
		"no sub":         "Bearer " + mustMakeJWT(t, secret, jwt.MapClaims{"role": "USER", "exp": 9999999999}, jwt.SigningMethodHS256),
		"zero sub":       "Bearer " + mustMakeJWT(t, secret, userClaims(float64(0), "USER"), jwt.SigningMethodHS256),
		"no role":        "Bearer " + mustMakeJWT(t, secret, jwt.MapClaims{"sub": float64(1), "exp": 9999999999}, jwt.SigningMethodHS256),
	}

	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			rec := runRequest(t, e, http.MethodGet, "/me", header)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, "unauthorized", decodeMWError(t, rec).Code)
		})
	}
}

// =====================
// AdminRoleGuard
// =====================

func TestAdminRoleGuard(t *testing.T) {
	e := newEcho()

	user := mustMakeJWT(t, secret, userClaims(float64(1), "USER"), jwt.SigningMethodHS256)
	rec := runRequest(t, e, http.MethodGet, "/admin/ping", "Bearer "+user)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "forbidden", decodeMWError(t, rec).Code)

	admin := mustMakeJWT(t, secret, userClaims(float64(1), "admin"), jwt.SigningMethodHS256)
	rec = runRequest(t, e, http.MethodGet, "/admin/ping", "Bearer "+admin)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = runRequest(t, e, http.MethodGet, "/admin/ping", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// =====================
// RequestLogger
// =====================

func TestRequestLogger_AssignsRequestIDAndLogs(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	m := metrics.New()

	e := echo.New()
	e.Use(middleware.RequestLogger(zap.New(core), m))
	var ctxLogger *zap.Logger
	e.GET("/orders/:id", func(c echo.Context) error {
		ctxLogger = logging.FromContext(c.Request().Context(), nil)
		return c.NoContent(http.StatusOK)
	})

	rec := runRequest(t, e, http.MethodGet, "/orders/5", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	rid := rec.Header().Get(middleware.HeaderRequestID)
	assert.Len(t, rid, 36)
	require.NotNil(t, ctxLogger)

	entries := logs.FilterMessage("request").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, rid, fields["request_id"])
	assert.Equal(t, "/orders/:id", fields["route"])
	assert.Equal(t, int64(200), fields["status"])

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("/orders/:id", "200")))
}

func TestRequestLogger_KeepsInboundRequestIDAndLogsErrors(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)

	e := echo.New()
	e.Use(middleware.RequestLogger(zap.New(core), nil))
	e.GET("/boom", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "retry")
	})

	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	req.Header.Set(middleware.HeaderRequestID, "abc-123")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "abc-123", rec.Header().Get(middleware.HeaderRequestID))

	entries := logs.FilterMessage("request").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zap.ErrorLevel, entries[0].Level)
}
