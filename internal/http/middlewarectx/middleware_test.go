package middlewarectx_test

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/nextgig-subscriptions/internal/http/middlewarectx"
	"github.com/magabrotheeeer/nextgig-subscriptions/internal/lib/fingerprint"
	"github.com/magabrotheeeer/nextgig-subscriptions/internal/lib/jwt"
	"github.com/magabrotheeeer/nextgig-subscriptions/internal/session"
)

type TokenParserMock struct {
	mock.Mock
}

func (m *TokenParserMock) ParseToken(token string) (*jwt.SessionClaims, error) {
	args := m.Called(token)
	claims, _ := args.Get(0).(*jwt.SessionClaims)
	return claims, args.Error(1)
}

type recorderMock struct {
	mu     sync.Mutex
	routes []string
	codes  []int
}

func (r *recorderMock) RecordHTTPRequest(route string, statusCode int, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes = append(r.routes, route)
	r.codes = append(r.codes, statusCode)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestSessionMiddleware(t *testing.T) {
	claims := &jwt.SessionClaims{Email: "jane@example.com"}
	claims.Subject = "user-1"

	tests := []struct {
		name           string
		authHeader     string
		setupMock      func(m *TokenParserMock)
		wantStatusCode int
		wantCalled     bool
	}{
		{
			name:           "missing Authorization header",
			authHeader:     "",
			setupMock:      func(_ *TokenParserMock) {},
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name:           "invalid Authorization header prefix",
			authHeader:     "Basic sometoken",
			setupMock:      func(_ *TokenParserMock) {},
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name:       "token validation error",
			authHeader: "Bearer token",
			setupMock: func(m *TokenParserMock) {
				m.On("ParseToken", "token").Return(nil, errors.New("token is expired"))
			},
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name:       "token without subject",
			authHeader: "Bearer token",
			setupMock: func(m *TokenParserMock) {
				m.On("ParseToken", "token").Return(&jwt.SessionClaims{Email: "jane@example.com"}, nil)
			},
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name:       "valid token",
			authHeader: "Bearer token",
			setupMock: func(m *TokenParserMock) {
				m.On("ParseToken", "token").Return(claims, nil)
			},
			wantStatusCode: http.StatusOK,
			wantCalled:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parser := new(TokenParserMock)
			tt.setupMock(parser)

			called := false
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				sess, ok := session.FromContext(r.Context())
				assert.True(t, ok)
				assert.Equal(t, session.Session{UserID: "user-1", Email: "jane@example.com"}, sess)
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			rr := httptest.NewRecorder()

			middlewarectx.SessionMiddleware(parser, newNoopLogger())(next).ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatusCode, rr.Code)
			assert.Equal(t, tt.wantCalled, called)
			parser.AssertExpectations(t)
		})
	}
}

func TestSessionMiddlewareWithJWTMaker(t *testing.T) {
	maker := jwt.NewJWTMaker("test-secret", "nextgig", time.Hour)
	token, err := maker.GenerateToken("user-42", "sam@example.com")
	require.NoError(t, err)

	var got session.Session
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = session.FromContext(r.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()

	middlewarectx.SessionMiddleware(maker, newNoopLogger())(next).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "user-42", got.UserID)
	assert.Equal(t, "sam@example.com", got.Email)

	other := jwt.NewJWTMaker("another-secret", "nextgig", time.Hour)
	forged, err := other.GenerateToken("user-42", "sam@example.com")
	require.NoError(t, err)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+forged)
	rr = httptest.NewRecorder()

	middlewarectx.SessionMiddleware(maker, newNoopLogger())(next).ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestRateLimitMiddleware(t *testing.T) {
	limiter := middlewarectx.NewRateLimiter(1, 2)
	handler := middlewarectx.RateLimitMiddleware(limiter, newNoopLogger())(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
	)

	do := func(remote string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = remote
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr.Code
	}

	assert.Equal(t, http.StatusOK, do("10.0.0.1:1000"))
	assert.Equal(t, http.StatusOK, do("10.0.0.1:1001"))
	assert.Equal(t, http.StatusTooManyRequests, do("10.0.0.1:1002"))

	// другой клиент имеет собственный лимит
	assert.Equal(t, http.StatusOK, do("10.0.0.2:1000"))
}

func TestRateLimiterRefills(t *testing.T) {
	limiter := middlewarectx.NewRateLimiter(100, 1)

	assert.True(t, limiter.Allow("client"))
	assert.False(t, limiter.Allow("client"))

	time.Sleep(30 * time.Millisecond)
	assert.True(t, limiter.Allow("client"))
}

func TestFingerprintMiddleware(t *testing.T) {
	var got string
	handler := middlewarectx.FingerprintMiddleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got = fingerprint.FromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(fingerprint.Header, "device-123")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "device-123", got)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("User-Agent", "Mozilla/5.0")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	assert.Len(t, got, 32)
}

func TestRequestLogger(t *testing.T) {
	rec := &recorderMock{}

	r := chi.NewRouter()
	r.Use(middlewarectx.RequestLogger(newNoopLogger(), rec))
	r.Get("/api/v1/items/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	r.Get("/plain", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	for _, path := range []string{"/api/v1/items/7", "/plain"} {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, []string{"/api/v1/items/{id}", "/plain"}, rec.routes)
	assert.Equal(t, []int{http.StatusTeapot, http.StatusOK}, rec.codes)
}
