package create

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/nextgig-subscriptions/internal/lib/fingerprint"
	"github.com/magabrotheeeer/nextgig-subscriptions/internal/models"
	"github.com/magabrotheeeer/nextgig-subscriptions/internal/services/subscription"
	"github.com/magabrotheeeer/nextgig-subscriptions/internal/session"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) Create(ctx context.Context, sess session.Session, checkout subscription.CheckoutResult, fp string) (*subscription.CreateResult, error) {
	args := m.Called(ctx, sess, checkout, fp)
	if res := args.Get(0); res != nil {
		return res.(*subscription.CreateResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestCreateHandler(t *testing.T) {
	sess := session.Session{UserID: "user-1", Email: "jane@example.com"}
	trialEnd := time.Date(2025, 3, 8, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name           string
		body           string
		withSession    bool
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:        "подписка сохранена с пробным периодом",
			body:        `{"subscription_id":"I-TRIAL","order_id":"O-1"}`,
			withSession: true,
			setupMock: func(m *MockService) {
				m.On("Create", mock.Anything, sess, subscription.CheckoutResult{SubscriptionID: "I-TRIAL", OrderID: "O-1"}, "device-1").
					Return(&subscription.CreateResult{
						SubscriptionID: "I-TRIAL",
						Status:         models.StatusTrial,
						OnTrial:        true,
						TrialEndDate:   &trialEnd,
						TrialDuration:  7,
					}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"trial_duration":7`,
		},
		{
			name:           "без сессии",
			body:           `{"subscription_id":"I-1"}`,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   `{"status":"Error","error":"unauthorized"}`,
		},
		{
			name:           "некорректный JSON",
			body:           `{"subscription_id":`,
			withSession:    true,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `"error":"invalid request body"`,
		},
		{
			name:           "не передан идентификатор подписки",
			body:           `{"order_id":"O-1"}`,
			withSession:    true,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody:   `field SubscriptionID is a required field`,
		},
		{
			name:        "у пользователя уже есть текущая подписка",
			body:        `{"subscription_id":"I-2"}`,
			withSession: true,
			setupMock: func(m *MockService) {
				m.On("Create", mock.Anything, sess, mock.Anything, "device-1").
					Return(nil, fmt.Errorf("subscription.Create: %w", &models.DuplicateSubscriptionError{
						Existing: []models.ExistingSubscription{{ID: "I-1", Status: models.StatusActive}},
					}))
			},
			expectedStatus: http.StatusConflict,
			expectedBody:   `"existingSubscriptions":[{"id":"I-1","status":"active"`,
		},
		{
			name:        "ошибка хранилища",
			body:        `{"subscription_id":"I-3"}`,
			withSession: true,
			setupMock: func(m *MockService) {
				m.On("Create", mock.Anything, sess, mock.Anything, "device-1").Return(nil, errors.New("db error"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `{"status":"Error","error":"failed to store subscription"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockService)
			tt.setupMock(mockService)

			handler := New(newNoopLogger(), mockService, false)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/subscriptions", bytes.NewBufferString(tt.body))
			ctx := fingerprint.WithFingerprint(req.Context(), "device-1")
			if tt.withSession {
				ctx = session.WithSession(ctx, sess)
			}
			req = req.WithContext(ctx)
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.expectedBody)
			mockService.AssertExpectations(t)
		})
	}
}

func TestCreateHandlerDetails(t *testing.T) {
	mockService := new(MockService)
	mockService.On("Create", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("connection refused"))

	handler := New(newNoopLogger(), mockService, true)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/subscriptions", bytes.NewBufferString(`{"subscription_id":"I-1"}`))
	req = req.WithContext(session.WithSession(req.Context(), session.Session{UserID: "user-1"}))
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), `"details":"connection refused"`)
}
