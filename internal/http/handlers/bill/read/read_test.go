package read

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/billdesk/internal/lib/apperr"
	"github.com/magabrotheeeer/billdesk/internal/models"
)

// MockService реализует интерфейс read.Service
type MockService struct {
	mock.Mock
}

func (m *MockService) GetByID(ctx context.Context, id string) (*models.Bill, error) {
	args := m.Called(ctx, id)
	if res := args.Get(0); res != nil {
		return res.(*models.Bill), args.Error(1)
	}
	return nil, args.Error(1)
}

const billID = "0b7c4e4a-29a4-4d8e-b1b5-7b0e8a6f3c21"

func TestReadHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name           string
		url            string
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "успешное чтение счета",
			url:  "/api/bill/" + billID,
			setupMock: func(m *MockService) {
				m.On("GetByID", mock.Anything, billID).Return(&models.Bill{
					ID:        billID,
					InvoiceNo: "INV-1",
					BuyerName: "Acme",
				}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"buyer_name":"Acme"`,
		},
		{
			name:           "некорректный id в URL",
			url:            "/api/bill/abc",
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"status":"Error","kind":"validation","error":"invalid bill id"}`,
		},
		{
			name: "счет не найден",
			url:  "/api/bill/" + billID,
			setupMock: func(m *MockService) {
				m.On("GetByID", mock.Anything, billID).Return(nil, apperr.New(apperr.ErrNotFound, "bill not found"))
			},
			expectedStatus: http.StatusNotFound,
			expectedBody:   `{"status":"Error","kind":"not_found","error":"bill not found"}`,
		},
		{
			name: "необработанная ошибка",
			url:  "/api/bill/" + billID,
			setupMock: func(m *MockService) {
				m.On("GetByID", mock.Anything, billID).Return(nil, errors.New("boom"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `{"status":"Error","kind":"internal","error":"internal error"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockService)
			tt.setupMock(mockService)

			handler := New(logger, mockService)

			req := httptest.NewRequest(http.MethodGet, tt.url, nil)
			rctx := chi.NewRouteContext()
			rctx.URLParams.Add("id", strings.TrimPrefix(tt.url, "/api/bill/"))
			req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.expectedBody)
			mockService.AssertExpectations(t)
		})
	}
}
