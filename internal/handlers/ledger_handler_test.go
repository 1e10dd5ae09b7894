package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"trades-api/internal/config"
	"trades-api/internal/models"
	"trades-api/internal/services"
)

type MockLedgerService struct {
	mock.Mock
}

func (m *MockLedgerService) Ingest(ctx context.Context, filename string, r io.Reader) (*models.IngestReport, error) {
	body, _ := io.ReadAll(r)
	args := m.Called(ctx, filename, string(body))
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.IngestReport), args.Error(1)
}

func (m *MockLedgerService) Balances(ctx context.Context, timestamp string) (models.Balances, error) {
	args := m.Called(ctx, timestamp)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(models.Balances), args.Error(1)
}

func (m *MockLedgerService) Report(ctx context.Context, batchID string) (*models.IngestReport, error) {
	args := m.Called(ctx, batchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.IngestReport), args.Error(1)
}

func (m *MockLedgerService) RefreshLedgerStats(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockLedgerService) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func setupRouter(t *testing.T, svc services.LedgerService) (*gin.Engine, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logrus.New()
	log.SetOutput(io.Discard)

	cfg := config.Load()
	cfg.Upload.Dir = t.TempDir()
	cfg.Upload.MaxFileSize = 1 << 20

	h := NewLedgerHandler(svc, cfg, log)
	router := gin.New()
	router.GET("/", h.Welcome)
	router.POST("/upload-csv", h.UploadCSV)
	router.POST("/balance", h.GetBalance)
	router.GET("/uploads/:id", h.GetReport)
	return router, cfg.Upload.Dir
}

func multipartBody(t *testing.T, field, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestLedgerHandler_Welcome(t *testing.T) {
	router, _ := setupRouter(t, new(MockLedgerService))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Welcome to the Trade API", w.Body.String())
}

func TestLedgerHandler_GetBalance(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		setup      func(*MockLedgerService)
		wantStatus int
		wantBody   string
		wantKind   models.ErrorKind
	}{
		{
			name: "balances as JSON numbers",
			body: `{"timestamp":"2024-03-02T00:00:00Z"}`,
			setup: func(m *MockLedgerService) {
				m.On("Balances", mock.Anything, "2024-03-02T00:00:00Z").Return(models.Balances{
					"BTC": decimal.RequireFromString("1.0"),
					"ETH": decimal.RequireFromString("2"),
				}, nil)
			},
			wantStatus: http.StatusOK,
			wantBody:   `{"BTC":1,"ETH":2}`,
		},
		{
			name: "empty ledger",
			body: `{"timestamp":"2024-03-02"}`,
			setup: func(m *MockLedgerService) {
				m.On("Balances", mock.Anything, "2024-03-02").Return(models.Balances{}, nil)
			},
			wantStatus: http.StatusOK,
			wantBody:   `{}`,
		},
		{
			name: "invalid timestamp",
			body: `{"timestamp":"not-a-date"}`,
			setup: func(m *MockLedgerService) {
				m.On("Balances", mock.Anything, "not-a-date").
					Return(nil, fmt.Errorf("%w: invalid timestamp format %q", models.ErrInput, "not-a-date"))
			},
			wantStatus: http.StatusBadRequest,
			wantKind:   models.KindInput,
		},
		{
			name:       "malformed body",
			body:       `timestamp=now`,
			setup:      func(*MockLedgerService) {},
			wantStatus: http.StatusBadRequest,
			wantKind:   models.KindInput,
		},
		{
			name: "store unavailable",
			body: `{"timestamp":"2024-03-02"}`,
			setup: func(m *MockLedgerService) {
				m.On("Balances", mock.Anything, "2024-03-02").
					Return(nil, fmt.Errorf("%w: connection refused", models.ErrRetrieval))
			},
			wantStatus: http.StatusServiceUnavailable,
			wantKind:   models.KindRetrieval,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockLedgerService)
			tt.setup(svc)
			router, _ := setupRouter(t, svc)

			req := httptest.NewRequest(http.MethodPost, "/balance", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantBody != "" {
				assert.JSONEq(t, tt.wantBody, w.Body.String())
			}
			if tt.wantKind != "" {
				assert.Equal(t, tt.wantKind, decodeError(t, w).Error)
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestLedgerHandler_UploadCSV(t *testing.T) {
	const csvContent = "UTC_Time,Operation,Market,Buy/Sell Amount,Price\n01-03-24 10:00,BUY,BTC/USDT,1.5,60000\n"

	t.Run("ingests the uploaded file and removes it", func(t *testing.T) {
		svc := new(MockLedgerService)
		svc.On("Ingest", mock.Anything, "trades.csv", csvContent).Return(&models.IngestReport{
			BatchID:  "b-1",
			Filename: "trades.csv",
			Accepted: 1,
			Errors:   []models.RowError{},
		}, nil)
		router, dir := setupRouter(t, svc)

		body, contentType := multipartBody(t, "file", "trades.csv", csvContent)
		req := httptest.NewRequest(http.MethodPost, "/upload-csv", body)
		req.Header.Set("Content-Type", contentType)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var report models.IngestReport
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
		assert.Equal(t, "b-1", report.BatchID)
		assert.Equal(t, 1, report.Accepted)

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Empty(t, entries)
		svc.AssertExpectations(t)
	})

	t.Run("missing file", func(t *testing.T) {
		svc := new(MockLedgerService)
		router, _ := setupRouter(t, svc)

		body, contentType := multipartBody(t, "other", "trades.csv", csvContent)
		req := httptest.NewRequest(http.MethodPost, "/upload-csv", body)
		req.Header.Set("Content-Type", contentType)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, models.KindInput, decodeError(t, w).Error)
		svc.AssertNotCalled(t, "Ingest", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("storage failure", func(t *testing.T) {
		svc := new(MockLedgerService)
		svc.On("Ingest", mock.Anything, "trades.csv", csvContent).
			Return(nil, fmt.Errorf("%w: disk full", models.ErrStorage))
		router, _ := setupRouter(t, svc)

		body, contentType := multipartBody(t, "file", "trades.csv", csvContent)
		req := httptest.NewRequest(http.MethodPost, "/upload-csv", body)
		req.Header.Set("Content-Type", contentType)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, models.KindStorage, decodeError(t, w).Error)
	})
}

func TestLedgerHandler_GetReport(t *testing.T) {
	svc := new(MockLedgerService)
	svc.On("Report", mock.Anything, "b-1").Return(&models.IngestReport{BatchID: "b-1", Accepted: 2}, nil)
	svc.On("Report", mock.Anything, "missing").Return(nil, services.ErrReportNotFound)
	svc.On("Report", mock.Anything, "broken").Return(nil, errors.New("redis: connection reset"))
	router, _ := setupRouter(t, svc)

	for path, want := range map[string]int{
		"/uploads/b-1":     http.StatusOK,
		"/uploads/missing": http.StatusNotFound,
		"/uploads/broken":  http.StatusInternalServerError,
	} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, want, w.Code, path)
	}
}

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

func TestHealthHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("healthy", func(t *testing.T) {
		h := NewHealthHandler(map[string]Pinger{"ledger": stubPinger{}}, "1.0.0", "test")
		router := gin.New()
		router.GET("/health", h.Health)
		router.GET("/health/ready", h.Readiness)
		router.GET("/health/live", h.Liveness)

		for _, path := range []string{"/health", "/health/ready", "/health/live"} {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
			assert.Equal(t, http.StatusOK, w.Code, path)
		}
	})

	t.Run("ledger down", func(t *testing.T) {
		h := NewHealthHandler(map[string]Pinger{
			"ledger": stubPinger{err: errors.New("no reachable servers")},
			"cache":  stubPinger{},
		}, "1.0.0", "test")
		router := gin.New()
		router.GET("/health/ready", h.Readiness)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)

		var resp ReadinessResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.False(t, resp.Ready)
		assert.Equal(t, "unhealthy", resp.Services["ledger"].Status)
		assert.Equal(t, "healthy", resp.Services["cache"].Status)
	})
}

