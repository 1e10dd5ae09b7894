package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"trades-api/internal/config"
	"trades-api/internal/models"
	"trades-api/internal/services"
)

const welcomeMessage = "Welcome to the Trade API"

type LedgerHandler struct {
	ledger         services.LedgerService
	upload         config.UploadConfig
	ingestTimeout  time.Duration
	balanceTimeout time.Duration
	logger         *logrus.Logger
}

func NewLedgerHandler(ledger services.LedgerService, cfg *config.Config, logger *logrus.Logger) *LedgerHandler {
	return &LedgerHandler{
		ledger:         ledger,
		upload:         cfg.Upload,
		ingestTimeout:  cfg.Ingest.Timeout,
		balanceTimeout: cfg.Balance.QueryTimeout,
		logger:         logger,
	}
}

type BalanceRequest struct {
	Timestamp string `json:"timestamp"`
}

// ErrorResponse is the body of every failed ledger request.
type ErrorResponse struct {
	Error   models.ErrorKind `json:"error"`
	Message string           `json:"message"`
}

func (h *LedgerHandler) Welcome(c *gin.Context) {
	c.String(http.StatusOK, welcomeMessage)
}

// UploadCSV stores the multipart file under UPLOAD_DIR for the length of the
// request and ingests it.
func (h *LedgerHandler) UploadCSV(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.upload.MaxFileSize+(1<<20))

	fileHeader, err := c.FormFile(h.upload.FormField)
	if err != nil {
		h.respondError(c, fmt.Errorf("%w: multipart field %q with a CSV file is required", models.ErrInput, h.upload.FormField))
		return
	}
	if fileHeader.Size > h.upload.MaxFileSize {
		h.respondError(c, fmt.Errorf("%w: file exceeds %d bytes", models.ErrInput, h.upload.MaxFileSize))
		return
	}

	if err := os.MkdirAll(h.upload.Dir, 0o750); err != nil {
		h.respondError(c, fmt.Errorf("failed to prepare upload dir: %w", err))
		return
	}
	path := filepath.Join(h.upload.Dir, uuid.New().String()+".csv")
	if err := c.SaveUploadedFile(fileHeader, path); err != nil {
		h.respondError(c, fmt.Errorf("failed to save upload: %w", err))
		return
	}
	defer func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			h.logger.WithError(err).WithField("path", path).Warn("Failed to remove upload file")
		}
	}()

	file, err := os.Open(path)
	if err != nil {
		h.respondError(c, fmt.Errorf("failed to open upload: %w", err))
		return
	}
	defer file.Close()

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.ingestTimeout)
	defer cancel()

	report, err := h.ledger.Ingest(ctx, fileHeader.Filename, file)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

func (h *LedgerHandler) GetBalance(c *gin.Context) {
	var req BalanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, fmt.Errorf("%w: request body must be a JSON object with a timestamp", models.ErrInput))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.balanceTimeout)
	defer cancel()

	balances, err := h.ledger.Balances(ctx, req.Timestamp)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, balances)
}

func (h *LedgerHandler) GetReport(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.balanceTimeout)
	defer cancel()

	report, err := h.ledger.Report(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, services.ErrReportNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": err.Error()})
			return
		}
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

func (h *LedgerHandler) respondError(c *gin.Context, err error) {
	kind := models.KindOf(err)
	status := statusFor(kind)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.JSON(status, ErrorResponse{Error: kind, Message: err.Error()})
}

func statusFor(kind models.ErrorKind) int {
	switch kind {
	case models.KindInput, models.KindParse, models.KindFormat, models.KindValue:
		return http.StatusBadRequest
	case models.KindRetrieval:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
