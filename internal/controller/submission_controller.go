// internal/controller/submission_controller.go
package controller

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/unclebandit/spinwin-backend/internal/codec"
	appErrors "github.com/unclebandit/spinwin-backend/internal/errors"
	"github.com/unclebandit/spinwin-backend/internal/logging"
	"github.com/unclebandit/spinwin-backend/internal/middleware"
	"github.com/unclebandit/spinwin-backend/internal/service"
)

const downloadFilename = "customers.xlsx"

type SubmissionController struct {
	SubmissionService *service.SubmissionService
	Logger            *zap.Logger
}

func NewSubmissionController(svc *service.SubmissionService, logger *zap.Logger) *SubmissionController {
	return &SubmissionController{SubmissionService: svc, Logger: logging.OrNop(logger)}
}

// Submit handles POST /submit.
func (c *SubmissionController) Submit(w http.ResponseWriter, r *http.Request) {
	var body service.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	res, err := c.SubmissionService.Submit(r.Context(), body)
	if err != nil {
		var (
			ve *appErrors.ValidationError
			ce *appErrors.ConflictError
		)
		switch {
		case errors.As(err, &ve):
			writeError(w, http.StatusBadRequest, ve.Message)
		case errors.As(err, &ce):
			writeError(w, http.StatusConflict, ce.Error())
		default:
			c.Logger.Error("failed to save submission", zap.Error(err), requestID(r))
			writeError(w, http.StatusInternalServerError, "Failed to save data")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"name":    res.Name,
	})
}

// SubmitOffer handles POST /submit-offer.
func (c *SubmissionController) SubmitOffer(w http.ResponseWriter, r *http.Request) {
	var body service.OfferRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	res, err := c.SubmissionService.SubmitOffer(r.Context(), body)
	if err != nil {
		var ve *appErrors.ValidationError
		if errors.As(err, &ve) {
			writeError(w, http.StatusBadRequest, ve.Message)
			return
		}
		c.Logger.Error("failed to save offer", zap.Error(err), requestID(r))
		writeError(w, http.StatusInternalServerError, "Failed to save offer")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"name":    res.Name,
		"offer":   res.Offer,
	})
}

// Download handles GET /download and streams the ledger as an attachment.
func (c *SubmissionController) Download(w http.ResponseWriter, r *http.Request) {
	data, err := c.SubmissionService.ExportDataset(r.Context())
	if errors.Is(err, appErrors.ErrDatasetNotFound) {
		http.Error(w, "No customer data available yet", http.StatusNotFound)
		return
	}
	if err != nil {
		c.Logger.Error("failed to read ledger for download", zap.Error(err), requestID(r))
		http.Error(w, "Error downloading file", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", codec.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+downloadFilename+`"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		c.Logger.Warn("download interrupted", zap.Error(err), requestID(r))
	}
}

func requestID(r *http.Request) zap.Field {
	return zap.String("request_id", middleware.GetRequestID(r.Context()))
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{
		"success": false,
		"error":   msg,
	})
}
