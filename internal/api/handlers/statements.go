package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/clearledger/reconcile-backend/internal/api/dto"
	"github.com/clearledger/reconcile-backend/internal/infrastructure/storage"
	"github.com/clearledger/reconcile-backend/internal/normalize"
)

// StatementsHandler handles bank statement upload and listing.
type StatementsHandler struct {
	*Base
	normalizer *normalize.Normalizer
}

// NewStatementsHandler creates a new statements handler.
func NewStatementsHandler(repo storage.Repository, normalizer *normalize.Normalizer) *StatementsHandler {
	return &StatementsHandler{
		Base:       NewBase(repo),
		normalizer: normalizer,
	}
}

// Upload handles POST /api/statements/upload - normalizes and stores a
// statement file.
func (h *StatementsHandler) Upload(w http.ResponseWriter, r *http.Request) {
	filename, content, ok := h.readUpload(w, r)
	if !ok {
		return
	}

	institution := r.FormValue("institution")
	if institution == "" {
		institution = "Unknown"
	}

	records, ok := h.normalizeUpload(w, r, h.normalizer, filename, content)
	if !ok {
		return
	}

	batch := &storage.StatementBatch{
		ID:          uuid.NewString(),
		Filename:    filename,
		Institution: institution,
		FormatType:  formatType(filename, records),
		RecordCount: len(records),
		UploadedAt:  time.Now().UTC(),
	}

	externals := make([]storage.ExternalRecord, 0, len(records))
	for _, rec := range records {
		externals = append(externals, storage.ExternalRecord{
			ID:      uuid.NewString(),
			BatchID: batch.ID,
			Record:  rec,
		})
	}

	if err := h.repo.SaveStatementBatch(r.Context(), batch, externals); err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	h.WriteJSON(w, http.StatusCreated, dto.UploadResponse{
		BatchID:     batch.ID,
		Filename:    batch.Filename,
		FormatType:  batch.FormatType,
		RecordCount: batch.RecordCount,
	})
}

// List handles GET /api/statements - returns uploaded statement batches.
func (h *StatementsHandler) List(w http.ResponseWriter, r *http.Request) {
	batches, err := h.repo.ListStatementBatches(r.Context())
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	response := dto.StatementBatchListResponse{
		Batches: make([]dto.StatementBatchResponse, 0, len(batches)),
		Count:   len(batches),
	}
	for _, batch := range batches {
		response.Batches = append(response.Batches, dto.ToStatementBatchResponse(batch))
	}

	h.WriteJSON(w, http.StatusOK, response)
}
