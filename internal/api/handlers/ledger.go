package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/clearledger/reconcile-backend/internal/api/dto"
	"github.com/clearledger/reconcile-backend/internal/infrastructure/storage"
	"github.com/clearledger/reconcile-backend/internal/normalize"
)

// LedgerHandler handles internal ledger uploads.
type LedgerHandler struct {
	*Base
	normalizer *normalize.Normalizer
}

// NewLedgerHandler creates a new ledger handler.
func NewLedgerHandler(repo storage.Repository, normalizer *normalize.Normalizer) *LedgerHandler {
	return &LedgerHandler{
		Base:       NewBase(repo),
		normalizer: normalizer,
	}
}

// Upload handles POST /api/ledger/upload - normalizes and stores a ledger
// file.
func (h *LedgerHandler) Upload(w http.ResponseWriter, r *http.Request) {
	filename, content, ok := h.readUpload(w, r)
	if !ok {
		return
	}

	records, ok := h.normalizeUpload(w, r, h.normalizer, filename, content)
	if !ok {
		return
	}

	batch := &storage.LedgerBatch{
		ID:          uuid.NewString(),
		Filename:    filename,
		RecordCount: len(records),
		UploadedAt:  time.Now().UTC(),
	}

	internals := make([]storage.InternalRecord, 0, len(records))
	for _, rec := range records {
		internals = append(internals, storage.InternalRecord{
			ID:      uuid.NewString(),
			BatchID: batch.ID,
			Record:  rec,
		})
	}

	if err := h.repo.SaveLedgerBatch(r.Context(), batch, internals); err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	h.WriteJSON(w, http.StatusCreated, dto.UploadResponse{
		BatchID:     batch.ID,
		Filename:    batch.Filename,
		FormatType:  formatType(filename, records),
		RecordCount: batch.RecordCount,
	})
}
