package handlers

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/clearledger/reconcile-backend/internal/api/dto"
	"github.com/clearledger/reconcile-backend/internal/domain/record"
	"github.com/clearledger/reconcile-backend/internal/normalize"
)

// maxUploadBytes caps the in-memory portion of a multipart upload.
const maxUploadBytes = 32 << 20

// readUpload extracts the uploaded file from a multipart request. It writes
// the error response itself when the request is unusable.
func (b *Base) readUpload(w http.ResponseWriter, r *http.Request) (string, []byte, bool) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		b.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid multipart request"))
		return "", nil, false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		b.WriteError(w, http.StatusBadRequest, dto.BadRequestError("file is required"))
		return "", nil, false
	}
	defer func() { _ = file.Close() }()

	content, err := io.ReadAll(file)
	if err != nil {
		b.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return "", nil, false
	}

	return header.Filename, content, true
}

// normalizeUpload runs the file through the normalization pipeline and maps
// pipeline failures to API errors.
func (b *Base) normalizeUpload(w http.ResponseWriter, r *http.Request, normalizer *normalize.Normalizer, filename string, content []byte) ([]record.Record, bool) {
	records, err := normalizer.Normalize(r.Context(), filename, content, normalize.Options{})
	if err != nil {
		var parseErr *normalize.ParseError
		switch {
		case errors.Is(err, normalize.ErrUnsupportedFormat):
			b.WriteError(w, http.StatusBadRequest, dto.BadRequestError(err.Error()))
		case errors.As(err, &parseErr):
			b.WriteError(w, http.StatusUnprocessableEntity, dto.ValidationError(parseErr.Error()))
		default:
			b.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		}
		return nil, false
	}
	return records, true
}

// formatType labels a batch by its parsed source format, falling back to the
// file extension for empty batches.
func formatType(filename string, records []record.Record) string {
	if len(records) > 0 {
		return string(records[0].Format)
	}
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
}
