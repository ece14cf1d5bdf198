// Package extract implements the document-extraction collaborator on top of
// the Gemini API. The normalize package drives it through the Extractor
// interface; everything here is transport detail.
package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"google.golang.org/genai"

	"github.com/clearledger/reconcile-backend/internal/normalize"
)

// DefaultModel is the inference model used for statement extraction.
const DefaultModel = "gemini-2.5-flash"

// extractionPrompt asks for strict JSON matching the ExtractedRow schema.
// The model still wraps output in fences often enough that Fetch cleans the
// response before decoding.
const extractionPrompt = `Act as a financial data parser. Analyze the uploaded bank statement document.
Extract all transaction rows found in the statement tables.

Return the data STRICTLY as a JSON list of objects.
Do not include markdown formatting (like ` + "```json" + `).

Use this specific schema for every item:
{
  "date": "YYYY-MM-DD",
  "description": "Full description string",
  "amount": number (negative for debits/withdrawals, positive for credits/deposits),
  "reference": "Transaction ID/Ref/Check# if present, else null"
}`

// GeminiExtractor uploads documents to the Gemini Files API, waits for them
// to become active, and runs the extraction prompt against them.
type GeminiExtractor struct {
	client *genai.Client
	model  string
	logger *slog.Logger

	mu    sync.Mutex
	files map[string]*genai.File
}

// Compile-time check that GeminiExtractor implements normalize.Extractor
var _ normalize.Extractor = (*GeminiExtractor)(nil)

// NewGeminiExtractor creates an extractor. apiKey may be empty when the
// environment already carries credentials; model falls back to DefaultModel.
func NewGeminiExtractor(ctx context.Context, apiKey, model string, logger *slog.Logger) (*GeminiExtractor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if model == "" {
		model = DefaultModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &GeminiExtractor{
		client: client,
		model:  model,
		logger: logger,
		files:  make(map[string]*genai.File),
	}, nil
}

// Submit uploads the document and returns the remote file name as handle.
func (g *GeminiExtractor) Submit(ctx context.Context, content []byte) (string, error) {
	file, err := g.client.Files.Upload(ctx, bytes.NewReader(content), &genai.UploadFileConfig{
		MIMEType:    "application/pdf",
		DisplayName: "statement-upload",
	})
	if err != nil {
		return "", fmt.Errorf("upload document: %w", err)
	}

	g.mu.Lock()
	g.files[file.Name] = file
	g.mu.Unlock()

	g.logger.Debug("document submitted for extraction", "file", file.Name)
	return file.Name, nil
}

// Poll refreshes the remote file state.
func (g *GeminiExtractor) Poll(ctx context.Context, handle string) (normalize.ExtractStatus, error) {
	file, err := g.client.Files.Get(ctx, handle, nil)
	if err != nil {
		return normalize.ExtractFailed, fmt.Errorf("get file %s: %w", handle, err)
	}

	g.mu.Lock()
	g.files[handle] = file
	g.mu.Unlock()

	switch file.State {
	case genai.FileStateActive:
		return normalize.ExtractReady, nil
	case genai.FileStateFailed:
		return normalize.ExtractFailed, nil
	default:
		return normalize.ExtractPending, nil
	}
}

// Fetch runs the extraction prompt against the uploaded file and decodes the
// returned JSON rows.
func (g *GeminiExtractor) Fetch(ctx context.Context, handle string) ([]normalize.ExtractedRow, error) {
	g.mu.Lock()
	file, ok := g.files[handle]
	g.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("unknown extraction handle %s", handle)
	}

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: extractionPrompt},
				{FileData: &genai.FileData{
					FileURI:  file.URI,
					MIMEType: file.MIMEType,
				}},
			},
		},
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return nil, fmt.Errorf("generate content: %w", err)
	}

	raw := resp.Text()
	if raw == "" {
		return nil, fmt.Errorf("empty response from model")
	}

	var rows []normalize.ExtractedRow
	if err := json.Unmarshal([]byte(cleanModelJSON(raw)), &rows); err != nil {
		return nil, fmt.Errorf("model returned invalid JSON: %w", err)
	}

	return rows, nil
}

// Release deletes the remote file. Best-effort: the files expire server-side
// anyway, so a failed delete is only logged.
func (g *GeminiExtractor) Release(handle string) {
	g.mu.Lock()
	delete(g.files, handle)
	g.mu.Unlock()

	if _, err := g.client.Files.Delete(context.Background(), handle, nil); err != nil {
		g.logger.Warn("failed to delete remote file", "file", handle, "error", err)
	}
}

// cleanModelJSON strips Markdown fences and surrounding junk when the model
// ignores the strict-JSON instruction.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	if start := strings.Index(s, "["); start != -1 {
		if end := strings.LastIndex(s, "]"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}

	return s
}
