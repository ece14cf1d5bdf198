// Package reconcile implements the matching engine that pairs external
// (bank) records with internal (ledger) records.
//
// A run makes three ordered passes over a shrinking pool of available
// internal records:
//
//  1. exact: amount (or its negation) and date match exactly, confidence 1.0
//  2. fuzzy: amount matches and the date is within the fuzzy window, 0.85
//  3. mismatch: everything still unresolved gets a terminal match with no
//     internal reference, confidence 0.0
//
// An internal record leaves the pool the instant it is claimed, so nothing
// can be claimed twice within a run. Every external record with no prior
// match ends the run with exactly one match. Internal records left in the
// pool are ledger-only deviations, visible afterwards as internal records
// with no match.
//
// Runs must not overlap: two concurrent runs reading the same unmatched
// pools could claim the same internal record. The caller serializes.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/clearledger/reconcile-backend/internal/domain/record"
	"github.com/clearledger/reconcile-backend/internal/infrastructure/storage"
	"github.com/clearledger/reconcile-backend/internal/progress"
)

// Engine executes reconciliation runs against a repository.
type Engine struct {
	repo   Repository
	config Config
	logger *slog.Logger
}

// NewEngine creates a matching engine.
func NewEngine(repo Repository, config Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if config.FuzzyWindowDays == 0 {
		config.FuzzyWindowDays = DefaultConfig().FuzzyWindowDays
	}
	return &Engine{repo: repo, config: config, logger: logger}
}

// Run reconciles all currently-unmatched records and returns run statistics.
// sink may be nil. A persistence failure aborts the run; matches already
// created stay valid, there is no compensating rollback.
func (e *Engine) Run(ctx context.Context, sink progress.Sink) (*Stats, error) {
	stats := &Stats{}

	externals, err := e.repo.ListUnmatchedExternal(ctx)
	if err != nil {
		return stats, fmt.Errorf("list unmatched external: %w", err)
	}
	internals, err := e.repo.ListUnmatchedInternal(ctx)
	if err != nil {
		return stats, fmt.Errorf("list unmatched internal: %w", err)
	}

	stats.ExternalScanned = len(externals)
	stats.InternalScanned = len(internals)

	if len(externals) == 0 {
		return stats, nil
	}

	e.logger.Info("reconciliation run started",
		"external", len(externals),
		"internal", len(internals))

	// The available pool shrinks as internal records are claimed. It is
	// mutated only by the claim step, never while being scanned.
	pool := append([]storage.InternalRecord(nil), internals...)
	resolved := make(map[string]bool, len(externals))

	// Pass 1: exact amount and date.
	for _, ext := range externals {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		i := findCandidate(pool, ext, func(internal storage.InternalRecord) bool {
			return record.SameDay(internal.Record.OccurredOn, ext.Record.OccurredOn)
		})
		if i < 0 {
			continue
		}

		if err := e.claim(ctx, sink, ext, &pool, i, storage.MatchExact, exactConfidence); err != nil {
			return stats, err
		}
		resolved[ext.ID] = true
		stats.ExactMatches++
	}

	// Pass 2: exact amount, date within the fuzzy window.
	for _, ext := range externals {
		if resolved[ext.ID] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		i := findCandidate(pool, ext, func(internal storage.InternalRecord) bool {
			return record.DaysBetween(internal.Record.OccurredOn, ext.Record.OccurredOn) <= e.config.FuzzyWindowDays
		})
		if i < 0 {
			continue
		}

		if err := e.claim(ctx, sink, ext, &pool, i, storage.MatchFuzzyDate, fuzzyConfidence); err != nil {
			return stats, err
		}
		resolved[ext.ID] = true
		stats.FuzzyMatches++
	}

	// Final pass: everything left gets an explicit mismatch so every
	// external record ends with a terminal decision.
	for _, ext := range externals {
		if resolved[ext.ID] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		match, err := e.repo.CreateMatch(ctx, storage.CreateMatchParams{
			ExternalID: ext.ID,
			Kind:       storage.MatchMismatch,
			Confidence: mismatchConfidence,
		})
		if err != nil {
			return stats, fmt.Errorf("create mismatch: %w", err)
		}
		e.emit(ctx, sink, match, ext, nil)
	}

	e.logger.Info("reconciliation run finished",
		"exact", stats.ExactMatches,
		"fuzzy", stats.FuzzyMatches,
		"mismatched", stats.ExternalScanned-stats.ExactMatches-stats.FuzzyMatches,
		"ledger_left", len(pool))

	return stats, nil
}

// findCandidate returns the index of the first available internal record
// whose amount matches under sign tolerance and that passes dateOK, or -1.
// First-available wins; pool order is the tie-break.
func findCandidate(pool []storage.InternalRecord, ext storage.ExternalRecord, dateOK func(storage.InternalRecord) bool) int {
	for i, internal := range pool {
		if record.AmountMatches(internal.Record.Amount, ext.Record.Amount) && dateOK(internal) {
			return i
		}
	}
	return -1
}

// claim persists the match and removes the internal record from the pool as
// one step, so no later candidate scan can see a claimed record.
func (e *Engine) claim(ctx context.Context, sink progress.Sink, ext storage.ExternalRecord, pool *[]storage.InternalRecord, i int, kind storage.MatchKind, confidence float64) error {
	internal := (*pool)[i]

	match, err := e.repo.CreateMatch(ctx, storage.CreateMatchParams{
		ExternalID: ext.ID,
		InternalID: &internal.ID,
		Kind:       kind,
		Confidence: confidence,
	})
	if err != nil {
		return fmt.Errorf("create %s match: %w", kind, err)
	}

	*pool = append((*pool)[:i], (*pool)[i+1:]...)

	e.emit(ctx, sink, match, ext, &internal)
	return nil
}

// emit reports a created match to the sink. Delivery is best-effort and a
// short pacing delay may follow so a live stream stays consumable.
func (e *Engine) emit(ctx context.Context, sink progress.Sink, match *storage.Match, ext storage.ExternalRecord, internal *storage.InternalRecord) {
	if sink == nil {
		return
	}

	ledgerDesc := "-"
	if internal != nil {
		ledgerDesc = internal.Record.Description
	}

	sink.Publish(progress.Event{
		MatchID:    match.ID,
		Kind:       string(match.Kind),
		Amount:     ext.Record.Amount.String(),
		Date:       ext.Record.OccurredOn.Format("2006-01-02"),
		BankDesc:   ext.Record.Description,
		LedgerDesc: ledgerDesc,
		Confidence: match.Confidence,
	})

	if e.config.EmitDelay > 0 {
		select {
		case <-ctx.Done():
		case <-time.After(e.config.EmitDelay):
		}
	}
}
