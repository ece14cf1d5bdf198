package reconcile_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clearledger/reconcile-backend/internal/domain/reconcile"
	"github.com/clearledger/reconcile-backend/internal/domain/record"
	"github.com/clearledger/reconcile-backend/internal/infrastructure/storage"
	"github.com/clearledger/reconcile-backend/internal/progress"
)

type captureSink struct {
	events []progress.Event
}

func (c *captureSink) Publish(e progress.Event) {
	c.events = append(c.events, e)
}

func rec(date string, amount string, desc string) record.Record {
	d, err := time.Parse("2006-01-02", date)
	if err != nil {
		panic(err)
	}
	return record.Record{
		OccurredOn:  d,
		Amount:      decimal.RequireFromString(amount),
		Description: desc,
		Format:      record.SourceCSV,
		Confidence:  1.0,
	}
}

// seed loads external and internal records into a fresh mock repository.
func seed(t *testing.T, externals, internals []record.Record) *storage.MockRepository {
	t.Helper()
	repo := storage.NewMockRepository()
	ctx := context.Background()

	ext := make([]storage.ExternalRecord, len(externals))
	for i, r := range externals {
		ext[i] = storage.ExternalRecord{Record: r}
	}
	require.NoError(t, repo.SaveStatementBatch(ctx, &storage.StatementBatch{Filename: "bank.csv", Institution: "Bank", FormatType: "csv"}, ext))

	intl := make([]storage.InternalRecord, len(internals))
	for i, r := range internals {
		intl[i] = storage.InternalRecord{Record: r}
	}
	require.NoError(t, repo.SaveLedgerBatch(ctx, &storage.LedgerBatch{Filename: "ledger.csv"}, intl))

	return repo
}

func run(t *testing.T, repo *storage.MockRepository, sink progress.Sink) *reconcile.Stats {
	t.Helper()
	engine := reconcile.NewEngine(repo, reconcile.DefaultConfig(), nil)
	stats, err := engine.Run(context.Background(), sink)
	require.NoError(t, err)
	return stats
}

func matchKinds(repo *storage.MockRepository) map[storage.MatchKind]int {
	kinds := make(map[storage.MatchKind]int)
	for _, m := range repo.Matches() {
		kinds[m.Kind]++
	}
	return kinds
}

func TestEngine_ExactMatch(t *testing.T) {
	repo := seed(t,
		[]record.Record{rec("2024-03-01", "-150.00", "CARD PAYMENT")},
		[]record.Record{rec("2024-03-01", "-150.00", "AP ENTRY")},
	)

	stats := run(t, repo, nil)

	assert.Equal(t, 1, stats.ExternalScanned)
	assert.Equal(t, 1, stats.InternalScanned)
	assert.Equal(t, 1, stats.ExactMatches)
	assert.Equal(t, 0, stats.FuzzyMatches)

	matches := repo.Matches()
	require.Len(t, matches, 1)
	assert.Equal(t, storage.MatchExact, matches[0].Kind)
	assert.Equal(t, 1.0, matches[0].Confidence)
	assert.NotNil(t, matches[0].InternalID)
}

func TestEngine_SignTolerance(t *testing.T) {
	// One side reports debits negative, the other as positive magnitudes.
	repo := seed(t,
		[]record.Record{rec("2024-03-01", "-150.00", "OUTFLOW")},
		[]record.Record{rec("2024-03-01", "150.00", "LEDGER SIDE")},
	)

	stats := run(t, repo, nil)

	assert.Equal(t, 1, stats.ExactMatches)
	matches := repo.Matches()
	require.Len(t, matches, 1)
	assert.Equal(t, storage.MatchExact, matches[0].Kind)
}

func TestEngine_FuzzyWindowBoundary(t *testing.T) {
	t.Run("two days off matches as fuzzy", func(t *testing.T) {
		repo := seed(t,
			[]record.Record{rec("2024-03-01", "500.00", "X")},
			[]record.Record{rec("2024-03-03", "500.00", "Y")},
		)

		stats := run(t, repo, nil)

		assert.Equal(t, 0, stats.ExactMatches)
		assert.Equal(t, 1, stats.FuzzyMatches)

		matches := repo.Matches()
		require.Len(t, matches, 1)
		assert.Equal(t, storage.MatchFuzzyDate, matches[0].Kind)
		assert.Equal(t, 0.85, matches[0].Confidence)
	})

	t.Run("three days off falls through to mismatch", func(t *testing.T) {
		repo := seed(t,
			[]record.Record{rec("2024-03-01", "500.00", "X")},
			[]record.Record{rec("2024-03-04", "500.00", "Y")},
		)

		stats := run(t, repo, nil)

		assert.Equal(t, 0, stats.ExactMatches)
		assert.Equal(t, 0, stats.FuzzyMatches)

		matches := repo.Matches()
		require.Len(t, matches, 1)
		assert.Equal(t, storage.MatchMismatch, matches[0].Kind)
		assert.Equal(t, 0.0, matches[0].Confidence)
		assert.Nil(t, matches[0].InternalID)
	})
}

func TestEngine_Totality(t *testing.T) {
	// Every external record ends the run with exactly one match.
	repo := seed(t,
		[]record.Record{
			rec("2024-03-01", "10.00", "A"),
			rec("2024-03-02", "20.00", "B"),
			rec("2024-03-03", "30.00", "C"),
		},
		[]record.Record{
			rec("2024-03-01", "10.00", "A'"),
		},
	)

	stats := run(t, repo, nil)

	assert.Equal(t, 3, stats.ExternalScanned)
	matches := repo.Matches()
	require.Len(t, matches, 3)

	seen := make(map[string]int)
	for _, m := range matches {
		seen[m.ExternalID]++
	}
	for id, n := range seen {
		assert.Equal(t, 1, n, "external %s should have exactly one match", id)
	}

	kinds := matchKinds(repo)
	assert.Equal(t, 1, kinds[storage.MatchExact])
	assert.Equal(t, 2, kinds[storage.MatchMismatch])
}

func TestEngine_ClaimExclusivity(t *testing.T) {
	// Two externals compete for one internal; only the first (input order)
	// gets it.
	repo := seed(t,
		[]record.Record{
			rec("2024-03-01", "100.00", "FIRST"),
			rec("2024-03-01", "100.00", "SECOND"),
		},
		[]record.Record{rec("2024-03-01", "100.00", "ONLY ONE")},
	)

	sink := &captureSink{}
	stats := run(t, repo, sink)

	assert.Equal(t, 1, stats.ExactMatches)

	matches := repo.Matches()
	require.Len(t, matches, 2)

	claimed := make(map[string]int)
	for _, m := range matches {
		if m.InternalID != nil {
			claimed[*m.InternalID]++
		}
	}
	for id, n := range claimed {
		assert.Equal(t, 1, n, "internal %s claimed more than once", id)
	}

	// Input order decides the winner.
	assert.Equal(t, "FIRST", sink.events[0].BankDesc)
	assert.Equal(t, storage.MatchExact, matches[0].Kind)
	assert.Equal(t, storage.MatchMismatch, matches[1].Kind)
}

func TestEngine_ExactPassOutranksFuzzy(t *testing.T) {
	// The internal record that matches exactly must not be consumed by a
	// fuzzy candidate first: passes are ordered, not interleaved.
	repo := seed(t,
		[]record.Record{
			rec("2024-03-03", "75.00", "FUZZY CANDIDATE"),
			rec("2024-03-01", "75.00", "EXACT CANDIDATE"),
		},
		[]record.Record{rec("2024-03-01", "75.00", "LEDGER")},
	)

	stats := run(t, repo, nil)

	assert.Equal(t, 1, stats.ExactMatches)
	assert.Equal(t, 0, stats.FuzzyMatches)

	for _, m := range repo.Matches() {
		if m.Kind == storage.MatchExact {
			assert.NotNil(t, m.InternalID)
		}
	}
}

func TestEngine_Determinism(t *testing.T) {
	build := func() *storage.MockRepository {
		return seed(t,
			[]record.Record{
				rec("2024-03-01", "10.00", "E1"),
				rec("2024-03-02", "10.00", "E2"),
				rec("2024-03-02", "-10.00", "E3"),
			},
			[]record.Record{
				rec("2024-03-02", "10.00", "I1"),
				rec("2024-03-01", "10.00", "I2"),
				rec("2024-03-03", "10.00", "I3"),
			},
		)
	}

	sinkA := &captureSink{}
	sinkB := &captureSink{}
	run(t, build(), sinkA)
	run(t, build(), sinkB)

	require.Equal(t, len(sinkA.events), len(sinkB.events))
	for i := range sinkA.events {
		assert.Equal(t, sinkA.events[i].Kind, sinkB.events[i].Kind)
		assert.Equal(t, sinkA.events[i].BankDesc, sinkB.events[i].BankDesc)
		assert.Equal(t, sinkA.events[i].LedgerDesc, sinkB.events[i].LedgerDesc)
	}
}

func TestEngine_EventsFollowCreationOrder(t *testing.T) {
	repo := seed(t,
		[]record.Record{
			rec("2024-03-01", "10.00", "EXACT"),
			rec("2024-03-01", "20.00", "NOPE"),
			rec("2024-03-05", "30.00", "FUZZY"),
		},
		[]record.Record{
			rec("2024-03-01", "10.00", "L1"),
			rec("2024-03-06", "30.00", "L2"),
		},
	)

	sink := &captureSink{}
	run(t, repo, sink)

	require.Len(t, sink.events, 3)
	assert.Equal(t, "exact", sink.events[0].Kind)
	assert.Equal(t, "fuzzy_date", sink.events[1].Kind)
	assert.Equal(t, "mismatch", sink.events[2].Kind)
	assert.Equal(t, "-", sink.events[2].LedgerDesc)
}

func TestEngine_EmptyExternalsIsANoop(t *testing.T) {
	repo := seed(t, nil, []record.Record{rec("2024-03-01", "10.00", "LONELY")})

	stats := run(t, repo, nil)

	assert.Equal(t, 0, stats.ExternalScanned)
	assert.Equal(t, 1, stats.InternalScanned)
	assert.Empty(t, repo.Matches())
}

func TestEngine_EmptyInternalsStillResolvesExternals(t *testing.T) {
	repo := seed(t, []record.Record{rec("2024-03-01", "10.00", "X")}, nil)

	stats := run(t, repo, nil)

	assert.Equal(t, 1, stats.ExternalScanned)
	kinds := matchKinds(repo)
	assert.Equal(t, 1, kinds[storage.MatchMismatch])
}

func TestEngine_PersistFailureAbortsButKeepsPriorMatches(t *testing.T) {
	repo := seed(t,
		[]record.Record{
			rec("2024-03-01", "10.00", "A"),
			rec("2024-03-02", "20.00", "B"),
		},
		[]record.Record{
			rec("2024-03-01", "10.00", "A'"),
			rec("2024-03-02", "20.00", "B'"),
		},
	)
	repo.FailCreateMatchAfter = 1

	engine := reconcile.NewEngine(repo, reconcile.DefaultConfig(), nil)
	_, err := engine.Run(context.Background(), nil)
	require.Error(t, err)

	assert.Len(t, repo.Matches(), 1, "the match created before the failure stays")
}

func TestEngine_CancellationStopsFurtherWork(t *testing.T) {
	repo := seed(t,
		[]record.Record{
			rec("2024-03-01", "10.00", "A"),
			rec("2024-03-02", "20.00", "B"),
		},
		nil,
	)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	engine := reconcile.NewEngine(repo, reconcile.DefaultConfig(), nil)
	_, err := engine.Run(ctx, nil)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, repo.Matches())
}

func TestEngine_SkipsAlreadyMatchedRecords(t *testing.T) {
	repo := seed(t,
		[]record.Record{rec("2024-03-01", "10.00", "A")},
		[]record.Record{rec("2024-03-01", "10.00", "A'")},
	)

	run(t, repo, nil)
	require.Len(t, repo.Matches(), 1)

	// A second run finds nothing to do: matched records never re-enter.
	stats := run(t, repo, nil)
	assert.Equal(t, 0, stats.ExternalScanned)
	assert.Len(t, repo.Matches(), 1)
}
