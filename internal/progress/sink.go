// Package progress carries reconciliation progress events from the matching
// engine to whoever is watching. The engine only knows the Sink interface;
// transports own their connection lifecycle entirely.
package progress

// Event describes one match decision, emitted immediately after it is
// persisted.
type Event struct {
	MatchID    string  `json:"id"`
	Kind       string  `json:"match_type"`
	Amount     string  `json:"amount"`
	Date       string  `json:"date"`
	BankDesc   string  `json:"bank_desc"`
	LedgerDesc string  `json:"ledger_desc"`
	Confidence float64 `json:"confidence"`
}

// Sink receives events. Publish is fire-and-forget: implementations must not
// block the engine and a failed delivery never affects the match that was
// already persisted.
type Sink interface {
	Publish(event Event)
}

// Noop is a Sink that discards every event.
type Noop struct{}

func (Noop) Publish(Event) {}
