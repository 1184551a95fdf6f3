package storage

// ReadStore is the read-only surface used by the query service.
// It never exposes a mutating method.
type ReadStore interface {
	RulesetReader
	AccountReader
	LedgerReader
}
