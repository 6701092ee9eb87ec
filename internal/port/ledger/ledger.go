package ledger

//go:generate mockgen -destination=../../mocks/ledger.go -package=mocks . Ledger

// Ledger remembers which dedup keys have already produced a notification.
type Ledger interface {
	// Record adds key and reports whether it was absent. Check and insert
	// happen atomically, so concurrent callers never both see true.
	Record(key string) bool
}
