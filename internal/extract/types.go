// Package extract locates product prices in HTML using structured data and a
// heuristic DOM-scoring fallback.
package extract

// Price is a successfully extracted price.
type Price struct {
	Amount   float64
	Currency string
}

// Candidate is one scored heuristic price candidate. Candidates live only for
// the duration of a single extraction call.
type Candidate struct {
	RawText   string
	Value     float64
	Currency  string
	Score     int
	SourceTag string
}
