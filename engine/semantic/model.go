package semantic

// SearchResult is a single k-NN hit. Slices of SearchResult returned by
// Search are ordered nearest-first.
type SearchResult struct {
	ID       string  `json:"id"`
	Score    float32 `json:"score"`
	Text     string  `json:"text"`
	TicketID string  `json:"ticket_id"`
}

// VectorRecord is a single (ticket, text, embedding) point to store.
type VectorRecord struct {
	ID        string // point UUID
	TicketID  string
	Text      string
	Embedding []float32
}
