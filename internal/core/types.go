package core

// IndexPoint is the atomic unit stored in the document index.
type IndexPoint struct {
	ID       string         `json:"id"`
	Vector   []float32      `json:"vector"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// SearchHit is a single retrieval result. It is never persisted.
type SearchHit struct {
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Score    float32        `json:"score"`
}

// QueryResult is the outward contract of the query pipeline. The pipeline
// always returns a well-formed result for a non-empty query: Sources is
// empty (never nil) when retrieval degraded, and Response carries a fixed
// fallback message when generation failed.
type QueryResult struct {
	Query    string      `json:"query"`
	Response string      `json:"response"`
	Sources  []SearchHit `json:"sources"`
	Model    string      `json:"model"`
	Degraded bool        `json:"degraded,omitempty"`
}
