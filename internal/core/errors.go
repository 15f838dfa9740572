package core

import "errors"

// Sentinel errors for the failure taxonomy. Call sites wrap them with
// fmt.Errorf("...: %w", ...) and callers match with errors.Is.
var (
	// ErrEmbedding: embedding backend unreachable or input malformed.
	ErrEmbedding = errors.New("embedding failed")
	// ErrIndexUnavailable: index backend unreachable. Distinct from "no
	// matching documents" because callers retry rather than proceed.
	ErrIndexUnavailable = errors.New("document index unavailable")
	// ErrCollectionNotFound: operation against a collection that was never
	// created.
	ErrCollectionNotFound = errors.New("collection not found")
	// ErrGeneration: generation backend unreachable or returned a malformed
	// response.
	ErrGeneration = errors.New("generation failed")
	// ErrEmptyQuery is a contract violation by the caller, not a runtime
	// condition.
	ErrEmptyQuery = errors.New("query text is empty")
)
