// Package evaluate scores extracted documents against the user's
// instruction and ranks the final results.
//
// Two scorers exist: EmbeddingScorer reuses the crawl's relevance oracle and
// LLMScorer asks a chat model for a number between 0 and 1. Only the first
// MaxScoredChars characters of a document are scored.
package evaluate
