// Package oracle scores how relevant a piece of text is to a crawl instruction.
//
// Relevance is the cosine similarity of two embeddings, clamped into [0,1].
// Embeddings come from an Embedder: the OpenAI embeddings API (Client), an
// offline feature-hashing model (HashEmbedder), or either one behind a
// CachedEmbedder so repeated texts such as the instruction are embedded once.
package oracle
