package oracle

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
)

// ErrMissingAPIKey is returned when the OpenAI oracle is selected without an API key.
var ErrMissingAPIKey = errors.New("OpenAI API key not found: set OPENAI_API_KEY in the environment or a .env file")

// Embedder turns text into a vector.
// Implementations must accept empty text and return a zero vector for it.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Oracle computes the relevance of text to an instruction from embeddings.
// Instruction vectors are kept for the lifetime of the Oracle, so each
// instruction is embedded once however many pages are scored against it.
// It is safe for concurrent use when its Embedder is.
type Oracle struct {
	embedder Embedder

	mu           sync.Mutex
	instructions map[string][]float64
}

// New returns an Oracle backed by e.
func New(e Embedder) *Oracle {
	return &Oracle{
		embedder:     e,
		instructions: make(map[string][]float64),
	}
}

// Relevance returns the clamped cosine similarity of text and instruction.
func (o *Oracle) Relevance(ctx context.Context, text, instruction string) (float64, error) {
	iv, err := o.instruction(ctx, instruction)
	if err != nil {
		return 0, fmt.Errorf("failed to embed instruction: %w", err)
	}
	tv, err := o.embedder.Embed(ctx, text)
	if err != nil {
		return 0, fmt.Errorf("failed to embed text: %w", err)
	}
	return Clamp(Cosine(tv, iv)), nil
}

// instruction returns the pinned vector of instruction, embedding it on first use.
func (o *Oracle) instruction(ctx context.Context, instruction string) ([]float64, error) {
	o.mu.Lock()
	iv, ok := o.instructions[instruction]
	o.mu.Unlock()
	if ok {
		return iv, nil
	}

	iv, err := o.embedder.Embed(ctx, instruction)
	if err != nil {
		return nil, err
	}

	o.mu.Lock()
	o.instructions[instruction] = iv
	o.mu.Unlock()
	return iv, nil
}

// Cosine returns the cosine similarity of a and b.
// It is 0 when either vector has zero norm or the lengths differ.
func Cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Clamp limits v to [0,1]. NaN becomes 0.
func Clamp(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
