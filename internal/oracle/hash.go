package oracle

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// DefaultHashDimensions is the vector size of a HashEmbedder.
const DefaultHashDimensions = 512

// stopWords are dropped before hashing so that shared filler words do not
// make unrelated texts look similar.
var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {}, "by": {},
	"for": {}, "from": {}, "how": {}, "in": {}, "is": {}, "it": {}, "of": {}, "on": {},
	"or": {}, "that": {}, "the": {}, "this": {}, "to": {}, "was": {}, "what": {},
	"with": {}, "find": {}, "all": {}, "about": {}, "page": {}, "pages": {},
}

// HashEmbedder is an offline Embedder that hashes folded word tokens into
// a fixed number of buckets. Texts sharing words get a positive cosine
// similarity; texts sharing none score 0. It is deterministic and safe for
// concurrent use.
type HashEmbedder struct {
	dims int
}

// NewHashEmbedder returns a HashEmbedder producing vectors of dims entries.
// A non-positive dims selects DefaultHashDimensions.
func NewHashEmbedder(dims int) *HashEmbedder {
	if dims <= 0 {
		dims = DefaultHashDimensions
	}
	return &HashEmbedder{dims: dims}
}

// Embed implements Embedder. It never fails.
func (h *HashEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	vec := make([]float64, h.dims)
	for _, tok := range Tokenize(text) {
		f := fnv.New64a()
		_, _ = f.Write([]byte(tok))
		vec[f.Sum64()%uint64(h.dims)]++
	}
	return vec, nil
}

// Tokenize splits text into case-folded word tokens without stop words.
func Tokenize(text string) []string {
	if text == "" {
		return nil
	}
	folded := cases.Fold().String(norm.NFKC.String(text))
	fields := strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	tokens := fields[:0]
	for _, f := range fields {
		if _, stop := stopWords[f]; stop {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}
