package oracle

import (
	"context"
	"reflect"
	"testing"
)

// TestTokenize tests token folding and stop word removal.
func TestTokenize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"empty", "", nil},
		{"folds case", "Pricing PLANS", []string{"pricing", "plans"}},
		{"drops stop words", "Find the pricing of the product", []string{"pricing", "product"}},
		{"splits punctuation", "api-docs/v2", []string{"api", "docs", "v2"}},
		{"folds sharp s", "Straße", []string{"strasse"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Tokenize(tt.in); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Tokenize(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

// TestHashEmbedder tests the offline embedder.
func TestHashEmbedder(t *testing.T) {
	t.Parallel()

	h := NewHashEmbedder(0)
	o := New(h)
	ctx := context.Background()

	t.Run("uses default dimensions", func(t *testing.T) {
		t.Parallel()
		v, _ := h.Embed(ctx, "hello")
		if len(v) != DefaultHashDimensions {
			t.Errorf("expected %d dims, got %d", DefaultHashDimensions, len(v))
		}
	})

	t.Run("empty text is a zero vector", func(t *testing.T) {
		t.Parallel()
		v, err := h.Embed(ctx, "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, x := range v {
			if x != 0 {
				t.Fatal("expected zero vector")
			}
		}
	})

	t.Run("deterministic and case insensitive", func(t *testing.T) {
		t.Parallel()
		score, err := o.Relevance(ctx, "PRICING Plans", "pricing plans")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if score < 0.999 {
			t.Errorf("expected ~1, got %v", score)
		}
	})

	t.Run("related text outranks unrelated text", func(t *testing.T) {
		t.Parallel()
		related, _ := o.Relevance(ctx, "Our pricing plans start at ten dollars", "pricing plans")
		unrelated, _ := o.Relevance(ctx, "Meet the team behind the company", "pricing plans")
		if related <= unrelated {
			t.Errorf("expected related (%v) > unrelated (%v)", related, unrelated)
		}
	})

	t.Run("empty anchor scores zero", func(t *testing.T) {
		t.Parallel()
		score, _ := o.Relevance(ctx, "", "pricing plans")
		if score != 0 {
			t.Errorf("expected 0, got %v", score)
		}
	})
}
