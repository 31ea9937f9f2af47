package provider

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestEstimateTokens(t *testing.T) {
	cases := []struct {
		text string
		want int
	}{
		{"", 0},
		{"a", 1},
		{"abcd", 1},
		{"abcde", 2},
		{strings.Repeat("x", 400), 100},
	}
	for _, tc := range cases {
		if got := EstimateTokens(tc.text); got != tc.want {
			t.Errorf("EstimateTokens(%d bytes) = %d, want %d", len(tc.text), got, tc.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	text := strings.Repeat("a", 100)
	got := Truncate(text, 10)
	if len(got) != 40 {
		t.Errorf("len = %d, want 40", len(got))
	}
	if Truncate("short", 10) != "short" {
		t.Error("text under budget must pass through")
	}
	if Truncate(text, 0) != text {
		t.Error("zero budget disables truncation")
	}
}

func TestTruncate_NeverSplitsRunes(t *testing.T) {
	// Multi-byte runes placed so a byte-count cut would land mid-sequence.
	text := strings.Repeat("héllo wörld ", 50)
	for maxTokens := 1; maxTokens < 30; maxTokens++ {
		got := Truncate(text, maxTokens)
		if !utf8.ValidString(got) {
			t.Fatalf("maxTokens=%d produced invalid UTF-8", maxTokens)
		}
		if len(got) > maxTokens*4 {
			t.Fatalf("maxTokens=%d produced %d bytes, budget %d", maxTokens, len(got), maxTokens*4)
		}
	}
}

func TestModelDimension(t *testing.T) {
	if got := ModelDimension("text-embedding-3-small"); got != 1536 {
		t.Errorf("text-embedding-3-small = %d, want 1536", got)
	}
	if got := ModelDimension("nomic-embed-text"); got != 768 {
		t.Errorf("nomic-embed-text = %d, want 768", got)
	}
	if got := ModelDimension("some-custom-model"); got != 0 {
		t.Errorf("unknown model = %d, want 0", got)
	}
}

func TestTruncating_CutsBeforeTransport(t *testing.T) {
	mock := &mockProvider{dim: 2}
	p := WithTruncation(mock, 2)

	if _, err := p.Embed(context.Background(), strings.Repeat("x", 100)); err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if got := mock.embedCalls[0]; len(got) != 8 {
		t.Errorf("transport saw %d bytes, want 8", len(got))
	}

	if _, err := p.EmbedBatch(context.Background(), []string{"ok", strings.Repeat("y", 100)}); err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	batch := mock.batchCalls[0]
	if batch[0] != "ok" || len(batch[1]) != 8 {
		t.Errorf("batch = [%q, %d bytes]", batch[0], len(batch[1]))
	}
}
