package store

import (
	"errors"
	"testing"

	"github.com/quarry-dev/quarry/internal/domain"
)

func TestVectorRoundTrip(t *testing.T) {
	in := []float32{0.1, -2.5, 3.14159, 0}
	out, err := DecodeVector(EncodeVector(in))
	if err != nil {
		t.Fatalf("DecodeVector: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("len = %d, want %d", len(out), len(in))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("out[%d] = %g, want %g", i, out[i], in[i])
		}
	}
}

func TestEncodeVector_Empty(t *testing.T) {
	if got := EncodeVector(nil); len(got) != 0 {
		t.Errorf("len = %d, want 0", len(got))
	}
}

func TestDecodeVector_TruncatedPayload(t *testing.T) {
	if _, err := DecodeVector([]byte{1, 2, 3}); !errors.Is(err, domain.ErrResponseFormat) {
		t.Errorf("error = %v, want ErrResponseFormat", err)
	}
}

func TestWrap(t *testing.T) {
	if Wrap("redis", OpInsert, nil) != nil {
		t.Error("nil error must pass through")
	}

	err := Wrap("redis", OpInsert, domain.ErrConnection)
	if !errors.Is(err, domain.ErrConnection) {
		t.Errorf("wrapped error must unwrap to the cause, got %v", err)
	}
	var se *Error
	if !errors.As(err, &se) {
		t.Fatal("error must be a *store.Error")
	}
	if se.Backend != "redis" || se.Op != OpInsert {
		t.Errorf("error detail = %+v", se)
	}
}
