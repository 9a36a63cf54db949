package sha256

import "testing"

func TestHexDeterministic(t *testing.T) {
	t.Parallel()

	want := "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"
	if got := Hex([]byte("hello world")); got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
	if got := Hex([]byte("hello world")); got != want {
		t.Fatalf("expected stable digest, got %s", got)
	}
}

func TestShortHex(t *testing.T) {
	t.Parallel()

	full := Hex([]byte("hello world"))
	if got := ShortHex([]byte("hello world"), 16); got != full[:16] {
		t.Fatalf("expected %s, got %s", full[:16], got)
	}
	if got := ShortHex([]byte("hello world"), 0); got != full {
		t.Fatalf("expected full digest for n=0, got %s", got)
	}
	if got := ShortHex([]byte("hello world"), 1000); got != full {
		t.Fatalf("expected full digest for oversized n, got %s", got)
	}
}
