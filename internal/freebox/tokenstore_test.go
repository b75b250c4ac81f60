package freebox

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func TestTokenStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fresh", "deploy", "token.json")
	s := NewTokenStore(zerolog.Nop(), path)

	if _, ok := s.Load(); ok {
		t.Fatal("empty store reported a token")
	}
	if err := s.Save("tok-123"); err != nil {
		t.Fatalf("save: %v", err)
	}
	tok, ok := s.Load()
	if !ok || tok != "tok-123" {
		t.Fatalf("load after save: %q %v", tok, ok)
	}
	// no partial-write artifact left behind
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatal("temp file left after save")
	}
}

func TestTokenStoreOverwrite(t *testing.T) {
	s := NewTokenStore(zerolog.Nop(), filepath.Join(t.TempDir(), "token.json"))
	if err := s.Save("first"); err != nil {
		t.Fatal(err)
	}
	if err := s.Save("second"); err != nil {
		t.Fatal(err)
	}
	if tok, _ := s.Load(); tok != "second" {
		t.Fatalf("last writer should win: %q", tok)
	}
}
