package us

import (
	"os"
	"path/filepath"
	"testing"
)

func writeSymbolsCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "symbols.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadCSVSymbols(t *testing.T) {
	path := writeSymbolsCSV(t, "symbol,description,industry,exchange\nAAPL,Apple,Tech,NASDAQ\ngoogl,Alphabet,Tech,NASDAQ\n MSFT ,Microsoft,Tech,NASDAQ\n")

	symbols, err := LoadCSVSymbols(path)
	if err != nil {
		t.Fatalf("LoadCSVSymbols: %v", err)
	}
	want := []string{"AAPL", "GOOGL", "MSFT"}
	if len(symbols) != len(want) {
		t.Fatalf("got %d symbols %v, want %v", len(symbols), symbols, want)
	}
	for i := range want {
		if symbols[i] != want[i] {
			t.Errorf("symbol %d = %q, want %q (uppercased and trimmed)", i, symbols[i], want[i])
		}
	}
}

func TestLoadCSVSymbolsDeduplicates(t *testing.T) {
	path := writeSymbolsCSV(t, "symbol\nAAPL\naapl\nMSFT\n")

	symbols, err := LoadCSVSymbols(path)
	if err != nil {
		t.Fatalf("LoadCSVSymbols: %v", err)
	}
	if len(symbols) != 2 {
		t.Errorf("got %v, want duplicates removed", symbols)
	}
}

func TestLoadCSVSymbolsHeaderOnly(t *testing.T) {
	path := writeSymbolsCSV(t, "symbol\n")

	symbols, err := LoadCSVSymbols(path)
	if err != nil {
		t.Fatalf("LoadCSVSymbols: %v", err)
	}
	if len(symbols) != 0 {
		t.Errorf("got %v, want no symbols for a header-only file", symbols)
	}
}

func TestLoadCSVSymbolsMissingFile(t *testing.T) {
	if _, err := LoadCSVSymbols(filepath.Join(t.TempDir(), "nope.csv")); err == nil {
		t.Error("LoadCSVSymbols succeeded for a missing file")
	}
}
