package testutil

import (
	"fmt"
	"math/rand"
	"os"
	"strings"
	"testing"
)

// GenerateTestKeyFile writes numKeys seeded random keys to a temporary key
// file, mixing decimal, hex and dotted IPv4 notation with comment lines.
// Returns the file path and the keys in file order.
func GenerateTestKeyFile(t testing.TB, numKeys int, seed int64) (string, []uint32) {
	t.Helper()

	tmpFile, err := os.CreateTemp(t.TempDir(), "test_keys_*.txt")
	if err != nil {
		t.Fatalf("Failed to create temp key file: %v", err)
	}
	defer tmpFile.Close()

	rng := rand.New(rand.NewSource(seed))
	want := make([]uint32, numKeys)

	var content strings.Builder
	content.WriteString("# generated test keys\n")
	for i := range want {
		k := rng.Uint32()
		want[i] = k
		switch i % 3 {
		case 0:
			fmt.Fprintf(&content, "%d", k)
		case 1:
			fmt.Fprintf(&content, "0x%08x", k)
		default:
			fmt.Fprintf(&content, "%d.%d.%d.%d", byte(k>>24), byte(k>>16), byte(k>>8), byte(k))
		}
		if i%8 == 7 {
			content.WriteString(" # row\n")
		} else {
			content.WriteString(" ")
		}
	}
	content.WriteString("\n")

	if _, err := tmpFile.WriteString(content.String()); err != nil {
		t.Fatalf("Failed to write to temp key file: %v", err)
	}

	return tmpFile.Name(), want
}

// TempFilePath returns a cross-platform temporary file path
// with the given pattern. Does not create the file.
func TempFilePath(t testing.TB, pattern string) string {
	t.Helper()

	tmpFile, err := os.CreateTemp(t.TempDir(), pattern)
	if err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}

	path := tmpFile.Name()
	tmpFile.Close()
	os.Remove(path) // Remove immediately, just need the path

	return path
}
