// Package keys generates, parses and checks arrays of uint32 sort keys.
package keys

import (
	"bufio"
	"fmt"
	"io"
	"math/rand"
	"net"
	"os"
	"strconv"
	"strings"
)

// Random returns n keys from a PRNG seeded with seed. Equal seeds give equal keys.
func Random(n int, seed int64) []uint32 {
	rng := rand.New(rand.NewSource(seed))
	out := make([]uint32, n)
	for i := range out {
		out[i] = rng.Uint32()
	}
	return out
}

// IsSorted reports whether keys are non-decreasing, or non-increasing when descending is set.
func IsSorted(keys []uint32, descending bool) bool {
	for i := 1; i < len(keys); i++ {
		if descending && keys[i] > keys[i-1] {
			return false
		}
		if !descending && keys[i] < keys[i-1] {
			return false
		}
	}
	return true
}

// Permutation reports whether a and b hold the same multiset of keys.
func Permutation(a, b []uint32) bool {
	if len(a) != len(b) {
		return false
	}
	x := append([]uint32(nil), a...)
	y := append([]uint32(nil), b...)
	SortHost(x)
	SortHost(y)
	for i := range x {
		if x[i] != y[i] {
			return false
		}
	}
	return true
}

// IPToKey converts an IPv4 address to its big-endian key.
func IPToKey(ip net.IP) (uint32, bool) {
	ipv4 := ip.To4()
	if ipv4 == nil {
		return 0, false
	}
	return uint32(ipv4[0])<<24 | uint32(ipv4[1])<<16 | uint32(ipv4[2])<<8 | uint32(ipv4[3]), true
}

// ParseKey parses a decimal, 0x-prefixed hexadecimal or dotted IPv4 key.
func ParseKey(s string) (uint32, error) {
	if strings.Count(s, ".") == 3 {
		if k, ok := IPToKey(net.ParseIP(s)); ok {
			return k, nil
		}
		return 0, fmt.Errorf("invalid IPv4 key %q", s)
	}
	if len(s) > 2 && (s[:2] == "0x" || s[:2] == "0X") {
		v, err := strconv.ParseUint(s[2:], 16, 32)
		if err != nil {
			return 0, fmt.Errorf("invalid hex key %q: %w", s, err)
		}
		return uint32(v), nil
	}
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid key %q: %w", s, err)
	}
	return uint32(v), nil
}

// Parse reads whitespace-separated keys. A '#' starts a comment that runs to the end of the line.
func Parse(r io.Reader) ([]uint32, error) {
	var out []uint32
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		if idx := strings.IndexByte(line, '#'); idx >= 0 {
			line = line[:idx]
		}
		for _, field := range strings.Fields(line) {
			k, err := ParseKey(field)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNum, err)
			}
			out = append(out, k)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading keys: %w", err)
	}
	return out, nil
}

// ReadFile parses the key file at path.
func ReadFile(path string) ([]uint32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open key file: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// WriteFile writes one decimal key per line.
func WriteFile(path string, keys []uint32) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create key file: %w", err)
	}
	w := bufio.NewWriter(f)
	buf := make([]byte, 0, 11)
	for _, k := range keys {
		buf = strconv.AppendUint(buf[:0], uint64(k), 10)
		buf = append(buf, '\n')
		if _, err := w.Write(buf); err != nil {
			f.Close()
			return fmt.Errorf("writing key file: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("writing key file: %w", err)
	}
	return f.Close()
}
