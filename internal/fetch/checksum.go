package fetch

import (
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"

	"lukechampine.com/blake3"
)

// ErrChecksumMismatch is matched by every *ChecksumError.
var ErrChecksumMismatch = errors.New("checksum mismatch")

// ChecksumError reports content whose digest differs from the declared one.
type ChecksumError struct {
	File string
	Algo string
	Want string
	Got  string
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("%s: %s checksum mismatch: want %s, got %s", e.File, e.Algo, e.Want, e.Got)
}

func (e *ChecksumError) Unwrap() error { return ErrChecksumMismatch }

// Sum is a parsed checksum declaration.
type Sum struct {
	Algo string // sha1, sha256 or blake3
	Hex  string // lowercase hex digest
}

// IsZero reports whether no checksum was declared.
func (s Sum) IsZero() bool { return s.Hex == "" }

func (s Sum) String() string {
	if s.IsZero() {
		return ""
	}
	return s.Algo + ":" + s.Hex
}

// ParseSum parses "algo:hex" or a bare hex digest whose length selects
// sha1 (40) or sha256 (64). The empty string yields the zero Sum.
func ParseSum(s string) (Sum, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Sum{}, nil
	}
	algo, digest, ok := strings.Cut(s, ":")
	if !ok {
		digest = s
		switch len(s) {
		case 40:
			algo = "sha1"
		case 64:
			algo = "sha256"
		default:
			return Sum{}, fmt.Errorf("cannot infer checksum algorithm from %d hex digits", len(s))
		}
	}
	algo = strings.ToLower(algo)
	digest = strings.ToLower(digest)
	if _, err := hex.DecodeString(digest); err != nil {
		return Sum{}, fmt.Errorf("invalid checksum %q: %w", s, err)
	}
	want := map[string]int{"sha1": 40, "sha256": 64, "blake3": 64}
	n, known := want[algo]
	if !known {
		return Sum{}, fmt.Errorf("unsupported checksum algorithm %q", algo)
	}
	if len(digest) != n {
		return Sum{}, fmt.Errorf("%s checksum must have %d hex digits, got %d", algo, n, len(digest))
	}
	return Sum{Algo: algo, Hex: digest}, nil
}

// New returns a fresh hash for s's algorithm.
func (s Sum) New() hash.Hash {
	switch s.Algo {
	case "sha1":
		return sha1.New()
	case "sha256":
		return sha256.New()
	case "blake3":
		return blake3.New(32, nil)
	}
	return nil
}

// check compares a finished hash against s.
func (s Sum) check(file string, h hash.Hash) error {
	got := hex.EncodeToString(h.Sum(nil))
	if got != s.Hex {
		return &ChecksumError{File: file, Algo: s.Algo, Want: s.Hex, Got: got}
	}
	return nil
}

// Verify hashes the file at path and compares it against s. The zero Sum
// verifies anything.
func (s Sum) Verify(path string) error {
	if s.IsZero() {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	h := s.New()
	if _, err := io.Copy(h, f); err != nil {
		return err
	}
	return s.check(path, h)
}
