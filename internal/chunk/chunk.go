// Package chunk models the documentation chunks produced by the external
// fetch/convert pipeline. Chunks arrive as JSON files on disk, one chunk per
// file, carrying provenance (package, version, source file, byte span) and a
// sha-256 content hash that serves as the identity for embedding reuse.
package chunk

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// SnippetMaxLen is the maximum snippet length stored alongside a record.
const SnippetMaxLen = 100

var (
	ErrEmptyText    = errors.New("chunk text cannot be empty")
	ErrEmptyPackage = errors.New("chunk package cannot be empty")
	ErrBadHash      = errors.New("content hash is not a sha-256 hex digest")
	ErrBadByteSpan  = errors.New("chunk byte span is invalid")
)

// Input is a single documentation chunk as produced by the chunker.
type Input struct {
	Package     string  `json:"package"`
	Version     string  `json:"version"`
	SourceFile  string  `json:"source_file"`
	SourceType  string  `json:"source_type"`
	Text        string  `json:"text"`
	ContentHash string  `json:"content_hash"`
	StartByte   int     `json:"start_byte"`
	EndByte     int     `json:"end_byte"`
	URL         *string `json:"url"`
}

var hashPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

// ComputeHash returns the sha-256 hex digest of text. Identical text always
// yields an identical hash; the digest is the sole reuse key.
func ComputeHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Snippet truncates text to SnippetMaxLen characters, appending an ellipsis
// when anything was cut.
func Snippet(text string) string {
	runes := []rune(text)
	if len(runes) <= SnippetMaxLen {
		return text
	}
	return string(runes[:SnippetMaxLen]) + "..."
}

// Validate checks the chunk and fills derivable fields. A missing content
// hash is computed from the text; a present one must be a lowercase sha-256
// hex digest.
func (c *Input) Validate() error {
	if strings.TrimSpace(c.Text) == "" {
		return ErrEmptyText
	}
	if c.Package == "" {
		return ErrEmptyPackage
	}
	if c.StartByte < 0 || c.EndByte < c.StartByte {
		return fmt.Errorf("%w: start=%d end=%d", ErrBadByteSpan, c.StartByte, c.EndByte)
	}

	if c.ContentHash == "" {
		c.ContentHash = ComputeHash(c.Text)
		return nil
	}
	if !hashPattern.MatchString(c.ContentHash) {
		return fmt.Errorf("%w: %q", ErrBadHash, c.ContentHash)
	}
	return nil
}

// Parse decodes a single chunk from raw JSON and validates it.
func Parse(data []byte) (*Input, error) {
	var c Input
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode chunk: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Load reads and parses one chunk file.
func Load(path string) (*Input, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read chunk %s: %w", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("chunk %s: %w", path, err)
	}
	return c, nil
}

// Discover finds all chunk JSON files under dir, skipping hidden
// directories. Results are sorted for deterministic batch order.
func Discover(dir string) ([]string, error) {
	var files []string

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if strings.HasPrefix(info.Name(), ".") && path != dir {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(path, ".json") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}
