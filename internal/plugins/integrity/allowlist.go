package integrity

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrNotAllowlisted is returned by Verify for sources whose digest is not
// recorded in the allowlist.
var ErrNotAllowlisted = errors.New("plugin source not in allowlist")

// Allowlist captures the trusted digests recorded for plugin sources.
type Allowlist struct {
	entries map[string]string
}

// LoadAllowlist parses the allowlist file. Each entry is a SHA-256 hex digest
// followed by a label; blank lines and # comments are ignored.
func LoadAllowlist(path string) (*Allowlist, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open allowlist: %w", err)
	}
	defer func() {
		_ = file.Close()
	}()
	return ParseAllowlist(file)
}

// ParseAllowlist reads allowlist entries from r.
func ParseAllowlist(r io.Reader) (*Allowlist, error) {
	scanner := bufio.NewScanner(r)
	entries := make(map[string]string)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, fmt.Errorf("invalid allowlist entry on line %d", lineNo)
		}
		hash := strings.ToLower(fields[0])
		if _, err := hex.DecodeString(hash); err != nil || len(hash) != sha256.Size*2 {
			return nil, fmt.Errorf("invalid hash on line %d", lineNo)
		}
		entries[hash] = fields[1]
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read allowlist: %w", err)
	}
	return &Allowlist{entries: entries}, nil
}

// Verify checks that the digest of src is allowlisted and returns its label.
func (a *Allowlist) Verify(src string) (string, error) {
	if a == nil {
		return "", errors.New("allowlist not initialised")
	}
	label, ok := a.entries[HashSource(src)]
	if !ok {
		return "", ErrNotAllowlisted
	}
	return label, nil
}

// Len reports the number of allowlisted digests.
func (a *Allowlist) Len() int {
	if a == nil {
		return 0
	}
	return len(a.entries)
}

// HashSource returns the hex SHA-256 digest of plugin source text.
func HashSource(src string) string {
	sum := sha256.Sum256([]byte(src))
	return hex.EncodeToString(sum[:])
}

func hashFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open plugin source: %w", err)
	}
	defer func() {
		_ = file.Close()
	}()

	h := sha256.New()
	if _, err := io.Copy(h, file); err != nil {
		return "", fmt.Errorf("hash plugin source: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// HashFile exposes the SHA-256 helper for external callers.
func HashFile(path string) (string, error) {
	return hashFile(path)
}
