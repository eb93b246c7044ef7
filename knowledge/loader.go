// Package knowledge loads tenant reference documents used as generation context.
package knowledge

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultFilters are the name fragments included when a tenant configures none.
var DefaultFilters = []string{"essencia", "premium", "voz"}

// VoiceMarker identifies the voice-guide document.
const VoiceMarker = "voz"

var textExtensions = map[string]bool{
	".txt": true,
	".md":  true,
}

// Load concatenates every text document in dir whose file name contains one of
// filters (case-insensitive substring). A missing directory or no match yields
// an empty string, never an error; only read failures of matched files are returned.
func Load(dir string, filters []string) (string, error) {
	names, err := listDocuments(dir)
	if err != nil || len(names) == 0 {
		return "", err
	}

	var sb strings.Builder
	for _, name := range names {
		if !matchesAny(name, filters) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return "", fmt.Errorf("read knowledge document %s: %w", name, err)
		}
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(fmt.Sprintf("=== DOCUMENTO: %s ===\n", name))
		sb.WriteString(strings.TrimSpace(string(data)))
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

// LoadVoiceGuide returns the raw content of the first document (by name) whose
// name contains VoiceMarker, or "" when there is none.
func LoadVoiceGuide(dir string) (string, error) {
	names, err := listDocuments(dir)
	if err != nil {
		return "", err
	}
	for _, name := range names {
		if !matchesAny(name, []string{VoiceMarker}) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return "", fmt.Errorf("read voice guide %s: %w", name, err)
		}
		return string(data), nil
	}
	return "", nil
}

func listDocuments(dir string) ([]string, error) {
	if dir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list knowledge base %s: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !textExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

func matchesAny(name string, filters []string) bool {
	lower := strings.ToLower(name)
	for _, f := range filters {
		if f = strings.ToLower(strings.TrimSpace(f)); f != "" && strings.Contains(lower, f) {
			return true
		}
	}
	return false
}
