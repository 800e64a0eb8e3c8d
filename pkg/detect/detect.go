// Package detect classifies an input path as a Facebook or E2E Messenger
// export (spec §4.1).
package detect

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tkasperczyk/chatvault/pkg/e2e"
	"github.com/tkasperczyk/chatvault/pkg/facebook"
)

// Format is the classification of one input path.
type Format int

const (
	Unknown Format = iota
	Facebook
	E2E
)

func (f Format) String() string {
	switch f {
	case Facebook:
		return "facebook"
	case E2E:
		return "e2e"
	default:
		return "unknown"
	}
}

// Result is the outcome of classifying one input path. For loose JSON
// inputs, JSONBytes carries the already-read file content so the importer
// does not need to reopen and re-read it.
type Result struct {
	Format    Format
	JSONBytes []byte
}

// Path classifies path by its extension. ZIP archives are classified by
// entry-name sniffing; JSON files are classified by which document shape
// successfully parses. Any other extension is a fatal error for that input.
func Path(path string) (Result, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".zip":
		f, err := ZipFile(path)
		if err != nil {
			return Result{}, err
		}
		return Result{Format: f}, nil
	case ".json":
		data, err := os.ReadFile(path)
		if err != nil {
			return Result{}, fmt.Errorf("reading %s: %w", path, err)
		}
		f, err := JSON(data)
		if err != nil {
			return Result{}, fmt.Errorf("%s: %w", path, err)
		}
		return Result{Format: f, JSONBytes: data}, nil
	default:
		return Result{}, fmt.Errorf("%s: unsupported input extension %q", path, ext)
	}
}

// ZipFile opens the archive at path and classifies it by entry-name
// sniffing (spec §4.1).
func ZipFile(path string) (Format, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return Unknown, fmt.Errorf("opening %s: %w", path, err)
	}
	defer r.Close()

	names := make([]string, 0, len(r.File))
	for _, f := range r.File {
		names = append(names, f.Name)
	}
	return ClassifyEntries(names), nil
}

// ClassifyEntries implements the ZIP entry-name sniffing rule: E2E requires
// both a "media/"-prefixed entry and a root-level (no "/") ".json" entry.
// Anything else is classified as Facebook.
func ClassifyEntries(names []string) Format {
	hasMedia := false
	hasRootJSON := false
	for _, n := range names {
		if strings.HasPrefix(n, "media/") {
			hasMedia = true
		}
		if !strings.Contains(n, "/") && strings.HasSuffix(n, ".json") {
			hasRootJSON = true
		}
		if hasMedia && hasRootJSON {
			return E2E
		}
	}
	return Facebook
}

// JSON attempts to parse data as a Facebook thread document first; on
// failure it attempts the E2E document. The accepted parse determines the
// format (spec §4.1, §9 "mutual fallback parsing"). The two shapes have no
// shared discriminator field, but their "participants" arrays differ in
// element type (objects vs. plain strings), which is enough for Go's typed
// JSON decoding to reject the wrong shape outright.
func JSON(data []byte) (Format, error) {
	var fb facebook.Document
	if err := json.Unmarshal(data, &fb); err == nil {
		return Facebook, nil
	}
	var doc e2e.Document
	if err := json.Unmarshal(data, &doc); err == nil {
		return E2E, nil
	}
	return Unknown, fmt.Errorf("data parses as neither a Facebook nor an E2E document")
}
