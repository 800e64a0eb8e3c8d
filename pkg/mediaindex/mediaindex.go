// Package mediaindex builds a cross-archive lookup of audio/video entries so
// the Facebook reader can resolve a clip referenced in one archive but
// stored in another part of the same multi-file export (spec §4.2).
package mediaindex

import (
	"archive/zip"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// audioLike is the extension set the index keys on (spec §4.2): audio plus
// the handful of video containers the Facebook export also stores clips in.
var audioLike = map[string]bool{
	".mp3": true, ".m4a": true, ".aac": true, ".wav": true,
	".ogg": true, ".oga": true, ".opus": true, ".flac": true,
	".mp4": true, ".mov": true, ".3gp": true, ".3gpp": true,
}

type location struct {
	archive   *zip.ReadCloser
	entryName string
}

// Index maps an entry pathname (and its "./"-prefixed variant) to the
// archive and entry name that hold it. Archives are held open for the
// lifetime of the Index; Close releases them all.
type Index struct {
	byName map[string]location
	opened []*zip.ReadCloser
}

// Build opens every path in zipPaths and indexes its audio/video-like
// entries. On any open failure it closes whatever it already opened and
// returns the error — the whole run fails per spec §7 (open/read failure is
// fatal).
func Build(zipPaths []string) (*Index, error) {
	idx := &Index{byName: make(map[string]location)}
	for _, path := range zipPaths {
		r, err := zip.OpenReader(path)
		if err != nil {
			idx.Close()
			return nil, fmt.Errorf("mediaindex: open %s: %w", path, err)
		}
		idx.opened = append(idx.opened, r)
		for _, f := range r.File {
			if f.FileInfo().IsDir() {
				continue
			}
			if !audioLike[strings.ToLower(filepath.Ext(f.Name))] {
				continue
			}
			loc := location{archive: r, entryName: f.Name}
			idx.byName[f.Name] = loc
			idx.byName["./"+f.Name] = loc
			// also index the raw name without a leading "./" in case the
			// caller looks it up with one attached and the archive did not
			// store it with one, and vice versa.
			if trimmed := strings.TrimPrefix(f.Name, "./"); trimmed != f.Name {
				idx.byName[trimmed] = loc
			}
		}
	}
	return idx, nil
}

// Close releases every archive the Index opened.
func (idx *Index) Close() error {
	var firstErr error
	for _, r := range idx.opened {
		if err := r.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// WithFile looks up name (and its "./"-prefixed variant) and, if found,
// opens that entry and invokes fn with its reader. The opened entry never
// escapes this call. WithFile reports whether name was found at all; a
// false return means the caller should treat the lookup as a miss, not an
// error (spec §4.4: falling back to the index and still finding nothing is
// not fatal).
func (idx *Index) WithFile(name string, fn func(r io.Reader) error) (found bool, err error) {
	loc, ok := idx.byName[name]
	if !ok {
		loc, ok = idx.byName["./"+name]
	}
	if !ok {
		return false, nil
	}
	rc, err := loc.archive.Open(loc.entryName)
	if err != nil {
		return true, fmt.Errorf("mediaindex: open entry %s: %w", loc.entryName, err)
	}
	defer rc.Close()
	return true, fn(rc)
}
