package importer

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/tkasperczyk/chatvault/pkg/detect"
	"github.com/tkasperczyk/chatvault/pkg/e2e"
	"github.com/tkasperczyk/chatvault/pkg/facebook"
)

// ConversationSummary previews one conversation that Import would ingest,
// without opening a database or writing anything. Used by -dry-run.
type ConversationSummary struct {
	SourcePath       string
	Format           detect.Format
	FolderName       string
	ParticipantCount int
	MessageCount     int
}

// DiscoverConversations classifies and lightly parses paths, returning one
// summary per conversation folder (Facebook) or conversation document (E2E).
// It never opens the output database.
func DiscoverConversations(paths []string) ([]ConversationSummary, error) {
	var out []ConversationSummary
	for _, p := range paths {
		res, err := detect.Path(p)
		if err != nil {
			return nil, err
		}
		switch res.Format {
		case detect.Facebook:
			summaries, err := discoverFacebook(p, res)
			if err != nil {
				return nil, err
			}
			out = append(out, summaries...)
		case detect.E2E:
			summaries, err := discoverE2E(p, res)
			if err != nil {
				return nil, err
			}
			out = append(out, summaries...)
		default:
			return nil, fmt.Errorf("%s: unrecognized format", p)
		}
	}
	return out, nil
}

func discoverFacebook(path string, res detect.Result) ([]ConversationSummary, error) {
	if res.JSONBytes != nil {
		var doc facebook.Document
		if err := json.Unmarshal(res.JSONBytes, &doc); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		folderName := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		return []ConversationSummary{{
			SourcePath:       path,
			Format:           detect.Facebook,
			FolderName:       folderName,
			ParticipantCount: len(doc.Participants),
			MessageCount:     len(doc.Messages),
		}}, nil
	}

	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer zr.Close()

	byName := make(map[string]*zip.File, len(zr.File))
	names := make([]string, 0, len(zr.File))
	for _, f := range zr.File {
		byName[f.Name] = f
		names = append(names, f.Name)
	}

	totals := make(map[string]*ConversationSummary)
	order := make([]string, 0)
	for _, shard := range facebook.CollectShards(names) {
		raw, err := readZipEntry(byName[shard.EntryName])
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", shard.EntryName, err)
		}
		var doc facebook.Document
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", shard.EntryName, err)
		}
		s, ok := totals[shard.FolderName]
		if !ok {
			s = &ConversationSummary{
				SourcePath:       path,
				Format:           detect.Facebook,
				FolderName:       shard.FolderName,
				ParticipantCount: len(doc.Participants),
			}
			totals[shard.FolderName] = s
			order = append(order, shard.FolderName)
		}
		s.MessageCount += len(doc.Messages)
	}

	out := make([]ConversationSummary, 0, len(order))
	for _, name := range order {
		out = append(out, *totals[name])
	}
	return out, nil
}

func discoverE2E(path string, res detect.Result) ([]ConversationSummary, error) {
	if res.JSONBytes != nil {
		var doc e2e.Document
		if err := json.Unmarshal(res.JSONBytes, &doc); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		return []ConversationSummary{{
			SourcePath:       path,
			Format:           detect.E2E,
			FolderName:       e2e.CanonicalDisplayName(doc.ThreadName),
			ParticipantCount: len(doc.Participants),
			MessageCount:     len(doc.Messages),
		}}, nil
	}

	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer zr.Close()

	var out []ConversationSummary
	for _, f := range zr.File {
		if strings.Contains(f.Name, "/") || !strings.HasSuffix(f.Name, ".json") {
			continue
		}
		raw, err := readZipEntry(f)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", f.Name, err)
		}
		var doc e2e.Document
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", f.Name, err)
		}
		out = append(out, ConversationSummary{
			SourcePath:       path,
			Format:           detect.E2E,
			FolderName:       e2e.CanonicalDisplayName(doc.ThreadName),
			ParticipantCount: len(doc.Participants),
			MessageCount:     len(doc.Messages),
		})
	}
	return out, nil
}

func readZipEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
