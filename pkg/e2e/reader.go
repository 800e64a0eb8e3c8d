package e2e

import (
	"archive/zip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/tkasperczyk/chatvault/pkg/audioprobe"
	"github.com/tkasperczyk/chatvault/pkg/ingest"
)

// threadNameSuffixRe strips a trailing "_<digits>" from a threadName to
// produce the conversation display name (spec §4.5 thread-name
// canonicalization). The raw threadName remains the within-run dedup key.
var threadNameSuffixRe = regexp.MustCompile(`^(.*)_\d+$`)

// CanonicalDisplayName strips a trailing "_<digits>" suffix from a raw
// threadName, the same canonicalization ImportDocument applies before
// calling EnsureConversation. Exported so callers previewing a document
// (e.g. a dry-run) show the same name the import itself would use.
func CanonicalDisplayName(threadName string) string {
	if m := threadNameSuffixRe.FindStringSubmatch(threadName); m != nil {
		return m[1]
	}
	return threadName
}

var audioExts = map[string]bool{
	".mp3": true, ".m4a": true, ".aac": true, ".wav": true,
	".ogg": true, ".oga": true, ".opus": true, ".flac": true,
}

var videoExts = map[string]bool{
	".mp4": true, ".mov": true, ".mkv": true, ".webm": true,
}

// classifyMedia maps a media URI's extension to one of {audio, video, gif,
// image}; unknown extensions default to image (spec §4.5 table).
func classifyMedia(uri string) string {
	ext := strings.ToLower(filepath.Ext(uri))
	switch {
	case audioExts[ext]:
		return "audio"
	case videoExts[ext]:
		return "video"
	case ext == ".gif":
		return "gif"
	default:
		return "image"
	}
}

// ImportArchive reads every root-level conversation document in an E2E ZIP
// archive and feeds it to sink. exportID identifies this archive's own
// Export row (spec §3: "each E2E ZIP gets its own").
func ImportArchive(ctx context.Context, log zerolog.Logger, zr *zip.Reader, exportID int64, sink ingest.Sink) error {
	var docCount int
	for _, f := range zr.File {
		if strings.Contains(f.Name, "/") || !strings.HasSuffix(f.Name, ".json") {
			continue
		}
		docCount++
	}
	log.Info().Int("documents", docCount).Msg("processing e2e archive")

	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return err
		}
		if strings.Contains(f.Name, "/") || !strings.HasSuffix(f.Name, ".json") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("opening %s: %w", f.Name, err)
		}
		raw, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return fmt.Errorf("reading %s: %w", f.Name, err)
		}

		var doc Document
		if err := json.Unmarshal(raw, &doc); err != nil {
			return fmt.Errorf("parsing %s: %w", f.Name, err)
		}
		if err := ImportDocument(&doc, exportID, zr, sink); err != nil {
			return fmt.Errorf("importing %s: %w", f.Name, err)
		}
		log.Debug().Str("thread", doc.ThreadName).Int("messages", len(doc.Messages)).Msg("imported e2e document")
	}
	return nil
}

// ImportLooseDocument imports a single E2E conversation document that was
// not read from a ZIP (spec §4.1 loose-JSON input). Audio attachments in a
// loose document never resolve a length, since there is no archive to probe.
func ImportLooseDocument(data []byte, exportID int64, log zerolog.Logger, sink ingest.Sink) error {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parsing loose E2E document: %w", err)
	}
	if err := ImportDocument(&doc, exportID, nil, sink); err != nil {
		return err
	}
	log.Debug().Str("thread", doc.ThreadName).Int("messages", len(doc.Messages)).Msg("imported loose e2e document")
	return nil
}

func ImportDocument(doc *Document, exportID int64, zr *zip.Reader, sink ingest.Sink) error {
	displayName := CanonicalDisplayName(doc.ThreadName)
	convID, err := sink.EnsureConversation(doc.ThreadName, len(doc.Participants), "", displayName, exportID)
	if err != nil {
		return fmt.Errorf("ensure conversation: %w", err)
	}

	for i := range doc.Messages {
		m := &doc.Messages[i]
		if m.IsUnsent {
			continue
		}

		hasText := isNonBlank(m.Text)
		if !hasText && len(m.Media) == 0 {
			continue
		}

		senderID, err := sink.EnsurePerson(convID, m.SenderName)
		if err != nil {
			return fmt.Errorf("ensure person %q: %w", m.SenderName, err)
		}

		sentAt := m.Timestamp
		if sentAt > 1_000_000_000_000 {
			sentAt /= 1000
		}

		msgID, err := sink.InsertMessage(convID, senderID, sentAt)
		if err != nil {
			return fmt.Errorf("insert message: %w", err)
		}

		if hasText {
			if err := sink.AddMessageText(msgID, m.Text); err != nil {
				return fmt.Errorf("attach text to message %d: %w", msgID, err)
			}
		}

		for _, media := range m.Media {
			switch classifyMedia(media.URI) {
			case "audio":
				length := resolveAudioLengthLocal(media.URI, zr)
				if err := sink.AddMessageAudio(msgID, media.URI, length); err != nil {
					return fmt.Errorf("attach audio to message %d: %w", msgID, err)
				}
			case "video":
				if err := sink.AddMessageVideo(msgID, media.URI); err != nil {
					return fmt.Errorf("attach video to message %d: %w", msgID, err)
				}
			case "gif":
				if err := sink.AddMessageGif(msgID, media.URI); err != nil {
					return fmt.Errorf("attach gif to message %d: %w", msgID, err)
				}
			default:
				if err := sink.AddMessageImage(msgID, media.URI); err != nil {
					return fmt.Errorf("attach image to message %d: %w", msgID, err)
				}
			}
		}

		for _, r := range m.Reactions {
			reactorID, err := sink.EnsurePerson(convID, r.Actor)
			if err != nil {
				return fmt.Errorf("ensure reactor %q: %w", r.Actor, err)
			}
			if err := sink.InsertReaction(reactorID, msgID, r.Reaction); err != nil {
				return fmt.Errorf("insert reaction on message %d: %w", msgID, err)
			}
		}
	}
	return nil
}

func isNonBlank(s string) bool {
	return strings.TrimSpace(s) != ""
}

// resolveAudioLengthLocal probes the current archive only — E2E audio never
// falls back to the cross-archive Media Index (spec §4.5).
func resolveAudioLengthLocal(uri string, zr *zip.Reader) *int64 {
	if zr == nil {
		return nil
	}
	for _, f := range zr.File {
		if f.Name != uri && f.Name != "./"+uri {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil
		}
		if secs, ok := audioprobe.Detect(uri, data); ok {
			return &secs
		}
		return nil
	}
	return nil
}
