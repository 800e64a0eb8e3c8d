package facebook

import (
	"archive/zip"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/tkasperczyk/chatvault/pkg/audioprobe"
	"github.com/tkasperczyk/chatvault/pkg/encoding"
	"github.com/tkasperczyk/chatvault/pkg/ingest"
	"github.com/tkasperczyk/chatvault/pkg/mediaindex"
)

// variantKind tags one collected attachment (spec §9 "Polymorphic attachment").
type variantKind int

const (
	variantText variantKind = iota
	variantImage
	variantGif
	variantVideo
	variantAudio
)

type variant struct {
	kind  variantKind
	value string
}

// ImportArchive reads every thread folder in a Facebook ZIP archive and
// feeds it to sink. exportID identifies the Export row all folders in this
// archive (and any sibling archives in the same run) share. idx resolves
// audio URIs that live in a different archive than the thread JSON.
func ImportArchive(ctx context.Context, log zerolog.Logger, zr *zip.Reader, exportID int64, idx *mediaindex.Index, sink ingest.Sink) error {
	names := make([]string, 0, len(zr.File))
	byName := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		names = append(names, f.Name)
		byName[f.Name] = f
	}

	shards := CollectShards(names)
	log.Info().Int("shards", len(shards)).Msg("processing facebook archive")

	for _, shard := range shards {
		if err := ctx.Err(); err != nil {
			return err
		}
		f := byName[shard.EntryName]
		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("opening %s: %w", shard.EntryName, err)
		}
		raw, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return fmt.Errorf("reading %s: %w", shard.EntryName, err)
		}

		var doc Document
		if err := json.Unmarshal(raw, &doc); err != nil {
			return fmt.Errorf("parsing %s: %w", shard.EntryName, err)
		}
		doc.repairEncoding(encoding.FixMojibake)

		if err := ImportDocument(shard.FolderName, &doc, exportID, func(name string) (io.ReadCloser, bool, error) {
			ef, ok := byName[name]
			if !ok {
				return nil, false, nil
			}
			r, err := ef.Open()
			if err != nil {
				return nil, false, err
			}
			return r, true, nil
		}, idx, sink); err != nil {
			return fmt.Errorf("importing thread %s: %w", shard.FolderName, err)
		}
		log.Debug().Str("folder", shard.FolderName).Int("messages", len(doc.Messages)).Msg("imported thread shard")
	}
	return nil
}

// ImportLooseDocument imports a single Facebook thread document that was
// not read from a ZIP (spec §4.1 loose-JSON input). folderName is derived
// by the caller, typically from the file's base name, since there is no
// thread folder to read it from.
func ImportLooseDocument(data []byte, folderName string, exportID int64, idx *mediaindex.Index, log zerolog.Logger, sink ingest.Sink) error {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parsing %s: %w", folderName, err)
	}
	doc.repairEncoding(encoding.FixMojibake)
	noLocal := func(string) (io.ReadCloser, bool, error) { return nil, false, nil }
	if err := ImportDocument(folderName, &doc, exportID, noLocal, idx, sink); err != nil {
		return err
	}
	log.Debug().Str("folder", folderName).Int("messages", len(doc.Messages)).Msg("imported loose facebook document")
	return nil
}

// ImportDocument implements the per-folder ingest contract of spec §4.4.
// openLocal opens a named entry within the archive the current shard came
// from, reporting (nil, false, nil) on a miss rather than an error.
func ImportDocument(folderName string, doc *Document, exportID int64, openLocal func(name string) (io.ReadCloser, bool, error), idx *mediaindex.Index, sink ingest.Sink) error {
	var imageURI string
	if doc.Image != nil {
		imageURI = doc.Image.URI
	}
	convID, err := sink.EnsureConversation(folderName, len(doc.Participants), imageURI, doc.Title, exportID)
	if err != nil {
		return fmt.Errorf("ensure conversation: %w", err)
	}

	for i := len(doc.Messages) - 1; i >= 0; i-- {
		m := &doc.Messages[i]
		if m.IsUnsent || m.IsGeoblockedForViewer {
			continue
		}

		variants := collectVariants(m)
		if len(variants) == 0 {
			continue
		}

		senderID, err := sink.EnsurePerson(convID, m.SenderName)
		if err != nil {
			return fmt.Errorf("ensure person %q: %w", m.SenderName, err)
		}

		sentAt := m.TimestampMs
		if sentAt > 1_000_000_000_000 {
			sentAt /= 1000
		}

		msgID, err := sink.InsertMessage(convID, senderID, sentAt)
		if err != nil {
			return fmt.Errorf("insert message: %w", err)
		}

		for _, v := range variants {
			switch v.kind {
			case variantText:
				if err := sink.AddMessageText(msgID, v.value); err != nil {
					return fmt.Errorf("attach text to message %d: %w", msgID, err)
				}
			case variantImage:
				if err := sink.AddMessageImage(msgID, v.value); err != nil {
					return fmt.Errorf("attach image to message %d: %w", msgID, err)
				}
			case variantGif:
				if err := sink.AddMessageGif(msgID, v.value); err != nil {
					return fmt.Errorf("attach gif to message %d: %w", msgID, err)
				}
			case variantVideo:
				if err := sink.AddMessageVideo(msgID, v.value); err != nil {
					return fmt.Errorf("attach video to message %d: %w", msgID, err)
				}
			case variantAudio:
				length := resolveAudioLength(v.value, openLocal, idx)
				if err := sink.AddMessageAudio(msgID, v.value, length); err != nil {
					return fmt.Errorf("attach audio to message %d: %w", msgID, err)
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

// collectVariants assembles the ordered attachment list of spec §4.4:
// content text, sticker URI, each photo URI, each video URI, each gif URI,
// each audio URI, share text (preferred) else share link as text.
func collectVariants(m *Message) []variant {
	var variants []variant
	if isNonBlank(m.Content) {
		variants = append(variants, variant{variantText, m.Content})
	}
	if m.Sticker != nil {
		variants = append(variants, variant{variantImage, m.Sticker.URI})
	}
	for _, p := range m.Photos {
		variants = append(variants, variant{variantImage, p.URI})
	}
	for _, v := range m.Videos {
		variants = append(variants, variant{variantVideo, v.URI})
	}
	for _, g := range m.GIFs {
		variants = append(variants, variant{variantGif, g.URI})
	}
	for _, a := range m.AudioFiles {
		variants = append(variants, variant{variantAudio, a.URI})
	}
	if m.Share != nil {
		if isNonBlank(m.Share.ShareText) {
			variants = append(variants, variant{variantText, m.Share.ShareText})
		} else if m.Share.Link != "" {
			variants = append(variants, variant{variantText, m.Share.Link})
		}
	}
	return variants
}

func isNonBlank(s string) bool {
	for _, r := range s {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			return true
		}
	}
	return false
}

// resolveAudioLength tries the current archive first, then the cross-archive
// Media Index, then gives up (spec §4.4, §4.7).
func resolveAudioLength(uri string, openLocal func(name string) (io.ReadCloser, bool, error), idx *mediaindex.Index) *int64 {
	if r, found, err := openLocal(uri); err == nil && found {
		data, readErr := io.ReadAll(r)
		r.Close()
		if readErr == nil {
			if secs, ok := audioprobe.Detect(uri, data); ok {
				return &secs
			}
		}
		return nil
	}

	if idx == nil {
		return nil
	}
	var result *int64
	_, _ = idx.WithFile(uri, func(r io.Reader) error {
		data, err := io.ReadAll(r)
		if err != nil {
			return err
		}
		if secs, ok := audioprobe.Detect(uri, data); ok {
			result = &secs
		}
		return nil
	})
	return result
}
