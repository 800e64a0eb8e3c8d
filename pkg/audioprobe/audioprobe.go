// Package audioprobe implements a dependency-free audio-duration probe for
// WAV, MP3, MP4/M4A/MOV, and Ogg-Opus byte streams (spec §4.7). It is
// intentionally stdlib-only: the probe's whole purpose is to avoid a format
// library, since an opaque third-party decoder would hide exactly the
// byte-level behavior the spec pins down (chunk alignment, box sizing,
// frame resync, pre-skip).
package audioprobe

import (
	"math"
	"path/filepath"
	"strings"
)

// Detect reads the entire stream (it may be a non-seekable ZIP entry) and
// returns its duration in whole seconds, or false if no supported format
// could be recognized or the computed duration was not strictly positive.
// pathHint is used only for its extension.
func Detect(pathHint string, data []byte) (seconds int64, ok bool) {
	if len(data) == 0 {
		return 0, false
	}

	var d float64
	var found bool
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(pathHint), ".")) {
	case "wav":
		d, found = parseWAVDuration(data)
	case "m4a", "mp4", "mov":
		d, found = parseMP4Duration(data)
	case "mp3":
		d, found = parseMP3Duration(data)
	case "opus", "oga", "ogg":
		d, found = parseOggOpusDuration(data)
	}

	if !found {
		d, found = sniffAndParse(data)
	}
	if !found {
		return 0, false
	}

	rounded := int64(math.Round(d))
	if rounded <= 0 {
		return 0, false
	}
	return rounded, true
}

// sniffAndParse classifies by magic bytes when extension dispatch failed
// (spec §4.7 "Sniffing").
func sniffAndParse(buf []byte) (float64, bool) {
	if len(buf) >= 4 && string(buf[0:4]) == "OggS" {
		if d, ok := parseOggOpusDuration(buf); ok {
			return d, true
		}
	}
	if len(buf) >= 12 && string(buf[0:4]) == "RIFF" && string(buf[8:12]) == "WAVE" {
		if d, ok := parseWAVDuration(buf); ok {
			return d, true
		}
	}
	if d, ok := parseMP4Duration(buf); ok {
		return d, true
	}
	return parseMP3Duration(buf)
}
