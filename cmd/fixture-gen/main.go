// fixture-gen writes synthetic Facebook and E2E Messenger export ZIPs in
// their real on-disk layouts (SPEC_FULL.md §6), for manually exercising
// import-export without a real export on hand.
//
// Usage:
//
//	fixture-gen -out ./fixtures
package main

import (
	"archive/zip"
	"flag"
	"fmt"
	"os"
	"path/filepath"
)

var outDir = flag.String("out", "fixtures", "Directory to write generated fixtures into")

func main() {
	flag.Parse()

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		fmt.Printf("creating %s: %v\n", *outDir, err)
		os.Exit(1)
	}

	fbPath := filepath.Join(*outDir, "facebook-export.zip")
	if err := writeFacebookFixture(fbPath); err != nil {
		fmt.Printf("writing %s: %v\n", fbPath, err)
		os.Exit(1)
	}
	fmt.Printf("wrote %s\n", fbPath)

	fbAudioPath := filepath.Join(*outDir, "facebook-export-media.zip")
	if err := writeFacebookMediaFixture(fbAudioPath); err != nil {
		fmt.Printf("writing %s: %v\n", fbAudioPath, err)
		os.Exit(1)
	}
	fmt.Printf("wrote %s\n", fbAudioPath)

	e2ePath := filepath.Join(*outDir, "e2e-export.zip")
	if err := writeE2EFixture(e2ePath); err != nil {
		fmt.Printf("writing %s: %v\n", e2ePath, err)
		os.Exit(1)
	}
	fmt.Printf("wrote %s\n", e2ePath)
}

func writeZip(path string, files map[string][]byte) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			return fmt.Errorf("create entry %s: %w", name, err)
		}
		if _, err := w.Write(content); err != nil {
			return fmt.Errorf("write entry %s: %w", name, err)
		}
	}
	return zw.Close()
}

// writeFacebookFixture writes a two-shard DM and a three-person group
// thread, with a sticker, an unsent message, a geoblocked message, a
// reaction whose text is mojibake-encoded, and an audio reference that
// resolves only via the cross-archive Media Index (see
// writeFacebookMediaFixture), exercising the full §4.4 message-variant
// ordering and the §4.2 Media Index together.
func writeFacebookFixture(path string) error {
	dmShard1 := `{
		"participants": [{"name":"Alice"},{"name":"Bob"}],
		"title": "Alice Bob",
		"thread_path": "inbox/alice_bob_998877",
		"messages": [
			{"sender_name":"Bob","timestamp_ms":1700000300000,"content":"catch you later"},
			{"sender_name":"Alice","timestamp_ms":1700000200000,"content":"hidden message","is_geoblocked_for_viewer":true},
			{"sender_name":"Bob","timestamp_ms":1700000100000,"content":"deleted thought","is_unsent":true},
			{"sender_name":"Alice","timestamp_ms":1700000000000,"sticker":{"uri":"your_facebook_activity/messages/inbox/alice_bob_998877/stickers/wave.webp"},
			 "reactions":[{"actor":"Bob","reaction":"â¤"}]}
		]
	}`
	dmShard0 := `{
		"participants": [{"name":"Alice"},{"name":"Bob"}],
		"title": "Alice Bob",
		"thread_path": "inbox/alice_bob_998877",
		"messages": [
			{"sender_name":"Alice","timestamp_ms":1700000400000,"audio_files":[{"uri":"your_facebook_activity/messages/inbox/alice_bob_998877/audio/clip.wav"}]}
		]
	}`

	groupDoc := `{
		"participants": [{"name":"Alice"},{"name":"Bob"},{"name":"Carlos"}],
		"title": "Trip Planning",
		"thread_path": "inbox/trip_planning_112233",
		"image": {"uri": "your_facebook_activity/messages/inbox/trip_planning_112233/group_photo.jpg"},
		"messages": [
			{"sender_name":"Carlos","timestamp_ms":1700000500000,"share":{"link":"https://example.com/itinerary","share_text":""}},
			{"sender_name":"Alice","timestamp_ms":1700000450000,"photos":[{"uri":"your_facebook_activity/messages/inbox/trip_planning_112233/photos/beach.jpg"}],"videos":[{"uri":"your_facebook_activity/messages/inbox/trip_planning_112233/videos/drone.mp4"}]}
		]
	}`

	return writeZip(path, map[string][]byte{
		"your_facebook_activity/messages/inbox/alice_bob_998877/message_1.json":     []byte(dmShard1),
		"your_facebook_activity/messages/inbox/alice_bob_998877/message_2.json":     []byte(dmShard0),
		"your_facebook_activity/messages/inbox/trip_planning_112233/message_1.json": []byte(groupDoc),
	})
}

// writeFacebookMediaFixture is the sibling archive that actually holds the
// audio bytes the DM thread in writeFacebookFixture references, forcing
// resolution through the cross-archive Media Index.
func writeFacebookMediaFixture(path string) error {
	wav := buildTestWAV(8000, 1, 16, 16000) // 1 second at 8kHz mono 16-bit
	return writeZip(path, map[string][]byte{
		"your_facebook_activity/messages/inbox/alice_bob_998877/audio/clip.wav": wav,
	})
}

// writeE2EFixture writes one DM that, by display name, merges with the
// Facebook DM above (spec §4.8), plus a second conversation exercising the
// thread-name numeric-suffix stripping and media classification table.
func writeE2EFixture(path string) error {
	dm := `{
		"participants": ["Alice", "Bob"],
		"threadName": "Alice Bob",
		"messages": [
			{"isUnsent":false,"senderName":"Alice","text":"are you there","timestamp":1700000600,"type":"generic","reactions":[],"media":[]}
		]
	}`
	other := `{
		"participants": ["Dana", "Eli"],
		"threadName": "Dana Eli_42",
		"messages": [
			{"isUnsent":false,"senderName":"Dana","text":"","timestamp":1700000700,"type":"generic","reactions":[{"actor":"Eli","reaction":"👍"}],
			 "media":[{"uri":"media/clip.mp3"},{"uri":"media/pic.png"},{"uri":"media/anim.gif"}]},
			{"isUnsent":true,"senderName":"Eli","text":"retracted","timestamp":1700000750,"type":"generic","reactions":[],"media":[]}
		]
	}`

	return writeZip(path, map[string][]byte{
		"Alice Bob.json":   []byte(dm),
		"Dana Eli_42.json": []byte(other),
		"media/clip.mp3":   {},
		"media/pic.png":    {},
		"media/anim.gif":   {},
	})
}

func buildTestWAV(sampleRate uint32, channels, bitsPerSample uint16, dataSize uint32) []byte {
	blockAlign := channels * (bitsPerSample / 8)
	byteRate := sampleRate * uint32(blockAlign)
	buf := make([]byte, 0, 44+dataSize)
	le32 := func(v uint32) []byte { return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)} }
	le16 := func(v uint16) []byte { return []byte{byte(v), byte(v >> 8)} }
	buf = append(buf, []byte("RIFF")...)
	buf = append(buf, le32(36+dataSize)...)
	buf = append(buf, []byte("WAVE")...)
	buf = append(buf, []byte("fmt ")...)
	buf = append(buf, le32(16)...)
	buf = append(buf, le16(1)...)
	buf = append(buf, le16(channels)...)
	buf = append(buf, le32(sampleRate)...)
	buf = append(buf, le32(byteRate)...)
	buf = append(buf, le16(blockAlign)...)
	buf = append(buf, le16(bitsPerSample)...)
	buf = append(buf, []byte("data")...)
	buf = append(buf, le32(dataSize)...)
	buf = append(buf, make([]byte, dataSize)...)
	return buf
}
