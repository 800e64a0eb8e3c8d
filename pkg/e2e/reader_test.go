package e2e

import (
	"archive/zip"
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
)

type fakeSink struct {
	conversations map[string]int64
	persons       map[[2]any]int64
	nextConv      int64
	nextPerson    int64
	nextMessage   int64

	convNames map[int64]string
	messages  []fakeMessage
	reactions []fakeReaction
}

type fakeMessage struct {
	conversationID, senderID, sentAt int64
	attachments                      []fakeAttachment
}

type fakeAttachment struct {
	kind   string
	value  string
	length *int64
}

type fakeReaction struct {
	reactorID, messageID int64
	reaction             string
}

func newFakeSink() *fakeSink {
	return &fakeSink{
		conversations: map[string]int64{},
		persons:       map[[2]any]int64{},
		convNames:     map[int64]string{},
	}
}

func (s *fakeSink) EnsureConversation(folderName string, participantCount int, imageURI, title string, exportID int64) (int64, error) {
	if id, ok := s.conversations[folderName]; ok {
		return id, nil
	}
	s.nextConv++
	s.conversations[folderName] = s.nextConv
	s.convNames[s.nextConv] = title
	return s.nextConv, nil
}

func (s *fakeSink) EnsurePerson(conversationID int64, name string) (int64, error) {
	key := [2]any{conversationID, name}
	if id, ok := s.persons[key]; ok {
		return id, nil
	}
	s.nextPerson++
	s.persons[key] = s.nextPerson
	return s.nextPerson, nil
}

func (s *fakeSink) InsertMessage(conversationID, senderID int64, sentAt int64) (int64, error) {
	s.nextMessage++
	s.messages = append(s.messages, fakeMessage{conversationID: conversationID, senderID: senderID, sentAt: sentAt})
	return s.nextMessage, nil
}

func (s *fakeSink) lastMessage() *fakeMessage { return &s.messages[len(s.messages)-1] }

func (s *fakeSink) AddMessageText(messageID int64, text string) error {
	s.lastMessage().attachments = append(s.lastMessage().attachments, fakeAttachment{kind: "text", value: text})
	return nil
}
func (s *fakeSink) AddMessageImage(messageID int64, uri string) error {
	s.lastMessage().attachments = append(s.lastMessage().attachments, fakeAttachment{kind: "image", value: uri})
	return nil
}
func (s *fakeSink) AddMessageGif(messageID int64, uri string) error {
	s.lastMessage().attachments = append(s.lastMessage().attachments, fakeAttachment{kind: "gif", value: uri})
	return nil
}
func (s *fakeSink) AddMessageVideo(messageID int64, uri string) error {
	s.lastMessage().attachments = append(s.lastMessage().attachments, fakeAttachment{kind: "video", value: uri})
	return nil
}
func (s *fakeSink) AddMessageAudio(messageID int64, uri string, lengthSeconds *int64) error {
	s.lastMessage().attachments = append(s.lastMessage().attachments, fakeAttachment{kind: "audio", value: uri, length: lengthSeconds})
	return nil
}
func (s *fakeSink) InsertReaction(reactorID, messageID int64, reaction string) error {
	s.reactions = append(s.reactions, fakeReaction{reactorID: reactorID, messageID: messageID, reaction: reaction})
	return nil
}

func writeZip(t *testing.T, files map[string][]byte) *zip.Reader {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, data := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
		if _, err := w.Write(data); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("reopen zip: %v", err)
	}
	return zr
}

func TestCanonicalDisplayName_StripsTrailingDigitsSuffix(t *testing.T) {
	if got := CanonicalDisplayName("Alice Bob_7"); got != "Alice Bob" {
		t.Fatalf("expected stripped name, got %q", got)
	}
	if got := CanonicalDisplayName("Alice Bob"); got != "Alice Bob" {
		t.Fatalf("expected unchanged name, got %q", got)
	}
}

func TestImportArchive_ThreadNameStrippingAndDedupKey(t *testing.T) {
	doc := `{
		"participants": ["Alice","Bob"],
		"threadName": "Alice Bob_7",
		"messages": [
			{"isUnsent":false,"media":[],"reactions":[],"senderName":"Alice","text":"hi","timestamp":1700000000,"type":"generic"}
		]
	}`
	zr := writeZip(t, map[string][]byte{"Alice Bob_7.json": []byte(doc)})
	sink := newFakeSink()

	if err := ImportArchive(context.Background(), zerolog.Nop(), zr, 1, sink); err != nil {
		t.Fatalf("ImportArchive: %v", err)
	}
	if len(sink.messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(sink.messages))
	}
	convID := sink.messages[0].conversationID
	if sink.convNames[convID] != "Alice Bob" {
		t.Fatalf("expected display name %q, got %q", "Alice Bob", sink.convNames[convID])
	}
	if _, ok := sink.conversations["Alice Bob_7"]; !ok {
		t.Fatalf("expected raw threadName to be the dedup key")
	}
}

func TestImportArchive_MediaClassification(t *testing.T) {
	doc := `{
		"participants": ["Alice","Bob"],
		"threadName": "Alice Bob",
		"messages": [
			{"isUnsent":false,"senderName":"Alice","text":"","timestamp":1700000000,"type":"generic","reactions":[],
			 "media":[{"uri":"media/clip.mp4"},{"uri":"media/pic.jpg"},{"uri":"media/anim.gif"},{"uri":"media/unknown.xyz"}]}
		]
	}`
	zr := writeZip(t, map[string][]byte{"Alice Bob.json": []byte(doc)})
	sink := newFakeSink()

	if err := ImportArchive(context.Background(), zerolog.Nop(), zr, 1, sink); err != nil {
		t.Fatalf("ImportArchive: %v", err)
	}
	if len(sink.messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(sink.messages))
	}
	atts := sink.messages[0].attachments
	if len(atts) != 4 {
		t.Fatalf("expected 4 attachments, got %d", len(atts))
	}
	want := []string{"video", "image", "gif", "image"}
	for i, k := range want {
		if atts[i].kind != k {
			t.Fatalf("attachment %d: expected kind %s, got %s", i, k, atts[i].kind)
		}
	}
}

func TestImportArchive_EmptyMessageDropped(t *testing.T) {
	doc := `{
		"participants": ["Alice","Bob"],
		"threadName": "Alice Bob",
		"messages": [
			{"isUnsent":false,"senderName":"Alice","text":"   ","timestamp":1700000000,"type":"generic","reactions":[],"media":[]}
		]
	}`
	zr := writeZip(t, map[string][]byte{"Alice Bob.json": []byte(doc)})
	sink := newFakeSink()

	if err := ImportArchive(context.Background(), zerolog.Nop(), zr, 1, sink); err != nil {
		t.Fatalf("ImportArchive: %v", err)
	}
	if len(sink.messages) != 0 {
		t.Fatalf("expected empty message to be dropped, got %d", len(sink.messages))
	}
}

func TestImportArchive_TimestampSecondsVsMilliseconds(t *testing.T) {
	doc := `{
		"participants": ["Alice","Bob"],
		"threadName": "Alice Bob",
		"messages": [
			{"isUnsent":false,"senderName":"Alice","text":"hi","timestamp":1700000000000,"type":"generic","reactions":[],"media":[]}
		]
	}`
	zr := writeZip(t, map[string][]byte{"Alice Bob.json": []byte(doc)})
	sink := newFakeSink()

	if err := ImportArchive(context.Background(), zerolog.Nop(), zr, 1, sink); err != nil {
		t.Fatalf("ImportArchive: %v", err)
	}
	if sink.messages[0].sentAt != 1700000000 {
		t.Fatalf("expected ms timestamp divided to seconds, got %d", sink.messages[0].sentAt)
	}
}
