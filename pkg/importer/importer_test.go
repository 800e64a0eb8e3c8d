package importer

import (
	"archive/zip"
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	_ "github.com/mattn/go-sqlite3"
)

func writeZip(t *testing.T, path string, files map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("create entry %s: %v", name, err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("write entry %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
}

func TestImport_FacebookZipRoundTrip(t *testing.T) {
	dir := t.TempDir()
	fbPath := filepath.Join(dir, "facebook.zip")
	writeZip(t, fbPath, map[string]string{
		"your_facebook_activity/messages/inbox/alice_bob_123/message_1.json": `{
			"participants": [{"name":"Alice"},{"name":"Bob"}],
			"title": "Alice Bob",
			"messages": [
				{"sender_name":"Alice","timestamp_ms":1700000000000,"content":"hi"},
				{"sender_name":"Bob","timestamp_ms":1700000001000,"content":"hey"}
			]
		}`,
	})

	dbPath := filepath.Join(dir, "out.db")
	status, err := Import(context.Background(), zerolog.Nop(), []string{fbPath}, dbPath)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if status != StatusOK {
		t.Fatalf("expected StatusOK, got %v", status)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		t.Fatalf("open result db: %v", err)
	}
	defer db.Close()

	var msgCount int
	if err := db.QueryRow(`SELECT COUNT(*) FROM messages`).Scan(&msgCount); err != nil {
		t.Fatalf("count messages: %v", err)
	}
	if msgCount != 2 {
		t.Fatalf("expected 2 messages, got %d", msgCount)
	}

	var exportCount int
	if err := db.QueryRow(`SELECT COUNT(*) FROM exports WHERE source = ?`, sourceFacebook).Scan(&exportCount); err != nil {
		t.Fatalf("count exports: %v", err)
	}
	if exportCount != 1 {
		t.Fatalf("expected 1 facebook export row, got %d", exportCount)
	}
}

func TestImport_MultipleFacebookZipsShareOneExport(t *testing.T) {
	dir := t.TempDir()
	zipA := filepath.Join(dir, "a.zip")
	zipB := filepath.Join(dir, "b.zip")
	writeZip(t, zipA, map[string]string{
		"your_facebook_activity/messages/inbox/alice_bob_1/message_1.json": `{
			"participants": [{"name":"Alice"},{"name":"Bob"}],
			"title": "Alice Bob",
			"messages": [{"sender_name":"Alice","timestamp_ms":1700000000000,"content":"hi"}]
		}`,
	})
	writeZip(t, zipB, map[string]string{
		"your_facebook_activity/messages/inbox/carol_dave_2/message_1.json": `{
			"participants": [{"name":"Carol"},{"name":"Dave"}],
			"title": "Carol Dave",
			"messages": [{"sender_name":"Carol","timestamp_ms":1700000002000,"content":"yo"}]
		}`,
	})

	dbPath := filepath.Join(dir, "out.db")
	status, err := Import(context.Background(), zerolog.Nop(), []string{zipA, zipB}, dbPath)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if status != StatusOK {
		t.Fatalf("expected StatusOK, got %v", status)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		t.Fatalf("open result db: %v", err)
	}
	defer db.Close()

	var exportCount int
	if err := db.QueryRow(`SELECT COUNT(*) FROM exports WHERE source = ?`, sourceFacebook).Scan(&exportCount); err != nil {
		t.Fatalf("count exports: %v", err)
	}
	if exportCount != 1 {
		t.Fatalf("expected both facebook zips to share one export row, got %d", exportCount)
	}

	var convCount int
	if err := db.QueryRow(`SELECT COUNT(*) FROM conversations`).Scan(&convCount); err != nil {
		t.Fatalf("count conversations: %v", err)
	}
	if convCount != 2 {
		t.Fatalf("expected 2 conversations, got %d", convCount)
	}
}

func TestImport_E2EZipGetsOwnExport(t *testing.T) {
	dir := t.TempDir()
	e2ePath := filepath.Join(dir, "e2e.zip")
	writeZip(t, e2ePath, map[string]string{
		"Alice Bob.json": `{
			"participants": ["Alice","Bob"],
			"threadName": "Alice Bob",
			"messages": [{"isUnsent":false,"senderName":"Alice","text":"hi","timestamp":1700000000,"type":"generic","reactions":[],"media":[]}]
		}`,
		"media/.keep": "",
	})

	dbPath := filepath.Join(dir, "out.db")
	status, err := Import(context.Background(), zerolog.Nop(), []string{e2ePath}, dbPath)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if status != StatusOK {
		t.Fatalf("expected StatusOK, got %v", status)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		t.Fatalf("open result db: %v", err)
	}
	defer db.Close()

	var exportCount int
	if err := db.QueryRow(`SELECT COUNT(*) FROM exports WHERE source = ?`, sourceE2E).Scan(&exportCount); err != nil {
		t.Fatalf("count exports: %v", err)
	}
	if exportCount != 1 {
		t.Fatalf("expected 1 e2e export row, got %d", exportCount)
	}
}

func TestImport_FacebookAndE2EDMsMergeToSharedCanonicalID(t *testing.T) {
	dir := t.TempDir()
	fbPath := filepath.Join(dir, "facebook.zip")
	writeZip(t, fbPath, map[string]string{
		"your_facebook_activity/messages/inbox/alice_bob_1/message_1.json": `{
			"participants": [{"name":"Alice"},{"name":"Bob"}],
			"title": "Alice Bob",
			"messages": [{"sender_name":"Alice","timestamp_ms":1700000000000,"content":"hi"}]
		}`,
	})
	e2ePath := filepath.Join(dir, "e2e.zip")
	writeZip(t, e2ePath, map[string]string{
		"Alice Bob.json": `{
			"participants": ["Alice","Bob"],
			"threadName": "Alice Bob",
			"messages": [{"isUnsent":false,"senderName":"Alice","text":"hi again","timestamp":1700000500,"type":"generic","reactions":[],"media":[]}]
		}`,
		"media/.keep": "",
	})

	dbPath := filepath.Join(dir, "out.db")
	status, err := Import(context.Background(), zerolog.Nop(), []string{fbPath, e2ePath}, dbPath)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if status != StatusOK {
		t.Fatalf("expected StatusOK, got %v", status)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		t.Fatalf("open result db: %v", err)
	}
	defer db.Close()

	var canonicalCount int
	if err := db.QueryRow(`SELECT COUNT(DISTINCT canonical_conversation_id) FROM conversations`).Scan(&canonicalCount); err != nil {
		t.Fatalf("count canonical ids: %v", err)
	}
	if canonicalCount != 1 {
		t.Fatalf("expected the facebook and e2e DMs to merge to one canonical id, got %d distinct ids", canonicalCount)
	}

	var messageCount int
	if err := db.QueryRow(`SELECT COUNT(*) FROM messages`).Scan(&messageCount); err != nil {
		t.Fatalf("count messages: %v", err)
	}
	if messageCount != 2 {
		t.Fatalf("merge must not drop or duplicate messages, expected 2, got %d", messageCount)
	}
}

func TestImport_CancelledContextRollsBackAndReportsCancelled(t *testing.T) {
	dir := t.TempDir()
	fbPath := filepath.Join(dir, "facebook.zip")
	writeZip(t, fbPath, map[string]string{
		"your_facebook_activity/messages/inbox/alice_bob_1/message_1.json": `{
			"participants": [{"name":"Alice"},{"name":"Bob"}],
			"title": "Alice Bob",
			"messages": [{"sender_name":"Alice","timestamp_ms":1700000000000,"content":"hi"}]
		}`,
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	dbPath := filepath.Join(dir, "out.db")
	status, err := Import(ctx, zerolog.Nop(), []string{fbPath}, dbPath)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if status != StatusCancelled {
		t.Fatalf("expected StatusCancelled, got %v", status)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		t.Fatalf("open result db: %v", err)
	}
	defer db.Close()

	var msgCount int
	if err := db.QueryRow(`SELECT COUNT(*) FROM messages`).Scan(&msgCount); err != nil {
		t.Fatalf("count messages: %v", err)
	}
	if msgCount != 0 {
		t.Fatalf("expected cancellation to roll back all writes, found %d messages", msgCount)
	}
}

func TestImport_LooseJSONInputs(t *testing.T) {
	dir := t.TempDir()
	fbJSON := filepath.Join(dir, "alice_bob.json")
	if err := os.WriteFile(fbJSON, []byte(`{
		"participants": [{"name":"Alice"},{"name":"Bob"}],
		"title": "Alice Bob",
		"messages": [{"sender_name":"Alice","timestamp_ms":1700000000000,"content":"hi"}]
	}`), 0o644); err != nil {
		t.Fatalf("write loose facebook json: %v", err)
	}

	dbPath := filepath.Join(dir, "out.db")
	status, err := Import(context.Background(), zerolog.Nop(), []string{fbJSON}, dbPath)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if status != StatusOK {
		t.Fatalf("expected StatusOK, got %v", status)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		t.Fatalf("open result db: %v", err)
	}
	defer db.Close()

	var msgCount int
	if err := db.QueryRow(`SELECT COUNT(*) FROM messages`).Scan(&msgCount); err != nil {
		t.Fatalf("count messages: %v", err)
	}
	if msgCount != 1 {
		t.Fatalf("expected 1 message from loose json input, got %d", msgCount)
	}
}

func TestImport_EmptyPathsReturnsError(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "out.db")

	status, err := Import(context.Background(), zerolog.Nop(), nil, dbPath)
	if err == nil {
		t.Fatalf("expected an error for an empty paths list, got nil")
	}
	if status != StatusError {
		t.Fatalf("expected StatusError, got %v", status)
	}
}
