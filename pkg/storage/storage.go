package storage

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// execer is satisfied by both *sql.DB and *sql.Tx; writer methods go through
// whichever one is active so schema setup (no transaction yet) and run
// ingest (inside the run's one write transaction) share the same code.
type execer interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

// Storage handles all database operations for imported Messenger data
// (spec §4.6 Relational Writer).
type Storage struct {
	db *sql.DB
	tx *sql.Tx
}

// New creates a new Storage instance and initializes the database.
func New(dbPath string) (*Storage, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Storage{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// init creates the database schema and runs migrations.
func (s *Storage) init() error {
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return s.runMigrations()
}

func (s *Storage) runMigrations() error {
	currentVersion, err := s.getSchemaVersion()
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.Version <= currentVersion {
			continue
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin migration %d: %w", m.Version, err)
		}

		for _, stmt := range m.Statements {
			if strings.TrimSpace(stmt) == "" {
				continue
			}
			if _, err := tx.Exec(stmt); err != nil && !isIgnorableMigrationError(err) {
				_ = tx.Rollback()
				return fmt.Errorf("migration %d failed: %w", m.Version, err)
			}
		}

		now := time.Now().UnixMilli()
		if _, err := tx.Exec(`
			INSERT INTO sync_metadata (key, value, updated_at)
			VALUES (?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
		`, "schema_version", strconv.Itoa(m.Version), now); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema_version for migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", m.Version, err)
		}

		currentVersion = m.Version
	}

	return nil
}

func (s *Storage) getSchemaVersion() (int, error) {
	value, err := s.GetSyncMetadata("schema_version")
	if err != nil {
		return 0, err
	}
	if value == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid schema_version %q: %w", value, err)
	}
	return v, nil
}

func isIgnorableMigrationError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate column name") ||
		strings.Contains(msg, "already exists")
}

// Close closes the database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

// BeginRun opens the single write transaction an import run holds for its
// duration (spec §5). All writer methods below run against it once open.
func (s *Storage) BeginRun() error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin run transaction: %w", err)
	}
	s.tx = tx
	return nil
}

// CommitRun commits the run transaction.
func (s *Storage) CommitRun() error {
	if s.tx == nil {
		return fmt.Errorf("no run transaction is open")
	}
	err := s.tx.Commit()
	s.tx = nil
	return err
}

// RollbackRun drops the run transaction without committing — used both on
// error and on a cancelled run (spec §5).
func (s *Storage) RollbackRun() error {
	if s.tx == nil {
		return nil
	}
	err := s.tx.Rollback()
	s.tx = nil
	return err
}

func (s *Storage) execer() execer {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

func lastInsertID(res sql.Result, err error) (int64, error) {
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// InsertExport inserts the Export row for one ingest group and returns its id.
func (s *Storage) InsertExport(source, runID, checksum, fileList, meta string) (int64, error) {
	res, err := s.execer().Exec(`
		INSERT INTO exports (source, checksum, run_id, file_list, meta, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, source, nullIfEmpty(checksum), runID, fileList, meta, time.Now().Unix())
	return lastInsertID(res, err)
}

// InsertCanonicalConversation inserts a new CanonicalConversation anchor.
func (s *Storage) InsertCanonicalConversation(convType, name string) (int64, error) {
	res, err := s.execer().Exec(`
		INSERT INTO canonical_conversations (type, name) VALUES (?, ?)
	`, convType, name)
	return lastInsertID(res, err)
}

// InsertConversation inserts a Conversation row pointing at a
// CanonicalConversation.
func (s *Storage) InsertConversation(convType, imageURI, name string, exportID, canonicalConversationID int64) (int64, error) {
	res, err := s.execer().Exec(`
		INSERT INTO conversations (type, image_uri, name, export_id, canonical_conversation_id)
		VALUES (?, ?, ?, ?, ?)
	`, convType, nullIfEmpty(imageURI), name, exportID, canonicalConversationID)
	return lastInsertID(res, err)
}

// InsertCanonicalPerson inserts a new CanonicalPerson anchor.
func (s *Storage) InsertCanonicalPerson(displayName string) (int64, error) {
	res, err := s.execer().Exec(`
		INSERT INTO canonical_persons (display_name) VALUES (?)
	`, displayName)
	return lastInsertID(res, err)
}

// InsertPerson inserts a Person row scoped to one conversation, pointing at
// a CanonicalPerson.
func (s *Storage) InsertPerson(conversationID int64, name string, canonicalPersonID int64) (int64, error) {
	res, err := s.execer().Exec(`
		INSERT INTO persons (conversation_id, name, canonical_person_id) VALUES (?, ?, ?)
	`, conversationID, name, canonicalPersonID)
	return lastInsertID(res, err)
}

// InsertMessage inserts the base Message row and returns its id.
func (s *Storage) InsertMessage(conversationID, senderID int64, sentAt int64, unsent bool) (int64, error) {
	res, err := s.execer().Exec(`
		INSERT INTO messages (conversation_id, sender_id, sent_at, unsent) VALUES (?, ?, ?, ?)
	`, conversationID, senderID, sentAt, unsent)
	return lastInsertID(res, err)
}

// AddMessageText attaches a text attachment to a message.
func (s *Storage) AddMessageText(messageID int64, text string) error {
	_, err := s.execer().Exec(`INSERT INTO message_texts (message_id, text) VALUES (?, ?)`, messageID, text)
	return err
}

// AddMessageImage attaches an image attachment to a message.
func (s *Storage) AddMessageImage(messageID int64, uri string) error {
	_, err := s.execer().Exec(`INSERT INTO message_images (message_id, uri) VALUES (?, ?)`, messageID, uri)
	return err
}

// AddMessageVideo attaches a video attachment to a message.
func (s *Storage) AddMessageVideo(messageID int64, uri string) error {
	_, err := s.execer().Exec(`INSERT INTO message_videos (message_id, uri) VALUES (?, ?)`, messageID, uri)
	return err
}

// AddMessageGif attaches a gif attachment to a message.
func (s *Storage) AddMessageGif(messageID int64, uri string) error {
	_, err := s.execer().Exec(`INSERT INTO message_gifs (message_id, uri) VALUES (?, ?)`, messageID, uri)
	return err
}

// AddMessageAudio attaches an audio attachment to a message. lengthSeconds
// is nil when the probe could not determine a duration.
func (s *Storage) AddMessageAudio(messageID int64, uri string, lengthSeconds *int64) error {
	var length interface{}
	if lengthSeconds != nil {
		length = *lengthSeconds
	}
	_, err := s.execer().Exec(`
		INSERT INTO message_audios (message_id, uri, length_seconds) VALUES (?, ?, ?)
	`, messageID, uri, length)
	return err
}

// InsertReaction inserts one Reaction row.
func (s *Storage) InsertReaction(reactorID, messageID int64, reaction string) error {
	_, err := s.execer().Exec(`
		INSERT INTO reactions (reactor_id, message_id, reaction) VALUES (?, ?, ?)
	`, reactorID, messageID, reaction)
	return err
}

// MergeFacebookE2EDMs runs the cross-format DM merge (spec §4.8) in its own
// short read-write transaction, separate from any run transaction. It
// returns the number of Conversation rows whose canonical id was rewritten.
func (s *Storage) MergeFacebookE2EDMs() (int, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin merge transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		UPDATE conversations
		SET canonical_conversation_id = (
			SELECT fb.canonical_conversation_id
			FROM conversations fb
			JOIN exports fb_export ON fb_export.id = fb.export_id
			WHERE fb_export.source = 'messenger:facebook'
				AND fb.type = 'dm'
				AND fb.name = conversations.name
			LIMIT 1
		)
		WHERE id IN (
			SELECT e2e.id
			FROM conversations e2e
			JOIN exports e2e_export ON e2e_export.id = e2e.export_id
			JOIN conversations fb ON fb.name = e2e.name
			JOIN exports fb_export ON fb_export.id = fb.export_id
			WHERE e2e_export.source = 'messenger:e2e'
				AND e2e.type = 'dm'
				AND fb_export.source = 'messenger:facebook'
				AND fb.type = 'dm'
		)
	`)
	if err != nil {
		return 0, fmt.Errorf("merge update failed: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit merge transaction: %w", err)
	}
	return int(n), nil
}

// SetSyncMetadata stores a sync metadata value.
func (s *Storage) SetSyncMetadata(key, value string) error {
	now := time.Now().UnixMilli()
	_, err := s.db.Exec(`
		INSERT INTO sync_metadata (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, now)
	return err
}

// GetSyncMetadata retrieves a sync metadata value.
func (s *Storage) GetSyncMetadata(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM sync_metadata WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
