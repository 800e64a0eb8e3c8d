package storage

// Schema defines the SQLite database schema for storing imported Messenger
// conversations (spec §3 DATA MODEL).
const schema = `
-- Export: one row per logical ingest group. All Facebook ZIPs selected in a
-- run share a single Export row; each E2E ZIP gets its own.
CREATE TABLE IF NOT EXISTS exports (
    id INTEGER PRIMARY KEY,
    source TEXT NOT NULL,              -- 'messenger:facebook' or 'messenger:e2e'
    checksum TEXT,
    run_id TEXT NOT NULL,
    file_list TEXT,                    -- JSON array of input paths
    meta TEXT,                         -- JSON blob: file count, etc.
    created_at INTEGER NOT NULL
);

-- CanonicalConversation: cross-export identity anchor; allows two
-- Conversation rows from different exports to be linked.
CREATE TABLE IF NOT EXISTS canonical_conversations (
    id INTEGER PRIMARY KEY,
    type TEXT NOT NULL CHECK (type IN ('dm', 'group')),
    name TEXT
);

-- Conversation: one per distinct thread within one export.
CREATE TABLE IF NOT EXISTS conversations (
    id INTEGER PRIMARY KEY,
    type TEXT NOT NULL CHECK (type IN ('dm', 'group')),
    image_uri TEXT,
    name TEXT,
    export_id INTEGER NOT NULL,
    canonical_conversation_id INTEGER NOT NULL,
    FOREIGN KEY (export_id) REFERENCES exports(id),
    FOREIGN KEY (canonical_conversation_id) REFERENCES canonical_conversations(id)
);

-- CanonicalPerson: cross-conversation identity anchor (reserved for future
-- cross-thread person linking).
CREATE TABLE IF NOT EXISTS canonical_persons (
    id INTEGER PRIMARY KEY,
    display_name TEXT NOT NULL,
    avatar_uri TEXT
);

-- Person: a participant scoped to one conversation.
CREATE TABLE IF NOT EXISTS persons (
    id INTEGER PRIMARY KEY,
    conversation_id INTEGER NOT NULL,
    name TEXT NOT NULL,
    avatar_uri TEXT,
    canonical_person_id INTEGER NOT NULL,
    FOREIGN KEY (conversation_id) REFERENCES conversations(id),
    FOREIGN KEY (canonical_person_id) REFERENCES canonical_persons(id)
);

-- Message: base event row.
CREATE TABLE IF NOT EXISTS messages (
    id INTEGER PRIMARY KEY,
    conversation_id INTEGER NOT NULL,
    sender_id INTEGER NOT NULL,
    sent_at INTEGER NOT NULL,          -- epoch seconds
    unsent BOOLEAN NOT NULL DEFAULT FALSE,
    FOREIGN KEY (conversation_id) REFERENCES conversations(id),
    FOREIGN KEY (sender_id) REFERENCES persons(id)
);

-- MessageText/Image/Video/Gif/Audio: zero-or-more attachments per message;
-- a single message may carry several of these, of varying kinds.
CREATE TABLE IF NOT EXISTS message_texts (
    message_id INTEGER NOT NULL,
    text TEXT NOT NULL,
    FOREIGN KEY (message_id) REFERENCES messages(id)
);

CREATE TABLE IF NOT EXISTS message_images (
    message_id INTEGER NOT NULL,
    uri TEXT NOT NULL,
    FOREIGN KEY (message_id) REFERENCES messages(id)
);

CREATE TABLE IF NOT EXISTS message_videos (
    message_id INTEGER NOT NULL,
    uri TEXT NOT NULL,
    FOREIGN KEY (message_id) REFERENCES messages(id)
);

CREATE TABLE IF NOT EXISTS message_gifs (
    message_id INTEGER NOT NULL,
    uri TEXT NOT NULL,
    FOREIGN KEY (message_id) REFERENCES messages(id)
);

CREATE TABLE IF NOT EXISTS message_audios (
    message_id INTEGER NOT NULL,
    uri TEXT NOT NULL,
    length_seconds INTEGER,
    FOREIGN KEY (message_id) REFERENCES messages(id)
);

-- Reaction: zero-or-more per message.
CREATE TABLE IF NOT EXISTS reactions (
    reactor_id INTEGER NOT NULL,
    message_id INTEGER NOT NULL,
    reaction TEXT NOT NULL,
    FOREIGN KEY (reactor_id) REFERENCES persons(id),
    FOREIGN KEY (message_id) REFERENCES messages(id)
);

CREATE INDEX IF NOT EXISTS idx_conversations_export_id ON conversations(export_id);
CREATE INDEX IF NOT EXISTS idx_conversations_canonical_id ON conversations(canonical_conversation_id);
CREATE INDEX IF NOT EXISTS idx_persons_conversation_id ON persons(conversation_id);
CREATE INDEX IF NOT EXISTS idx_messages_conversation_id ON messages(conversation_id);
CREATE INDEX IF NOT EXISTS idx_messages_sender_id ON messages(sender_id);
CREATE INDEX IF NOT EXISTS idx_message_texts_message_id ON message_texts(message_id);
CREATE INDEX IF NOT EXISTS idx_message_images_message_id ON message_images(message_id);
CREATE INDEX IF NOT EXISTS idx_message_videos_message_id ON message_videos(message_id);
CREATE INDEX IF NOT EXISTS idx_message_gifs_message_id ON message_gifs(message_id);
CREATE INDEX IF NOT EXISTS idx_message_audios_message_id ON message_audios(message_id);
CREATE INDEX IF NOT EXISTS idx_reactions_message_id ON reactions(message_id);

-- Metadata table for tracking schema version across runs.
CREATE TABLE IF NOT EXISTS sync_metadata (
    key TEXT PRIMARY KEY,
    value TEXT,
    updated_at INTEGER NOT NULL
);
`

type migration struct {
	Version    int
	Statements []string
}

// migrations contains SQL migrations to run in order (tracked via
// sync_metadata.schema_version). Future structural changes land here rather
// than editing the base schema above.
var migrations = []migration{
	{
		Version: 1,
		Statements: []string{
			`CREATE INDEX IF NOT EXISTS idx_canonical_conversations_name ON canonical_conversations(name);`,
		},
	},
}
