// Package ingest defines the write-side contract shared by the Facebook and
// E2E readers (spec §4.4, §4.5, §4.6). pkg/importer implements Sink; the
// readers depend only on this package, never on the driver, so there is no
// import cycle between the readers and the thing that drives them.
package ingest

// Sink receives the normalized conversation/person/message/attachment/
// reaction operations produced while reading one export.
type Sink interface {
	// EnsureConversation resolves folderName (Facebook thread folder, or the
	// raw E2E threadName) to a Conversation id, creating the conversation
	// and its CanonicalConversation anchor on first sight within this
	// run. Subsequent calls for the same folderName return the cached id.
	EnsureConversation(folderName string, participantCount int, imageURI, title string, exportID int64) (conversationID int64, err error)

	// EnsurePerson resolves name to a Person id scoped to conversationID,
	// creating the person and its CanonicalPerson anchor on first sight.
	EnsurePerson(conversationID int64, name string) (personID int64, err error)

	// InsertMessage inserts the base Message row and returns its id.
	InsertMessage(conversationID, senderID int64, sentAt int64) (messageID int64, err error)

	AddMessageText(messageID int64, text string) error
	AddMessageImage(messageID int64, uri string) error
	AddMessageGif(messageID int64, uri string) error
	AddMessageVideo(messageID int64, uri string) error
	AddMessageAudio(messageID int64, uri string, lengthSeconds *int64) error

	InsertReaction(reactorID, messageID int64, reaction string) error
}
