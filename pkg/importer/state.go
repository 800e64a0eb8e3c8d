package importer

import (
	"fmt"

	"github.com/tkasperczyk/chatvault/pkg/ingest"
	"github.com/tkasperczyk/chatvault/pkg/storage"
)

// runState adapts *storage.Storage to ingest.Sink, holding the within-run
// ensure_conversation/ensure_person_in_conversation caches of spec §4.6.
type runState struct {
	store *storage.Storage

	conversations map[string]int64 // folder/thread name -> conversation id
	persons       map[string]int64 // "<conv id>\x00<name>" -> person id
}

func newRunState(store *storage.Storage) *runState {
	return &runState{
		store:         store,
		conversations: make(map[string]int64),
		persons:       make(map[string]int64),
	}
}

var _ ingest.Sink = (*runState)(nil)

func personKey(conversationID int64, name string) string {
	return fmt.Sprintf("%d\x00%s", conversationID, name)
}

func (s *runState) EnsureConversation(folderName string, participantCount int, imageURI, title string, exportID int64) (int64, error) {
	if id, ok := s.conversations[folderName]; ok {
		return id, nil
	}
	convType := "group"
	if participantCount == 2 {
		convType = "dm"
	}
	ccID, err := s.store.InsertCanonicalConversation(convType, title)
	if err != nil {
		return 0, fmt.Errorf("insert canonical conversation: %w", err)
	}
	convID, err := s.store.InsertConversation(convType, imageURI, title, exportID, ccID)
	if err != nil {
		return 0, fmt.Errorf("insert conversation: %w", err)
	}
	s.conversations[folderName] = convID
	return convID, nil
}

func (s *runState) EnsurePerson(conversationID int64, name string) (int64, error) {
	key := personKey(conversationID, name)
	if id, ok := s.persons[key]; ok {
		return id, nil
	}
	cpID, err := s.store.InsertCanonicalPerson(name)
	if err != nil {
		return 0, fmt.Errorf("insert canonical person: %w", err)
	}
	personID, err := s.store.InsertPerson(conversationID, name, cpID)
	if err != nil {
		return 0, fmt.Errorf("insert person: %w", err)
	}
	s.persons[key] = personID
	return personID, nil
}

func (s *runState) InsertMessage(conversationID, senderID int64, sentAt int64) (int64, error) {
	return s.store.InsertMessage(conversationID, senderID, sentAt, false)
}

func (s *runState) AddMessageText(messageID int64, text string) error {
	return s.store.AddMessageText(messageID, text)
}

func (s *runState) AddMessageImage(messageID int64, uri string) error {
	return s.store.AddMessageImage(messageID, uri)
}

func (s *runState) AddMessageGif(messageID int64, uri string) error {
	return s.store.AddMessageGif(messageID, uri)
}

func (s *runState) AddMessageVideo(messageID int64, uri string) error {
	return s.store.AddMessageVideo(messageID, uri)
}

func (s *runState) AddMessageAudio(messageID int64, uri string, lengthSeconds *int64) error {
	return s.store.AddMessageAudio(messageID, uri, lengthSeconds)
}

func (s *runState) InsertReaction(reactorID, messageID int64, reaction string) error {
	return s.store.InsertReaction(reactorID, messageID, reaction)
}
