package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/pscheid92/shiritori/internal/domain"
)

type sentMessage struct {
	ChannelID string
	ID        string
	Content   string
}

type editedMessage struct {
	ChannelID string
	MessageID string
	Content   string
}

type addedReaction struct {
	MessageID string
	Emoji     string
}

// fakeMessenger records every outbound call and keeps the latest content of
// each message so GetMessage can serve it back with configured reactions.
type fakeMessenger struct {
	mu        sync.Mutex
	nextID    int
	created   []sentMessage
	edits     []editedMessage
	reactions []addedReaction
	cleared   []string
	fetches   int
	messages  map[string]*domain.Message

	createFn func(channelID, content string) error
	editFn   func(messageID, content string) error
	getFn    func(messageID string) error
}

func newFakeMessenger() *fakeMessenger {
	return &fakeMessenger{messages: make(map[string]*domain.Message)}
}

func (f *fakeMessenger) CreateMessage(_ context.Context, channelID, content string) (*domain.Message, error) {
	if f.createFn != nil {
		if err := f.createFn(channelID, content); err != nil {
			return nil, err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := fmt.Sprintf("m%d", f.nextID)
	f.created = append(f.created, sentMessage{ChannelID: channelID, ID: id, Content: content})
	f.messages[id] = &domain.Message{ID: id, ChannelID: channelID, Content: content}
	return &domain.Message{ID: id, ChannelID: channelID, Content: content}, nil
}

func (f *fakeMessenger) EditMessage(_ context.Context, channelID, messageID, content string) error {
	if f.editFn != nil {
		if err := f.editFn(messageID, content); err != nil {
			return err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, editedMessage{ChannelID: channelID, MessageID: messageID, Content: content})
	if msg, ok := f.messages[messageID]; ok {
		msg.Content = content
	}
	return nil
}

func (f *fakeMessenger) GetMessage(_ context.Context, _, messageID string) (*domain.Message, error) {
	if f.getFn != nil {
		if err := f.getFn(messageID); err != nil {
			return nil, err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	msg, ok := f.messages[messageID]
	if !ok {
		return nil, errors.New("unknown message")
	}
	clone := *msg
	return &clone, nil
}

func (f *fakeMessenger) AddReaction(_ context.Context, _, messageID, emoji string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reactions = append(f.reactions, addedReaction{MessageID: messageID, Emoji: emoji})
	return nil
}

func (f *fakeMessenger) DeleteAllReactions(_ context.Context, _, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared = append(f.cleared, messageID)
	return nil
}

func (f *fakeMessenger) setReactions(messageID string, approve, reject int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages[messageID].Reactions = []domain.Reaction{
		{Emoji: domain.Emoji{Name: emojiApprove}, Count: approve, Me: true},
		{Emoji: domain.Emoji{Name: emojiReject}, Count: reject, Me: true},
	}
}

func (f *fakeMessenger) createdContents() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.created))
	for _, m := range f.created {
		out = append(out, m.Content)
	}
	return out
}

func (f *fakeMessenger) editContents() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.edits))
	for _, e := range f.edits {
		out = append(out, e.Content)
	}
	return out
}

// voteMessageID returns the id of the first posted vote message.
func (f *fakeMessenger) voteMessageID() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.created {
		if strings.HasPrefix(m.Content, "Vote:") {
			return m.ID, true
		}
	}
	return "", false
}

func (f *fakeMessenger) clearedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.cleared)
}

func (f *fakeMessenger) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

type fakeDictionary struct {
	mu    sync.Mutex
	words map[string]bool
	calls int
}

func newFakeDictionary(words ...string) *fakeDictionary {
	d := &fakeDictionary{words: make(map[string]bool)}
	for _, w := range words {
		d.words[w] = true
	}
	return d
}

func (d *fakeDictionary) IsWord(_ context.Context, word string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	return d.words[word]
}
