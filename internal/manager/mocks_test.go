package manager

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/kalambet/recallbot/internal/flashcard"
)

type mockClock struct {
	t time.Time
}

func (c *mockClock) Now() time.Time { return c.t }

// memStore is an in-memory flashcard.Store. Samples are returned in Id
// order so tests are deterministic.
type memStore struct {
	mu         sync.Mutex
	cards      map[int64]flashcard.Flashcard
	now        int64
	failWrites bool
}

func newMemStore(now time.Time) *memStore {
	return &memStore{cards: make(map[int64]flashcard.Flashcard), now: now.Unix()}
}

var errWriteFailed = errors.New("write failed")

func (s *memStore) InsertFlashcard(card *flashcard.Flashcard) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrites {
		return errWriteFailed
	}
	next := int64(0)
	for id, c := range s.cards {
		if c.Key == card.Key {
			return flashcard.ErrDuplicateKey
		}
		if id >= next {
			next = id + 1
		}
	}
	card.ID = next
	card.Priority = flashcard.ClampPriority(card.Priority)
	if card.InsertedTime == 0 {
		card.InsertedTime = s.now
	}
	if card.ModifiedTime == 0 {
		card.ModifiedTime = s.now
	}
	s.cards[next] = *card
	return nil
}

func (s *memStore) ReplaceFlashcard(card *flashcard.Flashcard) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrites {
		return errWriteFailed
	}
	if _, ok := s.cards[card.ID]; !ok {
		return flashcard.ErrNotFound
	}
	card.Priority = flashcard.ClampPriority(card.Priority)
	card.ModifiedTime = s.now
	s.cards[card.ID] = *card
	return nil
}

func (s *memStore) DeleteFlashcard(card flashcard.Flashcard) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrites {
		return errWriteFailed
	}
	if _, ok := s.cards[card.ID]; !ok {
		return flashcard.ErrNotFound
	}
	delete(s.cards, card.ID)
	return nil
}

func (s *memStore) GetFlashcardByID(id int64) (flashcard.Flashcard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cards[id]
	if !ok {
		return flashcard.Flashcard{}, flashcard.ErrNotFound
	}
	return c, nil
}

func (s *memStore) GetFlashcardByKey(key string) (flashcard.Flashcard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.cards {
		if c.Key == key {
			return c, nil
		}
	}
	return flashcard.Flashcard{}, flashcard.ErrNotFound
}

func (s *memStore) GetFlashcardsByPriority(count, minPriority int, maxModified int64) ([]flashcard.Flashcard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []flashcard.Flashcard
	for _, c := range s.cards {
		if c.Priority >= minPriority && c.ModifiedTime <= maxModified {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > count {
		out = out[:count]
	}
	return out, nil
}

func (s *memStore) FlashcardCount() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cards), nil
}

func (s *memStore) get(key string) (flashcard.Flashcard, bool) {
	c, err := s.GetFlashcardByKey(key)
	return c, err == nil
}

type sentText struct {
	text       string
	autoEscape bool
}

type sentCard struct {
	card   flashcard.Flashcard
	fields flashcard.Field
	prefix string
	suffix string
}

type mockMessenger struct {
	mu       sync.Mutex
	pending  []string
	lastSeen []int
	fetchErr error
	texts    []sentText
	cards    []sentCard
}

func (m *mockMessenger) GetPendingInstructions(_ context.Context, lastSeenID int) ([]string, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastSeen = append(m.lastSeen, lastSeenID)
	if m.fetchErr != nil {
		return nil, lastSeenID, m.fetchErr
	}
	out := m.pending
	m.pending = nil
	return out, lastSeenID + len(out), nil
}

func (m *mockMessenger) ShowText(_ context.Context, text string, autoEscape bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.texts = append(m.texts, sentText{text, autoEscape})
	return nil
}

func (m *mockMessenger) ShowFlashcard(_ context.Context, card flashcard.Flashcard, fields flashcard.Field, prefix, suffix string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cards = append(m.cards, sentCard{card, fields, prefix, suffix})
	return nil
}

func (m *mockMessenger) lastText() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.texts) == 0 {
		return ""
	}
	return m.texts[len(m.texts)-1].text
}

func (m *mockMessenger) lastCard() (sentCard, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.cards) == 0 {
		return sentCard{}, false
	}
	return m.cards[len(m.cards)-1], true
}
