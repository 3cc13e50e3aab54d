package manager

import (
	"context"
	"errors"

	"github.com/kalambet/recallbot/internal/flashcard"
)

// Messenger delivers output to the single authorized user and fetches the
// raw instructions they sent. Implemented by telegram.Messenger.
type Messenger interface {
	// GetPendingInstructions returns instruction texts newer than lastSeenID
	// in arrival order, together with the newest id seen. When nothing is
	// pending the returned id equals lastSeenID.
	GetPendingInstructions(ctx context.Context, lastSeenID int) ([]string, int, error)
	// ShowText sends text. With autoEscape the markup special characters are
	// escaped; otherwise text is sent as markup.
	ShowText(ctx context.Context, text string, autoEscape bool) error
	// ShowFlashcard sends the selected fields of card between prefix and
	// suffix. Prefix and suffix are markup.
	ShowFlashcard(ctx context.Context, card flashcard.Flashcard, fields flashcard.Field, prefix, suffix string) error
}

// Dispatcher error classes. Handlers wrap one of these so callers can
// tell them apart with errors.Is.
var (
	ErrNotFound          = errors.New("flashcard not found")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrNoPendingQuestion = errors.New("no pending question")
	ErrPersistence       = errors.New("persistence failure")
	ErrStaleQuizTarget   = errors.New("quizzed flashcard no longer exists")
)
