package flashcard

// Store persists flashcards.
//
// InsertFlashcard rejects a key that already exists with ErrDuplicateKey and
// assigns the next Id (max existing Id + 1, or 0 for an empty store).
// ReplaceFlashcard matches by Id and refreshes ModifiedTime. Lookups return
// ErrNotFound when nothing matches.
type Store interface {
	InsertFlashcard(card *Flashcard) error
	ReplaceFlashcard(card *Flashcard) error
	DeleteFlashcard(card Flashcard) error
	GetFlashcardByID(id int64) (Flashcard, error)
	GetFlashcardByKey(key string) (Flashcard, error)
	// GetFlashcardsByPriority returns a random sample of at most count
	// distinct flashcards with Priority >= minPriority and ModifiedTime <=
	// maxModified.
	GetFlashcardsByPriority(count, minPriority int, maxModified int64) ([]Flashcard, error)
	FlashcardCount() (int, error)
}

// Resolve looks a flashcard up by Id when ref is a whole number, otherwise by key.
func Resolve(s Store, ref string) (Flashcard, error) {
	if id, ok := ParseRef(ref); ok {
		return s.GetFlashcardByID(id)
	}
	return s.GetFlashcardByKey(ref)
}
