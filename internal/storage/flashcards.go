package storage

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/kalambet/recallbot/internal/flashcard"
)

const flashcardColumns = `id, key, value, remarks, priority, inserted_at, modified_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFlashcard(row rowScanner) (flashcard.Flashcard, error) {
	var f flashcard.Flashcard
	err := row.Scan(&f.ID, &f.Key, &f.Value, &f.Remarks, &f.Priority, &f.InsertedTime, &f.ModifiedTime)
	return f, err
}

// InsertFlashcard stores a new flashcard, assigning its Id and timestamps.
func (s *Store) InsertFlashcard(card *flashcard.Flashcard) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning insert transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM flashcards WHERE key = ?`, card.Key).Scan(&exists); err != nil {
		return fmt.Errorf("checking key %q: %w", card.Key, err)
	}
	if exists > 0 {
		return fmt.Errorf("inserting %q: %w", card.Key, flashcard.ErrDuplicateKey)
	}

	var nextID int64
	if err := tx.QueryRow(`SELECT COALESCE(MAX(id) + 1, 0) FROM flashcards`).Scan(&nextID); err != nil {
		return fmt.Errorf("allocating id: %w", err)
	}

	now := s.now().Unix()
	insertedAt, modifiedAt := card.InsertedTime, card.ModifiedTime
	if insertedAt == 0 {
		insertedAt = now
	}
	if modifiedAt == 0 {
		modifiedAt = now
	}
	priority := flashcard.ClampPriority(card.Priority)

	if _, err := tx.Exec(`
		INSERT INTO flashcards (`+flashcardColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		nextID, card.Key, card.Value, card.Remarks, priority, insertedAt, modifiedAt,
	); err != nil {
		return fmt.Errorf("inserting %q: %w", card.Key, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing insert: %w", err)
	}

	card.ID = nextID
	card.Priority = priority
	card.InsertedTime = insertedAt
	card.ModifiedTime = modifiedAt
	return nil
}

// ReplaceFlashcard overwrites the stored flashcard with the same Id.
func (s *Store) ReplaceFlashcard(card *flashcard.Flashcard) error {
	modified := s.now().Unix()
	priority := flashcard.ClampPriority(card.Priority)
	res, err := s.db.Exec(`
		UPDATE flashcards SET key = ?, value = ?, remarks = ?, priority = ?, modified_at = ?
		WHERE id = ?`,
		card.Key, card.Value, card.Remarks, priority, modified, card.ID,
	)
	if err != nil {
		return fmt.Errorf("replacing flashcard %d: %w", card.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return flashcard.ErrNotFound
	}
	card.Priority = priority
	card.ModifiedTime = modified
	return nil
}

func (s *Store) DeleteFlashcard(card flashcard.Flashcard) error {
	res, err := s.db.Exec(`DELETE FROM flashcards WHERE id = ?`, card.ID)
	if err != nil {
		return fmt.Errorf("deleting flashcard %d: %w", card.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return flashcard.ErrNotFound
	}
	return nil
}

func (s *Store) GetFlashcardByID(id int64) (flashcard.Flashcard, error) {
	return s.getOne(`SELECT `+flashcardColumns+` FROM flashcards WHERE id = ?`, id)
}

func (s *Store) GetFlashcardByKey(key string) (flashcard.Flashcard, error) {
	return s.getOne(`SELECT `+flashcardColumns+` FROM flashcards WHERE key = ?`, key)
}

func (s *Store) getOne(query string, arg any) (flashcard.Flashcard, error) {
	f, err := scanFlashcard(s.db.QueryRow(query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return flashcard.Flashcard{}, flashcard.ErrNotFound
	}
	if err != nil {
		return flashcard.Flashcard{}, err
	}
	return f, nil
}

// GetFlashcardsByPriority samples up to count flashcards at random among
// those with priority >= minPriority last modified at or before maxModified.
func (s *Store) GetFlashcardsByPriority(count, minPriority int, maxModified int64) ([]flashcard.Flashcard, error) {
	if count <= 0 {
		return nil, nil
	}
	return s.query(`
		SELECT `+flashcardColumns+` FROM flashcards
		WHERE priority >= ? AND modified_at <= ?
		ORDER BY RANDOM() LIMIT ?`,
		minPriority, maxModified, count,
	)
}

func (s *Store) FlashcardCount() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM flashcards`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting flashcards: %w", err)
	}
	return n, nil
}

// ListFlashcards pages through flashcards in Id order.
func (s *Store) ListFlashcards(limit, offset int) ([]flashcard.Flashcard, error) {
	return s.query(`SELECT `+flashcardColumns+` FROM flashcards ORDER BY id ASC LIMIT ? OFFSET ?`, limit, offset)
}

// ExportAll returns every flashcard in Id order.
func (s *Store) ExportAll() ([]flashcard.Flashcard, error) {
	return s.query(`SELECT ` + flashcardColumns + ` FROM flashcards ORDER BY id ASC`)
}

// ImportAll inserts each card as new. Cards whose key already exists are
// skipped and counted.
func (s *Store) ImportAll(cards []flashcard.Flashcard) (inserted, skipped int, err error) {
	for _, c := range cards {
		c.ID = flashcard.NoID
		if err := s.InsertFlashcard(&c); err != nil {
			if errors.Is(err, flashcard.ErrDuplicateKey) {
				skipped++
				continue
			}
			return inserted, skipped, err
		}
		inserted++
	}
	return inserted, skipped, nil
}

func (s *Store) query(query string, args ...any) ([]flashcard.Flashcard, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []flashcard.Flashcard
	for rows.Next() {
		f, err := scanFlashcard(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
