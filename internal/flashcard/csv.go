package flashcard

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// CSVHeader is the column layout of flashcard backups.
var CSVHeader = []string{"_id", "key", "value", "remarks", "priority", "inserted", "modified"}

// Record renders the flashcard as a CSV row in CSVHeader order.
func (f Flashcard) Record() []string {
	return []string{
		strconv.FormatInt(f.ID, 10),
		f.Key,
		f.Value,
		f.Remarks,
		strconv.Itoa(f.Priority),
		strconv.FormatInt(f.InsertedTime, 10),
		strconv.FormatInt(f.ModifiedTime, 10),
	}
}

// FromRecord parses a CSV row laid out as CSVHeader.
func FromRecord(rec []string) (Flashcard, error) {
	if len(rec) != len(CSVHeader) {
		return Flashcard{}, fmt.Errorf("expected %d columns, got %d", len(CSVHeader), len(rec))
	}
	id, err := strconv.ParseInt(rec[0], 10, 64)
	if err != nil {
		return Flashcard{}, fmt.Errorf("parsing _id %q: %w", rec[0], err)
	}
	priority, err := strconv.Atoi(rec[4])
	if err != nil {
		return Flashcard{}, fmt.Errorf("parsing priority %q: %w", rec[4], err)
	}
	inserted, err := strconv.ParseInt(rec[5], 10, 64)
	if err != nil {
		return Flashcard{}, fmt.Errorf("parsing inserted %q: %w", rec[5], err)
	}
	modified, err := strconv.ParseInt(rec[6], 10, 64)
	if err != nil {
		return Flashcard{}, fmt.Errorf("parsing modified %q: %w", rec[6], err)
	}
	return Flashcard{
		ID:           id,
		Key:          rec[1],
		Value:        rec[2],
		Remarks:      rec[3],
		Priority:     ClampPriority(priority),
		InsertedTime: inserted,
		ModifiedTime: modified,
	}, nil
}

// WriteCSV writes a header row followed by one row per flashcard.
func WriteCSV(w io.Writer, cards []Flashcard) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for _, c := range cards {
		if err := cw.Write(c.Record()); err != nil {
			return fmt.Errorf("writing flashcard %d: %w", c.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV reads flashcards written by WriteCSV. The header row is required.
func ReadCSV(r io.Reader) ([]Flashcard, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(CSVHeader)

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("empty input: missing header row")
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	for i, col := range CSVHeader {
		if header[i] != col {
			return nil, fmt.Errorf("unexpected column %d: got %q, want %q", i, header[i], col)
		}
	}

	var cards []Flashcard
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading line %d: %w", line, err)
		}
		card, err := FromRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		cards = append(cards, card)
	}
	return cards, nil
}
