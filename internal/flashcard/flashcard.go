package flashcard

import (
	"errors"
	"regexp"
	"strconv"
)

const (
	LowestPriority  = 0
	HighestPriority = 99

	// NoID marks a flashcard the store has not assigned an Id to yet.
	NoID int64 = -1
)

var (
	// ErrNotFound is returned when a requested flashcard does not exist.
	ErrNotFound = errors.New("flashcard not found")
	// ErrDuplicateKey is returned when inserting a key that is already stored.
	ErrDuplicateKey = errors.New("flashcard key already exists")
)

// Flashcard is a key/value record whose priority drives how often it is reviewed.
// InsertedTime and ModifiedTime are Unix seconds set by the store.
type Flashcard struct {
	ID           int64  `json:"id"`
	Key          string `json:"key"`
	Value        string `json:"value"`
	Remarks      string `json:"remarks"`
	Priority     int    `json:"priority"`
	InsertedTime int64  `json:"inserted"`
	ModifiedTime int64  `json:"modified"`
}

// New returns an unsaved flashcard at the highest priority.
func New(key, value, remarks string) Flashcard {
	return Flashcard{
		ID:       NoID,
		Key:      key,
		Value:    value,
		Remarks:  remarks,
		Priority: HighestPriority,
	}
}

// ClampPriority limits p to [LowestPriority, HighestPriority].
func ClampPriority(p int) int {
	return max(LowestPriority, min(p, HighestPriority))
}

func (f *Flashcard) SetPriority(p int) {
	f.Priority = ClampPriority(p)
}

// AddPriority shifts the priority by delta, clamped.
func (f *Flashcard) AddPriority(delta int) {
	// Saturate before adding so huge deltas cannot overflow.
	if delta > HighestPriority {
		delta = HighestPriority
	} else if delta < -HighestPriority {
		delta = -HighestPriority
	}
	f.SetPriority(f.Priority + delta)
}

// Field selects which parts of a flashcard are displayed.
type Field uint8

const (
	FieldKey Field = 1 << iota
	FieldValue
	FieldRemarks
	FieldID
	FieldPriority
)

func (f Field) Has(other Field) bool {
	return f&other == other
}

// MajorFields is the full review display: key, value, id, priority, and
// remarks when present.
func (f Flashcard) MajorFields() Field {
	fields := FieldKey | FieldValue | FieldID | FieldPriority
	if f.Remarks != "" {
		fields |= FieldRemarks
	}
	return fields
}

var wholeNumber = regexp.MustCompile(`^\d+$`)

// ParseRef interprets a user supplied reference. A whole number is an Id;
// anything else is a key.
func ParseRef(ref string) (id int64, isID bool) {
	if !wholeNumber.MatchString(ref) {
		return 0, false
	}
	id, err := strconv.ParseInt(ref, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
