package flashcard

import (
	"bytes"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	c := New("Capital", "Paris", "Europe")
	if c.ID != NoID {
		t.Errorf("ID = %d, want %d", c.ID, NoID)
	}
	if c.Priority != HighestPriority {
		t.Errorf("Priority = %d, want %d", c.Priority, HighestPriority)
	}
}

func TestAddPriority_Clamps(t *testing.T) {
	tests := []struct {
		start, delta, want int
	}{
		{50, 1, 51},
		{50, -1, 49},
		{99, 500, 99},
		{0, -500, 0},
		{10, -11, 0},
		{98, 2, 99},
		{0, int(^uint(0) >> 1), 99},
		{99, -int(^uint(0)>>1) - 1, 0},
	}
	for _, tt := range tests {
		c := Flashcard{Priority: tt.start}
		c.AddPriority(tt.delta)
		if c.Priority != tt.want {
			t.Errorf("AddPriority(%d) from %d = %d, want %d", tt.delta, tt.start, c.Priority, tt.want)
		}
	}
}

func TestMajorFields(t *testing.T) {
	c := New("k", "v", "")
	if c.MajorFields().Has(FieldRemarks) {
		t.Error("MajorFields includes remarks for empty remarks")
	}
	c.Remarks = "r"
	fields := c.MajorFields()
	for _, f := range []Field{FieldKey, FieldValue, FieldRemarks, FieldID, FieldPriority} {
		if !fields.Has(f) {
			t.Errorf("MajorFields missing field %d", f)
		}
	}
}

func TestParseRef(t *testing.T) {
	tests := []struct {
		ref    string
		wantID int64
		isID   bool
	}{
		{"0", 0, true},
		{"42", 42, true},
		{"-3", 0, false},
		{"4a", 0, false},
		{"Capital", 0, false},
		{"", 0, false},
		{"99999999999999999999999", 0, false},
	}
	for _, tt := range tests {
		id, ok := ParseRef(tt.ref)
		if ok != tt.isID || id != tt.wantID {
			t.Errorf("ParseRef(%q) = (%d, %v), want (%d, %v)", tt.ref, id, ok, tt.wantID, tt.isID)
		}
	}
}

func TestCSV_RoundTrip(t *testing.T) {
	cards := []Flashcard{
		{ID: 0, Key: "Capital", Value: "Paris, France", Remarks: "has \"quotes\"", Priority: 99, InsertedTime: 100, ModifiedTime: 200},
		{ID: 1, Key: "multi", Value: "line one\nline two", Priority: 3, InsertedTime: 1, ModifiedTime: 2},
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, cards); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	if !strings.HasPrefix(buf.String(), "_id,key,value,remarks,priority,inserted,modified\n") {
		t.Fatalf("unexpected header: %q", strings.SplitN(buf.String(), "\n", 2)[0])
	}

	got, err := ReadCSV(&buf)
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if len(got) != len(cards) {
		t.Fatalf("ReadCSV returned %d cards, want %d", len(got), len(cards))
	}
	for i := range cards {
		if got[i] != cards[i] {
			t.Errorf("card %d = %+v, want %+v", i, got[i], cards[i])
		}
	}
}

func TestReadCSV_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"bad header", "id,key,value,remarks,priority,inserted,modified\n"},
		{"bad priority", "_id,key,value,remarks,priority,inserted,modified\n0,k,v,r,high,1,2\n"},
		{"short row", "_id,key,value,remarks,priority,inserted,modified\n0,k,v\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ReadCSV(strings.NewReader(tt.input)); err == nil {
				t.Errorf("ReadCSV(%q) succeeded, want error", tt.input)
			}
		})
	}
}

func TestFromRecord_ClampsPriority(t *testing.T) {
	c, err := FromRecord([]string{"3", "k", "v", "", "250", "1", "1"})
	if err != nil {
		t.Fatalf("FromRecord: %v", err)
	}
	if c.Priority != HighestPriority {
		t.Errorf("Priority = %d, want %d", c.Priority, HighestPriority)
	}
}
