package manager

import (
	"fmt"
	"strings"
)

const (
	infoTimeLayout   = "2006/01/02 15:04:05"
	infoValuesPerRow = 6
)

// RenderInfo formats the scheduler diagnostics as markup.
func (m *Manager) RenderInfo() (string, error) {
	st := m.sched.State()
	count, err := m.store.FlashcardCount()
	if err != nil {
		return "", fmt.Errorf("%w: counting flashcards: %v", ErrPersistence, err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "*Last update*: %s\n", st.LastUpdate.Format(infoTimeLayout))
	fmt.Fprintf(&b, "*Flashcard showing freq*: %d\n", st.Frequency)
	fmt.Fprintf(&b, "*Time of day priorities*:\n%s\n", grid(st.TimeOfDayPriorities[:]))
	b.WriteString("*Flashcard showing distribution*:\n")
	fmt.Fprintf(&b, "_Day_:\n%s\n", grid(st.TimeOfDayDistribution[:]))
	fmt.Fprintf(&b, "_Hour_:\n%s\n", grid(st.WithinHourDistribution))
	fmt.Fprintf(&b, "*Flashcard count*: %d", count)
	return b.String(), nil
}

// grid lays values out in indented rows of zero padded numbers.
func grid(values []int) string {
	rows := make([]string, 0, (len(values)+infoValuesPerRow-1)/infoValuesPerRow)
	for start := 0; start < len(values); start += infoValuesPerRow {
		end := min(start+infoValuesPerRow, len(values))
		cells := make([]string, 0, end-start)
		for _, v := range values[start:end] {
			cells = append(cells, fmt.Sprintf("%03d", v))
		}
		rows = append(rows, "  "+strings.Join(cells, " "))
	}
	return strings.Join(rows, "\n")
}
