package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"unicode/utf8"

	"github.com/kalambet/recallbot/internal/flashcard"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

func colorize(color, text string) string {
	if noColor {
		return text
	}
	return color + text + colorReset
}

func printSuccess(format string, args ...any) {
	fmt.Fprintln(os.Stderr, colorize(colorGreen, "✓ "+fmt.Sprintf(format, args...)))
}

func printError(format string, args ...any) {
	fmt.Fprintln(os.Stderr, colorize(colorRed, "✗ "+fmt.Sprintf(format, args...)))
}

func printWarning(format string, args ...any) {
	fmt.Fprintln(os.Stderr, colorize(colorYellow, "⚠ "+fmt.Sprintf(format, args...)))
}

func printStatus(label string, format string, args ...any) {
	l := colorize(colorBold, label+":")
	fmt.Fprintf(os.Stderr, "  %s %s\n", l, fmt.Sprintf(format, args...))
}

func printStep(format string, args ...any) {
	fmt.Fprintln(os.Stderr, colorize(colorCyan, "→ "+fmt.Sprintf(format, args...)))
}

// writeCardTable prints one line per card: id, priority, key and value.
func writeCardTable(w io.Writer, cards []flashcard.Flashcard) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPRI\tKEY\tVALUE")
	for _, c := range cards {
		fmt.Fprintf(tw, "%d\t%d\t%s\t%s\n", c.ID, c.Priority, oneLine(c.Key, 30), oneLine(c.Value, 50))
	}
	return tw.Flush()
}

// writeCard prints every field of a single card.
func writeCard(w io.Writer, c flashcard.Flashcard) {
	fmt.Fprintf(w, "%s %d\n", colorize(colorBold, "ID:"), c.ID)
	fmt.Fprintf(w, "%s %s\n", colorize(colorBold, "Key:"), c.Key)
	fmt.Fprintf(w, "%s %s\n", colorize(colorBold, "Value:"), c.Value)
	if c.Remarks != "" {
		fmt.Fprintf(w, "%s %s\n", colorize(colorBold, "Remarks:"), c.Remarks)
	}
	fmt.Fprintf(w, "%s %d\n", colorize(colorBold, "Priority:"), c.Priority)
}

func oneLine(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) > limit {
		return string([]rune(s)[:limit-3]) + "..."
	}
	return s
}
