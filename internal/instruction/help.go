package instruction

import (
	"fmt"
	"strings"
)

type usage struct {
	keyword string
	syntax  string
	summary string
}

// usages is ordered the way commands are listed in the general help.
var usages = []usage{
	{"add", "add;<key>;<value>;<remarks>", "Add a flashcard. An existing key gets the new value and remarks and its priority restored to 99."},
	{"del", "del;<id or key>", "Delete a flashcard."},
	{"pri", "pri;<id or key>;<change>", "Change the priority of a flashcard by <change> (default 1). Priority stays within [0, 99]."},
	{"re", "re;<key>", "Answer the pending quiz with the key of the value shown."},
	{"freq", "freq;<count>", "Set how many flashcards are shown per day, within [0, 999]."},
	{"show", "show;<id or key>", "Show a flashcard."},
	{"info", "info", "Show the scheduler state and flashcard count."},
	{"time", "time;<hour>;<change>", "Change the time priority of an hour of day [0, 23] by <change> (default 1)."},
	{"help", "help;<command>", "Show the usage of a command, or list all commands."},
}

// Help lists every command keyword with its syntax.
func Help() string {
	var b strings.Builder
	b.WriteString("Commands (fields are separated by ';'):\n")
	for _, u := range usages {
		fmt.Fprintf(&b, "%s\n", u.syntax)
	}
	b.WriteString("Send help;<command> for details.")
	return b.String()
}

// Usage returns the detailed usage of a command keyword.
func Usage(keyword string) string {
	kw := strings.ToLower(strings.TrimSpace(keyword))
	for _, u := range usages {
		if u.keyword == kw {
			return u.syntax + "\n" + u.summary
		}
	}
	return "Unknown command: " + keyword
}

// Keywords returns the command keywords in help order.
func Keywords() []string {
	out := make([]string, len(usages))
	for i, u := range usages {
		out[i] = u.keyword
	}
	return out
}
