package instruction

import "strings"

// Type identifies what a chat command asks the bot to do.
type Type int

const (
	Unknown Type = iota
	Add
	Delete
	ChangePriority
	RespondToQuestion
	ChangeFrequency
	ShowFlashcard
	ShowInfo
	ChangeTimePriority
	ShowHelp
)

var typeNames = map[Type]string{
	Unknown:            "unknown",
	Add:                "add",
	Delete:             "delete",
	ChangePriority:     "change_priority",
	RespondToQuestion:  "respond_to_question",
	ChangeFrequency:    "change_frequency",
	ShowFlashcard:      "show_flashcard",
	ShowInfo:           "show_info",
	ChangeTimePriority: "change_time_priority",
	ShowHelp:           "show_help",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return "unknown"
}

// Types returns every instruction type, Unknown included.
func Types() []Type {
	return []Type{
		Unknown, Add, Delete, ChangePriority, RespondToQuestion,
		ChangeFrequency, ShowFlashcard, ShowInfo, ChangeTimePriority, ShowHelp,
	}
}

// keywords maps the first token of a command (lower-cased) to its type.
var keywords = map[string]Type{
	"add":  Add,
	"del":  Delete,
	"pri":  ChangePriority,
	"re":   RespondToQuestion,
	"freq": ChangeFrequency,
	"show": ShowFlashcard,
	"info": ShowInfo,
	"time": ChangeTimePriority,
	"help": ShowHelp,
}

// Instruction is a parsed chat command. Handlers validate the fields.
type Instruction struct {
	Type    Type
	Key     string
	Value   string
	Remarks string
}

const (
	separator = ";"
	maxTokens = 4
)

// Parse tokenizes a raw command line. It never fails: malformed input
// yields an Unknown or partially filled instruction.
func Parse(text string) Instruction {
	tokens := strings.Split(text, separator)
	if len(tokens) > maxTokens {
		tail := strings.Join(tokens[maxTokens-1:], separator)
		tokens = append(tokens[:maxTokens-1], tail)
	}
	for i := range tokens {
		tokens[i] = strings.TrimSpace(tokens[i])
	}

	typ, ok := keywords[strings.ToLower(tokens[0])]
	if !ok {
		return Instruction{Type: Unknown}
	}

	if len(tokens) == 1 {
		if typ == ShowInfo || typ == ShowHelp {
			return Instruction{Type: typ}
		}
		return Instruction{Type: Unknown}
	}

	at := func(i int, def string) string {
		if i < len(tokens) {
			return tokens[i]
		}
		return def
	}

	ins := Instruction{Type: typ}
	switch typ {
	case Add:
		ins.Key = tokens[1]
		ins.Value = at(2, "")
		ins.Remarks = at(3, "")
	case Delete, ShowFlashcard, ShowHelp:
		ins.Key = tokens[1]
	case ChangePriority, ChangeTimePriority:
		ins.Key = tokens[1]
		ins.Value = at(2, "1")
	case RespondToQuestion, ChangeFrequency:
		ins.Value = tokens[1]
	}
	return ins
}
