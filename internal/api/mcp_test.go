package api

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kalambet/recallbot/internal/flashcard"
	"github.com/kalambet/recallbot/internal/storage"
)

// --- helpers ---

func newTestMCPDeps(t *testing.T) (MCPDeps, *storage.Store) {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return MCPDeps{Store: store, Version: "test"}, store
}

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("no content in result")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return tc.Text
}

func makeCallToolRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func makeReadResourceRequest(uri string) mcp.ReadResourceRequest {
	return mcp.ReadResourceRequest{
		Params: mcp.ReadResourceParams{
			URI: uri,
		},
	}
}

// --- tests ---

func TestNewMCPServer(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	if s := NewMCPServer(deps); s == nil {
		t.Fatal("NewMCPServer returned nil")
	}
}

func TestMCPTool_AddFlashcard(t *testing.T) {
	deps, store := newTestMCPDeps(t)
	handler := mcpAddFlashcard(deps)

	req := makeCallToolRequest("add_flashcard", map[string]interface{}{
		"key":      "der Hund",
		"value":    "the dog",
		"priority": float64(55),
	})
	result, err := handler(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error: %s", toolText(t, result))
	}

	card, err := store.GetFlashcardByKey("der Hund")
	if err != nil {
		t.Fatalf("GetFlashcardByKey: %v", err)
	}
	if card.Value != "the dog" || card.Priority != 55 {
		t.Errorf("stored card = %+v", card)
	}
}

func TestMCPTool_AddFlashcard_ClampsPriority(t *testing.T) {
	deps, store := newTestMCPDeps(t)
	req := makeCallToolRequest("add_flashcard", map[string]interface{}{"key": "k", "priority": float64(500)})
	if result, _ := mcpAddFlashcard(deps)(context.Background(), req); result.IsError {
		t.Fatalf("unexpected error: %s", toolText(t, result))
	}
	card, _ := store.GetFlashcardByKey("k")
	if card.Priority != flashcard.HighestPriority {
		t.Errorf("priority = %d, want %d", card.Priority, flashcard.HighestPriority)
	}
}

func TestMCPTool_AddFlashcard_Errors(t *testing.T) {
	deps, store := newTestMCPDeps(t)
	seed(t, store, "taken")
	handler := mcpAddFlashcard(deps)

	tests := []struct {
		name string
		args map[string]interface{}
		want string
	}{
		{"missing key", map[string]interface{}{"value": "v"}, "key is required"},
		{"blank key", map[string]interface{}{"key": "  "}, "key is required"},
		{"duplicate", map[string]interface{}{"key": "taken"}, "already exists"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := handler(context.Background(), makeCallToolRequest("add_flashcard", tt.args))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !result.IsError {
				t.Fatal("expected IsError result")
			}
			if got := toolText(t, result); !strings.Contains(got, tt.want) {
				t.Errorf("text = %q, want it to contain %q", got, tt.want)
			}
		})
	}
}

func TestMCPTool_GetFlashcard(t *testing.T) {
	deps, store := newTestMCPDeps(t)
	seed(t, store, "zero", "one")
	handler := mcpGetFlashcard(deps)

	result, _ := handler(context.Background(), makeCallToolRequest("get_flashcard", map[string]interface{}{"ref": "1"}))
	if result.IsError {
		t.Fatalf("unexpected error: %s", toolText(t, result))
	}
	var card flashcard.Flashcard
	if err := json.Unmarshal([]byte(toolText(t, result)), &card); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if card.Key != "one" {
		t.Errorf("key = %q, want %q", card.Key, "one")
	}

	result, _ = handler(context.Background(), makeCallToolRequest("get_flashcard", map[string]interface{}{"ref": "nope"}))
	if !result.IsError {
		t.Error("expected IsError for unknown ref")
	}
}

func TestMCPTool_DeleteFlashcard(t *testing.T) {
	deps, store := newTestMCPDeps(t)
	seed(t, store, "a")
	handler := mcpDeleteFlashcard(deps)

	result, _ := handler(context.Background(), makeCallToolRequest("delete_flashcard", map[string]interface{}{"ref": "a"}))
	if result.IsError {
		t.Fatalf("unexpected error: %s", toolText(t, result))
	}
	if n, _ := store.FlashcardCount(); n != 0 {
		t.Errorf("count = %d, want 0", n)
	}

	result, _ = handler(context.Background(), makeCallToolRequest("delete_flashcard", map[string]interface{}{"ref": "a"}))
	if !result.IsError {
		t.Error("expected IsError deleting a missing card")
	}
}

func TestMCPTool_ListFlashcards(t *testing.T) {
	deps, store := newTestMCPDeps(t)
	handler := mcpListFlashcards(deps)

	result, _ := handler(context.Background(), makeCallToolRequest("list_flashcards", nil))
	if got := toolText(t, result); got != "[]" {
		t.Errorf("empty list = %q, want []", got)
	}

	seed(t, store, "a", "b", "c")
	result, _ = handler(context.Background(), makeCallToolRequest("list_flashcards", map[string]interface{}{
		"limit":  float64(2),
		"offset": float64(1),
	}))
	var cards []flashcard.Flashcard
	if err := json.Unmarshal([]byte(toolText(t, result)), &cards); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(cards) != 2 || cards[0].Key != "b" {
		t.Errorf("cards = %+v, want b and c", cards)
	}
}

func TestMCPResource_Stats(t *testing.T) {
	deps, store := newTestMCPDeps(t)
	seed(t, store, "a", "b")
	handler := mcpResourceStats(deps)

	contents, err := handler(context.Background(), makeReadResourceRequest("flashcards://stats"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(contents) != 1 {
		t.Fatalf("expected 1 content, got %d", len(contents))
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("expected TextResourceContents, got %T", contents[0])
	}
	if tc.Text != `{"count":2}` {
		t.Errorf("stats = %q, want %q", tc.Text, `{"count":2}`)
	}
}
