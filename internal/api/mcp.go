package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/recallbot/internal/flashcard"
	"github.com/kalambet/recallbot/internal/storage"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Store   *storage.Store
	Version string
}

// NewMCPServer creates an MCP server exposing the flashcard store.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	version := deps.Version
	if version == "" {
		version = "dev"
	}
	s := server.NewMCPServer(
		"recallbot",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("recallbot: spaced-repetition flashcards. Add cards here and the bot reviews them over Telegram."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("add_flashcard",
			mcp.WithDescription("Add a new flashcard. Fails if the key already exists."),
			mcp.WithString("key", mcp.Description("The prompt side of the card"), mcp.Required()),
			mcp.WithString("value", mcp.Description("The answer side of the card")),
			mcp.WithString("remarks", mcp.Description("Optional notes shown with the card")),
			mcp.WithNumber("priority", mcp.Description("Priority 0-99 (default 99); higher is reviewed more often")),
		),
		mcpAddFlashcard(deps),
	)

	s.AddTool(
		mcp.NewTool("get_flashcard",
			mcp.WithDescription("Look up a flashcard by numeric id or by key."),
			mcp.WithString("ref", mcp.Description("Flashcard id or key"), mcp.Required()),
		),
		mcpGetFlashcard(deps),
	)

	s.AddTool(
		mcp.NewTool("delete_flashcard",
			mcp.WithDescription("Delete a flashcard by numeric id or by key."),
			mcp.WithString("ref", mcp.Description("Flashcard id or key"), mcp.Required()),
		),
		mcpDeleteFlashcard(deps),
	)

	s.AddTool(
		mcp.NewTool("list_flashcards",
			mcp.WithDescription("List flashcards in id order."),
			mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 20, max 100)")),
			mcp.WithNumber("offset", mcp.Description("Number of flashcards to skip")),
		),
		mcpListFlashcards(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"flashcards://stats",
			"Flashcard Stats",
			mcp.WithResourceDescription("Number of stored flashcards as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceStats(deps),
	)

	return s
}

func mcpAddFlashcard(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		key, err := req.RequireString("key")
		if err != nil || strings.TrimSpace(key) == "" {
			return mcpError("key is required"), nil
		}

		card := flashcard.New(strings.TrimSpace(key), req.GetString("value", ""), req.GetString("remarks", ""))
		card.SetPriority(req.GetInt("priority", flashcard.HighestPriority))

		if err := deps.Store.InsertFlashcard(&card); err != nil {
			if errors.Is(err, flashcard.ErrDuplicateKey) {
				return mcpError(fmt.Sprintf("flashcard %q already exists", card.Key)), nil
			}
			return mcpError(fmt.Sprintf("failed to save: %v", err)), nil
		}

		return mcpText(fmt.Sprintf("Stored flashcard %d (%s)", card.ID, card.Key)), nil
	}
}

func mcpGetFlashcard(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ref, err := req.RequireString("ref")
		if err != nil {
			return mcpError("ref is required"), nil
		}

		card, err := flashcard.Resolve(deps.Store, ref)
		if errors.Is(err, flashcard.ErrNotFound) {
			return mcpError(fmt.Sprintf("flashcard %q not found", ref)), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("lookup failed: %v", err)), nil
		}

		return mcpJSON(card)
	}
}

func mcpDeleteFlashcard(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ref, err := req.RequireString("ref")
		if err != nil {
			return mcpError("ref is required"), nil
		}

		card, err := flashcard.Resolve(deps.Store, ref)
		if err == nil {
			err = deps.Store.DeleteFlashcard(card)
		}
		if errors.Is(err, flashcard.ErrNotFound) {
			return mcpError(fmt.Sprintf("flashcard %q not found", ref)), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("delete failed: %v", err)), nil
		}

		return mcpText(fmt.Sprintf("Deleted flashcard %d (%s)", card.ID, card.Key)), nil
	}
}

func mcpListFlashcards(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		limit := req.GetInt("limit", 20)
		if limit <= 0 {
			limit = 20
		}
		if limit > 100 {
			limit = 100
		}
		offset := max(req.GetInt("offset", 0), 0)

		cards, err := deps.Store.ListFlashcards(limit, offset)
		if err != nil {
			return mcpError(fmt.Sprintf("list failed: %v", err)), nil
		}
		if cards == nil {
			cards = []flashcard.Flashcard{}
		}
		return mcpJSON(cards)
	}
}

func mcpResourceStats(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		n, err := deps.Store.FlashcardCount()
		if err != nil {
			return nil, fmt.Errorf("failed to count flashcards: %w", err)
		}

		b, err := json.Marshal(StatsResponse{Count: n})
		if err != nil {
			return nil, fmt.Errorf("failed to marshal stats: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpJSON(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcpText(string(b)), nil
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
