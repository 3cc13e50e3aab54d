package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/kalambet/recallbot/internal/api"
	"github.com/kalambet/recallbot/internal/config"
	"github.com/kalambet/recallbot/internal/flashcard"
	"github.com/kalambet/recallbot/internal/storage"
)

// --- cards ---

var cardsCmd = &cobra.Command{
	Use:   "cards",
	Short: "Manage flashcards through the running bot",
}

var cardsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List flashcards",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		cards, err := listCards(cmd.Context(), client, limit, offset)
		if err != nil {
			return err
		}
		if len(cards) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No flashcards found.")
			return nil
		}
		return writeCardTable(cmd.OutOrStdout(), cards)
	},
}

var cardsShowCmd = &cobra.Command{
	Use:   "show <id|key>",
	Short: "Show a single flashcard",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		card, err := getCard(cmd.Context(), client, strings.Join(args, " "))
		if err != nil {
			return err
		}
		writeCard(cmd.OutOrStdout(), card)
		return nil
	},
}

var cardsAddCmd = &cobra.Command{
	Use:   "add <key> <value>",
	Short: "Add a flashcard",
	Long: `Add a flashcard.

Examples:
  recallbot cards add "der Hund" "the dog"
  recallbot cards add "mitochondria" "powerhouse of the cell" --remarks biology --priority 60`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		remarks, _ := cmd.Flags().GetString("remarks")
		req := api.CreateFlashcardRequest{Key: args[0], Value: args[1], Remarks: remarks}
		if cmd.Flags().Changed("priority") {
			p, _ := cmd.Flags().GetInt("priority")
			req.Priority = &p
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		card, err := addCard(cmd.Context(), client, req)
		if err != nil {
			return err
		}
		printSuccess("Added flashcard %d (%s)", card.ID, card.Key)
		return nil
	},
}

var cardsRmCmd = &cobra.Command{
	Use:   "rm <id|key>",
	Short: "Delete a flashcard",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ref := strings.Join(args, " ")
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		if err := deleteCard(cmd.Context(), client, ref); err != nil {
			return err
		}
		printSuccess("Deleted %s", ref)
		return nil
	},
}

func init() {
	cardsListCmd.Flags().Int("limit", 20, "maximum number of flashcards to list")
	cardsListCmd.Flags().Int("offset", 0, "number of flashcards to skip")
	cardsAddCmd.Flags().String("remarks", "", "notes shown with the card")
	cardsAddCmd.Flags().Int("priority", flashcard.HighestPriority, "priority 0-99")
	cardsCmd.AddCommand(cardsListCmd, cardsShowCmd, cardsAddCmd, cardsRmCmd)
}

func listCards(ctx context.Context, c *apiClient, limit, offset int) ([]flashcard.Flashcard, error) {
	resp, err := c.get(ctx, fmt.Sprintf("/flashcards?limit=%d&offset=%d", limit, offset))
	if err != nil {
		return nil, err
	}
	var cards []flashcard.Flashcard
	if err := decodeJSON(resp, &cards); err != nil {
		return nil, err
	}
	return cards, nil
}

func getCard(ctx context.Context, c *apiClient, ref string) (flashcard.Flashcard, error) {
	resp, err := c.get(ctx, "/flashcards/"+url.PathEscape(ref))
	if err != nil {
		return flashcard.Flashcard{}, err
	}
	var card flashcard.Flashcard
	if err := decodeJSON(resp, &card); err != nil {
		return flashcard.Flashcard{}, err
	}
	return card, nil
}

func addCard(ctx context.Context, c *apiClient, req api.CreateFlashcardRequest) (flashcard.Flashcard, error) {
	resp, err := c.post(ctx, "/flashcards", req)
	if err != nil {
		return flashcard.Flashcard{}, err
	}
	var card flashcard.Flashcard
	if err := decodeJSON(resp, &card); err != nil {
		return flashcard.Flashcard{}, err
	}
	return card, nil
}

func deleteCard(ctx context.Context, c *apiClient, ref string) error {
	resp, err := c.delete(ctx, "/flashcards/"+url.PathEscape(ref))
	if err != nil {
		return err
	}
	var result map[string]string
	return decodeJSON(resp, &result)
}

// --- export / import ---

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export all flashcards as CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")

		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		var w io.Writer = cmd.OutOrStdout()
		if output != "" {
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("creating output file: %w", err)
			}
			defer f.Close()
			w = f
		}

		n, err := exportCards(store, w)
		if err != nil {
			return err
		}
		if output != "" {
			printSuccess("Exported %d flashcards to %s", n, output)
		}
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import flashcards from CSV",
	Long: `Import flashcards from a CSV file written by "recallbot export".

Every record is inserted as a new flashcard with a fresh id. Records whose
key already exists are skipped.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		if file == "" {
			return errors.New("--file is required")
		}

		f, err := os.Open(file)
		if err != nil {
			return fmt.Errorf("opening %s: %w", file, err)
		}
		defer f.Close()

		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		printStep("Importing %s", file)
		inserted, skipped, err := importCards(store, f)
		if err != nil {
			return err
		}
		if skipped > 0 {
			printWarning("Skipped %d flashcards with existing keys", skipped)
		}
		printSuccess("Imported %d flashcards", inserted)
		return nil
	},
}

func init() {
	exportCmd.Flags().String("output", "", "output file path (default: stdout)")
	importCmd.Flags().String("file", "", "CSV file to import")
}

func openStore() (*storage.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}
	return store, nil
}

func exportCards(store *storage.Store, w io.Writer) (int, error) {
	cards, err := store.ExportAll()
	if err != nil {
		return 0, fmt.Errorf("reading flashcards: %w", err)
	}
	if err := flashcard.WriteCSV(w, cards); err != nil {
		return 0, fmt.Errorf("writing csv: %w", err)
	}
	return len(cards), nil
}

func importCards(store *storage.Store, r io.Reader) (inserted, skipped int, err error) {
	cards, err := flashcard.ReadCSV(r)
	if err != nil {
		return 0, 0, fmt.Errorf("reading csv: %w", err)
	}
	return store.ImportAll(cards)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		for _, k := range config.ShowAll(cfg) {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long:  "Set a configuration value. Valid keys: " + strings.Join(config.ValidKeys(), ", "),
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

// --- mcp ---

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the flashcard store over MCP (stdio)",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		s := api.NewMCPServer(api.MCPDeps{Store: store, Version: version})
		if err := server.NewStdioServer(s).Listen(cmd.Context(), os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("mcp server: %w", err)
		}
		return nil
	},
}
