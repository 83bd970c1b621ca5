package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	serveradapter "github.com/evanschultz/kandrag/internal/adapters/server"
	servercommon "github.com/evanschultz/kandrag/internal/adapters/server/common"
	"github.com/evanschultz/kandrag/internal/app"
	"github.com/evanschultz/kandrag/internal/domain"
	"github.com/spf13/cobra"
)

// newPathsCommand prints the resolved runtime paths.
func newPathsCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Print resolved config, data and database paths",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			resolved, err := resolvePaths(flags)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "app: %s\n", flags.appName)
			_, _ = fmt.Fprintf(out, "dev_mode: %t\n", flags.devMode)
			_, _ = fmt.Fprintf(out, "config: %s\n", resolved.ConfigPath)
			_, _ = fmt.Fprintf(out, "data_dir: %s\n", resolved.DataDir)
			_, _ = fmt.Fprintf(out, "db: %s\n", resolved.DBPath)
			return nil
		},
	}
}

// newExportCommand writes the board as a snapshot JSON document.
func newExportCommand(flags *rootFlags, stderr io.Writer) *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the board as snapshot JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd.Context(), flags, stderr, "export", func(ctx context.Context, s *session) error {
				return runExport(ctx, s.svc, outPath, cmd.OutOrStdout())
			})
		},
	}
	cmd.Flags().StringVar(&outPath, "out", "-", "output file path ('-' for stdout)")
	return cmd
}

// runExport runs the requested command flow.
func runExport(ctx context.Context, svc *app.Service, outPath string, stdout io.Writer) error {
	snap, err := svc.ExportSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("export snapshot: %w", err)
	}
	encoded, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot json: %w", err)
	}
	encoded = append(encoded, '\n')

	if outPath == "-" {
		if _, err := stdout.Write(encoded); err != nil {
			return fmt.Errorf("write snapshot to stdout: %w", err)
		}
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create export output dir: %w", err)
	}
	if err := os.WriteFile(outPath, encoded, 0o644); err != nil {
		return fmt.Errorf("write export file: %w", err)
	}
	return nil
}

// newImportCommand replaces the board from a snapshot JSON document.
func newImportCommand(flags *rootFlags, stderr io.Writer) *cobra.Command {
	var inPath string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Replace the board with a snapshot JSON file",
		Long: `Import replaces every column, card and recorded move with the contents
of a snapshot previously written by export.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd.Context(), flags, stderr, "import", func(ctx context.Context, s *session) error {
				return runImport(ctx, s.svc, inPath)
			})
		},
	}
	cmd.Flags().StringVar(&inPath, "in", "", "input snapshot JSON file (required)")
	_ = cmd.MarkFlagRequired("in")
	return cmd
}

// runImport runs the requested command flow.
func runImport(ctx context.Context, svc *app.Service, inPath string) error {
	content, err := os.ReadFile(inPath)
	if err != nil {
		return fmt.Errorf("read import file: %w", err)
	}
	var snap app.Snapshot
	if err := json.Unmarshal(content, &snap); err != nil {
		return fmt.Errorf("decode snapshot json: %w", err)
	}
	if err := svc.ImportSnapshot(ctx, snap); err != nil {
		return fmt.Errorf("import snapshot: %w", err)
	}
	return nil
}

// newCardCommand groups card subcommands.
func newCardCommand(flags *rootFlags, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "card",
		Short: "Manage cards",
	}
	cmd.AddCommand(newCardAddCommand(flags, stderr))
	return cmd
}

// newCardAddCommand appends a card to a column.
func newCardAddCommand(flags *rootFlags, stderr io.Writer) *cobra.Command {
	var in app.CreateCardInput
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Append a new card to a column",
		Long: `Add appends a card to the end of a column.

Example:
  kandrag card add --column todo --title "Write release notes"
  kandrag card add --column progress --title "Fix login" --description "Repro in **staging**"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd.Context(), flags, stderr, "card add", func(ctx context.Context, s *session) error {
				card, err := s.svc.CreateCard(ctx, in)
				if err != nil {
					return fmt.Errorf("create card: %w", err)
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "created %s in %s[%d]\n", card.ID, card.ColumnID, card.Position)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&in.ColumnID, "column", "", "column id (required)")
	cmd.Flags().StringVar(&in.Title, "title", "", "card title (default: the card id)")
	cmd.Flags().StringVar(&in.Description, "description", "", "card description markdown")
	_ = cmd.MarkFlagRequired("column")
	return cmd
}

// newMoveCommand moves one card headlessly through the drag controller.
func newMoveCommand(flags *rootFlags, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "move <card-id> <column-id> <index>",
		Short: "Move a card to a column position",
		Long: `Move lifts a card, targets column-id at index and drops it, exactly as a
keyboard drag in the board would. The index counts positions with the card
already removed and is clamped to the end of the column.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("parse index %q: %w", args[2], err)
			}
			return withSession(cmd.Context(), flags, stderr, "move", func(ctx context.Context, s *session) error {
				return runMove(ctx, s, args[0], args[1], index, cmd.OutOrStdout())
			})
		},
	}
}

// runMove moves one card through a headless keyboard gesture.
func runMove(ctx context.Context, s *session, cardID, columnID string, index int, out io.Writer) error {
	ev, err := s.svc.MoveCard(ctx, app.MoveCardInput{
		CardID:   cardID,
		ColumnID: columnID,
		Index:    index,
	}, s.controllerOptions()...)
	if err != nil {
		return err
	}
	if !ev.Moved() {
		_, _ = fmt.Fprintf(out, "%s already at %s[%d]\n", ev.CardID, ev.ToColumnID, ev.ToIndex)
		return nil
	}
	_, _ = fmt.Fprintf(out, "moved %s from %s[%d] to %s[%d]\n", ev.CardID, ev.FromColumnID, ev.FromIndex, ev.ToColumnID, ev.ToIndex)
	return nil
}

// newLogCommand prints the move ledger.
func newLogCommand(flags *rootFlags, stderr io.Writer) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show recently committed moves, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd.Context(), flags, stderr, "log", func(ctx context.Context, s *session) error {
				records, err := s.svc.ListMoves(ctx, limit)
				if err != nil {
					return fmt.Errorf("list moves: %w", err)
				}
				writeMoveLog(cmd.OutOrStdout(), records)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of moves to show")
	return cmd
}

// writeMoveLog renders ledger rows one per line.
func writeMoveLog(out io.Writer, records []domain.MoveRecord) {
	if len(records) == 0 {
		_, _ = fmt.Fprintln(out, "no moves recorded")
		return
	}
	for _, rec := range records {
		mv := rec.Move
		_, _ = fmt.Fprintf(out, "%s  %s  %s[%d] -> %s[%d]\n",
			rec.OccurredAt.UTC().Format(time.RFC3339),
			mv.CardID,
			mv.FromColumnID, mv.FromIndex,
			mv.ToColumnID, mv.ToIndex,
		)
	}
}

// serveCommandRunner starts the HTTP+MCP serve flow.
var serveCommandRunner = func(ctx context.Context, cfg serveradapter.Config, deps serveradapter.Dependencies) error {
	return serveradapter.Run(ctx, cfg, deps)
}

// newServeCommand exposes the board over the REST API and MCP.
func newServeCommand(flags *rootFlags, stderr io.Writer) *cobra.Command {
	var cfg serveradapter.Config
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the board over HTTP and MCP",
		Long: `Serve exposes the board on a local HTTP listener:

  GET  <api-endpoint>/board   committed board
  GET  <api-endpoint>/moves   move ledger, newest first
  POST <api-endpoint>/moves   move a card {"card_id","column_id","index"}
  <mcp-endpoint>              MCP tools kandrag.get_board, kandrag.move_card, kandrag.list_moves

Moves run through the same drag controller as the board and are applied one at a time.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd.Context(), flags, stderr, "serve", func(ctx context.Context, s *session) error {
				adapter := servercommon.NewAppServiceAdapter(s.svc, s.controllerOptions()...)
				deps := serveradapter.Dependencies{
					Board:  adapter,
					Moves:  adapter,
					Logger: s.logger.EngineSink(),
				}
				cfg.ServerName = flags.appName
				cfg.ServerVersion = version
				s.logger.Info("starting server", "http", cfg.HTTPBind, "api", cfg.APIEndpoint, "mcp", cfg.MCPEndpoint, "read_only", cfg.ReadOnly)
				return serveCommandRunner(ctx, cfg, deps)
			})
		},
	}
	cmd.Flags().StringVar(&cfg.HTTPBind, "http", "127.0.0.1:8080", "HTTP listen address")
	cmd.Flags().StringVar(&cfg.APIEndpoint, "api-endpoint", "/api/v1", "HTTP API base endpoint")
	cmd.Flags().StringVar(&cfg.MCPEndpoint, "mcp-endpoint", "/mcp", "MCP streamable HTTP endpoint")
	cmd.Flags().BoolVar(&cfg.ReadOnly, "read-only", false, "expose the board without move endpoints")
	return cmd
}
