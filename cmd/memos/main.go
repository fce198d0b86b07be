package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/memos/internal"
	"github.com/starford/memos/internal/document"
	"github.com/starford/memos/internal/linkgraph"
	"github.com/starford/memos/internal/pattern"
	"github.com/starford/memos/internal/render"
	"github.com/starford/memos/internal/store"
	pkgconfig "github.com/starford/memos/pkg/config"
)

var version = "dev"

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadWithDefaults(cmd.String("config"), "", cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg), internal.WithVersion(version)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.RunMCP(ctx, internal.WithConfig(cfg), internal.WithVersion(version)); err != nil {
		return fmt.Errorf("mcp run error: %w", err)
	}
	return nil
}

// readInput reads the file named by the first argument, or stdin.
func readInput(cmd *cli.Command) (string, error) {
	if path := cmd.Args().First(); path != "" && path != "-" {
		data, err := os.ReadFile(path)
		return string(data), err
	}
	data, err := io.ReadAll(os.Stdin)
	return string(data), err
}

func renderContent(_ context.Context, cmd *cli.Command) error {
	content, err := readInput(cmd)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	var out string
	switch {
	case cmd.Bool("canonical"):
		out = document.FromStorageString(content).ToStorageString()
	case cmd.Bool("preview"):
		out = render.Preview(content, 120)
	case cmd.Bool("plain"):
		out = render.PlainText(render.Render(content))
	default:
		out = render.Render(content)
	}
	_, err = fmt.Fprintln(os.Stdout, out)
	return err
}

func showLinks(ctx context.Context, cmd *cli.Command) error {
	id, ok := pattern.ParseMemoID(cmd.Args().First())
	if !ok {
		return fmt.Errorf("usage: memos links <memo-id>")
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	db, err := store.Open(cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	m, err := db.GetMemo(ctx, id)
	if err != nil {
		return err
	}
	g, err := linkgraph.NewResolver(db).Resolve(ctx, m.Content, m.ID)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(g)
}

func main() {
	cmd := &cli.Command{
		Name:    "memos",
		Usage:   "Memo editor core with link resolution, full-text search and a Markdown mirror",
		Version: version,
		Action:  serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API, SSE stream and vault mirror",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve MCP tools over stdio",
				Action: serveMCP,
			},
			{
				Name:      "render",
				Usage:     "Render memo content from a file or stdin",
				ArgsUsage: "[file]",
				Action:    renderContent,
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "plain", Usage: "Print plain text instead of HTML"},
					&cli.BoolFlag{Name: "preview", Usage: "Print the one-line preview"},
					&cli.BoolFlag{Name: "canonical", Usage: "Print the canonical storage form"},
				},
			},
			{
				Name:      "links",
				Usage:     "Print the forward and backward links of a memo as JSON",
				ArgsUsage: "<memo-id>",
				Action:    showLinks,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
