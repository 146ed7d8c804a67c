// Package main is the Scout CLI entry point.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/hyperjump/scout/internal/cli"
	"github.com/hyperjump/scout/internal/config"
	"github.com/hyperjump/scout/internal/models"
	"github.com/hyperjump/scout/internal/server"
	"github.com/hyperjump/scout/pkg/utils"
	urfave "github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/scout/config.yaml"
	shutdownTimeout   = 10 * time.Second
	clientTimeout     = 2 * time.Minute
)

// loadConfig loads config from path. When path is the default and a config.yaml
// exists in the current directory, that file is used instead so running from the
// project directory picks up the project's config.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, err := os.Getwd(); err == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				path = fallback
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// setup loads the config named by --config and builds the logger.
func setup(c *urfave.Context) (*config.Config, *zap.Logger, error) {
	cfg, resolved, err := loadConfig(c.String("config"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	debug := cfg.Debug || c.Bool("debug")
	logger, err := utils.NewLogger(debug)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	logger.Debug("Config loaded", zap.String("config_path", resolved), zap.Bool("debug", debug))
	return cfg, logger, nil
}

func ownerFlag() urfave.Flag {
	return &urfave.StringFlag{
		Name:     "owner",
		Aliases:  []string{"o"},
		Usage:    "Owner id whose documents the command works on",
		EnvVars:  []string{"SCOUT_OWNER"},
		Required: true,
	}
}

func serverFlag() urfave.Flag {
	return &urfave.StringFlag{
		Name:  "server",
		Usage: "Send the request to a running server at this URL instead of opening the stores directly",
	}
}

func outputFlag() urfave.Flag {
	return &urfave.StringFlag{
		Name:  "output",
		Usage: "Output format: text or json",
		Value: string(cli.OutputText),
	}
}

func newApp() *urfave.App {
	return &urfave.App{
		Name:    "scout",
		Usage:   "Multi-tenant document question answering",
		Version: version,
		Flags: []urfave.Flag{
			&urfave.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Config file path",
				Value:   defaultConfigPath,
				EnvVars: []string{"SCOUT_CONFIG"},
			},
			&urfave.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
			},
		},
		Commands: []*urfave.Command{
			{
				Name:   "server",
				Usage:  "Start the HTTP API with the ingestion worker",
				Action: serverCommand,
			},
			{
				Name:   "worker",
				Usage:  "Run only the ingestion worker",
				Action: workerCommand,
			},
			{
				Name:      "ingest",
				Usage:     "Upload a local PDF or DOCX file",
				ArgsUsage: "<file>",
				Action:    ingestCommand,
				Flags: []urfave.Flag{
					ownerFlag(),
					serverFlag(),
					outputFlag(),
					&urfave.BoolFlag{
						Name:  "wait",
						Usage: "Process the queue before returning and print the final status",
					},
				},
			},
			{
				Name:      "ask",
				Usage:     "Ask a question about an owner's documents",
				ArgsUsage: "<question>",
				Action:    askCommand,
				Flags: []urfave.Flag{
					ownerFlag(),
					serverFlag(),
					outputFlag(),
					&urfave.IntFlag{
						Name:    "top-k",
						Aliases: []string{"k"},
						Usage:   "Number of passages to retrieve (0 uses the configured default)",
					},
				},
			},
			{
				Name:   "rebuild",
				Usage:  "Re-ingest every document of an owner",
				Action: rebuildCommand,
				Flags:  []urfave.Flag{ownerFlag(), serverFlag()},
			},
			{
				Name:   "status",
				Usage:  "Show an owner's index statistics",
				Action: statusCommand,
				Flags:  []urfave.Flag{ownerFlag(), serverFlag(), outputFlag()},
			},
			{
				Name:  "version",
				Usage: "Show version",
				Action: func(c *urfave.Context) error {
					fmt.Fprintf(c.App.Writer, "scout version %s\n", version)
					return nil
				},
			},
		},
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func serverCommand(c *urfave.Context) error {
	cfg, logger, err := setup(c)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer components.Close()

	components.Worker.Start(ctx)
	qw, err := startQueueWatcher(ctx, cfg, components.Worker, logger)
	if err != nil {
		return err
	}
	if qw != nil {
		defer qw.Stop()
	}

	srv := server.NewServer(components.Documents, components.Engine, components.Records,
		components.Vectors, components.Queue, cfg, version, logger)
	errc := make(chan error, 1)
	go func() { errc <- srv.Start() }()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Stop(shutdownCtx)
}

func workerCommand(c *urfave.Context) error {
	cfg, logger, err := setup(c)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer components.Close()

	components.Worker.Start(ctx)
	qw, err := startQueueWatcher(ctx, cfg, components.Worker, logger)
	if err != nil {
		return err
	}
	if qw != nil {
		defer qw.Stop()
	}
	<-ctx.Done()
	logger.Info("Shutting down...")
	return nil
}

func ingestCommand(c *urfave.Context) error {
	path := c.Args().First()
	if path == "" {
		return errors.New("a file path is required")
	}
	format, err := cli.ParseOutputFormat(c.String("output"))
	if err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if url := c.String("server"); url != "" {
		doc, err := cli.NewClient(url, c.String("owner"), clientTimeout).Upload(c.Context, path, f)
		if err != nil {
			return err
		}
		return cli.WriteDocument(c.App.Writer, doc, format)
	}

	cfg, logger, err := setup(c)
	if err != nil {
		return err
	}
	defer logger.Sync()
	components, err := initializeComponents(c.Context, cfg, logger)
	if err != nil {
		return err
	}
	defer components.Close()

	doc, err := components.Documents.Upload(c.Context, c.String("owner"), filepath.Base(path), f)
	if err != nil {
		return err
	}
	if c.Bool("wait") {
		if _, err := components.Worker.ProcessQueue(c.Context); err != nil {
			return err
		}
		if doc, err = components.Documents.Get(c.Context, doc.OwnerID, doc.ID); err != nil {
			return err
		}
	}
	return cli.WriteDocument(c.App.Writer, doc, format)
}

func askCommand(c *urfave.Context) error {
	query := buildQuery(c.Args().Slice())
	if query == "" {
		return models.ErrEmptyQuery
	}
	format, err := cli.ParseOutputFormat(c.String("output"))
	if err != nil {
		return err
	}

	var ans *models.Answer
	if url := c.String("server"); url != "" {
		ans, err = cli.NewClient(url, c.String("owner"), clientTimeout).Ask(c.Context, query, c.Int("top-k"))
	} else {
		ans, err = withComponents(c, func(components *Components) (*models.Answer, error) {
			return components.Engine.Answer(c.Context, c.String("owner"), query, c.Int("top-k"))
		})
	}
	if err != nil {
		return err
	}
	return cli.WriteAnswer(c.App.Writer, ans, format)
}

func rebuildCommand(c *urfave.Context) error {
	var n int
	var err error
	if url := c.String("server"); url != "" {
		n, err = cli.NewClient(url, c.String("owner"), clientTimeout).Rebuild(c.Context)
	} else {
		n, err = withComponents(c, func(components *Components) (int, error) {
			return components.Documents.Rebuild(c.Context, c.String("owner"))
		})
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Queued %d documents for re-ingestion\n", n)
	return nil
}

func statusCommand(c *urfave.Context) error {
	format, err := cli.ParseOutputFormat(c.String("output"))
	if err != nil {
		return err
	}
	var stats *models.IndexStats
	if url := c.String("server"); url != "" {
		stats, err = cli.NewClient(url, c.String("owner"), clientTimeout).Stats(c.Context)
	} else {
		stats, err = withComponents(c, func(components *Components) (*models.IndexStats, error) {
			return components.Documents.Stats(c.Context, c.String("owner"))
		})
	}
	if err != nil {
		return err
	}
	return cli.WriteStats(c.App.Writer, stats, format)
}

// withComponents runs fn against stores opened from the command's config.
func withComponents[T any](c *urfave.Context, fn func(*Components) (T, error)) (T, error) {
	var zero T
	cfg, logger, err := setup(c)
	if err != nil {
		return zero, err
	}
	defer logger.Sync()
	components, err := initializeComponents(c.Context, cfg, logger)
	if err != nil {
		return zero, err
	}
	defer components.Close()
	return fn(components)
}

// buildQuery joins positional args so multi-word questions work with or without quotes.
func buildQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}
