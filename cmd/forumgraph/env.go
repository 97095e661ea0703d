package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"forumgraph/internal/config"
	"forumgraph/internal/crawl"
	"forumgraph/internal/export"
	"forumgraph/internal/fetch"
	"forumgraph/internal/logger"
	"forumgraph/internal/store"
)

// env is what every command that touches the crawl database needs.
type env struct {
	cfg   config.Config
	log   *slog.Logger
	store *store.Store
}

// loadConfig reads the config file and environment, then applies whichever
// command-line flags were given.
func loadConfig(c *cli.Command) (config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return cfg, err
	}
	applyFlags(c, &cfg)
	return cfg, cfg.Validate()
}

func applyFlags(c *cli.Command, cfg *config.Config) {
	if c.IsSet("forum-url") {
		cfg.ForumURL = c.String("forum-url")
	}
	if c.IsSet("rate-limit") {
		cfg.RateLimitSeconds = c.Float("rate-limit")
	}
	if c.IsSet("output-dir") {
		cfg.OutputDir = c.String("output-dir")
	}
	if c.IsSet("db") {
		cfg.DatabasePath = c.String("db")
	}
	if c.IsSet("implicit-reply") {
		cfg.EnableImplicitReply = c.Bool("implicit-reply")
	}
	if c.IsSet("thread-limit") {
		cfg.ThreadLimit = c.Int("thread-limit")
	}
	if c.IsSet("max-pages") {
		cfg.MaxForumPages = c.Int("max-pages")
	}
	if c.IsSet("workers") {
		cfg.Workers = c.Int("workers")
	}
	if c.IsSet("feed") {
		cfg.UseFeed = c.Bool("feed")
	}
	if c.IsSet("log-level") {
		cfg.Log.Level = c.String("log-level")
	}
	if c.IsSet("log-format") {
		cfg.Log.Format = c.String("log-format")
	}
}

func openEnv(c *cli.Command) (*env, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	return newEnv(cfg, os.Stderr)
}

func newEnv(cfg config.Config, logOut io.Writer) (*env, error) {
	log := logger.New(cfg.Log.Level, cfg.Log.Format, logOut)
	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	s, err := store.Open(cfg.DatabasePath, store.WithLogger(log))
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, log: log, store: s}, nil
}

func (e *env) Close() {
	if err := e.store.Close(); err != nil {
		e.log.Error("failed to close database", "error", err)
	}
}

// coordinator wires one paced fetcher into a crawl coordinator. Every request
// the coordinator makes goes through the same pacer.
func (e *env) coordinator() *crawl.Coordinator {
	pacer := fetch.NewPacer(e.cfg.RateLimit(), nil, nil)
	client := fetch.New(fetch.Options{
		Timeout:    e.cfg.RequestTimeout,
		UserAgent:  e.cfg.UserAgent,
		MaxRetries: e.cfg.MaxRetries,
		Pacer:      pacer,
		Logger:     e.log,
	})
	return crawl.New(client, e.store, crawl.Options{
		ForumURL:         e.cfg.ForumURL,
		MaxForumPages:    e.cfg.MaxForumPages,
		ThreadLimit:      e.cfg.ThreadLimit,
		ThreadPageLimit:  e.cfg.ThreadPageLimit,
		Workers:          e.cfg.Workers,
		UseFeed:          e.cfg.UseFeed,
		ImplicitReply:    e.cfg.EnableImplicitReply,
		UserRefreshAfter: e.cfg.UserRefreshAfter,
		Logger:           e.log,
	})
}

// finish exports the tables and reports the run. The report error wins over
// the export error since it is the one the user acted on.
func (e *env) finish(ctx context.Context, r *crawl.Report, runErr error, out io.Writer) error {
	if r != nil {
		fmt.Fprintln(out, r.String())
	}
	counts, err := export.WriteTables(ctx, e.store, e.cfg.OutputDir)
	if err != nil {
		e.log.Error("export failed", "output_dir", e.cfg.OutputDir, "error", err)
	} else {
		e.log.Info("tables written", "output_dir", e.cfg.OutputDir,
			"threads", counts["threads"], "posts", counts["posts"], "users", counts["users"], "interactions", counts["interactions"])
	}
	if runErr != nil {
		return runErr
	}
	if r != nil {
		if rerr := r.Err(); rerr != nil {
			return rerr
		}
	}
	return err
}

// crawlPass is one full forum crawl followed by an export.
func crawlPass(ctx context.Context, cfg config.Config, out io.Writer) error {
	if err := cfg.RequireForum(); err != nil {
		return err
	}
	e, err := newEnv(cfg, os.Stderr)
	if err != nil {
		return err
	}
	defer e.Close()
	r, err := e.coordinator().CrawlForum(ctx)
	return e.finish(ctx, r, err, out)
}
