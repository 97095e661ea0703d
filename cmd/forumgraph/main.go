package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"forumgraph/internal/config"
	"forumgraph/internal/daemon"
	"forumgraph/internal/digest"
	"forumgraph/internal/export"
	"forumgraph/internal/list"
	"forumgraph/internal/logger"
	"forumgraph/internal/server"
	"forumgraph/internal/tui"
	"forumgraph/internal/version"
)

func crawlFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "forum-url", Usage: "Forum listing to crawl, e.g. https://forum.example/forums/general.3/"},
		&cli.FloatFlag{Name: "rate-limit", Usage: "Minimum seconds between two requests (default: 3)"},
		&cli.BoolFlag{Name: "implicit-reply", Usage: "Infer low-confidence replies between consecutive posts"},
		&cli.IntFlag{Name: "thread-limit", Usage: "Stop after this many threads (0: no limit)"},
		&cli.IntFlag{Name: "max-pages", Usage: "Read at most this many listing pages (0: no limit)"},
		&cli.IntFlag{Name: "workers", Usage: "Threads crawled in parallel; requests stay paced"},
		&cli.BoolFlag{Name: "feed", Usage: "Discover threads from the forum's RSS feed instead of its listing"},
	}
}

func main() {
	app := &cli.Command{
		Name:    "forumgraph",
		Usage:   "Crawl a XenForo forum into posts, members and a reply graph",
		Version: version.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "Path to forumgraph.yaml"},
			&cli.StringFlag{Name: "db", Usage: "Crawl database path"},
			&cli.StringFlag{Name: "output-dir", Aliases: []string{"o"}, Usage: "Directory for the CSV tables"},
			&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error"},
			&cli.StringFlag{Name: "log-format", Usage: "text or json"},
		},
		Commands: []*cli.Command{
			{
				Name:  "crawl",
				Usage: "Crawl every thread of the forum and export the tables",
				Flags: crawlFlags(),
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig(c)
					if err != nil {
						return err
					}
					return crawlPass(ctx, cfg, os.Stdout)
				},
			},
			{
				Name:  "thread",
				Usage: "Crawl a single thread",
				Flags: crawlFlags(),
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "url", UsageText: "thread url"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					url := c.StringArg("url")
					if url == "" {
						return errors.New("a thread url is required")
					}
					e, err := openEnv(c)
					if err != nil {
						return err
					}
					defer e.Close()
					r, err := e.coordinator().CrawlThread(ctx, url)
					return e.finish(ctx, r, err, os.Stdout)
				},
			},
			{
				Name:      "user",
				Aliases:   []string{"users"},
				Usage:     "Re-read member profiles regardless of when they were last scraped",
				ArgsUsage: "<profile url>...",
				Flags:     crawlFlags(),
				Action: func(ctx context.Context, c *cli.Command) error {
					urls := c.Args().Slice()
					if len(urls) == 0 {
						return errors.New("at least one profile url is required")
					}
					e, err := openEnv(c)
					if err != nil {
						return err
					}
					defer e.Close()
					r, err := e.coordinator().RefreshUsers(ctx, urls)
					return e.finish(ctx, r, err, os.Stdout)
				},
			},
			{
				Name:  "derive",
				Usage: "Recompute interactions from stored posts, for one thread or all of them",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "thread", UsageText: "thread id (default: every thread)"},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "implicit-reply", Usage: "Infer low-confidence replies between consecutive posts"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					e, err := openEnv(c)
					if err != nil {
						return err
					}
					defer e.Close()
					co := e.coordinator()
					if id := c.StringArg("thread"); id != "" {
						n, err := co.DeriveThread(ctx, id)
						if err != nil {
							return err
						}
						fmt.Printf("thread %s: %d interactions\n", id, n)
						return e.finish(ctx, nil, nil, os.Stdout)
					}
					r, err := co.DeriveAll(ctx)
					return e.finish(ctx, r, err, os.Stdout)
				},
			},
			{
				Name:  "export",
				Usage: "Write the CSV tables from the crawl database",
				Action: func(ctx context.Context, c *cli.Command) error {
					e, err := openEnv(c)
					if err != nil {
						return err
					}
					defer e.Close()
					return e.finish(ctx, nil, nil, os.Stdout)
				},
			},
			{
				Name:  "forums",
				Usage: "List the sub-forums of a forum directory page into forums.csv",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "url", UsageText: "directory url, e.g. https://forum.example/forums/"},
				},
				Flags: []cli.Flag{
					&cli.FloatFlag{Name: "rate-limit", Usage: "Minimum seconds between two requests (default: 3)"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					url := c.StringArg("url")
					if url == "" {
						return errors.New("a directory url is required")
					}
					e, err := openEnv(c)
					if err != nil {
						return err
					}
					defer e.Close()
					forums, err := e.coordinator().Forums(ctx, url)
					if err != nil {
						return err
					}
					n, err := export.WriteForums(forums, e.cfg.OutputDir)
					if err != nil {
						return err
					}
					for _, f := range forums {
						fmt.Printf("%s\t%s\n", f.Name, f.URL)
					}
					e.log.Info("forums written", "found", len(forums), "rows", n)
					return nil
				},
			},
			{
				Name:  "list",
				Usage: "Show crawl totals and the most recently scraped threads",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Usage: "Threads to show", Value: 10},
					&cli.BoolFlag{Name: "json", Usage: "Print JSON"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					e, err := openEnv(c)
					if err != nil {
						return err
					}
					defer e.Close()
					return list.Run(ctx, e.store, os.Stdout, list.Options{Limit: c.Int("limit"), JSON: c.Bool("json")})
				},
			},
			{
				Name:  "browse",
				Usage: "Browse crawled threads in the terminal",
				Action: func(ctx context.Context, c *cli.Command) error {
					e, err := openEnv(c)
					if err != nil {
						return err
					}
					defer e.Close()
					return tui.Run(ctx, e.store)
				},
			},
			{
				Name:  "serve",
				Usage: "Run MCP server on stdio",
				Action: func(ctx context.Context, c *cli.Command) error {
					// logs go to stderr; stdout carries the protocol
					e, err := openEnv(c)
					if err != nil {
						return err
					}
					defer e.Close()
					return server.New(e.store).Run(ctx)
				},
			},
			{
				Name:  "digest",
				Usage: "Summarize a crawled thread with an OpenAI-compatible model",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "thread", UsageText: "thread id"},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "stream", Usage: "Stream the answer as it is generated", Value: true},
					&cli.StringFlag{Name: "model", Usage: "Model name (default from config)"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					id := c.StringArg("thread")
					if id == "" {
						return errors.New("a thread id is required")
					}
					e, err := openEnv(c)
					if err != nil {
						return err
					}
					defer e.Close()
					ai := e.cfg.AI
					if c.IsSet("model") {
						ai.Model = c.String("model")
					}
					return digest.Run(ctx, e.store, id, digest.Options{AI: ai, Stream: c.Bool("stream")}, os.Stdout)
				},
			},
			{
				Name:  "daemon",
				Usage: "Crawl and export on a cron schedule",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "schedule", Usage: "Cron expression (default from config: every 6 hours)"},
					&cli.BoolFlag{Name: "now", Usage: "Run one pass immediately"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig(c)
					if err != nil {
						return err
					}
					if err := cfg.RequireForum(); err != nil {
						return err
					}
					schedule := cfg.Daemon.Schedule
					if c.IsSet("schedule") {
						schedule = c.String("schedule")
					}
					reload := config.FileLoader(c.String("config"))
					job := func(ctx context.Context) error {
						// edits to the config file apply from the next pass
						next, err := reload()
						if err != nil {
							return err
						}
						applyFlags(c, &next)
						return crawlPass(ctx, next, os.Stdout)
					}
					d, err := daemon.New(job, daemon.Options{
						Schedule: schedule,
						RunNow:   c.Bool("now"),
						Logger:   logger.New(cfg.Log.Level, cfg.Log.Format, os.Stderr),
					})
					if err != nil {
						return err
					}
					return d.Run(ctx)
				},
			},
			{
				Name:  "config",
				Usage: "Manage the configuration file",
				Commands: []*cli.Command{
					{
						Name:  "init",
						Usage: "Write a config file with the defaults and any flags given",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "forum-url", Usage: "Forum listing to crawl"},
							&cli.FloatFlag{Name: "rate-limit", Usage: "Minimum seconds between two requests"},
							&cli.BoolFlag{Name: "implicit-reply", Usage: "Infer low-confidence replies"},
							&cli.StringFlag{Name: "path", Usage: "Where to write (default ~/.config/forumgraph/forumgraph.yaml)"},
							&cli.BoolFlag{Name: "force", Usage: "Overwrite an existing file, keeping a backup"},
						},
						Action: func(ctx context.Context, c *cli.Command) error {
							path := c.String("path")
							if path == "" {
								p, err := config.DefaultConfigPath()
								if err != nil {
									return err
								}
								path = p
							}
							cfg := config.Default()
							applyFlags(c, &cfg)
							if err := config.WriteConfig(path, cfg, c.Bool("force")); err != nil {
								return err
							}
							fmt.Printf("Config written to %s\n", path)
							return nil
						},
					},
				},
			},
			{
				Name:  "version",
				Usage: "Print the version",
				Action: func(ctx context.Context, c *cli.Command) error {
					fmt.Println(version.GetVersion())
					return nil
				},
			},
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}
