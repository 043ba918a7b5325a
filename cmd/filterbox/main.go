// Package main provides the CLI entry point for filterbox.
package main

import (
	"context"
	"fmt"
	"image"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/ideamans/go-l10n"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v2"

	"github.com/user/filterbox/pkg/adapters/fetch"
	"github.com/user/filterbox/pkg/adapters/ffmpegcodec"
	"github.com/user/filterbox/pkg/adapters/filesink"
	"github.com/user/filterbox/pkg/adapters/ggrenderer"
	"github.com/user/filterbox/pkg/adapters/httpseg"
	"github.com/user/filterbox/pkg/adapters/logger"
	"github.com/user/filterbox/pkg/adapters/mjpegmp4"
	"github.com/user/filterbox/pkg/adapters/nullsink"
	"github.com/user/filterbox/pkg/adapters/osfilesystem"
	"github.com/user/filterbox/pkg/cache"
	"github.com/user/filterbox/pkg/config"
	"github.com/user/filterbox/pkg/filters"
	"github.com/user/filterbox/pkg/orchestrator"
	"github.com/user/filterbox/pkg/ports"
	"github.com/user/filterbox/pkg/server"
	"github.com/user/filterbox/pkg/stages/preview"
)

var version = "dev"

func main() {
	app := &cli.App{
		Name:  "filterbox",
		Usage: l10n.T("Apply background filters to videos and serve the results"),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   l10n.T("Path to a YAML configuration file"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Value:   "info",
				Usage:   l10n.T("Log level (debug, info, warn, error)"),
			},
			&cli.StringFlag{
				Name:  "log-format",
				Value: "console",
				Usage: l10n.T("Log format (console or json)"),
			},
			&cli.BoolFlag{
				Name:    "quiet",
				Aliases: []string{"Q"},
				Usage:   l10n.T("Suppress all log output"),
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			processCommand(),
			cacheCommand(),
			versionCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: l10n.T("Run the HTTP server"),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "bind",
				Aliases: []string{"b"},
				Usage:   l10n.T("Listen address (overrides configuration)"),
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			if bind := c.String("bind"); bind != "" {
				cfg.Bind = bind
			}
			log := buildLogger(c)

			ctx, cancel := signalContext(log)
			defer cancel()

			env, err := buildEnvironment(cfg, log)
			if err != nil {
				return err
			}
			defer env.Close()

			previewer := preview.NewGenerator(env.Decoder, ggrenderer.New(), log, preview.DefaultOptions())

			srv, err := server.New(cfg.ToServerOptions(), server.Deps{
				Cache:     env.Cache,
				Registry:  env.Registry,
				Processor: env.Pipeline,
				Fetcher:   fetch.New(cfg.UploadDir, log, fetch.Options{YtDlpPath: cfg.YtDlpPath}),
				Previewer: previewer,
				Logger:    log,
			})
			if err != nil {
				return err
			}
			if err := srv.Start(ctx); err != nil {
				return err
			}

			<-ctx.Done()
			log.Info(l10n.T("Shutting down"))
			srv.Stop()
			return nil
		},
	}
}

func processCommand() *cli.Command {
	return &cli.Command{
		Name:      "process",
		Usage:     l10n.T("Process one video into filter variants"),
		ArgsUsage: "<video path or URL>",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:    "filter",
				Aliases: []string{"f"},
				Usage:   l10n.T("Filter to apply (repeatable, default: all)"),
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit(l10n.T("Exactly one video path or URL is required"), 2)
			}
			locator := c.Args().First()

			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			log := buildLogger(c)

			ctx, cancel := signalContext(log)
			defer cancel()

			env, err := buildEnvironment(cfg, log)
			if err != nil {
				return err
			}
			defer env.Close()

			fetcher := fetch.New(cfg.UploadDir, log, fetch.Options{YtDlpPath: cfg.YtDlpPath})
			sourcePath, err := fetcher.Fetch(ctx, locator, cfg.TempDir)
			if err != nil {
				return err
			}

			key := cache.Derive(locator)
			log.Info(l10n.F("Processing %s", locator))

			result, err := env.Pipeline.ProcessAll(ctx, sourcePath, key, c.StringSlice("filter"))
			if err != nil {
				return err
			}

			if result.Reused {
				log.Info(l10n.T("All variants were already cached"))
			} else {
				log.Info(l10n.F("Processed %d frames", result.FrameCount))
			}
			printArtifacts(result)
			return nil
		},
	}
}

func cacheCommand() *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: l10n.T("Inspect the processed-video cache"),
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: l10n.T("List cached variants"),
				Action: func(c *cli.Context) error {
					cfg, err := loadConfig(c)
					if err != nil {
						return err
					}
					log := buildLogger(c)

					mgr, err := cache.Open(cfg.CacheDir, log, cache.Options{LeaseTimeout: cfg.LeaseTimeout()})
					if err != nil {
						return err
					}
					defer mgr.Close()

					artifacts, err := mgr.List(context.Background())
					if err != nil {
						return err
					}

					t := table.NewWriter()
					t.SetOutputMirror(os.Stdout)
					t.AppendHeader(table.Row{"KEY", "FILTER", "FRAMES", "SIZE", "CREATED"})
					for _, a := range artifacts {
						t.AppendRow(table.Row{
							shortKey(a.Key),
							a.FilterID,
							a.Meta.TotalFrames,
							fmt.Sprintf("%.1f KB", float64(a.Size)/1024),
							a.CreatedAt.Format("2006-01-02 15:04:05"),
						})
					}
					t.Render()
					return nil
				},
			},
		},
	}
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: l10n.T("Show version information"),
		Action: func(c *cli.Context) error {
			fmt.Println(l10n.F("filterbox version %s", version))
			return nil
		},
	}
}

// environment bundles the long-lived collaborators a command wires up.
type environment struct {
	Cache    *cache.Manager
	Registry *filters.Registry
	Pipeline *orchestrator.Pipeline
	Decoder  ports.VideoDecoder
}

func (e *environment) Close() {
	_ = e.Cache.Close()
}

func buildEnvironment(cfg config.Config, log ports.Logger) (*environment, error) {
	mgr, err := cache.Open(cfg.CacheDir, log, cache.Options{LeaseTimeout: cfg.LeaseTimeout()})
	if err != nil {
		return nil, err
	}

	decoder, newEncoder, remuxer, err := buildCodec(cfg)
	if err != nil {
		_ = mgr.Close()
		return nil, err
	}

	var segmenter ports.Segmenter
	if cfg.SegmenterURL != "" {
		segmenter = httpseg.New(cfg.SegmenterURL, log, httpseg.Options{})
	} else {
		log.Warn(l10n.T("No segmenter configured, every pixel is treated as background"))
		segmenter = backgroundOnlySegmenter{}
	}

	var sink ports.DebugSink
	if cfg.Debug {
		fs := osfilesystem.New()
		if err := fs.MkdirAll(cfg.DebugDir); err != nil {
			_ = mgr.Close()
			return nil, fmt.Errorf("create debug directory: %w", err)
		}
		sink = filesink.New(cfg.DebugDir, fs, ggrenderer.New())
	} else {
		sink = nullsink.New()
	}

	registry := filters.Default()
	pipeline := orchestrator.New(
		decoder,
		segmenter,
		newEncoder,
		remuxer,
		registry,
		mgr,
		sink,
		log,
		cfg.ToPipelineConfig(),
	)

	return &environment{
		Cache:    mgr,
		Registry: registry,
		Pipeline: pipeline,
		Decoder:  decoder,
	}, nil
}

func buildCodec(cfg config.Config) (ports.VideoDecoder, func() ports.VideoEncoder, ports.AudioRemuxer, error) {
	switch cfg.Codec {
	case "", "ffmpeg":
		paths := ffmpegcodec.Paths{FFmpeg: cfg.FFmpegPath, FFprobe: cfg.FFprobePath}
		decoder := ffmpegcodec.NewDecoder(paths)
		newEncoder := func() ports.VideoEncoder { return ffmpegcodec.NewEncoder(paths) }
		return decoder, newEncoder, ffmpegcodec.NewRemuxer(paths), nil
	case "mjpeg":
		// Pure-Go path: no audio remuxing, variants come out silent.
		newEncoder := func() ports.VideoEncoder { return mjpegmp4.NewEncoder() }
		return mjpegmp4.NewDecoder(), newEncoder, nil, nil
	default:
		return nil, nil, nil, fmt.Errorf("unknown codec %q", cfg.Codec)
	}
}

func loadConfig(c *cli.Context) (config.Config, error) {
	path := c.String("config")
	if path == "" {
		return config.Defaults(), nil
	}
	return config.LoadFromFile(path)
}

func buildLogger(c *cli.Context) ports.Logger {
	if c.Bool("quiet") {
		return logger.NewNoop()
	}
	level := ports.ParseLogLevel(c.String("log-level"))
	if c.String("log-format") == "json" {
		return logger.NewLogrusDefault(level)
	}
	return logger.NewConsole(level)
}

func signalContext(log ports.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Warn(l10n.T("Interrupted, shutting down..."))
		cancel()
	}()
	return ctx, cancel
}

func printArtifacts(result orchestrator.RunResult) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"FILTER", "PATH", "SIZE"})
	for _, id := range sortedIDs(result.Artifacts) {
		a := result.Artifacts[id]
		t.AppendRow(table.Row{a.FilterID, a.Path, fmt.Sprintf("%.1f KB", float64(a.Size)/1024)})
	}
	t.Render()
}

func sortedIDs(artifacts map[string]cache.Artifact) []string {
	ids := make([]string, 0, len(artifacts))
	for id := range artifacts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// backgroundOnlySegmenter stands in when no segmentation service is
// configured. Filters then apply to the whole frame.
type backgroundOnlySegmenter struct{}

func (backgroundOnlySegmenter) Segment(ctx context.Context, frame image.Image) (*ports.Mask, error) {
	b := frame.Bounds()
	return ports.NewMask(b.Dx(), b.Dy()), nil
}

func (backgroundOnlySegmenter) Close() error { return nil }

func shortKey(key string) string {
	if len(key) > 12 {
		return key[:12]
	}
	return key
}
