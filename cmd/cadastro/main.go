// Command cadastro runs the registration shell.
//
// Usage:
//
//	cadastro serve   -config cadastro.yaml          # serve the pages
//	cadastro browse  -config cadastro.yaml -embedded # run the script against the embedded site
//	cadastro records -db data/cadastro.db           # print stored registrations
//	cadastro records -follow                        # then print new ones as they are stored
//	cadastro mcp     -config cadastro.yaml          # MCP server on stdio
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/ongspa/cadastro"
	"github.com/hazyhaar/ongspa/form"
	"github.com/hazyhaar/ongspa/site"
	"github.com/hazyhaar/ongspa/store"
	"github.com/hazyhaar/ongspa/watch"
)

const usage = `usage: cadastro <serve|browse|records|mcp> [flags]`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	cmd, args := os.Args[1], os.Args[2:]

	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	configPath := fs.String("config", "", "path to cadastro.yaml config file")
	dbPath := fs.String("db", "", "path to SQLite database (overrides config)")
	logLevel := fs.String("log-level", "info", "log level: debug, info, warn, error")
	page := fs.String("page", "", "page to open when the config has no script (browse)")
	embedded := fs.Bool("embedded", false, "serve the embedded site on a loopback port and browse it (browse)")
	follow := fs.Bool("follow", false, "keep printing registrations as they are stored (records)")
	interval := fs.Duration("interval", time.Second, "polling interval for -follow")
	fs.Parse(args)

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := resolveConfig(*configPath, *dbPath)
	if err != nil {
		logger.Error("cadastro: config", "error", err)
		os.Exit(1)
	}

	switch cmd {
	case "serve":
		err = serve(ctx, logger, cfg)
	case "browse":
		err = browse(ctx, logger, cfg, *page, *embedded, os.Stdout)
	case "records":
		err = records(ctx, cfg, os.Stdout)
		if err == nil && *follow {
			err = followRecords(ctx, logger, cfg, *interval, os.Stdout)
		}
	case "mcp":
		err = serveMCP(ctx, logger, cfg)
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		logger.Error("cadastro: fatal", "cmd", cmd, "error", err)
		os.Exit(1)
	}
}

func resolveConfig(configPath, dbPath string) (*cadastro.Config, error) {
	cfg := cadastro.DefaultConfig()
	if configPath != "" {
		var err error
		if cfg, err = cadastro.LoadConfigFile(configPath); err != nil {
			return nil, err
		}
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	return cfg, nil
}

func openRecords(cfg *cadastro.Config) (*store.Store, *store.List[form.Record], error) {
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, nil, err
	}
	return st, store.NewList[form.Record](st, cfg.Form.StorageKey), nil
}

func serve(ctx context.Context, logger *slog.Logger, cfg *cadastro.Config) error {
	st, list, err := openRecords(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	srv := site.New(
		site.WithDir(cfg.Site.Dir),
		site.WithIndex(cfg.Index),
		site.WithRecords(list),
		site.WithLogger(logger),
	)
	return srv.ListenAndServe(ctx, cfg.Site.Addr)
}

func browse(ctx context.Context, logger *slog.Logger, cfg *cadastro.Config, page string, embedded bool, out io.Writer) error {
	if embedded {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return err
		}
		hs := &http.Server{Handler: site.New(site.WithDir(cfg.Site.Dir), site.WithIndex(cfg.Index)).Handler()}
		go hs.Serve(ln)
		defer hs.Close()
		cfg.BaseURL = "http://" + ln.Addr().String() + "/"
	}

	s, err := cadastro.NewSession(cfg, cadastro.WithLogger(logger))
	if err != nil {
		return err
	}
	defer s.Close()

	steps := cfg.Script
	if len(steps) == 0 {
		steps = []cadastro.Step{{Open: page}}
	}
	runErr := s.RunScript(ctx, steps)

	md, err := s.Markdown(cfg.Navigation.ContentSelector)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(map[string]any{
		"state":   s.State(),
		"notices": s.Notices(),
	}); err != nil {
		return err
	}
	fmt.Fprintln(out, md)
	return runErr
}

func records(ctx context.Context, cfg *cadastro.Config, out io.Writer) error {
	st, list, err := openRecords(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	recs, err := list.All(ctx)
	if errors.Is(err, store.ErrCorrupt) {
		return fmt.Errorf("stored registrations are unreadable: %w", err)
	}
	if err != nil {
		return err
	}
	if recs == nil {
		recs = []form.Record{}
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(recs)
}

// followRecords prints, one JSON line each, the registrations appended after
// it starts, until ctx is done.
func followRecords(ctx context.Context, logger *slog.Logger, cfg *cadastro.Config, interval time.Duration, out io.Writer) error {
	st, list, err := openRecords(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	w := watch.New(st.DB, watch.Options{
		Interval: interval,
		Detector: watch.ListLength(list.Key()),
		Logger:   logger,
	})
	enc := json.NewEncoder(out)
	printed := -1
	w.Run(ctx, func(ctx context.Context, _ int64) error {
		recs, err := list.All(ctx)
		if err != nil {
			return err
		}
		if printed < 0 {
			printed = int(max(w.Version(), 0))
		}
		if printed > len(recs) {
			printed = 0
		}
		for _, r := range recs[printed:] {
			if err := enc.Encode(r); err != nil {
				return err
			}
		}
		printed = len(recs)
		return nil
	})
	return nil
}

func serveMCP(ctx context.Context, logger *slog.Logger, cfg *cadastro.Config) error {
	s, err := cadastro.NewSession(cfg, cadastro.WithLogger(logger))
	if err != nil {
		return err
	}
	defer s.Close()

	srv := mcp.NewServer(&mcp.Implementation{Name: "cadastro", Version: "1.0.0"}, nil)
	s.RegisterMCP(srv)
	logger.Info("cadastro: MCP on stdio", "session", s.ID)
	return srv.Run(ctx, &mcp.StdioTransport{})
}
