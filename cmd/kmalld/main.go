package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	"example.com/kmgate/internal/common"
	"example.com/kmgate/internal/indexcache"
	"example.com/kmgate/internal/server"
	"example.com/kmgate/internal/watch"
)

type config struct {
	WatchDir     string             `yaml:"watchDir"`
	StateDir     string             `yaml:"stateDir"`
	PollInterval time.Duration      `yaml:"pollInterval"`
	Settle       time.Duration      `yaml:"settle"`
	Listen       string             `yaml:"listen"`
	Summaries    bool               `yaml:"summaries"`
	Cache        indexcache.Options `yaml:"cache"`
	Logs         common.LogRotation `yaml:"logs"`
}

func loadConfig(path string) (config, error) {
	cfg := config{Summaries: true}
	f, err := os.Open(path)
	if err != nil {
		return cfg, err
	}
	defer f.Close()
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, err
	}
	baseDir := filepath.Dir(path)
	resolvePath := func(p string) string {
		p = strings.TrimSpace(p)
		if p == "" || filepath.IsAbs(p) {
			return filepath.Clean(p)
		}
		return filepath.Clean(filepath.Join(baseDir, p))
	}
	if strings.TrimSpace(cfg.WatchDir) == "" {
		return cfg, errors.New("watchDir is required")
	}
	cfg.WatchDir = resolvePath(cfg.WatchDir)
	if cfg.StateDir == "" {
		cfg.StateDir = filepath.Join(cfg.WatchDir, ".kmalld")
	} else {
		cfg.StateDir = resolvePath(cfg.StateDir)
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 10 * time.Second
	}
	if cfg.Settle < 0 {
		cfg.Settle = 0
	}
	if cfg.Cache.Codec == "" {
		cfg.Cache.Codec = indexcache.DefaultCodec
	}
	if _, _, err := indexcache.CodecByName(cfg.Cache.Codec); err != nil {
		return cfg, err
	}
	if cfg.Cache.Dir == "" {
		cfg.Cache.Dir = filepath.Join(cfg.StateDir, "cache")
	} else {
		cfg.Cache.Dir = resolvePath(cfg.Cache.Dir)
	}
	if cfg.Logs.Path == "" {
		cfg.Logs.Path = filepath.Join(cfg.StateDir, "logs", "kmalld.log")
	} else {
		cfg.Logs.Path = resolvePath(cfg.Logs.Path)
	}
	if cfg.Logs.MaxSizeMB <= 0 {
		cfg.Logs.MaxSizeMB = 25
	}
	if cfg.Logs.MaxAgeDays <= 0 {
		cfg.Logs.MaxAgeDays = 7
	}
	if cfg.Logs.MaxBackups <= 0 {
		cfg.Logs.MaxBackups = 5
	}
	return cfg, nil
}

func (c config) journalPath() string {
	return filepath.Join(c.StateDir, "journal.jsonl")
}

func (c config) summaryDir() string {
	if !c.Summaries {
		return ""
	}
	return filepath.Join(c.StateDir, "summaries")
}

func main() {
	configPath := flag.String("config", "config/kmalld.yaml", "path to configuration file")
	listen := flag.String("listen", "", "HTTP listen address (overrides config)")
	once := flag.Bool("once", false, "scan once and exit")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		common.Fatalf("load config: %v", err)
	}
	if *listen != "" {
		cfg.Listen = *listen
	}
	if err := os.MkdirAll(cfg.StateDir, 0o755); err != nil {
		common.Fatalf("state dir: %v", err)
	}
	rotator := common.RotatingWriter(cfg.Logs)
	defer rotator.Close()
	common.SetLogOutput(io.MultiWriter(os.Stdout, rotator))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, cfg, *once); err != nil {
		common.Fatalf("%v", err)
	}
	common.Logf("kmalld stopped")
}

func run(ctx context.Context, cfg config, once bool) error {
	journal := common.NewJournal(cfg.journalPath())
	w, err := watch.New(watch.Options{
		Dir:        cfg.WatchDir,
		Interval:   cfg.PollInterval,
		Settle:     cfg.Settle,
		Cache:      cfg.Cache,
		Journal:    journal,
		SummaryDir: cfg.summaryDir(),
	})
	if err != nil {
		return fmt.Errorf("watcher init: %w", err)
	}
	if once {
		n, err := w.Scan(ctx)
		common.Logf("indexed %d files in %s", n, cfg.WatchDir)
		return err
	}

	var httpServer *http.Server
	if cfg.Listen != "" {
		srv, err := server.NewServer(server.Options{
			DataDir: cfg.WatchDir,
			Cache:   cfg.Cache,
			Journal: journal,
			WorkDir: filepath.Join(cfg.StateDir, "work"),
		})
		if err != nil {
			return fmt.Errorf("server init: %w", err)
		}
		defer srv.Close()
		httpServer = &http.Server{
			Addr:         cfg.Listen,
			Handler:      server.NewRouter(srv),
			ReadTimeout:  60 * time.Second,
			WriteTimeout: 5 * time.Minute,
		}
		go func() {
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				common.Logf("listen: %v", err)
			}
		}()
		common.Logf("kmalld listening on %s", cfg.Listen)
	}

	common.Logf("kmalld watching %s every %s", cfg.WatchDir, cfg.PollInterval)
	err = w.Run(ctx)
	if httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			common.Logf("shutdown: %v", err)
		}
	}
	return err
}
