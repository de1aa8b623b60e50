// Reviewd - AI pull-request review service
//
// Reviewd fetches a pull request from GitHub or GitLab, redacts secrets from
// the diff, splits the change set into analysis chunks, scores each chunk
// against an OpenAI-compatible model and serves the merged review over HTTP.
//
//	reviewd -addr :8080 -db /var/lib/reviewd/reviews.db
//	reviewd -config reviewd.yaml
//
// SCM tokens and model API keys arrive per request and are never persisted.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rediverio/reviewd/pkg/health"
	"github.com/rediverio/reviewd/pkg/logging"
	"github.com/rediverio/reviewd/pkg/metrics"
	"github.com/rediverio/reviewd/pkg/server"
	"github.com/rediverio/reviewd/pkg/store"
)

const (
	appName    = "reviewd"
	appVersion = "1.0.0"
)

// Config represents the service configuration.
type Config struct {
	Server struct {
		Addr          string        `yaml:"addr"`
		GitLabBaseURL string        `yaml:"gitlab_base_url"`
		ReadTimeout   time.Duration `yaml:"read_timeout"`
		WriteTimeout  time.Duration `yaml:"write_timeout"`
	} `yaml:"server"`

	Store struct {
		Path string `yaml:"path"`
		// Disabled turns off review history entirely.
		Disabled bool `yaml:"disabled"`
	} `yaml:"store"`

	// AnalyzerProbeURL, when set, is health-checked on /readyz.
	AnalyzerProbeURL string `yaml:"analyzer_probe_url"`

	Verbose bool `yaml:"verbose"`
}

func main() {
	configPath := flag.String("config", "", "Path to config file")
	addr := flag.String("addr", "", "Listen address (or REVIEWD_ADDR env)")
	dbPath := flag.String("db", "", "SQLite path for review history (or REVIEWD_DB env)")
	gitlabURL := flag.String("gitlab-url", "", "Self-hosted GitLab base URL (or REVIEWD_GITLAB_URL env)")
	noStore := flag.Bool("no-store", false, "Disable review history")
	verbose := flag.Bool("verbose", false, "Verbose output")
	showVersion := flag.Bool("version", false, "Show version")

	flag.Parse()

	if *showVersion {
		fmt.Printf("%s version %s\n", appName, appVersion)
		os.Exit(0)
	}

	var cfg Config
	if *configPath != "" {
		if err := loadConfig(*configPath, &cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
	}

	// Flags and env override the file.
	if v := getEnvOrFlag(*addr, "REVIEWD_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := getEnvOrFlag(*dbPath, "REVIEWD_DB"); v != "" {
		cfg.Store.Path = v
	}
	if v := getEnvOrFlag(*gitlabURL, "REVIEWD_GITLAB_URL"); v != "" {
		cfg.Server.GitLabBaseURL = v
	}
	if *noStore {
		cfg.Store.Disabled = true
	}
	if *verbose {
		cfg.Verbose = true
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}

	level := logging.LevelInfo
	if cfg.Verbose {
		level = logging.LevelDebug
	}
	logger := logging.New(appName, level)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutting down")
		cancel()
	}()

	var st *store.Store
	if !cfg.Store.Disabled {
		storeCfg := store.DefaultConfig()
		if cfg.Store.Path != "" {
			storeCfg.DatabasePath = cfg.Store.Path
		}
		var err error
		st, err = store.New(storeCfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening review store: %v\n", err)
			os.Exit(1)
		}
		defer st.Close()
		logger.Info("review history at %s", storeCfg.DatabasePath)
	} else {
		logger.Info("review history disabled")
	}

	collector := metrics.NewPrometheusCollector(&metrics.PrometheusConfig{
		Namespace:              appName,
		RegisterDefaultMetrics: true,
	})

	serverCfg := &server.Config{
		Addr:          cfg.Server.Addr,
		GitLabBaseURL: cfg.Server.GitLabBaseURL,
		ReadTimeout:   cfg.Server.ReadTimeout,
		WriteTimeout:  cfg.Server.WriteTimeout,
	}
	if serverCfg.ReadTimeout == 0 {
		serverCfg.ReadTimeout = server.DefaultConfig().ReadTimeout
	}
	if serverCfg.WriteTimeout == 0 {
		serverCfg.WriteTimeout = server.DefaultConfig().WriteTimeout
	}

	server.Version = appVersion
	srv := server.New(serverCfg, st,
		server.WithLogger(logger),
		server.WithMetrics(collector),
	)

	if cfg.AnalyzerProbeURL != "" {
		srv.Health().Register("analyzer", &health.AnalyzerCheck{
			URL: cfg.AnalyzerProbeURL,
		})
	}

	if err := srv.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}

	logger.Info("stopped")
}

func getEnvOrFlag(flagVal, envName string) string {
	if flagVal != "" {
		return flagVal
	}
	return os.Getenv(envName)
}

func loadConfig(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables in config
	expanded := os.ExpandEnv(string(data))

	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}

	return nil
}
