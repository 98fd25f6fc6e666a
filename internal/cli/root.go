// Package cli holds the oilcatalog commands.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"oilcatalog/internal/config"
	"oilcatalog/internal/core/extract"
	"oilcatalog/internal/core/normalize"
	"oilcatalog/internal/core/notify"
	"oilcatalog/internal/core/pipeline"
	"oilcatalog/internal/core/publish"
	"oilcatalog/internal/core/store"
	"oilcatalog/internal/logger"
	"oilcatalog/internal/platform/browser"
)

var (
	catalogFile string
	dataDir     string
)

var rootCmd = &cobra.Command{
	Use:           "oilcatalog",
	Short:         "Scrapes the essential-oil catalog and reconciles it into category files.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&catalogFile, "catalog", "", "catalog YAML file (defaults to CATALOG_FILE or the built-in catalog)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "directory holding the category files (defaults to DATA_DIR)")
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// env is what every command builds from configuration.
type env struct {
	cfg     config.Config
	catalog *config.Catalog
	store   *store.Store
	log     *logger.Logger
}

func loadEnv() (*env, error) {
	cfg := config.Load()
	if catalogFile != "" {
		cfg.CatalogFile = catalogFile
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
		cfg.BackupDir = ""
	}
	cat, err := config.LoadCatalog(cfg.CatalogFile)
	if err != nil {
		return nil, err
	}
	log := logger.New("CLI")
	return &env{
		cfg:     cfg,
		catalog: cat,
		store:   store.New(cfg.DataDir, cfg.BackupDir, logger.New("Store")),
		log:     log,
	}, nil
}

func (e *env) browserOptions() browser.Options {
	return browser.Options{
		Headless:    e.cfg.Headless,
		NavTimeout:  e.cfg.NavTimeout,
		SettleDelay: e.cfg.SettleDelay,
		Strategy:    browser.HeaderStrategy(e.cfg.BrowserStrategy),
	}
}

func (e *env) launcher() pipeline.Launcher {
	opts := e.browserOptions()
	return func() (pipeline.Browser, error) {
		d, err := browser.Launch(opts, logger.New("Browser"))
		if err != nil {
			return nil, err
		}
		return d, nil
	}
}

// pipeline wires the orchestrator with the optional notifier and publisher;
// redis-backed collaborators are added by the caller.
func (e *env) pipeline() *pipeline.Service {
	c := e.cfg
	svc := pipeline.NewService(
		e.catalog,
		e.launcher(),
		extract.NewService(logger.New("Extract")),
		normalize.NewService(logger.New("Normalize")),
		e.store,
		pipeline.Options{
			Backoff: pipeline.Backoff{
				Base:       c.DelayBase,
				Jitter:     c.DelayJitter,
				Multiplier: c.DelayMultiplier,
				Max:        c.DelayMax,
				Retries:    c.NavRetries,
			},
			NavPerMinute: c.NavPerMinute,
			UserAgent:    browser.Profile(browser.HeaderStrategy(c.BrowserStrategy)).UserAgent,
			WaitTimeout:  c.NavTimeout / 2,
		},
	)
	if c.WebhookURL != "" {
		svc.WithNotifier(notify.NewWebhook(c.WebhookURL, c.WebhookSecret))
	}
	if pub, err := publish.New(c); err == nil {
		svc.WithPublisher(pub)
	} else {
		e.log.LogDebugf("publishing disabled: %v", err)
	}
	return svc
}
