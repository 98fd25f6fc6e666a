package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"oilcatalog/internal/core/pipeline"
	"oilcatalog/internal/core/run"
	rds "oilcatalog/internal/platform/redis"
)

var crawlOpts struct {
	page     int
	maxPages int
	noCache  bool
	all      bool
}

func init() {
	f := crawlCmd.Flags()
	f.IntVar(&crawlOpts.page, "page", 0, "zero-based listing page to start from")
	f.IntVar(&crawlOpts.maxPages, "max-pages", 0, "stop after this many listing pages per category (0 = until empty)")
	f.BoolVar(&crawlOpts.noCache, "no-cache", false, "re-navigate every detail page instead of reading the redis page cache")
	f.BoolVar(&crawlOpts.all, "all", false, "crawl every category in the catalog")
	rootCmd.AddCommand(crawlCmd)
}

var crawlCmd = &cobra.Command{
	Use:   "crawl <category>... | --all",
	Short: "Crawls categories and reconciles the results into the category files.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if crawlOpts.all == (len(args) > 0) {
			return fmt.Errorf("name at least one category or pass --all")
		}
		if crawlOpts.page < 0 || crawlOpts.maxPages < 0 {
			return fmt.Errorf("--page and --max-pages must not be negative")
		}

		e, err := loadEnv()
		if err != nil {
			return err
		}
		svc := e.pipeline()

		if e.cfg.RedisAddr != "" {
			redisSvc, err := rds.New(rds.Options{Addr: e.cfg.RedisAddr, Password: e.cfg.RedisPassword})
			if err != nil {
				e.log.LogWarnf("redis unavailable, running without page cache: %v", err)
			} else {
				defer redisSvc.Close()
				svc.WithTracker(run.NewService(redisSvc)).
					WithCache(redisSvc.PageCache(e.cfg.PageCacheTTL))
			}
		}

		sum, err := svc.Run(cmd.Context(), pipeline.Request{
			Categories: args,
			StartPage:  crawlOpts.page,
			MaxPages:   crawlOpts.maxPages,
			NoCache:    crawlOpts.noCache,
		})
		renderSummary(sum)
		return err
	},
}
