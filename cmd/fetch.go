package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/hexrelief/internal/fetch"
)

var fetchExt string

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download the population and boundary datasets",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		opts := fetch.Options{
			Ext:       fetchExt,
			RateKBps:  cfg.Fetch.RateKBps,
			Retries:   cfg.Fetch.Retries,
			Timeout:   time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
			UserAgent: "hexrelief/1.0",
		}

		sources := []struct{ name, url string }{
			{"population", cfg.Fetch.PopulationURL},
			{"boundary", cfg.Fetch.BoundaryURL},
		}
		fetched := 0
		for _, s := range sources {
			if s.url == "" {
				zap.L().Debug("no url configured, skipping", zap.String("dataset", s.name))
				continue
			}
			p, err := fetch.Fetch(ctx, s.url, cfg.Fetch.Dir, opts)
			if err != nil {
				return eris.Wrapf(err, "fetch %s", s.name)
			}
			fetched++
			zap.L().Info("dataset ready", zap.String("dataset", s.name), zap.String("path", p))
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", s.name, p) //nolint:errcheck
		}
		if fetched == 0 {
			return eris.New("fetch: set fetch.population_url or fetch.boundary_url")
		}
		return nil
	},
}

func init() {
	fetchCmd.Flags().StringVar(&fetchExt, "ext", ".gpkg", "file extension to pick out of zip archives")
	rootCmd.AddCommand(fetchCmd)
}
