package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"pixscrape/pkg/auth"
	"pixscrape/pkg/config"
	apperrors "pixscrape/pkg/errors"
	"pixscrape/pkg/logger"
	"pixscrape/pkg/metrics"
	"pixscrape/pkg/scraper"
	"pixscrape/pkg/ui"
)

var (
	// Scrape command flags
	apiKey      string
	profile     string
	outputPath  string
	queryArgs   []string
	fieldList   []string
	perPage     int
	imageType   string
	rateLimit   int
	noVerify    bool
	metricsAddr string
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Fetch every configured query and write the CSV file",
	Long: `Fetch every query in the query table and write the combined records to
the output file.

The API key is taken from, in order:
  - the --api-key flag
  - the PIXSCRAPE_API_KEY environment variable (a .env file is read too)
  - pixabay.api_key in the configuration file
  - the credential store entry for the active profile ('pixscrape auth set')

A query that fails keeps the pages fetched before the failure and the run
continues with the next query.`,
	Example: `  # Run the default query table
  pixscrape scrape

  # Fetch two queries into a custom file
  pixscrape scrape --query "yellow flowers=500" --query "cat=250" -o flowers.csv

  # Expose Prometheus metrics while running
  pixscrape scrape --metrics-addr :9090`,
	Args: cobra.NoArgs,
	RunE: runScrape,
}

func init() {
	rootCmd.AddCommand(scrapeCmd)

	scrapeCmd.Flags().StringVar(&apiKey, "api-key", "", "Pixabay API key")
	scrapeCmd.Flags().StringVar(&profile, "profile", "", "credential store profile (default \"default\")")
	scrapeCmd.Flags().StringVarP(&outputPath, "output", "o", "", "output CSV path (default images.csv)")
	scrapeCmd.Flags().StringArrayVar(&queryArgs, "query", nil, "query and target as term=count; repeat for several")
	scrapeCmd.Flags().StringSliceVar(&fieldList, "fields", nil, "comma separated output columns")
	scrapeCmd.Flags().IntVar(&perPage, "per-page", 0, "results per page, 3 to 200 (default 200)")
	scrapeCmd.Flags().StringVar(&imageType, "image-type", "", "all, photo, illustration or vector (default photo)")
	scrapeCmd.Flags().IntVar(&rateLimit, "rate-limit", 0, "requests per minute (default 100)")
	scrapeCmd.Flags().BoolVar(&noVerify, "no-verify", false, "skip reading the output back after writing")
	scrapeCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running")
}

// scrapeFlags collects the flags the user actually set
func scrapeFlags(cmd *cobra.Command) (map[string]interface{}, error) {
	flags := make(map[string]interface{})
	set := cmd.Flags().Changed

	if set("api-key") {
		flags["api-key"] = apiKey
	}
	if set("profile") {
		flags["profile"] = profile
	}
	if set("output") {
		flags["output"] = outputPath
	}
	if set("query") {
		jobs := make([]config.QueryJob, 0, len(queryArgs))
		for _, q := range queryArgs {
			job, err := config.ParseQueryJob(q)
			if err != nil {
				return nil, err
			}
			jobs = append(jobs, job)
		}
		flags["queries"] = jobs
	}
	if set("fields") {
		flags["fields"] = fieldList
	}
	if set("per-page") {
		flags["per-page"] = perPage
	}
	if set("image-type") {
		flags["image-type"] = imageType
	}
	if set("rate-limit") {
		flags["requests-per-minute"] = rateLimit
	}
	if set("no-verify") {
		flags["verify-output"] = !noVerify
	}
	if set("metrics-addr") {
		flags["metrics-addr"] = metricsAddr
	}
	if logLevel != "" {
		flags["log-level"] = logLevel
	}
	return flags, nil
}

func runScrape(cmd *cobra.Command, args []string) error {
	flags, err := scrapeFlags(cmd)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrorTypeConfig, err, "invalid --query")
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrorTypeConfig, err, "failed to load configuration")
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		return apperrors.Wrap(apperrors.ErrorTypeConfig, err, "failed to initialize logging")
	}
	log := logger.GetLogger()
	log.WithField("version", version).Info("pixscrape starting")

	if err := resolveAPIKey(cfg, log); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	s, err := scraper.New(cfg,
		scraper.WithLogger(log),
		scraper.WithMetrics(m),
		scraper.WithReporter(ui.ConsoleReporter{}),
	)
	if err != nil {
		return err
	}

	ui.PrintInfo("Queries", fmt.Sprintf("%d", len(cfg.Queries)))
	ui.PrintInfo("Output", cfg.Output.Path)

	summary, err := runWithMetrics(ctx, s, m, cfg.Metrics.Addr, log)
	ui.PrintSummary(summary)
	if err != nil {
		return err
	}

	if summary.Verified {
		ui.PrintSuccess("Output verified")
	}
	if ctx.Err() != nil {
		ui.PrintWarning("Interrupted; partial results were written")
	}
	return nil
}

// resolveAPIKey fills in the key from the credential store when no flag,
// environment or config file supplied one
func resolveAPIKey(cfg *config.Config, log logger.Logger) error {
	if cfg.Pixabay.APIKey != "" {
		return nil
	}

	manager, err := auth.NewDefaultManager()
	if err != nil {
		log.WithError(err).Warn("Credential store unavailable")
	} else if cred, err := manager.Retrieve(cfg.Pixabay.Profile); err == nil {
		cfg.Pixabay.APIKey = cred.APIKey
		log.WithField("profile", cfg.Pixabay.Profile).Info("Using stored API key")
		return nil
	}

	ui.PrintError("No Pixabay API key found")
	ui.PrintInfo("Store one with", "pixscrape auth set")
	ui.PrintInfo("Or set", "PIXSCRAPE_API_KEY")
	return apperrors.New(apperrors.ErrorTypeAuth, "no API key for profile %q", cfg.Pixabay.Profile)
}

// runWithMetrics runs the harvest and, when addr is set, serves /metrics
// until the run returns. The listener is bound before any request is made,
// so a bad address fails the command without touching the output file.
// Once bound, a serving error is logged and the harvest carries on.
func runWithMetrics(ctx context.Context, s *scraper.Scraper, m *metrics.Metrics, addr string, log logger.Logger) (*scraper.Summary, error) {
	var ln net.Listener
	if addr != "" {
		var err error
		ln, err = net.Listen("tcp", addr)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrorTypeConfig, err, "metrics listener on %s", addr)
		}
	}

	runCtx, finish := context.WithCancel(ctx)
	defer finish()

	var g errgroup.Group
	var summary *scraper.Summary
	g.Go(func() error {
		defer finish()
		var err error
		summary, err = s.Run(runCtx)
		return err
	})

	if ln != nil {
		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())
		srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

		g.Go(func() error {
			log.WithField("addr", ln.Addr().String()).Info("Serving metrics")
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.WithError(err).Warn("Metrics listener stopped")
			}
			return nil
		})
		g.Go(func() error {
			<-runCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.WithError(err).Warn("Metrics listener shutdown")
			}
			return nil
		})
	}

	err := g.Wait()
	return summary, err
}
