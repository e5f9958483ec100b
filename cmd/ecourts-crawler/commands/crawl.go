package commands

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/ecourts-crawler/internal/browser"
	"github.com/jmylchreest/ecourts-crawler/internal/crawler"
	"github.com/jmylchreest/ecourts-crawler/internal/harvest"
	"github.com/jmylchreest/ecourts-crawler/internal/navigator"
	"github.com/jmylchreest/ecourts-crawler/internal/portal"
	"github.com/jmylchreest/ecourts-crawler/internal/retry"
	"github.com/jmylchreest/ecourts-crawler/internal/search"
	"github.com/jmylchreest/ecourts-crawler/internal/solver"
	"github.com/jmylchreest/ecourts-crawler/internal/store"
)

type passFlags struct {
	state    string
	district string
	section  string
	status   string
	resume   bool
}

// pass has the shape of a Controller method expression.
type pass func(c *crawler.Controller, ctx context.Context, f store.Filter) (crawler.Summary, error)

// passCommand builds a command that runs one crawl pass and prints its summary.
func passCommand(use, short string, needsBrowser bool, run pass) *cobra.Command {
	var flags passFlags
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			st, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			launcher := browser.NewLauncher(cfg, logger)
			if needsBrowser {
				if err := launcher.Warmup(ctx); err != nil {
					return fmt.Errorf("prepare browser: %w", err)
				}
			}

			c := newController(st, launcher, flags)
			defer c.Close()

			logger.Info("starting pass", "command", cmd.Name(), "run_id", c.RunID())
			sum, err := run(c, ctx, store.Filter{StateCode: flags.state, DistrictCode: flags.district})

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if encErr := enc.Encode(sum); encErr != nil {
				logger.Warn("failed to print summary", "error", encErr)
			}
			return err
		},
	}

	cmd.Flags().StringVar(&flags.state, "state", "", "Only process this state code.")
	cmd.Flags().StringVar(&flags.district, "district", "", "Only process this district code.")
	cmd.Flags().StringVar(&flags.section, "section", "", "Section number to search (default from SECTION_NUMBER).")
	cmd.Flags().StringVar(&flags.status, "status", "", "Case status to search: Pending or Disposed (default from CASE_STATUS).")
	cmd.Flags().BoolVar(&flags.resume, "resume", false, "Skip units that already have a stored result.")
	return cmd
}

func newController(st *store.Store, launcher *browser.Launcher, flags passFlags) *crawler.Controller {
	h := harvest.New(cfg.ElementTimeout, cfg.RepopulateTimeout, logger)
	driver := navigator.New(navigator.Options{
		PortalURL:         cfg.PortalURL,
		ElementTimeout:    cfg.ElementTimeout,
		RepopulateTimeout: cfg.RepopulateTimeout,
		EstablishmentWait: cfg.EstablishmentWait,
	}, h, logger)

	solvers := make([]solver.Solver, 0, 2)
	if cfg.TesseractPath != "" {
		solvers = append(solvers, solver.NewTesseract(cfg.TesseractPath))
	}
	if cfg.TwoCaptchaAPIKey != "" {
		tc := solver.NewTwoCaptcha(cfg.TwoCaptchaAPIKey)
		ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTPTimeout)
		if balance, err := tc.Balance(ctx); err != nil {
			logger.Warn("2Captcha balance check failed", "error", err)
		} else {
			logger.Info("2Captcha solver enabled", "balance", balance)
		}
		cancel()
		solvers = append(solvers, tc)
	}
	chain := solver.NewChain(logger, solvers...)
	if chain.Len() == 0 {
		logger.Warn("no captcha solver configured, searches will fail")
	}
	flow := search.NewFlow(h, chain, solver.NewCapture(cfg.CaptchaPath), st, cfg.NetworkIdleTimeout, logger)

	section := flags.section
	if section == "" {
		section = cfg.SectionNumber
	}
	status := flags.status
	if status == "" {
		status = cfg.CaseStatus
	}

	return crawler.New(crawler.Deps{
		Launcher: launcher,
		Store:    st,
		Driver:   driver,
		Flow:     flow,
		Portal:   portal.New(cfg.PortalAPIURL, cfg.HTTPTimeout, logger),
	}, crawler.Options{
		Section: section,
		Status:  status,
		Resume:  flags.resume,
		Launch: retry.Policy{
			Attempts:   cfg.LaunchAttempts,
			Initial:    cfg.LaunchBackoffMin,
			Max:        cfg.LaunchBackoffMax,
			Multiplier: retry.DefaultMultiplier,
		},
	}, logger)
}

func init() {
	rootCmd.AddCommand(
		passCommand("states", "Harvest the state list into the States table.", true,
			func(c *crawler.Controller, ctx context.Context, _ store.Filter) (crawler.Summary, error) {
				return c.HarvestStates(ctx)
			}),
		passCommand("districts", "Harvest the districts of every stored state.", true,
			(*crawler.Controller).HarvestDistricts),
		passCommand("courts", "Harvest the court complexes and establishments of every stored district.", true,
			(*crawler.Controller).HarvestCourts),
		passCommand("search", "Run the act/section search for every stored court.", true,
			(*crawler.Controller).Search),
		passCommand("crawl", "Harvest courts and search them, one district at a time.", true,
			(*crawler.Controller).Crawl),
		passCommand("acts", "Fetch the IPC acts of every stored court over HTTP.", false,
			(*crawler.Controller).FetchActs),
		passCommand("results", "Submit the act search for every stored act over HTTP.", false,
			(*crawler.Controller).FetchResults),
		passCommand("cnr", "Extract case numbers, parties and CNRs from stored results.", false,
			(*crawler.Controller).ExtractCases),
	)
}
