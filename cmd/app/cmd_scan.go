package main

import (
	"encoding/json"
	"fmt"

	"OptionScan/internal/di"
	"OptionScan/internal/domain/models"
	"OptionScan/internal/domain/repository"
	internalrepo "OptionScan/internal/repository"
	"OptionScan/internal/services/quotes"
	"OptionScan/internal/usecase"
	xhttp "OptionScan/pkg/http"
	"OptionScan/pkg/metrics"

	"github.com/spf13/cobra"
)

func scanCmd() *cobra.Command {
	var (
		profile       string
		minDTE        int
		maxDTE        int
		maxStrategies int
	)
	cmd := &cobra.Command{
		Use:   "scan TICKER",
		Short: "Screen strategies for one ticker and print the result as JSON",
		Example: `  optionscan scan AAPL --profile conservative
  optionscan scan SPY --profile aggressive --max 3`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := &models.ScanRequest{
				Ticker:        args[0],
				RiskProfile:   profile,
				MinDTE:        minDTE,
				MaxDTE:        maxDTE,
				MaxStrategies: maxStrategies,
			}
			if err := xhttp.ValidateStruct(req); err != nil {
				verrs := xhttp.ValidationErrors(err)
				return fmt.Errorf("invalid %s: %s", verrs[0].Field, verrs[0].Message)
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			// stdout carries the JSON result
			if cfg.Log.Output == "" || cfg.Log.Output == "stdout" {
				cfg.Log.Output = "stderr"
			}
			l, err := di.ProvideLogger(cfg)
			if err != nil {
				return err
			}
			catalog, err := di.ProvideCatalog(cfg)
			if err != nil {
				return err
			}

			var sources []repository.QuoteSource
			if poly := di.ProvidePolygonClient(cfg, l); poly != nil {
				sources = append(sources, poly)
			}
			if cfg.Quotes.DemoPrices {
				sources = append(sources, quotes.NewDemoSource())
			}
			resolver := quotes.NewResolver(sources, quotes.WithTimeout(cfg.Quotes.Timeout), quotes.WithLogger(l))

			screener := usecase.NewStrategyScreener(catalog, resolver, di.ProvideScoreAdjuster(cfg), metrics.Nop{}, l)
			res, err := screener.Screen(cmd.Context(), usecase.ScanParams{
				Ticker:        req.Ticker,
				RiskProfile:   models.RiskProfile(req.RiskProfile),
				MinDTE:        req.MinDTE,
				MaxDTE:        req.MaxDTE,
				MaxStrategies: req.MaxStrategies,
			})
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(models.NewScanResponse(res))
		},
	}
	cmd.Flags().StringVar(&profile, "profile", string(models.RiskModerate), "risk profile: conservative, moderate, moderate_aggressive or aggressive")
	cmd.Flags().IntVar(&minDTE, "min-dte", usecase.DefaultMinDTE, "minimum days to expiration")
	cmd.Flags().IntVar(&maxDTE, "max-dte", usecase.DefaultMaxDTE, "maximum days to expiration")
	cmd.Flags().IntVar(&maxStrategies, "max", usecase.DefaultMaxStrategies, "maximum strategies returned")
	return cmd
}

func validateCatalogCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate-catalog FILE",
		Short: "Check a YAML strategy catalog and list its templates",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := internalrepo.LoadYAMLCatalog(args[0])
			if err != nil {
				return err
			}
			templates, err := catalog.Templates(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, t := range templates {
				fmt.Fprintf(out, "%-22s %-8s %-12s %5.1f\n", t.ID, t.Type, t.Complexity, t.Confidence)
			}
			fmt.Fprintf(out, "%d strategies OK\n", len(templates))
			return nil
		},
	}
}
