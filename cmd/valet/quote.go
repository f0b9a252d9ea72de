package main

import (
	"encoding/json"
	"time"

	"github.com/spf13/cobra"

	"valet/internal/modules/pricing"
)

type quoteOptions struct {
	pricingFile string
	scope       string
	hours       float64
	vehicle     string
	days        int
	loyalty     string
	occupancy   float64
	at          string
	seasonal    float64
	repeat      int
}

// newQuoteCmd prices a request offline against a pricing file and fresh
// in-memory smoothing state. --repeat issues the same request several times
// to show how the smoothed multiplier converges.
func newQuoteCmd(_ *rootOptions) *cobra.Command {
	var o quoteOptions
	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Compute a price quote offline from a pricing file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			file, err := pricing.ReadConfigFile(o.pricingFile)
			if err != nil {
				return err
			}
			mem := pricing.NewMemoryStore()
			svc := pricing.NewService(pricing.ServiceDeps{Configs: mem, States: mem, Audit: mem})
			if err := file.Seed(cmd.Context(), svc); err != nil {
				return err
			}

			req := pricing.QuoteRequest{
				Scope:          o.scope,
				EstimatedHours: o.hours,
				VehicleClass:   pricing.VehicleClass(o.vehicle),
				DaysInAdvance:  o.days,
				LoyaltyTier:    pricing.LoyaltyTier(o.loyalty),
				OccupancyRatio: o.occupancy,
			}
			if o.at != "" {
				t, err := time.Parse(time.RFC3339, o.at)
				if err != nil {
					return err
				}
				req.RequestTime = t
			}
			if cmd.Flags().Changed("seasonal") {
				req.SeasonalMultiplier = &o.seasonal
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			for i := 0; i < max(o.repeat, 1); i++ {
				q, err := svc.GetPriceQuote(cmd.Context(), req)
				if err != nil {
					return err
				}
				if err := enc.Encode(q); err != nil {
					return err
				}
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&o.pricingFile, "file", "f", "configs/pricing.yaml", "pricing config file")
	f.StringVar(&o.scope, "scope", "", "pricing scope (location id)")
	f.Float64Var(&o.hours, "hours", 4, "estimated parking hours")
	f.StringVar(&o.vehicle, "vehicle", string(pricing.VehicleStandard), "vehicle class")
	f.IntVar(&o.days, "days-in-advance", 0, "booking lead time in days")
	f.StringVar(&o.loyalty, "loyalty", "", "loyalty tier (bronze, silver, gold, platinum)")
	f.Float64Var(&o.occupancy, "occupancy", 0.5, "current occupancy ratio in [0,1]")
	f.StringVar(&o.at, "at", "", "request time (RFC3339), defaults to now")
	f.Float64Var(&o.seasonal, "seasonal", 1, "seasonal multiplier override")
	f.IntVar(&o.repeat, "repeat", 1, "issue the request this many times")
	_ = cmd.MarkFlagRequired("scope")
	return cmd
}
