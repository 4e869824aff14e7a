package main

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/yokharian/catalog-engine/cmd/catalog-cli/ui"
	"github.com/yokharian/catalog-engine/internal/search"
)

// newSearchCmd creates the search subcommand.
func newSearchCmd() *cobra.Command {
	var (
		makeName  string
		modelName string
		budgetMin float64
		budgetMax float64
		kmMax     int
		yearMin   int
		yearMax   int
		features  []string
		sortBy    string
		limit     int
	)

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search the catalog with fuzzy make/model matching",
		Long: `Search resolves free-text make and model names against the catalog with
fuzzy matching, applies budget, mileage, year and feature filters, and
prints the matching vehicles.

Misspelled names resolve to their closest catalog entry ("toyata" finds
toyota); names that match nothing return an empty result rather than
ignoring the filter.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			engine, err := openEngine()
			if err != nil {
				return err
			}
			defer engine.Close()

			prefs := search.Preferences{
				Make:       makeName,
				Model:      modelName,
				Features:   features,
				SortBy:     search.SortBy(sortBy),
				MaxResults: limit,
			}
			flags := cmd.Flags()
			if flags.Changed("budget-min") {
				prefs.BudgetMin = &budgetMin
			}
			if flags.Changed("budget-max") {
				prefs.BudgetMax = &budgetMax
			}
			if flags.Changed("km-max") {
				prefs.KMMax = &kmMax
			}
			if flags.Changed("year-min") {
				prefs.YearMin = &yearMin
			}
			if flags.Changed("year-max") {
				prefs.YearMax = &yearMax
			}

			results, err := engine.Search(ctx, prefs)
			if err != nil {
				return err
			}

			if outputJSON {
				return printJSON(results)
			}

			if len(results) == 0 {
				ui.Info("No vehicles matched")
				return nil
			}

			headers := []string{"STOCK", "MAKE", "MODEL", "YEAR", "KM", "PRICE", "FEATURES"}
			rows := make([][]string, 0, len(results))
			for _, v := range results {
				rows = append(rows, []string{
					strconv.FormatInt(v.StockID, 10),
					v.Make,
					v.Model,
					strconv.Itoa(v.Year),
					strconv.Itoa(v.KM),
					fmt.Sprintf("$%.0f", v.Price),
					strings.Join(featureList(v.Features), ", "),
				})
			}
			ui.Table(headers, rows)
			ui.Newline()
			ui.Info("%d vehicles", len(results))
			return nil
		},
	}

	cmd.Flags().StringVar(&makeName, "make", "", "make to match (fuzzy)")
	cmd.Flags().StringVar(&modelName, "model", "", "model to match (fuzzy)")
	cmd.Flags().Float64Var(&budgetMin, "budget-min", 0, "minimum price")
	cmd.Flags().Float64Var(&budgetMax, "budget-max", 0, "maximum price")
	cmd.Flags().IntVar(&kmMax, "km-max", 0, "maximum mileage in km")
	cmd.Flags().IntVar(&yearMin, "year-min", 0, "earliest model year")
	cmd.Flags().IntVar(&yearMax, "year-max", 0, "latest model year")
	cmd.Flags().StringSliceVar(&features, "features", nil, "required features (comma separated)")
	cmd.Flags().StringVar(&sortBy, "sort", "", "sort order: price_low, price_high, year_new, km_low")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum results (default 5, capped at 20)")

	return cmd
}

// featureList returns the names of the features a vehicle actually has.
func featureList(features map[string]bool) []string {
	names := make([]string, 0, len(features))
	for name, present := range features {
		if present {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
