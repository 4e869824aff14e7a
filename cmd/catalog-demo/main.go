// Package main provides an interactive terminal demo of the catalog engine.
// It seeds an in-memory catalog from embedded dealer feeds and answers fuzzy
// searches typed at a prompt. Nothing is persisted.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/yokharian/catalog-engine/internal/ingest"
	"github.com/yokharian/catalog-engine/internal/observability"
	"github.com/yokharian/catalog-engine/internal/search"
	"github.com/yokharian/catalog-engine/internal/storage"
	"github.com/yokharian/catalog-engine/pkg/catalog"
)

// demoFeeds are dealer inventory files as they actually arrive: thousands
// separators, Spanish feature flags, accents, a duplicated row, an unparseable
// km and a row with no price.
var demoFeeds = []struct {
	name string
	csv  string
}{
	{
		name: "dealer-north.csv",
		csv: `stock_id,make,model,year,version,km,price,bluetooth,car_play,air_conditioning,alarm
84012,Toyota,Corolla,2020,LE,"30,500","249,999.0",Sí,no,Sí,Sí
84013,Toyota,Corolla Cross,2022,XLE,"12,300","389,500.0",Sí,Sí,Sí,no
84020,Toyota,RAV4,2021,Adventure,"28,900","459,000.0",verdadero,Sí,Sí,no
84031,Honda,Civic,2019,Touring,"45,210","305,000.0",Sí,no,Sí,Sí
84032,Honda,CR-V,2021,Turbo Plus,"33,800","478,900.0",Sí,Sí,Sí,no
84040,  NISSAN ,Versa,2018,Advance,"61,000","189,900.0",no,no,Sí,no
`,
	},
	{
		name: "dealer-south.csv",
		csv: `stock_id,make,model,year,km,price,bluetooth,car_play,dims
243587,Volkswagen,Touareg,2018,"77,400","461,999.0",Sí,no,"{""largo"": 4.88, ""ancho"": 1.98, ""alto"": 1.73}"
90211,Volkswagen,Jetta,2020,N/A,"312,500.0",Sí,Sí,
90212,SEAT,León,2019,"52,000","268,000.0",no,Sí,
90212,SEAT,León,2019,"52,000","268,000.0",no,Sí,
90220,Ford,Focus,2017,"88,400",,no,no,
90221,Ford,Escape,2021,"24,600","415,000.0",Sí,Sí,
`,
	},
	{
		name: "dealer-east.csv",
		csv: `stock_id,make,model,year,version,km,price,bluetooth,radio,power_windows
77105,Jeep,Grand Cherokee,2019,Limited,"49,800","529,000.0",Sí,Sí,Sí
77106,Mazda,CX-5,2022,i Grand Touring,"9,700","512,400.0",Sí,Sí,Sí
77110,Chevrolet,Aveo,2018,LT,"72,300","145,000.0",no,Sí,no
77111,Kia,Sportage,2021,EX,"31,200","398,700.0",Sí,Sí,Sí
77112,Chevrolet,Onix,2022,Premier,"18,450","289,900.0",Sí,Sí,Sí
`,
	},
}

func main() {
	printBanner()

	ctx := context.Background()
	logger := observability.NewLogger(observability.LogConfig{
		Level:       "error",
		Format:      "console",
		ServiceName: "catalog-demo",
	})

	engine := catalog.NewInMemory(logger)
	defer engine.Close()

	if err := seedCatalog(ctx, engine); err != nil {
		color.New(color.FgRed).Printf("✗ Seeding failed: %v\n", err)
		os.Exit(1)
	}

	printStats(ctx, engine)
	printExamples()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		color.New(color.Bold).Print("🚗 Search> ")
		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if lower := strings.ToLower(line); lower == "quit" || lower == "exit" {
			color.New(color.FgCyan).Println("Goodbye!")
			return
		}
		if strings.HasPrefix(line, "/") {
			handleCommand(ctx, engine, line)
			continue
		}

		prefs, err := parseQuery(line)
		if err != nil {
			color.New(color.FgRed).Printf("✗ %v\n", err)
			continue
		}

		start := time.Now()
		results, err := engine.Search(ctx, prefs)
		if err != nil {
			color.New(color.FgRed).Printf("✗ %v\n", err)
			continue
		}
		renderResults(results, time.Since(start))
	}
}

func printBanner() {
	banner := `
╔═══════════════════════════════════════════════════════════════╗
║                                                               ║
║   🚗  Catalog Engine Interactive Demo                         ║
║                                                               ║
║   Fuzzy search over a freshly ingested vehicle inventory      ║
║                                                               ║
╚═══════════════════════════════════════════════════════════════╝
`
	color.New(color.FgCyan).Println(banner)
}

// seedCatalog ingests the embedded dealer feeds, one progress bar across all
// of them, then summarizes each ingestion report.
func seedCatalog(ctx context.Context, engine *catalog.Engine) error {
	progress := mpb.New(mpb.WithWidth(64))
	bar := progress.AddBar(int64(len(demoFeeds)),
		mpb.PrependDecorators(
			decor.Name("Ingesting feeds", decor.WC{W: len("Ingesting feeds") + 1, C: decor.DSyncSpaceR}),
			decor.CountersNoUnit("%d / %d", decor.WCSyncWidth),
		),
		mpb.AppendDecorators(
			decor.Percentage(decor.WC{W: 5}),
			decor.OnComplete(decor.Elapsed(decor.ET_STYLE_GO, decor.WC{W: 8}), " done"),
		),
	)

	reports := make([]*ingest.Report, 0, len(demoFeeds))
	for _, feed := range demoFeeds {
		report, err := engine.IngestReader(ctx, strings.NewReader(feed.csv), feed.name)
		if err != nil {
			bar.Abort(true)
			progress.Wait()
			return fmt.Errorf("%s: %w", feed.name, err)
		}
		reports = append(reports, report)
		bar.Increment()
	}
	progress.Wait()

	for _, report := range reports {
		line := fmt.Sprintf("%s: %d rows committed", report.Source, report.RowsCommitted)
		if report.RowsDeduped > 0 {
			line += fmt.Sprintf(", %d duplicate(s) dropped", report.RowsDeduped)
		}
		if report.Degradations > 0 {
			line += fmt.Sprintf(", %d field(s) degraded", report.Degradations)
		}
		color.New(color.FgGreen).Printf("✓ %s\n", line)
		for _, failure := range report.RowsFailed {
			color.New(color.FgYellow).Printf("⚠ %s line %d skipped: %s\n", report.Source, failure.Line, failure.Reason)
		}
	}
	return nil
}

func printStats(ctx context.Context, engine *catalog.Engine) {
	count, _ := engine.Count(ctx)
	makes, _ := engine.Makes(ctx)
	models, _ := engine.Models(ctx, "")

	fmt.Println()
	color.New(color.Bold).Println("📊 Catalog:")
	fmt.Printf("   Vehicles: %d\n", count)
	fmt.Printf("   Makes:    %d (%s)\n", len(makes), strings.Join(makes, ", "))
	fmt.Printf("   Models:   %d\n", len(models))
}

func printExamples() {
	fmt.Println()
	color.New(color.Bold).Println("Interactive Search Mode")
	fmt.Println("Type a make and optional model, plus key=value filters. Type 'quit' to exit.")
	fmt.Println()
	color.New(color.FgCyan).Println("Example searches:")
	fmt.Println("  toyata                                       (typos are fine)")
	fmt.Println("  touareg                                      (a model works when no make matches)")
	fmt.Println("  toyota corola sort=price_low")
	fmt.Println("  jeep cherokee grand                          (word order does not matter)")
	fmt.Println("  nissan budget=200000 km=70000")
	fmt.Println("  features=bluetooth,car_play budget=400000-550000")
	fmt.Println()
	fmt.Println("Commands: /makes, /models [make], /stats, /help")
	fmt.Println()
}

// parseQuery turns a prompt line into search preferences. Bare words name the
// make (first word) and model (remaining words); key=value tokens set the
// filters.
func parseQuery(line string) (search.Preferences, error) {
	var prefs search.Preferences
	var words []string

	for _, token := range strings.Fields(line) {
		key, value, isOption := strings.Cut(token, "=")
		if !isOption {
			words = append(words, token)
			continue
		}
		if value == "" {
			return prefs, fmt.Errorf("option %q needs a value", key)
		}

		switch strings.ToLower(key) {
		case "make":
			prefs.Make = value
		case "model":
			prefs.Model = value
		case "budget":
			lo, hi, err := floatRange(value)
			if err != nil {
				return prefs, fmt.Errorf("budget: %w", err)
			}
			prefs.BudgetMin, prefs.BudgetMax = lo, hi
		case "km":
			n, err := strconv.Atoi(value)
			if err != nil {
				return prefs, fmt.Errorf("km: %q is not a number", value)
			}
			prefs.KMMax = &n
		case "year":
			lo, hi, err := intRange(value)
			if err != nil {
				return prefs, fmt.Errorf("year: %w", err)
			}
			prefs.YearMin, prefs.YearMax = lo, hi
		case "sort":
			switch sortBy := search.SortBy(value); sortBy {
			case search.SortRelevance, search.SortPriceLow, search.SortPriceHigh, search.SortYearNew, search.SortKMLow:
				prefs.SortBy = sortBy
			default:
				return prefs, fmt.Errorf("unknown sort %q", value)
			}
		case "limit":
			n, err := strconv.Atoi(value)
			if err != nil {
				return prefs, fmt.Errorf("limit: %q is not a number", value)
			}
			prefs.MaxResults = n
		case "features", "feature":
			for _, name := range strings.Split(value, ",") {
				if name = strings.TrimSpace(name); name != "" {
					prefs.Features = append(prefs.Features, name)
				}
			}
		default:
			return prefs, fmt.Errorf("unknown option %q (try /help)", key)
		}
	}

	if prefs.Make == "" && len(words) > 0 {
		prefs.Make = words[0]
		words = words[1:]
	}
	if prefs.Model == "" && len(words) > 0 {
		prefs.Model = strings.Join(words, " ")
	}
	return prefs, nil
}

// floatRange accepts "min-max", "min-", "-max" or a bare number, which reads
// as a maximum.
func floatRange(s string) (lo, hi *float64, err error) {
	parse := func(part string) (*float64, error) {
		if part == "" {
			return nil, nil
		}
		f, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not a number", part)
		}
		return &f, nil
	}

	before, after, dashed := strings.Cut(s, "-")
	if !dashed {
		hi, err = parse(s)
		return nil, hi, err
	}
	if lo, err = parse(before); err != nil {
		return nil, nil, err
	}
	if hi, err = parse(after); err != nil {
		return nil, nil, err
	}
	return lo, hi, nil
}

// intRange accepts "min-max", "min-", "-max" or a bare number, which reads as
// an exact value.
func intRange(s string) (lo, hi *int, err error) {
	parse := func(part string) (*int, error) {
		if part == "" {
			return nil, nil
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("%q is not a number", part)
		}
		return &n, nil
	}

	before, after, dashed := strings.Cut(s, "-")
	if !dashed {
		n, err := parse(s)
		return n, n, err
	}
	if lo, err = parse(before); err != nil {
		return nil, nil, err
	}
	if hi, err = parse(after); err != nil {
		return nil, nil, err
	}
	return lo, hi, nil
}

func renderResults(results []storage.Vehicle, elapsed time.Duration) {
	if len(results) == 0 {
		color.New(color.FgYellow).Println("⚠ No vehicles matched. Check the make spelling or loosen the filters.")
		fmt.Println()
		return
	}

	fmt.Println()
	color.New(color.Bold).Printf("%d vehicle(s) in %s\n", len(results), elapsed.Round(10*time.Microsecond))
	for _, v := range results {
		color.New(color.FgCyan).Printf("  #%d  ", v.StockID)
		color.New(color.FgGreen, color.Bold).Printf("%s %s", v.Make, v.Model)
		if v.Version != "" {
			fmt.Printf(" %s", v.Version)
		}
		fmt.Printf(" (%d)\n", v.Year)

		line := fmt.Sprintf("      $%s MXN, %s km", formatThousands(int64(v.Price)), formatThousands(int64(v.KM)))
		if features := trueFeatures(v); len(features) > 0 {
			line += ", " + strings.Join(features, " ")
		}
		fmt.Println(line)
	}
	fmt.Println()
}

func trueFeatures(v storage.Vehicle) []string {
	var names []string
	for name, present := range v.Features {
		if present {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func formatThousands(n int64) string {
	s := strconv.FormatInt(n, 10)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

func handleCommand(ctx context.Context, engine *catalog.Engine, cmd string) {
	fields := strings.Fields(cmd)
	switch strings.ToLower(fields[0]) {
	case "/stats":
		printStats(ctx, engine)
		fmt.Println()
	case "/makes":
		makes, err := engine.Makes(ctx)
		if err != nil {
			color.New(color.FgRed).Printf("✗ %v\n", err)
			return
		}
		color.New(color.FgGreen).Println("\nMakes:")
		for _, name := range makes {
			fmt.Printf("   • %s\n", name)
		}
		fmt.Println()
	case "/models":
		scope := ""
		if len(fields) > 1 {
			scope = fields[1]
		}
		models, err := engine.Models(ctx, scope)
		if err != nil {
			color.New(color.FgRed).Printf("✗ %v\n", err)
			return
		}
		if scope != "" {
			color.New(color.FgGreen).Printf("\nModels of %s:\n", scope)
		} else {
			color.New(color.FgGreen).Println("\nModels:")
		}
		for _, name := range models {
			fmt.Printf("   • %s\n", name)
		}
		fmt.Println()
	case "/help":
		fmt.Println()
		color.New(color.FgCyan).Println("Filters (key=value, combine freely):")
		fmt.Println("   budget=200000-400000   price window (one number means a maximum)")
		fmt.Println("   km=40000               maximum mileage")
		fmt.Println("   year=2019-2021         year window (one number means that year)")
		fmt.Println("   features=a,b           required feature flags, all must be present")
		fmt.Println("   sort=price_low         price_low, price_high, year_new, km_low, relevance")
		fmt.Println("   limit=10               result cap")
		fmt.Println()
		color.New(color.FgCyan).Println("Commands:")
		fmt.Println("   /makes          list catalog makes")
		fmt.Println("   /models [make]  list models, optionally for one make")
		fmt.Println("   /stats          catalog counts")
		fmt.Println("   /help           this message")
		fmt.Println("   quit            exit the demo")
		fmt.Println()
	default:
		color.New(color.FgRed).Printf("Unknown command: %s\n", fields[0])
		fmt.Println("Type /help for available commands")
	}
}
