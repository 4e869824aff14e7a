// Command feed-check dry-runs a CSV feed through the row mapper and reports
// what an ingestion would do with it, without touching any store.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/yokharian/catalog-engine/internal/ingest"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: feed-check <feed.csv>")
		os.Exit(1)
	}

	file, err := os.Open(os.Args[1])
	if err != nil {
		fmt.Printf("Error reading file: %v\n", err)
		os.Exit(1)
	}
	defer file.Close()

	source, err := ingest.NewCSVSource(file, os.Args[1])
	if err != nil {
		fmt.Printf("Error reading header: %v\n", err)
		os.Exit(1)
	}

	var rows, ok, rejected, degraded int
	seen := make(map[int64]int)
	for {
		row, err := source.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			fmt.Printf("Error reading feed: %v\n", err)
			os.Exit(1)
		}
		rows++

		vehicle, degradations, rowErr := ingest.MapRow(row)
		if rowErr != nil {
			rejected++
			fmt.Printf("line %d: REJECT %s\n", row.Line, rowErr.Detail())
			continue
		}
		for _, d := range degradations {
			degraded++
			fmt.Printf("line %d: degrade %s=%q (%s)\n", row.Line, d.Field, d.Value, d.Reason)
		}
		if prev, dup := seen[vehicle.StockID]; dup {
			fmt.Printf("line %d: duplicate stock_id %d (first on line %d, later row wins)\n",
				row.Line, vehicle.StockID, prev)
		} else {
			seen[vehicle.StockID] = row.Line
		}
		ok++
	}

	fmt.Printf("\n%s: %d rows, %d usable, %d rejected, %d degraded fields, %d unique vehicles\n",
		source.Name(), rows, ok, rejected, degraded, len(seen))
	if rejected > 0 {
		os.Exit(2)
	}
}
