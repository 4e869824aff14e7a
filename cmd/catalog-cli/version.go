package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newVersionCmd creates the version subcommand.
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			if outputJSON {
				_ = printJSON(map[string]string{
					"version": "0.1.0",
					"go":      "1.25",
				})
				return
			}
			fmt.Println("catalog-cli v0.1.0")
		},
	}
}
