package main

import (
	"fmt"

	mcobra "github.com/muesli/mango-cobra"
	"github.com/muesli/roff"
	"github.com/spf13/cobra"
)

var manCmd = &cobra.Command{
	Use:                   "man",
	Short:                 "Generates manpages",
	SilenceUsage:          true,
	DisableFlagsInUseLine: true,
	Hidden:                true,
	Args:                  cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		page, err := mcobra.NewManPage(1, rootCmd)
		if err != nil {
			return err
		}

		page = page.WithSection("Scripts", "Dialogue scripts are YAML files with a title, a speakers map of ids to\n"+
			"display names and a list of lines. Each line has at, speaker, text and\n"+
			"optional id, priority (0 critical to 3 low), emotion and traits.")
		page = page.WithSection("Copyright", "Released under MIT license.")
		fmt.Println(page.Build(roff.NewDocument()))
		return nil
	},
}
