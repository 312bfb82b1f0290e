package main

import (
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/geoint-cli/internal/choropleth"
)

var styleCmd = &cobra.Command{
	Use:       "style <geoint|gap>",
	Short:     "Print a choropleth fill-color expression",
	Long:      "Prints the Mapbox-GL fill-color expression for the GEOINT score ramp or the competitor gap ramp.",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"geoint", "gap"},
	RunE: func(cmd *cobra.Command, args []string) error {
		pal, err := palette(cfg)
		if err != nil {
			return err
		}
		return printStyle(pal, args[0], cmd.OutOrStdout())
	},
}

func printStyle(pal *choropleth.Palette, name string, out io.Writer) error {
	style, err := pal.Style(name)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(style.Expression()), "style: encode")
}

func init() {
	rootCmd.AddCommand(styleCmd)
}
