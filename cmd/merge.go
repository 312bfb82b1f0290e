package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/paulmach/orb/geojson"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/geoint-cli/internal/boundary"
	"github.com/sells-group/geoint-cli/internal/choropleth"
)

var (
	mergeInput    string
	mergeOutput   string
	mergeProvince string
	mergeColorize bool
)

var mergeCmd = &cobra.Command{
	Use:       "merge <provinces|districts|comparison>",
	Short:     "Merge a saved score payload onto the boundaries",
	Long:      "Reads a score or comparison payload from a file (or stdin with -), joins it to the configured boundary sets and writes the merged GeoJSON.",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"provinces", "districts", "comparison"},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("merge"); err != nil {
			return err
		}

		data, err := readInput(mergeInput, cmd.InOrStdin())
		if err != nil {
			return err
		}

		src, closeSrc, err := boundarySource(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeSrc()

		var pal *choropleth.Palette
		if mergeColorize {
			if pal, err = palette(cfg); err != nil {
				return err
			}
		}

		fc, stats, err := mergePayload(ctx, newEngine(cfg, src), args[0], data, mergeProvince, pal)
		if err != nil {
			return err
		}

		zap.L().Info("merge finished",
			zap.String("kind", args[0]),
			zap.Int("features", len(fc.Features)),
			zap.Int("matched", stats.Matched()),
			zap.Int("defaulted", stats.Defaulted),
			zap.Int("fallback", stats.Fallback),
			zap.Bool("degraded", stats.Degraded),
		)
		return writeOutput(mergeOutput, cmd.OutOrStdout(), fc)
	},
}

// mergePayload joins a payload of kind onto the engine's boundaries. A non-nil
// pal colors the result with the style matching kind.
func mergePayload(ctx context.Context, engine *boundary.Engine, kind string, data []byte, provinceCode string, pal *choropleth.Palette) (*geojson.FeatureCollection, boundary.MergeStats, error) {
	var (
		fc        *geojson.FeatureCollection
		stats     boundary.MergeStats
		styleName = "geoint"
	)

	switch kind {
	case "provinces", "province":
		sc, err := boundary.ParseScores(data)
		if err != nil {
			return nil, stats, err
		}
		fc, stats = engine.Provinces(ctx, sc)
	case "districts", "district":
		sc, err := boundary.ParseScores(data)
		if err != nil {
			return nil, stats, err
		}
		code := ""
		if provinceCode != "" {
			code = boundary.PadProvinceCode(provinceCode)
		}
		fc, stats = engine.Districts(ctx, sc, code)
	case "comparison":
		regions, err := boundary.ParseComparison(data)
		if err != nil {
			return nil, stats, err
		}
		fc, stats = engine.Comparison(ctx, regions)
		styleName = "gap"
	default:
		return nil, stats, eris.Errorf("merge: unknown kind %q (want provinces, districts or comparison)", kind)
	}

	if pal != nil {
		style, err := pal.Style(styleName)
		if err != nil {
			return nil, stats, err
		}
		choropleth.Colorize(fc, style)
	}
	return fc, stats, nil
}

func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(stdin)
		return data, eris.Wrap(err, "read stdin")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read %s", path)
	}
	return data, nil
}

func writeOutput(path string, stdout io.Writer, fc *geojson.FeatureCollection) error {
	data, err := fc.MarshalJSON()
	if err != nil {
		return eris.Wrap(err, "encode geojson")
	}
	if path == "" || path == "-" {
		_, err := stdout.Write(append(data, '\n'))
		return eris.Wrap(err, "write stdout")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "write %s", path)
	}
	return nil
}

func init() {
	mergeCmd.Flags().StringVarP(&mergeInput, "input", "i", "-", "payload file (- for stdin)")
	mergeCmd.Flags().StringVarP(&mergeOutput, "output", "o", "-", "output file (- for stdout)")
	mergeCmd.Flags().StringVar(&mergeProvince, "province", "", "province code for district merges (e.g. 06)")
	mergeCmd.Flags().BoolVar(&mergeColorize, "colorize", false, "add a fill_color property from the choropleth palette")
	rootCmd.AddCommand(mergeCmd)
}
