package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/charlie0129/cellsim/pkg/cell"
	"github.com/charlie0129/cellsim/pkg/chart"
	"github.com/charlie0129/cellsim/pkg/config"
	"github.com/charlie0129/cellsim/pkg/export"
	"github.com/charlie0129/cellsim/pkg/filter"
	"github.com/charlie0129/cellsim/pkg/ranges"
	"github.com/charlie0129/cellsim/pkg/session"
)

type generateOptions struct {
	count      int
	seed       string
	mix        []string
	precision  int
	format     string
	output     string
	rangesFile string
	scatter    string
	histogram  string
	quiet      bool
}

// NewGenerateCommand generates a data set without starting the server.
func NewGenerateCommand() *cobra.Command {
	o := &generateOptions{}

	cmd := &cobra.Command{
		Use:     "generate",
		Short:   "Generate cells and write them as CSV or JSON",
		GroupID: gLocal,
		Long: `Generate cells and write them as CSV or JSON.

Count and precision default to the values in the config file. Bounds default
to the built-in ranges; --ranges reads overrides from a JSON file shaped like
{"LFP": {"temperature_C": {"low": 25, "high": 45}}}.

A summary is printed to stderr. --scatter and --histogram also render the
charts, as PNG or SVG depending on the file extension.`,
		Example: `  cellsim generate --count 500 --seed 42 -o cells.csv
  cellsim generate --mix NMC --format json --scatter plot.svg`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.run(cmd)
		},
	}

	f := cmd.Flags()
	f.IntVarP(&o.count, "count", "n", session.DefaultCount, "number of cells to generate")
	f.StringVar(&o.seed, "seed", "", "random seed, integer or any text; empty means random")
	f.StringSliceVar(&o.mix, "mix", []string{string(cell.LFP), string(cell.NMC)}, "cell types to draw from")
	f.IntVar(&o.precision, "precision", ranges.DefaultPrecision, "decimal places of generated values")
	f.StringVarP(&o.format, "format", "f", "", "output format, csv or json (default from --output extension, else csv)")
	f.StringVarP(&o.output, "output", "o", "", "output file, stdout when empty")
	f.StringVar(&o.rangesFile, "ranges", "", "JSON file with bound overrides")
	f.StringVar(&o.scatter, "scatter", "", "also render the nominal vs max voltage scatter chart to this file")
	f.StringVar(&o.histogram, "histogram", "", "also render the temperature histogram to this file")
	f.BoolVarP(&o.quiet, "quiet", "q", false, "do not print the summary")

	return cmd
}

func (o *generateOptions) controls(cmd *cobra.Command, conf config.Config) (session.Controls, error) {
	ctl := config.SessionDefaults(conf)
	if cmd.Flags().Changed("count") {
		ctl.Count = o.count
	}
	if cmd.Flags().Changed("precision") {
		ctl.Precision = o.precision
	}
	ctl.Seed = o.seed

	mix, err := parseMix(o.mix)
	if err != nil {
		return ctl, err
	}
	ctl.Mix = mix

	if o.rangesFile != "" {
		b, err := os.ReadFile(o.rangesFile)
		if err != nil {
			return ctl, err
		}
		var overrides ranges.Config
		if err := json.Unmarshal(b, &overrides); err != nil {
			return ctl, fmt.Errorf("failed to parse %s: %w", o.rangesFile, err)
		}
		for chem, t := range overrides {
			for a, bounds := range t {
				ctl.Ranges.Set(chem, a, bounds)
			}
		}
	}

	// Keep everything that was generated.
	ctl.Filter = filter.Criteria{
		Types:          cell.Chemistries,
		Temperature:    filter.TemperatureLimit,
		NominalVoltage: filter.NominalVoltageLimit,
		Capacitance:    filter.CapacitanceLimit,
	}
	return ctl, nil
}

func (o *generateOptions) run(cmd *cobra.Command) error {
	conf, err := config.NewFile(configPath)
	if err != nil {
		return err
	}

	format := export.CSV
	switch {
	case o.format != "":
		format, err = export.ParseFormat(o.format)
	case o.output != "" && o.output != "-":
		format, err = export.ParseFormat(extension(o.output))
	}
	if err != nil {
		return err
	}

	ctl, err := o.controls(cmd, conf)
	if err != nil {
		return err
	}

	sess := session.New("cli", session.DefaultControls())
	if _, err := sess.SetControls(ctl, conf.MaxCount()); err != nil {
		return err
	}
	if _, err := sess.Generate(); err != nil {
		return err
	}

	view := sess.Render()
	cells := view.Cells()

	b, err := export.Encode(format, cells)
	if err != nil {
		return err
	}
	if err := writeOutput(cmd.OutOrStdout(), o.output, b); err != nil {
		return err
	}

	opts := chart.Options{Width: conf.ChartWidth(), Height: conf.ChartHeight()}
	charts := []struct {
		path   string
		render func(io.Writer, []cell.Cell, chart.Options) error
	}{
		{o.scatter, chart.RenderScatter},
		{o.histogram, chart.RenderTemperature},
	}
	for _, c := range charts {
		if c.path == "" {
			continue
		}
		opts.Format, err = chart.ParseFormat(extension(c.path))
		if err != nil {
			return err
		}
		var buf bytes.Buffer
		if err := c.render(&buf, cells, opts); err != nil {
			return err
		}
		if err := writeOutput(cmd.OutOrStdout(), c.path, buf.Bytes()); err != nil {
			return err
		}
	}

	if !o.quiet {
		printSummary(cmd.ErrOrStderr(), view.Total, view.Stats, view.ByType)
	}
	return nil
}
