package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/charlie0129/cellsim/pkg/chart"
	"github.com/charlie0129/cellsim/pkg/client"
	"github.com/charlie0129/cellsim/pkg/export"
	"github.com/charlie0129/cellsim/pkg/store"
	"github.com/charlie0129/cellsim/pkg/version"
)

// newAPIClient connects to --server, resuming --session when set.
func newAPIClient() (*client.Client, error) {
	return client.NewClient(serverAddr, sessionID)
}

// printSession tells the user how to continue in the same session.
func printSession(cmd *cobra.Command, c *client.Client) {
	if sessionID != "" || c.Session() == "" {
		return
	}
	cmd.PrintErrf("Session: %s (pass --session or set CELLSIM_SESSION to reuse it)\n", color.CyanString(c.Session()))
}

// NewRemoteCommand groups the commands that talk to a running server.
func NewRemoteCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "remote",
		Short:   "Drive a running cellsim server",
		GroupID: gRemote,
		Long: `Drive a running cellsim server.

Every call without --session starts a new session on the server. The session
id is printed so that later calls can work on the same cells.`,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			err := setupLogger()
			if err != nil {
				return err
			}

			c, err := newAPIClient()
			if err != nil {
				return err
			}
			if v, err := c.GetVersion(); err == nil {
				if v.Version != version.Version {
					logrus.WithFields(logrus.Fields{
						"clientVersion": version.Version,
						"serverVersion": v.Version,
					}).Warn("Version mismatch between client and server.")
				}
			} else if errors.Is(err, client.ErrServerNotRunning) {
				return err
			}

			return nil
		},
	}

	cmd.AddCommand(
		newRemoteGenerateCommand(),
		newRemoteRandomCommand(),
		newRemoteStatsCommand(),
		newRemoteClearCommand(),
		newRemoteExportCommand(),
		newRemoteImportCommand(),
		newRemoteChartCommand(),
		newRemoteReseedCommand(),
		newRemoteDeleteShownCommand(),
		newRemoteConfigCommand(),
		newRemoteEndCommand(),
	)

	return cmd
}

func newRemoteGenerateCommand() *cobra.Command {
	var (
		count int
		seed  string
		mix   []string
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate cells with the session's controls",
		Long: `Generate cells with the session's controls.

--count, --seed and --mix update the controls first. Setting a seed that
differs from the current one reseeds the generator.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := newAPIClient()
			if err != nil {
				return err
			}

			if cmd.Flags().Changed("count") || cmd.Flags().Changed("seed") || cmd.Flags().Changed("mix") {
				ctl, err := c.GetControls()
				if err != nil {
					return err
				}
				if cmd.Flags().Changed("count") {
					ctl.Count = count
				}
				if cmd.Flags().Changed("seed") {
					ctl.Seed = seed
				}
				if cmd.Flags().Changed("mix") {
					ctl.Mix, err = parseMix(mix)
					if err != nil {
						return err
					}
				}
				ret, err := c.SetControls(*ctl)
				if err != nil {
					return err
				}
				if ret.Reseeded {
					logrus.WithField("seed", ret.Controls.Seed).Info("generator reseeded")
				}
			}

			ret, err := c.Generate()
			if err != nil {
				printSession(cmd, c)
				return err
			}
			cmd.Printf("Added %s cells, %d in total\n", bold("%d", ret.Added), ret.Total)
			printSession(cmd, c)
			return nil
		},
	}

	f := cmd.Flags()
	f.IntVarP(&count, "count", "n", 0, "number of cells to generate")
	f.StringVar(&seed, "seed", "", "random seed")
	f.StringSliceVar(&mix, "mix", nil, "cell types to draw from")

	return cmd
}

func newRemoteRandomCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "random",
		Short: "Add one random cell",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := newAPIClient()
			if err != nil {
				return err
			}
			x, err := c.AddRandom()
			if err != nil {
				return err
			}
			cmd.Printf("Added %s cell: %.2f V, %.2f F, %.2f °C\n", chemColor(x.Type).Sprint(x.Type), x.NominalVoltage, x.Capacitance, x.Temperature)
			printSession(cmd, c)
			return nil
		},
	}
}

func newRemoteStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print statistics of the filtered cells",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := newAPIClient()
			if err != nil {
				return err
			}
			st, err := c.GetStats()
			if err != nil {
				return err
			}
			printSummary(cmd.OutOrStdout(), st.Total, st.Summary, st.ByType)
			return nil
		},
	}
}

func newRemoteClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every cell",
		RunE: func(_ *cobra.Command, _ []string) error {
			c, err := newAPIClient()
			if err != nil {
				return err
			}
			if err := c.Clear(); err != nil {
				return err
			}
			logrus.Info("cells cleared")
			return nil
		},
	}
}

func newRemoteExportCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export [csv|json]",
		Short: "Download the filtered cells",
		Long: `Download the filtered cells.

Without --output the file is saved in the current directory under the name the
server suggests. Use "-o -" to write to stdout.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := string(export.CSV)
			if len(args) == 1 {
				name = args[0]
			}
			format, err := export.ParseFormat(name)
			if err != nil {
				return err
			}

			c, err := newAPIClient()
			if err != nil {
				return err
			}
			b, suggested, err := c.Export(format)
			if err != nil {
				return err
			}

			if output == "" {
				output = suggested
			}
			return writeOutput(cmd.OutOrStdout(), output, b)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file")

	return cmd
}

func newRemoteImportCommand() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Append the cells of a CSV or JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format == "" {
				format = extension(args[0])
			}
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			b, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			c, err := newAPIClient()
			if err != nil {
				return err
			}
			ret, err := c.Import(f, filepath.Base(args[0]), b)
			if err != nil {
				return err
			}
			cmd.Printf("Imported %s cells, %d in total\n", bold("%d", ret.Added), ret.Total)
			printSession(cmd, c)
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "", "file format, csv or json (default from extension)")

	return cmd
}

func newRemoteChartCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:       "chart scatter|temperature",
		Short:     "Download a rendered chart of the filtered cells",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"scatter", "temperature"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" {
				output = args[0] + ".png"
			}
			format, err := chart.ParseFormat(extension(output))
			if err != nil {
				return err
			}

			c, err := newAPIClient()
			if err != nil {
				return err
			}
			b, err := c.GetChart(args[0], format)
			if err != nil {
				if errors.Is(err, chart.ErrNoData) {
					return fmt.Errorf("nothing to draw: %w", err)
				}
				return err
			}
			return writeOutput(cmd.OutOrStdout(), output, b)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file, the extension picks PNG or SVG (default <chart>.png)")

	return cmd
}

func newRemoteReseedCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "reseed",
		Short: "Apply the session's seed again",
		Long: `Apply the session's seed again.

The next generate call repeats the sequence produced right after the seed was
first set. Nothing happens when the seed is blank.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := newAPIClient()
			if err != nil {
				return err
			}
			ret, err := c.Reseed()
			if err != nil {
				return err
			}
			if !ret.Reseeded {
				cmd.Println("Seed is blank, nothing to reseed")
				return nil
			}
			cmd.Printf("Reseeded with %s\n", bold("%q", ret.Controls.Seed))
			printSession(cmd, c)
			return nil
		},
	}
}

func newRemoteDeleteShownCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete-shown",
		Short: "Remove the cells that pass the current filter",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := newAPIClient()
			if err != nil {
				return err
			}
			v, err := c.GetView()
			if err != nil {
				return err
			}
			indices := make([]int, 0, len(v.Rows))
			for _, r := range v.Rows {
				indices = append(indices, r.Index)
			}
			ret, err := c.ApplyEdit(store.Edit{Version: v.Version, ViewIndices: indices})
			if err != nil {
				return err
			}
			cmd.Printf("Removed %s cells, %d left\n", bold("%d", ret.Removed), v.Total-ret.Removed)
			return nil
		},
	}
}

func newRemoteConfigCommand() *cobra.Command {
	var (
		maxCount         int
		defaultCount     int
		defaultPrecision int
		sessionTTL       int
	)

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print or change the server config",
		Long: `Print or change the server config.

Changed values are saved to the server's config file. New sessions pick up
the defaults; existing sessions keep their controls.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := newAPIClient()
			if err != nil {
				return err
			}

			setters := []struct {
				flag  string
				value int
				set   func(int) (string, error)
			}{
				{"max-count", maxCount, c.SetMaxCount},
				{"default-count", defaultCount, c.SetDefaultCount},
				{"default-precision", defaultPrecision, c.SetDefaultPrecision},
				{"session-ttl", sessionTTL, c.SetSessionTTL},
			}
			for _, s := range setters {
				if !cmd.Flags().Changed(s.flag) {
					continue
				}
				msg, err := s.set(s.value)
				if err != nil {
					return err
				}
				logrus.Info(msg)
			}

			conf, err := c.GetConfig()
			if err != nil {
				return err
			}
			b, err := json.MarshalIndent(conf, "", "  ")
			if err != nil {
				return err
			}
			cmd.Println(string(b))
			return nil
		},
	}

	f := cmd.Flags()
	f.IntVar(&maxCount, "max-count", 0, "largest count a session may generate at once")
	f.IntVar(&defaultCount, "default-count", 0, "count of new sessions")
	f.IntVar(&defaultPrecision, "default-precision", 0, "precision of new sessions")
	f.IntVar(&sessionTTL, "session-ttl", 0, "minutes an idle session is kept, 0 keeps it forever")

	return cmd
}

func newRemoteEndCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "end",
		Short: "End the session given by --session and drop its cells",
		RunE: func(_ *cobra.Command, _ []string) error {
			if sessionID == "" {
				return errors.New("no session to end, pass --session or set CELLSIM_SESSION")
			}
			c, err := newAPIClient()
			if err != nil {
				return err
			}
			if err := c.EndSession(); err != nil {
				return err
			}
			logrus.WithField("session", sessionID).Info("session ended")
			return nil
		},
	}
}
