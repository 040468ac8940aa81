package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/charlie0129/cellsim/pkg/client"
)

var (
	logLevel   = "info"
	configPath = "/etc/cellsim.json"
	serverAddr = "127.0.0.1:8501"
	sessionID  = os.Getenv("CELLSIM_SESSION")
)

var (
	gLocal        = "Local:"
	gRemote       = "Remote:"
	commandGroups = []string{
		gLocal,
		gRemote,
	}
)

func setupLogger() error {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("failed to parse log level: %v", err)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{})
	if term.IsTerminal(int(os.Stderr.Fd())) {
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.Kitchen,
		})
	}

	return nil
}

func handleCmdError(err error) {
	var se *client.StatusError
	switch {
	case errors.Is(err, client.ErrServerNotRunning):
		fmt.Fprintf(os.Stderr, "\nError: no cellsim server at %s\n", serverAddr)
		fmt.Fprintln(os.Stderr, "Start one with 'cellsim serve' or point --server at a running one.")
	case errors.As(err, &se) && se.Code == 409:
		fmt.Fprintln(os.Stderr, "\nThe cells changed since they were loaded. Fetch the view again and retry.")
	}
}

func main() {
	cmd := NewCommand()
	if err := cmd.Execute(); err != nil {
		handleCmdError(err)
		os.Exit(1)
	}
}

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cellsim",
		Short: "cellsim generates and explores synthetic battery cell data",
		Long: `cellsim generates random LFP and NMC battery cell records within
configurable bounds, and lets you filter, edit, chart and export them in the
browser.

Run 'cellsim serve' and open the printed address, or use 'cellsim generate'
to write a data set without a browser.`,
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return setupLogger()
		},
	}

	globalFlags := cmd.PersistentFlags()
	globalFlags.StringVarP(&logLevel, "log-level", "l", "info", "log level (trace, debug, info, warn, error, fatal, panic)")
	globalFlags.StringVar(&configPath, "config", configPath, "config file path")
	globalFlags.StringVar(&serverAddr, "server", serverAddr, "address of the cellsim server used by remote commands")
	globalFlags.StringVar(&sessionID, "session", sessionID, "session to resume in remote commands (env CELLSIM_SESSION)")

	for _, i := range commandGroups {
		cmd.AddGroup(&cobra.Group{
			ID:    i,
			Title: i,
		})
	}

	cmd.AddCommand(
		NewServeCommand(),
		NewGenerateCommand(),
		NewVersionCommand(),
		NewRemoteCommand(),
	)

	return cmd
}
