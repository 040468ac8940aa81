package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/charlie0129/cellsim/pkg/server"
	"github.com/charlie0129/cellsim/pkg/version"
)

// NewServeCommand .
func NewServeCommand() *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:     "serve",
		Short:   "Run the web UI in the foreground",
		GroupID: gLocal,
		Long: `Run the web UI in the foreground.

The listen address comes from the config file unless --listen is given. Send
SIGHUP to reload the config file.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			logrus.WithFields(logrus.Fields{
				"version": version.Version,
				"commit":  version.GitCommit,
			}).Info("cellsim server starting")
			return server.Run(configPath, listen)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "address to listen on, overrides the config file")

	return cmd
}

func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("%s %s\n", version.Version, version.GitCommit)
		},
	}
}
