package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/CZERTAINLY/pbsctl/internal/config"
	"github.com/CZERTAINLY/pbsctl/pbs"

	"github.com/spf13/cobra"
)

var (
	configPath string // actual config file used (if loaded)
	cfg        config.Config

	flagConfigFilePath string // value of --config flag
	flagVerbose        bool   // value of --verbose flag
	flagOutput         string // value of --output flag
)

func main() {
	rootCmd.PersistentFlags().StringVar(&flagConfigFilePath, "config", "", "Config file to load - default is "+config.FileName+" in current directory or in the user config directory, "+config.EnvConfig+" takes precedence")
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "verbose logging")
	rootCmd.PersistentFlags().StringVarP(&flagOutput, "output", "o", outputText, "output format: json, yaml or text")

	// never print messages
	rootCmd.SilenceErrors = true

	// parse a config, setup logging
	rootCmd.PersistentPreRunE = initPbsctl

	rootCmd.AddCommand(
		nodesCmd(),
		queuesCmd(),
		jobsCmd(),
		submitCmd(),
		deleteCmd(),
		traceCmd(),
		snapshotCmd(),
		watchCmd(),
		exporterCmd(),
		configCmd,
		versionCmd,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		slog.Error("pbsctl failed", "err", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "pbsctl",
	Short:        "Query and control a PBS/Torque batch scheduler",
	SilenceUsage: true,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return printYAML(cmd.OutOrStdout(), cfg)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "version provides version of pbsctl",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		w := cmd.OutOrStdout()
		if configPath != "" {
			fmt.Fprintf(w, "config:  %s\n", configPath)
		}
		info, ok := debug.ReadBuildInfo()
		if !ok {
			fmt.Fprintln(w, "pbsctl: version info not available")
			return
		}
		fmt.Fprintf(w, "pbsctl:  %s\n", info.Main.Version)
		fmt.Fprintf(w, "go:      %s\n", info.GoVersion)
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				fmt.Fprintf(w, "commit:  %s\n", s.Value)
			case "vcs.time":
				fmt.Fprintf(w, "date:    %s\n", s.Value)
			case "vcs.modified":
				fmt.Fprintf(w, "dirty:   %s\n", s.Value)
			}
		}
	},
}

func initPbsctl(cmd *cobra.Command, _ []string) error {
	if err := checkOutput(flagOutput); err != nil {
		return err
	}

	var err error
	cfg, configPath, err = config.Load(cmd.Context(), flagConfigFilePath)
	if err != nil {
		for _, d := range config.CueErrDetails(err) {
			slog.Error("invalid configuration", d.Attr("detail"))
		}
		return err
	}

	// --verbose has a precedence over config file
	if flagVerbose {
		cfg.Log.Verbose = true
	}
	slog.SetDefault(cfg.Logger(os.Stderr))

	slog.Debug("pbsctl run", "configPath", configPath)
	slog.Debug("pbsctl run", "config", cfg)
	return nil
}

func newClient() *pbs.Client {
	return pbs.NewClient(cfg.ClientOptions()...)
}
