// Package cmd builds the codescan command tree.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/codescan/cmd/config"
	"github.com/tphakala/codescan/cmd/ingest"
	"github.com/tphakala/codescan/cmd/scans"
	"github.com/tphakala/codescan/cmd/serve"
	"github.com/tphakala/codescan/cmd/version"
	"github.com/tphakala/codescan/internal/buildinfo"
	"github.com/tphakala/codescan/internal/conf"
	"github.com/tphakala/codescan/internal/logger"
)

// skipSetup marks commands that run without loading settings.
const skipSetup = "skip-setup"

// RootCommand creates and returns the root command. Subcommands share
// settings, which are loaded before any of them runs.
func RootCommand(info *buildinfo.Context) *cobra.Command {
	settings := &conf.Settings{}
	var configPath string
	var centralLogger *logger.CentralLogger

	rootCmd := &cobra.Command{
		Use:           "codescan",
		Short:         "Optical code scan ingestion and history",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file (default: search standard locations)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging in every module")
	if err := viper.BindPFlag("main.debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		panic(fmt.Sprintf("binding debug flag: %v", err))
	}

	rootCmd.AddCommand(
		serve.Command(settings, info),
		ingest.Command(settings, info),
		scans.Command(settings),
		config.Command(settings),
		version.Command(info),
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		if cmd.Annotations[skipSetup] == "true" {
			return nil
		}

		loaded, err := conf.Load(configPath)
		if err != nil {
			return err
		}
		*settings = *loaded

		cl, err := logger.NewCentralLogger(&settings.Logging)
		if err != nil {
			return fmt.Errorf("error initializing logger: %w", err)
		}
		logger.SetGlobal(cl)
		centralLogger = cl
		return nil
	}

	rootCmd.PersistentPostRunE = func(*cobra.Command, []string) error {
		if centralLogger == nil {
			return nil
		}
		return centralLogger.Close()
	}

	markSkipSetup(rootCmd)
	return rootCmd
}

// markSkipSetup annotates commands that must work without a config file.
func markSkipSetup(root *cobra.Command) {
	for _, c := range root.Commands() {
		if c.Name() == "version" {
			setAnnotation(c)
		}
		if c.Name() == "config" {
			for _, sub := range c.Commands() {
				if sub.Name() == "init" {
					setAnnotation(sub)
				}
			}
		}
	}
}

func setAnnotation(c *cobra.Command) {
	if c.Annotations == nil {
		c.Annotations = map[string]string{}
	}
	c.Annotations[skipSetup] = "true"
}
