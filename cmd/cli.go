// SPDX-License-Identifier: MIT
//
// Package cmd is the stompd command line.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"stomp/internal/config"
	applog "stomp/internal/log"
	"stomp/pkg/build"
)

// app carries the persistent flags and the configuration they select.
type app struct {
	configPath string
	logLevel   string

	cfg *config.Config
}

// config loads the configuration once and applies the log level, the
// --log-level flag winning over the file.
func (a *app) config() (*config.Config, error) {
	if a.cfg != nil {
		return a.cfg, nil
	}
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return nil, err
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	level, ok := applog.ParseLevel(cfg.LogLevel)
	if !ok {
		return nil, fmt.Errorf("unknown log level %q", cfg.LogLevel)
	}
	applog.SetLevel(level)

	a.cfg = cfg
	return cfg, nil
}

// NewRootCommand builds the stompd command tree.
func NewRootCommand() *cobra.Command {
	info := build.Get()
	a := &app{}

	rootCmd := &cobra.Command{
		Use:           info.Name,
		Short:         "Tempo-aware stomp detection for live sessions",
		Version:       info.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
	}
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	rootCmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "",
		fmt.Sprintf("Configuration file (YAML or TOML). Defaults to the first of %v found", config.DefaultPaths))
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "",
		"Log level: debug, info, warn, error (overrides the configuration)")

	rootCmd.AddCommand(
		newRunCommand(a),
		newReplayCommand(a),
		newDevicesCommand(),
		newVersionCommand(),
	)
	return rootCmd
}

// Execute runs the command line against os.Args.
func Execute() error {
	rootCmd := NewRootCommand()
	rootCmd.SetArgs(os.Args[1:])
	return rootCmd.Execute()
}
