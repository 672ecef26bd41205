// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the abstract-engine CLI.
// Implements: prd008-graphical-abstract (CLI surface).
// See docs/ARCHITECTURE § Pipeline Interface.
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/abstract-engine/internal/secrets"
)

// version is set at build time via ldflags.
var version = "dev"

// Exit statuses. A rejected run means the model never produced a
// compiling document within budget; an infrastructure failure means
// the tooling itself is broken. Callers scripting around the CLI rely
// on the distinction.
const (
	exitAccepted       = 0
	exitRejected       = 1
	exitInfrastructure = 2
)

// errRejected marks a run that terminated normally without an accepted
// artifact.
var errRejected = errors.New("no revision compiled within the budget")

// loadedSecrets holds API keys loaded from .secrets/ at startup.
var loadedSecrets map[string]string

// rootCmd is the base command for the abstract-engine CLI.
var rootCmd = &cobra.Command{
	Use:   "abstract-engine",
	Short: "Generate compiled graphical abstracts for research projects",
	Long: `abstract-engine turns a research project folder (idea, experiment
summaries, figures, writeup) into a compiled one-page TikZ graphical
abstract. A Generative AI model drafts the LaTeX; the engine checks,
compiles, and feeds diagnostics back for a bounded number of revision
rounds.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := secrets.Load(".secrets/")
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", keys)
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./abstract-engine.yaml or ~/.config/abstract-engine/config.yaml)")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("abstract-engine")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "abstract-engine"))
		}
	}

	viper.SetEnvPrefix("ABSTRACT_ENGINE")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	err := rootCmd.Execute()
	if err == nil {
		os.Exit(exitAccepted)
	}
	fmt.Fprintln(os.Stderr, "Error:", err)
	if errors.Is(err, errRejected) {
		os.Exit(exitRejected)
	}
	os.Exit(exitInfrastructure)
}
