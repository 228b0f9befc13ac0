// Command jackd hosts a JACK engine as a standalone process: it loads a
// declarative template bundle, wires an optional bus connection and an
// optional Redis telemetry mirror, and runs the engine's tick loop until
// interrupted.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags "-X main.Version=...".
var Version = "dev"

var (
	cfgFile    string
	bundleFile string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "jackd",
	Short: "jackd — a JACK BDI agent engine host",
	Long:  "jackd runs a JACK reasoning engine: agents, teams and services defined in a templates.yaml bundle, reasoning over goals and plans until their desires are satisfied or dropped.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "engine config file (default: $JACK_CONFIG or none)")
	rootCmd.PersistentFlags().StringVar(&bundleFile, "templates", "", "declarative agent/team template bundle (templates.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(inspectCmd())
	rootCmd.AddCommand(versionCmd())
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("jackd %s\n", Version)
		},
	}
}

func resolveConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return os.Getenv("JACK_CONFIG")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
