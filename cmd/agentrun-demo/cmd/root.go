// Package cmd implements the agentrun-demo Cobra command tree.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile   string
	scenario  string
	provider  string
	sessionID string
)

var rootCmd = &cobra.Command{
	Use:   "agentrun-demo",
	Short: "Run a scripted agent-run scenario against an in-memory orchestrator",
	Long: `agentrun-demo wires the admission queue, session lock, turn/tool-round
driver, and context assembler into a single Runner and drives it through one
of the scenarios described in the orchestration spec, printing the resulting
event sequence.`,
	RunE: runDemo,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (YAML, overrides defaults)")
	rootCmd.Flags().StringVarP(&scenario, "scenario", "s", "s1", "scenario to run: s1 (single turn), s5 (tool round), s6 (turn budget)")
	rootCmd.Flags().StringVarP(&provider, "provider", "p", "fake", "model provider: fake (scripted) or anthropic (requires ANTHROPIC_API_KEY)")
	rootCmd.Flags().StringVar(&sessionID, "session", "demo-session", "session id to run under")

	_ = viper.BindPFlag("scenario", rootCmd.Flags().Lookup("scenario"))
	_ = viper.BindPFlag("provider", rootCmd.Flags().Lookup("provider"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err == nil {
			fmt.Fprintln(os.Stderr, "using config file:", viper.ConfigFileUsed())
		}
	}
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
