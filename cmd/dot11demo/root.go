package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mxdubois/cs325-802-11/internal/telemetry"
)

var (
	scenarioPath string
	logLevel     string
	devLog       bool
)

var rootCmd = &cobra.Command{
	Use:   "dot11demo",
	Short: "Demo/self-test harness for the 802.11~ DCF MAC layer",
	Long: `dot11demo drives the 802.11~ CSMA/CA MAC core (wire, mac packages) against
an in-process simulated radio medium. It is ambient demo tooling around the
MAC core, not part of the sender/receiver/clock CORE subsystems themselves.`,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&scenarioPath, "scenario", "s", "",
		"path to a YAML scenario file (default: built-in two-node scenario)")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "info",
		"zap log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&devLog, "dev-log", false,
		"use zap's human-readable development encoder instead of JSON")

	rootCmd.AddCommand(selftestCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(commandCmd)
}

func loadScenario() (Scenario, error) {
	if scenarioPath == "" {
		return DefaultScenario(), nil
	}
	return LoadScenario(scenarioPath)
}

func newLogger() (*zap.Logger, error) {
	return telemetry.NewLogger(telemetry.LoggingConfig{Level: logLevel, Development: devLog})
}
