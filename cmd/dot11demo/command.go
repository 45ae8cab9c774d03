package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mxdubois/cs325-802-11/mac"
)

// commandCmd is a thin demo of the Dot11Interface.command() option channel
// (cmd 0 dump, 1 debug level, 2 slot-selection policy, 3 beacon interval)
// against a single standalone node. It mirrors the original LinkLayer's
// command dump, returning a formatted report via the logger rather than
// stdout.
var (
	commandCode int
	commandVal  int
)

var commandCmd = &cobra.Command{
	Use:   "command",
	Short: "Exercise the option-setting command channel against a standalone node",
	RunE: func(cmd *cobra.Command, args []string) error {
		scn, err := loadScenario()
		if err != nil {
			return err
		}
		log, err := newLogger()
		if err != nil {
			return err
		}
		defer log.Sync()

		medium := mac.NewMedium(scn.BytesPerSec)
		radio := mac.NewSimRadio(medium, int64(scn.NodeA))
		link := mac.NewLink(scn.NodeA, radio, mac.LinkConfig{}, log)
		link.Start(context.Background())

		link.Command(commandCode, commandVal)
		fmt.Printf("issued command %d with value %d\n", commandCode, commandVal)
		return nil
	},
}

func init() {
	commandCmd.Flags().IntVar(&commandCode, "cmd", mac.CmdDumpSettings,
		"command code: 0=dump settings, 1=set debug level, 2=set slot-selection policy, 3=set beacon interval")
	commandCmd.Flags().IntVar(&commandVal, "val", 0, "command value")
}
