package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mxdubois/cs325-802-11/mac"
)

// sendCmd demonstrates the upper-layer send/recv/status contract end to end
// over a simulated two-node medium: node A sends a single message, node B
// receives and prints it, and node A's final status is reported.
var sendMessage string

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send one message from nodeA to nodeB over a simulated medium and print the result",
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
		radioA := mac.NewSimRadio(medium, int64(scn.NodeA))
		radioB := mac.NewSimRadio(medium, int64(scn.NodeB))
		radioA.SetLossRate(scn.LinkLossRate)
		radioB.SetLossRate(scn.LinkLossRate)

		cfg := mac.LinkConfig{Clock: mac.ClockConfig{BeaconInterval: scn.BeaconInterval}}
		linkA := mac.NewLink(scn.NodeA, radioA, cfg, log.Named("nodeA"))
		linkB := mac.NewLink(scn.NodeB, radioB, cfg, log.Named("nodeB"))

		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
		defer cancel()
		linkA.Start(ctx)
		linkB.Start(ctx)

		payload := []byte(sendMessage)
		if queued := linkA.Send(scn.NodeB, payload, len(payload)); queued != len(payload) {
			return fmt.Errorf("queued %d of %d bytes, status=%s", queued, len(payload), linkA.Status())
		}

		buf := make([]byte, 2048)
		t := &mac.Transmission{Buf: buf}
		if n := linkB.Recv(ctx, t); n == 0 {
			return fmt.Errorf("nodeB did not receive a message before timeout")
		} else {
			fmt.Printf("nodeB received %q from %#04x\n", t.Buf, t.Src)
		}

		deadline := time.After(2 * time.Second)
		for linkA.Status() != mac.StatusTXDelivered && linkA.Status() != mac.StatusTXFailed {
			select {
			case <-deadline:
				fmt.Println("timed out waiting for final status")
				return nil
			case <-time.After(2 * time.Millisecond):
			}
		}
		fmt.Printf("nodeA final status: %s\n", linkA.Status())
		return nil
	},
}

func init() {
	sendCmd.Flags().StringVarP(&sendMessage, "message", "m", "hello", "message to send from nodeA to nodeB")
}
