// Command dot11demo is the ambient CLI/demo surface around the 802.11~ MAC
// core. It is not one of the three CORE subsystems (sender, receiver,
// synchronized clock) — it is the external collaborator that exercises
// them, grounded in firestige-Otus's cobra-based cmd/ package and the
// original source's RoundTripTimeTest.java self-test harness.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
