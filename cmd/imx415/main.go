// Command imx415 drives a Sony IMX415 image sensor over I2C. "imx415 serve"
// runs the control daemon; the other subcommands are one-shot tools.
// Run with --mock to use a simulated sensor (no I2C device required).
package main

import (
	"os"
)

func main() {
	if err := newRootCommand(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}
