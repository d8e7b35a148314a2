package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "fibril",
	Short: "FIBRIL voice allocation engine",
	Long:  `Cascading voice allocator: 8 harmonic ranks contend for 48 voices under a sustain-pedal protection regime.`,
}

func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}
