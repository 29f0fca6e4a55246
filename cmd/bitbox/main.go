package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"

	rootCmd = &cobra.Command{
		Use:   "bitbox",
		Short: "CLI for the Digital Bitbox wallet agent",
		Long: "This CLI lets you drive a plugged Digital Bitbox device and the " +
			"shared Copay wallet it takes part in",
		Version: formatVersion(),
	}
)

func init() {
	rootCmd.AddCommand(deviceCmd, walletCmd, proposalCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
