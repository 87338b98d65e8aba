// Package cmd wires the llm-fuzz command line interface.
package cmd

import "github.com/spf13/cobra"

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "llm-fuzz",
		Short:         "Agentic fuzz testing for the Tact compiler",
		Long:          "llm-fuzz keeps a pool of autonomous fuzzing sessions alive, each driving a tool-calling conversation that compiles Tact snippets, hunts for compiler defects, and records confirmed findings.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.AddCommand(
		newRunCmd(),
		newVersionCmd(),
	)

	return rootCmd
}
