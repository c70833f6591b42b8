package main

import (
	"fmt"

	"github.com/spf13/cobra"

	goi "github.com/Jamplesmise/prompt-tool-sub006"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of goi",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("goi version %s\n", goi.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
