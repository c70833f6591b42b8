package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Jamplesmise/prompt-tool-sub006/internal/cli"
)

// runCmd starts an interactive goal session in the terminal.
var runCmd = &cobra.Command{
	Use:   "run [goal]",
	Short: "Run an interactive goal session",
	Long: `Starts an interactive session. Type a goal or a natural language
command; the engine plans, executes, and pauses at checkpoints for your
approval. Without a TTY, --goal is required and checkpoints are
auto-approved.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		goal, _ := cmd.Flags().GetString("goal")
		if goal == "" && len(args) > 0 {
			goal = args[0]
		}
		sessionID, _ := cmd.Flags().GetString("session")
		mode, _ := cmd.Flags().GetString("mode")
		yes, _ := cmd.Flags().GetBool("yes")
		plain, _ := cmd.Flags().GetBool("plain")

		app, err := buildApp(cmd)
		if err != nil {
			fmt.Printf("Error initializing goi: %v\n", err)
			os.Exit(1)
		}
		defer app.Close()

		err = cli.RunSession(app, cli.RunOptions{
			SessionID:   sessionID,
			Mode:        mode,
			Goal:        goal,
			AutoApprove: yes,
			Plain:       plain,
		})
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("goal", "", "Goal to start with")
	runCmd.Flags().StringP("session", "s", "", "Session ID to resume or create")
	runCmd.Flags().StringP("mode", "m", "", "Interaction mode: manual, assisted, auto")
	runCmd.Flags().BoolP("yes", "y", false, "Auto-approve every checkpoint")
	runCmd.Flags().Bool("plain", false, "Disable banner and markdown rendering")

	rootCmd.Run = runCmd.Run
	rootCmd.Args = runCmd.Args
}
