package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var notifyCmd = &cobra.Command{
	Use:   "notify [execution_id] [pause|resume|stop|moderator_paused]",
	Short: "Send a lifecycle command to a running execution",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		executionID, command := args[0], args[1]

		client := NewJobClient(viper.GetString("url"), viper.GetString("key"))

		result, err := client.Notify(executionID, command)
		if err != nil {
			printAPIErr(cmd, "Notify failed", err)
			return
		}

		cmd.Printf("✓ Execution %s is now %s\n", executionID, result.Status)
	},
}

var restartCmd = &cobra.Command{
	Use:   "restart [execution_id]",
	Short: "Re-enqueue a terminated execution",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		executionID := args[0]

		client := NewJobClient(viper.GetString("url"), viper.GetString("key"))

		result, err := client.RestartExecution(executionID)
		if err != nil {
			printAPIErr(cmd, "Restart failed", err)
			return
		}

		cmd.Printf("✓ Execution %s is now %s\n", executionID, result.Status)
	},
}

func init() {
	rootCmd.AddCommand(notifyCmd)
	rootCmd.AddCommand(restartCmd)
}
