package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var runCmd = &cobra.Command{
	Use:   "run [job_id]",
	Short: "Trigger a new execution for an existing job",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		jobID := args[0]

		client := NewJobClient(viper.GetString("url"), viper.GetString("key"))

		result, err := client.StartJob(jobID)
		if err != nil {
			printAPIErr(cmd, "Run failed", err)
			return
		}

		cmd.Printf("🚀 Execution started!\nJob ID: %s\n", result.JobID)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
