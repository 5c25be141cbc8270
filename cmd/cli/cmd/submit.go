package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Create and immediately run a job",
	Long: `Create a new job definition and immediately trigger its first execution.

This is a convenience command that combines 'create' and 'run' into a single step.

Example:
  jobctl submit --name "my-job" --pipeline pipeline.json --workers 4`,
	Run: func(cmd *cobra.Command, args []string) {
		req, ok := buildSubmitRequest(cmd)
		if !ok {
			return
		}

		client := NewJobClient(viper.GetString("url"), viper.GetString("key"))

		result, err := client.SubmitJob(req)
		if err != nil {
			printAPIErr(cmd, "Submit failed", err)
			return
		}

		cmd.Printf("✓ Job submitted!\nJob ID: %s\n", result.JobID)
	},
}

func init() {
	flags := submitCmd.Flags()
	flags.StringP("name", "n", "", "Name of the job (required)")
	flags.StringP("pipeline", "p", "", "Path to a JSON file describing the pipeline (required)")
	flags.IntP("workers", "w", 1, "Number of worker nodes to allocate")
	flags.String("lifecycle", "once", "Job lifecycle: 'once' or 'persistent'")
	flags.StringSlice("assets", nil, "Asset references to resolve before running")

	rootCmd.AddCommand(submitCmd)
}
