package cmd

import (
	"jobcore/pkg/api"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var updateJobCmd = &cobra.Command{
	Use:   "update-job [job_id]",
	Short: "Patch a job definition's fields without re-submitting it",
	Long: `Patch the fields of an already-persisted job. Only flags you set are
changed; the rest of the job keeps its stored value.

Example:
  jobctl update-job <job_id> --workers 8
  jobctl update-job <job_id> --lifecycle persistent`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		jobID := args[0]
		req, ok := buildUpdateJobRequest(cmd)
		if !ok {
			return
		}

		client := NewJobClient(viper.GetString("url"), viper.GetString("key"))

		result, err := client.UpdateJob(jobID, req)
		if err != nil {
			printAPIErr(cmd, "Update failed", err)
			return
		}

		cmd.Printf("✓ Job %s updated\n", result.ID)
	},
}

var updateExecutionCmd = &cobra.Command{
	Use:   "update-execution [execution_id]",
	Short: "Patch an execution's metadata without changing its status",
	Long: `Patch non-status fields of a running or terminated execution, such as
its failure reason or resolved asset map. Status transitions only happen
through "jobctl notify".

Example:
  jobctl update-execution <execution_id> --failure-reason "disk full"`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		executionID := args[0]
		req, ok := buildUpdateExecutionRequest(cmd)
		if !ok {
			return
		}

		client := NewJobClient(viper.GetString("url"), viper.GetString("key"))

		if err := client.UpdateExecution(executionID, req); err != nil {
			printAPIErr(cmd, "Update failed", err)
			return
		}

		cmd.Printf("✓ Execution %s updated\n", executionID)
	},
}

func buildUpdateJobRequest(cmd *cobra.Command) (api.UpdateJobRequest, bool) {
	flags := cmd.Flags()
	var req api.UpdateJobRequest

	if flags.Changed("name") {
		name, _ := flags.GetString("name")
		req.Name = &name
	}
	if flags.Changed("workers") {
		workers, _ := flags.GetInt("workers")
		req.Workers = &workers
	}
	if flags.Changed("lifecycle") {
		lifecycle, _ := flags.GetString("lifecycle")
		req.Lifecycle = &lifecycle
	}
	if flags.Changed("assets") {
		assets, _ := flags.GetStringSlice("assets")
		req.Assets = assets
	}

	return req, true
}

func buildUpdateExecutionRequest(cmd *cobra.Command) (api.UpdateExecutionRequest, bool) {
	flags := cmd.Flags()
	var req api.UpdateExecutionRequest

	if flags.Changed("failure-reason") {
		reason, _ := flags.GetString("failure-reason")
		req.FailureReason = &reason
	}
	if flags.Changed("has-errors") {
		hasErrors, _ := flags.GetString("has-errors")
		req.HasErrors = &hasErrors
	}
	if flags.Changed("recover") {
		recover, _ := flags.GetBool("recover")
		req.RecoverExecution = &recover
	}

	return req, true
}

func init() {
	jobFlags := updateJobCmd.Flags()
	jobFlags.StringP("name", "n", "", "New name for the job")
	jobFlags.IntP("workers", "w", 0, "New worker count for the job")
	jobFlags.String("lifecycle", "", "New lifecycle: 'once' or 'persistent'")
	jobFlags.StringSlice("assets", nil, "Replacement asset reference list")

	exFlags := updateExecutionCmd.Flags()
	exFlags.String("failure-reason", "", "Failure detail to record on the execution")
	exFlags.String("has-errors", "", "Error-aggregation state to record on the execution")
	exFlags.Bool("recover", false, "Mark the execution as recoverable on restart")

	rootCmd.AddCommand(updateJobCmd)
	rootCmd.AddCommand(updateExecutionCmd)
}
