package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List job definitions",
	Run: func(cmd *cobra.Command, args []string) {
		client := NewJobClient(viper.GetString("url"), viper.GetString("key"))

		resp, err := client.GetJobs()
		if err != nil {
			printAPIErr(cmd, "Error", err)
			os.Exit(1)
		}

		if len(resp.Jobs) == 0 {
			cmd.Println("No jobs found.")
			return
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tLIFECYCLE\tWORKERS")
		for _, j := range resp.Jobs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", j.ID, j.Name, j.Lifecycle, j.Workers)
		}
		w.Flush()
	},
}

var executionsCmd = &cobra.Command{
	Use:   "executions [job_id]",
	Short: "List executions for a job",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		jobID := args[0]
		client := NewJobClient(viper.GetString("url"), viper.GetString("key"))

		resp, err := client.GetExecutions(jobID)
		if err != nil {
			printAPIErr(cmd, "Error", err)
			os.Exit(1)
		}

		if len(resp.Executions) == 0 {
			cmd.Println("No executions found.")
			return
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "ID\tSTATUS\tFAILURE REASON")
		for _, e := range resp.Executions {
			fmt.Fprintf(w, "%s\t%s\t%s\n", e.ID, e.Status, e.FailureReason)
		}
		w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(jobsCmd)
	rootCmd.AddCommand(executionsCmd)
}
