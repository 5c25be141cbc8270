package cmd

import (
	"fmt"
	"time"

	"jobcore/pkg/api"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var statusCmd = &cobra.Command{
	Use:   "status [execution_id]",
	Short: "Get status of an execution",
	Long:  `Retrieve detailed status information for a job execution, including its current state, failure reason, and timestamps.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		executionID := args[0]

		client := NewJobClient(viper.GetString("url"), viper.GetString("key"))

		execution, err := client.GetExecution(executionID)
		if err != nil {
			printAPIErr(cmd, "Status failed", err)
			return
		}

		printStatus(cmd, *execution)
	},
}

func printStatus(cmd *cobra.Command, execution api.ExecutionResponse) {
	icon := statusIcon(execution.Status)
	cmd.Printf("%s %sExecution Details%s\n", icon, colorBold, colorReset)
	cmd.Println("──────────────────────────────")

	cmd.Printf("%sID:%s            %s\n", colorDim, colorReset, execution.ID)
	cmd.Printf("%sJob ID:%s        %s\n", colorDim, colorReset, execution.JobID)
	cmd.Printf("%sStatus:%s        %s\n", colorDim, colorReset, colorizeStatus(execution.Status))

	if execution.FailureReason != "" {
		cmd.Printf("%sFailure:%s       %s%s%s\n", colorDim, colorReset, colorRed, execution.FailureReason, colorReset)
	}

	if execution.HasErrors != "" {
		cmd.Printf("%sHas Errors:%s    %s\n", colorDim, colorReset, execution.HasErrors)
	}

	cmd.Printf("%sRecovered:%s     %t\n", colorDim, colorReset, execution.RecoverExecution)

	cmd.Printf("%sCreated:%s       %s\n", colorDim, colorReset, formatTimeWithRelative(&execution.CreatedAt))
	cmd.Printf("%sUpdated:%s       %s\n", colorDim, colorReset, formatTimeWithRelative(&execution.UpdatedAt))
}

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorDim    = "\033[2m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
)

func statusIcon(status string) string {
	switch status {
	case "completed":
		return colorGreen + "✓" + colorReset
	case "failed", "rejected":
		return colorRed + "✗" + colorReset
	case "running", "scheduling", "initializing", "failing":
		return colorYellow + "⏳" + colorReset
	case "pending":
		return colorCyan + "◯" + colorReset
	case "paused", "moderator_paused":
		return colorYellow + "⏸" + colorReset
	default:
		return "•"
	}
}

func colorizeStatus(status string) string {
	icon := statusIcon(status)
	switch status {
	case "completed":
		return icon + " " + colorGreen + status + colorReset
	case "failed", "rejected":
		return icon + " " + colorRed + status + colorReset
	case "running", "scheduling", "initializing", "failing":
		return icon + " " + colorYellow + status + colorReset
	case "pending":
		return icon + " " + colorCyan + status + colorReset
	default:
		return icon + " " + status
	}
}

func formatTimeWithRelative(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	relative := relativeTime(*t)
	return fmt.Sprintf("%s %s(%s ago)%s", t.Format("Mon, 02 Jan 2006 15:04:05 MST"), colorDim, relative, colorReset)
}

func relativeTime(t time.Time) string {
	duration := time.Since(t)

	if duration < time.Minute {
		return fmt.Sprintf("%ds", int(duration.Seconds()))
	} else if duration < time.Hour {
		return fmt.Sprintf("%dm", int(duration.Minutes()))
	} else if duration < 24*time.Hour {
		return fmt.Sprintf("%dh", int(duration.Hours()))
	} else {
		days := int(duration.Hours() / 24)
		if days == 1 {
			return "1 day"
		}
		return fmt.Sprintf("%d days", days)
	}
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
