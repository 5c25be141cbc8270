package cmd

import (
	"encoding/json"
	"os"

	"jobcore/pkg/api"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new job definition",
	Long: `Create a new job definition (blueprint) that can be run later.

Example:
  jobctl create --name "my-job" --pipeline pipeline.json --workers 4
  jobctl create --name "persistent-job" --pipeline pipeline.json --lifecycle persistent`,
	Run: func(cmd *cobra.Command, args []string) {
		req, ok := buildSubmitRequest(cmd)
		if !ok {
			return
		}

		client := NewJobClient(viper.GetString("url"), viper.GetString("key"))

		result, err := client.CreateJob(req)
		if err != nil {
			printAPIErr(cmd, "Error", err)
			return
		}

		cmd.Printf("✓ Job created!\nJob ID: %s\n", result.JobID)
	},
}

func buildSubmitRequest(cmd *cobra.Command) (api.SubmitJobRequest, bool) {
	flags := cmd.Flags()
	name, _ := flags.GetString("name")
	pipelinePath, _ := flags.GetString("pipeline")
	workers, _ := flags.GetInt("workers")
	lifecycle, _ := flags.GetString("lifecycle")
	assets, _ := flags.GetStringSlice("assets")

	if name == "" {
		cmd.Println("Error: --name is required")
		return api.SubmitJobRequest{}, false
	}

	if pipelinePath == "" {
		cmd.Println("Error: --pipeline is required")
		return api.SubmitJobRequest{}, false
	}

	raw, err := os.ReadFile(pipelinePath)
	if err != nil {
		cmd.Printf("Error: failed to read pipeline file: %v\n", err)
		return api.SubmitJobRequest{}, false
	}

	var pipeline json.RawMessage
	if err := json.Unmarshal(raw, &pipeline); err != nil {
		cmd.Printf("Error: pipeline file is not valid JSON: %v\n", err)
		return api.SubmitJobRequest{}, false
	}

	return api.SubmitJobRequest{
		Name:      name,
		Pipeline:  pipeline,
		Workers:   workers,
		Lifecycle: lifecycle,
		Assets:    assets,
	}, true
}

func printAPIErr(cmd *cobra.Command, prefix string, err error) {
	if apiErr, ok := err.(*APIError); ok {
		cmd.Printf("%s (%d): %s\n", prefix, apiErr.StatusCode, apiErr.Message)
		return
	}
	cmd.Printf("%s: %v\n", prefix, err)
}

func init() {
	flags := createCmd.Flags()
	flags.StringP("name", "n", "", "Name of the job (required)")
	flags.StringP("pipeline", "p", "", "Path to a JSON file describing the pipeline (required)")
	flags.IntP("workers", "w", 1, "Number of worker nodes to allocate")
	flags.String("lifecycle", "once", "Job lifecycle: 'once' or 'persistent'")
	flags.StringSlice("assets", nil, "Asset references to resolve before running")

	rootCmd.AddCommand(createCmd)
}
