package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "jobctl",
	Short: "Jobctl is a command line tool for interacting with the jobcore platform",
	Long: `jobctl is the command-line interface for the jobcore distributed job execution platform.

jobcore schedules pipelines made of a slicer node and a pool of worker nodes. The
architecture follows a clear control plane / data plane separation:

  - Control Plane: Stateless HTTP API for job definitions and execution lifecycle
  - Data Plane: Slicer/worker nodes allocated onto the cluster runtime and driven
    over the event bus

Common workflows:

  Create a job definition:
    jobctl create --name "my-job" --pipeline pipeline.json --workers 4

  Start an execution for an existing job:
    jobctl run <job-id>

  Create and run a job in one step:
    jobctl submit --name "quick-job" --pipeline pipeline.json

  Check execution status:
    jobctl status <execution-id>

  Pause, resume, stop, or restart an execution:
    jobctl notify <execution-id> pause

Configuration:
  Set the API endpoint and credentials via environment variables or a config file:
    JOBCORE_URL    API endpoint (default: http://localhost:6161)
    JOBCORE_KEY    Shared API key for authentication`,
}

func Execute() error {
	return rootCmd.Execute()
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		// Search config in home directory with name ".jobctl"
		viper.AddConfigPath(home)
		viper.SetConfigName(".jobctl")
		viper.SetConfigType("yaml")
	}

	// Read environment variables that match "JOBCORE_VARNAME"
	viper.SetEnvPrefix("JOBCORE")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Println("Using config file:", viper.ConfigFileUsed())
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.jobctl.yaml)")

	rootCmd.PersistentFlags().String("url", "http://localhost:6161", "jobcore Controller URL")
	viper.BindPFlag("url", rootCmd.PersistentFlags().Lookup("url"))

	rootCmd.PersistentFlags().StringP("key", "k", "", "API key for authentication")
	viper.BindPFlag("key", rootCmd.PersistentFlags().Lookup("key"))
}
