package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/codeready-toolchain/kitt/internal/apiclient"
)

// Exit codes per the CLI's contract: 0 success, 1 user error, 2 remote
// error, 3 timeout.
const (
	exitOK          = 0
	exitUserError   = 1
	exitRemoteError = 2
	exitTimeout     = 3
)

var (
	cfgFile    string
	serverURL  string
	adminToken string
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:   "kittctl",
	Short: "CLI for the KITT benchmarking orchestrator",
	Long: `kittctl drives a KITT orchestrator from the command line: list
registered agents, launch benchmark campaigns from a config file, and
check or cancel a campaign's progress.`,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default $HOME/.kittctl/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "kitt-server URL")
	rootCmd.PersistentFlags().StringVar(&adminToken, "token", "", "admin bearer token")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "emit JSON instead of tables")

	_ = viper.BindPFlag("server", rootCmd.PersistentFlags().Lookup("server"))
	_ = viper.BindPFlag("token", rootCmd.PersistentFlags().Lookup("token"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))

	rootCmd.AddCommand(agentsCmd, campaignCmd)
}

func initConfig() {
	_ = godotenv.Load(".env")

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home + "/.kittctl")
			viper.SetConfigType("yaml")
			viper.SetConfigName("config")
		}
	}

	viper.SetEnvPrefix("KITT")
	viper.AutomaticEnv()
	viper.SetDefault("server", "http://localhost:8080")

	_ = viper.ReadInConfig()
}

func client() *apiclient.Client {
	return apiclient.New(viper.GetString("server"), viper.GetString("token"))
}

// exitFor maps an error returned from internal/apiclient to the CLI's exit
// code contract.
func exitFor(err error) int {
	if err == nil {
		return exitOK
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return exitTimeout
	}
	var remoteErr *apiclient.RemoteError
	if errors.As(err, &remoteErr) {
		return exitRemoteError
	}
	return exitRemoteError
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(exitFor(err))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		// cobra already printed the usage/error; arg-parsing failures are
		// always user error.
		os.Exit(exitUserError)
	}
}
