// Package main is miniosctl, the demo/CLI driver that boots init_proc and
// optionally spawns a named ELF binary with argv against it — the
// hosted-simulation equivalent of running the kernel on hardware.
package main

import (
	"fmt"
	"os"

	"github.com/minios-project/minios/cfg"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	bindErr error
)

var rootCmd = &cobra.Command{
	Use:   "miniosctl",
	Short: "Boot the simulated kernel and run a program against it",
	Long: `miniosctl boots init_proc on top of the process/IPC core's simulated
filesystem, virtual memory, and console, then drives it the way a shell
would: spawn a binary and report its pid and entry point.`,
}

// Execute runs the root command, exiting the process with status 1 on
// failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config-file", "", "path to a YAML config file")
	bindErr = cfg.BindFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(bootCmd)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		viper.SetConfigType("yaml")
		_ = viper.ReadInConfig() // absent config file just falls back to flags/defaults
	}
}

func loadConfig() (cfg.Config, error) {
	if bindErr != nil {
		return cfg.Config{}, bindErr
	}
	c, err := cfg.Decode(viper.GetViper())
	if err != nil {
		return cfg.Config{}, err
	}
	if err := cfg.Validate(c); err != nil {
		return cfg.Config{}, err
	}
	return c, nil
}

func main() {
	Execute()
}
