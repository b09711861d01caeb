// tagsim inspects the provenance tag engine from the command line: it prints
// fee-curve sweeps and runs small transfer simulations showing how tags decay
// and mix over a chain of spends.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bothonetwork/go-clustertax/config"
)

var (
	cfgPath  string
	logLevel string
	output   string

	fs afero.Fs = afero.NewOsFs()
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "tagsim",
		Short:         "provenance tag engine inspector",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to a config file (defaults apply when empty)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "zap log level")
	cmd.PersistentFlags().StringVarP(&output, "output", "o", "", "write output to a file instead of stdout")
	cmd.AddCommand(curveCmd())
	cmd.AddCommand(simulateCmd())
	return cmd
}

// loadConfig reads the config file (or defaults) and builds the logger.
func loadConfig() (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return config.Config{}, nil, err
	}
	level, err := zap.ParseAtomicLevel(logLevel)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("parse log level: %w", err)
	}
	zcfg := zap.NewDevelopmentConfig()
	zcfg.Level = level
	logger, err := zcfg.Build()
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("build logger: %w", err)
	}
	return cfg, logger, nil
}

// openOutput returns the sink for report text: a file when --output is set,
// stdout otherwise, plus a close function.
func openOutput() (io.Writer, func(), error) {
	if output == "" {
		return os.Stdout, func() {}, nil
	}
	f, err := fs.Create(output)
	if err != nil {
		return nil, nil, fmt.Errorf("create output: %w", err)
	}
	return f, func() { f.Close() }, nil
}
