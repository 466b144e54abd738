package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

type rootCmdConfig struct {
	logger
	configInput string
	ctx         context.Context
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := cliParser(ctx).Execute()
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func cliParser(ctx context.Context) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "arboretum",
		Short: "arboretum is a tool to grow random forests",
		Long:  `A tool to grow random forests for regression and classification from your data, test them, and use them to make predictions`,
	}
	config := &rootCmdConfig{ctx: ctx}
	rootCmd.PersistentFlags().BoolVarP((*bool)(&config.logger), "verbose", "v", false, "")
	rootCmd.PersistentFlags().StringVar(&(config.configInput), "config", "", "path to a YML file with train and predict sections of options; flags set explicitly take precedence")
	rootCmd.AddCommand(versionCmd(), trainCmd(config), predictCmd(config), testCmd(config), setCmd(config))
	return rootCmd
}

func (rcc *rootCmdConfig) Context() context.Context {
	return rcc.ctx
}
