package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/killallgit/vivu/pkg/config"
	"github.com/killallgit/vivu/pkg/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "vivu",
	Short: "Chat with local models from the terminal",
	Long: `vivu streams replies from a chat backend or a local Ollama server,
showing model reasoning while it happens and typing the answer out as it arrives.

Run without a subcommand to start chatting.`,
	Args:          cobra.ArbitraryArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runChat,
}

func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is .vivu/settings.yaml)")

	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level")
	viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))

	rootCmd.PersistentFlags().String("transport", "http", "stream transport: http (chat backend) or ollama (direct)")
	viper.BindPFlag("stream.transport", rootCmd.PersistentFlags().Lookup("transport"))

	rootCmd.PersistentFlags().StringP("model", "m", "", "model to chat with")
	viper.BindPFlag("ollama.model", rootCmd.PersistentFlags().Lookup("model"))

	addChatFlags(rootCmd)
}

func initConfig() {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		return
	}

	logger.WithComponent("cmd").Debug("Configuration loaded",
		"config_file", config.GetConfigFileUsed(),
		"transport", cfg.Stream.Transport,
		"model", cfg.DefaultModel())
}
