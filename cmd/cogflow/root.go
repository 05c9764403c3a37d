package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aretw0/cogflow/internal/cli"
)

var rootCmd = &cobra.Command{
	Use:   "cogflow",
	Short: "cogflow runs structured-generation programs against a language model",
	Long: `cogflow compiles prompt schemas into state graphs and fills them token by
token with a language model, chaining prompts through flows and tool calls.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("program", "p", ".", "Program file (YAML) or loam directory")
	rootCmd.PersistentFlags().StringP("config", "c", "", "Configuration file (default cogflow.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().Bool("debug", false, "Log prompt and call events")
}

// commonOptions reads the persistent flags. A positional argument, when the
// command takes one, names the program unless --program was given.
func commonOptions(cmd *cobra.Command, args []string) cli.Options {
	program, _ := cmd.Flags().GetString("program")
	if !cmd.Flags().Changed("program") && len(args) > 0 {
		program = args[0]
	}
	configPath, _ := cmd.Flags().GetString("config")
	level, _ := cmd.Flags().GetString("log-level")
	debug, _ := cmd.Flags().GetBool("debug")
	return cli.Options{ProgramPath: program, ConfigPath: configPath, LogLevel: level, Debug: debug}
}
