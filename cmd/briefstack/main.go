package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "briefstack",
		Short: "Ingest Substack articles, summarize them, and email a daily digest",
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")

	root.AddCommand(runCmd())
	root.AddCommand(summarizeCmd())
	root.AddCommand(sendCmd())
	root.AddCommand(logsCmd())
	root.AddCommand(statsCmd())

	return root
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Execute one full pipeline run (fetch, summarize, send, log)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline()
		},
	}
}

func summarizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summarize",
		Short: "Summarize pending articles without fetching or sending",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSummarize()
		},
	}
}

func sendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send",
		Short: "Build and send today's digest from already-stored summaries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSend()
		},
	}
}

func logsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show recent execution logs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogs(limit)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "max log rows to show")
	return cmd
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show article and summary counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats()
		},
	}
}
