package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"payhook/internal/queue"
)

func newDLQCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dlq",
		Short: "Inspect, export and redrive dead-lettered webhook messages",
	}
	cmd.PersistentFlags().String("dlq-url", os.Getenv("WEBHOOK_DLQ_URL"), "Dead-letter queue URL")

	cmd.AddCommand(newDLQInspectCmd(a))
	cmd.AddCommand(newDLQExportCmd(a))
	cmd.AddCommand(newDLQRedriveCmd(a))
	return cmd
}

func dlqURL(cmd *cobra.Command) (string, error) {
	url, err := cmd.Flags().GetString("dlq-url")
	if err != nil {
		return "", err
	}
	if url == "" {
		return "", fmt.Errorf("--dlq-url (or WEBHOOK_DLQ_URL) is required")
	}
	return url, nil
}

func newDLQInspectCmd(a *app) *cobra.Command {
	var (
		limit  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Peek at dead-lettered messages without removing them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			url, err := dlqURL(cmd)
			if err != nil {
				return err
			}
			letters, err := queue.ReadDeadLetters(cmd.Context(), a.sqs, url, queue.ReadOptions{Max: limit})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(letters)
			}
			if len(letters) == 0 {
				fmt.Fprintln(out, "DLQ is empty")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "MESSAGE ID\tRECEIVES\tSENT\tTRACE ID\tDECODES")
			for _, l := range letters {
				sent := "-"
				if !l.SentAt.IsZero() {
					sent = l.SentAt.Format(time.RFC3339)
				}
				fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%t\n", l.MessageID, l.ReceiveCount, sent, l.TraceID, l.Decodes)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "max", "n", 10, "Maximum messages to show")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newDLQExportCmd(a *app) *cobra.Command {
	var (
		path  string
		limit int
		drain bool
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write dead-lettered messages to a zstd-compressed JSON lines file",
		Long: `Reads up to --max messages from the DLQ and writes them to --out as
zstd-compressed JSON lines. With --drain the exported messages are deleted
from the DLQ once the file has been written.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			url, err := dlqURL(cmd)
			if err != nil {
				return err
			}
			if drain && !a.confirm("drain " + url) {
				fmt.Fprintln(a.errOut, "Aborted. No changes were made.")
				return nil
			}

			letters, err := queue.ReadDeadLetters(cmd.Context(), a.sqs, url, queue.ReadOptions{Max: limit, Drain: drain})
			if err != nil {
				return err
			}

			f, err := os.Create(path)
			if err != nil {
				return fmt.Errorf("creating export file: %w", err)
			}
			if err := queue.ExportDeadLetters(f, letters); err != nil {
				_ = f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("closing export file: %w", err)
			}

			if drain {
				if err := queue.DeleteDeadLetters(cmd.Context(), a.sqs, url, letters); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d messages to %s (drained: %t)\n", len(letters), path, drain)
			return nil
		},
	}
	cmd.Flags().StringVarP(&path, "out", "o", "dlq-export.jsonl.zst", "Output file")
	cmd.Flags().IntVarP(&limit, "max", "n", 100, "Maximum messages to export")
	cmd.Flags().BoolVar(&drain, "drain", false, "Delete exported messages from the DLQ")
	return cmd
}

func newDLQRedriveCmd(a *app) *cobra.Command {
	var (
		dest string
		rate int32
	)
	cmd := &cobra.Command{
		Use:   "redrive",
		Short: "Move dead-lettered messages back to the webhook queue",
		Long: `Starts an SQS message move task from the DLQ. Without --dest messages
return to the queue they were dead-lettered from.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			url, err := dlqURL(cmd)
			if err != nil {
				return err
			}
			if !a.confirm("redrive " + url) {
				fmt.Fprintln(a.errOut, "Aborted. No changes were made.")
				return nil
			}
			handle, err := queue.StartRedrive(cmd.Context(), a.sqs, url, dest, rate)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Redrive started (task handle %s)\n", handle)
			return nil
		},
	}
	cmd.Flags().StringVar(&dest, "dest", "", "Destination queue URL (default: the original source queue)")
	cmd.Flags().Int32Var(&rate, "rate", 0, "Maximum messages per second (0 lets SQS decide)")
	return cmd
}
