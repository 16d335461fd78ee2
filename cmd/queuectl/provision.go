package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"payhook/internal/queue"
)

type provisionOptions struct {
	queueName         string
	deadLetterName    string
	maxReceiveCount   int
	retentionSeconds  int
	visibilityTimeout int
}

func newProvisionCmd(a *app) *cobra.Command {
	opts := provisionOptions{}
	cmd := &cobra.Command{
		Use:   "provision",
		Short: "Create the webhook queue and its dead-letter queue with a redrive policy",
		Long: `Creates (or adopts) the dead-letter queue, creates the webhook queue and
attaches a RedrivePolicy so messages move to the DLQ after --max-receive-count
failed receives. Safe to re-run: the policy is re-applied every time.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runProvision(cmd, a, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.queueName, "queue-name", queue.DefaultQueueName, "Webhook queue name")
	f.StringVar(&opts.deadLetterName, "dlq-name", queue.DefaultDeadLetterName, "Dead-letter queue name")
	f.IntVar(&opts.maxReceiveCount, "max-receive-count", queue.DefaultMaxReceiveCount, "Receives before a message moves to the DLQ")
	f.IntVar(&opts.retentionSeconds, "dlq-retention", queue.DefaultDLQRetentionPeriod, "DLQ message retention in seconds")
	f.IntVar(&opts.visibilityTimeout, "visibility-timeout", 0, "Webhook queue visibility timeout in seconds (0 keeps the SQS default)")
	return cmd
}

func runProvision(cmd *cobra.Command, a *app, opts provisionOptions) error {
	if !a.confirm(fmt.Sprintf("provision %s -> %s", opts.queueName, opts.deadLetterName)) {
		fmt.Fprintln(a.errOut, "Aborted. No changes were made.")
		return nil
	}

	p, err := queue.Provision(cmd.Context(), a.sqs, queue.ProvisionSpec{
		QueueName:          opts.queueName,
		DeadLetterName:     opts.deadLetterName,
		MaxReceiveCount:    opts.maxReceiveCount,
		DLQRetentionPeriod: opts.retentionSeconds,
		VisibilityTimeout:  opts.visibilityTimeout,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Queues provisioned")
	fmt.Fprintf(out, "  WEBHOOK_QUEUE_URL=%s\n", p.QueueURL)
	fmt.Fprintf(out, "  WEBHOOK_DLQ_URL=%s\n", p.DeadLetterURL)
	fmt.Fprintf(out, "  Queue ARN:         %s\n", p.QueueARN)
	fmt.Fprintf(out, "  DLQ ARN:           %s\n", p.DeadLetterARN)
	fmt.Fprintf(out, "  maxReceiveCount:   %d\n", p.Policy.MaxReceiveCount)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Map the consumer's event source with FunctionResponseTypes=[\"ReportBatchItemFailures\"]")
	fmt.Fprintln(out, "so only failed messages are retried.")
	return nil
}
