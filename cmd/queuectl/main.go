// Package main implements queuectl, the operator tool for the webhook queue
// pair.
//
// Usage:
//
//	queuectl provision --env=dev
//	queuectl dlq inspect --dlq-url=$WEBHOOK_DLQ_URL --max=20
//	queuectl dlq export --dlq-url=$WEBHOOK_DLQ_URL --out=dlq.jsonl.zst --drain
//	queuectl dlq redrive --dlq-url=$WEBHOOK_DLQ_URL --rate=10
//
// Every command verifies the active AWS identity first. Commands that change
// state against prod ask for an explicit "yes" unless --yes is given.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/spf13/cobra"

	"payhook/internal/config"
	"payhook/internal/logging"
	"payhook/internal/queue"
)

var validEnvironments = map[string]bool{
	"local":   true,
	"dev":     true,
	"staging": true,
	"prod":    true,
}

// identity is the caller resolved through STS.
type identity struct {
	AccountID string
	ARN       string
}

// app carries flags and injectable collaborators across subcommands.
type app struct {
	env         string
	profile     string
	region      string
	endpointURL string
	assumeYes   bool

	in     io.Reader
	out    io.Writer
	errOut io.Writer
	logger *slog.Logger

	loadAWS  func(ctx context.Context, a *app) (aws.Config, error)
	identify func(ctx context.Context, cfg aws.Config) (identity, error)
	newSQS   func(cfg aws.Config) queue.SQSAdmin

	awsCfg aws.Config
	caller identity
	sqs    queue.SQSAdmin
}

func newApp() *app {
	return &app{
		in:       os.Stdin,
		out:      os.Stdout,
		errOut:   os.Stderr,
		logger:   logging.NewWithWriter(os.Stderr, "info"),
		loadAWS:  loadAWSConfig,
		identify: callerIdentity,
		newSQS: func(cfg aws.Config) queue.SQSAdmin {
			return sqs.NewFromConfig(cfg)
		},
	}
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd(newApp()).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "queuectl",
		Short:         "Provision and operate the webhook queue and its dead-letter queue",
		Version:       config.NewBuildInfo().Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.initSession(cmd.Context())
		},
	}
	root.SetIn(a.in)
	root.SetOut(a.out)
	root.SetErr(a.errOut)

	flags := root.PersistentFlags()
	flags.StringVar(&a.env, "env", "dev", "Target environment (local/dev/staging/prod)")
	flags.StringVar(&a.profile, "profile", "", "AWS CLI profile (default: uses default credential chain)")
	flags.StringVar(&a.region, "region", envOr("AWS_REGION", "us-east-1"), "AWS region")
	flags.StringVar(&a.endpointURL, "endpoint-url", os.Getenv("AWS_ENDPOINT_URL"), "Override the SQS endpoint (LocalStack)")
	flags.BoolVarP(&a.assumeYes, "yes", "y", false, "Skip the production confirmation prompt")

	root.AddCommand(newProvisionCmd(a))
	root.AddCommand(newDLQCmd(a))
	return root
}

// initSession loads AWS config and verifies the caller before any command
// touches a queue.
func (a *app) initSession(ctx context.Context) error {
	if !validEnvironments[a.env] {
		return fmt.Errorf("invalid environment %q (must be local, dev, staging, or prod)", a.env)
	}

	cfg, err := a.loadAWS(ctx, a)
	if err != nil {
		return err
	}

	identityCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	caller, err := a.identify(identityCtx, cfg)
	if err != nil {
		return fmt.Errorf("verifying AWS identity (STS GetCallerIdentity): %w\n"+
			"  Check that your AWS credentials are configured correctly.\n"+
			"  Profile: %q, Region: %q", err, a.profile, a.region)
	}
	a.logger.Info("AWS identity verified",
		"account_id", caller.AccountID,
		"arn", caller.ARN,
		"region", a.region,
		"env", a.env,
	)

	a.awsCfg = cfg
	a.caller = caller
	a.sqs = a.newSQS(cfg)
	return nil
}

// confirm gates a state-changing action. Only prod asks.
func (a *app) confirm(action string) bool {
	if a.env != "prod" || a.assumeYes {
		return true
	}
	fmt.Fprintln(a.errOut)
	fmt.Fprintln(a.errOut, "============================================================")
	fmt.Fprintln(a.errOut, "  WARNING: You are targeting the PRODUCTION environment")
	fmt.Fprintln(a.errOut, "============================================================")
	fmt.Fprintf(a.errOut, "  Action:  %s\n", action)
	fmt.Fprintf(a.errOut, "  Account: %s\n", a.caller.AccountID)
	fmt.Fprintf(a.errOut, "  Region:  %s\n", a.region)
	fmt.Fprintf(a.errOut, "  ARN:     %s\n", a.caller.ARN)
	fmt.Fprintln(a.errOut, "============================================================")
	fmt.Fprint(a.errOut, "Type 'yes' to continue: ")

	scanner := bufio.NewScanner(a.in)
	if !scanner.Scan() {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(scanner.Text()), "yes")
}

func loadAWSConfig(ctx context.Context, a *app) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if a.profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(a.profile))
	}
	return config.NewAWSConfig(ctx, a.region, a.endpointURL, opts...)
}

func callerIdentity(ctx context.Context, cfg aws.Config) (identity, error) {
	out, err := sts.NewFromConfig(cfg).GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return identity{}, err
	}
	return identity{AccountID: aws.ToString(out.Account), ARN: aws.ToString(out.Arn)}, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
