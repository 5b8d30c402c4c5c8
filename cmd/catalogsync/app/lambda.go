package app

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/erp/catalogsync/internal/application/catalogsync"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// invocationResponse is returned to the function runtime.
type invocationResponse struct {
	*catalogsync.RunResult
	Error string `json:"error,omitempty"`
}

// invocationHandler runs one delivery.
type invocationHandler interface {
	Handle(ctx context.Context, inv catalogsync.Invocation) *catalogsync.RunResult
}

func newLambdaCmd(opts *globalOptions) *cobra.Command {
	var task string
	cmd := &cobra.Command{
		Use:   "lambda",
		Short: "Serve invocations from the function runtime",
		Long: `Serve invocations from the function runtime. The task is taken from --task,
falling back to app.task. Run errors are escalated to the failure topic and
reported in the response; they are not returned to the runtime, so a failed
run is not retried by the platform.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if task == "" {
				task = cfg.App.Task
			}
			ctx := cmd.Context()
			d, err := newDeps(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() { _ = d.Close() }()

			h, err := d.handler(ctx, task)
			if err != nil {
				d.logger.Error("Failed to build handler", zap.String("task", task), zap.Error(err))
				return err
			}
			d.logger.Info("Serving invocations", zap.String("task", task))
			lambda.StartWithOptions(
				lambdaHandler(h, d.providers.ForceFlush, time.Now),
				lambda.WithContext(ctx),
				lambda.WithEnableSIGTERM(func() {
					d.logger.Info("Runtime shutdown requested")
					_ = d.Close()
				}),
			)
			return nil
		},
	}
	cmd.Flags().StringVar(&task, "task", "", "Task to serve (stage or forward)")
	return cmd
}

// lambdaHandler adapts h to the function runtime. flush runs after every
// invocation since the instance may be frozen once the response is sent.
func lambdaHandler(h invocationHandler, flush func(context.Context) error, now func() time.Time) func(context.Context, json.RawMessage) (*invocationResponse, error) {
	return func(ctx context.Context, event json.RawMessage) (*invocationResponse, error) {
		inv := invocationFromContext(ctx, event, now)
		result := h.Handle(ctx, inv)
		if flush != nil {
			flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			_ = flush(flushCtx)
			cancel()
		}
		return &invocationResponse{RunResult: result, Error: result.ErrorText()}, nil
	}
}

// invocationFromContext reads the request id and function ARN that the
// runtime attaches to ctx.
func invocationFromContext(ctx context.Context, body []byte, now func() time.Time) catalogsync.Invocation {
	inv := catalogsync.Invocation{
		Body:   body,
		Budget: catalogsync.NewDeadlineBudget(ctx, now),
	}
	if lc, ok := lambdacontext.FromContext(ctx); ok {
		inv.RequestID = lc.AwsRequestID
		inv.FunctionARN = lc.InvokedFunctionArn
	}
	return inv
}

// printResult writes the run summary, or the result as JSON.
func printResult(cmd *cobra.Command, result *catalogsync.RunResult, format string) error {
	out := cmd.OutOrStdout()
	if format == "json" {
		data, err := json.MarshalIndent(invocationResponse{RunResult: result, Error: result.ErrorText()}, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, string(data))
		return err
	}
	_, err := fmt.Fprintln(out, result.Summary())
	return err
}
