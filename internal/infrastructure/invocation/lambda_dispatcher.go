// Package invocation dispatches bounded runs as AWS Lambda invocations.
package invocation

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/erp/catalogsync/internal/domain/integration"
	"go.uber.org/zap"
)

// maxErrorPayload bounds the function error payload quoted in errors.
const maxErrorPayload = 512

// LambdaAPI is the subset of the Lambda client in use.
type LambdaAPI interface {
	Invoke(ctx context.Context, params *lambda.InvokeInput, optFns ...func(*lambda.Options)) (*lambda.InvokeOutput, error)
}

// LambdaDispatcher implements integration.Dispatcher over Lambda Invoke.
type LambdaDispatcher struct {
	api    LambdaAPI
	logger *zap.Logger
}

// NewLambdaDispatcher wraps api.
func NewLambdaDispatcher(api LambdaAPI, logger *zap.Logger) *LambdaDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LambdaDispatcher{api: api, logger: logger.Named("dispatcher")}
}

// NewLambdaClient builds a Lambda client, honouring an endpoint override.
func NewLambdaClient(cfg aws.Config, endpoint *string) *lambda.Client {
	return lambda.NewFromConfig(cfg, func(o *lambda.Options) {
		if endpoint != nil {
			o.BaseEndpoint = endpoint
		}
	})
}

// Invoke calls target with payload. Event invocations return no body.
func (d *LambdaDispatcher) Invoke(ctx context.Context, target string, payload []byte, mode integration.InvocationMode) ([]byte, error) {
	if target == "" {
		return nil, integration.ErrInvalidTarget
	}
	if mode == "" {
		mode = integration.InvocationModeEvent
	}
	if !mode.IsValid() {
		return nil, fmt.Errorf("invocation: unsupported mode %q", mode)
	}

	out, err := d.api.Invoke(ctx, &lambda.InvokeInput{
		FunctionName:   aws.String(target),
		InvocationType: types.InvocationType(mode),
		Payload:        payload,
	})
	if err != nil {
		return nil, fmt.Errorf("invocation: invoke %s: %w", target, err)
	}
	if out.FunctionError != nil {
		body := out.Payload
		if len(body) > maxErrorPayload {
			body = body[:maxErrorPayload]
		}
		return nil, fmt.Errorf("%w: %s: %s: %s", integration.ErrInvocationFailed, target, aws.ToString(out.FunctionError), body)
	}

	d.logger.Debug("Invoked target",
		zap.String("target", target),
		zap.String("mode", string(mode)),
		zap.Int32("status", out.StatusCode),
		zap.Int("payload_bytes", len(payload)),
	)
	if mode == integration.InvocationModeEvent {
		return nil, nil
	}
	return out.Payload, nil
}

var _ integration.Dispatcher = (*LambdaDispatcher)(nil)
