package invocation

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/erp/catalogsync/internal/domain/integration"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockLambda struct {
	out   *lambda.InvokeOutput
	err   error
	input *lambda.InvokeInput
}

func (m *mockLambda) Invoke(_ context.Context, params *lambda.InvokeInput, _ ...func(*lambda.Options)) (*lambda.InvokeOutput, error) {
	m.input = params
	return m.out, m.err
}

func TestLambdaDispatcher_Invoke(t *testing.T) {
	tests := []struct {
		name     string
		mode     integration.InvocationMode
		out      *lambda.InvokeOutput
		wantType types.InvocationType
		wantBody []byte
	}{
		{
			name:     "event",
			mode:     integration.InvocationModeEvent,
			out:      &lambda.InvokeOutput{StatusCode: 202},
			wantType: types.InvocationTypeEvent,
		},
		{
			name:     "default mode is event",
			out:      &lambda.InvokeOutput{StatusCode: 202},
			wantType: types.InvocationTypeEvent,
		},
		{
			name:     "request response",
			mode:     integration.InvocationModeRequestResponse,
			out:      &lambda.InvokeOutput{StatusCode: 200, Payload: []byte(`{"ok":true}`)},
			wantType: types.InvocationTypeRequestResponse,
			wantBody: []byte(`{"ok":true}`),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &mockLambda{out: tt.out}
			body, err := NewLambdaDispatcher(api, nil).Invoke(context.Background(), "catalog-sync", []byte(`{"source":"feed-a"}`), tt.mode)
			require.NoError(t, err)
			assert.Equal(t, tt.wantBody, body)
			assert.Equal(t, "catalog-sync", aws.ToString(api.input.FunctionName))
			assert.Equal(t, tt.wantType, api.input.InvocationType)
			assert.Equal(t, []byte(`{"source":"feed-a"}`), api.input.Payload)
		})
	}
}

func TestLambdaDispatcher_Errors(t *testing.T) {
	t.Run("empty target", func(t *testing.T) {
		_, err := NewLambdaDispatcher(&mockLambda{}, nil).Invoke(context.Background(), "", nil, integration.InvocationModeEvent)
		assert.ErrorIs(t, err, integration.ErrInvalidTarget)
	})

	t.Run("invalid mode", func(t *testing.T) {
		_, err := NewLambdaDispatcher(&mockLambda{}, nil).Invoke(context.Background(), "fn", nil, "DryRun")
		assert.Error(t, err)
	})

	t.Run("api error", func(t *testing.T) {
		cause := errors.New("throttled")
		_, err := NewLambdaDispatcher(&mockLambda{err: cause}, nil).Invoke(context.Background(), "fn", nil, integration.InvocationModeEvent)
		assert.ErrorIs(t, err, cause)
	})

	t.Run("function error", func(t *testing.T) {
		api := &mockLambda{out: &lambda.InvokeOutput{
			StatusCode:    200,
			FunctionError: aws.String("Unhandled"),
			Payload:       []byte(`{"errorMessage":"boom"}`),
		}}
		_, err := NewLambdaDispatcher(api, nil).Invoke(context.Background(), "fn", nil, integration.InvocationModeRequestResponse)
		assert.ErrorIs(t, err, integration.ErrInvocationFailed)
		assert.Contains(t, err.Error(), "boom")
	})
}

func TestNewLambdaClient_Endpoint(t *testing.T) {
	endpoint := "http://localhost:4566"
	client := NewLambdaClient(aws.Config{Region: "us-east-1"}, &endpoint)
	assert.Equal(t, endpoint, aws.ToString(client.Options().BaseEndpoint))

	client = NewLambdaClient(aws.Config{Region: "us-east-1"}, nil)
	assert.Nil(t, client.Options().BaseEndpoint)
}
