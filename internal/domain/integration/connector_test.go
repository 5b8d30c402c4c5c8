package integration

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsTransportError(t *testing.T) {
	assert.True(t, IsTransportError(ErrConnectorUnavailable))
	assert.True(t, IsTransportError(fmt.Errorf("%w: dial tcp: refused", ErrConnectorUnavailable)))
	assert.False(t, IsTransportError(ErrEntityRejected))
	assert.False(t, IsTransportError(errors.New("other")))
	assert.False(t, IsTransportError(nil))
}

func TestInvocationMode_IsValid(t *testing.T) {
	assert.True(t, InvocationModeEvent.IsValid())
	assert.True(t, InvocationModeRequestResponse.IsValid())
	assert.False(t, InvocationMode("DryRun").IsValid())
}

func TestDefaultMessage(t *testing.T) {
	assert.Equal(t, map[string]string{"default": "boom"}, DefaultMessage("boom"))
}
