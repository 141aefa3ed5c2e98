package main

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIgnoreCanceled(t *testing.T) {
	assert.NoError(t, ignoreCanceled(nil))
	assert.NoError(t, ignoreCanceled(context.Canceled))
	assert.NoError(t, ignoreCanceled(fmt.Errorf("watcher stopped: %w", context.Canceled)),
		"wrapped cancellation is still a clean exit")

	real := errors.New("disk on fire")
	assert.Equal(t, real, ignoreCanceled(real))
	assert.Error(t, ignoreCanceled(context.DeadlineExceeded))
}
