package shutdown

import (
	"context"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func Test_ListenForShutdown(t *testing.T) {
	signals := make(chan os.Signal, 1)
	done := make(chan bool)
	ctx, cancel := context.WithCancel(context.Background())

	handled := false
	go ListenForShutdown(signals, done, cancel, func() { handled = true }, time.Millisecond, zap.NewNop())

	signals <- syscall.SIGTERM

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("shutdown did not complete")
	}
	assert.True(t, handled)
	assert.NotNil(t, ctx.Err())
}
