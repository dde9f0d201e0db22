package shutdown

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

func CreateGracefulShutdownChannel() chan os.Signal {
	gracefulShutdown := make(chan os.Signal, 1)
	signal.Notify(gracefulShutdown, syscall.SIGTERM, syscall.SIGINT)

	return gracefulShutdown
}

// ListenForShutdown blocks until a termination signal arrives, runs the handler, cancels ctx
// and waits up to timeToWait for in-flight work before closing done.
func ListenForShutdown(
	signalChan chan os.Signal,
	done chan bool,
	cancel context.CancelFunc,
	signalHandler func(),
	timeToWait time.Duration,
	l *zap.Logger,
) {
	sig := <-signalChan
	switch sig {
	case syscall.SIGTERM, syscall.SIGINT:
		l.Sugar().Infow("Caught signal", zap.String("signal", sig.String()))

		signalHandler()
		if cancel != nil {
			cancel()
		}

		l.Sugar().Infow("Waiting before exit", zap.Duration("wait", timeToWait))
		time.Sleep(timeToWait)

		l.Sugar().Infow("Exiting")
		close(done)
	}
}
