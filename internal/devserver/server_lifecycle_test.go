package devserver

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

func TestServerGracefulShutdownWithContext(t *testing.T) {
	t.Parallel()

	cfg := Config{
		BindAddress: "127.0.0.1",
		Port:        0, // let the OS pick a free port
		Site:        "testsite",
		APIKey:      "dummy",
		Username:    "user",
		Password:    "pass",
	}

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel) // silence output in tests

	s := NewServer(cfg, afero.NewMemMapFs(), logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.StartWithContext(ctx)
	}()

	// Allow the server to start listening.
	time.Sleep(100 * time.Millisecond)

	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("expected graceful shutdown without error, got: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("server did not shut down after context cancellation")
	}
}
