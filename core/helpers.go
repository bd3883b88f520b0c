package assistant

import (
	"context"
	"fmt"
)

func panicSafe(name string, run func() error) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("%w: %s panicked: %v", ErrUnhandled, name, recovered)
		}
	}()

	return run()
}

// withCloseCancel calls cancel once closeCh is closed. Close the returned
// channel to stop watching.
func withCloseCancel(ctx context.Context, closeCh <-chan struct{}, cancel func()) chan struct{} {
	done := make(chan struct{})
	go func() {
		select {
		case <-closeCh:
			cancel()
		case <-ctx.Done():
		case <-done:
		}
	}()
	return done
}
