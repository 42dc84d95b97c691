package rpcstream

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/wagiedev/rpcstream/internal/correlator"
	"github.com/wagiedev/rpcstream/internal/subprocess"
)

// WithProcess starts a JSON-RPC server process, wires a Correlator to its
// stdio, and runs fn with it. The correlator and the process are shut down
// when fn returns.
//
// Frames from the process stdout are served for the whole lifetime of fn.
// If the process exits early, pending and later calls fail with a
// closed-connection error and the returned error carries the exit status.
//
// Example:
//
//	err := rpcstream.WithProcess(ctx, rpcstream.ProcessConfig{Command: "my-server"},
//	    func(ctx context.Context, c *rpcstream.Correlator) error {
//	        var sum int
//	        return c.Call(ctx, "sum", []int{1, 2}, &sum)
//	    },
//	    rpcstream.WithTimeout(5*time.Second),
//	)
func WithProcess(
	ctx context.Context,
	cfg ProcessConfig,
	fn func(ctx context.Context, c *Correlator) error,
	opts ...Option,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	options := applyOptions(opts)

	log := options.Logger
	if log == nil {
		log = NopLogger()
		options.Logger = log
	}

	procCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	proc, err := subprocess.Start(procCtx, log, cfg)
	if err != nil {
		return fmt.Errorf("start server process: %w", err)
	}

	c := correlator.New(proc, options)

	g, gctx := errgroup.WithContext(procCtx)

	g.Go(func() error {
		serveErr := c.Serve(gctx, proc.Stdout())
		waitErr := proc.Wait()

		// The process is gone, so nothing pending can be answered anymore.
		if err := c.Close(); err != nil {
			log.Warn("failed to close correlator", "error", err)
		}

		if waitErr != nil {
			return waitErr
		}

		if serveErr != nil {
			return fmt.Errorf("serve: %w", serveErr)
		}

		return nil
	})

	g.Go(func() error {
		defer func() {
			if err := c.Close(); err != nil {
				log.Warn("failed to close correlator", "error", err)
			}

			if err := proc.Close(); err != nil {
				log.Warn("failed to close server process", "error", err)
			}
		}()

		return fn(gctx, c)
	})

	return g.Wait()
}
