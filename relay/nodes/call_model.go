package nodes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	contractx "github.com/natthaponj/relaybot/relay/contract"
)

// RetryPolicy bounds resubmission after provider throttling. Only
// rate-limit failures are retried; everything else fails the attempt.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
}

func (p RetryPolicy) attempts() int {
	if p.MaxAttempts <= 0 {
		return 1
	}
	return p.MaxAttempts
}

// CallModel reads the session window and asks the gateway for a response,
// advertising the full tool catalog.
func CallModel(
	ctx context.Context,
	in *PassState,
	store contractx.Store,
	gw contractx.Gateway,
	registry contractx.Registry,
	retry RetryPolicy,
) (*PassState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: pass state is nil", contractx.ErrValidation)
	}

	window, err := store.Read(ctx, in.SessionID)
	if err != nil {
		return nil, err
	}
	in.Window = window

	resp, err := CompleteWithRetry(ctx, gw, window, registry.DescribeAll(), retry)
	if err != nil {
		return nil, err
	}
	in.Resp = resp
	return in, nil
}

// CompleteWithRetry invokes the gateway, retrying throttled calls with a
// doubling backoff up to the policy's attempt bound.
func CompleteWithRetry(
	ctx context.Context,
	gw contractx.Gateway,
	turns []contractx.Turn,
	tools []contractx.Descriptor,
	retry RetryPolicy,
) (contractx.ModelResponse, error) {
	backoff := retry.Backoff
	var lastErr error

	for attempt := 1; attempt <= retry.attempts(); attempt++ {
		resp, err := gw.Complete(ctx, turns, tools)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !errors.Is(err, contractx.ErrRateLimit) {
			return contractx.ModelResponse{}, err
		}
		if attempt == retry.attempts() {
			break
		}

		log.Debug().Int("attempt", attempt).Dur("backoff", backoff).Msg("rate limited, backing off")
		select {
		case <-ctx.Done():
			return contractx.ModelResponse{}, fmt.Errorf("%w: %v", contractx.ErrTimeout, ctx.Err())
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return contractx.ModelResponse{}, lastErr
}
