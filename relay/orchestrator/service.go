package orchestrator

import (
	"context"
	"errors"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/rs/zerolog/log"

	contractx "github.com/natthaponj/relaybot/relay/contract"
	nodex "github.com/natthaponj/relaybot/relay/nodes"
)

var (
	ErrInvalidMessage = nodex.ErrInvalidMessage
	ErrInvalidSession = nodex.ErrInvalidSession
)

const (
	defaultMaxAttempts = 3
	defaultBackoff     = 500 * time.Millisecond

	sessionStripes = 64
)

type Config struct {
	MaxAttempts int           `split_words:"true" default:"3"`
	Backoff     time.Duration `split_words:"true" default:"500ms"`
}

// Orchestrator runs one conversation pass: merge history with new input,
// call the gateway, execute at most one tool round-trip, return final
// text. Passes on the same session id are serialized; distinct sessions
// run concurrently.
type Orchestrator struct {
	store    contractx.Store
	gateway  contractx.Gateway
	registry contractx.Registry
	retry    nodex.RetryPolicy

	graphRunner compose.Runnable[nodex.GraphInput, nodex.GraphOutput]

	// Fixed stripe array: surfaces mint throwaway session ids, so a
	// per-session lock map would grow without bound.
	locks [sessionStripes]sync.Mutex

	now func() time.Time
}

func New(
	store contractx.Store,
	gateway contractx.Gateway,
	registry contractx.Registry,
	cfg Config,
) (*Orchestrator, error) {
	if store == nil {
		return nil, errors.New("memory store is required")
	}
	if gateway == nil {
		return nil, errors.New("model gateway is required")
	}
	if registry == nil {
		return nil, errors.New("tool registry is required")
	}

	retry := nodex.RetryPolicy{
		MaxAttempts: cfg.MaxAttempts,
		Backoff:     cfg.Backoff,
	}
	if retry.MaxAttempts <= 0 {
		retry.MaxAttempts = defaultMaxAttempts
	}
	if retry.Backoff <= 0 {
		retry.Backoff = defaultBackoff
	}

	o := &Orchestrator{
		store:    store,
		gateway:  gateway,
		registry: registry,
		retry:    retry,
		now:      time.Now,
	}

	graphRunner, err := o.compilePassGraph(context.Background())
	if err != nil {
		return nil, err
	}
	o.graphRunner = graphRunner

	return o, nil
}

// HandleMessage executes one pass. Invalid input is returned as an error;
// every other failure is converted to a user-visible reply so the pass
// always ends in conversational text.
func (o *Orchestrator) HandleMessage(ctx context.Context, sessionID string, text string) (string, error) {
	key := strings.TrimSpace(sessionID)
	if key == "" {
		return "", ErrInvalidSession
	}

	// Serialize passes per session to preserve append-then-read ordering
	// on the memory store. Distinct sessions share no mutable state.
	lock := o.sessionLock(key)
	lock.Lock()
	defer lock.Unlock()

	out, err := o.graphRunner.Invoke(ctx, nodex.GraphInput{
		SessionID: sessionID,
		Text:      text,
	})
	if err != nil {
		if errors.Is(err, ErrInvalidSession) || errors.Is(err, ErrInvalidMessage) {
			return "", err
		}
		log.Error().Err(err).Str("session_id", key).Msg("pass failed")
		return userFacingMessage(err), nil
	}
	return out.Reply, nil
}

// Clear discards the session's history.
func (o *Orchestrator) Clear(ctx context.Context, sessionID string) error {
	return o.store.Clear(ctx, sessionID)
}

func (o *Orchestrator) sessionLock(sessionID string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(sessionID))
	return &o.locks[h.Sum32()%sessionStripes]
}

// userFacingMessage maps the error taxonomy onto a single conversational
// message. Raw payloads and stack traces never reach the caller.
func userFacingMessage(err error) string {
	var providerErr *contractx.ProviderError
	switch {
	case errors.Is(err, contractx.ErrAuthentication):
		return "I can't reach the language model right now because my credentials were rejected. Please contact the operator."
	case errors.Is(err, contractx.ErrRateLimit):
		return "The model is handling too many requests right now. Please try again in a moment."
	case errors.Is(err, contractx.ErrTimeout):
		return "The model took too long to respond. Please try again."
	case errors.As(err, &providerErr):
		return "The model service returned an error. Please try again later."
	default:
		return "Sorry, something went wrong while handling your message. Please try again."
	}
}
