package surface

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	contractx "github.com/natthaponj/relaybot/relay/contract"
)

type DigestConfig struct {
	Enabled    bool          `split_words:"true" default:"false"`
	Interval   time.Duration `split_words:"true" default:"168h"`
	Prompt     string        `split_words:"true" default:"Summarize the most important AWS announcements from this week. Focus on major service launches, significant updates, and notable features."`
	WebhookURL string        `split_words:"true"`
}

// Digest periodically runs the orchestrator with a fixed synthetic prompt
// and posts the answer onto an outbound channel. It shares the
// orchestrator unchanged with the event-driven surfaces.
type Digest struct {
	orch     Conversationalist
	poster   contractx.Poster
	interval time.Duration
	prompt   string
	now      func() time.Time
}

func NewDigest(cfg DigestConfig, orch Conversationalist, poster contractx.Poster) *Digest {
	interval := cfg.Interval
	if interval <= 0 {
		interval = 168 * time.Hour
	}
	return &Digest{
		orch:     orch,
		poster:   poster,
		interval: interval,
		prompt:   cfg.Prompt,
		now:      time.Now,
	}
}

// Run ticks until the context is canceled.
func (d *Digest) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	log.Info().Dur("interval", d.interval).Msg("digest scheduler started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("digest scheduler stopped")
			return
		case <-ticker.C:
			if err := d.RunOnce(ctx); err != nil {
				log.Error().Err(err).Msg("digest run failed")
			}
		}
	}
}

// RunOnce executes a single digest pass on a fresh dated session.
func (d *Digest) RunOnce(ctx context.Context) error {
	sessionID := fmt.Sprintf("digest-%s", d.now().UTC().Format("20060102-150405"))

	reply, err := d.orch.HandleMessage(ctx, sessionID, d.prompt)
	if err != nil {
		return fmt.Errorf("digest pass: %w", err)
	}

	if err := d.poster.Post(ctx, reply); err != nil {
		return fmt.Errorf("post digest: %w", err)
	}
	log.Info().Str("session_id", sessionID).Msg("digest posted")
	return nil
}
