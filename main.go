package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	configx "github.com/natthaponj/relaybot/pkg/config"
	_ "github.com/natthaponj/relaybot/pkg/logger/autoload"
	gatewayx "github.com/natthaponj/relaybot/relay/gateway"
	memoryx "github.com/natthaponj/relaybot/relay/memory"
	orchestratorx "github.com/natthaponj/relaybot/relay/orchestrator"
	promptx "github.com/natthaponj/relaybot/relay/prompt"
	surfacex "github.com/natthaponj/relaybot/relay/surface"
	toolx "github.com/natthaponj/relaybot/relay/tool"
)

const version = "0.1.0"

func main() {
	root := &cobra.Command{
		Use:           "relaybot",
		Short:         "Tool-augmented chat relay for AWS news assistants",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(serveCmd(), digestCmd(), versionCmd())

	if err := root.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP surface and, when enabled, the digest scheduler",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			memCfg := configx.MustNew[memoryx.Config]("MEMORY")
			orch, store, err := buildOrchestrator(ctx, memCfg)
			if err != nil {
				return err
			}

			httpCfg := configx.MustNew[surfacex.HTTPConfig]("HTTP")
			server := surfacex.NewServer(*httpCfg, orch)

			go sweepLoop(ctx, store, memCfg.SessionTTL)

			digestCfg := configx.MustNew[surfacex.DigestConfig]("DIGEST")
			if digestCfg.Enabled {
				poster, err := surfacex.NewWebhookPoster(digestCfg.WebhookURL, 10*time.Second)
				if err != nil {
					return fmt.Errorf("digest poster: %w", err)
				}
				go surfacex.NewDigest(*digestCfg, orch, poster).Run(ctx)
			}

			errCh := make(chan error, 1)
			go func() {
				errCh <- server.ListenAndServe()
			}()

			select {
			case <-ctx.Done():
			case err := <-errCh:
				if err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		},
	}
}

func digestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "digest",
		Short: "Run one digest pass and post it to the configured webhook",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			memCfg := configx.MustNew[memoryx.Config]("MEMORY")
			orch, _, err := buildOrchestrator(ctx, memCfg)
			if err != nil {
				return err
			}

			digestCfg := configx.MustNew[surfacex.DigestConfig]("DIGEST")
			poster, err := surfacex.NewWebhookPoster(digestCfg.WebhookURL, 10*time.Second)
			if err != nil {
				return fmt.Errorf("digest poster: %w", err)
			}

			return surfacex.NewDigest(*digestCfg, orch, poster).RunOnce(ctx)
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the relaybot version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}

func buildOrchestrator(ctx context.Context, memCfg *memoryx.Config) (*orchestratorx.Orchestrator, *memoryx.Store, error) {
	toolCfg := configx.MustNew[toolx.Config]("TOOLS")
	descriptors, err := toolx.LoadDescriptors(toolCfg.File)
	if err != nil {
		return nil, nil, err
	}
	registry, err := toolx.NewRegistry(descriptors, toolCfg.Timeout)
	if err != nil {
		return nil, nil, err
	}

	var storeOpts []memoryx.Option
	if memCfg.PostgresDSN != "" {
		turnLog, err := memoryx.NewPostgresTurnLog(memCfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		if err := turnLog.Migrate(ctx); err != nil {
			return nil, nil, err
		}
		storeOpts = append(storeOpts, memoryx.WithTurnLog(turnLog))
		log.Info().Msg("durable turn log enabled")
	}
	store := memoryx.NewStore(memCfg.Window, storeOpts...)

	gatewayCfg := configx.MustNew[gatewayx.Config]("MODEL")
	gw, err := gatewayx.New(*gatewayCfg, promptx.System())
	if err != nil {
		return nil, nil, err
	}

	orchCfg := configx.MustNew[orchestratorx.Config]("ORCHESTRATOR")
	orch, err := orchestratorx.New(store, gw, registry, *orchCfg)
	if err != nil {
		return nil, nil, err
	}
	return orch, store, nil
}

func sweepLoop(ctx context.Context, store *memoryx.Store, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	ticker := time.NewTicker(ttl / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := store.Sweep(ttl); removed > 0 {
				log.Debug().Int("removed", removed).Msg("swept idle sessions")
			}
		}
	}
}
