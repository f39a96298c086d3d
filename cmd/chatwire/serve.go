package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/chatwire/chatwire/internal/avatar"
	"github.com/chatwire/chatwire/internal/config"
	"github.com/chatwire/chatwire/internal/db"
	"github.com/chatwire/chatwire/internal/gateway"
	"github.com/chatwire/chatwire/internal/handlers"
	"github.com/chatwire/chatwire/internal/logger"
	"github.com/chatwire/chatwire/internal/pipeline"
	"github.com/chatwire/chatwire/internal/server"
	"github.com/chatwire/chatwire/internal/store"
	"github.com/chatwire/chatwire/internal/webhook"
)

func runServe() {
	fx.New(
		fx.Provide(
			provideConfig,
			provideLogger,
			provideDBConn,
			provideContacts,
			provideBindings,
			provideConversations,
			provideGatewayClient,
			provideAvatarDispatcher,
			provideAvatarSweeper,
			provideNormalizer,
			provideResolver,
			provideProcessor,
			provideServerHandler(provideWebhookHandler),
			provideServerHandler(provideGatewayHandler),
			provideServerHandler(provideSendHandler),
			provideServerHandler(providePingHandler),
			provideServer,
		),
		fx.Invoke(
			startAvatarDispatcher,
			startAvatarSweeper,
			startServer,
		),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),
	).Run()
}

func provideServerHandler(fn any) any {
	return fx.Annotate(
		fn,
		fx.As(new(server.Handler)),
		fx.ResultTags(`group:"server_handlers"`),
	)
}

func provideConfig() (config.Config, error) {
	cfgPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideDBConn(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	conn, err := db.Open(context.Background(), cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	lc.Append(fx.Hook{OnStop: func(ctx context.Context) error { conn.Close(); return nil }})
	return conn, nil
}

func provideContacts(conn *pgxpool.Pool) *store.Contacts { return store.NewContacts(conn) }
func provideBindings(conn *pgxpool.Pool) *store.Bindings { return store.NewBindings(conn) }
func provideConversations(conn *pgxpool.Pool) *store.Conversations {
	return store.NewConversations(conn)
}

func provideGatewayClient(log *slog.Logger, cfg config.Config) *gateway.Client {
	return gateway.NewClient(log, cfg.Channel)
}

func provideAvatarDispatcher(log *slog.Logger, client *gateway.Client, contacts *store.Contacts, cfg config.Config) *avatar.Dispatcher {
	return avatar.NewDispatcher(log, client, contacts, cfg.Avatar.Workers)
}

func provideAvatarSweeper(log *slog.Logger, contacts *store.Contacts, dispatcher *avatar.Dispatcher, cfg config.Config) *avatar.Sweeper {
	return avatar.NewSweeper(log, contacts, dispatcher, avatarMaxAge(cfg))
}

func provideNormalizer(log *slog.Logger, cfg config.Config) *webhook.Normalizer {
	return webhook.NewNormalizer(log, cfg.Channel.PhoneNumber)
}

func provideResolver(log *slog.Logger, cfg config.Config, contacts *store.Contacts, bindings *store.Bindings, dispatcher *avatar.Dispatcher) *pipeline.IdentityResolver {
	return pipeline.NewIdentityResolver(
		log,
		cfg.Channel.ID,
		cfg.Channel.PhoneNumber,
		contacts,
		bindings,
		dispatcher,
		avatarMaxAge(cfg),
	)
}

func provideProcessor(log *slog.Logger, normalizer *webhook.Normalizer, resolver *pipeline.IdentityResolver, conversations *store.Conversations) *pipeline.Processor {
	return pipeline.NewProcessor(log, normalizer, resolver, conversations)
}

func provideWebhookHandler(log *slog.Logger, processor *pipeline.Processor) *handlers.WebhookHandler {
	return handlers.NewWebhookHandler(log, processor)
}

func provideGatewayHandler(log *slog.Logger, client *gateway.Client) *handlers.GatewayHandler {
	return handlers.NewGatewayHandler(log, client)
}

func provideSendHandler(log *slog.Logger, client *gateway.Client) *handlers.SendHandler {
	return handlers.NewSendHandler(log, client)
}

func providePingHandler(log *slog.Logger) *handlers.PingHandler {
	return handlers.NewPingHandler(log)
}

type serverParams struct {
	fx.In
	Logger   *slog.Logger
	Config   config.Config
	Handlers []server.Handler `group:"server_handlers"`
}

func provideServer(params serverParams) *server.Server {
	return server.New(params.Logger, params.Config.Server.Addr, params.Handlers)
}

func startAvatarDispatcher(lc fx.Lifecycle, dispatcher *avatar.Dispatcher) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			dispatcher.Start(context.Background())
			return nil
		},
		OnStop: func(ctx context.Context) error {
			dispatcher.Stop()
			return nil
		},
	})
}

func startAvatarSweeper(lc fx.Lifecycle, sweeper *avatar.Sweeper, cfg config.Config) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return sweeper.Start(cfg.Avatar.SweepSchedule)
		},
		OnStop: func(ctx context.Context) error {
			sweeper.Stop()
			return nil
		},
	})
}

func startServer(lc fx.Lifecycle, logger *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Stop(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server stop: %w", err)
			}
			return nil
		},
	})
}

func avatarMaxAge(cfg config.Config) time.Duration {
	maxAge, err := time.ParseDuration(cfg.Avatar.MaxAge)
	if err != nil || maxAge <= 0 {
		return 24 * time.Hour
	}
	return maxAge
}
