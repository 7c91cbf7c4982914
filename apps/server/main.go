package main

import (
	"context"
	"net/http"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/atultiwari1305/coon/pkg/auth"
	"github.com/atultiwari1305/coon/pkg/cache"
	"github.com/atultiwari1305/coon/pkg/channel"
	"github.com/atultiwari1305/coon/pkg/chat"
	"github.com/atultiwari1305/coon/pkg/config"
	"github.com/atultiwari1305/coon/pkg/db"
	"github.com/atultiwari1305/coon/pkg/snowflake"
	"github.com/atultiwari1305/coon/pkg/store"
)

type server struct {
	svc       *chat.Service
	registry  *chat.Registry
	dir       channel.Directory
	auth      *auth.Authenticator
	clientURL string
	log       zerolog.Logger
}

func main() {
	log := zerolog.New(os.Stdout).With().Timestamp().Logger()
	cfg := config.Load()

	ids, err := snowflake.NewNode(cfg.NodeID)
	if err != nil {
		log.Fatal().Err(err).Msg("snowflake init")
	}

	// Durable store and channel directory: ScyllaDB when hosts are
	// configured, in-process otherwise (local development).
	var msgStore store.MessageStore
	var dir channel.Directory
	if len(cfg.ScyllaHosts) > 0 {
		if err := db.EnsureKeyspace(cfg.ScyllaHosts, cfg.Keyspace); err != nil {
			log.Fatal().Err(err).Msg("create keyspace")
		}
		session, err := db.NewSession(cfg.ScyllaHosts, cfg.Keyspace)
		if err != nil {
			log.Fatal().Err(err).Msg("connect to scylla")
		}
		defer session.Close()
		if err := session.EnsureSchema(); err != nil {
			log.Fatal().Err(err).Msg("create schema")
		}
		msgStore = store.NewScyllaStore(session, ids)
		dir = channel.NewScyllaDirectory(session)
		log.Info().Strs("hosts", cfg.ScyllaHosts).Msg("connected to scylla")
	} else {
		msgStore = store.NewMemoryStore()
		dir = channel.NewMemoryDirectory()
		log.Warn().Msg("SCYLLA_HOSTS not set, using in-memory store")
	}

	var history cache.History
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		history = cache.NewRedis(rdb, log)
		log.Info().Str("addr", cfg.RedisAddr).Msg("using redis history cache")
	} else {
		history = cache.NewMemory()
	}

	if err := dir.EnsureGeneral(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("ensure general channel")
	}

	registry := chat.NewRegistry(log)
	svc := chat.NewService(msgStore, history, registry, dir, cfg.StoreTimeout, log)

	if len(cfg.KafkaBrokers) > 0 {
		relay := chat.NewRelay(cfg.KafkaBrokers, cfg.KafkaTopic, log)
		defer relay.Close()
		svc.SetRelay(relay)
		go relay.Run(context.Background(), registry)
		log.Info().Strs("brokers", cfg.KafkaBrokers).Msg("cross-gateway relay enabled")
	}

	s := &server{
		svc:       svc,
		registry:  registry,
		dir:       dir,
		auth:      auth.New(cfg.JWTSecret),
		clientURL: cfg.ClientURL,
		log:       log,
	}

	addr := ":" + cfg.Port
	log.Info().Str("addr", addr).Msg("server starting")
	if err := http.ListenAndServe(addr, s.router()); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
