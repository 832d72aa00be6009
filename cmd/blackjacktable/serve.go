package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/coder/quartz"
	"golang.org/x/sync/errgroup"

	"blackjacktable/cmd/blackjacktable/shared"
	"blackjacktable/internal/auth"
	"blackjacktable/internal/blackjack"
	"blackjacktable/internal/randutil"
	"blackjacktable/internal/server"
)

// ServeCmd contains the server configuration
type ServeCmd struct {
	Addr      string `kong:"help='Listen address (overrides config)'"`
	Config    string `kong:"help='Path to HCL config file'"`
	Debug     bool   `kong:"help='Enable debug logging'"`
	Seed      *int64 `kong:"help='Deterministic shuffle seed (optional)'"`
	JWTSecret string `kong:"name='jwt-secret',env='BLACKJACK_JWT_SECRET',help='HS256 secret for wallet session tokens'"`
}

func (c *ServeCmd) Run() error {
	logger := shared.SetupLogger(c.Debug)

	cfg, err := server.LoadConfig(c.Config)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	shared.ParseLevel(logger, cfg.Server.LogLevel, c.Debug)

	addr := cfg.Server.Address
	if c.Addr != "" {
		addr = c.Addr
	}

	secret := cfg.Server.JWTSecret
	if c.JWTSecret != "" {
		secret = c.JWTSecret
	}
	if secret == "" {
		logger.Warn("no jwt secret configured, wallet connections will be rejected; only guests can connect")
	}

	var seed int64
	if c.Seed != nil {
		seed = *c.Seed
		logger.Info("using deterministic seed", "seed", seed)
	} else {
		_, seed = randutil.Auto()
		logger.Info("using random seed", "seed", seed)
	}

	verifier := auth.NewVerifier(secret)
	manager := server.NewManager(logger)
	srv := server.New(logger, verifier, manager)

	for i, tc := range cfg.Tables {
		// Each table shuffles from its own stream derived from the seed.
		host := server.NewTableHost(server.HostConfig{
			Table: blackjack.Config{
				ID:           tc.ID,
				MaxSeats:     tc.MaxSeats,
				ShoeLowWater: tc.ShoeLowWater,
				MinBet:       tc.MinBet,
				MaxBet:       tc.MaxBet,
			},
			TurnTimeout: time.Duration(tc.TurnTimeoutSeconds) * time.Second,
		}, randutil.Seeded(seed+int64(i)), srv, logger, quartz.NewReal())
		manager.Register(host)
	}

	logger.Info("starting blackjack table server",
		"addr", addr,
		"tables", len(cfg.Tables),
		"seed", seed)

	ctx := shared.SetupSignalHandler(logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
