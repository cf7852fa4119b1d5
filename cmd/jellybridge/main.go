// Jellybridge - Go client library for Jellyfin-compatible media servers
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jellybridge

// Package main is a demonstration client for the jellybridge library.
//
// It connects to a Jellyfin-compatible server, signs in, starts the
// realtime websocket transport and the time sync estimator, and prints
// every event the server pushes until interrupted.
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins):
//   - JELLYBRIDGE_* environment variables
//   - Config file (jellybridge.yaml, or JELLYBRIDGE_CONFIG)
//   - Built-in defaults
//
// # Example Usage
//
// Discover servers on the local network:
//
//	jellybridge -discover
//
// Sign in and tail events:
//
//	jellybridge -server http://localhost:8096 -user demo -pass secret
//
// Resume a stored session (credentials persisted under -data):
//
//	jellybridge -data ~/.local/share/jellybridge
//
// Expose Prometheus metrics while running:
//
//	jellybridge -server http://localhost:8096 -user demo -metrics :9090
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/jellybridge"
	"github.com/tomtom215/jellybridge/config"
	"github.com/tomtom215/jellybridge/connect"
	"github.com/tomtom215/jellybridge/credentials"
	"github.com/tomtom215/jellybridge/internal/logging"
)

func main() {
	var (
		serverAddr  = flag.String("server", "", "server address to connect to (empty: resume last used)")
		username    = flag.String("user", "", "username for sign-in")
		password    = flag.String("pass", "", "password for sign-in")
		dataDir     = flag.String("data", "", "directory for persisted credentials (empty: in-memory only)")
		secret      = flag.String("secret", "", "passphrase encrypting persisted credentials")
		discover    = flag.Bool("discover", false, "list servers found via UDP discovery and exit")
		metricsAddr = flag.String("metrics", "", "address for the Prometheus /metrics endpoint (empty: disabled)")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})

	var persister credentials.Persister
	if *dataDir != "" {
		store, err := credentials.OpenBadgerStore(*dataDir, *secret)
		if err != nil {
			logging.Fatal().Err(err).Str("dir", *dataDir).Msg("Failed to open credential store")
		}
		defer func() {
			if err := store.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing credential store")
			}
		}()
		persister = store
	}

	client, err := jellybridge.New(cfg, jellybridge.Options{
		Persister: persister,
		Callback:  printEvent,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create client")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if *discover {
		for _, server := range client.GetAvailableServers(ctx, true) {
			fmt.Printf("%s\t%s\t%s\n", server.ID, server.Name, server.Address)
		}
		return
	}

	if *metricsAddr != "" {
		go serveMetrics(*metricsAddr)
	}

	result := negotiate(ctx, client, *serverAddr)
	switch result.State {
	case connect.SignedIn:
		logging.Info().Str("server", result.Server.Name).Msg("Resumed stored session")
	case connect.ServerSignIn:
		if *username == "" {
			logging.Fatal().Msg("Server requires sign-in; pass -user and -pass")
		}
		auth, err := client.Login(ctx, result.Server.Address, *username, *password)
		if err != nil {
			logging.Fatal().Err(err).Msg("Sign-in failed")
		}
		logging.Info().Str("user", auth.User.Name).Str("server", result.Server.Name).Msg("Signed in")
	case connect.ServerSelection:
		logging.Fatal().Msg("No server known; pass -server or run -discover")
	default:
		logging.Fatal().Str("state", result.State.String()).Msg("Server unavailable")
	}

	if err := client.Start(ctx, jellybridge.StartOptions{Realtime: true, Timesync: true}); err != nil {
		logging.Fatal().Err(err).Msg("Failed to start background services")
	}

	logging.Info().Msg("Tailing server events; press Ctrl+C to stop")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logging.Info().Str("signal", sig.String()).Msg("Shutting down")

	client.Stop()

	if client.Timesync().IsReady() {
		logging.Info().
			Dur("offset", client.Timesync().Offset()).
			Dur("ping", client.Timesync().Ping()).
			Msg("Final clock estimate")
	}
}

// negotiate resolves the starting point: an explicit address wins,
// otherwise the most recently used stored server is resumed.
func negotiate(ctx context.Context, client *jellybridge.Client, addr string) connect.Result {
	if addr != "" {
		return client.ConnectToAddress(ctx, addr, connect.Options{})
	}
	return client.Connect(ctx, true)
}

// printEvent is the single event sink: lifecycle events and forwarded
// server messages alike.
func printEvent(event string, data map[string]any) {
	if len(data) == 0 {
		fmt.Printf("%s %s\n", time.Now().Format(time.TimeOnly), event)
		return
	}
	fmt.Printf("%s %s %v\n", time.Now().Format(time.TimeOnly), event, data)
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	logging.Info().Str("addr", addr).Msg("Serving Prometheus metrics")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logging.Error().Err(err).Msg("Metrics server stopped")
	}
}
