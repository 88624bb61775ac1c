package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/npezzotti/go-presence/internal/api"
	"github.com/npezzotti/go-presence/internal/config"
	"github.com/npezzotti/go-presence/internal/directory"
	"github.com/npezzotti/go-presence/internal/identity"
	"github.com/npezzotti/go-presence/internal/server"
	"github.com/npezzotti/go-presence/internal/stats"
)

type stringSliceFlag []string

func (s *stringSliceFlag) String() string {
	return strings.Join(*s, ",")
}

func (s *stringSliceFlag) Set(value string) error {
	*s = append(*s, strings.Split(value, ",")...)
	return nil
}

var (
	addr           string
	dsn            string
	signingKey     string
	allowedOrigins stringSliceFlag
)

func main() {
	flag.StringVar(&addr, "addr", "", "server address")
	flag.StringVar(&dsn, "dsn", "", "user directory connection string")
	flag.StringVar(&signingKey, "signing-key", "", "base64 encoded signing key")
	flag.Var(&allowedOrigins, "allowed-origins", "comma-separated list of allowed origins for CORS")
	flag.Parse()

	logger := log.New(os.Stderr, "[go-presence] ", log.LstdFlags)

	cfg, err := config.NewConfig(addr, dsn, signingKey, allowedOrigins)
	if err != nil {
		logger.Fatal("config:", err)
	}

	dir, err := directory.NewPgDirectory(context.Background(), cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("directory open:", err)
	}
	defer func() {
		if err := dir.Close(); err != nil {
			logger.Println("directory close:", err)
		}
	}()

	mux := http.NewServeMux()

	statsUpdater := stats.NewStatsUpdater(mux)

	presenceServer, err := server.NewPresenceServer(logger, dir, statsUpdater, cfg.TypingTimeout)
	if err != nil {
		logger.Fatal("new presence server:", err)
	}

	resolver := identity.NewJWTResolver(cfg.SigningKey, dir)
	srv := api.NewServer(mux, logger, presenceServer, resolver, cfg)

	statsUpdater.Run()
	defer statsUpdater.Stop()

	monitorCtx, stopMonitor := context.WithCancel(context.Background())
	monitor := server.NewHealthMonitor(logger, presenceServer, cfg.SweepInterval, cfg.LedgerMaxAge)
	go monitor.Run(monitorCtx)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Printf("received signal: %s\n", sig)
	case err := <-errCh:
		logger.Println("server:", err)
	}

	stopMonitor()

	shutDownCtx, cancel := context.WithTimeout(
		context.Background(),
		10*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutDownCtx); err != nil {
		logger.Fatalln("HTTP server shutdown:", err)
	}

	if err := presenceServer.Shutdown(shutDownCtx); err != nil {
		logger.Fatalln("presence server shutdown:", err)
	}

	logger.Println("shutdown complete")
}
