package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/unkn0wn-root/gistcache"
	"github.com/unkn0wn-root/gistcache/internal/app"
	"github.com/unkn0wn-root/gistcache/internal/config"
	"github.com/unkn0wn-root/gistcache/internal/server"
	"github.com/unkn0wn-root/gistcache/log/recorder"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", getenvDefault("GISTCACHE_CONFIG", "/gistcache.yaml"), "path to gistcache.yaml")
	flag.Parse()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("init: %v", err)
	}

	var (
		rec      *recorder.Recorder
		gatherer prometheus.Gatherer
	)
	if cfg.Server.Debug {
		rec = a.Recorder
	}
	if cfg.Server.Metrics {
		gatherer = a.Registry
	}

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		_ = a.Close(context.Background())
		log.Fatalf("listen %s: %v", addr, err)
	}

	srv := &http.Server{
		Handler: server.Handler(server.Config{
			Service:  a.Cache,
			Parser:   a.Parser,
			Log:      a.Log,
			Owner:    cfg.Server.Owner,
			MaxBody:  int64(cfg.Server.MaxBody),
			Recorder: rec,
			Gatherer: gatherer,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		a.Log.Info("gistcached listening", gistcache.Fields{"addr": addr, "provider": cfg.Cache.Provider, "durable": cfg.Durable.Backend})
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Log.Error("serve failed", gistcache.Fields{"err": err})
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.Log.Warn("shutdown", gistcache.Fields{"err": err})
	}
	if err := a.Close(shutdownCtx); err != nil {
		a.Log.Warn("close", gistcache.Fields{"err": err})
	}
}

func getenvDefault(name, def string) string {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	return v
}
