package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mvoka/fieldline/internal/server"
	"github.com/mvoka/fieldline/modules/compliance/infrastructure/persistence"
	"github.com/mvoka/fieldline/modules/compliance/services"
)

func main() {
	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, server.DBDSNFromEnv())
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Close()

	store := persistence.NewPolicyPGStore(pool)
	resolver := services.NewScopeResolver(store, services.ResolverConfig{
		RefreshInterval: server.RefreshIntervalFromEnv(),
	})
	go resolver.Run(ctx)

	h, err := server.NewHandlerWithOptions(server.HandlerOptions{
		ConfigStore: store,
		Resolver:    resolver,
		BaseContext: ctx,
	})
	if err != nil {
		log.Fatal(err)
	}

	srv := &http.Server{Addr: addr, Handler: h}
	go func() {
		<-ctx.Done()
		_ = srv.Shutdown(context.Background())
	}()

	log.Printf("listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal(err)
	}
}
