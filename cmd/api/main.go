package main

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ilkys.app/internal/access"
	"ilkys.app/internal/audit"
	"ilkys.app/internal/httpapi"
	"ilkys.app/internal/monitor"
	"ilkys.app/internal/obs"
	"ilkys.app/internal/store/pg"
	"ilkys.app/internal/tenant"
)

var (
	version = "0.3.0"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	dsn := os.Getenv("ILKYS_PG_DSN")
	if dsn == "" {
		log.Fatal("missing ILKYS_PG_DSN")
	}
	store, err := pg.Open(dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer store.Close()

	recorder := audit.NewRecorder(store, 1024)

	mon := monitor.New(
		monitor.WithInterval(30*time.Second),
		monitor.WithEscalateAfter(5*time.Minute),
		monitor.WithNotifier(monitor.LogNotifier{}),
	)
	mon.Register("database", func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return store.DB().PingContext(ctx)
	})

	probe := httpapi.ReadyProbe{DB: store.DB()}
	api := httpapi.New(httpapi.Config{
		ReadyProbe:    probe,
		Resolver:      tenant.Resolver{BaseDomain: os.Getenv("ILKYS_BASE_DOMAIN")},
		Verifier:      access.NewVerifier(store, recorder),
		Store:         store,
		Recorder:      recorder,
		Monitor:       mon,
		Version:       version,
		RateBurst:     40,
		RatePerSecond: 20,
	})

	httpAddr := os.Getenv("ILKYS_HTTP_ADDR")
	if httpAddr == "" {
		httpAddr = ":8080"
	}
	srv := &http.Server{
		Addr:              httpAddr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mon.Start(ctx)

	grpcSrv := httpapi.NewGRPCServer(probe, mon)
	if grpcAddr := os.Getenv("ILKYS_GRPC_ADDR"); grpcAddr != "" {
		lis, err := net.Listen("tcp", grpcAddr)
		if err != nil {
			log.Fatalf("grpc listen: %v", err)
		}
		go func() {
			log.Printf("grpc health on %s", grpcAddr)
			if err := grpcSrv.Start(ctx, lis, 10*time.Second); err != nil {
				log.Printf("grpc serve: %v", err)
			}
		}()
	}

	log.Printf("Starting ilkys-api %s on %s", version, srv.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Println("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = srv.Shutdown(shutdownCtx)
	grpcSrv.GracefulStop()
	cancel()
	mon.Stop()
	if err := recorder.Close(shutdownCtx); err != nil {
		log.Printf("audit drain: %v", err)
	}
	log.Println("Stopped")
}
