// Package main runs the periodic harvester Temporal worker.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/nucleus/harvest-core/internal/activities"
	"github.com/nucleus/harvest-core/internal/bootstrap"
	"github.com/nucleus/harvest-core/internal/config"
	"github.com/nucleus/harvest-core/internal/temporal"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	log.Printf("Starting harvest worker: address=%s namespace=%s queue=%s concurrency=%d",
		cfg.TemporalHost, cfg.TemporalNamespace, cfg.TemporalTaskQueue, cfg.MaxConcurrency)

	ctx := context.Background()
	svc, err := bootstrap.Build(ctx, cfg, prometheus.DefaultRegisterer)
	if err != nil {
		log.Fatalf("bootstrap: %v", err)
	}
	defer svc.Close()

	tc, err := temporal.NewClient(cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer tc.Close()

	if cfg.ScheduleCron != "" {
		err := tc.EnsureSchedule(ctx, temporal.ScheduleID, cfg.ScheduleCron, cfg.TimeZone,
			activities.ScheduledHarvestWorkflowName, activities.ScheduledHarvestInput{})
		if err != nil {
			log.Fatalf("schedule: %v", err)
		}
		log.Printf("Schedule %s: cron=%q tz=%s", temporal.ScheduleID, cfg.ScheduleCron, cfg.TimeZone)
	}

	w := worker.New(tc.Client(), tc.TaskQueue(), worker.Options{})
	w.RegisterWorkflowWithOptions(activities.ScheduledHarvestWorkflow, workflow.RegisterOptions{
		Name: activities.ScheduledHarvestWorkflowName,
	})
	acts := activities.NewActivities(svc.Configs, svc.Gate, svc.Runner)
	w.RegisterActivity(acts.ListRunnableConfigs)
	w.RegisterActivity(acts.RunHarvest)
	log.Printf("Registered workflow %s and 2 activities: ListRunnableConfigs, RunHarvest", activities.ScheduledHarvestWorkflowName)

	grpcServer, healthSrv, err := serveHealth(cfg.HealthPort)
	if err != nil {
		log.Fatalf("health: %v", err)
	}
	metricsSrv := serveMetrics(cfg.MetricsAddr)

	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Printf("Worker failed: %v", err)
	}

	healthSrv.Shutdown()
	grpcServer.GracefulStop()
	if err := metricsSrv.Shutdown(context.Background()); err != nil {
		log.Printf("metrics shutdown: %v", err)
	}
	log.Printf("Harvest worker stopped")
}

func serveHealth(port int) (*grpc.Server, *health.Server, error) {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, nil, fmt.Errorf("listen: %w", err)
	}
	grpcServer := grpc.NewServer()
	healthSrv := health.NewServer()
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthSrv)

	go func() {
		log.Printf("Health gRPC listening on :%d", port)
		if err := grpcServer.Serve(lis); err != nil {
			log.Printf("health serve: %v", err)
		}
	}()
	return grpcServer, healthSrv, nil
}

func serveMetrics(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		log.Printf("Metrics listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("metrics serve: %v", err)
		}
	}()
	return srv
}
