// Package main harvests configurations once, outside the Temporal schedule.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nucleus/harvest-core/internal/bootstrap"
	"github.com/nucleus/harvest-core/internal/config"
)

func main() {
	var (
		configID = flag.Int64("config", 0, "harvest configuration id")
		force    = flag.Bool("force", false, "run even when the schedule is not due")
		list     = flag.Bool("list", false, "print the configurations that are due and exit")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := bootstrap.Build(ctx, cfg, nil)
	if err != nil {
		log.Fatalf("bootstrap: %v", err)
	}
	defer svc.Close()

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	if *list {
		configs, err := svc.Configs.List(ctx)
		if err != nil {
			log.Fatalf("list: %v", err)
		}
		now := time.Now()
		type due struct {
			ID      int64     `json:"id"`
			Name    string    `json:"name"`
			NextRun time.Time `json:"nextRun"`
		}
		out := []due{}
		for _, c := range configs {
			if !c.Content.Enabled || !svc.Gate.CanRun(c, now) {
				continue
			}
			next, _ := svc.Gate.Next(c, now)
			out = append(out, due{ID: c.ID, Name: c.Content.Name, NextRun: next})
		}
		if err := enc.Encode(out); err != nil {
			log.Fatalf("encode: %v", err)
		}
		return
	}

	if *configID == 0 {
		flag.Usage()
		os.Exit(2)
	}
	hc, err := svc.Configs.Get(ctx, *configID)
	if err != nil {
		log.Fatalf("config %d: %v", *configID, err)
	}
	if !*force && !svc.Gate.CanRun(hc, time.Now()) {
		log.Printf("config %d is not due; use -force to run anyway", hc.ID)
		return
	}

	log.Printf("Harvesting config %d (%s) version %d", hc.ID, hc.Content.Name, hc.Version)
	res, err := svc.Runner.Run(ctx, hc)
	if err != nil {
		log.Fatalf("harvest config %d: %v", hc.ID, err)
	}
	if err := enc.Encode(res); err != nil {
		log.Fatalf("encode: %v", err)
	}
}
