package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"swingy/server/internal/app"
	"swingy/server/internal/config"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		log.Fatalf("%v", err)
	}
	cfg, errs := config.FromEnv()
	for _, err := range errs {
		log.Printf("config: %v (using default)", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, cfg); err != nil {
		log.Fatalf("%v", err)
	}
}
