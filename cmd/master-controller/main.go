package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hydroplant/master-controller/internal/app"
)

func main() {
	a, err := app.New()
	if err != nil {
		fmt.Printf("Failed to start master controller: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.Log.Info("master controller starting",
		"broker", fmt.Sprintf("%s:%d", a.Cfg.BrokerHost, a.Cfg.BrokerPort))
	if err := a.Run(ctx); err != nil {
		a.Log.Error("master controller stopped", "error", err)
		os.Exit(1)
	}
	a.Log.Info("master controller shut down")
}
