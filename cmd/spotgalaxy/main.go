package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/milkywaybrain/spotgalaxy/internal/config"
	"github.com/milkywaybrain/spotgalaxy/internal/initializer"
)

func main() {
	cfgPath := flag.String("config", "./config.json", "path of the JSON config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "spotgalaxy:", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err = initializer.Start(ctx, cfg); err != nil {
		fmt.Fprintln(os.Stderr, "spotgalaxy:", err)
		stop()
		os.Exit(1)
	}
}
