package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"github.com/lampaBiurkowa/spin-snowball/internal/app"
)

func main() {
	addr := flag.String("addr", "", "listen address (default :9001)")
	mapPath := flag.String("map", "default_map.json", "path to the map document")
	clientDir := flag.String("client", "", "optional static client directory")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, app.Config{
		Addr:      *addr,
		MapPath:   *mapPath,
		ClientDir: *clientDir,
	}); err != nil {
		log.Fatalf("%v", err)
	}
}
