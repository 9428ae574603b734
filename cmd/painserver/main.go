package main

import (
	"context"
	"log"
	"os"

	"github.com/CrisisCore-Systems/pain-tracker-sub013/internal/buildinfo"
	"github.com/CrisisCore-Systems/pain-tracker-sub013/internal/server"
	"github.com/CrisisCore-Systems/pain-tracker-sub013/internal/server/config"
)

func main() {
	buildinfo.PrintBuildData(os.Stdout)

	ctx := context.Background()
	cfg := config.LoadConfig()

	app, err := server.NewApp(ctx, cfg)
	if err != nil {
		log.Printf("%v", err)
		return
	}

	if err := app.Run(ctx); err != nil {
		log.Printf("%v", err)
	}
}
