package main

import (
	"context"
	"log"
	"os"

	"github.com/CrisisCore-Systems/pain-tracker-sub013/internal/buildinfo"
	"github.com/CrisisCore-Systems/pain-tracker-sub013/internal/client/cli"
	"github.com/CrisisCore-Systems/pain-tracker-sub013/internal/client/config"
)

func main() {

	buildinfo.PrintBuildData(os.Stdout)

	ctx := context.Background()
	cfg := config.LoadConfig()
	app, err := cli.NewApp(ctx, cfg)

	if err != nil {
		log.Fatalf("%v", err)
		return
	}

	app.Run(ctx)

}
