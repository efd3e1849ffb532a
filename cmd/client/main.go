package main

import (
	"context"
	"log"

	"github.com/Aphrodine-wq/clipsync/internal/client"
	"github.com/Aphrodine-wq/clipsync/internal/client/config"
)

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()
	app, err := client.NewApp(cfg)

	if err != nil {
		log.Printf("%v", err)
		return
	}

	app.Run(ctx)

}
