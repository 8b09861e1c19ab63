// Command server runs the arrangement map catalog API.
package main

import (
	"context"
	"log"

	"github.com/dmitrijs2005/cartographer/internal/server"
	"github.com/dmitrijs2005/cartographer/internal/server/config"
)

func main() {
	ctx := context.Background()

	app, err := server.NewApp(ctx, config.LoadConfig())
	if err != nil {
		log.Fatalf("cartographer: %v", err)
	}

	app.Run(ctx)
}
