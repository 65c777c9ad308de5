package main

import (
	"context"
	"log"

	"github.com/mvrcrypto/customapi/internal/server"
)

func main() {
	ctx := context.Background()

	app, err := server.NewApp(ctx)
	if err != nil {
		log.Fatalf("startup error: %v", err)
	}

	if err := app.Run(ctx); err != nil {
		log.Fatalf("shutdown error: %v", err)
	}
}
