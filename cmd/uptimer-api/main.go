package main

import (
	"context"
	"log"

	"github.com/MrSnakeDoc/uptimer/internal/app"
	"github.com/MrSnakeDoc/uptimer/internal/config"
)

func main() {
	a, err := app.New(context.Background(), config.Load())
	if err != nil {
		log.Fatalf("❌ uptimer-api failed to start: %v", err)
	}

	err = a.Serve()
	a.Close()
	if err != nil {
		log.Fatalf("❌ uptimer-api failed: %v", err)
	}
}
