package main

import (
	"context"
	"log"

	corecmd "github.com/infohelper/euwork-bot/core/cmd"
	"github.com/infohelper/euwork-bot/core/config"
)

func main() {
	err := corecmd.Run(context.Background(), corecmd.Options{
		DefaultConfigPath: "config.yaml",
		Bootstrap: func(ctx context.Context, cfg *config.Config) (corecmd.App, error) {
			return newApp(ctx, cfg)
		},
	})
	if err != nil {
		log.Fatalf("euworkbot: %v", err)
	}
}
