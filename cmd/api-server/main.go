// Command api-server serves the LUXE storefront API.
package main

import (
	"context"

	"github.com/go-faster/sdk/app"
	"go.uber.org/zap"

	luxe "github.com/xenking/luxe-store/internal/app"
)

func main() {
	app.Run(serve, app.WithServiceName(luxe.ServiceName))
}

func serve(ctx context.Context, lg *zap.Logger, t *app.Telemetry) error {
	cfg, err := luxe.LoadConfig()
	if err != nil {
		return err
	}
	if cfg.Storage.Driver == luxe.DriverMemory {
		lg.Warn("Using in-memory storage; carts and orders are lost on restart")
	}
	return luxe.Run(ctx, lg, t, cfg)
}
