// Command web serves the usage EDA HTTP API over the datasets in the
// configured data directory.
package main

import (
	"context"
	"log/slog"
	"os"

	"tellcocli/internal/app"
	"tellcocli/internal/infrastructure"
)

func main() {
	ctx := context.Background()

	application, err := app.NewApplication(ctx, nil, app.Options{})
	if err != nil {
		slog.Error("Failed to initialize application", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := application.Run(ctx); err != nil {
		application.Logger.Error("Application error", slog.String("error", err.Error()))
		_ = infrastructure.CloseLogFile()
		os.Exit(1)
	}
	_ = infrastructure.CloseLogFile()
}
