// Command receiver serves Slack callbacks and ERP webhooks behind API
// Gateway. Jobs are handed to the worker function (JOBS_BACKEND=lambda).
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/garrettladley/slackerp/internal/app"
	"github.com/garrettladley/slackerp/internal/config"
	"github.com/garrettladley/slackerp/internal/xhttp"
	"github.com/garrettladley/slackerp/internal/xslog"
)

func main() {
	logger := xslog.NewLoggerFromEnv(os.Stdout)
	slog.SetDefault(logger)

	ctx := context.Background()
	a, err := bootstrap(ctx, logger)
	if err != nil {
		logger.ErrorContext(ctx, "fatal error", xslog.Error(err))
		os.Exit(1)
	}
	defer func() {
		_ = a.Close()
	}()

	lambda.Start(xhttp.APIGatewayHandler(a.Handler()))
}

func bootstrap(ctx context.Context, logger *slog.Logger) (*app.App, error) {
	holder, err := config.Load()
	if err != nil {
		return nil, err
	}
	return app.New(ctx, holder, logger)
}
