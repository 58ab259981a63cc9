// Command worker runs jobs delivered by asynchronous Lambda invocation.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/garrettladley/slackerp/internal/app"
	"github.com/garrettladley/slackerp/internal/config"
	"github.com/garrettladley/slackerp/internal/jobs"
	"github.com/garrettladley/slackerp/internal/xslog"
)

func main() {
	logger := xslog.NewLoggerFromEnv(os.Stdout)
	slog.SetDefault(logger)

	ctx := context.Background()
	holder, err := config.Load()
	if err != nil {
		logger.ErrorContext(ctx, "failed to read config", xslog.Error(err))
		os.Exit(1)
	}

	a, err := app.New(ctx, holder, logger)
	if err != nil {
		logger.ErrorContext(ctx, "fatal error", xslog.Error(err))
		os.Exit(1)
	}
	defer func() {
		_ = a.Close()
	}()

	lambda.Start(jobs.LambdaHandler(a.Runner, a.Queue))
}
