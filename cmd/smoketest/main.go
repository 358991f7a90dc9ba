// Command smoketest runs the deployment traffic hooks against a running
// marketplace instance. It is invoked by the deployment pipeline before and
// after traffic is shifted to a new version and exits non-zero on failure.
//
//	smoketest -url http://localhost:8080 -phase before
//	AUTH_SIGNING_KEY=... smoketest -url http://localhost:8080 -phase after
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/dawidbera/secure-serverless-marketplace/internal/deploy"
	"github.com/dawidbera/secure-serverless-marketplace/internal/httpx/middlewares"
	"github.com/dawidbera/secure-serverless-marketplace/internal/pkg/telemetry"
)

func main() {
	telemetry.InitLogger()

	url := flag.String("url", "http://localhost:8080", "base URL of the instance under test")
	phase := flag.String("phase", "before", "traffic hook phase: before or after")
	timeout := flag.Duration("timeout", 30*time.Second, "overall check timeout")
	flag.Parse()

	signingKey := os.Getenv("AUTH_SIGNING_KEY")
	token := middlewares.MintToken([]byte(signingKey), "deploy-smoke")

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	smoke := deploy.NewSmoke(*url, token)

	var err error
	switch *phase {
	case "before":
		err = smoke.BeforeAllowTraffic(ctx)
	case "after":
		err = smoke.AfterAllowTraffic(ctx)
	default:
		slog.Error("unknown phase", "phase", *phase)
		os.Exit(2)
	}

	if err != nil {
		slog.Error("smoke check failed", "phase", *phase, "url", *url, "error", err)
		os.Exit(1)
	}
	slog.Info("smoke check passed", "phase", *phase, "url", *url)
}
