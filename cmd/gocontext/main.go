package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dshills/gocontext-search/internal/cli"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.Execute(ctx, cli.BuildInfo{Version: version, BuildTime: buildTime}); err != nil {
		// stdout is reserved for the MCP protocol in serve mode
		fmt.Fprintf(os.Stderr, "gocontext: %v\n", err)
		stop()
		os.Exit(1)
	}
}
