package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"zentao-mcp/server/internal/mcp"
	"zentao-mcp/server/internal/modules"
	"zentao-mcp/server/internal/modules/zentao"
	"zentao-mcp/server/internal/observability"
	"zentao-mcp/server/pkg/zentaoapi"
)

func main() {
	// Stdout carries the MCP protocol stream; logs go to stderr.
	log.SetOutput(os.Stderr)

	var (
		url      = flag.String("zentao-url", "", "ZenTao base URL (env: ZENTAO_URL)")
		account  = flag.String("zentao-account", "", "ZenTao account (env: ZENTAO_ACCOUNT)")
		password = flag.String("zentao-password", "", "ZenTao password (env: ZENTAO_PASSWORD)")
	)
	flag.Parse()

	cfg := resolveConfig(*url, *account, *password)

	// Initialize observability (stderr + optional Loki)
	observability.Init()

	client := zentaoapi.NewClient(cfg.url, cfg.account, cfg.password)
	modules.RegisterModule(zentao.New(client))
	log.Printf("Registered modules: %v", modules.ListModules())
	log.Printf("Upstream: %s (account: %s)", cfg.url, cfg.account)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	transport := mcp.NewStdioTransport(mcp.NewHandler(), os.Stdout)
	if err := transport.Serve(ctx, os.Stdin); err != nil && ctx.Err() == nil {
		observability.LogError("stdio transport", err)
		os.Exit(1)
	}
	log.Printf("Server stopped")
}

type config struct {
	url      string
	account  string
	password string
}

// resolveConfig applies flag values with environment fallback. Flags win.
func resolveConfig(url, account, password string) config {
	cfg := config{
		url:      firstNonEmpty(url, os.Getenv("ZENTAO_URL")),
		account:  firstNonEmpty(account, os.Getenv("ZENTAO_ACCOUNT")),
		password: firstNonEmpty(password, os.Getenv("ZENTAO_PASSWORD")),
	}
	if cfg.url == "" || cfg.account == "" || cfg.password == "" {
		log.Fatal("ZenTao connection is not configured. Set --zentao-url, --zentao-account and --zentao-password (or ZENTAO_URL, ZENTAO_ACCOUNT, ZENTAO_PASSWORD)")
	}
	return cfg
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
