// upstream-probe performs a one-shot GET through the full resilient pipeline.
// Useful for checking an upstream's health and the configured rate/breaker
// settings from the shell:
//
//	upstream-probe -name dexscreener -url https://api.dexscreener.com/latest/dex/search -param q=SOL
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coinlens/upstream"
	"github.com/coinlens/upstream/cmd/upstream-probe/config"
)

var (
	name      = flag.String("name", "probe", "Logical upstream name for logs")
	rawURL    = flag.String("url", "", "URL to fetch (required)")
	timeout   = flag.Duration("timeout", 30*time.Second, "Overall probe deadline")
	keyHeader = flag.String("key-header", "", "Header to carry the API key, e.g. X-API-Key")
	keyEnv    = flag.String("key-env", "", "Environment variable holding the API key")
	repeat    = flag.Int("repeat", 1, "Number of fetches (later ones may be cache hits)")
)

// params collects repeatable -param key=value flags.
type params map[string]string

func (p params) String() string { return fmt.Sprint(map[string]string(p)) }

func (p params) Set(kv string) error {
	for i := range kv {
		if kv[i] == '=' {
			p[kv[:i]] = kv[i+1:]
			return nil
		}
	}
	return fmt.Errorf("expected key=value, got %q", kv)
}

func main() {
	queryParams := params{}
	flag.Var(queryParams, "param", "Query parameter as key=value (repeatable)")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	// A .env file is optional, but a malformed one should not probe with
	// half-applied settings.
	if err := config.LoadDotEnv(".env"); err != nil && !os.IsNotExist(err) {
		logger.Error("bad .env file", "error", err)
		os.Exit(1)
	}

	if *rawURL == "" {
		fmt.Fprintln(os.Stderr, "usage: upstream-probe -url <url> [-name <upstream>] [-param k=v]...")
		os.Exit(2)
	}

	cfg, err := upstream.LoadConfig(*name)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	opts := []upstream.Option{upstream.WithLogger(logger)}
	if *keyHeader != "" && *keyEnv != "" {
		opts = append(opts, upstream.WithAPIKey(*keyHeader, upstream.NewCredential(*keyEnv, *keyEnv)))
	}

	client, err := upstream.NewFromConfig(*cfg, opts...)
	if err != nil {
		logger.Error("failed to create client", "error", err)
		os.Exit(1)
	}
	defer client.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	ctx, cancelTimeout := context.WithTimeout(ctx, *timeout)
	defer cancelTimeout()

	callOpts := make([]upstream.CallOption, 0, len(queryParams))
	for k, v := range queryParams {
		callOpts = append(callOpts, upstream.WithParam(k, v))
	}

	exitCode := 0
	for i := 0; i < *repeat; i++ {
		body := client.Get(ctx, *rawURL, callOpts...)
		if body == nil {
			// The client already logged why.
			fmt.Println("null")
			exitCode = 1
			continue
		}
		fmt.Println(string(body))
	}

	logger.Info("probe finished",
		"upstream", client.Name(),
		"breaker", client.BreakerState(),
		"tokens", client.Tokens(),
		"cached", client.CacheLen(),
	)
	os.Exit(exitCode)
}
