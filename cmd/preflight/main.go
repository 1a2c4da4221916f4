// cmd/preflight/main.go
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/hamed0406/chainwatch/internal/catalog"
	"github.com/hamed0406/chainwatch/internal/config"
)

func main() {
	fail := func(msg string) {
		fmt.Fprintln(os.Stderr, "✖", msg)
		os.Exit(1)
	}
	warn := func(msg string) { fmt.Fprintln(os.Stderr, "⚠", msg) }
	ok := func(msg string) { fmt.Println("✔", msg) }

	cfg := config.FromEnv()

	db := strings.TrimSpace(cfg.DatabaseURL)
	if db == "" {
		warn("DATABASE_URL empty — worker will use the in-memory store; history is lost on restart.")
	} else {
		ok("DATABASE_URL present")
	}

	f, err := catalog.Load(cfg.CatalogFile)
	if err != nil {
		fail(fmt.Sprintf("catalog %s: %v", cfg.CatalogFile, err))
	}
	nEndpoints := 0
	for _, p := range f.Projects {
		for _, n := range p.Networks {
			nEndpoints += len(n.Endpoints)
		}
	}
	if nEndpoints == 0 {
		warn("catalog has no endpoints; the worker will idle.")
	} else {
		ok(fmt.Sprintf("catalog %s: %d project(s), %d endpoint(s)", cfg.CatalogFile, len(f.Projects), nEndpoints))
	}

	if nEndpoints > cfg.BatchLimit {
		warn(fmt.Sprintf("BATCH_LIMIT=%d is below catalog size %d; some endpoints wait for later cycles.", cfg.BatchLimit, nEndpoints))
	}

	ok(fmt.Sprintf("interval=%s timeout=%s concurrency=%d", cfg.CheckInterval, cfg.RequestTimeout, cfg.Concurrency))
}
