// Command diaryxd serves the Diaryx Sync Server (spec.md §4.7) over a
// websocket endpoint, wiring gofiber/fiber's HTTP server and
// gofiber/contrib/websocket's connection upgrade the same way the teacher
// repo wires fiber elsewhere, with internal/syncserver doing the actual
// multi-tenant CRDT relay work.
package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"net/url"
	"strings"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"github.com/goliatone/diaryx-sync/internal/logging/gologger"
	"github.com/goliatone/diaryx-sync/internal/store"
	"github.com/goliatone/diaryx-sync/internal/syncserver"
)

func main() {
	addr := flag.String("addr", ":8787", "listen address")
	deviceID := flag.String("device-id", "diaryxd", "server-side CRDT device id")
	storeProvider := flag.String("store", "memory", "update store provider: memory or bun")
	storeDSN := flag.String("store-dsn", "file:diaryx.db?cache=shared", "sqlite DSN when -store=bun")
	token := flag.String("token", "", "single shared sync token for registered (read-write) clients")
	allowGuests := flag.Bool("allow-guests", true, "admit read-only guest connections via the session query parameter")
	logLevel := flag.String("log-level", "info", "log level: trace, debug, info, warn, error")
	flag.Parse()

	provider, err := gologger.NewProvider(gologger.Config{Level: *logLevel, Format: "console"})
	if err != nil {
		log.Fatalf("diaryxd: logger setup: %v", err)
	}
	logger := provider.GetLogger("diaryxd")

	st, err := buildStore(*storeProvider, *storeDSN)
	if err != nil {
		log.Fatalf("diaryxd: store setup: %v", err)
	}

	tokens := map[string]syncserver.AuthenticatedUser{}
	if *token != "" {
		tokens[*token] = syncserver.AuthenticatedUser{UserID: "registered", ReadOnly: false}
	}
	auth := syncserver.NewTokenAuthenticator(tokens, *allowGuests)

	srv := syncserver.New(st, auth, logger, *deviceID)

	app := fiber.New(fiber.Config{DisableStartupMessage: true})

	app.Use("/sync2", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("workspaceID", c.Query("workspace"))
			c.Locals("token", c.Query("token"))
			c.Locals("query", queryMap(c))
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/sync2", websocket.New(func(conn *websocket.Conn) {
		workspaceID, _ := conn.Locals("workspaceID").(string)
		tok, _ := conn.Locals("token").(string)
		query, _ := conn.Locals("query").(map[string]string)

		if err := srv.HandleConnection(context.Background(), workspaceID, tok, query, conn); err != nil {
			logger.Warn("diaryxd: connection closed with error", "workspace", workspaceID, "error", err)
		}
	}))

	logger.Info("diaryxd: listening", "addr", *addr)
	if err := app.Listen(*addr); err != nil {
		log.Fatalf("diaryxd: serve: %v", err)
	}
}

func buildStore(provider, dsn string) (store.Store, error) {
	switch strings.ToLower(provider) {
	case "", "memory":
		return store.NewMemoryStore(), nil
	case "bun":
		sqldb, err := sql.Open("sqlite3", dsn)
		if err != nil {
			return nil, err
		}
		db := bun.NewDB(sqldb, sqlitedialect.New())
		bunStore := store.NewBunStore(db)
		if err := bunStore.EnsureSchema(context.Background()); err != nil {
			return nil, err
		}
		return bunStore, nil
	default:
		log.Fatalf("diaryxd: unknown store provider %q", provider)
		return nil, nil
	}
}

func queryMap(c *fiber.Ctx) map[string]string {
	out := make(map[string]string)
	c.Context().QueryArgs().VisitAll(func(key, value []byte) {
		k, err := url.QueryUnescape(string(key))
		if err != nil {
			k = string(key)
		}
		out[k] = string(value)
	})
	return out
}
