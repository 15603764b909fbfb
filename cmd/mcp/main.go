// Command mcp serves the CRM as MCP tools over stdio for the account named by
// MCP_USER_EMAIL. Logs go to stderr; stdout carries the protocol.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"crm_backend/internal/activities"
	"crm_backend/internal/auth"
	"crm_backend/internal/auth/lockout"
	"crm_backend/internal/contacts"
	contactsservice "crm_backend/internal/contacts/service"
	"crm_backend/internal/events"
	"crm_backend/internal/mcpserver"
	"crm_backend/internal/pipeline"
	"crm_backend/platform/config"
	"crm_backend/platform/db"
	"crm_backend/platform/logger"
	"crm_backend/platform/validator"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.NewWithWriter(cfg.Env, os.Stderr)

	if cfg.MCPUserEmail == "" {
		log.Error("MCP_USER_EMAIL is required")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	eventBus := events.NewInMemoryBus(log)
	val := validator.New()

	authModule := auth.NewModule(pool, cfg, lockout.Noop{}, eventBus, val, log)
	userID, err := authModule.Service().ResolveUserID(ctx, cfg.MCPUserEmail)
	if err != nil {
		log.Error("failed to resolve MCP user", "email", cfg.MCPUserEmail, "error", err)
		os.Exit(1)
	}

	bucket := cfg.GetMinioBucketAttachments()
	contactsModule := contacts.NewModule(pool, pipeline.NewAggregator(pipeline.DefaultTaxonomy()), eventBus, val, log, contactsservice.Options{
		PhoneRegion:      cfg.GetPhoneDefaultRegion(),
		AttachmentBucket: bucket,
	})
	activitiesModule := activities.NewModule(pool, eventBus, val, log, bucket)

	handlers := mcpserver.NewHandlers(userID, contactsModule.Service(), activitiesModule.Service(), val, log)

	log.Info("starting MCP server", "userId", userID)
	if err := mcpserver.Run(ctx, handlers); err != nil && ctx.Err() == nil {
		log.Error("mcp server stopped", "error", err)
		eventBus.Wait()
		os.Exit(1)
	}
	eventBus.Wait()
}
