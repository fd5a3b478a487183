// Command syncctl runs the device sync client against the API from a terminal.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/sprayline/foamops-api/internal/auth"
	"github.com/sprayline/foamops-api/internal/config"
	"github.com/sprayline/foamops-api/internal/domain"
	"github.com/sprayline/foamops-api/internal/logger"
	"github.com/sprayline/foamops-api/internal/storage"
	"github.com/sprayline/foamops-api/internal/syncer"
)

const usage = "usage: syncctl [pull|push|sync|show|note <estimate-id> <text>]"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	args := os.Args[1:]
	if len(args) == 0 {
		return errors.New(usage)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	log, err := logger.NewLogger(&cfg.Logging, &cfg.App)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	store, err := storage.NewStorage(&cfg.Storage, log)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	role := domain.RoleAdmin
	if roles := auth.ParseRoles([]string{cfg.Sync.Role}); len(roles) == 1 {
		role = roles[0]
	}

	c := syncer.New(
		syncer.NewHTTPTransport(&cfg.Sync),
		syncer.NewStorageCache(store, log),
		syncer.NewLogNotifier(log),
		log,
		syncer.Options{
			Username:  cfg.Sync.Username,
			Role:      role,
			Debounce:  cfg.Sync.Debounce(),
			RetryBase: cfg.Sync.RetryBase(),
		},
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch args[0] {
	case "pull":
		source := c.Start(ctx)
		return printSummary(source, c.Snapshot())

	case "push":
		source := c.LoadCached(ctx)
		if source == syncer.SourceDefaults {
			return fmt.Errorf("nothing cached for %q", cfg.Sync.Username)
		}
		return c.SyncNow(ctx)

	case "sync":
		c.LoadCached(ctx)
		if err := c.Refresh(ctx); err != nil {
			return err
		}
		return c.SyncNow(ctx)

	case "show":
		c.LoadCached(ctx)
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(c.Snapshot())

	case "note":
		if len(args) < 3 {
			return errors.New(usage)
		}
		id, err := uuid.Parse(args[1])
		if err != nil {
			return fmt.Errorf("invalid estimate id: %w", err)
		}
		c.Start(ctx)
		if !hasEstimate(c.Snapshot(), id) {
			return fmt.Errorf("estimate %s not found", id)
		}
		err = c.Mutate(ctx, func(s *domain.TenantSnapshot) {
			for i := range s.Estimates {
				if s.Estimates[i].ID == id {
					s.Estimates[i].Notes = strings.Join(args[2:], " ")
				}
			}
		})
		if err != nil {
			return err
		}
		// Close pushes the pending edit instead of waiting out the debounce
		return c.Close(ctx)

	default:
		return fmt.Errorf("unknown command: %s", args[0])
	}
}

func printSummary(source syncer.Source, snap *domain.TenantSnapshot) error {
	byStatus := map[domain.EstimateStatus]int{}
	for _, e := range snap.Estimates {
		byStatus[e.Status]++
	}
	fmt.Printf("source:      %s\n", source)
	fmt.Printf("estimates:   %d %v\n", len(snap.Estimates), byStatus)
	fmt.Printf("open cell:   %.2f sets\n", snap.Warehouse.OpenCellSets)
	fmt.Printf("closed cell: %.2f sets\n", snap.Warehouse.ClosedCellSets)
	fmt.Printf("items:       %d\n", len(snap.Warehouse.Items))
	return nil
}

func hasEstimate(snap *domain.TenantSnapshot, id uuid.UUID) bool {
	for _, e := range snap.Estimates {
		if e.ID == id {
			return true
		}
	}
	return false
}
