package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"ilkys.app/internal/migrate"
	"ilkys.app/internal/store/pg"
	"ilkys.app/internal/tenant"
)

func main() {
	log.SetFlags(0)
	var (
		dsn            = flag.String("dsn", os.Getenv("ILKYS_PG_DSN"), "PostgreSQL DSN")
		migrationsPath = flag.String("migrations", "migrations", "Path to SQL migrations")
		seedsPath      = flag.String("seeds", "seeds", "Path to SQL seeds")
	)
	flag.Parse()

	if *dsn == "" {
		log.Fatal("missing DSN: provide via -dsn or ILKYS_PG_DSN")
	}
	if len(flag.Args()) == 0 {
		log.Fatal("usage: migrate [up|down|seed|status|tenant <id>|adduser <tenant> <user> <role>|grant <tenant> <role> <permission>]")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := pg.Open(*dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer store.Close()

	mgr := migrate.NewManager(store.DB(), *migrationsPath, *seedsPath)

	switch cmd := flag.Arg(0); cmd {
	case "up":
		err = mgr.Up(ctx)
	case "down":
		err = mgr.Down(ctx)
	case "seed":
		err = mgr.Seed(ctx)
	case "status":
		var history []string
		history, err = mgr.Status(ctx)
		if err == nil {
			for _, item := range history {
				fmt.Println(item)
			}
		}
	case "tenant":
		err = provisionTenant(ctx, store, flag.Arg(1))
	case "adduser":
		if flag.NArg() != 4 {
			log.Fatal("usage: migrate adduser <tenant> <user> <role>")
		}
		err = store.AddTenantUser(ctx, flag.Arg(1), flag.Arg(2), flag.Arg(3))
	case "grant":
		if flag.NArg() != 4 {
			log.Fatal("usage: migrate grant <tenant> <role> <permission>")
		}
		err = store.GrantPermission(ctx, flag.Arg(1), flag.Arg(2), flag.Arg(3))
	default:
		log.Fatalf("unknown command %q", cmd)
	}
	if err != nil {
		log.Fatalf("migrate %s: %v", flag.Arg(0), err)
	}
}

// provisionTenant creates the management schema plus one tenant schema with
// a table per known entity.
func provisionTenant(ctx context.Context, store *pg.Store, rawID string) error {
	tc, err := tenant.Parse(rawID)
	if err != nil {
		return err
	}
	if err := store.EnsureManagement(ctx); err != nil {
		return err
	}
	if err := store.EnsureTenant(ctx, tc); err != nil {
		return err
	}
	fmt.Printf("tenant %s ready (schema %s)\n", tc.ID, tc.Schema())
	return nil
}
