// Seed bootstraps the database schema and, in dev mode, a couple of demo
// accounts for exercising the checkout flow locally.
package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"cv-builder-payments/internal/config"
	"cv-builder-payments/internal/domain/model"
	"cv-builder-payments/internal/domain/ports/repository"
	pg "cv-builder-payments/internal/infra/db/postgres"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 2)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	if _, err := pool.Exec(ctx, pg.Schema); err != nil {
		log.Fatalf("apply schema: %v", err)
	}
	fmt.Println("schema applied")

	if !cfg.Runtime.Dev {
		return
	}

	accounts := pg.NewAccountRepo(pool)
	demo := []struct {
		id, email, name string
	}{
		{"demo-user-1", "layla@example.com", "Layla Hassan"},
		{"demo-user-2", "omar@example.com", "Omar Farouk"},
	}
	for _, d := range demo {
		a, err := model.NewAccount(d.id, d.email, d.name)
		if err != nil {
			log.Fatalf("demo account %s: %v", d.id, err)
		}
		if err := accounts.Save(ctx, repository.NoTX, a); err != nil {
			log.Fatalf("save demo account %s: %v", d.id, err)
		}
		fmt.Printf("seeded account %s (%s)\n", d.id, d.email)
	}
}
