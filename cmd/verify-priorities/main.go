package main

import (
	"fmt"
	"log"
	"os"

	"github.com/PriyavPithia/backend-priyav-cat/internal/config"
	"github.com/PriyavPithia/backend-priyav-cat/internal/database"
)

// Read-only invariant check over the cases table:
//  1. every emergency case carries URGENT priority
//  2. no retired priority values (HIGH) remain
//
// Exits non-zero when violations exist (suitable for post-migration CI checks).
func main() {
	cfg := config.Load()

	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		log.Fatalf("Cannot connect to database: %v", err)
	}
	defer db.Close()

	fmt.Printf("Connected to database: %s\n\n", cfg.Database.Database)

	var violations int
	err = db.QueryRow(`
		SELECT COUNT(*)
		FROM cases
		WHERE has_debt_emergency = TRUE
		  AND priority <> 'URGENT'
	`).Scan(&violations)
	if err != nil {
		log.Fatalf("Failed to count invariant violations: %v", err)
	}

	var legacy int
	err = db.QueryRow(`
		SELECT COUNT(*)
		FROM cases
		WHERE priority NOT IN ('LOW', 'NORMAL', 'URGENT')
	`).Scan(&legacy)
	if err != nil {
		log.Fatalf("Failed to count legacy priority values: %v", err)
	}

	if violations == 0 {
		fmt.Println("✅ All emergency cases carry URGENT priority")
	} else {
		fmt.Printf("❌ %d emergency case(s) without URGENT priority\n", violations)
	}

	if legacy == 0 {
		fmt.Println("✅ No retired priority values remain")
	} else {
		fmt.Printf("❌ %d row(s) still carry a retired priority value\n", legacy)
	}

	if violations > 0 || legacy > 0 {
		fmt.Println("\nRun cmd/migrate-priorities to repair.")
		os.Exit(1)
	}
}
