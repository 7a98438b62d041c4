package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/PriyavPithia/backend-priyav-cat/internal/config"
	"github.com/PriyavPithia/backend-priyav-cat/internal/database"
)

// Applies a schema migration file from migrations/ (plain SQL, statements
// separated by semicolons). Data migrations live in cmd/migrate-priorities.
func main() {
	if len(os.Args) < 2 {
		log.Fatalf("Usage: %s <migration_file.sql>", os.Args[0])
	}

	migrationFile := os.Args[1]
	sqlContent, err := os.ReadFile(migrationFile)
	if err != nil {
		log.Fatalf("Failed to read migration file: %v", err)
	}

	cfg := config.Load()

	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		log.Fatalf("Cannot connect to database: %v", err)
	}
	defer db.Close()

	fmt.Printf("Connected to database: %s\n\n", cfg.Database.Database)

	// Split SQL by semicolon and execute each statement
	statements := strings.Split(string(sqlContent), ";")
	for i, stmt := range statements {
		stmt = stripLeadingComments(stmt)
		if stmt == "" {
			continue
		}

		fmt.Printf("Executing statement %d/%d...\n", i+1, len(statements))
		if _, err := db.Exec(stmt); err != nil {
			log.Fatalf("Failed to execute statement %d: %v\nStatement: %s", i+1, err, stmt[:min(100, len(stmt))])
		}
		fmt.Printf("✅ Statement %d executed successfully\n\n", i+1)
	}

	fmt.Println("✅ Migration completed successfully!")
}

// stripLeadingComments 去掉语句块开头的 -- 注释行
func stripLeadingComments(stmt string) string {
	lines := strings.Split(stmt, "\n")
	var kept []string
	body := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if !body && (trimmed == "" || strings.HasPrefix(trimmed, "--")) {
			continue
		}
		body = true
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
