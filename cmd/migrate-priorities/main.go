package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/PriyavPithia/backend-priyav-cat/internal/config"
	"github.com/PriyavPithia/backend-priyav-cat/internal/database"
	"github.com/PriyavPithia/backend-priyav-cat/internal/logger"
	"github.com/PriyavPithia/backend-priyav-cat/internal/repository"
	"github.com/PriyavPithia/backend-priyav-cat/internal/service"

	"github.com/xuri/excelize/v2"
)

// Bulk priority migration: translates retired HIGH values to URGENT and
// escalates emergency cases left inconsistent by older code paths.
// Safe to re-run: a second invocation against a migrated table reports zero changes.
func main() {
	batchSize := flag.Int("batch-size", 0, "rows per transaction (default from MIGRATION_BATCH_SIZE)")
	xlsxPath := flag.String("xlsx", "", "optional path to write the changed-row audit sheet")
	flag.Parse()

	cfg := config.Load()
	if *batchSize <= 0 {
		*batchSize = cfg.Migration.BatchSize
	}

	zlog, err := logger.NewLogger(cfg.Log.Level, "console", "migrate-priorities")
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zlog.Sync()

	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		log.Fatalf("Cannot connect to database: %v", err)
	}
	defer db.Close()

	fmt.Printf("Connected to database: %s\n\n", cfg.Database.Database)

	// 中断只在批次边界生效，已提交的批次保持有效
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	casesRepo := repository.NewPostgresCasesRepository(db)
	migration := service.NewMigrationService(casesRepo, zlog)

	report, runErr := migration.Run(ctx, *batchSize)

	fmt.Println("Priority migration report:")
	fmt.Printf("  scanned:    %d\n", report.Scanned)
	fmt.Printf("  translated: %d (legacy HIGH -> URGENT)\n", report.Translated)
	fmt.Printf("  escalated:  %d (emergency rows -> URGENT)\n", report.Escalated)
	fmt.Printf("  changed:    %d\n", report.Changed())
	for _, id := range report.ChangedIDs {
		fmt.Printf("    - %s\n", id)
	}

	if *xlsxPath != "" {
		if err := writeReportXLSX(*xlsxPath, report); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write audit sheet: %v\n", err)
		} else {
			fmt.Printf("\nAudit sheet written to %s\n", *xlsxPath)
		}
	}

	if runErr != nil {
		// 部分报告已输出；重新运行即可从中断处恢复（迁移幂等）
		log.Fatalf("Migration aborted: %v", runErr)
	}

	fmt.Println("\n✅ Migration completed successfully!")
}

// writeReportXLSX 导出变更行审计表
func writeReportXLSX(path string, report *service.MigrationReport) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	header := []string{"Case ID", "Scanned", "Translated", "Escalated", "Changed"}
	for i, h := range header {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}

	// 汇总行
	summary := []any{"", report.Scanned, report.Translated, report.Escalated, report.Changed()}
	for i, v := range summary {
		cell, err := excelize.CoordinatesToCellName(i+1, 2)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return err
		}
	}

	// 变更行清单
	for row, id := range report.ChangedIDs {
		cell, err := excelize.CoordinatesToCellName(1, row+3)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, id); err != nil {
			return err
		}
	}

	return f.SaveAs(path)
}
