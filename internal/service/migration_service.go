package service

import (
	"context"
	"fmt"

	"github.com/PriyavPithia/backend-priyav-cat/internal/repository"

	"go.uber.org/zap"
)

// DefaultMigrationBatchSize 默认批次大小
// 批次是事务/锁持有时间的上界，不宜过大
const DefaultMigrationBatchSize = 200

// MigrationReport 迁移运行结果
type MigrationReport struct {
	Scanned    int      `json:"scanned"`
	Translated int      `json:"translated"`
	Escalated  int      `json:"escalated"`
	ChangedIDs []string `json:"changed_ids"`
}

// Changed 变更行数
func (r *MigrationReport) Changed() int {
	return len(r.ChangedIDs)
}

// MigrationBatchError 单个批次提交失败
// 之前已提交的批次保持生效；重新调用 Run 即可恢复（迁移幂等）
type MigrationBatchError struct {
	AfterID string // 失败批次的起始游标
	Err     error
}

func (e *MigrationBatchError) Error() string {
	if e.AfterID == "" {
		return fmt.Sprintf("priority migration failed on first batch: %v", e.Err)
	}
	return fmt.Sprintf("priority migration failed on batch after id %s: %v", e.AfterID, e.Err)
}

func (e *MigrationBatchError) Unwrap() error {
	return e.Err
}

// MigrationService 批量优先级迁移
//
// 对全表做一次（或幂等地多次）扫描：旧值 HIGH 翻译为 URGENT，
// emergency 行升级为 URGENT。按批处理、每批一个事务，
// 可在批次边界安全中断，重新调用即恢复。
type MigrationService struct {
	casesRepo repository.CasesRepository
	logger    *zap.Logger
}

// NewMigrationService 创建迁移服务
func NewMigrationService(casesRepo repository.CasesRepository, logger *zap.Logger) *MigrationService {
	return &MigrationService{casesRepo: casesRepo, logger: logger}
}

// Run 执行迁移。出错时返回已完成部分的报告和 *MigrationBatchError。
func (s *MigrationService) Run(ctx context.Context, batchSize int) (*MigrationReport, error) {
	if batchSize <= 0 {
		batchSize = DefaultMigrationBatchSize
	}

	report := &MigrationReport{}
	afterID := ""

	for {
		// 只在批次边界响应取消，单个批次绝不中途截断
		if err := ctx.Err(); err != nil {
			return report, &MigrationBatchError{AfterID: afterID, Err: err}
		}

		result, err := s.casesRepo.MigratePriorityBatch(ctx, afterID, batchSize)
		if err != nil {
			return report, &MigrationBatchError{AfterID: afterID, Err: err}
		}

		report.Scanned += result.Scanned
		report.Translated += result.Translated
		report.Escalated += result.Escalated
		report.ChangedIDs = append(report.ChangedIDs, result.ChangedIDs...)

		s.logger.Info("Priority migration batch committed",
			zap.String("after_id", afterID),
			zap.Int("scanned", result.Scanned),
			zap.Int("translated", result.Translated),
			zap.Int("escalated", result.Escalated),
		)

		if result.Scanned < batchSize {
			break
		}
		afterID = result.LastID
	}

	s.logger.Info("Priority migration complete",
		zap.Int("scanned", report.Scanned),
		zap.Int("translated", report.Translated),
		zap.Int("escalated", report.Escalated),
		zap.Int("changed", report.Changed()),
	)
	return report, nil
}
