package repository

import (
	"context"

	"github.com/PriyavPithia/backend-priyav-cat/internal/domain"
)

// CaseFilters 案例列表过滤条件
type CaseFilters struct {
	Status   domain.CaseStatus   // 空值表示不过滤
	Priority domain.CasePriority // 空值表示不过滤
	ClientID string              // 空值表示不过滤
}

// PriorityBatchResult 单个迁移批次的结果
// LastID 用于 keyset 翻页：下一批从该 id 之后继续扫描
type PriorityBatchResult struct {
	LastID     string
	Scanned    int
	Translated int
	Escalated  int
	ChangedIDs []string
}

// CasesRepository 案例数据访问接口
//
// priority 列只允许通过 UpdateCaseChecked / MigratePriorityBatch 写入，
// 两者都在提交前保证 escalation 不变式成立。
type CasesRepository interface {
	CreateCase(ctx context.Context, c *domain.Case) (string, error)
	GetCase(ctx context.Context, id string) (*domain.Case, error)
	ListCases(ctx context.Context, filters *CaseFilters, page, size int) ([]*domain.Case, int, error)

	// UpdateCaseChecked 带版本检查的全字段更新。
	// expectedVersion 与行当前版本不一致时返回 ErrConflict（行存在）
	// 或 ErrCaseNotFound（行不存在）。成功时返回提交后的最新行。
	UpdateCaseChecked(ctx context.Context, c *domain.Case, expectedVersion int64) (*domain.Case, error)

	// MigratePriorityBatch 处理 id > afterID 的至多 limit 行：
	// 先做旧值翻译（HIGH -> URGENT），再应用升级规则；
	// 只重写发生变化的行（不变的行不更新 updated_at）。
	// 整批一个事务，失败整批回滚。
	MigratePriorityBatch(ctx context.Context, afterID string, limit int) (*PriorityBatchResult, error)
}
