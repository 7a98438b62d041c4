package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/PriyavPithia/backend-priyav-cat/internal/domain"
	"github.com/PriyavPithia/backend-priyav-cat/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func seedCase(repo *repository.MemoryCasesRepo, id, rawPriority string, emergency bool) {
	repo.SeedRawPriority(&domain.Case{
		ID:                id,
		ClientID:          "client-1",
		Status:            domain.StatusPending,
		HasDebtEmergency:  emergency,
		PriorityLastSetBy: domain.ActorOperator,
	}, rawPriority)
}

func TestMigration_TranslatesLegacyHigh(t *testing.T) {
	repo := repository.NewMemoryCasesRepo()
	seedCase(repo, "case-high", "HIGH", false)

	report, err := NewMigrationService(repo, zap.NewNop()).Run(context.Background(), 100)

	require.NoError(t, err)
	assert.Equal(t, 1, report.Scanned)
	assert.Equal(t, 1, report.Translated)
	assert.Equal(t, 0, report.Escalated)
	assert.Equal(t, []string{"case-high"}, report.ChangedIDs)

	c, err := repo.GetCase(context.Background(), "case-high")
	require.NoError(t, err)
	assert.Equal(t, domain.PriorityUrgent, c.Priority)
	assert.Equal(t, domain.ActorMigration, c.PriorityLastSetBy)
}

func TestMigration_EscalatesInconsistentEmergencyRow(t *testing.T) {
	repo := repository.NewMemoryCasesRepo()
	// 历史 bug 遗留：emergency=true 但 priority=NORMAL
	seedCase(repo, "case-bug", "NORMAL", true)

	svc := NewMigrationService(repo, zap.NewNop())
	report, err := svc.Run(context.Background(), 100)

	require.NoError(t, err)
	assert.Equal(t, 1, report.Escalated)
	assert.Equal(t, 0, report.Translated)
	assert.Equal(t, []string{"case-bug"}, report.ChangedIDs)

	c, err := repo.GetCase(context.Background(), "case-bug")
	require.NoError(t, err)
	assert.Equal(t, domain.PriorityUrgent, c.Priority)
	assert.True(t, c.SatisfiesEscalationInvariant())

	// 幂等：第二次运行零写入
	report2, err := svc.Run(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, report.Scanned, report2.Scanned)
	assert.Zero(t, report2.Translated)
	assert.Zero(t, report2.Escalated)
	assert.Zero(t, report2.Changed())
}

func TestMigration_MultipleBatches(t *testing.T) {
	repo := repository.NewMemoryCasesRepo()
	for i := 0; i < 5; i++ {
		seedCase(repo, fmt.Sprintf("case-%03d", i), "HIGH", false)
	}
	// 已一致的行穿插其间
	seedCase(repo, "case-900", "URGENT", true)
	seedCase(repo, "case-901", "LOW", false)

	report, err := NewMigrationService(repo, zap.NewNop()).Run(context.Background(), 2)

	require.NoError(t, err)
	assert.Equal(t, 7, report.Scanned)
	assert.Equal(t, 5, report.Translated)
	assert.Equal(t, 0, report.Escalated)
	assert.Equal(t, 5, report.Changed())
}

func TestMigration_UntouchedRowsNotRewritten(t *testing.T) {
	repo := repository.NewMemoryCasesRepo()
	seedCase(repo, "case-ok", "NORMAL", false)

	before, err := repo.GetCase(context.Background(), "case-ok")
	require.NoError(t, err)

	report, err := NewMigrationService(repo, zap.NewNop()).Run(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Scanned)
	assert.Zero(t, report.Changed())

	after, err := repo.GetCase(context.Background(), "case-ok")
	require.NoError(t, err)
	// no-op 行不 bump version / updated_at
	assert.Equal(t, before.Version, after.Version)
	assert.Equal(t, before.UpdatedAt, after.UpdatedAt)
	assert.Equal(t, domain.ActorOperator, after.PriorityLastSetBy)
}

// failingCasesRepo 第 failAt 次批次调用时返回错误
type failingCasesRepo struct {
	repository.CasesRepository
	calls  int
	failAt int
}

func (r *failingCasesRepo) MigratePriorityBatch(ctx context.Context, afterID string, limit int) (*repository.PriorityBatchResult, error) {
	r.calls++
	if r.calls == r.failAt {
		return nil, errors.New("store unavailable")
	}
	return r.CasesRepository.MigratePriorityBatch(ctx, afterID, limit)
}

func TestMigration_FailedBatchAbortsOnlyItself(t *testing.T) {
	repo := repository.NewMemoryCasesRepo()
	for i := 0; i < 4; i++ {
		seedCase(repo, fmt.Sprintf("case-%03d", i), "HIGH", false)
	}
	failing := &failingCasesRepo{CasesRepository: repo, failAt: 2}

	report, err := NewMigrationService(failing, zap.NewNop()).Run(context.Background(), 2)

	// 第一批已提交并出现在部分报告中
	var batchErr *MigrationBatchError
	require.ErrorAs(t, err, &batchErr)
	assert.Equal(t, 2, report.Scanned)
	assert.Equal(t, 2, report.Translated)

	// 重新调用即恢复：剩余行被处理，总变更数收敛
	report2, err := NewMigrationService(repo, zap.NewNop()).Run(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, 4, report2.Scanned)
	assert.Equal(t, 2, report2.Translated) // 前两行已迁移，不再变化
}

func TestMigration_CancelledAtBatchBoundary(t *testing.T) {
	repo := repository.NewMemoryCasesRepo()
	seedCase(repo, "case-1", "HIGH", false)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := NewMigrationService(repo, zap.NewNop()).Run(ctx, 100)

	var batchErr *MigrationBatchError
	require.ErrorAs(t, err, &batchErr)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, report.Scanned)
}
