package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/PriyavPithia/backend-priyav-cat/internal/domain"
	"github.com/PriyavPithia/backend-priyav-cat/internal/escalation"

	"github.com/google/uuid"
)

// caseColumns 统一的列清单（SELECT/RETURNING 共用，保证 scanCase 对齐）
const caseColumns = `
		id::text,
		client_id::text,
		status,
		priority,
		has_debt_emergency,
		emergency_acknowledged,
		priority_last_set_by,
		additional_notes,
		version,
		created_at,
		updated_at`

// PostgresCasesRepository 案例Repository实现
type PostgresCasesRepository struct {
	db *sql.DB
}

// NewPostgresCasesRepository 创建案例Repository
func NewPostgresCasesRepository(db *sql.DB) *PostgresCasesRepository {
	return &PostgresCasesRepository{db: db}
}

// 确保实现了接口
var _ CasesRepository = (*PostgresCasesRepository)(nil)

// rowScanner 兼容 *sql.Row 和 *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

// scanCase 按 caseColumns 的顺序扫描一行
// 注意：priority 原样返回字符串值，迁移前的旧值（HIGH）也会被读出，
// 由调用方决定是否翻译
func scanCase(row rowScanner) (*domain.Case, string, error) {
	var c domain.Case
	var rawPriority, rawActor string
	var notes sql.NullString

	err := row.Scan(
		&c.ID,
		&c.ClientID,
		&c.Status,
		&rawPriority,
		&c.HasDebtEmergency,
		&c.EmergencyAcknowledged,
		&rawActor,
		&notes,
		&c.Version,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, "", err
	}

	c.Priority = domain.CasePriority(rawPriority)
	c.PriorityLastSetBy = domain.PriorityActor(rawActor)
	if notes.Valid {
		c.AdditionalNotes = notes.String
	}

	return &c, rawPriority, nil
}

// nullableNotes additional_notes 空串按 NULL 存储
func nullableNotes(notes string) any {
	if notes == "" {
		return nil
	}
	return notes
}

// CreateCase 创建案例（默认 NORMAL / 非紧急 / operator 来源 / version 1）
func (r *PostgresCasesRepository) CreateCase(ctx context.Context, c *domain.Case) (string, error) {
	if c.ClientID == "" {
		return "", fmt.Errorf("client_id is required")
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Status == "" {
		c.Status = domain.StatusPending
	}
	if c.Priority == "" {
		c.Priority = domain.PriorityNormal
	}
	if !c.Priority.IsValid() {
		return "", domain.ErrInvalidPriority
	}
	if c.PriorityLastSetBy == "" {
		c.PriorityLastSetBy = domain.ActorOperator
	}

	query := `
		INSERT INTO cases (
			id,
			client_id,
			status,
			priority,
			has_debt_emergency,
			emergency_acknowledged,
			priority_last_set_by,
			additional_notes,
			version
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 1)
		RETURNING id::text
	`

	var id string
	err := r.db.QueryRowContext(ctx, query,
		c.ID,
		c.ClientID,
		string(c.Status),
		string(c.Priority),
		c.HasDebtEmergency,
		c.EmergencyAcknowledged,
		string(c.PriorityLastSetBy),
		nullableNotes(c.AdditionalNotes),
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("failed to create case: %w", err)
	}

	return id, nil
}

// GetCase 获取单个案例
func (r *PostgresCasesRepository) GetCase(ctx context.Context, id string) (*domain.Case, error) {
	if id == "" {
		return nil, ErrCaseNotFound
	}

	query := `SELECT ` + caseColumns + ` FROM cases WHERE id = $1`

	c, _, err := scanCase(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrCaseNotFound
		}
		return nil, fmt.Errorf("failed to get case: %w", err)
	}

	return c, nil
}

// ListCases 查询案例列表（支持分页、状态/优先级/客户过滤）
func (r *PostgresCasesRepository) ListCases(ctx context.Context, filters *CaseFilters, page, size int) ([]*domain.Case, int, error) {
	where := []string{"TRUE"}
	args := []any{}
	argN := 1

	if filters != nil {
		if filters.Status != "" {
			where = append(where, fmt.Sprintf("status = $%d", argN))
			args = append(args, string(filters.Status))
			argN++
		}
		if filters.Priority != "" {
			where = append(where, fmt.Sprintf("priority = $%d", argN))
			args = append(args, string(filters.Priority))
			argN++
		}
		if filters.ClientID != "" {
			where = append(where, fmt.Sprintf("client_id = $%d", argN))
			args = append(args, filters.ClientID)
			argN++
		}
	}

	// 查询总数
	queryCount := `SELECT COUNT(*) FROM cases WHERE ` + strings.Join(where, " AND ")
	var total int
	if err := r.db.QueryRowContext(ctx, queryCount, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count cases: %w", err)
	}

	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	offset := (page - 1) * size

	argsList := append(args, size, offset)
	query := `SELECT ` + caseColumns + `
		FROM cases
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY created_at DESC, id
		LIMIT $` + fmt.Sprintf("%d", argN) + ` OFFSET $` + fmt.Sprintf("%d", argN+1)

	rows, err := r.db.QueryContext(ctx, query, argsList...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list cases: %w", err)
	}
	defer rows.Close()

	var cases []*domain.Case
	for rows.Next() {
		c, _, err := scanCase(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan case: %w", err)
		}
		cases = append(cases, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate cases: %w", err)
	}

	return cases, total, nil
}

// UpdateCaseChecked 带版本检查的更新
// WHERE version = expectedVersion 保证丢失更新被拒绝而不是被覆盖；
// version 自增 + updated_at 刷新在同一条语句内原子完成
func (r *PostgresCasesRepository) UpdateCaseChecked(ctx context.Context, c *domain.Case, expectedVersion int64) (*domain.Case, error) {
	if c.ID == "" {
		return nil, ErrCaseNotFound
	}
	if !c.Priority.IsValid() {
		return nil, domain.ErrInvalidPriority
	}

	query := `
		UPDATE cases
		SET
			status = $2,
			priority = $3,
			has_debt_emergency = $4,
			emergency_acknowledged = $5,
			priority_last_set_by = $6,
			additional_notes = $7,
			version = version + 1,
			updated_at = NOW()
		WHERE id = $1 AND version = $8
		RETURNING ` + caseColumns

	updated, _, err := scanCase(r.db.QueryRowContext(ctx, query,
		c.ID,
		string(c.Status),
		string(c.Priority),
		c.HasDebtEmergency,
		c.EmergencyAcknowledged,
		string(c.PriorityLastSetBy),
		nullableNotes(c.AdditionalNotes),
		expectedVersion,
	))
	if err == nil {
		return updated, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to update case: %w", err)
	}

	// 零行命中：区分"行不存在"和"版本不匹配"
	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM cases WHERE id = $1)`, c.ID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to check case existence: %w", err)
	}
	if !exists {
		return nil, ErrCaseNotFound
	}
	return nil, ErrConflict
}

// MigratePriorityBatch 迁移一个批次（id > afterID，至多 limit 行）
//
// 整批一个事务 + FOR UPDATE 行锁：批内的行在翻译/升级期间不会被并发写入，
// 已变更行直接覆盖写，无需版本检查。批次大小由调用方控制以限制锁持有时间。
func (r *PostgresCasesRepository) MigratePriorityBatch(ctx context.Context, afterID string, limit int) (*PriorityBatchResult, error) {
	if limit <= 0 {
		limit = 100
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `SELECT ` + caseColumns + `
		FROM cases
		WHERE id > $1
		ORDER BY id
		LIMIT $2
		FOR UPDATE`

	rows, err := tx.QueryContext(ctx, query, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to scan migration batch: %w", err)
	}

	// 先收集整批再逐行更新（同一事务上不能同时持有游标和执行语句）
	type batchRow struct {
		c           *domain.Case
		rawPriority string
	}
	var batch []batchRow
	for rows.Next() {
		c, raw, err := scanCase(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan case: %w", err)
		}
		batch = append(batch, batchRow{c: c, rawPriority: raw})
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to iterate migration batch: %w", err)
	}
	rows.Close()

	result := &PriorityBatchResult{}

	for _, row := range batch {
		result.Scanned++
		result.LastID = row.c.ID

		// 1) 旧值翻译（HIGH -> URGENT）
		current := domain.CasePriority(row.rawPriority)
		translated := false
		if !current.IsValid() {
			mapped, ok := domain.TranslateLegacyPriority(row.rawPriority)
			if !ok {
				return nil, fmt.Errorf("case %s: unknown priority value %q: %w", row.c.ID, row.rawPriority, domain.ErrInvalidPriority)
			}
			current = mapped
			translated = true
		}

		// 2) 升级规则
		required, escalated := escalation.RequiredPriority(current, row.c.HasDebtEmergency)

		if !translated && !escalated {
			// 未变化的行不重写：不 bump version / updated_at，不产生审计记录
			continue
		}

		updateQuery := `
			UPDATE cases
			SET
				priority = $2,
				priority_last_set_by = $3,
				version = version + 1,
				updated_at = NOW()
			WHERE id = $1`
		if _, err := tx.ExecContext(ctx, updateQuery, row.c.ID, string(required), string(domain.ActorMigration)); err != nil {
			return nil, fmt.Errorf("failed to migrate case %s: %w", row.c.ID, err)
		}

		if translated {
			result.Translated++
		}
		if escalated {
			result.Escalated++
		}
		result.ChangedIDs = append(result.ChangedIDs, row.c.ID)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit migration batch: %w", err)
	}

	return result, nil
}
