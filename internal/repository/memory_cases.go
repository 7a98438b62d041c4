package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/PriyavPithia/backend-priyav-cat/internal/domain"
	"github.com/PriyavPithia/backend-priyav-cat/internal/escalation"

	"github.com/google/uuid"
)

// MemoryCasesRepo supports local development when DB is disabled.
// 与 Postgres 实现保持同样的版本检查语义，单测也用它验证并发冲突。
type MemoryCasesRepo struct {
	mu    sync.Mutex
	cases map[string]*domain.Case // id -> Case

	// rawPriorities 保留未翻译的旧列值（仅迁移测试需要）
	rawPriorities map[string]string
}

func NewMemoryCasesRepo() *MemoryCasesRepo {
	return &MemoryCasesRepo{
		cases:         map[string]*domain.Case{},
		rawPriorities: map[string]string{},
	}
}

var _ CasesRepository = (*MemoryCasesRepo)(nil)

func (r *MemoryCasesRepo) CreateCase(_ context.Context, c *domain.Case) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

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

	now := time.Now()
	stored := *c
	stored.Version = 1
	stored.CreatedAt = now
	stored.UpdatedAt = now
	r.cases[stored.ID] = &stored
	r.rawPriorities[stored.ID] = string(stored.Priority)

	return stored.ID, nil
}

func (r *MemoryCasesRepo) GetCase(_ context.Context, id string) (*domain.Case, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.cases[id]
	if !ok {
		return nil, ErrCaseNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *MemoryCasesRepo) ListCases(_ context.Context, filters *CaseFilters, page, size int) ([]*domain.Case, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var all []*domain.Case
	for _, c := range r.cases {
		if filters != nil {
			if filters.Status != "" && c.Status != filters.Status {
				continue
			}
			if filters.Priority != "" && c.Priority != filters.Priority {
				continue
			}
			if filters.ClientID != "" && c.ClientID != filters.ClientID {
				continue
			}
		}
		cp := *c
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID < all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	total := len(all)
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	start := (page - 1) * size
	if start > total {
		start = total
	}
	end := start + size
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}

func (r *MemoryCasesRepo) UpdateCaseChecked(_ context.Context, c *domain.Case, expectedVersion int64) (*domain.Case, error) {
	if !c.Priority.IsValid() {
		return nil, domain.ErrInvalidPriority
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.cases[c.ID]
	if !ok {
		return nil, ErrCaseNotFound
	}
	if stored.Version != expectedVersion {
		return nil, ErrConflict
	}

	next := *c
	next.Version = stored.Version + 1
	next.CreatedAt = stored.CreatedAt
	next.UpdatedAt = time.Now()
	r.cases[c.ID] = &next
	r.rawPriorities[c.ID] = string(next.Priority)

	cp := next
	return &cp, nil
}

func (r *MemoryCasesRepo) MigratePriorityBatch(_ context.Context, afterID string, limit int) (*PriorityBatchResult, error) {
	if limit <= 0 {
		limit = 100
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.cases))
	for id := range r.cases {
		if id > afterID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if len(ids) > limit {
		ids = ids[:limit]
	}

	result := &PriorityBatchResult{}
	for _, id := range ids {
		c := r.cases[id]
		result.Scanned++
		result.LastID = id

		raw := r.rawPriorities[id]
		current := domain.CasePriority(raw)
		translated := false
		if !current.IsValid() {
			mapped, ok := domain.TranslateLegacyPriority(raw)
			if !ok {
				return nil, domain.ErrInvalidPriority
			}
			current = mapped
			translated = true
		}

		required, escalated := escalation.RequiredPriority(current, c.HasDebtEmergency)
		if !translated && !escalated {
			continue
		}

		c.Priority = required
		c.PriorityLastSetBy = domain.ActorMigration
		c.Version++
		c.UpdatedAt = time.Now()
		r.rawPriorities[id] = string(required)

		if translated {
			result.Translated++
		}
		if escalated {
			result.Escalated++
		}
		result.ChangedIDs = append(result.ChangedIDs, id)
	}

	return result, nil
}

// SeedRawPriority 直接写入一个未经治理的行（测试/开发用：模拟旧数据）
func (r *MemoryCasesRepo) SeedRawPriority(c *domain.Case, rawPriority string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *c
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	if stored.Version == 0 {
		stored.Version = 1
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	stored.UpdatedAt = stored.CreatedAt
	stored.Priority = domain.CasePriority(rawPriority)
	r.cases[stored.ID] = &stored
	r.rawPriorities[stored.ID] = rawPriority
}
