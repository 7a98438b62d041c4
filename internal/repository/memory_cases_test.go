package repository

import (
	"context"
	"sync"
	"testing"

	"github.com/PriyavPithia/backend-priyav-cat/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCases_ConcurrentWritersExactlyOneWins(t *testing.T) {
	repo := NewMemoryCasesRepo()
	ctx := context.Background()

	id, err := repo.CreateCase(ctx, &domain.Case{ClientID: "client-1"})
	require.NoError(t, err)

	base, err := repo.GetCase(ctx, id)
	require.NoError(t, err)

	// 多个写入者同时从同一版本出发：恰好一个成功，其余 Conflict
	const writers = 8
	var wg sync.WaitGroup
	results := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			c := *base
			c.Priority = domain.PriorityLow
			_, results[n] = repo.UpdateCaseChecked(ctx, &c, base.Version)
		}(i)
	}
	wg.Wait()

	var ok, conflicts int
	for _, err := range results {
		switch {
		case err == nil:
			ok++
		default:
			require.ErrorIs(t, err, ErrConflict)
			conflicts++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, writers-1, conflicts)

	after, err := repo.GetCase(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, base.Version+1, after.Version)
}

func TestMemoryCases_VersionSemanticsMatchPostgres(t *testing.T) {
	repo := NewMemoryCasesRepo()
	ctx := context.Background()

	_, err := repo.UpdateCaseChecked(ctx, &domain.Case{ID: "missing", Priority: domain.PriorityLow}, 1)
	assert.ErrorIs(t, err, ErrCaseNotFound)

	id, err := repo.CreateCase(ctx, &domain.Case{ClientID: "client-1"})
	require.NoError(t, err)

	c, err := repo.GetCase(ctx, id)
	require.NoError(t, err)

	bad := *c
	bad.Priority = domain.CasePriority("HIGH")
	_, err = repo.UpdateCaseChecked(ctx, &bad, c.Version)
	assert.ErrorIs(t, err, domain.ErrInvalidPriority)
}
