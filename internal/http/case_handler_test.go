package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/PriyavPithia/backend-priyav-cat/internal/repository"
	"github.com/PriyavPithia/backend-priyav-cat/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupCaseRouter(t *testing.T) (*repository.MemoryCasesRepo, *Router) {
	repo := repository.NewMemoryCasesRepo()
	svc := service.NewCaseService(repo, nil, nil, zap.NewNop())
	handler := NewCaseHandler(svc, zap.NewNop())

	router := NewRouter(zap.NewNop())
	router.RegisterCaseRoutes(handler)
	return repo, router
}

func doJSON(t *testing.T, router *Router, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func createCaseViaAPI(t *testing.T, router *Router) caseResponse {
	rec := doJSON(t, router, http.MethodPost, "/api/v1/cases", map[string]any{
		"client_id": "client-1",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var c caseResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &c))
	require.Equal(t, "NORMAL", c.Priority)
	return c
}

func TestEmergencyCheck_EscalatesPriority(t *testing.T) {
	_, router := setupCaseRouter(t)
	c := createCaseViaAPI(t, router)

	rec := doJSON(t, router, http.MethodPost, fmt.Sprintf("/api/v1/cases/%s/emergency-check", c.ID), map[string]any{
		"has_debt_emergency":     true,
		"emergency_acknowledged": true,
	})

	require.Equal(t, http.StatusOK, rec.Code)
	var got caseResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "URGENT", got.Priority)
	assert.Equal(t, "escalation", got.PriorityLastSetBy)
	assert.True(t, got.HasDebtEmergency)
}

func TestEmergencyCheck_MissingFlag(t *testing.T) {
	_, router := setupCaseRouter(t)
	c := createCaseViaAPI(t, router)

	rec := doJSON(t, router, http.MethodPost, fmt.Sprintf("/api/v1/cases/%s/emergency-check", c.ID), map[string]any{})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateCase_InvalidPriority(t *testing.T) {
	_, router := setupCaseRouter(t)
	c := createCaseViaAPI(t, router)

	rec := doJSON(t, router, http.MethodPut, "/api/v1/cases/"+c.ID, map[string]any{
		"priority": "HIGH",
	})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Invalid priority value. Must be one of: LOW, NORMAL, URGENT", body.Detail)
}

func TestUpdateCase_StaleVersionConflict(t *testing.T) {
	_, router := setupCaseRouter(t)
	c := createCaseViaAPI(t, router)

	// 第一个写入者成功
	rec := doJSON(t, router, http.MethodPut, "/api/v1/cases/"+c.ID, map[string]any{
		"priority": "LOW",
		"version":  c.Version,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	// 第二个写入者持过期版本 -> 409
	rec = doJSON(t, router, http.MethodPut, "/api/v1/cases/"+c.ID, map[string]any{
		"has_debt_emergency": true,
		"version":            c.Version,
	})
	require.Equal(t, http.StatusConflict, rec.Code)
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Please retry, case was updated concurrently", body.Detail)
}

func TestUpdateCase_EmergencyWinsOverSuppliedPriority(t *testing.T) {
	_, router := setupCaseRouter(t)
	c := createCaseViaAPI(t, router)

	rec := doJSON(t, router, http.MethodPut, "/api/v1/cases/"+c.ID, map[string]any{
		"priority":           "LOW",
		"has_debt_emergency": true,
	})

	require.Equal(t, http.StatusOK, rec.Code)
	var got caseResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "URGENT", got.Priority)
	assert.Equal(t, "escalation", got.PriorityLastSetBy)
}

func TestGetCase_NotFound(t *testing.T) {
	_, router := setupCaseRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/api/v1/cases/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestResetEmergency_KeepsUrgent(t *testing.T) {
	_, router := setupCaseRouter(t)
	c := createCaseViaAPI(t, router)

	rec := doJSON(t, router, http.MethodPost, fmt.Sprintf("/api/v1/cases/%s/emergency-check", c.ID), map[string]any{
		"has_debt_emergency": true,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodPost, fmt.Sprintf("/api/v1/cases/%s/reset-emergency", c.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got caseResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.False(t, got.HasDebtEmergency)
	assert.Equal(t, "URGENT", got.Priority)
}

func TestListCases_FilterAndPaging(t *testing.T) {
	repo, router := setupCaseRouter(t)
	c := createCaseViaAPI(t, router)
	createCaseViaAPI(t, router)

	// 把第一个案例升级为 URGENT
	svc := service.NewCaseService(repo, nil, nil, zap.NewNop())
	_, err := svc.RunEmergencyCheck(context.Background(), c.ID, true, true)
	require.NoError(t, err)

	rec := doJSON(t, router, http.MethodGet, "/api/v1/cases?priority=URGENT", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Items []caseResponse `json:"items"`
		Total int            `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Total)
	require.Len(t, body.Items, 1)
	assert.Equal(t, c.ID, body.Items[0].ID)
}
