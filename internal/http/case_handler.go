package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PriyavPithia/backend-priyav-cat/internal/domain"
	"github.com/PriyavPithia/backend-priyav-cat/internal/repository"
	"github.com/PriyavPithia/backend-priyav-cat/internal/service"

	"go.uber.org/zap"
)

// CaseHandler 案例管理 Handler
type CaseHandler struct {
	caseService service.CaseService
	logger      *zap.Logger
}

// NewCaseHandler 创建案例管理 Handler
func NewCaseHandler(caseService service.CaseService, logger *zap.Logger) *CaseHandler {
	return &CaseHandler{
		caseService: caseService,
		logger:      logger,
	}
}

// caseResponse 案例响应体
type caseResponse struct {
	ID                    string    `json:"id"`
	ClientID              string    `json:"client_id"`
	Status                string    `json:"status"`
	Priority              string    `json:"priority"`
	HasDebtEmergency      bool      `json:"has_debt_emergency"`
	EmergencyAcknowledged bool      `json:"emergency_acknowledged"`
	PriorityLastSetBy     string    `json:"priority_last_set_by"`
	AdditionalNotes       string    `json:"additional_notes,omitempty"`
	Version               int64     `json:"version"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

func toCaseResponse(c *domain.Case) caseResponse {
	return caseResponse{
		ID:                    c.ID,
		ClientID:              c.ClientID,
		Status:                string(c.Status),
		Priority:              string(c.Priority),
		HasDebtEmergency:      c.HasDebtEmergency,
		EmergencyAcknowledged: c.EmergencyAcknowledged,
		PriorityLastSetBy:     string(c.PriorityLastSetBy),
		AdditionalNotes:       c.AdditionalNotes,
		Version:               c.Version,
		CreatedAt:             c.CreatedAt,
		UpdatedAt:             c.UpdatedAt,
	}
}

// writeServiceError 服务层错误到 HTTP 状态码的统一映射
func (h *CaseHandler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrCaseNotFound):
		writeError(w, http.StatusNotFound, "Case not found")
	case errors.Is(err, repository.ErrConflict):
		writeError(w, http.StatusConflict, "Please retry, case was updated concurrently")
	case errors.Is(err, domain.ErrInvalidPriority):
		writeError(w, http.StatusBadRequest, "Invalid priority value. Must be one of: LOW, NORMAL, URGENT")
	case errors.Is(err, domain.ErrInvalidStatus):
		writeError(w, http.StatusBadRequest, "Invalid status value. Must be one of: pending, submitted, closed")
	default:
		h.logger.Error("Case request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// ServeHTTP 实现 http.Handler 接口
func (h *CaseHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	switch {
	// ListCases
	case path == "/api/v1/cases" && r.Method == http.MethodGet:
		h.ListCases(w, r)
	// CreateCase
	case path == "/api/v1/cases" && r.Method == http.MethodPost:
		h.CreateCase(w, r)
	// RunEmergencyCheck
	case strings.HasSuffix(path, "/emergency-check") && r.Method == http.MethodPost:
		caseID := strings.TrimSuffix(path, "/emergency-check")
		caseID = strings.TrimPrefix(caseID, "/api/v1/cases/")
		if caseID != "" && !strings.Contains(caseID, "/") {
			h.RunEmergencyCheck(w, r, caseID)
		} else {
			w.WriteHeader(http.StatusNotFound)
		}
	// ResetEmergencyCheck
	case strings.HasSuffix(path, "/reset-emergency") && r.Method == http.MethodPost:
		caseID := strings.TrimSuffix(path, "/reset-emergency")
		caseID = strings.TrimPrefix(caseID, "/api/v1/cases/")
		if caseID != "" && !strings.Contains(caseID, "/") {
			h.ResetEmergencyCheck(w, r, caseID)
		} else {
			w.WriteHeader(http.StatusNotFound)
		}
	// GetCase
	case strings.HasPrefix(path, "/api/v1/cases/") && r.Method == http.MethodGet:
		caseID := strings.TrimPrefix(path, "/api/v1/cases/")
		if caseID != "" && !strings.Contains(caseID, "/") {
			h.GetCase(w, r, caseID)
		} else {
			w.WriteHeader(http.StatusNotFound)
		}
	// UpdateCase
	case strings.HasPrefix(path, "/api/v1/cases/") && r.Method == http.MethodPut:
		caseID := strings.TrimPrefix(path, "/api/v1/cases/")
		if caseID != "" && !strings.Contains(caseID, "/") {
			h.UpdateCase(w, r, caseID)
		} else {
			w.WriteHeader(http.StatusNotFound)
		}
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// ListCases GET /api/v1/cases?status=&priority=&client_id=&page=&size=
func (h *CaseHandler) ListCases(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	size, _ := strconv.Atoi(q.Get("size"))

	resp, err := h.caseService.ListCases(r.Context(), service.ListCasesRequest{
		Status:   q.Get("status"),
		Priority: q.Get("priority"),
		ClientID: q.Get("client_id"),
		Page:     page,
		Size:     size,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	items := make([]caseResponse, 0, len(resp.Cases))
	for _, c := range resp.Cases {
		items = append(items, toCaseResponse(c))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": items,
		"total": resp.Total,
	})
}

// createCaseRequest 创建案例请求体
type createCaseRequest struct {
	ClientID        string `json:"client_id"`
	AdditionalNotes string `json:"additional_notes"`
}

// CreateCase POST /api/v1/cases
func (h *CaseHandler) CreateCase(w http.ResponseWriter, r *http.Request) {
	var req createCaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.ClientID == "" {
		writeError(w, http.StatusBadRequest, "client_id is required")
		return
	}

	c, err := h.caseService.CreateCase(r.Context(), service.CreateCaseRequest{
		ClientID:        req.ClientID,
		AdditionalNotes: req.AdditionalNotes,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toCaseResponse(c))
}

// GetCase GET /api/v1/cases/:id
func (h *CaseHandler) GetCase(w http.ResponseWriter, r *http.Request, caseID string) {
	c, err := h.caseService.GetCase(r.Context(), caseID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCaseResponse(c))
}

// updateCaseRequest 更新案例请求体
// 指针字段缺省表示不更新；version 为客户端读取到的版本号
type updateCaseRequest struct {
	Status                *string `json:"status"`
	Priority              *string `json:"priority"`
	HasDebtEmergency      *bool   `json:"has_debt_emergency"`
	EmergencyAcknowledged *bool   `json:"emergency_acknowledged"`
	AdditionalNotes       *string `json:"additional_notes"`
	Version               int64   `json:"version"`
}

// UpdateCase PUT /api/v1/cases/:id
func (h *CaseHandler) UpdateCase(w http.ResponseWriter, r *http.Request, caseID string) {
	var req updateCaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	c, err := h.caseService.UpdateCase(r.Context(), service.UpdateCaseRequest{
		ID:                    caseID,
		Status:                req.Status,
		Priority:              req.Priority,
		HasDebtEmergency:      req.HasDebtEmergency,
		EmergencyAcknowledged: req.EmergencyAcknowledged,
		AdditionalNotes:       req.AdditionalNotes,
		Version:               req.Version,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toCaseResponse(c))
}

// emergencyCheckRequest 紧急检查请求体
type emergencyCheckRequest struct {
	HasDebtEmergency      *bool `json:"has_debt_emergency"`
	EmergencyAcknowledged bool  `json:"emergency_acknowledged"`
}

// RunEmergencyCheck POST /api/v1/cases/:id/emergency-check
func (h *CaseHandler) RunEmergencyCheck(w http.ResponseWriter, r *http.Request, caseID string) {
	var req emergencyCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.HasDebtEmergency == nil {
		writeError(w, http.StatusBadRequest, "has_debt_emergency is required")
		return
	}

	c, err := h.caseService.RunEmergencyCheck(r.Context(), caseID, *req.HasDebtEmergency, req.EmergencyAcknowledged)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toCaseResponse(c))
}

// ResetEmergencyCheck POST /api/v1/cases/:id/reset-emergency
func (h *CaseHandler) ResetEmergencyCheck(w http.ResponseWriter, r *http.Request, caseID string) {
	c, err := h.caseService.ResetEmergencyCheck(r.Context(), caseID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCaseResponse(c))
}
