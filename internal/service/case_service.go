package service

import (
	"context"
	"time"

	"github.com/PriyavPithia/backend-priyav-cat/internal/audit"
	"github.com/PriyavPithia/backend-priyav-cat/internal/domain"
	"github.com/PriyavPithia/backend-priyav-cat/internal/escalation"
	"github.com/PriyavPithia/backend-priyav-cat/internal/notify"
	"github.com/PriyavPithia/backend-priyav-cat/internal/repository"

	"go.uber.org/zap"
)

// CreateCaseRequest 创建案例请求
type CreateCaseRequest struct {
	ClientID        string
	AdditionalNotes string
}

// UpdateCaseRequest 交互式更新请求
// nil 指针表示该字段不更新。Version 为客户端读取到的版本号；
// 为 0 时使用服务端读取时刻的版本（冲突窗口缩小到读-写之间）。
type UpdateCaseRequest struct {
	ID                    string
	Status                *string
	Priority              *string
	HasDebtEmergency      *bool
	EmergencyAcknowledged *bool
	AdditionalNotes       *string
	Version               int64
}

// ListCasesRequest 列表查询请求
type ListCasesRequest struct {
	Status   string
	Priority string
	ClientID string
	Page     int
	Size     int
}

// ListCasesResponse 列表查询响应
type ListCasesResponse struct {
	Cases []*domain.Case
	Total int
}

// CaseService 案例服务接口
//
// priority 作为 has_debt_emergency 的结果只允许经由本服务写入：
// 每条写路径都先经 escalation.RequiredPriority 计算目标优先级，
// 再通过带版本检查的更新提交，保证提交后的行必然满足不变式。
type CaseService interface {
	CreateCase(ctx context.Context, req CreateCaseRequest) (*domain.Case, error)
	GetCase(ctx context.Context, id string) (*domain.Case, error)
	ListCases(ctx context.Context, req ListCasesRequest) (*ListCasesResponse, error)

	// UpdateCase 交互式更新。请求同时置 has_debt_emergency=true 时，
	// 升级规则覆盖客户端提供的 priority（请求不拒绝，静默升级）。
	// 版本不匹配返回 repository.ErrConflict。
	UpdateCase(ctx context.Context, req UpdateCaseRequest) (*domain.Case, error)

	// RunEmergencyCheck 记录紧急检查结果，只动 flag 对和（结果性的）priority。
	RunEmergencyCheck(ctx context.Context, id string, hasDebtEmergency, acknowledged bool) (*domain.Case, error)

	// ResetEmergencyCheck 清除紧急检查结果。priority 不自动降级。
	ResetEmergencyCheck(ctx context.Context, id string) (*domain.Case, error)
}

// caseService 实现
type caseService struct {
	casesRepo repository.CasesRepository
	publisher audit.Publisher
	notifier  notify.Notifier
	logger    *zap.Logger
}

// NewCaseService 创建 CaseService 实例
func NewCaseService(casesRepo repository.CasesRepository, publisher audit.Publisher, notifier notify.Notifier, logger *zap.Logger) CaseService {
	if publisher == nil {
		publisher = audit.NopPublisher{}
	}
	if notifier == nil {
		notifier = notify.NopNotifier{}
	}
	return &caseService{
		casesRepo: casesRepo,
		publisher: publisher,
		notifier:  notifier,
		logger:    logger,
	}
}

func (s *caseService) CreateCase(ctx context.Context, req CreateCaseRequest) (*domain.Case, error) {
	c := &domain.Case{
		ClientID:        req.ClientID,
		AdditionalNotes: req.AdditionalNotes,
	}
	id, err := s.casesRepo.CreateCase(ctx, c)
	if err != nil {
		return nil, err
	}
	return s.casesRepo.GetCase(ctx, id)
}

func (s *caseService) GetCase(ctx context.Context, id string) (*domain.Case, error) {
	return s.casesRepo.GetCase(ctx, id)
}

func (s *caseService) ListCases(ctx context.Context, req ListCasesRequest) (*ListCasesResponse, error) {
	filters := &repository.CaseFilters{ClientID: req.ClientID}

	if req.Status != "" {
		status, ok := domain.ParseStatus(req.Status)
		if !ok {
			return nil, domain.ErrInvalidStatus
		}
		filters.Status = status
	}
	if req.Priority != "" {
		p, err := domain.ParsePriority(req.Priority)
		if err != nil {
			return nil, err
		}
		filters.Priority = p
	}

	cases, total, err := s.casesRepo.ListCases(ctx, filters, req.Page, req.Size)
	if err != nil {
		return nil, err
	}
	return &ListCasesResponse{Cases: cases, Total: total}, nil
}

func (s *caseService) UpdateCase(ctx context.Context, req UpdateCaseRequest) (*domain.Case, error) {
	// 输入校验先于任何读写
	var reqPriority domain.CasePriority
	if req.Priority != nil {
		p, err := domain.ParsePriority(*req.Priority)
		if err != nil {
			return nil, err
		}
		reqPriority = p
	}
	var reqStatus domain.CaseStatus
	if req.Status != nil {
		st, ok := domain.ParseStatus(*req.Status)
		if !ok {
			return nil, domain.ErrInvalidStatus
		}
		reqStatus = st
	}

	current, err := s.casesRepo.GetCase(ctx, req.ID)
	if err != nil {
		return nil, err
	}

	next := *current
	if req.Status != nil {
		next.Status = reqStatus
	}
	if req.Priority != nil {
		next.Priority = reqPriority
		next.PriorityLastSetBy = domain.ActorOperator
	}
	if req.HasDebtEmergency != nil {
		next.HasDebtEmergency = *req.HasDebtEmergency
	}
	if req.EmergencyAcknowledged != nil {
		next.EmergencyAcknowledged = *req.EmergencyAcknowledged
	}
	if req.AdditionalNotes != nil {
		next.AdditionalNotes = *req.AdditionalNotes
	}

	// 升级规则用更新后的 emergency flag 计算；
	// emergency 为真时覆盖客户端提供的 priority（请求仍然成功）
	if required, changed := escalation.RequiredPriority(next.Priority, next.HasDebtEmergency); changed {
		if req.Priority != nil {
			s.logger.Info("Escalation overrides operator-supplied priority",
				zap.String("case_id", req.ID),
				zap.String("supplied", string(next.Priority)),
				zap.String("required", string(required)),
			)
		}
		next.Priority = required
		next.PriorityLastSetBy = domain.ActorEscalation
	}

	expected := req.Version
	if expected == 0 {
		expected = current.Version
	}

	updated, err := s.casesRepo.UpdateCaseChecked(ctx, &next, expected)
	if err != nil {
		return nil, err
	}

	s.emitPriorityChange(current, updated)
	return updated, nil
}

func (s *caseService) RunEmergencyCheck(ctx context.Context, id string, hasDebtEmergency, acknowledged bool) (*domain.Case, error) {
	current, err := s.casesRepo.GetCase(ctx, id)
	if err != nil {
		return nil, err
	}

	next := *current
	next.HasDebtEmergency = hasDebtEmergency
	next.EmergencyAcknowledged = acknowledged

	if required, changed := escalation.RequiredPriority(next.Priority, next.HasDebtEmergency); changed {
		next.Priority = required
		next.PriorityLastSetBy = domain.ActorEscalation
	}

	updated, err := s.casesRepo.UpdateCaseChecked(ctx, &next, current.Version)
	if err != nil {
		return nil, err
	}

	s.emitPriorityChange(current, updated)
	return updated, nil
}

func (s *caseService) ResetEmergencyCheck(ctx context.Context, id string) (*domain.Case, error) {
	current, err := s.casesRepo.GetCase(ctx, id)
	if err != nil {
		return nil, err
	}

	next := *current
	next.HasDebtEmergency = false
	next.EmergencyAcknowledged = false
	// 清除 emergency 不自动降低 priority（升级规则单向）

	return s.casesRepo.UpdateCaseChecked(ctx, &next, current.Version)
}

// emitPriorityChange 提交成功后外发审计事件和通知
// fire-and-forget：失败只记日志，不回滚、不向调用方报错
func (s *caseService) emitPriorityChange(before, after *domain.Case) {
	if before.Priority == after.Priority {
		return
	}

	event := audit.PriorityChange{
		CaseID:      after.ID,
		OldPriority: string(before.Priority),
		NewPriority: string(after.Priority),
		Actor:       string(after.PriorityLastSetBy),
		ChangedAt:   after.UpdatedAt,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.publisher.PublishPriorityChange(ctx, event); err != nil {
		s.logger.Warn("Failed to publish priority change event",
			zap.String("case_id", after.ID),
			zap.Error(err),
		)
	}
	if err := s.notifier.NotifyPriorityChange(ctx, after.ID, event.OldPriority, event.NewPriority); err != nil {
		s.logger.Warn("Failed to send priority change notification",
			zap.String("case_id", after.ID),
			zap.Error(err),
		)
	}
}
