package domain

import (
	"fmt"
	"strings"
	"time"
)

// ErrInvalidStatus 无效的案例状态值
var ErrInvalidStatus = fmt.Errorf("invalid status value. Must be one of: pending, submitted, closed")

// CaseStatus 案例状态
type CaseStatus string

const (
	StatusPending   CaseStatus = "pending"   // Awaiting more information from client
	StatusSubmitted CaseStatus = "submitted" // Client has submitted, no additional info expected
	StatusClosed    CaseStatus = "closed"    // Adviser has downloaded info and stored in casebook
)

// ParseStatus parses a case status string.
func ParseStatus(s string) (CaseStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pending":
		return StatusPending, true
	case "submitted":
		return StatusSubmitted, true
	case "closed":
		return StatusClosed, true
	default:
		return "", false
	}
}

// Case 案例领域模型（对应 cases 表）
//
// 不变式：has_debt_emergency = true 时 priority 必须为 URGENT。
// priority 只能经由 service.CaseService / 迁移路径写入，
// 禁止其它代码直接改列，保证不变式有唯一的维护者。
type Case struct {
	// 主键
	ID string `db:"id"` // UUID, PRIMARY KEY

	// 关联
	ClientID string `db:"client_id"` // UUID, NOT NULL

	// 状态
	Status   CaseStatus   `db:"status"`   // VARCHAR(20), NOT NULL, DEFAULT 'pending'
	Priority CasePriority `db:"priority"` // VARCHAR(20), NOT NULL, DEFAULT 'NORMAL'

	// 紧急检查
	HasDebtEmergency      bool `db:"has_debt_emergency"`     // BOOLEAN, NOT NULL, DEFAULT FALSE
	EmergencyAcknowledged bool `db:"emergency_acknowledged"` // BOOLEAN, NOT NULL, DEFAULT FALSE

	// priority 写入来源（operator/escalation/migration）
	PriorityLastSetBy PriorityActor `db:"priority_last_set_by"` // VARCHAR(20), NOT NULL, DEFAULT 'operator'

	// 客户备注
	AdditionalNotes string `db:"additional_notes"` // TEXT, nullable

	// 乐观并发控制
	Version int64 `db:"version"` // BIGINT, NOT NULL, DEFAULT 1

	// 时间戳
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// SatisfiesEscalationInvariant reports whether the committed state is legal:
// an emergency case must carry URGENT priority. The converse is not required.
func (c *Case) SatisfiesEscalationInvariant() bool {
	return !c.HasDebtEmergency || c.Priority == PriorityUrgent
}
