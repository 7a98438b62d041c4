package domain

import (
	"fmt"
	"strings"
)

// CasePriority 案例优先级（对应 cases.priority 列）
// 全序枚举：LOW < NORMAL < URGENT
type CasePriority string

const (
	PriorityLow    CasePriority = "LOW"
	PriorityNormal CasePriority = "NORMAL"
	PriorityUrgent CasePriority = "URGENT"
)

// ErrInvalidPriority 无效的优先级值（写入前拒绝）
var ErrInvalidPriority = fmt.Errorf("invalid priority value. Must be one of: LOW, NORMAL, URGENT")

// AllPriorities returns all valid priority values in ascending order.
func AllPriorities() []CasePriority {
	return []CasePriority{PriorityLow, PriorityNormal, PriorityUrgent}
}

// ParsePriority parses a string into a CasePriority, case-insensitive.
// Unknown values (including the retired "HIGH") are rejected.
func ParsePriority(s string) (CasePriority, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "LOW":
		return PriorityLow, nil
	case "NORMAL":
		return PriorityNormal, nil
	case "URGENT":
		return PriorityUrgent, nil
	default:
		return "", ErrInvalidPriority
	}
}

// String returns the string representation of the priority.
func (p CasePriority) String() string {
	return string(p)
}

// Rank returns a numeric rank for ordering (higher = more urgent).
// rank(LOW) < rank(NORMAL) < rank(URGENT).
func (p CasePriority) Rank() int {
	switch p {
	case PriorityLow:
		return 0
	case PriorityNormal:
		return 1
	case PriorityUrgent:
		return 2
	default:
		return -1
	}
}

// IsValid reports whether p is one of the three known levels.
func (p CasePriority) IsValid() bool {
	return p.Rank() >= 0
}

// legacyPriorities 旧值映射表（仅批量迁移使用）
// 历史数据中存在已废弃的 "HIGH" 值，统一翻译为 URGENT
var legacyPriorities = map[string]CasePriority{
	"HIGH": PriorityUrgent,
}

// TranslateLegacyPriority maps a retired raw column value onto its current
// level. ok is false when raw is not a known legacy value.
func TranslateLegacyPriority(raw string) (CasePriority, bool) {
	p, ok := legacyPriorities[strings.ToUpper(strings.TrimSpace(raw))]
	return p, ok
}

// PriorityActor 优先级写入者（对应 cases.priority_last_set_by 列）
// 记录当前 priority 值由哪类行为产生，用于审计和覆盖判断
type PriorityActor string

const (
	ActorOperator   PriorityActor = "operator"
	ActorEscalation PriorityActor = "escalation"
	ActorMigration  PriorityActor = "migration"
)

// ParsePriorityActor parses a provenance tag stored in the database.
func ParsePriorityActor(s string) (PriorityActor, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "operator":
		return ActorOperator, nil
	case "escalation":
		return ActorEscalation, nil
	case "migration":
		return ActorMigration, nil
	default:
		return "", fmt.Errorf("invalid priority actor: %q", s)
	}
}
