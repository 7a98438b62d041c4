// Package escalation 优先级升级规则（纯函数，无 I/O）
//
// 每条写路径（交互更新 / emergency-check / 批量迁移）都必须经由
// RequiredPriority 计算目标优先级，规则只存在这一份。
package escalation

import (
	"github.com/PriyavPithia/backend-priyav-cat/internal/domain"
)

// RequiredPriority computes the priority a case must carry given its
// (post-update) emergency flag.
//
// Rules:
//  1. No emergency: the current priority stands. This function never
//     downgrades — clearing the flag does not lower a human-set URGENT.
//  2. Emergency: URGENT, regardless of the current value.
//
// changed reports whether a write is needed.
func RequiredPriority(current domain.CasePriority, hasDebtEmergency bool) (domain.CasePriority, bool) {
	if !hasDebtEmergency {
		return current, false
	}
	return domain.PriorityUrgent, current != domain.PriorityUrgent
}
