// Package notify 案例通知外发（webhook，fire-and-forget）
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// PriorityChangeNotification webhook 载荷
// message 文案与前端展示保持一致
type PriorityChangeNotification struct {
	CaseID      string `json:"case_id"`
	OldPriority string `json:"old_priority"`
	NewPriority string `json:"new_priority"`
	Message     string `json:"message"`
}

// Notifier 通知发送接口
type Notifier interface {
	NotifyPriorityChange(ctx context.Context, caseID, oldPriority, newPriority string) error
}

// WebhookClient 通过 HTTP POST 推送通知到外部收件系统
type WebhookClient struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

// NewWebhookClient 创建 webhook 客户端
func NewWebhookClient(baseURL string, logger *zap.Logger) *WebhookClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10*time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500*time.Millisecond).
		SetRetryMaxWaitTime(2*time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &WebhookClient{httpClient: client, logger: logger}
}

var _ Notifier = (*WebhookClient)(nil)

// NotifyPriorityChange 推送优先级变更通知
func (c *WebhookClient) NotifyPriorityChange(ctx context.Context, caseID, oldPriority, newPriority string) error {
	payload := PriorityChangeNotification{
		CaseID:      caseID,
		OldPriority: oldPriority,
		NewPriority: newPriority,
		Message:     fmt.Sprintf("The priority of your case has changed to %s", newPriority),
	}

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(payload).
		Post("")
	if err != nil {
		return fmt.Errorf("failed to send priority change notification: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("notification webhook returned status %d", resp.StatusCode())
	}

	c.logger.Debug("Sent priority change notification",
		zap.String("case_id", caseID),
		zap.String("new_priority", newPriority),
	)
	return nil
}

// NopNotifier 空实现（未配置 webhook 时使用）
type NopNotifier struct{}

var _ Notifier = (*NopNotifier)(nil)

func (NopNotifier) NotifyPriorityChange(ctx context.Context, caseID, oldPriority, newPriority string) error {
	return nil
}
