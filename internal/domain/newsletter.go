package domain

import (
	"strings"
	"time"
)

// Newsletter 预先保存的一期新闻通讯，可以按 ID 群发
type Newsletter struct {
	ID          string     `json:"id"`
	Subject     string     `json:"subject"`
	HTML        string     `json:"html"`
	PreviewText string     `json:"previewText,omitempty"`
	SentAt      *time.Time `json:"sentAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// BroadcastContent 解析后的群发内容，群发流程只依赖该结构
type BroadcastContent struct {
	Subject     string
	HTML        string
	PreviewText string
	IssueID     string // 来源于已保存期刊时非空
}

// Validate 校验主题与正文不能为空
func (c BroadcastContent) Validate() error {
	if strings.TrimSpace(c.Subject) == "" || strings.TrimSpace(c.HTML) == "" {
		return ErrMissingBroadcastFields
	}
	return nil
}

// DeliveryError 单个收件人的发送失败记录
type DeliveryError struct {
	Email string `json:"email"`
	Error string `json:"error"`
}

// BroadcastReport 群发结果汇总
type BroadcastReport struct {
	Total  int             `json:"total"`
	Sent   int             `json:"sent"`
	Failed int             `json:"failed"`
	Errors []DeliveryError `json:"errors"`
}
