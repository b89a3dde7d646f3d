package httptransport

import (
	"errors"
	"net/http"

	"zephortech/backend/internal/domain"
)

// 通用错误消息
const (
	// 请求相关
	MsgInvalidRequest = "Invalid request body"
	MsgInvalidEmail   = "Please provide a valid email address"
	MsgRateLimited    = "Too many requests. Please try again later."

	// 订阅相关
	MsgSubscribed        = "Thanks for subscribing! Please check your inbox to confirm your subscription."
	MsgAlreadySubscribed = "You're already subscribed to our newsletter."
	MsgSubscribeFailed   = "We couldn't save your subscription. Please try again later."

	// 群发相关
	MsgMissingBroadcastFields = "Subject and content are required"
	MsgNoRecipients           = "No active subscribers to send to"
	MsgNewsletterNotFound     = "Newsletter not found"
	MsgNotConfigured          = "Newsletter sending is not configured"
	MsgBroadcastFailed        = "Failed to send newsletter"
	MsgStatsFailed            = "Failed to load subscriber statistics"

	// 搜索相关
	MsgSearchFailed = "Search is temporarily unavailable"

	// 内容缓存相关
	MsgContentInvalidated = "Content cache cleared"

	// 联系表单相关
	MsgContactReceived = "Thanks for reaching out! We'll get back to you shortly."
	MsgContactFailed   = "We couldn't send your message. Please try again later."

	// 服务器错误
	MsgInternalError = "Internal server error, please try again later"
)

// 错误消息映射表（业务错误 -> 用户消息），按顺序使用 errors.Is 匹配
var errorMessages = []struct {
	err    error
	status int
	msg    string
}{
	{domain.ErrInvalidEmail, http.StatusBadRequest, MsgInvalidEmail},
	{domain.ErrMissingBroadcastFields, http.StatusBadRequest, MsgMissingBroadcastFields},
	{domain.ErrNoRecipients, http.StatusBadRequest, MsgNoRecipients},
	{domain.ErrNewsletterNotFound, http.StatusNotFound, MsgNewsletterNotFound},
	{domain.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
	{domain.ErrRateLimited, http.StatusTooManyRequests, MsgRateLimited},
	{domain.ErrNotConfigured, http.StatusInternalServerError, MsgNotConfigured},
	{domain.ErrDeliveryFailed, http.StatusInternalServerError, MsgContactFailed},
	{domain.ErrPersistence, http.StatusInternalServerError, MsgInternalError},
}

// StatusFor 将业务错误映射为 HTTP 状态码和用户消息
//
// 未登记的 ErrInvalidInput 直接使用错误文本，便于提示具体字段；其他未知错误统一为 500。
func StatusFor(err error) (int, string) {
	for _, e := range errorMessages {
		if errors.Is(err, e.err) {
			return e.status, e.msg
		}
	}
	if errors.Is(err, domain.ErrInvalidInput) {
		return http.StatusBadRequest, err.Error()
	}
	return http.StatusInternalServerError, MsgInternalError
}
