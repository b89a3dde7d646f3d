package domain

import "errors"

// 业务错误定义，调用方通过 errors.Is 区分
var (
	ErrInvalidInput           = errors.New("invalid input")
	ErrInvalidEmail           = wrapKind(ErrInvalidInput, "invalid email address")
	ErrMissingBroadcastFields = wrapKind(ErrInvalidInput, "subject and content are required")
	ErrMissingToken           = errors.New("token is required")
	ErrInvalidToken           = errors.New("invalid or expired token")
	ErrRateLimited            = errors.New("too many requests")
	ErrUnauthorized           = errors.New("unauthorized")
	ErrNoRecipients           = errors.New("no active subscribers")
	ErrPersistence            = errors.New("persistence failure")
	ErrDeliveryFailed         = errors.New("email delivery failed")
	ErrNewsletterNotFound     = errors.New("newsletter not found")
	ErrNotConfigured          = errors.New("not configured")
)

// Reason 重定向错误页使用的机器可读原因码
type Reason string

const (
	ReasonMissingToken  Reason = "missing-token"
	ReasonInvalidToken  Reason = "invalid-token"
	ReasonDatabaseError Reason = "database-error"
	ReasonUpdateError   Reason = "update-error"
	ReasonConfig        Reason = "config"
	ReasonRateLimit     Reason = "rate-limit"
	ReasonServerError   Reason = "server-error"
)

// UpdateError 标记"已找到记录但写回失败"，用于区分 database-error 与 update-error
type UpdateError struct {
	Err error
}

func (e *UpdateError) Error() string {
	return "update failed: " + e.Err.Error()
}

func (e *UpdateError) Unwrap() []error {
	return []error{ErrPersistence, e.Err}
}

// KindOf 将错误映射为原因码
func KindOf(err error) Reason {
	var updateErr *UpdateError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMissingToken):
		return ReasonMissingToken
	case errors.Is(err, ErrInvalidToken):
		return ReasonInvalidToken
	case errors.Is(err, ErrRateLimited):
		return ReasonRateLimit
	case errors.Is(err, ErrNotConfigured):
		return ReasonConfig
	case errors.As(err, &updateErr):
		return ReasonUpdateError
	case errors.Is(err, ErrPersistence):
		return ReasonDatabaseError
	default:
		return ReasonServerError
	}
}

type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.kind }

func wrapKind(kind error, msg string) error {
	return &kindError{kind: kind, msg: msg}
}
