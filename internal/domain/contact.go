package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// 联系表单字段长度限制
const (
	MaxContactNameLength    = 120
	MaxContactCompanyLength = 160
	MinContactMessageLength = 10
	MaxContactMessageLength = 5000
)

// ContactInput 联系表单提交内容
type ContactInput struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Company string `json:"company"`
	Message string `json:"message"`
}

// Normalize 去除各字段首尾空白并规范化邮箱
func (in ContactInput) Normalize() ContactInput {
	return ContactInput{
		Name:    strings.TrimSpace(in.Name),
		Email:   NormalizeEmail(in.Email),
		Company: strings.TrimSpace(in.Company),
		Message: strings.TrimSpace(in.Message),
	}
}

// Validate 校验联系表单（调用前应先 Normalize）
func (in ContactInput) Validate() error {
	nameLen := utf8.RuneCountInString(in.Name)
	if nameLen == 0 || nameLen > MaxContactNameLength {
		return fmt.Errorf("%w: name is required (max %d chars)", ErrInvalidInput, MaxContactNameLength)
	}
	if err := ValidateEmailAddress(in.Email); err != nil {
		return err
	}
	if utf8.RuneCountInString(in.Company) > MaxContactCompanyLength {
		return fmt.Errorf("%w: company too long (max %d chars)", ErrInvalidInput, MaxContactCompanyLength)
	}
	msgLen := utf8.RuneCountInString(in.Message)
	if msgLen < MinContactMessageLength || msgLen > MaxContactMessageLength {
		return fmt.Errorf("%w: message must be %d-%d chars", ErrInvalidInput, MinContactMessageLength, MaxContactMessageLength)
	}
	return nil
}

// ContactSubmission 已受理的联系表单
type ContactSubmission struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Company    string    `json:"company,omitempty"`
	Message    string    `json:"message"`
	ReceivedAt time.Time `json:"receivedAt"`
}
