package domain

import (
	"regexp"
)

// MaxEmailLength RFC 5321 规定的邮箱地址最大长度
const MaxEmailLength = 254

// 基础格式 local@domain.tld，不允许空白和多余的 @
var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidateEmailAddress 校验已规范化的邮箱地址
func ValidateEmailAddress(email string) error {
	if email == "" || len(email) > MaxEmailLength {
		return ErrInvalidEmail
	}
	if !emailRegex.MatchString(email) {
		return ErrInvalidEmail
	}
	return nil
}

// ValidateEmail 简化的验证函数，返回 bool
func ValidateEmail(email string) bool {
	return ValidateEmailAddress(NormalizeEmail(email)) == nil
}
