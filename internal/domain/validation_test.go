package domain

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		expected bool
	}{
		{"Valid email", "test@example.com", true},
		{"Valid email with subdomain", "user@mail.example.com", true},
		{"Valid email with plus", "user+tag@example.com", true},
		{"Valid email with surrounding spaces", "  A@B.COM ", true},
		{"Invalid email - no @", "testexample.com", false},
		{"Invalid email - no domain", "test@", false},
		{"Invalid email - no tld", "test@example", false},
		{"Invalid email - no local part", "@example.com", false},
		{"Invalid email - multiple @", "test@@example.com", false},
		{"Invalid email - empty", "", false},
		{"Invalid email - inner space", "test @example.com", false},
		{"Invalid email - too long", strings.Repeat("a", 250) + "@b.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ValidateEmail(tt.email))
		})
	}
}

func TestErrInvalidEmailIsInvalidInput(t *testing.T) {
	assert.ErrorIs(t, ValidateEmailAddress("nope"), ErrInvalidInput)
	assert.ErrorIs(t, ErrMissingBroadcastFields, ErrInvalidInput)
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Reason
	}{
		{"缺少令牌", ErrMissingToken, ReasonMissingToken},
		{"无效令牌", fmt.Errorf("confirm: %w", ErrInvalidToken), ReasonInvalidToken},
		{"限流", ErrRateLimited, ReasonRateLimit},
		{"未配置", ErrNotConfigured, ReasonConfig},
		{"查询失败", fmt.Errorf("%w: boom", ErrPersistence), ReasonDatabaseError},
		{"更新失败", &UpdateError{Err: errors.New("boom")}, ReasonUpdateError},
		{"未知错误", errors.New("boom"), ReasonServerError},
		{"无错误", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}

	assert.ErrorIs(t, &UpdateError{Err: errors.New("boom")}, ErrPersistence)
}

func TestSubscriberClone(t *testing.T) {
	s := &Subscriber{Email: "a@b.com", ConfirmationToken: StringPtr("t1")}
	cp := s.Clone()
	*cp.ConfirmationToken = "changed"
	assert.Equal(t, "t1", *s.ConfirmationToken)
}

func TestContactInputValidate(t *testing.T) {
	valid := ContactInput{Name: " Ada ", Email: "ADA@example.com", Message: "We need a new platform."}.Normalize()
	assert.NoError(t, valid.Validate())
	assert.Equal(t, "ada@example.com", valid.Email)

	missingName := valid
	missingName.Name = ""
	assert.ErrorIs(t, missingName.Validate(), ErrInvalidInput)

	shortMessage := valid
	shortMessage.Message = "hi"
	assert.ErrorIs(t, shortMessage.Validate(), ErrInvalidInput)

	badEmail := valid
	badEmail.Email = "ada"
	assert.ErrorIs(t, badEmail.Validate(), ErrInvalidEmail)
}
