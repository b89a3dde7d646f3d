package service

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/stretchr/testify/mock"

	"zephortech/backend/internal/domain"
	"zephortech/backend/internal/mailer"
	"zephortech/backend/internal/token"
)

// MockSender 模拟邮件发送器
type MockSender struct {
	mock.Mock
}

func (m *MockSender) Send(ctx context.Context, msg mailer.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

// sentTo 返回发往指定地址的邮件
func (m *MockSender) sentTo(email string) []mailer.Message {
	var out []mailer.Message
	for _, call := range m.Calls {
		msg := call.Arguments.Get(1).(mailer.Message)
		if len(msg.To) > 0 && msg.To[0] == email {
			out = append(out, msg)
		}
	}
	return out
}

func toRecipient(email string) any {
	return mock.MatchedBy(func(msg mailer.Message) bool {
		return len(msg.To) == 1 && msg.To[0] == email
	})
}

// sequentialTokens 生成 tok-1、tok-2 ... 便于断言
func sequentialTokens() token.Generator {
	var n atomic.Int64
	return token.GeneratorFunc(func() (string, error) {
		return fmt.Sprintf("tok-%d", n.Add(1)), nil
	})
}

// fakeSource 内存内容源
type fakeSource struct {
	services []domain.ServiceItem
	cases    []domain.CaseStudy
	posts    []domain.BlogPost
	issues   map[string]*domain.Newsletter
	err      error
	calls    atomic.Int64
}

func (f *fakeSource) ListServices(ctx context.Context) ([]domain.ServiceItem, error) {
	f.calls.Add(1)
	return f.services, f.err
}

func (f *fakeSource) ListCaseStudies(ctx context.Context) ([]domain.CaseStudy, error) {
	f.calls.Add(1)
	return f.cases, nil
}

func (f *fakeSource) ListBlogPosts(ctx context.Context) ([]domain.BlogPost, error) {
	f.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return f.posts, nil
}

func (f *fakeSource) GetNewsletter(_ context.Context, id string) (*domain.Newsletter, error) {
	if n, ok := f.issues[id]; ok {
		return n, nil
	}
	return nil, domain.ErrNewsletterNotFound
}
