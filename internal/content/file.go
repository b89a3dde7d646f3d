package content

import (
	"context"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"zephortech/backend/internal/domain"
)

// fileDocument YAML 内容文件结构
type fileDocument struct {
	Services    []domain.ServiceItem `yaml:"services"`
	CaseStudies []domain.CaseStudy   `yaml:"caseStudies"`
	BlogPosts   []domain.BlogPost    `yaml:"blogPosts"`
	Newsletters []fileNewsletter     `yaml:"newsletters"`
}

type fileNewsletter struct {
	ID          string `yaml:"id"`
	Subject     string `yaml:"subject"`
	HTML        string `yaml:"html"`
	PreviewText string `yaml:"previewText"`
}

// FileSource 从 YAML 文件读取内容，用于本地开发和测试
type FileSource struct {
	path string
	mu   sync.RWMutex
	doc  fileDocument
}

// NewFileSource 加载 YAML 内容文件
func NewFileSource(path string) (*FileSource, error) {
	s := &FileSource{path: path}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// NewFileSourceFromBytes 从内存中的 YAML 构建内容源
func NewFileSourceFromBytes(data []byte) (*FileSource, error) {
	s := &FileSource{}
	if err := s.load(data); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload 重新读取内容文件
func (s *FileSource) Reload() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("read content file: %w", err)
	}
	return s.load(data)
}

func (s *FileSource) load(data []byte) error {
	var doc fileDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse content file: %w", err)
	}
	s.mu.Lock()
	s.doc = doc
	s.mu.Unlock()
	return nil
}

// ListServices 实现 Source
func (s *FileSource) ListServices(ctx context.Context) ([]domain.ServiceItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.ServiceItem(nil), s.doc.Services...), nil
}

// ListCaseStudies 实现 Source
func (s *FileSource) ListCaseStudies(ctx context.Context) ([]domain.CaseStudy, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.CaseStudy(nil), s.doc.CaseStudies...), nil
}

// ListBlogPosts 实现 Source
func (s *FileSource) ListBlogPosts(ctx context.Context) ([]domain.BlogPost, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.BlogPost(nil), s.doc.BlogPosts...), nil
}

// GetNewsletter 实现 IssueSource
func (s *FileSource) GetNewsletter(ctx context.Context, id string) (*domain.Newsletter, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, n := range s.doc.Newsletters {
		if n.ID == id {
			return &domain.Newsletter{
				ID:          n.ID,
				Subject:     n.Subject,
				HTML:        n.HTML,
				PreviewText: n.PreviewText,
			}, nil
		}
	}
	return nil, domain.ErrNewsletterNotFound
}
