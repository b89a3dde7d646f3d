package content

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"zephortech/backend/internal/domain"
)

const strapiPageSize = 100

// StrapiSource 通过 Strapi v4 REST API 读取内容
type StrapiSource struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewStrapiSource 创建 Strapi 内容源
//
// 参数:
//   - baseURL: Strapi 根地址，例如 "http://localhost:1337"
//   - token: API Token，留空表示公开访问
func NewStrapiSource(baseURL, token string, timeout time.Duration) *StrapiSource {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &StrapiSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

type strapiEntry[T any] struct {
	ID         json.Number `json:"id"`
	Attributes T           `json:"attributes"`
}

type strapiList[T any] struct {
	Data []strapiEntry[T] `json:"data"`
	Meta struct {
		Pagination struct {
			Page      int `json:"page"`
			PageCount int `json:"pageCount"`
		} `json:"pagination"`
	} `json:"meta"`
}

type strapiSingle[T any] struct {
	Data *strapiEntry[T] `json:"data"`
}

// richText 兼容纯字符串与 {description}/{content} 组件两种形态
type richText string

func (r *richText) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*r = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*r = richText(s)
		return nil
	}
	var obj struct {
		Description string `json:"description"`
		Content     string `json:"content"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	if obj.Description != "" {
		*r = richText(obj.Description)
	} else {
		*r = richText(obj.Content)
	}
	return nil
}

// relationName 读取 {data:{attributes:{name}}} 形式的关联名称，也接受纯字符串
type relationName string

func (r *relationName) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*r = relationName(s)
		return nil
	}
	var rel struct {
		Data *struct {
			Attributes struct {
				Name  string `json:"name"`
				Title string `json:"title"`
			} `json:"attributes"`
		} `json:"data"`
	}
	if err := json.Unmarshal(b, &rel); err != nil {
		return err
	}
	if rel.Data != nil {
		if rel.Data.Attributes.Name != "" {
			*r = relationName(rel.Data.Attributes.Name)
		} else {
			*r = relationName(rel.Data.Attributes.Title)
		}
	}
	return nil
}

type serviceAttrs struct {
	Slug             string         `json:"slug"`
	Title            string         `json:"title"`
	ShortDescription string         `json:"shortDescription"`
	Description      richText       `json:"description"`
	Features         []featureAttrs `json:"features"`
	Category         relationName   `json:"category"`
}

type featureAttrs struct {
	Title       string   `json:"title"`
	Description richText `json:"description"`
}

type caseStudyAttrs struct {
	Slug      string       `json:"slug"`
	Title     string       `json:"title"`
	Summary   string       `json:"summary"`
	Excerpt   string       `json:"excerpt"`
	Challenge richText     `json:"challenge"`
	Strategy  richText     `json:"strategy"`
	Industry  relationName `json:"industry"`
	Client    relationName `json:"client"`
}

type blogPostAttrs struct {
	Slug        string       `json:"slug"`
	Title       string       `json:"title"`
	Excerpt     string       `json:"excerpt"`
	Tags        tagList      `json:"tags"`
	Author      relationName `json:"author"`
	PublishedAt *time.Time   `json:"publishedAt"`
}

type tagAttrs struct {
	Name string `json:"name"`
}

// tagList 兼容字符串数组与 {data:[{attributes:{name}}]} 关联
type tagList []string

func (t *tagList) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	if b[0] == '[' {
		var plain []string
		if err := json.Unmarshal(b, &plain); err == nil {
			*t = plain
			return nil
		}
		var objs []tagAttrs
		if err := json.Unmarshal(b, &objs); err != nil {
			return err
		}
		for _, o := range objs {
			*t = append(*t, o.Name)
		}
		return nil
	}
	var rel struct {
		Data []struct {
			Attributes tagAttrs `json:"attributes"`
		} `json:"data"`
	}
	if err := json.Unmarshal(b, &rel); err != nil {
		return err
	}
	for _, d := range rel.Data {
		*t = append(*t, d.Attributes.Name)
	}
	return nil
}

type newsletterAttrs struct {
	Subject     string     `json:"subject"`
	HTML        string     `json:"html"`
	Content     string     `json:"content"`
	Markdown    string     `json:"markdown"`
	PreviewText string     `json:"previewText"`
	SentAt      *time.Time `json:"sentAt"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// ListServices 实现 Source
func (s *StrapiSource) ListServices(ctx context.Context) ([]domain.ServiceItem, error) {
	entries, err := fetchAll[serviceAttrs](ctx, s, "services")
	if err != nil {
		return nil, err
	}
	items := make([]domain.ServiceItem, 0, len(entries))
	for _, e := range entries {
		features := make([]domain.Feature, 0, len(e.Attributes.Features))
		for _, f := range e.Attributes.Features {
			features = append(features, domain.Feature{Title: f.Title, Description: string(f.Description)})
		}
		items = append(items, domain.ServiceItem{
			ID:               e.ID.String(),
			Slug:             e.Attributes.Slug,
			Title:            e.Attributes.Title,
			ShortDescription: e.Attributes.ShortDescription,
			Description:      string(e.Attributes.Description),
			Features:         features,
			Category:         string(e.Attributes.Category),
		})
	}
	return items, nil
}

// ListCaseStudies 实现 Source
func (s *StrapiSource) ListCaseStudies(ctx context.Context) ([]domain.CaseStudy, error) {
	entries, err := fetchAll[caseStudyAttrs](ctx, s, "case-studies")
	if err != nil {
		return nil, err
	}
	items := make([]domain.CaseStudy, 0, len(entries))
	for _, e := range entries {
		items = append(items, domain.CaseStudy{
			ID:        e.ID.String(),
			Slug:      e.Attributes.Slug,
			Title:     e.Attributes.Title,
			Summary:   e.Attributes.Summary,
			Excerpt:   e.Attributes.Excerpt,
			Challenge: string(e.Attributes.Challenge),
			Strategy:  string(e.Attributes.Strategy),
			Industry:  string(e.Attributes.Industry),
			Client:    string(e.Attributes.Client),
		})
	}
	return items, nil
}

// ListBlogPosts 实现 Source
func (s *StrapiSource) ListBlogPosts(ctx context.Context) ([]domain.BlogPost, error) {
	entries, err := fetchAll[blogPostAttrs](ctx, s, "blog-posts")
	if err != nil {
		return nil, err
	}
	items := make([]domain.BlogPost, 0, len(entries))
	for _, e := range entries {
		items = append(items, domain.BlogPost{
			ID:          e.ID.String(),
			Slug:        e.Attributes.Slug,
			Title:       e.Attributes.Title,
			Excerpt:     e.Attributes.Excerpt,
			Tags:        []string(e.Attributes.Tags),
			Author:      string(e.Attributes.Author),
			PublishedAt: e.Attributes.PublishedAt,
		})
	}
	return items, nil
}

// GetNewsletter 实现 IssueSource
func (s *StrapiSource) GetNewsletter(ctx context.Context, id string) (*domain.Newsletter, error) {
	var resp strapiSingle[newsletterAttrs]
	status, err := s.get(ctx, "newsletters/"+url.PathEscape(id), nil, &resp)
	if status == http.StatusNotFound {
		return nil, domain.ErrNewsletterNotFound
	}
	if err != nil {
		return nil, err
	}
	if resp.Data == nil {
		return nil, domain.ErrNewsletterNotFound
	}

	attrs := resp.Data.Attributes
	html := attrs.HTML
	if html == "" {
		html = attrs.Content
	}
	if html == "" && attrs.Markdown != "" {
		if html, err = RenderMarkdown(attrs.Markdown); err != nil {
			return nil, fmt.Errorf("render newsletter %s: %w", id, err)
		}
	}
	return &domain.Newsletter{
		ID:          resp.Data.ID.String(),
		Subject:     attrs.Subject,
		HTML:        html,
		PreviewText: attrs.PreviewText,
		SentAt:      attrs.SentAt,
		CreatedAt:   attrs.CreatedAt,
	}, nil
}

// fetchAll 依次读取集合的所有分页
func fetchAll[T any](ctx context.Context, s *StrapiSource, collection string) ([]strapiEntry[T], error) {
	var all []strapiEntry[T]
	for page := 1; ; page++ {
		query := url.Values{}
		query.Set("populate", "*")
		query.Set("pagination[page]", strconv.Itoa(page))
		query.Set("pagination[pageSize]", strconv.Itoa(strapiPageSize))

		var resp strapiList[T]
		if _, err := s.get(ctx, collection, query, &resp); err != nil {
			return nil, err
		}
		all = append(all, resp.Data...)

		if page >= resp.Meta.Pagination.PageCount || len(resp.Data) == 0 {
			return all, nil
		}
	}
}

func (s *StrapiSource) get(ctx context.Context, path string, query url.Values, out any) (int, error) {
	endpoint := s.baseURL + "/api/" + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("strapi %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return resp.StatusCode, fmt.Errorf("strapi %s: unexpected status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("strapi %s: decode: %w", path, err)
	}
	return resp.StatusCode, nil
}
