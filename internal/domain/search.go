package domain

// ResultType 搜索结果类型
type ResultType string

const (
	ResultService   ResultType = "service"
	ResultCaseStudy ResultType = "case-study"
	ResultBlog      ResultType = "blog"
)

// SearchResult 聚合搜索的单条结果
//
// 评分只在排序阶段使用，不会出现在 JSON 输出中。
type SearchResult struct {
	ID      string     `json:"id"`
	Type    ResultType `json:"type"`
	Title   string     `json:"title"`
	Excerpt string     `json:"excerpt"`
	URL     string     `json:"url"`
	Tag     string     `json:"tag,omitempty"`
	Meta    string     `json:"meta,omitempty"`
}
