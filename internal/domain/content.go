package domain

import "time"

// Feature 服务特性
type Feature struct {
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// ServiceItem 服务条目
type ServiceItem struct {
	ID               string    `json:"id" yaml:"id"`
	Slug             string    `json:"slug" yaml:"slug"`
	Title            string    `json:"title" yaml:"title"`
	ShortDescription string    `json:"shortDescription" yaml:"shortDescription"`
	Description      string    `json:"description" yaml:"description"`
	Features         []Feature `json:"features" yaml:"features"`
	Category         string    `json:"category,omitempty" yaml:"category,omitempty"`
}

// CaseStudy 客户案例
type CaseStudy struct {
	ID        string `json:"id" yaml:"id"`
	Slug      string `json:"slug" yaml:"slug"`
	Title     string `json:"title" yaml:"title"`
	Summary   string `json:"summary" yaml:"summary"`
	Excerpt   string `json:"excerpt" yaml:"excerpt"`
	Challenge string `json:"challenge" yaml:"challenge"`
	Strategy  string `json:"strategy" yaml:"strategy"`
	Industry  string `json:"industry,omitempty" yaml:"industry,omitempty"`
	Client    string `json:"client,omitempty" yaml:"client,omitempty"`
}

// BlogPost 博客文章
type BlogPost struct {
	ID          string     `json:"id" yaml:"id"`
	Slug        string     `json:"slug" yaml:"slug"`
	Title       string     `json:"title" yaml:"title"`
	Excerpt     string     `json:"excerpt" yaml:"excerpt"`
	Tags        []string   `json:"tags" yaml:"tags"`
	Author      string     `json:"author,omitempty" yaml:"author,omitempty"`
	PublishedAt *time.Time `json:"publishedAt,omitempty" yaml:"publishedAt,omitempty"`
}
