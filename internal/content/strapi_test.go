package content

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zephortech/backend/internal/domain"
)

func TestStrapiSource(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/services", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer cms-token", r.Header.Get("Authorization"))
		assert.Equal(t, "100", r.URL.Query().Get("pagination[pageSize]"))
		page := r.URL.Query().Get("pagination[page]")
		fmt.Fprintf(w, `{"data":[{"id":%s,"attributes":{"slug":"svc-%s","title":"Cloud %s","shortDescription":"short","description":{"description":"long"},"features":[{"title":"Kubernetes"}],"category":{"data":{"attributes":{"name":"Engineering"}}}}}],"meta":{"pagination":{"page":%s,"pageCount":2}}}`, page, page, page, page)
	})
	mux.HandleFunc("/api/case-studies", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[{"id":7,"attributes":{"slug":"fintech","title":"FinTech Platform Modernization","summary":"s","excerpt":"e","challenge":"legacy core","strategy":{"content":"strangler fig"},"industry":"Finance","client":{"data":{"attributes":{"name":"Acme Bank"}}}}}],"meta":{"pagination":{"page":1,"pageCount":1}}}`)
	})
	mux.HandleFunc("/api/blog-posts", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[{"id":3,"attributes":{"slug":"ai","title":"AI in practice","excerpt":"x","tags":{"data":[{"attributes":{"name":"AI"}},{"attributes":{"name":"ML"}}]},"author":"Jane","publishedAt":"2024-03-01T00:00:00Z"}}],"meta":{"pagination":{"page":1,"pageCount":1}}}`)
	})
	mux.HandleFunc("/api/newsletters/42", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":{"id":42,"attributes":{"subject":"Issue 42","content":"<p>hi</p>","previewText":"pv"}}}`)
	})
	mux.HandleFunc("/api/newsletters/43", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":{"id":43,"attributes":{"subject":"Issue 43","markdown":"## Highlights\n\n- **Cloud** migration"}}}`)
	})
	mux.HandleFunc("/api/newsletters/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"data":null,"error":{"status":404}}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	src := NewStrapiSource(srv.URL+"/", "cms-token", time.Second)
	ctx := context.Background()

	t.Run("服务列表读取所有分页", func(t *testing.T) {
		items, err := src.ListServices(ctx)
		require.NoError(t, err)
		require.Len(t, items, 2)
		assert.Equal(t, "svc-1", items[0].Slug)
		assert.Equal(t, "long", items[0].Description)
		assert.Equal(t, "Engineering", items[0].Category)
		assert.Equal(t, []domain.Feature{{Title: "Kubernetes"}}, items[0].Features)
	})

	t.Run("案例兼容字符串与组件字段", func(t *testing.T) {
		items, err := src.ListCaseStudies(ctx)
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, "7", items[0].ID)
		assert.Equal(t, "legacy core", items[0].Challenge)
		assert.Equal(t, "strangler fig", items[0].Strategy)
		assert.Equal(t, "Finance", items[0].Industry)
		assert.Equal(t, "Acme Bank", items[0].Client)
	})

	t.Run("博客标签关联", func(t *testing.T) {
		items, err := src.ListBlogPosts(ctx)
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, []string{"AI", "ML"}, items[0].Tags)
		assert.Equal(t, "Jane", items[0].Author)
	})

	t.Run("按ID读取期刊", func(t *testing.T) {
		n, err := src.GetNewsletter(ctx, "42")
		require.NoError(t, err)
		assert.Equal(t, "Issue 42", n.Subject)
		assert.Equal(t, "<p>hi</p>", n.HTML)

		md, err := src.GetNewsletter(ctx, "43")
		require.NoError(t, err)
		assert.Contains(t, md.HTML, "<h2>Highlights</h2>")
		assert.Contains(t, md.HTML, "<strong>Cloud</strong>")

		_, err = src.GetNewsletter(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrNewsletterNotFound)
	})

	t.Run("服务端错误向上传递", func(t *testing.T) {
		broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer broken.Close()

		_, err := NewStrapiSource(broken.URL, "", time.Second).ListServices(ctx)
		assert.ErrorContains(t, err, "502")
	})
}
