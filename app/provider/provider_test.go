package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lysyi3m/rss-nest/app/extract"
	"github.com/lysyi3m/rss-nest/app/feed"
)

type stubFetcher struct {
	body    string
	err     error
	url     string
	headers map[string]string
	calls   int
}

func (f *stubFetcher) Get(ctx context.Context, url string, headers map[string]string, forcedCharset string) (string, error) {
	f.calls++
	f.url = url
	f.headers = headers
	return f.body, f.err
}

type stubSource struct {
	desc       *Descriptor
	categories Categories
}

func (s *stubSource) Descriptor() *Descriptor { return s.desc }

func (s *stubSource) BuildRequest(params feed.Params) (Request, error) {
	category, err := s.categories.Lookup(params.Get("category", "news"))
	if err != nil {
		return Request{}, err
	}
	return Request{URL: category.URL, Headers: map[string]string{"X-Category": category.Code}}, nil
}

func (s *stubSource) Title(params feed.Params) string {
	return "Stub - " + params.Get("category", "news")
}

func (s *stubSource) Description(params feed.Params) string { return "stub feed" }

func newStubSource() *stubSource {
	parse := extract.DefaultParseConfig()
	parse.ListSelector = "li"
	parse.TitleSelector = "a"
	parse.LinkSelector = "a"
	parse.URLPrefix = "https://stub.example.com"

	return &stubSource{
		desc: &Descriptor{
			SiteID:  "stub",
			Name:    "Stub",
			BaseURL: "https://stub.example.com",
			Parse:   &parse,
			RSS:     RSSConfig{PageSize: 10},
			Cache:   DefaultCacheConfig(),
		},
		categories: Categories{
			{Code: "news", Name: "News", URL: "https://stub.example.com/news"},
			{Code: "Tech", Name: "Tech", URL: "https://stub.example.com/tech"},
		},
	}
}

const stubListing = `<ul>
<li><a href="/a/1">One</a></li>
<li><a>No link</a></li>
<li><a href="https://elsewhere.example.com/3">Three</a></li>
</ul>`

func TestGenerateDeclarativeSite(t *testing.T) {
	fetcher := &stubFetcher{body: stubListing}
	p := New(newStubSource(), fetcher, extract.NewEngine())

	result, err := p.Generate(context.Background(), feed.Params{"category": "tech"})
	require.NoError(t, err)

	assert.Equal(t, "https://stub.example.com/tech", fetcher.url)
	assert.Equal(t, "Tech", fetcher.headers["X-Category"])
	assert.NotEmpty(t, fetcher.headers["User-Agent"], "default headers apply when the site declares none")

	assert.Equal(t, "Stub - tech", result.Title)
	assert.Equal(t, "https://stub.example.com", result.Link)
	assert.Equal(t, DefaultLanguage, result.Language)
	assert.Equal(t, "stub?category=tech", result.SelfPath)

	require.Len(t, result.Articles, 2)
	assert.Equal(t, "https://stub.example.com/a/1", result.Articles[0].URL)
	assert.Equal(t, "https://elsewhere.example.com/3", result.Articles[1].URL)
	for _, article := range result.Articles {
		assert.NotNil(t, article.PublishedAt)
		assert.Equal(t, article.Title, article.Content)
	}
}

func TestGenerateUnknownCategory(t *testing.T) {
	fetcher := &stubFetcher{body: stubListing}
	p := New(newStubSource(), fetcher, extract.NewEngine())

	_, err := p.Generate(context.Background(), feed.Params{"category": "sports"})
	require.Error(t, err)
	assert.ErrorIs(t, err, feed.ErrInvalidParameter)
	assert.Zero(t, fetcher.calls, "nothing is fetched for invalid params")
}

func TestGenerateFetchFailure(t *testing.T) {
	cause := errors.New("connection refused")
	p := New(newStubSource(), &stubFetcher{err: cause}, extract.NewEngine())

	_, err := p.Generate(context.Background(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, feed.ErrFetchFailure)
	assert.ErrorIs(t, err, cause)
}

func TestGenerateMalformedListSelector(t *testing.T) {
	source := newStubSource()
	source.desc.Parse.ListSelector = "li[[["
	p := New(source, &stubFetcher{body: stubListing}, extract.NewEngine())

	_, err := p.Generate(context.Background(), nil)
	assert.ErrorIs(t, err, feed.ErrParseFailure)
}

func TestGenerateWithoutParseConfig(t *testing.T) {
	source := newStubSource()
	source.desc.Parse = nil
	p := New(source, &stubFetcher{body: stubListing}, extract.NewEngine())

	_, err := p.Generate(context.Background(), nil)
	assert.ErrorIs(t, err, feed.ErrGenerationFailure)
}

func TestGenerateRespectsPageSize(t *testing.T) {
	source := newStubSource()
	source.desc.RSS.PageSize = 1
	p := New(source, &stubFetcher{body: stubListing}, extract.NewEngine())

	result, err := p.Generate(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, result.Articles, 1)
}

func TestGenerateAppliesFilters(t *testing.T) {
	source := newStubSource()
	source.desc.Filters = []feed.Filter{{Field: "title", Excludes: []string{"three"}}}
	p := New(source, &stubFetcher{body: stubListing}, extract.NewEngine())

	result, err := p.Generate(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, result.Articles, 1)
	assert.Equal(t, "One", result.Articles[0].Title)
}

type customSource struct {
	*stubSource
	articles []feed.Article
	err      error
	panics   bool
}

func (c *customSource) ExtractDocument(doc *goquery.Document, params feed.Params) ([]feed.Article, error) {
	if c.panics {
		panic("boom")
	}
	return c.articles, c.err
}

func (c *customSource) ValidateParams(params feed.Params) bool {
	return params.Get("bad", "") == ""
}

func TestGenerateCustomExtractor(t *testing.T) {
	source := &customSource{
		stubSource: newStubSource(),
		articles: []feed.Article{
			{Title: "Custom", URL: "https://stub.example.com/custom"},
			{Title: "", URL: "https://stub.example.com/no-title"},
		},
	}
	p := New(source, &stubFetcher{body: "<html></html>"}, extract.NewEngine())

	result, err := p.Generate(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, result.Articles, 1)
	assert.Equal(t, "Custom", result.Articles[0].Title)
}

func TestGenerateWrapsUntypedErrors(t *testing.T) {
	cause := errors.New("unexpected markup")
	source := &customSource{stubSource: newStubSource(), err: cause}
	p := New(source, &stubFetcher{body: "<html></html>"}, extract.NewEngine())

	_, err := p.Generate(context.Background(), nil)
	assert.ErrorIs(t, err, feed.ErrGenerationFailure)
	assert.ErrorIs(t, err, cause)
}

func TestGeneratePassesTypedErrorsThrough(t *testing.T) {
	source := &customSource{stubSource: newStubSource(), err: feed.ParseFailure("bad document", nil)}
	p := New(source, &stubFetcher{body: "<html></html>"}, extract.NewEngine())

	_, err := p.Generate(context.Background(), nil)
	assert.Equal(t, feed.KindParseFailure, feed.KindOf(err))
}

func TestGenerateRecoversPanics(t *testing.T) {
	source := &customSource{stubSource: newStubSource(), panics: true}
	p := New(source, &stubFetcher{body: "<html></html>"}, extract.NewEngine())

	result, err := p.Generate(context.Background(), nil)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, feed.ErrGenerationFailure)
}

func TestGenerateParamValidator(t *testing.T) {
	source := &customSource{stubSource: newStubSource()}
	fetcher := &stubFetcher{body: "<html></html>"}
	p := New(source, fetcher, extract.NewEngine())

	assert.False(t, p.ValidateParams(feed.Params{"bad": "1"}))

	_, err := p.Generate(context.Background(), feed.Params{"bad": "1"})
	assert.ErrorIs(t, err, feed.ErrInvalidParameter)
	assert.Zero(t, fetcher.calls)
}

type rawSource struct {
	*stubSource
	got string
}

func (r *rawSource) ExtractRaw(body string, params feed.Params) ([]feed.Article, error) {
	r.got = body
	return []feed.Article{{Title: "Raw", URL: "https://stub.example.com/raw"}}, nil
}

func TestGenerateRawExtractor(t *testing.T) {
	source := &rawSource{stubSource: newStubSource()}
	source.desc.Headers = map[string]string{"Accept": "application/json"}
	fetcher := &stubFetcher{body: `{"items":[]}`}
	p := New(source, fetcher, extract.NewEngine())

	result, err := p.Generate(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, `{"items":[]}`, source.got)
	assert.Len(t, result.Articles, 1)
	assert.Equal(t, "application/json", fetcher.headers["Accept"])
	assert.Empty(t, fetcher.headers["User-Agent"], "declared headers replace the defaults")
}

func TestCategoriesLookup(t *testing.T) {
	categories := newStubSource().categories

	category, err := categories.Lookup("TECH")
	require.NoError(t, err)
	assert.Equal(t, "Tech", category.Code)

	_, err = categories.Lookup("missing")
	assert.ErrorIs(t, err, feed.ErrInvalidParameter)
	assert.Contains(t, err.Error(), "news, Tech")
}

func TestCacheConfigTTL(t *testing.T) {
	assert.Equal(t, DefaultCacheTTL, CacheConfig{}.TTLDuration())
	assert.Equal(t, 1800, int(CacheConfig{TTL: 1800}.TTLDuration().Seconds()))
	assert.True(t, DefaultCacheConfig().Enabled)
}
