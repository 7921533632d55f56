package provider

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"maps"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/lysyi3m/rss-nest/app/feed"
)

// Provider runs the fixed generation pipeline for one site:
// validate, build request, fetch, parse, extract, filter and assemble.
type Provider struct {
	source   Source
	fetcher  Fetcher
	engine   Extractor
	filterer *feed.Filterer
	now      func() time.Time
}

func New(source Source, fetcher Fetcher, engine Extractor) *Provider {
	return &Provider{
		source:   source,
		fetcher:  fetcher,
		engine:   engine,
		filterer: feed.NewFilterer(),
		now:      time.Now,
	}
}

func (p *Provider) SiteID() string {
	return p.source.Descriptor().SiteID
}

func (p *Provider) Descriptor() *Descriptor {
	return p.source.Descriptor()
}

func (p *Provider) ValidateParams(params feed.Params) bool {
	if v, ok := p.source.(ParamValidator); ok {
		return v.ValidateParams(params)
	}
	return true
}

func (p *Provider) ParamsHelp() string {
	return p.source.Descriptor().ParamsHelp
}

// Generate produces the canonical feed for params. Failures are returned as
// *feed.Error; causes that carry no kind are reported as generation failures.
func (p *Provider) Generate(ctx context.Context, params feed.Params) (result *feed.Feed, err error) {
	desc := p.source.Descriptor()
	started := p.now()

	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = feed.GenerationFailure(fmt.Sprintf("panic in %s provider", desc.SiteID), fmt.Errorf("%v", r))
		}
		if err != nil && feed.KindOf(err) == feed.KindUnknown {
			err = feed.GenerationFailure(fmt.Sprintf("failed to generate %s feed", desc.SiteID), err)
		}
		if err != nil {
			slog.Error("Feed generation failed", "site", desc.SiteID, "params", params.Canonical(), "error", err)
		}
	}()

	if !p.ValidateParams(params) {
		return nil, feed.InvalidParameter("invalid parameters for %s: %s", desc.SiteID, params.Canonical())
	}

	req, err := p.source.BuildRequest(params)
	if err != nil {
		return nil, err
	}

	headers := p.headers(desc, req)
	body, err := p.fetcher.Get(ctx, req.URL, headers, desc.Charset)
	if err != nil {
		return nil, feed.FetchFailure(req.URL, err)
	}

	articles, err := p.extract(body, params)
	if err != nil {
		return nil, err
	}

	articles = p.filterer.Run(articles, desc.Filters)

	result = feed.Assemble(feed.Meta{
		Title:       p.source.Title(params),
		Link:        cmp.Or(desc.RSS.Link, desc.BaseURL),
		Description: p.source.Description(params),
		Language:    cmp.Or(desc.RSS.Language, DefaultLanguage),
		SelfPath:    feed.SelfPath(desc.SiteID, params),
		PageSize:    cmp.Or(desc.RSS.PageSize, DefaultPageSize),
	}, articles, p.now())

	slog.Info("Feed generated",
		"site", desc.SiteID,
		"params", params.Canonical(),
		"extracted", len(articles),
		"articles", len(result.Articles),
		"duration", time.Since(started))

	return result, nil
}

func (p *Provider) extract(body string, params feed.Params) ([]feed.Article, error) {
	if raw, ok := p.source.(RawExtractor); ok {
		return raw.ExtractRaw(body, params)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, feed.ParseFailure("failed to parse document", err)
	}

	if custom, ok := p.source.(DocumentExtractor); ok {
		return custom.ExtractDocument(doc, params)
	}

	desc := p.source.Descriptor()
	if desc.Parse == nil {
		return nil, feed.GenerationFailure(fmt.Sprintf("%s has neither an extractor nor a parse config", desc.SiteID), nil)
	}

	return p.engine.Extract(doc, *desc.Parse)
}

func (p *Provider) headers(desc *Descriptor, req Request) map[string]string {
	headers := make(map[string]string, len(DefaultHeaders)+len(desc.Headers)+len(req.Headers))
	if len(desc.Headers) == 0 {
		maps.Copy(headers, DefaultHeaders)
	}
	maps.Copy(headers, desc.Headers)
	maps.Copy(headers, req.Headers)
	return headers
}
