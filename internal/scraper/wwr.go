package scraper

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/baxromumarov/job-aggregator/internal/httpx"
)

const wwrFeedURL = "https://weworkremotely.com/remote-jobs.rss"

type wwrItem struct {
	title       string
	region      string
	jobType     string
	description string
	pubDate     string
	link        string
	guid        string
}

// WWRScraper reads the We Work Remotely RSS feed through colly, which also
// enforces the site's robots.txt and per-host pacing.
type WWRScraper struct {
	fetcher    *httpx.CollyFetcher
	feedURL    string
	normalizer Normalizer
}

func NewWWRScraper(fetcher *httpx.CollyFetcher, feedURL string) *WWRScraper {
	if feedURL == "" {
		feedURL = wwrFeedURL
	}
	return &WWRScraper{
		fetcher:    fetcher,
		feedURL:    feedURL,
		normalizer: NewSimpleNormalizer(),
	}
}

func (w *WWRScraper) Source() Source { return SourceWeWorkRemotely }

func (w *WWRScraper) Enabled() bool { return true }

func (w *WWRScraper) FiltersRemote(Query) bool { return true }

func (w *WWRScraper) Fetch(ctx context.Context, q Query) ([]Posting, error) {
	if q.WorkMode == WorkModeOnsite || q.WorkMode == WorkModeHybrid {
		return []Posting{}, nil
	}

	var items []wwrItem
	err := w.fetcher.Fetch(ctx, w.feedURL, func(c *colly.Collector) {
		c.OnXML("//item", func(e *colly.XMLElement) {
			items = append(items, wwrItem{
				title:       e.ChildText("title"),
				region:      e.ChildText("region"),
				jobType:     e.ChildText("type"),
				description: e.ChildText("description"),
				pubDate:     e.ChildText("pubDate"),
				link:        e.ChildText("link"),
				guid:        e.ChildText("guid"),
			})
		})
	})
	if err != nil {
		return nil, fmt.Errorf("wwr fetch failed: %w", err)
	}

	terms := keywordTerms(q.Keywords)
	postings := make([]Posting, 0, len(items))
	for _, it := range items {
		p, ok := w.mapItem(it)
		if !ok {
			continue
		}
		if !matchesAllTerms(strings.ToLower(p.Title+" "+p.Company), terms) {
			continue
		}
		postings = append(postings, p)
	}
	return postings, nil
}

func (w *WWRScraper) mapItem(it wwrItem) (Posting, bool) {
	link := firstNonEmpty(it.link, it.guid)
	if link == "" {
		return Posting{}, false
	}

	// Feed titles read "Company: Role".
	company, title := "", strings.TrimSpace(it.title)
	if i := strings.Index(title, ":"); i > 0 {
		company = strings.TrimSpace(title[:i])
		title = strings.TrimSpace(title[i+1:])
	}

	postedAt, raw := ParsePostedAt(it.pubDate, time.RFC1123Z, time.RFC1123)
	return Posting{
		ExternalID:  wwrExternalID(link),
		Source:      SourceWeWorkRemotely,
		Title:       title,
		Company:     company,
		Location:    firstNonEmpty(it.region, "Remote"),
		Description: cleanDescription(w.normalizer, it.description),
		URL:         link,
		PostedAt:    postedAt,
		RawPostedAt: raw,
		Kind:        InferKind(title, it.jobType),
		WorkMode:    WorkModeRemote,
	}, true
}

func wwrExternalID(link string) string {
	u, err := url.Parse(link)
	if err != nil || u.Path == "" || u.Path == "/" {
		return DeriveExternalID(link)
	}
	return path.Base(u.Path)
}
