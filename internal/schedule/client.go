package schedule

import (
	"context"
	"net/url"
	"strconv"
	"sync"
	"time"

	logx "istubot/pkg/logx"
)

// Options configures the schedule client. Zero fields pick defaults.
type Options struct {
	Fetcher       FetcherOptions
	CacheTTL      time.Duration
	CacheCapacity int
}

// Client is the facade over the schedule-acquisition pipeline: it
// fetches and parses the portal's catalog and weekly pages, caches
// weekly results by (group, ISO week), and keeps catalogs for the
// process lifetime. It is the only type other packages should call.
type Client struct {
	fetcher *Fetcher
	weeks   *weekCache
	log     logx.Logger

	// Catalogs change rarely; cache them until the refresh job or a
	// restart replaces them.
	catMu      sync.Mutex
	institutes []Institute
	groups     map[int]map[int][]Group
}

func NewClient(opt Options, log logx.Logger) *Client {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Client{
		fetcher: NewFetcher(opt.Fetcher, log.With(logx.String("comp", "schedule.fetch"))),
		weeks:   newWeekCache(opt.CacheTTL, opt.CacheCapacity),
		log:     log,
		groups:  map[int]map[int][]Group{},
	}
}

// ListInstitutes returns the institute catalog, fetching it on first use.
func (c *Client) ListInstitutes(ctx context.Context) ([]Institute, error) {
	c.catMu.Lock()
	cached := c.institutes
	c.catMu.Unlock()
	if cached != nil {
		return cached, nil
	}
	return c.RefreshInstitutes(ctx)
}

// RefreshInstitutes re-fetches the institute catalog unconditionally.
func (c *Client) RefreshInstitutes(ctx context.Context) ([]Institute, error) {
	page, err := c.fetcher.Fetch(ctx, url.Values{})
	if err != nil {
		return nil, err
	}
	institutes, err := ParseInstitutes(page)
	if err != nil {
		return nil, err
	}
	c.catMu.Lock()
	c.institutes = institutes
	c.catMu.Unlock()
	c.log.Debug("institute catalog refreshed", logx.Int("count", len(institutes)))
	return institutes, nil
}

// ListGroupsByCourse returns the course->groups mapping for one
// institute, fetched once per institute per process lifetime.
func (c *Client) ListGroupsByCourse(ctx context.Context, instituteID int) (map[int][]Group, error) {
	c.catMu.Lock()
	cached := c.groups[instituteID]
	c.catMu.Unlock()
	if cached != nil {
		return cached, nil
	}

	page, err := c.fetcher.Fetch(ctx, url.Values{"subdiv": {strconv.Itoa(instituteID)}})
	if err != nil {
		return nil, err
	}
	byCourse, err := ParseGroupsByCourse(page)
	if err != nil {
		return nil, err
	}
	c.catMu.Lock()
	c.groups[instituteID] = byCourse
	c.catMu.Unlock()
	return byCourse, nil
}

// GetWeekSchedule returns the parsed weekly schedule for the ISO week
// containing date. Results are cached; a hit never returns a
// partially-built result because insertion happens only after a full
// successful parse.
func (c *Client) GetWeekSchedule(ctx context.Context, groupID int, date time.Time) (WeekResult, error) {
	if res, ok := c.weeks.get(groupID, date); ok {
		return res, nil
	}

	page, err := c.fetcher.Fetch(ctx, url.Values{
		"group": {strconv.Itoa(groupID)},
		"date":  {date.Format("2006-01-02")},
	})
	if err != nil {
		return WeekResult{}, err
	}
	res, err := ParseWeek(page, date)
	if err != nil {
		return WeekResult{}, err
	}
	c.weeks.put(groupID, date, res)
	return res, nil
}

// SweepCache prunes the weekly cache; used by the refresh job.
func (c *Client) SweepCache() int { return c.weeks.sweep() }
