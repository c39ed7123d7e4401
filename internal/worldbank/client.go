package worldbank

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/time/rate"

	"ineqpanel/internal/config"
	"ineqpanel/internal/errors"
	"ineqpanel/pkg/contracts/domain"
)

// maxErrorBody bounds how much of a failed response is kept in the error
const maxErrorBody = 512

// Request describes what to fetch
type Request struct {
	Indicators []domain.Indicator
	Countries  []string
	StartYear  int
	EndYear    int
}

// DefaultRequest returns the fixed analysis inputs
func DefaultRequest() Request {
	return Request{
		Indicators: config.Indicators(),
		Countries:  config.Countries(),
		StartYear:  config.StartYear,
		EndYear:    config.EndYear,
	}
}

// Source produces the raw indicator table for a request
type Source interface {
	Fetch(ctx context.Context, req Request) (*domain.Table, error)
}

// Observer receives per-request accounting from the client
type Observer interface {
	RecordRequest(ctx context.Context, indicator string, status int)
	RecordRowsFetched(ctx context.Context, indicator string, rows int)
}

// Client is a World Bank Indicators API client
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	perPage    int
	logger     *slog.Logger
	observer   Observer
}

// Option configures a Client
type Option func(*Client)

// WithBaseURL overrides the API root, e.g. for an httptest server
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithHTTPClient sets the HTTP client
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLimiter sets the request limiter
func WithLimiter(limiter *rate.Limiter) Option {
	return func(c *Client) {
		c.limiter = limiter
	}
}

// WithPerPage sets the page size
func WithPerPage(perPage int) Option {
	return func(c *Client) {
		if perPage > 0 {
			c.perPage = perPage
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithObserver sets the request observer
func WithObserver(observer Observer) Option {
	return func(c *Client) {
		c.observer = observer
	}
}

// NewClient creates a client with defaults from the config constants
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:    config.DefaultWorldBankURL,
		httpClient: &http.Client{Timeout: config.DefaultHTTPTimeout},
		limiter:    rate.NewLimiter(rate.Limit(config.DefaultRequestRate), config.DefaultRequestBurst),
		perPage:    config.DefaultPerPage,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "worldbank")
	return c
}

// NewClientFromConfig creates a client from source settings. Extra options
// are applied last.
func NewClientFromConfig(cfg config.SourceConfig, opts ...Option) *Client {
	base := []Option{
		WithBaseURL(cfg.BaseURL),
		WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}),
		WithLimiter(rate.NewLimiter(rate.Limit(cfg.RequestRate), cfg.RequestBurst)),
		WithPerPage(cfg.PerPage),
	}
	return NewClient(append(base, opts...)...)
}

// Fetch downloads every indicator of req and merges them by (country, year).
// The returned table has one column per indicator in catalogue order and is
// sorted entity-major. Rows missing the dependent variable are kept; see
// Acquire for the filtered view.
func (c *Client) Fetch(ctx context.Context, req Request) (*domain.Table, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	columns := make([]string, len(req.Indicators))
	for i, ind := range req.Indicators {
		columns[i] = ind.Name
	}

	wanted := make(map[string]bool, len(req.Countries))
	for _, code := range req.Countries {
		wanted[strings.ToUpper(code)] = true
	}

	merged := newMerger(columns)

	for i, ind := range req.Indicators {
		rows, err := c.FetchIndicator(ctx, ind.Code, req.Countries, req.StartYear, req.EndYear)
		if err != nil {
			return nil, errors.NewAcquisitionError(
				fmt.Sprintf("failed to fetch indicator %s", ind.Code), err,
			).WithContext("indicator", ind.Code)
		}

		kept := 0
		for _, row := range rows {
			iso3 := strings.ToUpper(row.CountryISO3)
			if !wanted[iso3] {
				continue
			}
			year, err := strconv.Atoi(strings.TrimSpace(row.Date))
			if err != nil {
				return nil, errors.NewAcquisitionError(
					fmt.Sprintf("failed to fetch indicator %s", ind.Code),
					errors.NewParsingError(fmt.Sprintf("invalid date %q", row.Date), err),
				).WithContext("indicator", ind.Code)
			}
			if year < req.StartYear || year > req.EndYear {
				continue
			}
			merged.set(iso3, row.Country.Value, year, i, row.Value)
			kept++
		}

		c.logger.InfoContext(ctx, "Indicator fetched",
			slog.String("indicator", ind.Code),
			slog.String("column", ind.Name),
			slog.Int("rows", len(rows)),
			slog.Int("kept", kept))
	}

	table := merged.table()
	c.logger.InfoContext(ctx, "Indicators merged",
		slog.Int("indicators", len(req.Indicators)),
		slog.Int("rows", table.Len()))
	return table, nil
}

// FetchIndicator downloads all pages of one indicator for the given
// countries and inclusive year range.
func (c *Client) FetchIndicator(ctx context.Context, code string, countries []string, startYear, endYear int) ([]Row, error) {
	var all []Row
	for page := 1; ; page++ {
		meta, rows, err := c.fetchPage(ctx, code, countries, startYear, endYear, page)
		if err != nil {
			return nil, err
		}
		all = append(all, rows...)

		if c.observer != nil {
			c.observer.RecordRowsFetched(ctx, code, len(rows))
		}

		c.logger.DebugContext(ctx, "Page fetched",
			slog.String("indicator", code),
			slog.Int("page", page),
			slog.Int("pages", int(meta.Pages)),
			slog.Int("rows", len(rows)))

		if page >= int(meta.Pages) {
			break
		}
	}
	return all, nil
}

func (c *Client) fetchPage(ctx context.Context, code string, countries []string, startYear, endYear, page int) (*pageMeta, []Row, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, nil, errors.NewNetworkError("rate limiter wait", err)
	}

	endpoint := c.pageURL(code, countries, startYear, endYear, page)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, nil, errors.NewNetworkError("create request", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", fmt.Sprintf("%s/%s", "ineqpanel", config.AppVersion))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if c.observer != nil {
			c.observer.RecordRequest(ctx, code, 0)
		}
		return nil, nil, errors.NewNetworkError("execute request", err).WithContext("url", endpoint)
	}
	defer resp.Body.Close()

	if c.observer != nil {
		c.observer.RecordRequest(ctx, code, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, errors.NewNetworkError("read response", err).WithContext("url", endpoint)
	}

	if resp.StatusCode != http.StatusOK {
		snippet := string(body)
		if len(snippet) > maxErrorBody {
			snippet = snippet[:maxErrorBody]
		}
		return nil, nil, errors.NewNetworkError(
			fmt.Sprintf("unexpected status %d", resp.StatusCode), fmt.Errorf("%s", strings.TrimSpace(snippet)),
		).WithContext("status_code", resp.StatusCode).WithContext("url", endpoint)
	}

	meta, rows, err := decodePage(body)
	if err != nil {
		var apiErr *APIError
		if stderrors.As(err, &apiErr) {
			return nil, nil, err
		}
		return nil, nil, errors.NewParsingError("decode response", err).WithContext("url", endpoint)
	}
	return meta, rows, nil
}

// pageURL builds {base}/country/{c1;c2}/indicator/{code}?date=..&format=json&per_page=..&page=..
func (c *Client) pageURL(code string, countries []string, startYear, endYear, page int) string {
	q := url.Values{}
	q.Set("date", fmt.Sprintf("%d:%d", startYear, endYear))
	q.Set("format", "json")
	q.Set("per_page", strconv.Itoa(c.perPage))
	q.Set("page", strconv.Itoa(page))

	return fmt.Sprintf("%s/country/%s/indicator/%s?%s",
		c.baseURL,
		strings.Join(countries, ";"),
		url.PathEscape(code),
		q.Encode())
}

func validateRequest(req Request) error {
	switch {
	case len(req.Indicators) == 0:
		return errors.NewValidationError("no indicators requested")
	case len(req.Countries) == 0:
		return errors.NewValidationError("no countries requested")
	case req.StartYear > req.EndYear:
		return errors.NewValidationError(
			fmt.Sprintf("start year %d is after end year %d", req.StartYear, req.EndYear))
	}
	seen := make(map[string]bool, len(req.Indicators))
	for _, ind := range req.Indicators {
		if ind.Code == "" || ind.Name == "" {
			return errors.NewValidationError("indicator code and name are required")
		}
		if seen[ind.Name] {
			return errors.NewValidationError(fmt.Sprintf("duplicate indicator column %s", ind.Name))
		}
		seen[ind.Name] = true
	}
	return nil
}

// Acquired is the outcome of Acquire
type Acquired struct {
	// Raw holds every merged row, including those without the dependent variable.
	Raw *domain.Table
	// Table holds only rows with the dependent variable present.
	Table *domain.Table
}

// Acquire fetches req from source and drops rows missing the dependent
// variable. Covariate missingness is preserved.
func Acquire(ctx context.Context, source Source, req Request) (*Acquired, error) {
	raw, err := source.Fetch(ctx, req)
	if err != nil {
		if errors.IsType(err, errors.ErrTypeAcquisition) {
			return nil, err
		}
		return nil, errors.NewAcquisitionError("failed to fetch indicators", err)
	}
	if raw.ColumnIndex(domain.DependentVariable) < 0 {
		return nil, errors.NewAcquisitionError(
			fmt.Sprintf("dependent variable %s not in fetched columns", domain.DependentVariable), nil)
	}
	return &Acquired{
		Raw:   raw,
		Table: raw.DropMissing(domain.DependentVariable),
	}, nil
}
