// Package hh reads employers and vacancies from the public hh.ru api.
package hh

import (
	"context"
	"encoding/json"
	"fmt"
	"github.com/csr-ugra/hh-vacancy-loader/internal"
	"github.com/csr-ugra/hh-vacancy-loader/internal/apperror"
	"github.com/csr-ugra/hh-vacancy-loader/internal/log"
	"github.com/sirupsen/logrus"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	defaultBaseUrl   = "https://api.hh.ru"
	defaultUserAgent = "hh-vacancy-loader/1.0"
	defaultPerPage   = 100
	maxBodySize      = 16 << 20
)

type Client struct {
	baseUrl   string
	userAgent string
	perPage   int
	client    *http.Client
	logger    log.Logger
}

func New(opts ...Option) *Client {
	c := &Client{
		baseUrl:   defaultBaseUrl,
		userAgent: defaultUserAgent,
		perPage:   defaultPerPage,
		client:    &http.Client{Timeout: 15 * time.Second},
		logger:    log.Discard(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type Option func(*Client)

func WithBaseUrl(u string) Option {
	return func(c *Client) { c.baseUrl = u }
}

func WithHttpClient(client *http.Client) Option {
	return func(c *Client) { c.client = client }
}

// WithUserAgent sets the value of both User-Agent and HH-User-Agent; hh.ru
// rejects requests that do not identify the application.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// WithPerPage sets the page size of the single vacancies request. Zero leaves
// the api default.
func WithPerPage(n int) Option {
	return func(c *Client) { c.perPage = n }
}

func WithLogger(logger log.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

type vacanciesResponse struct {
	Items []json.RawMessage `json:"items"`
	Found int               `json:"found"`
	Pages int               `json:"pages"`
}

// FetchEmployer returns nil when hh.ru answers with a client error such as 404.
func (c *Client) FetchEmployer(ctx context.Context, employerId int64) (*internal.RawEmployer, error) {
	path := "/employers/" + strconv.FormatInt(employerId, 10)

	body, status, err := c.get(ctx, path, nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		c.logger.WithFields(logrus.Fields{
			"EmployerId": employerId,
			"Status":     status,
		}).Warn("employer not available")
		return nil, nil
	}

	var employer internal.RawEmployer
	if err := json.Unmarshal(body, &employer); err != nil {
		return nil, apperror.TransientFetch(fmt.Sprintf("malformed employer %d response", employerId), err)
	}

	return &employer, nil
}

// FetchVacancies returns the first page of the employer's vacancies. Client
// errors yield an empty list; items that are not vacancy objects are dropped.
func (c *Client) FetchVacancies(ctx context.Context, employerId int64) ([]internal.RawVacancy, error) {
	query := url.Values{"employer_id": {strconv.FormatInt(employerId, 10)}}
	if c.perPage > 0 {
		query.Set("per_page", strconv.Itoa(c.perPage))
	}

	logger := c.logger.WithField("EmployerId", employerId)

	body, status, err := c.get(ctx, "/vacancies", query)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		logger.WithField("Status", status).Warn("vacancies not available")
		return []internal.RawVacancy{}, nil
	}

	var res vacanciesResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, apperror.TransientFetch(fmt.Sprintf("malformed vacancies response for employer %d", employerId), err)
	}

	vacancies := make([]internal.RawVacancy, 0, len(res.Items))
	for i, item := range res.Items {
		var v internal.RawVacancy
		if err := json.Unmarshal(item, &v); err != nil {
			logger.WithFields(logrus.Fields{
				"Index": i,
				"Error": err,
			}).Warn("skipping malformed vacancy item")
			continue
		}
		vacancies = append(vacancies, v)
	}

	if res.Found > len(res.Items) {
		logger.WithFields(logrus.Fields{
			"Found":   res.Found,
			"Fetched": len(res.Items),
		}).Debug("employer has more vacancies than one page")
	}

	return vacancies, nil
}

// get performs the request. Network failures, 429 and 5xx responses are
// returned as transient errors; other statuses are handed back to the caller.
func (c *Client) get(ctx context.Context, path string, query url.Values) (body []byte, status int, err error) {
	u := c.baseUrl + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("HH-User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	res, err := c.client.Do(req)
	if err != nil {
		return nil, 0, apperror.TransientFetch("request "+path+" failed", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusTooManyRequests || res.StatusCode >= http.StatusInternalServerError {
		_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, maxBodySize))
		return nil, res.StatusCode, apperror.TransientFetch(fmt.Sprintf("%s returned status %d", path, res.StatusCode), nil)
	}

	body, err = io.ReadAll(io.LimitReader(res.Body, maxBodySize))
	if err != nil {
		return nil, res.StatusCode, apperror.TransientFetch("read "+path+" response", err)
	}

	return body, res.StatusCode, nil
}
