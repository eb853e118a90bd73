// Package nominatim is a reverse-geocoding client for the Nominatim API.
package nominatim

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/fobi-id/obsmap/internal/core/domain"
)

// Client implements ports.Geocoder.
type Client struct {
	baseURL   string
	userAgent string
	language  string
	timeout   time.Duration
	http      *fasthttp.Client
}

// Options configures a Client.
type Options struct {
	BaseURL   string
	UserAgent string
	Language  string
	Timeout   time.Duration
}

// New creates a Client. Nominatim's usage policy requires an identifying
// User-Agent, so an empty one is replaced with a default.
func New(opts Options) *Client {
	if opts.UserAgent == "" {
		opts.UserAgent = "obsmap/1.0"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	return &Client{
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		userAgent: opts.UserAgent,
		language:  opts.Language,
		timeout:   opts.Timeout,
		http: &fasthttp.Client{
			Name:                opts.UserAgent,
			MaxConnsPerHost:     4,
			ReadTimeout:         opts.Timeout,
			WriteTimeout:        opts.Timeout,
			MaxIdleConnDuration: time.Minute,
		},
	}
}

type reverseResponse struct {
	DisplayName string         `json:"display_name"`
	Address     domain.Address `json:"address"`
	Error       string         `json:"error"`
}

// Reverse looks up the place at (lat, lon).
func (c *Client) Reverse(ctx context.Context, lat, lon float64) (*domain.Place, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.reverseURL(lat, lon))
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	if err := c.http.DoTimeout(req, resp, c.deadline(ctx)); err != nil {
		return nil, fmt.Errorf("nominatim reverse: %w", err)
	}
	if code := resp.StatusCode(); code != fasthttp.StatusOK {
		return nil, fmt.Errorf("nominatim reverse: unexpected status %d", code)
	}

	var body reverseResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, fmt.Errorf("nominatim reverse: decode: %w", err)
	}
	if body.Error != "" {
		return nil, fmt.Errorf("nominatim reverse: %s: %w", body.Error, domain.ErrNotFound)
	}
	return &domain.Place{DisplayName: body.DisplayName, Address: body.Address}, nil
}

func (c *Client) reverseURL(lat, lon float64) string {
	q := url.Values{}
	q.Set("format", "jsonv2")
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("zoom", "14")
	q.Set("addressdetails", "1")
	if c.language != "" {
		q.Set("accept-language", c.language)
	}
	return c.baseURL + "/reverse?" + q.Encode()
}

// deadline is the configured timeout, shortened by any context deadline.
func (c *Client) deadline(ctx context.Context) time.Duration {
	d := c.timeout
	if dl, ok := ctx.Deadline(); ok {
		if left := time.Until(dl); left < d {
			d = left
		}
	}
	if d <= 0 {
		d = time.Millisecond
	}
	return d
}
