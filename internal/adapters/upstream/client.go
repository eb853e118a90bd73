// Package upstream pulls observations from the remote biodiversity REST backend.
package upstream

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

// Client implements ports.ObservationSource.
type Client struct {
	baseURL  string
	token    string
	pageSize int
	timeout  time.Duration
	http     *fasthttp.Client
}

// New creates a Client.
func New(baseURL, token string, pageSize int, timeout time.Duration) *Client {
	if pageSize <= 0 {
		pageSize = 200
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		token:    token,
		pageSize: pageSize,
		timeout:  timeout,
		http: &fasthttp.Client{
			Name:         "obsmap-ingestor",
			ReadTimeout:  timeout,
			WriteTimeout: timeout,
		},
	}
}

// FetchUserObservations fetches one page (1-based) of a user's
// observations from one source. The bool reports whether more pages follow.
func (c *Client) FetchUserObservations(ctx context.Context, userID string, src domain.Source, page int) ([]domain.Observation, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if page < 1 {
		page = 1
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.pageURL(userID, src, page))
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	timeout := c.timeout
	if dl, ok := ctx.Deadline(); ok {
		if left := time.Until(dl); left < timeout {
			timeout = left
		}
	}
	if err := c.http.DoTimeout(req, resp, timeout); err != nil {
		return nil, false, fmt.Errorf("fetch %s/%s page %d: %w", userID, src, page, err)
	}
	if code := resp.StatusCode(); code != fasthttp.StatusOK {
		return nil, false, fmt.Errorf("fetch %s/%s page %d: unexpected status %d", userID, src, page, code)
	}

	return DecodePage(resp.Body(), userID, src)
}

func (c *Client) pageURL(userID string, src domain.Source, page int) string {
	q := url.Values{}
	q.Set("source", string(src))
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(c.pageSize))
	return c.baseURL + "/users/" + url.PathEscape(userID) + "/observations?" + q.Encode()
}

type pageResponse struct {
	Data []record `json:"data"`
	Meta struct {
		CurrentPage int `json:"current_page"`
		LastPage    int `json:"last_page"`
	} `json:"meta"`
	HasMore *bool `json:"has_more"`
}

type record struct {
	ID             flexString       `json:"id"`
	Source         string           `json:"source"`
	Latitude       flexFloat        `json:"latitude"`
	Longitude      flexFloat        `json:"longitude"`
	ObservedAt     string           `json:"observed_at"`
	CreatedAt      string           `json:"created_at"`
	Photo          string           `json:"photo_url"`
	ScientificName string           `json:"scientific_name"`
	CommonName     string           `json:"common_name"`
	TaxonID        flexString       `json:"taxon_id"`
	Species        []checklistEntry `json:"species"`
}

type checklistEntry struct {
	ScientificName string `json:"scientific_name"`
	CommonName     string `json:"common_name"`
	Count          int    `json:"count"`
}

// DecodePage parses an upstream page and normalises its records.
// Records that fail validation are skipped.
func DecodePage(body []byte, userID string, src domain.Source) ([]domain.Observation, bool, error) {
	var page pageResponse
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, false, fmt.Errorf("decode page: %w", err)
	}

	out := make([]domain.Observation, 0, len(page.Data))
	for _, r := range page.Data {
		o, err := r.normalize(userID, src)
		if err != nil {
			continue
		}
		out = append(out, o)
	}

	more := page.Meta.CurrentPage > 0 && page.Meta.CurrentPage < page.Meta.LastPage
	if page.HasMore != nil {
		more = *page.HasMore
	}
	return out, more, nil
}

func (r record) normalize(userID string, fallback domain.Source) (domain.Observation, error) {
	if r.ID == "" {
		return domain.Observation{}, fmt.Errorf("record without id")
	}
	src := fallback
	if r.Source != "" {
		parsed, err := domain.ParseSource(r.Source)
		if err != nil {
			return domain.Observation{}, err
		}
		src = parsed
	}

	o := domain.Observation{
		ID:         domain.QualifiedID(src, string(r.ID)),
		Source:     src,
		UserID:     userID,
		Latitude:   r.Latitude.ptr,
		Longitude:  r.Longitude.ptr,
		ObservedAt: parseTime(r.ObservedAt, r.CreatedAt),
		Photo:      r.Photo,
	}
	if src.HasChecklist() {
		for _, s := range r.Species {
			o.Checklist = append(o.Checklist, domain.ChecklistEntry(s))
		}
	} else {
		o.Single = &domain.SingleSpecies{
			ScientificName: r.ScientificName,
			CommonName:     r.CommonName,
			TaxonID:        string(r.TaxonID),
		}
	}
	return o, o.Validate()
}

func parseTime(candidates ...string) time.Time {
	layouts := []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02"}
	for _, s := range candidates {
		if s == "" {
			continue
		}
		for _, layout := range layouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC()
			}
		}
	}
	return time.Time{}
}

// flexFloat accepts a JSON number, a numeric string, an empty string or null.
type flexFloat struct {
	ptr *float64
}

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		f.ptr = nil
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		// Unparseable coordinates are treated as missing.
		f.ptr = nil
		return nil
	}
	f.ptr = &v
	return nil
}

// flexString accepts a JSON string or number.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	s := string(b)
	if s == "null" {
		*f = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*f = flexString(v)
		return nil
	}
	*f = flexString(s)
	return nil
}
