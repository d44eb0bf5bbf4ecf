package grantdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/fundermatch/platform/pkg/common/httpclient"
	"github.com/fundermatch/platform/pkg/common/logger"
)

// ErrNotFound is returned when the remote API reports 404 for an
// organisation or its grants.
var ErrNotFound = errors.New("grantdata: not found")

// APIError is any non-2xx response other than 404. The client never retries;
// callers decide.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("grantdata: api error %d: %s", e.StatusCode, e.Body)
}

// Client is the typed accessor over the remote grant-data API. Every request
// passes through the shared Limiter.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *Limiter
}

func NewClient(baseURL string, timeout time.Duration, limiter *Limiter) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpclient.New(timeout),
		limiter: limiter,
	}
}

func (c *Client) getEnvelope(ctx context.Context, path string, params url.Values) (listEnvelope, error) {
	var envelope listEnvelope
	err := c.limiter.Do(ctx, func() error {
		body, err := c.get(ctx, path, params)
		if err != nil {
			return err
		}
		return json.Unmarshal(body, &envelope)
	})
	return envelope, err
}

func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint = endpoint + "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return body, nil
}

// ListOrganisations fetches one page of the organisation directory.
func (c *Client) ListOrganisations(ctx context.Context, limit, offset int) (OrgPage, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	params.Set("offset", strconv.Itoa(offset))

	envelope, err := c.getEnvelope(ctx, "/org/", params)
	if err != nil {
		return OrgPage{}, err
	}

	page := OrgPage{
		Count:      envelope.Count,
		HasNext:    envelope.Next != nil,
		NextOffset: offset + len(envelope.Results),
	}
	for _, raw := range envelope.Results {
		var org OrgSummary
		if err := json.Unmarshal(raw, &org); err != nil {
			logger.Log.WithError(err).Warn("skipping malformed organisation record")
			continue
		}
		page.Organisations = append(page.Organisations, org)
	}
	return page, nil
}

// GetOrganisationDetail fetches funder/recipient aggregate statistics for one
// organisation. Returns ErrNotFound when the remote reports 404.
func (c *Client) GetOrganisationDetail(ctx context.Context, orgID string) (OrgDetail, error) {
	var detail OrgDetail
	err := c.limiter.Do(ctx, func() error {
		body, err := c.get(ctx, "/org/"+url.PathEscape(orgID)+"/", nil)
		if err != nil {
			return err
		}
		return json.Unmarshal(body, &detail)
	})
	return detail, err
}

// ListGrantsMade fetches one page of grants made by an organisation. Each
// record keeps its raw payload alongside the decoded fields.
func (c *Client) ListGrantsMade(ctx context.Context, orgID string, limit, offset int) (GrantPage, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	params.Set("offset", strconv.Itoa(offset))

	envelope, err := c.getEnvelope(ctx, "/org/"+url.PathEscape(orgID)+"/grants_made/", params)
	if err != nil {
		return GrantPage{}, err
	}

	page := GrantPage{
		Count:      envelope.Count,
		HasNext:    envelope.Next != nil,
		NextOffset: offset + len(envelope.Results),
	}
	for _, raw := range envelope.Results {
		var grant GrantRecord
		if err := json.Unmarshal(raw, &grant); err != nil {
			logger.Log.WithError(err).WithField("org_id", orgID).Warn("skipping malformed grant record")
			continue
		}
		grant.Raw = append(json.RawMessage(nil), raw...)
		page.Grants = append(page.Grants, grant)
	}
	return page, nil
}
