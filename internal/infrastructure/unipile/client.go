package unipile

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/zenbase-ai/tech-for-iran-sub001/config"
)

// Client talks to the social-automation provider API. All engine traffic to
// the provider goes through here: post resolution at submission time, the
// reaction call per engagement step, and counter snapshots.
type Client struct {
	http *resty.Client
}

// NewClient creates a provider client over the given pooled HTTP client.
func NewClient(cfg *config.Config, httpClient *http.Client) *Client {
	rc := resty.NewWithClient(httpClient).
		SetBaseURL(cfg.ProviderBaseURL).
		SetHeader("X-API-KEY", cfg.ProviderAPIKey).
		SetHeader("Accept", "application/json").
		SetTimeout(cfg.ProviderTimeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			// Wire-level retries only for safe reads; reaction POSTs are
			// retried durably by the executor with ledger-based dedup.
			if r == nil || r.Request.Method != http.MethodGet {
				return false
			}
			return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= http.StatusInternalServerError
		})

	return &Client{http: rc}
}

// ResolvePost fetches a post by URL through the given account, returning the
// provider's canonical identifier and a content snapshot. Validation errors
// at this stage are permanent from the caller's point of view.
func (c *Client) ResolvePost(ctx context.Context, accountID, postURL string) (*PostDetails, error) {
	var details PostDetails

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("account_id", accountID).
		SetQueryParam("url", postURL).
		SetResult(&details).
		Get("/posts")
	if err != nil {
		return nil, fmt.Errorf("resolve post %s: %w", postURL, err)
	}
	if resp.IsError() {
		return nil, asAPIError(resp)
	}
	if details.URN == "" {
		return nil, fmt.Errorf("resolve post %s: provider returned no social id", postURL)
	}
	return &details, nil
}

// AddReaction performs one reaction on behalf of an account. The call is not
// assumed idempotent; callers must dedupe via the engagement ledger.
func (c *Client) AddReaction(ctx context.Context, accountID, urn, reaction string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{
			"account_id":    accountID,
			"post_id":       urn,
			"reaction_type": reaction,
		}).
		Post("/posts/reaction")
	if err != nil {
		return fmt.Errorf("add reaction for account %s: %w", accountID, err)
	}
	if resp.IsError() {
		return asAPIError(resp)
	}
	return nil
}

// FetchStats reads a post's engagement counters through the given account.
func (c *Client) FetchStats(ctx context.Context, accountID, urn string) (*PostStats, error) {
	var stats PostStats

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("account_id", accountID).
		SetResult(&stats).
		Get("/posts/" + urn)
	if err != nil {
		return nil, fmt.Errorf("fetch stats for %s: %w", urn, err)
	}
	if resp.IsError() {
		return nil, asAPIError(resp)
	}
	return &stats, nil
}

func asAPIError(resp *resty.Response) error {
	apiErr := &APIError{
		StatusCode: resp.StatusCode(),
		Message:    http.StatusText(resp.StatusCode()),
	}

	var body errorBody
	if err := json.Unmarshal(resp.Body(), &body); err == nil {
		if body.Type != "" {
			apiErr.Type = body.Type
		}
		if body.Detail != "" {
			apiErr.Message = body.Detail
		} else if body.Title != "" {
			apiErr.Message = body.Title
		}
	}
	return apiErr
}
