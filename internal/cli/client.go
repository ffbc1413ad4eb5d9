package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) EnsurePlayer(ctx context.Context, playerID, displayName string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/players", map[string]any{
		"player_id":    playerID,
		"display_name": displayName,
	}, &out)
	return out, err
}

func (c *Client) State(ctx context.Context, playerID string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/players/"+url.PathEscape(playerID)+"/state", nil, &out)
	return out, err
}

func (c *Client) Purchase(ctx context.Context, playerID, upgradeID string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/players/"+url.PathEscape(playerID)+"/purchase", map[string]any{
		"upgrade_id": upgradeID,
	}, &out)
	return out, err
}

func (c *Client) Bonus(ctx context.Context, playerID string, amountMicros int64, source string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/players/"+url.PathEscape(playerID)+"/bonus", map[string]any{
		"amount_micros": amountMicros,
		"source":        source,
	}, &out)
	return out, err
}

func (c *Client) Upgrades(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/upgrades", nil, &out)
	return out, err
}

func (c *Client) Achievements(ctx context.Context, playerID string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/players/"+url.PathEscape(playerID)+"/achievements", nil, &out)
	return out, err
}

func (c *Client) Leaderboard(ctx context.Context, by string, top int, ids []string) (map[string]any, error) {
	q := url.Values{}
	if by != "" {
		q.Set("by", by)
	}
	if top > 0 {
		q.Set("top", fmt.Sprintf("%d", top))
	}
	if len(ids) > 0 {
		q.Set("ids", strings.Join(ids, ","))
	}
	path := "/v1/leaderboard"
	if enc := q.Encode(); enc != "" {
		path += "?" + enc
	}
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

func (c *Client) Rank(ctx context.Context, playerID, by string) (map[string]any, error) {
	path := "/v1/players/" + url.PathEscape(playerID) + "/rank"
	if by != "" {
		path += "?by=" + url.QueryEscape(by)
	}
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

// Do replays a queued command verbatim.
func (c *Client) Do(ctx context.Context, method, path string, body map[string]any) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, method, path, body, &out)
	return out, err
}

func (c *Client) jsonRequest(ctx context.Context, method, path string, body any, dst any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		if err := json.Unmarshal(raw, &apiErr); err == nil && apiErr.Message != "" {
			return fmt.Errorf("%s: %s", apiErr.Error, apiErr.Message)
		}
		return fmt.Errorf("api error: %s (%d)", strings.TrimSpace(string(raw)), resp.StatusCode)
	}
	if dst == nil || len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}
