package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Client calls a remote planner served by NewHandler.
type Client[S any, A comparable] struct {
	serverURL string
	http      *http.Client
}

func NewClient[S any, A comparable](serverURL string, httpClient *http.Client) *Client[S, A] {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client[S, A]{
		serverURL: strings.TrimRight(serverURL, "/"),
		http:      httpClient,
	}
}

// Plan is a remote planning result.
type Plan[A comparable] struct {
	Action A
	Policy []ActionProb[A]
	Search string
}

func (c *Client[S, A]) Act(ctx context.Context, state S, temperature float64) (Plan[A], error) {
	data, err := json.Marshal(actRequest[S]{State: state, Temperature: temperature})
	if err != nil {
		return Plan[A]{}, fmt.Errorf("failed to marshal state: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serverURL+"/act", bytes.NewReader(data))
	if err != nil {
		return Plan[A]{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Plan[A]{}, fmt.Errorf("failed to reach planner: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Plan[A]{}, fmt.Errorf("planner returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	var body actResponse[A]
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Plan[A]{}, fmt.Errorf("failed to decode plan: %w", err)
	}
	return Plan[A]{Action: body.Action, Policy: body.Policy, Search: body.Search}, nil
}
