package backend

import (
	"context"
	"net/http"
)

// CounterpartyClient implements Counterparties over the counterparty
// backend's HTTP API.
type CounterpartyClient struct {
	client *Client
}

// NewCounterpartyClient creates a new counterparty backend client.
func NewCounterpartyClient(cfg ClientConfig, opts ...ClientOption) *CounterpartyClient {
	if cfg.Name == "" {
		cfg.Name = "counterparty"
	}
	return &CounterpartyClient{client: NewClient(cfg, opts...)}
}

// Lookup resolves a counterparty by its identifier.
func (c *CounterpartyClient) Lookup(ctx context.Context, counterpartyID string) (*Counterparty, error) {
	var counterparty Counterparty
	err := c.client.do(ctx, http.MethodGet, "/counterparties/"+counterpartyID, nil, &counterparty)
	if err != nil {
		if statusOf(err) == http.StatusNotFound {
			return nil, ErrCounterpartyNotFound
		}
		return nil, err
	}
	return &counterparty, nil
}

// Ensure CounterpartyClient implements Counterparties.
var _ Counterparties = (*CounterpartyClient)(nil)
