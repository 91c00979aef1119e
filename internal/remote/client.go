// Package remote is the REST transport to the authoritative basket server.
//
// The server is single-writer-wins: responses carry the applied snapshot
// and the local store mirrors them verbatim. Failures are classified as
// retryable or terminal; that classification drives the dual-path write
// protocol in the service package.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/wareline/wareline/internal/basket"
)

// Transport is the remote contract consumed by the operation service and
// the sync reconciler. Implemented by Client in production and by scripted
// fakes in tests.
type Transport interface {
	GetBasket(ctx context.Context, tag string) (basket.Basket, error)
	ApplyUpdate(ctx context.Context, p UpdatePayload) (basket.Basket, error)
	ApplyBulkUpdate(ctx context.Context, p BulkPayload) error
	DeleteBasket(ctx context.Context, tag string) error
}

// UpdatePayload is the wire body of a single-basket write. It carries
// everything needed to reconstruct the call during offline replay.
type UpdatePayload struct {
	Tag        string  `json:"tag"`
	Status     string  `json:"status"`
	ProductRef *string `json:"product_ref,omitempty"`
	BatchRef   *string `json:"batch_ref,omitempty"`
	Warehouse  *string `json:"warehouse,omitempty"`
	Quantity   *int    `json:"quantity,omitempty"`
	Actor      string  `json:"actor"`
}

// BulkPayload is the wire body of a multi-basket write: one remote call
// carrying all targets, preserving atomicity of intent across the batch.
type BulkPayload struct {
	Tags       []string                `json:"tags"`
	Status     string                  `json:"status"`
	ProductRef *string                 `json:"product_ref,omitempty"`
	BatchRef   *string                 `json:"batch_ref,omitempty"`
	Warehouse  *string                 `json:"warehouse,omitempty"`
	Quantity   *int                    `json:"quantity,omitempty"`
	Overrides  map[string]ItemOverride `json:"overrides,omitempty"`
	Actor      string                  `json:"actor"`
}

// ItemOverride adjusts individual baskets inside a bulk call.
type ItemOverride struct {
	Quantity *int    `json:"quantity,omitempty"`
	BatchRef *string `json:"batch_ref,omitempty"`
}

// basketDTO is the server's basket representation.
type basketDTO struct {
	Tag        string    `json:"tag"`
	Status     string    `json:"status"`
	ProductRef *string   `json:"product_ref"`
	BatchRef   *string   `json:"batch_ref"`
	Warehouse  *string   `json:"warehouse"`
	Quantity   int       `json:"quantity"`
	UpdatedAt  time.Time `json:"updated_at"`
	UpdatedBy  string    `json:"updated_by"`
}

func (d basketDTO) toBasket() (basket.Basket, error) {
	status, err := basket.ParseStatus(d.Status)
	if err != nil {
		return basket.Basket{}, fmt.Errorf("server returned %w", err)
	}
	return basket.Basket{
		Tag:        d.Tag,
		Status:     status,
		ProductRef: d.ProductRef,
		BatchRef:   d.BatchRef,
		Warehouse:  d.Warehouse,
		Quantity:   d.Quantity,
		UpdatedAt:  d.UpdatedAt,
		UpdatedBy:  d.UpdatedBy,
	}, nil
}

// Client talks to the basket server over REST.
type Client struct {
	http *resty.Client
}

// NewClient builds a client for the given base URL.
// The device id travels on every request for server-side audit.
func NewClient(baseURL, deviceID string, timeout time.Duration) *Client {
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("X-Device-ID", deviceID)
	return &Client{http: c}
}

// GetBasket fetches the authoritative snapshot for a tag.
// Returns ErrNotFound on 404.
func (c *Client) GetBasket(ctx context.Context, tag string) (basket.Basket, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		Get("/api/v1/baskets/" + tag)
	if err != nil {
		return basket.Basket{}, transportError(err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return basket.Basket{}, ErrNotFound
	}
	if resp.IsError() {
		return basket.Basket{}, statusError(resp.StatusCode(), resp.String())
	}

	var dto basketDTO
	if err := json.Unmarshal(resp.Body(), &dto); err != nil {
		return basket.Basket{}, fmt.Errorf("decode basket response: %w", err)
	}
	return dto.toBasket()
}

// ApplyUpdate submits a single-basket write and returns the snapshot the
// server applied (server timestamps and actor are authoritative).
func (c *Client) ApplyUpdate(ctx context.Context, p UpdatePayload) (basket.Basket, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(p).
		Put("/api/v1/baskets/" + p.Tag)
	if err != nil {
		return basket.Basket{}, transportError(err)
	}
	if resp.IsError() {
		return basket.Basket{}, statusError(resp.StatusCode(), resp.String())
	}

	var dto basketDTO
	if err := json.Unmarshal(resp.Body(), &dto); err != nil {
		return basket.Basket{}, fmt.Errorf("decode update response: %w", err)
	}
	return dto.toBasket()
}

// ApplyBulkUpdate submits one write covering every tag in the payload.
func (c *Client) ApplyBulkUpdate(ctx context.Context, p BulkPayload) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(p).
		Post("/api/v1/baskets/bulk")
	if err != nil {
		return transportError(err)
	}
	if resp.IsError() {
		return statusError(resp.StatusCode(), resp.String())
	}
	return nil
}

// DeleteBasket removes a basket server-side. Administrative use only.
func (c *Client) DeleteBasket(ctx context.Context, tag string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		Delete("/api/v1/baskets/" + tag)
	if err != nil {
		return transportError(err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.IsError() {
		return statusError(resp.StatusCode(), resp.String())
	}
	return nil
}
