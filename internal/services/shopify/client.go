package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"esimsync/internal/apperr"
	"esimsync/internal/logger"
	"esimsync/internal/models"

	"github.com/tomnomnom/linkheader"
)

const pageLimit = 250

type Client struct {
	baseURL     string
	accessToken string
	namespace   string
	httpClient  *http.Client
	logger      *logger.Logger
	transformer *Transformer

	mu         sync.Mutex
	locationID int64
}

// APIError is a non-2xx answer from the Admin API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API request failed: %d - %s", e.StatusCode, e.Body)
}

// AdminURL builds the Admin REST base URL of a store. A bare shop name is
// expanded to its myshopify.com domain.
func AdminURL(storeDomain, apiVersion string) string {
	domain := strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(storeDomain), "https://"), "/")
	if !strings.Contains(domain, ".") {
		domain += ".myshopify.com"
	}
	return fmt.Sprintf("https://%s/admin/api/%s", domain, apiVersion)
}

func NewClient(baseURL, accessToken string, logger *logger.Logger) *Client {
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		accessToken: accessToken,
		namespace:   "esim",
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger:      logger,
		transformer: NewTransformer(),
	}
}

// WithMetafieldNamespace sets the namespace of the order metafields written on delivery.
func (c *Client) WithMetafieldNamespace(ns string) *Client {
	if ns != "" {
		c.namespace = ns
		c.transformer.namespace = ns
	}
	return c
}

// WithLocationID pins the inventory location; otherwise the first active location is used.
func (c *Client) WithLocationID(id string) *Client {
	if n, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64); err == nil && n > 0 {
		c.locationID = n
	}
	return c
}

// AttachArtifact writes the activation artifact to the order note and metafields.
// Calling it again overwrites the previous values.
func (c *Client) AttachArtifact(ctx context.Context, orderID string, a *models.Activation) error {
	const op = "shopify.AttachArtifact"

	id, err := strconv.ParseInt(strings.TrimSpace(orderID), 10, 64)
	if err != nil {
		return apperr.E(apperr.KindValidation, op, fmt.Errorf("invalid order id %q", orderID))
	}
	if a.Empty() {
		return apperr.E(apperr.KindValidation, op, fmt.Errorf("no activation artifact for order %s", orderID))
	}

	update := orderUpdate{
		ID:   id,
		Note: activationNote(a),
	}
	if a.QRCodeURL != "" {
		update.Metafields = append(update.Metafields, Metafield{
			Namespace: c.namespace, Key: "qr_code_url", Value: a.QRCodeURL, Type: "url",
		})
	}
	if a.LPACode != "" {
		update.Metafields = append(update.Metafields, Metafield{
			Namespace: c.namespace, Key: "lpa_code", Value: a.LPACode, Type: "single_line_text_field",
		})
	}

	if _, err := c.do(ctx, http.MethodPut, fmt.Sprintf("/orders/%d.json", id), orderEnvelope{Order: update}, nil); err != nil {
		return apperr.E(apperr.KindDelivery, op, err)
	}
	c.logger.Debug("Attached activation artifact to order %s", orderID)
	return nil
}

func activationNote(a *models.Activation) string {
	var b strings.Builder
	b.WriteString("eSIM activation details")
	if a.QRCodeURL != "" {
		b.WriteString("\nQR code: " + a.QRCodeURL)
	}
	if a.LPACode != "" {
		b.WriteString("\nActivation code: " + a.LPACode)
	}
	return b.String()
}

// FindProductByHandle returns the product with handle, or nil when there is none.
func (c *Client) FindProductByHandle(ctx context.Context, handle string) (*Product, error) {
	q := url.Values{}
	q.Set("handle", handle)
	q.Set("fields", "id,handle,variants")

	var resp productsResponse
	if _, err := c.do(ctx, http.MethodGet, "/products.json?"+q.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	for i := range resp.Products {
		if resp.Products[i].Handle == handle {
			return &resp.Products[i], nil
		}
	}
	return nil, nil
}

// CreateProduct creates a product and returns it as stored by Shopify.
func (c *Client) CreateProduct(ctx context.Context, product *Product) (*Product, error) {
	var resp productEnvelope
	if _, err := c.do(ctx, http.MethodPost, "/products.json", productEnvelope{Product: *product}, &resp); err != nil {
		return nil, err
	}
	return &resp.Product, nil
}

func (c *Client) UpdateVariantPrice(ctx context.Context, variantID int64, price string) error {
	body := variantEnvelope{Variant: Variant{ID: variantID, Price: price}}
	_, err := c.do(ctx, http.MethodPut, fmt.Sprintf("/variants/%d.json", variantID), body, nil)
	return err
}

// DeleteProduct removes a product. A product that is already gone is not an error.
func (c *Client) DeleteProduct(ctx context.Context, productID int64) error {
	_, err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/products/%d.json", productID), nil, nil)
	if apiErr, ok := err.(*APIError); ok && apiErr.StatusCode == http.StatusNotFound {
		return nil
	}
	return err
}

// ListProducts returns every product of vendor, following Link pagination.
func (c *Client) ListProducts(ctx context.Context, vendor string) ([]Product, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(pageLimit))
	q.Set("fields", "id,handle,vendor")
	if vendor != "" {
		q.Set("vendor", vendor)
	}

	var all []Product
	next := "/products.json?" + q.Encode()
	for next != "" {
		var page productsResponse
		header, err := c.do(ctx, http.MethodGet, next, nil, &page)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Products...)

		next = ""
		for _, link := range linkheader.Parse(header.Get("Link")).FilterByRel("next") {
			next = link.URL
		}
	}
	return all, nil
}

func (c *Client) GetLocations(ctx context.Context) ([]Location, error) {
	var resp locationsResponse
	if _, err := c.do(ctx, http.MethodGet, "/locations.json", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Locations, nil
}

func (c *Client) SetInventoryLevel(ctx context.Context, locationID, inventoryItemID int64, available int) error {
	body := inventoryLevelRequest{
		LocationID:      locationID,
		InventoryItemID: inventoryItemID,
		Available:       available,
	}
	_, err := c.do(ctx, http.MethodPost, "/inventory_levels/set.json", body, nil)
	return err
}

// inventoryLocation resolves and caches the location inventory is stocked at.
func (c *Client) inventoryLocation(ctx context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.locationID != 0 {
		return c.locationID, nil
	}
	locations, err := c.GetLocations(ctx)
	if err != nil {
		return 0, err
	}
	for _, l := range locations {
		if l.Active {
			c.locationID = l.ID
			return l.ID, nil
		}
	}
	return 0, fmt.Errorf("store has no active location")
}

// do sends one request. pathOrURL is either relative to the base URL or an
// absolute URL taken from a Link header.
func (c *Client) do(ctx context.Context, method, pathOrURL string, body, out interface{}) (http.Header, error) {
	target := pathOrURL
	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		target = c.baseURL + pathOrURL
	}

	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Shopify-Access-Token", c.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return resp.Header, &APIError{StatusCode: resp.StatusCode, Body: string(payload)}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.Header, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return resp.Header, nil
}
