package mobimatter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"esimsync/internal/apperr"
	"esimsync/internal/logger"
	"esimsync/internal/metrics"
	"esimsync/internal/models"
)

// Client talks to the MobiMatter partner API.
type Client struct {
	baseURL    string
	apiKey     string
	merchantID string
	httpClient *http.Client
	logger     *logger.Logger
}

func NewClient(baseURL, apiKey, merchantID string, logger *logger.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		merchantID: merchantID,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

// ListProducts fetches the provider's current catalog.
func (c *Client) ListProducts(ctx context.Context) (products []Product, err error) {
	const op = "mobimatter.ListProducts"
	defer c.observe(op, time.Now(), &err)

	if _, err = c.do(ctx, op, http.MethodGet, "/v2/products", nil, &products); err != nil {
		if apperr.Is(err, apperr.KindProviderPending) {
			return nil, nil
		}
		return nil, err
	}
	return products, nil
}

// CreateOrder requests a new provider order for productID and returns its public order code.
func (c *Client) CreateOrder(ctx context.Context, productID, customerEmail string) (code string, err error) {
	const op = "mobimatter.CreateOrder"
	defer c.observe(op, time.Now(), &err)

	req := createOrderRequest{
		ProductID:       productID,
		ProductCategory: "esim_realtime",
		CustomerEmail:   customerEmail,
	}
	var result createOrderResult
	_, err = c.do(ctx, op, http.MethodPost, "/v2/order", req, &result)
	if err != nil && !apperr.Is(err, apperr.KindProviderPending) {
		return "", err
	}
	if strings.TrimSpace(result.OrderID) == "" {
		return "", apperr.E(apperr.KindProviderRejected, op, errors.New("response carries no order id"))
	}
	return result.OrderID, nil
}

// CompleteOrder confirms an order. Completing an already completed order is
// reported as success so callers may retry freely.
func (c *Client) CompleteOrder(ctx context.Context, orderCode string) (err error) {
	const op = "mobimatter.CompleteOrder"
	defer c.observe(op, time.Now(), &err)

	req := completeOrderRequest{OrderID: orderCode, Notes: "completed by esimsync"}
	status, err := c.do(ctx, op, http.MethodPut, "/v2/order/complete", req, nil)
	if err != nil && status == http.StatusConflict {
		c.logger.Debug("Order %s was already completed", orderCode)
		return nil
	}
	return err
}

// LookupOrderByCode resolves a public order code to the provider's internal id.
// An order the provider has not indexed yet is reported as pending.
func (c *Client) LookupOrderByCode(ctx context.Context, orderCode string) (ref *OrderRef, err error) {
	const op = "mobimatter.LookupOrderByCode"
	defer c.observe(op, time.Now(), &err)

	var result orderResult
	status, err := c.do(ctx, op, http.MethodGet, "/v2/order/"+url.PathEscape(orderCode), nil, &result)
	if status == http.StatusNotFound {
		return nil, apperr.Pending(op)
	}
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(result.ID) == "" {
		return nil, apperr.Pending(op)
	}

	return &OrderRef{
		OrderCode:  orderCode,
		InternalID: result.ID,
		State:      result.OrderState,
		Activation: activationFromDetails(result.OrderLineItem.LineItemDetails),
	}, nil
}

// GetActivationArtifact returns the QR code and LPA string of a provisioned
// order, or a pending error while the profile is still being generated.
func (c *Client) GetActivationArtifact(ctx context.Context, internalID string) (a *models.Activation, err error) {
	const op = "mobimatter.GetActivationArtifact"
	defer c.observe(op, time.Now(), &err)

	var result activationResult
	status, err := c.do(ctx, op, http.MethodGet, "/v2/order/activation/"+url.PathEscape(internalID), nil, &result)
	if status == http.StatusNotFound {
		return nil, apperr.Pending(op)
	}
	if err != nil {
		return nil, err
	}

	a = &models.Activation{
		QRCodeURL:      result.QRCodeURL,
		LPACode:        result.LPACode,
		SMDPAddress:    result.SMDPAddress,
		ActivationCode: result.ActivationCode,
	}
	if a.LPACode == "" && a.SMDPAddress != "" && a.ActivationCode != "" {
		a.LPACode = "LPA:1$" + a.SMDPAddress + "$" + a.ActivationCode
	}
	if a.Empty() {
		return nil, apperr.Pending(op)
	}
	return a, nil
}

// Usage returns the data usage of a provisioned order.
func (c *Client) Usage(ctx context.Context, orderCode string) (usage *Usage, err error) {
	const op = "mobimatter.Usage"
	defer c.observe(op, time.Now(), &err)

	var result usageResult
	status, err := c.do(ctx, op, http.MethodGet, "/v2/provider/usage/"+url.PathEscape(orderCode), nil, &result)
	if status == http.StatusNotFound {
		return nil, apperr.Pending(op)
	}
	if err != nil {
		return nil, err
	}

	usage = &Usage{
		OrderCode:   orderCode,
		Status:      result.Status,
		DataTotalMB: result.DataTotalMB,
		DataUsedMB:  result.DataUsedMB,
		ExpiresAt:   result.ExpiresAt,
	}
	if result.DataRemainingMB != nil {
		usage.DataRemainingMB = *result.DataRemainingMB
	} else {
		usage.DataRemainingMB = result.DataTotalMB - result.DataUsedMB
	}
	return usage, nil
}

// SendActivationEmail asks the provider to e-mail the activation details to the customer.
func (c *Client) SendActivationEmail(ctx context.Context, internalID, email string) (err error) {
	const op = "mobimatter.SendActivationEmail"
	defer c.observe(op, time.Now(), &err)

	_, err = c.do(ctx, op, http.MethodPost, "/v2/email", emailRequest{OrderID: internalID, CustomerEmail: email}, nil)
	return err
}

// do performs one request and classifies the outcome. The HTTP status is
// returned alongside the error so callers can interpret 404 and 409.
func (c *Client) do(ctx context.Context, op, method, path string, body, out interface{}) (int, error) {
	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return 0, apperr.E(apperr.KindUnexpected, op, fmt.Errorf("failed to marshal request: %w", err))
		}
		reader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, apperr.E(apperr.KindUnexpected, op, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("api-key", c.apiKey)
	req.Header.Set("merchantId", c.merchantID)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, apperr.E(apperr.KindProviderTransient, op, fmt.Errorf("failed to make request: %w", err))
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, apperr.E(apperr.KindProviderTransient, op, fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := fmt.Errorf("API request failed: %d - %s", resp.StatusCode, truncate(string(payload), 512))
		kind := apperr.KindProviderRejected
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			kind = apperr.KindProviderTransient
		}
		return resp.StatusCode, apperr.E(kind, op, apiErr)
	}

	if out != nil {
		var env envelope
		if err := json.Unmarshal(payload, &env); err != nil {
			return resp.StatusCode, apperr.E(apperr.KindValidation, op, fmt.Errorf("failed to decode response: %w", err))
		}
		if len(env.Result) == 0 || string(env.Result) == "null" {
			return resp.StatusCode, apperr.Pending(op)
		}
		if err := json.Unmarshal(env.Result, out); err != nil {
			return resp.StatusCode, apperr.E(apperr.KindValidation, op, fmt.Errorf("failed to decode result: %w", err))
		}
	}

	return resp.StatusCode, nil
}

// observe records the final outcome and latency of one client operation.
func (c *Client) observe(op string, start time.Time, errp *error) {
	metrics.ProviderRequestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())

	result := "ok"
	if *errp != nil {
		result = string(apperr.KindOf(*errp))
		c.logger.Debug("%s: %v", op, *errp)
	}
	metrics.ProviderRequestsTotal.WithLabelValues(op, result).Inc()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
