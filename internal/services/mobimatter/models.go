package mobimatter

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"esimsync/internal/models"
)

// envelope is the wrapper every MobiMatter response is sent in.
type envelope struct {
	StatusCode int             `json:"statusCode"`
	Message    string          `json:"message"`
	Result     json.RawMessage `json:"result"`
}

// Product is an eSIM plan offered by the provider.
type Product struct {
	ProductID         string          `json:"productId"`
	UniqueID          string          `json:"uniqueId"`
	ProductFamilyName string          `json:"productFamilyName"`
	ProviderID        string          `json:"providerId"`
	ProviderName      string          `json:"providerName"`
	ProviderLogo      string          `json:"providerLogo"`
	RetailPrice       float64         `json:"retailPrice"`
	WholesalePrice    float64         `json:"wholesalePrice"`
	CurrencyCode      string          `json:"currencyCode"`
	Countries         []string        `json:"countries"`
	Regions           []string        `json:"regions"`
	ProductCategory   string          `json:"productCategory"`
	ProductDetails    []ProductDetail `json:"productDetails"`
	Updated           *time.Time      `json:"updated,omitempty"`
}

type ProductDetail struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Detail returns the value of the named product detail, case-insensitively.
func (p *Product) Detail(name string) string {
	for _, d := range p.ProductDetails {
		if strings.EqualFold(d.Name, name) {
			return strings.TrimSpace(d.Value)
		}
	}
	return ""
}

// Key is the provider's unique identifier of the plan.
func (p *Product) Key() string {
	if p.UniqueID != "" {
		return p.UniqueID
	}
	return p.ProductID
}

type createOrderRequest struct {
	ProductID       string `json:"productId"`
	ProductCategory string `json:"productCategory"`
	CustomerEmail   string `json:"customerEmail,omitempty"`
}

type createOrderResult struct {
	OrderID    string `json:"orderId"`
	OrderState string `json:"orderState"`
}

type completeOrderRequest struct {
	OrderID string `json:"orderId"`
	Notes   string `json:"notes,omitempty"`
}

type orderResult struct {
	ID            string        `json:"id"`
	OrderID       string        `json:"orderId"`
	OrderState    string        `json:"orderState"`
	OrderLineItem orderLineItem `json:"orderLineItem"`
}

type orderLineItem struct {
	LineItemDetails []ProductDetail `json:"lineItemDetails"`
}

type activationResult struct {
	QRCodeURL      string `json:"qrCodeUrl"`
	LPACode        string `json:"lpaCode"`
	SMDPAddress    string `json:"smdpAddress"`
	ActivationCode string `json:"activationCode"`
}

type emailRequest struct {
	OrderID       string `json:"orderId"`
	CustomerEmail string `json:"customerEmail"`
}

// OrderRef is what the provider knows about an order code once it has been indexed.
type OrderRef struct {
	OrderCode  string
	InternalID string
	State      string
	Activation *models.Activation
}

// Usage reports data consumption of a provisioned eSIM.
type Usage struct {
	OrderCode       string     `json:"order_code"`
	Status          string     `json:"status"`
	DataTotalMB     float64    `json:"data_total_mb"`
	DataUsedMB      float64    `json:"data_used_mb"`
	DataRemainingMB float64    `json:"data_remaining_mb"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
}

type usageResult struct {
	Status          string     `json:"status"`
	DataTotalMB     float64    `json:"totalData"`
	DataUsedMB      float64    `json:"usedData"`
	DataRemainingMB *float64   `json:"remainingData"`
	ExpiresAt       *time.Time `json:"expiryDate"`
}

// activationFromDetails reads the artifact out of order line item details.
func activationFromDetails(details []ProductDetail) *models.Activation {
	a := &models.Activation{}
	for _, d := range details {
		switch strings.ToUpper(strings.TrimSpace(d.Name)) {
		case "QR_CODE", "QR_CODE_URL", "QRCODEURL":
			a.QRCodeURL = d.Value
		case "LPA", "LPA_CODE", "LOCAL_PROFILE_ASSISTANT":
			a.LPACode = d.Value
		case "SMDP_ADDRESS":
			a.SMDPAddress = d.Value
		case "ACTIVATION_CODE":
			a.ActivationCode = d.Value
		}
	}
	if a.LPACode == "" && a.SMDPAddress != "" && a.ActivationCode != "" {
		a.LPACode = "LPA:1$" + a.SMDPAddress + "$" + a.ActivationCode
	}
	if a.Empty() {
		return nil
	}
	return a
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return f
}
