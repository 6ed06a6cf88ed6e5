package mobimatter

import (
	"bytes"
	"fmt"
	"html/template"
	"sort"
	"strings"

	"esimsync/internal/models"

	"github.com/shopspring/decimal"
)

// Transformer maps provider products onto canonical catalog items.
type Transformer struct {
	vendor    string
	markup    decimal.Decimal
	inventory int
}

func NewTransformer(vendor, markupPercent string, inventory int) (*Transformer, error) {
	markup := decimal.Zero
	if strings.TrimSpace(markupPercent) != "" {
		m, err := decimal.NewFromString(strings.TrimSpace(markupPercent))
		if err != nil {
			return nil, fmt.Errorf("invalid price markup %q: %w", markupPercent, err)
		}
		markup = m
	}
	return &Transformer{vendor: vendor, markup: markup, inventory: inventory}, nil
}

var descriptionTemplate = template.Must(template.New("description").Parse(
	`<div class="esim-plan">
<p><strong>{{.Title}}</strong> by {{.Provider}}</p>
<ul>
{{- if .Data}}<li>Data: {{.Data}}</li>{{end}}
{{- if .Validity}}<li>Validity: {{.Validity}}</li>{{end}}
{{- if .Network}}<li>Network: {{.Network}}</li>{{end}}
</ul>
{{- if .Countries}}
<p>Coverage:</p>
<ul>{{range .Countries}}<li>{{.Flag}} {{.Code}}</li>{{end}}</ul>
{{- end}}
<p>Your QR code and activation details are sent by e-mail and shown on your order page once the eSIM is provisioned.</p>
</div>`))

type descriptionData struct {
	Title     string
	Provider  string
	Data      string
	Validity  string
	Network   string
	Countries []countryView
}

type countryView struct {
	Code string
	Flag string
}

// TransformProduct converts a provider product to our canonical catalog item.
func (t *Transformer) TransformProduct(p *Product) (*models.CatalogItem, error) {
	if strings.TrimSpace(p.ProductID) == "" {
		return nil, fmt.Errorf("product has no id")
	}

	price, err := t.retailPrice(p.RetailPrice)
	if err != nil {
		return nil, fmt.Errorf("invalid price for product %s: %w", p.ProductID, err)
	}

	title := p.Detail("PLAN_TITLE")
	if title == "" {
		title = p.ProductFamilyName
	}
	if title == "" {
		title = p.ProductID
	}

	data := dataAmount(p.Detail("PLAN_DATA_LIMIT"), p.Detail("PLAN_DATA_UNIT"))
	validity := validityDays(p.Detail("PLAN_VALIDITY"))

	countries := make([]string, 0, len(p.Countries))
	for _, c := range p.Countries {
		if c = strings.ToUpper(strings.TrimSpace(c)); c != "" {
			countries = append(countries, c)
		}
	}
	sort.Strings(countries)

	views := make([]countryView, len(countries))
	for i, c := range countries {
		views[i] = countryView{Code: c, Flag: FlagEmoji(c)}
	}

	var body bytes.Buffer
	err = descriptionTemplate.Execute(&body, descriptionData{
		Title:     title,
		Provider:  p.ProviderName,
		Data:      data,
		Validity:  validity,
		Network:   p.Detail("PLAN_NETWORK"),
		Countries: views,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render description for product %s: %w", p.ProductID, err)
	}

	images := []string{}
	if p.ProviderLogo != "" {
		images = append(images, p.ProviderLogo)
	}

	tags := []string{"esim", "mobimatter"}
	if p.ProviderName != "" {
		tags = append(tags, p.ProviderName)
	}
	tags = append(tags, countries...)

	currency := p.CurrencyCode
	if currency == "" {
		currency = "USD"
	}

	return &models.CatalogItem{
		Handle:            models.HandleFor(p.Key()),
		ProviderProductID: p.ProductID,
		Title:             title,
		DescriptionHTML:   body.String(),
		Vendor:            t.vendor,
		ProductType:       "eSIM",
		SKU:               p.ProductID,
		Price:             price.StringFixed(2),
		Currency:          currency,
		InventoryQuantity: t.inventory,
		Images:            images,
		Tags:              tags,
		Metadata: []models.CatalogMetadata{
			{Key: "provider_product_id", Value: p.ProductID, Type: "single_line_text_field"},
			{Key: "provider", Value: p.ProviderName, Type: "single_line_text_field"},
			{Key: "data", Value: data, Type: "single_line_text_field"},
			{Key: "validity", Value: validity, Type: "single_line_text_field"},
			{Key: "countries", Value: strings.Join(countries, ","), Type: "single_line_text_field"},
		},
	}, nil
}

// RetailPrice applies the configured markup to a provider price.
func (t *Transformer) RetailPrice(providerPrice float64) (string, error) {
	price, err := t.retailPrice(providerPrice)
	if err != nil {
		return "", err
	}
	return price.StringFixed(2), nil
}

func (t *Transformer) retailPrice(providerPrice float64) (decimal.Decimal, error) {
	base := decimal.NewFromFloat(providerPrice)
	if base.IsNegative() {
		return decimal.Zero, fmt.Errorf("negative price %s", base.String())
	}
	factor := decimal.NewFromInt(1).Add(t.markup.Div(decimal.NewFromInt(100)))
	return base.Mul(factor).Round(2), nil
}

// FlagEmoji turns an ISO 3166-1 alpha-2 code into its regional-indicator flag.
func FlagEmoji(countryCode string) string {
	code := strings.ToUpper(strings.TrimSpace(countryCode))
	if len(code) != 2 || code[0] < 'A' || code[0] > 'Z' || code[1] < 'A' || code[1] > 'Z' {
		return ""
	}
	const base = 0x1F1E6
	return string([]rune{rune(base + int(code[0]-'A')), rune(base + int(code[1]-'A'))})
}

func dataAmount(limit, unit string) string {
	limit = strings.TrimSpace(limit)
	if limit == "" {
		return ""
	}
	if strings.EqualFold(limit, "unlimited") || parseFloat(limit) < 0 {
		return "Unlimited"
	}
	if unit == "" {
		unit = "GB"
	}
	return strings.TrimSpace(limit + " " + unit)
}

// validityDays renders a validity expressed in hours as whole days.
func validityDays(hours string) string {
	h := parseFloat(hours)
	if h <= 0 {
		return ""
	}
	days := decimal.NewFromFloat(h).Div(decimal.NewFromInt(24)).Ceil()
	if days.Equal(decimal.NewFromInt(1)) {
		return "1 day"
	}
	return days.String() + " days"
}
