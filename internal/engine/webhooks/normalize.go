package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"storehub/internal/platform/models"
)

const notAvailable = "N/A"

// WooCommerce dates come without a zone; the *_gmt variants are UTC.
const wcDateLayout = "2006-01-02T15:04:05"

// number accepts JSON numbers, numeric strings, null and "". Anything
// unparseable decodes to 0.
type number float64

func (n *number) UnmarshalJSON(data []byte) error {
	*n = 0
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	s := string(data)
	if data[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
	}
	if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
		*n = number(f)
	}
	return nil
}

// externalID accepts numeric or string ids. Zero and empty decode to "".
type externalID string

func (id *externalID) UnmarshalJSON(data []byte) error {
	*id = ""
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	var s string
	if data[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
	} else {
		var f json.Number
		if err := json.Unmarshal(data, &f); err != nil {
			return nil
		}
		s = f.String()
	}
	s = strings.TrimSpace(s)
	if s == "0" {
		s = ""
	}
	*id = externalID(s)
	return nil
}

// flag accepts JSON booleans and "yes"/"true"/"1" strings.
type flag bool

func (f *flag) UnmarshalJSON(data []byte) error {
	*f = false
	var b bool
	if json.Unmarshal(data, &b) == nil {
		*f = flag(b)
		return nil
	}
	var s string
	if json.Unmarshal(data, &s) == nil {
		switch strings.ToLower(s) {
		case "yes", "true", "1":
			*f = true
		}
	}
	return nil
}

type wcAddress struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Company   string `json:"company"`
	Address1  string `json:"address_1"`
	Address2  string `json:"address_2"`
	City      string `json:"city"`
	State     string `json:"state"`
	Postcode  string `json:"postcode"`
	Country   string `json:"country"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

func (a *wcAddress) model() models.Address {
	if a == nil {
		return models.Address{}
	}
	return models.Address{
		FirstName: a.FirstName,
		LastName:  a.LastName,
		Company:   a.Company,
		Address1:  a.Address1,
		Address2:  a.Address2,
		City:      a.City,
		State:     a.State,
		Postcode:  a.Postcode,
		Country:   a.Country,
		Email:     a.Email,
		Phone:     a.Phone,
	}
}

type wcDates struct {
	DateCreated      string `json:"date_created"`
	DateCreatedGMT   string `json:"date_created_gmt"`
	DateModified     string `json:"date_modified"`
	DateModifiedGMT  string `json:"date_modified_gmt"`
	DatePaid         string `json:"date_paid"`
	DatePaidGMT      string `json:"date_paid_gmt"`
	DateCompleted    string `json:"date_completed"`
	DateCompletedGMT string `json:"date_completed_gmt"`
}

type wcLineItem struct {
	ID          externalID `json:"id"`
	Name        string     `json:"name"`
	ProductID   externalID `json:"product_id"`
	VariationID externalID `json:"variation_id"`
	SKU         string     `json:"sku"`
	Quantity    number     `json:"quantity"`
	Price       number     `json:"price"`
	Subtotal    number     `json:"subtotal"`
	Total       number     `json:"total"`
}

type wcOrder struct {
	ID                 externalID   `json:"id"`
	Number             string       `json:"number"`
	Status             string       `json:"status"`
	Currency           string       `json:"currency"`
	Total              number       `json:"total"`
	TotalTax           number       `json:"total_tax"`
	ShippingTotal      number       `json:"shipping_total"`
	DiscountTotal      number       `json:"discount_total"`
	PaymentMethod      string       `json:"payment_method"`
	PaymentMethodTitle string       `json:"payment_method_title"`
	CustomerID         externalID   `json:"customer_id"`
	CustomerNote       string       `json:"customer_note"`
	Billing            *wcAddress   `json:"billing"`
	Shipping           *wcAddress   `json:"shipping"`
	LineItems          []wcLineItem `json:"line_items"`
	wcDates
}

type wcCustomer struct {
	ID               externalID `json:"id"`
	Email            string     `json:"email"`
	FirstName        string     `json:"first_name"`
	LastName         string     `json:"last_name"`
	Username         string     `json:"username"`
	Role             string     `json:"role"`
	Billing          *wcAddress `json:"billing"`
	Shipping         *wcAddress `json:"shipping"`
	IsPayingCustomer flag       `json:"is_paying_customer"`
	AvatarURL        string     `json:"avatar_url"`
	OrdersCount      number     `json:"orders_count"`
	TotalSpent       number     `json:"total_spent"`
	wcDates
}

type wcProduct struct {
	ID            externalID `json:"id"`
	Name          string     `json:"name"`
	Slug          string     `json:"slug"`
	SKU           string     `json:"sku"`
	Type          string     `json:"type"`
	Status        string     `json:"status"`
	Price         number     `json:"price"`
	RegularPrice  number     `json:"regular_price"`
	SalePrice     number     `json:"sale_price"`
	StockQuantity number     `json:"stock_quantity"`
	StockStatus   string     `json:"stock_status"`
	ManageStock   flag       `json:"manage_stock"`
	Categories    []struct {
		ID   externalID `json:"id"`
		Name string     `json:"name"`
		Slug string     `json:"slug"`
	} `json:"categories"`
	Images []struct {
		ID  externalID `json:"id"`
		Src string     `json:"src"`
		Alt string     `json:"alt"`
	} `json:"images"`
	Weight      number `json:"weight"`
	Description string `json:"description"`
	wcDates
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return notAvailable
	}
	return s
}

// parseDate prefers the GMT field and falls back to the site-local one.
// Both are stored as unix seconds; an unparseable value yields nil.
func parseDate(gmt, local string) *int64 {
	for _, v := range []string{gmt, local} {
		if v == "" {
			continue
		}
		if t, err := time.ParseInLocation(wcDateLayout, v, time.UTC); err == nil {
			ts := t.Unix()
			return &ts
		}
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			ts := t.Unix()
			return &ts
		}
	}
	return nil
}

// ExternalID reads the resource id from a payload. Deleted events only
// carry {"id": N}.
func ExternalID(body []byte) (string, error) {
	var p struct {
		ID externalID `json:"id"`
	}
	if err := json.Unmarshal(body, &p); err != nil {
		return "", fmt.Errorf("invalid payload: %w", err)
	}
	if p.ID == "" {
		return "", fmt.Errorf("payload has no resource id")
	}
	return string(p.ID), nil
}

// NormalizeOrder maps an order payload and resolves line item products and
// the customer to local ids. Resolution is best-effort: unmatched or failed
// lookups leave the reference nil.
func NormalizeOrder(ctx context.Context, body []byte, sc *models.StoreContext, refs ResourceStore) (*models.Order, error) {
	var p wcOrder
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("invalid order payload: %w", err)
	}
	if p.ID == "" {
		return nil, fmt.Errorf("order payload has no id")
	}

	billing := p.Billing.model()
	order := &models.Order{
		OrderID:            string(p.ID),
		StoreID:            sc.StoreID,
		OrganizationID:     sc.OrganizationID,
		Number:             orNA(p.Number),
		Status:             orNA(p.Status),
		Currency:           orNA(p.Currency),
		Total:              float64(p.Total),
		TotalTax:           float64(p.TotalTax),
		ShippingTotal:      float64(p.ShippingTotal),
		DiscountTotal:      float64(p.DiscountTotal),
		PaymentMethod:      orNA(p.PaymentMethod),
		PaymentMethodTitle: orNA(p.PaymentMethodTitle),
		CustomerExternalID: string(p.CustomerID),
		CustomerEmail:      orNA(billing.Email),
		CustomerName:       orNA(strings.TrimSpace(billing.FirstName + " " + billing.LastName)),
		CustomerNote:       p.CustomerNote,
		Billing:            billing,
		Shipping:           p.Shipping.model(),
		LineItems:          []models.LineItem{},
		DateCreated:        parseDate(p.DateCreatedGMT, p.DateCreated),
		DateModified:       parseDate(p.DateModifiedGMT, p.DateModified),
		DatePaid:           parseDate(p.DatePaidGMT, p.DatePaid),
		DateCompleted:      parseDate(p.DateCompletedGMT, p.DateCompleted),
		Raw:                body,
	}

	var productIDs []string
	seen := make(map[string]bool)
	for _, li := range p.LineItems {
		order.Subtotal += float64(li.Subtotal)
		order.LineItems = append(order.LineItems, models.LineItem{
			ExternalID:  string(li.ID),
			Name:        orNA(li.Name),
			ProductID:   string(li.ProductID),
			VariationID: string(li.VariationID),
			SKU:         li.SKU,
			Quantity:    int(li.Quantity),
			Price:       float64(li.Price),
			Subtotal:    float64(li.Subtotal),
			Total:       float64(li.Total),
		})
		if li.ProductID != "" && !seen[string(li.ProductID)] {
			seen[string(li.ProductID)] = true
			productIDs = append(productIDs, string(li.ProductID))
		}
	}

	if refs == nil {
		return order, nil
	}

	if len(productIDs) > 0 {
		local, err := refs.ProductIDs(ctx, sc.StoreID, productIDs)
		if err != nil {
			log.Warn().Err(err).Str("store_id", sc.StoreID).Str("order_id", order.OrderID).Msg("line item product lookup failed")
		}
		for i := range order.LineItems {
			if id, ok := local[order.LineItems[i].ProductID]; ok {
				id := id
				order.LineItems[i].InventoryID = &id
			}
		}
	}

	if order.CustomerExternalID != "" {
		id, err := refs.CustomerIDByExternal(ctx, sc.StoreID, order.CustomerExternalID)
		if err != nil {
			log.Warn().Err(err).Str("store_id", sc.StoreID).Str("order_id", order.OrderID).Msg("customer lookup failed")
		}
		order.CustomerID = id
	}

	return order, nil
}

func NormalizeCustomer(body []byte, sc *models.StoreContext) (*models.Customer, error) {
	var p wcCustomer
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("invalid customer payload: %w", err)
	}
	if p.ID == "" {
		return nil, fmt.Errorf("customer payload has no id")
	}

	return &models.Customer{
		CustomerID:       string(p.ID),
		StoreID:          sc.StoreID,
		OrganizationID:   sc.OrganizationID,
		Email:            orNA(p.Email),
		FirstName:        orNA(p.FirstName),
		LastName:         orNA(p.LastName),
		Username:         orNA(p.Username),
		Role:             orNA(p.Role),
		Billing:          p.Billing.model(),
		Shipping:         p.Shipping.model(),
		IsPayingCustomer: bool(p.IsPayingCustomer),
		AvatarURL:        p.AvatarURL,
		OrdersCount:      int(p.OrdersCount),
		TotalSpent:       float64(p.TotalSpent),
		DateCreated:      parseDate(p.DateCreatedGMT, p.DateCreated),
		DateModified:     parseDate(p.DateModifiedGMT, p.DateModified),
		Raw:              body,
	}, nil
}

func NormalizeProduct(body []byte, sc *models.StoreContext) (*models.Product, error) {
	var p wcProduct
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("invalid product payload: %w", err)
	}
	if p.ID == "" {
		return nil, fmt.Errorf("product payload has no id")
	}

	product := &models.Product{
		ProductID:      string(p.ID),
		StoreID:        sc.StoreID,
		OrganizationID: sc.OrganizationID,
		Name:           orNA(p.Name),
		Slug:           orNA(p.Slug),
		SKU:            orNA(p.SKU),
		Type:           orNA(p.Type),
		Status:         orNA(p.Status),
		Price:          float64(p.Price),
		RegularPrice:   float64(p.RegularPrice),
		SalePrice:      float64(p.SalePrice),
		StockQuantity:  int(p.StockQuantity),
		StockStatus:    orNA(p.StockStatus),
		ManageStock:    bool(p.ManageStock),
		Categories:     []models.Category{},
		Images:         []models.Image{},
		Weight:         float64(p.Weight),
		Description:    p.Description,
		DateCreated:    parseDate(p.DateCreatedGMT, p.DateCreated),
		DateModified:   parseDate(p.DateModifiedGMT, p.DateModified),
		Raw:            body,
	}
	for _, c := range p.Categories {
		product.Categories = append(product.Categories, models.Category{ID: string(c.ID), Name: c.Name, Slug: c.Slug})
	}
	for _, img := range p.Images {
		product.Images = append(product.Images, models.Image{ID: string(img.ID), Src: img.Src, Alt: img.Alt})
	}
	return product, nil
}
