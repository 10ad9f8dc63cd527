package models

// Address is a billing or shipping block as sent by WooCommerce.
type Address struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Company   string `json:"company"`
	Address1  string `json:"address_1"`
	Address2  string `json:"address_2"`
	City      string `json:"city"`
	State     string `json:"state"`
	Postcode  string `json:"postcode"`
	Country   string `json:"country"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

type LineItem struct {
	ExternalID  string  `json:"external_id"`
	Name        string  `json:"name"`
	ProductID   string  `json:"product_id"`
	VariationID string  `json:"variation_id"`
	InventoryID *string `json:"inventory_id"`
	SKU         string  `json:"sku"`
	Quantity    int     `json:"quantity"`
	Price       float64 `json:"price"`
	Subtotal    float64 `json:"subtotal"`
	Total       float64 `json:"total"`
}

// Order is the local projection of a WooCommerce order, unique per
// (OrderID, StoreID).
type Order struct {
	ID                 string     `json:"id"`
	OrderID            string     `json:"order_id"`
	StoreID            string     `json:"store_id"`
	OrganizationID     string     `json:"organization_id"`
	Number             string     `json:"number"`
	Status             string     `json:"status"`
	Currency           string     `json:"currency"`
	Total              float64    `json:"total"`
	Subtotal           float64    `json:"subtotal"`
	TotalTax           float64    `json:"total_tax"`
	ShippingTotal      float64    `json:"shipping_total"`
	DiscountTotal      float64    `json:"discount_total"`
	PaymentMethod      string     `json:"payment_method"`
	PaymentMethodTitle string     `json:"payment_method_title"`
	CustomerExternalID string     `json:"customer_external_id"`
	CustomerID         *string    `json:"customer_id"`
	CustomerEmail      string     `json:"customer_email"`
	CustomerName       string     `json:"customer_name"`
	CustomerNote       string     `json:"customer_note"`
	Billing            Address    `json:"billing"`
	Shipping           Address    `json:"shipping"`
	LineItems          []LineItem `json:"line_items"`
	DateCreated        *int64     `json:"date_created,omitempty"`
	DateModified       *int64     `json:"date_modified,omitempty"`
	DatePaid           *int64     `json:"date_paid,omitempty"`
	DateCompleted      *int64     `json:"date_completed,omitempty"`
	Raw                []byte     `json:"-"`
	CreatedAt          int64      `json:"created_at"`
	UpdatedAt          int64      `json:"updated_at"`
}

type Customer struct {
	ID               string  `json:"id"`
	CustomerID       string  `json:"customer_id"`
	StoreID          string  `json:"store_id"`
	OrganizationID   string  `json:"organization_id"`
	Email            string  `json:"email"`
	FirstName        string  `json:"first_name"`
	LastName         string  `json:"last_name"`
	Username         string  `json:"username"`
	Role             string  `json:"role"`
	Billing          Address `json:"billing"`
	Shipping         Address `json:"shipping"`
	IsPayingCustomer bool    `json:"is_paying_customer"`
	AvatarURL        string  `json:"avatar_url"`
	OrdersCount      int     `json:"orders_count"`
	TotalSpent       float64 `json:"total_spent"`
	DateCreated      *int64  `json:"date_created,omitempty"`
	DateModified     *int64  `json:"date_modified,omitempty"`
	Raw              []byte  `json:"-"`
	CreatedAt        int64   `json:"created_at"`
	UpdatedAt        int64   `json:"updated_at"`
}

type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type Image struct {
	ID  string `json:"id"`
	Src string `json:"src"`
	Alt string `json:"alt"`
}

// Product is a store inventory record.
type Product struct {
	ID             string     `json:"id"`
	ProductID      string     `json:"product_id"`
	StoreID        string     `json:"store_id"`
	OrganizationID string     `json:"organization_id"`
	Name           string     `json:"name"`
	Slug           string     `json:"slug"`
	SKU            string     `json:"sku"`
	Type           string     `json:"type"`
	Status         string     `json:"status"`
	Price          float64    `json:"price"`
	RegularPrice   float64    `json:"regular_price"`
	SalePrice      float64    `json:"sale_price"`
	StockQuantity  int        `json:"stock_quantity"`
	StockStatus    string     `json:"stock_status"`
	ManageStock    bool       `json:"manage_stock"`
	Categories     []Category `json:"categories"`
	Images         []Image    `json:"images"`
	Weight         float64    `json:"weight"`
	Description    string     `json:"description"`
	DateCreated    *int64     `json:"date_created,omitempty"`
	DateModified   *int64     `json:"date_modified,omitempty"`
	Raw            []byte     `json:"-"`
	CreatedAt      int64      `json:"created_at"`
	UpdatedAt      int64      `json:"updated_at"`
}
