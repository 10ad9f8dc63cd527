package models

// Store is a WooCommerce shop connected by an organization. Remote
// credentials are the REST API consumer key pair.
type Store struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organization_id"`
	OwnerID        string `json:"owner_id"`
	Name           string `json:"name"`
	BaseURL        string `json:"base_url"`
	ConsumerKey    string `json:"-"`
	ConsumerSecret string `json:"-"`
	CreatedAt      int64  `json:"created_at"`
	UpdatedAt      int64  `json:"updated_at"`
}

// HasCredentials reports whether the store can be reached through its REST API.
func (s *Store) HasCredentials() bool {
	return s.BaseURL != "" && s.ConsumerKey != "" && s.ConsumerSecret != ""
}

// StoreContext is everything inbound processing needs to know about the
// store a delivery belongs to.
type StoreContext struct {
	WebhookID      string
	StoreID        string
	OrganizationID string
	OwnerUserID    string
	SharedSecret   string
	StoreName      string
	StoreBaseURL   string
	Webhook        *WebhookRegistration
}
