package woocommerce

import (
	"sync"

	"storehub/internal/platform/config"
	"storehub/internal/platform/models"
)

// Factory hands out one Client per store. A cached client is replaced when
// the store's credentials change.
type Factory struct {
	mu      sync.Mutex
	clients map[string]*cachedClient
	opts    Options
}

type cachedClient struct {
	creds  Credentials
	client *Client
}

func NewFactory(cfg config.WooCommerceConfig) *Factory {
	return NewFactoryWithOptions(Options{
		Timeout:           cfg.Timeout,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Burst:             cfg.Burst,
	})
}

func NewFactoryWithOptions(opts Options) *Factory {
	return &Factory{
		clients: make(map[string]*cachedClient),
		opts:    opts,
	}
}

func (f *Factory) Client(store *models.Store) (*Client, error) {
	if store == nil || !store.HasCredentials() {
		return nil, ErrMissingCredentials
	}
	creds := Credentials{
		BaseURL:        store.BaseURL,
		ConsumerKey:    store.ConsumerKey,
		ConsumerSecret: store.ConsumerSecret,
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if cached, ok := f.clients[store.ID]; ok && cached.creds == creds {
		return cached.client, nil
	}

	client, err := NewClient(creds, f.opts)
	if err != nil {
		return nil, err
	}
	f.clients[store.ID] = &cachedClient{creds: creds, client: client}
	return client, nil
}

// Forget drops a store's cached client.
func (f *Factory) Forget(storeID string) {
	f.mu.Lock()
	delete(f.clients, storeID)
	f.mu.Unlock()
}
