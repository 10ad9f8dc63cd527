package webhooks

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"storehub/internal/engine/woocommerce"
	"storehub/internal/platform/audit"
	"storehub/internal/platform/database"
	"storehub/internal/platform/models"
	"storehub/internal/platform/repositories"
)

type fakeRemote struct {
	mu        sync.Mutex
	nextID    int64
	hooks     map[int64]woocommerce.Webhook
	updates   []woocommerce.Webhook
	createErr error
	updateErr map[int64]error
	deleteErr error
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{nextID: 100, hooks: make(map[int64]woocommerce.Webhook), updateErr: make(map[int64]error)}
}

func (f *fakeRemote) CreateWebhook(ctx context.Context, hook woocommerce.Webhook) (*woocommerce.Webhook, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.nextID++
	hook.ID = f.nextID
	f.hooks[hook.ID] = hook
	out := hook
	out.Secret = ""
	return &out, nil
}

func (f *fakeRemote) UpdateWebhook(ctx context.Context, id int64, hook woocommerce.Webhook) (*woocommerce.Webhook, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.updateErr[id]; err != nil {
		return nil, err
	}
	existing, ok := f.hooks[id]
	if !ok {
		return nil, &woocommerce.APIError{StatusCode: 404, Code: "woocommerce_rest_webhook_invalid_id", Message: "Invalid ID."}
	}
	f.updates = append(f.updates, hook)
	if hook.Status != "" {
		existing.Status = hook.Status
	}
	if hook.Topic != "" {
		existing.Topic = hook.Topic
	}
	if hook.DeliveryURL != "" {
		existing.DeliveryURL = hook.DeliveryURL
	}
	f.hooks[id] = existing
	return &existing, nil
}

func (f *fakeRemote) GetWebhook(ctx context.Context, id int64) (*woocommerce.Webhook, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	hook, ok := f.hooks[id]
	if !ok {
		return nil, &woocommerce.APIError{StatusCode: 404, Message: "Invalid ID."}
	}
	return &hook, nil
}

func (f *fakeRemote) DeleteWebhook(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, ok := f.hooks[id]; !ok {
		return &woocommerce.APIError{StatusCode: 404, Message: "Invalid ID."}
	}
	delete(f.hooks, id)
	return nil
}

type recordingAudit struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (r *recordingAudit) Record(ctx context.Context, entry audit.Entry) {
	r.mu.Lock()
	r.entries = append(r.entries, entry)
	r.mu.Unlock()
}

func (r *recordingAudit) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.entries {
		out = append(out, e.Action)
	}
	return out
}

type testEnv struct {
	db         *sql.DB
	webhooks   *repositories.WebhookRepository
	deliveries *repositories.DeliveryRepository
	stores     *repositories.StoreRepository
	resources  *repositories.ResourceRepository
	remote     *fakeRemote
	audit      *recordingAudit
	resolver   *Resolver
	processor  *Processor
	manager    *Manager
	store      *models.Store
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	if err := database.MigrateGlobal(db, database.Up); err != nil {
		t.Fatalf("migrate global: %v", err)
	}
	if err := database.MigrateTenant(db, database.Up); err != nil {
		t.Fatalf("migrate tenant: %v", err)
	}

	env := &testEnv{
		db:         db,
		webhooks:   repositories.NewWebhookRepository(db),
		deliveries: repositories.NewDeliveryRepository(db),
		stores:     repositories.NewStoreRepository(db),
		resources:  repositories.NewResourceRepository(db),
		remote:     newFakeRemote(),
		audit:      &recordingAudit{},
	}

	env.store = &models.Store{
		ID:             "store_1",
		OrganizationID: "org_1",
		OwnerID:        "user_1",
		Name:           "Demo Shop",
		BaseURL:        "https://shop.example.com",
		ConsumerKey:    "ck_test",
		ConsumerSecret: "cs_test",
	}
	if err := env.stores.Create(context.Background(), env.store); err != nil {
		t.Fatalf("create store: %v", err)
	}

	remotes := func(store *models.Store) (RemoteWebhooks, error) { return env.remote, nil }
	env.resolver = NewResolver(env.webhooks, env.stores)
	env.processor = NewProcessor(env.resolver, env.webhooks, env.deliveries, env.tenantResources(), NewMemoryGuard(0), env.audit, ProcessorConfig{})
	env.manager = NewManager(env.webhooks, env.deliveries, env.stores, remotes, env.audit, ManagerConfig{
		PublicBaseURL: "https://hooks.example.com",
		BulkBatchSize: 5,
	})
	return env
}

func (env *testEnv) tenantResources() ResourceProvider {
	return func(orgID string) (ResourceStore, error) { return env.resources, nil }
}

// seedWebhook stores an order.created registration that also exists on the
// fake remote.
func (env *testEnv) seedWebhook(t *testing.T, n int, status string) *models.WebhookRegistration {
	t.Helper()
	return env.seedWebhookFor(t, n, status, "order.created")
}

func (env *testEnv) seedWebhookFor(t *testing.T, n int, status, topic string) *models.WebhookRegistration {
	t.Helper()
	remote, _ := env.remote.CreateWebhook(context.Background(), woocommerce.Webhook{Status: status, Topic: topic})
	routingID := fmt.Sprintf("%s-%d", env.store.ID, 1700000000000+int64(n))
	w := &models.WebhookRegistration{
		RemoteID:       remote.ID,
		RoutingID:      routingID,
		StoreID:        env.store.ID,
		OrganizationID: env.store.OrganizationID,
		Name:           fmt.Sprintf("hook %d", n),
		Topic:          topic,
		DeliveryURL:    DeliveryURL("https://hooks.example.com", routingID, topic),
		Secret:         "secret",
		Status:         status,
	}
	if err := env.webhooks.Create(context.Background(), w); err != nil {
		t.Fatalf("seed webhook: %v", err)
	}
	return w
}
