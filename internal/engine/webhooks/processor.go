package webhooks

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"storehub/internal/metrics"
	"storehub/internal/pkg/errors"
	"storehub/internal/platform/audit"
	"storehub/internal/platform/models"
	"storehub/internal/platform/repositories"
)

const (
	HeaderSignature  = "X-WC-Webhook-Signature"
	HeaderTopic      = "X-WC-Webhook-Topic"
	HeaderResource   = "X-WC-Webhook-Resource"
	HeaderEvent      = "X-WC-Webhook-Event"
	HeaderWebhookID  = "X-WC-Webhook-ID"
	HeaderDeliveryID = "X-WC-Webhook-Delivery-ID"
	HeaderSource     = "X-WC-Webhook-Source"
)

var capturedHeaders = []string{
	HeaderTopic, HeaderResource, HeaderEvent, HeaderWebhookID, HeaderDeliveryID, HeaderSource, HeaderSignature,
	"Content-Type", "User-Agent",
}

type ProcessorConfig struct {
	AllowUnsigned    bool
	MaxRetries       int
	FailureThreshold int
}

// Inbound is one POST from a store, with the body exactly as received.
type Inbound struct {
	RoutingID  string
	Topic      string
	Header     http.Header
	Body       []byte
	RemoteAddr string
}

// Result is the acknowledgement returned to the store.
type Result struct {
	Success    bool   `json:"success"`
	Message    string `json:"message,omitempty"`
	Ignored    bool   `json:"ignored,omitempty"`
	Duplicate  bool   `json:"duplicate,omitempty"`
	Ping       bool   `json:"ping,omitempty"`
	DeliveryID string `json:"delivery_id,omitempty"`
}

// Processor verifies, applies and records inbound deliveries.
type Processor struct {
	resolver   *Resolver
	webhooks   *repositories.WebhookRepository
	deliveries *repositories.DeliveryRepository
	resources  ResourceProvider
	guard      DeliveryGuard
	audit      audit.Recorder
	cfg        ProcessorConfig
	now        func() time.Time
}

func NewProcessor(
	resolver *Resolver,
	webhooks *repositories.WebhookRepository,
	deliveries *repositories.DeliveryRepository,
	resources ResourceProvider,
	guard DeliveryGuard,
	recorder audit.Recorder,
	cfg ProcessorConfig,
) *Processor {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = models.DefaultMaxRetries
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = models.DefaultFailureThreshold
	}
	if guard == nil {
		guard = NewMemoryGuard(0)
	}
	return &Processor{
		resolver:   resolver,
		webhooks:   webhooks,
		deliveries: deliveries,
		resources:  resources,
		guard:      guard,
		audit:      recorder,
		cfg:        cfg,
		now:        time.Now,
	}
}

// Process handles one inbound delivery. Errors are *errors.AppError values
// ready to be written to the response.
func (p *Processor) Process(ctx context.Context, in *Inbound) (*Result, error) {
	start := p.now()

	sc, err := p.resolver.ResolveByRoutingID(ctx, in.RoutingID)
	if err != nil {
		metrics.InboundDeliveries.WithLabelValues(in.Topic, "rejected").Inc()
		return nil, err
	}
	logger := log.With().Str("webhook_id", sc.WebhookID).Str("store_id", sc.StoreID).Str("topic", in.Topic).Logger()

	if isPing(in) {
		logger.Info().Msg("webhook ping acknowledged")
		metrics.InboundDeliveries.WithLabelValues(in.Topic, "ping").Inc()
		return &Result{Success: true, Ping: true, Message: "Webhook ping received"}, nil
	}

	if !models.IsValidTopic(in.Topic) {
		metrics.InboundDeliveries.WithLabelValues("unknown", "rejected").Inc()
		return nil, errors.NotFound("Unknown webhook topic")
	}

	// The topic in the path is unsigned. It must match the registration and
	// any topic header the store sent.
	if in.Topic != sc.Webhook.Topic || !headerTopicMatches(in) {
		logger.Warn().Str("registered_topic", sc.Webhook.Topic).Str("header_topic", in.Header.Get(HeaderTopic)).Msg("delivery topic does not match webhook")
		metrics.InboundDeliveries.WithLabelValues(in.Topic, "rejected").Inc()
		return nil, errors.NotFound("Unknown webhook topic")
	}

	if sc.Webhook.Status != models.WebhookStatusActive {
		logger.Info().Str("status", sc.Webhook.Status).Msg("delivery for inactive webhook ignored")
		metrics.InboundDeliveries.WithLabelValues(in.Topic, "ignored").Inc()
		return &Result{Success: true, Ignored: true, Message: "Webhook is " + sc.Webhook.Status}, nil
	}

	delivery := p.newDelivery(sc, in)

	if sc.SharedSecret == "" {
		if !p.cfg.AllowUnsigned {
			p.reject(ctx, sc, delivery, start, "webhook has no shared secret configured")
			return nil, errors.Unauthorized("Webhook secret not configured")
		}
	} else if !Verify(in.Body, in.Header.Get(HeaderSignature), sc.SharedSecret) {
		logger.Warn().Str("delivery_id", delivery.DeliveryID).Msg("invalid webhook signature")
		p.reject(ctx, sc, delivery, start, "invalid signature")
		return nil, errors.Unauthorized("Invalid webhook signature")
	}

	if delivery.DeliveryID != "" {
		seen, err := p.guard.Seen(ctx, sc.WebhookID, delivery.DeliveryID)
		if err != nil {
			logger.Warn().Err(err).Msg("delivery guard unavailable")
		}
		if seen {
			metrics.InboundDeliveries.WithLabelValues(in.Topic, "duplicate").Inc()
			return &Result{Success: true, Duplicate: true, DeliveryID: delivery.DeliveryID, Message: "Delivery already processed"}, nil
		}
	}

	applyErr := p.apply(ctx, sc, delivery.Resource, delivery.Event, in.Body)
	delivery.DurationMs = p.now().Sub(start).Milliseconds()

	if applyErr != nil {
		logger.Error().Err(applyErr).Str("delivery_id", delivery.DeliveryID).Msg("failed to process webhook")
		delivery.MarkFailed(p.now(), http.StatusInternalServerError, applyErr.Error(), true)
		delivery.ResponseBody = `{"success":false}`
		p.recordDelivery(ctx, delivery)
		p.recordFailure(ctx, sc, applyErr.Error())
		p.recordAudit(ctx, sc, delivery, in)
		p.observe(in.Topic, delivery.Status, start)
		return nil, errors.Internal("Failed to process webhook", applyErr)
	}

	delivery.MarkSucceeded(p.now(), http.StatusOK, "OK")
	delivery.ResponseBody = `{"success":true}`
	p.recordDelivery(ctx, delivery)
	if err := p.webhooks.RecordSuccess(ctx, sc.WebhookID, p.now().Unix()); err != nil {
		logger.Error().Err(err).Msg("failed to record webhook success")
	}
	if delivery.DeliveryID != "" {
		if err := p.guard.Mark(ctx, sc.WebhookID, delivery.DeliveryID); err != nil {
			logger.Warn().Err(err).Msg("failed to mark delivery as processed")
		}
	}
	p.recordAudit(ctx, sc, delivery, in)
	p.observe(in.Topic, delivery.Status, start)

	return &Result{Success: true, DeliveryID: delivery.ID, Message: "Webhook processed"}, nil
}

// Retry re-applies the captured body of a pending delivery and records the
// outcome on the same record.
func (p *Processor) Retry(ctx context.Context, d *models.WebhookDelivery) error {
	start := p.now()

	sc, err := p.resolver.ResolveByWebhookID(ctx, d.WebhookID)
	if err != nil {
		d.MarkFailed(p.now(), http.StatusNotFound, "webhook no longer exists", false)
		metrics.Retries.WithLabelValues("abandoned").Inc()
		return p.deliveries.Update(ctx, d)
	}
	if sc.Webhook.Status != models.WebhookStatusActive {
		d.MarkFailed(p.now(), http.StatusConflict, "webhook is "+sc.Webhook.Status, false)
		metrics.Retries.WithLabelValues("abandoned").Inc()
		return p.deliveries.Update(ctx, d)
	}

	resource, event := d.Resource, d.Event
	if resource == "" || event == "" {
		resource, event = models.SplitTopic(d.Topic)
	}

	applyErr := p.apply(ctx, sc, resource, event, []byte(d.RequestBody))
	d.DurationMs = p.now().Sub(start).Milliseconds()

	if applyErr != nil {
		d.MarkFailed(p.now(), http.StatusInternalServerError, applyErr.Error(), true)
		if err := p.deliveries.Update(ctx, d); err != nil {
			return err
		}
		p.recordFailure(ctx, sc, applyErr.Error())
		metrics.Retries.WithLabelValues(d.Status).Inc()
		log.Warn().Err(applyErr).Str("webhook_id", d.WebhookID).Str("delivery", d.ID).Int("retry_count", d.RetryCount).Msg("retry failed")
		return nil
	}

	d.MarkSucceeded(p.now(), http.StatusOK, "OK")
	if err := p.deliveries.Update(ctx, d); err != nil {
		return err
	}
	if err := p.webhooks.RecordSuccess(ctx, sc.WebhookID, p.now().Unix()); err != nil {
		log.Error().Err(err).Str("webhook_id", sc.WebhookID).Msg("failed to record webhook success")
	}
	if d.DeliveryID != "" {
		if err := p.guard.Mark(ctx, sc.WebhookID, d.DeliveryID); err != nil {
			log.Warn().Err(err).Str("webhook_id", sc.WebhookID).Msg("failed to mark delivery as processed")
		}
	}
	metrics.Retries.WithLabelValues(d.Status).Inc()
	log.Info().Str("webhook_id", d.WebhookID).Str("delivery", d.ID).Msg("retry succeeded")
	return nil
}

func (p *Processor) apply(ctx context.Context, sc *models.StoreContext, resource, event string, body []byte) error {
	store, err := p.resources(sc.OrganizationID)
	if err != nil {
		return fmt.Errorf("open resource store: %w", err)
	}

	if event == models.EventDeleted {
		id, err := ExternalID(body)
		if err != nil {
			return err
		}
		switch resource {
		case models.ResourceOrder:
			return store.DeleteOrder(ctx, sc.StoreID, id)
		case models.ResourceCustomer:
			return store.DeleteCustomer(ctx, sc.StoreID, id)
		case models.ResourceProduct:
			return store.DeleteProduct(ctx, sc.StoreID, id)
		}
		return fmt.Errorf("unsupported resource %q", resource)
	}

	if event != models.EventCreated && event != models.EventUpdated {
		return fmt.Errorf("unsupported event %q", event)
	}

	switch resource {
	case models.ResourceOrder:
		order, err := NormalizeOrder(ctx, body, sc, store)
		if err != nil {
			return err
		}
		return store.UpsertOrder(ctx, order)
	case models.ResourceCustomer:
		customer, err := NormalizeCustomer(body, sc)
		if err != nil {
			return err
		}
		return store.UpsertCustomer(ctx, customer)
	case models.ResourceProduct:
		product, err := NormalizeProduct(body, sc)
		if err != nil {
			return err
		}
		return store.UpsertProduct(ctx, product)
	}
	return fmt.Errorf("unsupported resource %q", resource)
}

func (p *Processor) newDelivery(sc *models.StoreContext, in *Inbound) *models.WebhookDelivery {
	resource, event := models.SplitTopic(in.Topic)

	headers := make(map[string]string)
	for _, name := range capturedHeaders {
		if v := in.Header.Get(name); v != "" {
			headers[name] = v
		}
	}

	return &models.WebhookDelivery{
		WebhookID:      sc.WebhookID,
		DeliveryID:     in.Header.Get(HeaderDeliveryID),
		Topic:          in.Topic,
		Resource:       resource,
		Event:          event,
		RequestHeaders: headers,
		RequestBody:    string(in.Body),
		MaxRetries:     p.cfg.MaxRetries,
	}
}

// reject records a delivery that failed verification. It is never retried
// and does not count towards auto-disable.
func (p *Processor) reject(ctx context.Context, sc *models.StoreContext, d *models.WebhookDelivery, start time.Time, reason string) {
	d.DurationMs = p.now().Sub(start).Milliseconds()
	d.MarkFailed(p.now(), http.StatusUnauthorized, reason, false)
	d.ResponseBody = `{"success":false}`
	p.recordDelivery(ctx, d)
	p.observe(d.Topic, "rejected", start)
}

func (p *Processor) recordDelivery(ctx context.Context, d *models.WebhookDelivery) {
	if err := p.deliveries.Save(ctx, d); err != nil {
		log.Error().Err(err).Str("webhook_id", d.WebhookID).Str("delivery_id", d.DeliveryID).Msg("failed to record delivery")
	}
}

func (p *Processor) recordFailure(ctx context.Context, sc *models.StoreContext, reason string) {
	count, status, err := p.webhooks.RecordFailure(ctx, sc.WebhookID, p.now().Unix(), reason, p.cfg.FailureThreshold)
	if err != nil {
		log.Error().Err(err).Str("webhook_id", sc.WebhookID).Msg("failed to record webhook failure")
		return
	}
	if status == models.WebhookStatusDisabled && count == p.cfg.FailureThreshold {
		metrics.AutoDisabled.Inc()
		log.Warn().Str("webhook_id", sc.WebhookID).Str("store_id", sc.StoreID).Int("failure_count", count).Msg("webhook disabled after repeated failures")
	}
}

func (p *Processor) recordAudit(ctx context.Context, sc *models.StoreContext, d *models.WebhookDelivery, in *Inbound) {
	if p.audit == nil {
		return
	}
	p.audit.Record(ctx, audit.Entry{
		OrganizationID: sc.OrganizationID,
		ActorID:        sc.OwnerUserID,
		Action:         "webhook_" + d.Event,
		ResourceType:   d.Resource,
		ResourceID:     sc.WebhookID,
		Metadata: map[string]interface{}{
			"topic":       d.Topic,
			"status":      d.Status,
			"delivery_id": d.DeliveryID,
			"store_id":    sc.StoreID,
		},
		IPAddress: in.RemoteAddr,
		UserAgent: in.Header.Get("User-Agent"),
	})
}

func (p *Processor) observe(topic, outcome string, start time.Time) {
	metrics.InboundDeliveries.WithLabelValues(topic, outcome).Inc()
	metrics.ProcessingDuration.WithLabelValues(topic).Observe(float64(p.now().Sub(start).Milliseconds()))
}

// isPing reports whether the body is the form-encoded "webhook_id=N" ping
// WooCommerce sends when a webhook is saved.
func isPing(in *Inbound) bool {
	body := strings.TrimSpace(string(in.Body))
	if !strings.HasPrefix(body, "webhook_id=") {
		return false
	}
	values, err := url.ParseQuery(body)
	return err == nil && len(values) == 1 && values.Get("webhook_id") != ""
}

// headerTopicMatches reports whether the topic header, when the store sent
// one, names the same topic as the delivery URL.
func headerTopicMatches(in *Inbound) bool {
	topic := in.Header.Get(HeaderTopic)
	return topic == "" || topic == in.Topic
}
