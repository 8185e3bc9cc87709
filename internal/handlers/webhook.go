package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/randevuhq/randevu/internal/model"
	"github.com/randevuhq/randevu/internal/storage"
	"github.com/randevuhq/randevu/internal/tenancy"
)

// TenantResolver maps the webhook path key to a tenant.
type TenantResolver interface {
	FindTenantByKey(ctx context.Context, key string) (model.Tenant, error)
}

// MessageRouter consumes one inbound text message.
type MessageRouter interface {
	Handle(ctx context.Context, tenantID, phone, name, text string) error
}

type WebhookHandler struct {
	tenants     TenantResolver
	router      MessageRouter
	logger      *slog.Logger
	verifyToken string
}

func NewWebhookHandler(tenants TenantResolver, router MessageRouter, logger *slog.Logger, verifyToken string) *WebhookHandler {
	return &WebhookHandler{
		tenants:     tenants,
		router:      router,
		logger:      logger,
		verifyToken: verifyToken,
	}
}

// webhookPayload is the WhatsApp Cloud API webhook envelope, reduced to
// the fields this service reads.
type webhookPayload struct {
	Object string `json:"object"`
	Entry  []struct {
		ID      string `json:"id"`
		Changes []struct {
			Field string `json:"field"`
			Value struct {
				Contacts []struct {
					WaID    string `json:"wa_id"`
					Profile struct {
						Name string `json:"name"`
					} `json:"profile"`
				} `json:"contacts"`
				Messages []struct {
					From string `json:"from"`
					ID   string `json:"id"`
					Type string `json:"type"`
					Text struct {
						Body string `json:"body"`
					} `json:"text"`
				} `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type inboundMessage struct {
	From string
	Name string
	Text string
}

// Verify answers the Cloud API subscription handshake. The tenant key
// is resolved first so an unregistered URL never verifies.
func (h *WebhookHandler) Verify(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("tenantKey")
	if _, err := h.tenants.FindTenantByKey(r.Context(), key); err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "unknown tenant", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to resolve tenant", http.StatusInternalServerError)
		return
	}

	mode := r.URL.Query().Get("hub.mode")
	token := r.URL.Query().Get("hub.verify_token")
	challenge := r.URL.Query().Get("hub.challenge")

	if mode != "subscribe" || h.verifyToken == "" || token != h.verifyToken {
		http.Error(w, "verification failed", http.StatusForbidden)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(challenge))
}

// Receive handles inbound message notifications. The provider retries
// on non-2xx, so malformed or unusable payloads are acknowledged and
// dropped; only an unknown tenant key is a hard 404.
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("tenantKey")
	tenant, err := h.tenants.FindTenantByKey(r.Context(), key)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "unknown tenant", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to resolve tenant", http.StatusInternalServerError)
		return
	}

	var payload webhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.logger.Warn("ignoring malformed webhook payload", "tenant_id", tenant.ID, "err", err)
		w.WriteHeader(http.StatusOK)
		return
	}

	ctx := tenancy.WithTenantID(r.Context(), tenant.ID)
	for _, msg := range extractTextMessages(payload) {
		if err := h.router.Handle(ctx, tenant.ID, msg.From, msg.Name, msg.Text); err != nil {
			h.logger.Error("message handling failed",
				"tenant_id", tenant.ID, "from", msg.From, "err", err)
		}
	}
	w.WriteHeader(http.StatusOK)
}

func extractTextMessages(payload webhookPayload) []inboundMessage {
	var out []inboundMessage
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			if strings.TrimSpace(change.Field) != "messages" {
				continue
			}
			names := make(map[string]string, len(change.Value.Contacts))
			for _, c := range change.Value.Contacts {
				names[c.WaID] = strings.TrimSpace(c.Profile.Name)
			}
			for _, m := range change.Value.Messages {
				if strings.ToLower(strings.TrimSpace(m.Type)) != "text" {
					continue
				}
				body := strings.TrimSpace(m.Text.Body)
				from := strings.TrimSpace(m.From)
				if body == "" || from == "" {
					continue
				}
				out = append(out, inboundMessage{
					From: from,
					Name: names[from],
					Text: body,
				})
			}
		}
	}
	return out
}
