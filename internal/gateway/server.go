// Package gateway exposes the HTTP surface: the payment-platform webhook
// and a small read-only API over the record store.
package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/vendahub/zapbot/internal/bot"
	"github.com/vendahub/zapbot/internal/config"
	"github.com/vendahub/zapbot/internal/events"
	"github.com/vendahub/zapbot/internal/store"
)

const maxWebhookBody = 1 << 20 // 1 MiB

// ChannelStatus reports the chat channel's connectivity for /status and /qr.
type ChannelStatus interface {
	Connected() bool
	QRPayload() string
}

// Server is the HTTP gateway.
type Server struct {
	cfg     *config.Config
	engine  *bot.Engine
	store   *store.RecordStore
	channel ChannelStatus
	started time.Time

	httpServer *http.Server
	mux        *http.ServeMux
}

// NewServer creates a new gateway server.
func NewServer(cfg *config.Config, engine *bot.Engine, st *store.RecordStore, channel ChannelStatus) *Server {
	return &Server{
		cfg:     cfg,
		engine:  engine,
		store:   st,
		channel: channel,
		started: time.Now(),
	}
}

// BuildMux creates and caches the HTTP mux with all routes registered.
func (s *Server) BuildMux() *http.ServeMux {
	if s.mux != nil {
		return s.mux
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/webhook", s.handleWebhook)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/qr", s.handleQR)
	mux.HandleFunc("/customers", s.handleCustomers)
	mux.HandleFunc("/customers/", s.handleCustomerDetail)
	mux.HandleFunc("/conversations", s.handleConversations)

	s.mux = mux
	return mux
}

// Start begins serving HTTP and blocks until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	mux := s.BuildMux()

	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	slog.Info("gateway starting", "addr", addr)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("gateway server: %w", err)
	}
	return nil
}

// ValidSignature checks the webhook signature: hex HMAC-SHA1 of the raw
// body under the shared secret, carried in the ?signature= query param.
func ValidSignature(secret string, body []byte, signature string) bool {
	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}

// handleWebhook receives payment platform events. Verification happens on
// the raw body before anything touches the store.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodHead:
		// Platform endpoint validation ping.
		w.WriteHeader(http.StatusOK)
		return
	case http.MethodPost:
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		http.Error(w, "body too large", http.StatusRequestEntityTooLarge)
		return
	}

	secret := s.cfg.Webhook.Secret
	if secret == "" {
		// Unsigned webhooks never reach the store.
		slog.Warn("webhook rejected, no secret configured", "remote", r.RemoteAddr)
		http.Error(w, "webhook secret not configured", http.StatusUnauthorized)
		return
	}
	if !ValidSignature(secret, body, r.URL.Query().Get("signature")) {
		slog.Warn("webhook signature rejected", "remote", r.RemoteAddr)
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	ev := events.Classify(raw, events.Type(s.cfg.Webhook.DefaultEvent))

	// Delivery paces itself between sends, so respond to the platform
	// immediately and process in the background.
	go s.engine.HandleEvent(context.Background(), ev)

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "received",
		"event":  string(ev.Type),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	customers, orders, conversations, followUps := s.store.Counts()
	connected := false
	if s.channel != nil {
		connected = s.channel.Connected()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"whatsapp_connected": connected,
		"uptime_sec":         int(time.Since(s.started).Seconds()),
		"customers":          customers,
		"orders":             orders,
		"conversations":      conversations,
		"pending_follow_ups": followUps,
	})
}

// handleQR exposes the pairing payload while the channel is logged out.
func (s *Server) handleQR(w http.ResponseWriter, r *http.Request) {
	if s.channel == nil {
		http.Error(w, "channel not configured", http.StatusNotFound)
		return
	}
	qr := s.channel.QRPayload()
	if qr == "" {
		http.Error(w, "no QR pending", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"qr": qr})
}

func (s *Server) handleCustomers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Customers())
}

func (s *Server) handleCustomerDetail(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimPrefix(r.URL.Path, "/customers/")
	if email == "" {
		http.Error(w, "missing email", http.StatusBadRequest)
		return
	}
	customer, ok := s.store.GetCustomer(email)
	if !ok {
		http.Error(w, "customer not found", http.StatusNotFound)
		return
	}

	type orderView struct {
		Ref       string       `json:"ref"`
		EventType events.Type  `json:"event_type"`
		Detail    events.Order `json:"detail"`
	}
	orders := make([]orderView, 0, len(customer.Orders))
	for _, ref := range customer.Orders {
		if order, ok := s.store.GetOrder(ref); ok {
			orders = append(orders, orderView{Ref: order.Ref, EventType: order.EventType, Detail: order.Detail})
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"customer": customer,
		"orders":   orders,
	})
}

func (s *Server) handleConversations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Conversations())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("write response failed", "error", err)
	}
}
