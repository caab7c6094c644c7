// Package handler exposes the HTTP API: the storefront order and loyalty
// surface, operator endpoints guarded by API keys, and the Telegram webhook.
package handler

import (
	"github.com/go-chi/chi/v5"

	"github.com/juicyshop/backend/internal/domain/catalog"
	"github.com/juicyshop/backend/internal/domain/client"
	"github.com/juicyshop/backend/internal/domain/discount"
	"github.com/juicyshop/backend/internal/domain/order"
	"github.com/juicyshop/backend/internal/domain/referral"
	"github.com/juicyshop/backend/internal/domain/wallet"
	"github.com/juicyshop/backend/internal/hintcache"
	"github.com/juicyshop/backend/internal/telegram"
)

// Handler holds the domain services behind the HTTP surface.
type Handler struct {
	products      catalog.Repository
	clients       client.Repository
	clientService *client.Service
	orderService  *order.Service
	orders        order.Repository
	discounts     discount.Repository
	engine        *discount.Engine
	ledger        *wallet.Ledger
	graph         *referral.Graph
	hints         *hintcache.Cache
	security      *Security
	bot           *telegram.Client
	adminChatID   int64
}

// Config holds the non-service dependencies for the Handler.
type Config struct {
	// Hints is the optional Redis-backed UI hint cache; nil disables it.
	Hints *hintcache.Cache
	// Bot is the optional Telegram client used to edit operator messages
	// from webhook callbacks; nil disables editing.
	Bot *telegram.Client
	// AdminChatID restricts webhook callback processing to the operator chat.
	AdminChatID int64
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	cfg Config,
	products catalog.Repository,
	clients client.Repository,
	clientService *client.Service,
	orderService *order.Service,
	orders order.Repository,
	discounts discount.Repository,
	engine *discount.Engine,
	ledger *wallet.Ledger,
	graph *referral.Graph,
	security *Security,
) *Handler {
	return &Handler{
		products:      products,
		clients:       clients,
		clientService: clientService,
		orderService:  orderService,
		orders:        orders,
		discounts:     discounts,
		engine:        engine,
		ledger:        ledger,
		graph:         graph,
		hints:         cfg.Hints,
		security:      security,
		bot:           cfg.Bot,
		adminChatID:   cfg.AdminChatID,
	}
}

// Routes mounts all endpoints on a chi router.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/products", h.ListProducts)

		r.Post("/orders", h.SubmitOrder)
		r.Get("/orders", h.ListOrders)

		r.Group(func(r chi.Router) {
			r.Use(h.security.RequireAPIKey)
			r.Post("/orders/{id}/confirm", h.ConfirmOrder)
			r.Post("/orders/{id}/cancel", h.CancelOrder)
		})

		r.Post("/referrals", h.AttachReferral)
		r.Post("/visits", h.RegisterVisit)

		r.Route("/clients/{id}", func(r chi.Router) {
			r.Get("/", h.GetClient)
			r.Get("/bonus-history", h.BonusHistory)
			r.Get("/referral-stats", h.ReferralStats)
			r.Get("/new-customer-hint", h.NewCustomerHint)
		})

		r.Get("/discounts/{code}", h.GetDiscount)
	})

	r.Post("/telegram/webhook", h.TelegramWebhook)
}
