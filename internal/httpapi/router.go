package httpapi

import (
	"context"
	"net/http"
	"time"

	"bloomcart-be/internal/checkout"
	"bloomcart-be/internal/order"
	"bloomcart-be/internal/storefront"
	"bloomcart-be/internal/wallet"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Drafts interface {
	CreateDraft(ctx context.Context, session *checkout.Session) (*order.DraftResult, error)
	Status(ctx context.Context, draftID uuid.UUID) (*order.Draft, error)
}

type DraftDiscarder interface {
	Discard(ctx context.Context, draftID uuid.UUID, reason string) error
}

type WalletPayments interface {
	CreateOrder(ctx context.Context, session *checkout.Session) (*order.Order, error)
	AttachProof(ctx context.Context, orderNumber string, upload wallet.Upload) (*order.PaymentProof, error)
	NotifyAndFinalize(ctx context.Context, orderNumber string) (*wallet.Dispatch, error)
	Review(ctx context.Context, token string) (*order.Order, *order.PaymentProof, error)
	VerifyPayment(ctx context.Context, token string, approved bool) (*order.Order, error)
	Cancel(orderNumber string) bool
}

type Deps struct {
	Sessions   checkout.Service
	Drafts     Drafts
	Finalizer  DraftDiscarder
	Wallet     WalletPayments
	Storefront storefront.Client

	// PaymentWebhook receives processor callbacks; it stays on net/http.
	PaymentWebhook http.HandlerFunc

	AllowedOrigins []string
	MaxProofBytes  int64
}

type handler struct {
	deps Deps
	flow *checkoutFlow
}

// NewRouter wires the REST surface.
func NewRouter(deps Deps) *gin.Engine {
	if deps.MaxProofBytes <= 0 {
		deps.MaxProofBytes = wallet.DefaultMaxProofBytes
	}
	if len(deps.AllowedOrigins) == 0 {
		deps.AllowedOrigins = []string{"http://localhost:5173"}
	}
	h := &handler{
		deps: deps,
		flow: &checkoutFlow{
			sessions:   deps.Sessions,
			drafts:     deps.Drafts,
			finalizer:  deps.Finalizer,
			wallet:     deps.Wallet,
			storefront: deps.Storefront,
		},
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.SetHTMLTemplate(reviewTemplates)
	router.Use(cors.New(cors.Config{
		AllowOrigins:     deps.AllowedOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Content-Type", "Authorization", "X-Request-ID", "X-Device-ID"},
		ExposeHeaders:    []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/healthz", healthHandler)

	api := router.Group("/api")

	sessions := api.Group("/checkout/sessions")
	sessions.POST("", h.startCheckout)
	sessions.GET("/:id", h.getCheckout)
	sessions.PUT("/:id/delivery", h.submitDelivery)
	sessions.PUT("/:id/address", h.submitAddress)
	sessions.POST("/:id/back", h.back)
	sessions.POST("/:id/payment", h.startPayment)
	sessions.DELETE("/:id", h.discardCheckout)

	orders := api.Group("/orders")
	orders.GET("/review", h.reviewPage)
	orders.POST("/review", h.reviewDecision)
	orders.POST("/:number/proof", h.uploadProof)
	orders.POST("/:number/notify", h.notifyStaff)

	api.GET("/districts", h.listDistricts)
	api.GET("/store", h.storeInfo)
	api.GET("/payment-channels", h.listPaymentChannels)
	api.GET("/payment-channels/:method/qr", h.paymentChannelQR)

	if deps.PaymentWebhook != nil {
		router.POST("/webhooks/payments", gin.WrapF(deps.PaymentWebhook))
	}

	return router
}

func healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
