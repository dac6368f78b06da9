package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"storefront/internal/cart"
	"storefront/internal/domain"
	"storefront/internal/payment"
	"storefront/internal/service"
)

// IdempotencyHeader carries a client key that makes a checkout safe to resubmit.
const IdempotencyHeader = "Idempotency-Key"

type checkoutReq struct {
	ShippingAddress domain.ShippingAddress `json:"shippingAddress"`
	PaymentMethod   string                 `json:"paymentMethod"`
	PaymentMethodID string                 `json:"paymentMethodId"`
}

type checkoutResp struct {
	Success  bool                  `json:"success"`
	State    service.CheckoutState `json:"state"`
	Order    *domain.Order         `json:"order"`
	Replayed bool                  `json:"replayed,omitempty"`
}

// @Summary Check out the current cart
// @Description Places an order from the server-held cart. The cart is emptied only when the order is stored.
// @Tags checkout
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param Idempotency-Key header string false "Client key; a repeat returns the first order"
// @Param input body checkoutReq true "Shipping and payment"
// @Success 201 {object} checkoutResp
// @Failure 400 {object} errorResp
// @Failure 402 {object} errorResp
// @Router /checkout [post]
func (s *Server) checkout(c *gin.Context) {
	var req checkoutReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badJSON(c)
		return
	}
	who := identity(c)
	defer s.lockCart(who.ID)()

	l, err := cart.Open(c, s.deps.Carts.For(who.ID))
	if err != nil {
		fail(c, err)
		return
	}
	res, err := s.deps.Checkout.CheckoutLedger(c, l, service.CheckoutRequest{
		UserID:          who.ID,
		ReceiptEmail:    who.Email,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
		PaymentMethodID: req.PaymentMethodID,
		IdempotencyKey:  c.GetHeader(IdempotencyHeader),
	})
	if err != nil {
		fail(c, err)
		return
	}
	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	c.JSON(status, checkoutResp{Success: true, State: res.State, Order: res.Order, Replayed: res.Replayed})
}

type paymentIntentReq struct {
	// Amount in major units, e.g. 44.98.
	Amount float64 `json:"amount"`
}

type paymentIntentResp struct {
	Success      bool   `json:"success"`
	ClientSecret string `json:"clientSecret"`
}

// @Summary Create a payment intent for a client-side payment form
// @Tags payment
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param input body paymentIntentReq true "Amount"
// @Success 200 {object} paymentIntentResp
// @Failure 400 {object} errorResp
// @Failure 402 {object} errorResp
// @Failure 503 {object} errorResp
// @Router /stripe/create-payment-intent [post]
func (s *Server) createPaymentIntent(c *gin.Context) {
	if s.deps.Gateway == nil {
		fail(c, domain.ErrGatewayNotConfigured)
		return
	}
	var req paymentIntentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badJSON(c)
		return
	}
	minor := payment.MinorUnits(decimal.NewFromFloat(req.Amount))
	if minor <= 0 {
		fail(c, fmt.Errorf("%w: amount must be positive", domain.ErrValidation))
		return
	}
	intent, err := s.deps.Gateway.CreateIntent(c, payment.IntentRequest{
		Amount:       minor,
		Currency:     s.deps.Currency,
		ReceiptEmail: identity(c).Email,
		Metadata:     map[string]string{"user_id": identity(c).ID},
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, paymentIntentResp{Success: true, ClientSecret: intent.ClientSecret})
}

type healthResp struct {
	Status   string            `json:"status"`
	Backends map[string]string `json:"backends"`
	Payments string            `json:"payments"`
}

// @Summary Health
// @Description Reports each backing service as up or down. A down primary leaves the API serving from fallbacks.
// @Tags health
// @Produce json
// @Success 200 {object} healthResp
// @Router /health [get]
func (s *Server) health(c *gin.Context) {
	resp := healthResp{Status: "ok", Backends: make(map[string]string, len(s.deps.Health)), Payments: "unsecured"}
	if s.deps.Checkout != nil && s.deps.Checkout.Secured() {
		resp.Payments = "gateway"
	}
	for name, check := range s.deps.Health {
		ctx, cancel := context.WithTimeout(c, 2*time.Second)
		err := check(ctx)
		cancel()
		if err != nil {
			resp.Backends[name] = "down"
			s.deps.Logger.WarnContext(c, "health check failed", "backend", name, "err", err)
			continue
		}
		resp.Backends[name] = "up"
	}
	c.JSON(http.StatusOK, resp)
}
