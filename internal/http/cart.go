package httpapi

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"storefront/internal/cart"
)

type cartResp struct {
	Success bool        `json:"success"`
	Items   []cart.Item `json:"items"`
	Count   int         `json:"count"`
	Total   float64     `json:"total"`
}

type addCartItemReq struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type setQuantityReq struct {
	Quantity int `json:"quantity"`
}

// lockCart serializes cart mutations and checkout for one user.
func (s *Server) lockCart(userID string) func() {
	v, _ := s.cartLocks.LoadOrStore(userID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// withLedger opens the caller's cart under its lock and runs fn. fn returning
// false means it already wrote the response.
func (s *Server) withLedger(c *gin.Context, status int, fn func(l *cart.Ledger) bool) {
	userID := identity(c).ID
	defer s.lockCart(userID)()

	l, err := cart.Open(c, s.deps.Carts.For(userID))
	if err != nil {
		fail(c, err)
		return
	}
	if !fn(l) {
		return
	}
	items := l.Items()
	if items == nil {
		items = []cart.Item{}
	}
	c.JSON(status, cartResp{Success: true, Items: items, Count: l.Len(), Total: l.Total().InexactFloat64()})
}

// @Summary Current cart
// @Tags cart
// @Produce json
// @Security BearerAuth
// @Success 200 {object} cartResp
// @Router /cart [get]
func (s *Server) getCart(c *gin.Context) {
	s.withLedger(c, http.StatusOK, func(*cart.Ledger) bool { return true })
}

// @Summary Add a product to the cart
// @Description Quantity is clamped to the product's stock.
// @Tags cart
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param input body addCartItemReq true "Line"
// @Success 200 {object} cartResp
// @Failure 400 {object} errorResp
// @Failure 404 {object} errorResp
// @Router /cart/items [post]
func (s *Server) addCartItem(c *gin.Context) {
	var req addCartItemReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badJSON(c)
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	p, err := s.deps.Catalog.GetByID(c, req.ProductID)
	if err != nil {
		fail(c, err)
		return
	}
	s.withLedger(c, http.StatusOK, func(l *cart.Ledger) bool {
		if err := l.Add(c, *p, req.Quantity); err != nil {
			fail(c, err)
			return false
		}
		return true
	})
}

// @Summary Set a line's quantity
// @Tags cart
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param productId path string true "Product ID"
// @Param input body setQuantityReq true "Quantity"
// @Success 200 {object} cartResp
// @Failure 404 {object} errorResp
// @Router /cart/items/{productId} [put]
func (s *Server) setCartItem(c *gin.Context) {
	var req setQuantityReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badJSON(c)
		return
	}
	s.withLedger(c, http.StatusOK, func(l *cart.Ledger) bool {
		if err := l.SetQuantity(c, c.Param("productId"), req.Quantity); err != nil {
			fail(c, err)
			return false
		}
		return true
	})
}

// @Summary Remove a line
// @Tags cart
// @Produce json
// @Security BearerAuth
// @Param productId path string true "Product ID"
// @Success 200 {object} cartResp
// @Router /cart/items/{productId} [delete]
func (s *Server) removeCartItem(c *gin.Context) {
	s.withLedger(c, http.StatusOK, func(l *cart.Ledger) bool {
		if err := l.Remove(c, c.Param("productId")); err != nil {
			fail(c, err)
			return false
		}
		return true
	})
}

// @Summary Empty the cart
// @Tags cart
// @Produce json
// @Security BearerAuth
// @Success 200 {object} cartResp
// @Router /cart [delete]
func (s *Server) clearCart(c *gin.Context) {
	s.withLedger(c, http.StatusOK, func(l *cart.Ledger) bool {
		if err := l.Clear(c); err != nil {
			fail(c, err)
			return false
		}
		return true
	})
}
