package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"storefront/internal/cart"
	"storefront/internal/domain"
	"storefront/internal/payment"
	"storefront/internal/repository"
	"storefront/internal/service"
)

// HealthCheck checks one backing service.
type HealthCheck func(ctx context.Context) error

// Deps are the services the API is built on. Gateway may be nil.
type Deps struct {
	Auth        *service.AuthService
	Catalog     *service.CatalogService
	Orders      *service.OrderService
	Checkout    *service.CheckoutCoordinator
	Carts       cart.Slots
	Gateway     payment.Gateway
	Currency    string
	FrontendURL string
	Health      map[string]HealthCheck
	Logger      *slog.Logger
}

type Server struct {
	engine *gin.Engine
	deps   Deps

	cartLocks sync.Map // user id -> *sync.Mutex
}

func NewServer(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Currency == "" {
		deps.Currency = "usd"
	}
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery(), cors(deps.FrontendURL))
	s := &Server{engine: r, deps: deps}
	s.registerRoutes()
	return s
}

func (s *Server) Engine() *gin.Engine { return s.engine }

func (s *Server) registerRoutes() {
	// Swagger UI
	s.engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := s.engine.Group("/api")
	api.GET("/health", s.health)

	authed := s.requireAuth()
	admin := requireAdmin()
	{
		a := api.Group("/auth")
		a.POST("/register", s.register)
		a.POST("/login", s.login)
		a.GET("/me", authed, s.me)

		api.PUT("/users/profile", authed, s.updateProfile)
	}
	{
		products := api.Group("/products")
		products.GET("", s.listProducts)
		products.GET("/featured", s.featuredProducts)
		products.GET("/:id", s.getProduct)
		products.POST("", authed, admin, s.createProduct)
		products.PUT("/:id", authed, admin, s.updateProduct)
		products.DELETE("/:id", authed, admin, s.deleteProduct)
	}
	{
		orders := api.Group("/orders", authed)
		orders.POST("", s.createOrder)
		orders.GET("/myorders", s.myOrders)
		orders.GET("", admin, s.listOrders)
		orders.GET("/:id", s.getOrder)
		orders.PUT("/:id/pay", s.payOrder)
		orders.PUT("/:id/deliver", admin, s.deliverOrder)
	}
	{
		c := api.Group("/cart", authed)
		c.GET("", s.getCart)
		c.POST("/items", s.addCartItem)
		c.PUT("/items/:productId", s.setCartItem)
		c.DELETE("/items/:productId", s.removeCartItem)
		c.DELETE("", s.clearCart)

		api.POST("/checkout", authed, s.checkout)
		api.POST("/stripe/create-payment-intent", authed, s.createPaymentIntent)
	}
}

// Product handlers

// @Summary List products
// @Tags products
// @Produce json
// @Param keyword query string false "Name or description contains"
// @Param category query string false "Exact category"
// @Param minPrice query number false "Min price"
// @Param maxPrice query number false "Max price"
// @Param sortBy query string false "createdAt, price, name, rating, stock or numReviews"
// @Param order query string false "asc or desc"
// @Param page query int false "Page (1-based)"
// @Param limit query int false "Page size"
// @Success 200 {object} productPageResp
// @Failure 400 {object} errorResp
// @Router /products [get]
func (s *Server) listProducts(c *gin.Context) {
	q, err := parseCatalogQuery(c)
	if err != nil {
		fail(c, err)
		return
	}
	page, err := s.deps.Catalog.Query(c, q)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, productPageResp{Success: true, CatalogPage: *page})
}

// @Summary Featured products
// @Tags products
// @Produce json
// @Success 200 {object} productsResp
// @Router /products/featured [get]
func (s *Server) featuredProducts(c *gin.Context) {
	list, err := s.deps.Catalog.Featured(c)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, productsResp{Success: true, Products: list})
}

// @Summary Get product by id
// @Tags products
// @Produce json
// @Param id path string true "Product ID"
// @Success 200 {object} productResp
// @Failure 404 {object} errorResp
// @Router /products/{id} [get]
func (s *Server) getProduct(c *gin.Context) {
	p, err := s.deps.Catalog.GetByID(c, c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, productResp{Success: true, Product: p})
}

type productReq struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Image       string  `json:"image"`
	Category    string  `json:"category"`
	Brand       string  `json:"brand"`
	Stock       int     `json:"stock"`
	Featured    bool    `json:"featured"`
	Rating      float64 `json:"rating"`
	NumReviews  int     `json:"numReviews"`
}

// @Summary Create product
// @Tags products
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param input body productReq true "Product"
// @Success 201 {object} productResp
// @Failure 400 {object} errorResp
// @Failure 401 {object} errorResp
// @Failure 403 {object} errorResp
// @Router /products [post]
func (s *Server) createProduct(c *gin.Context) {
	var req productReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badJSON(c)
		return
	}
	p, err := s.deps.Catalog.Create(c, domain.Product{
		Name: req.Name, Description: req.Description, Price: req.Price, Image: req.Image,
		Category: req.Category, Brand: req.Brand, Stock: req.Stock, Featured: req.Featured,
		Rating: req.Rating, NumReviews: req.NumReviews,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, productResp{Success: true, Product: p})
}

// @Summary Update product
// @Tags products
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Product ID"
// @Param input body domain.ProductPatch true "Fields to change"
// @Success 200 {object} productResp
// @Failure 400 {object} errorResp
// @Failure 404 {object} errorResp
// @Router /products/{id} [put]
func (s *Server) updateProduct(c *gin.Context) {
	var patch domain.ProductPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badJSON(c)
		return
	}
	p, err := s.deps.Catalog.Update(c, c.Param("id"), patch)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, productResp{Success: true, Product: p})
}

// @Summary Delete product
// @Tags products
// @Produce json
// @Security BearerAuth
// @Param id path string true "Product ID"
// @Success 200 {object} messageResp
// @Failure 404 {object} errorResp
// @Router /products/{id} [delete]
func (s *Server) deleteProduct(c *gin.Context) {
	if err := s.deps.Catalog.Delete(c, c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, messageResp{Success: true, Message: "Product removed"})
}

// Order handlers

// @Summary Create order
// @Tags orders
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param input body service.CreateOrderInput true "Order"
// @Success 201 {object} orderResp
// @Failure 400 {object} errorResp
// @Router /orders [post]
func (s *Server) createOrder(c *gin.Context) {
	var req service.CreateOrderInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badJSON(c)
		return
	}
	o, err := s.deps.Orders.Create(c, identity(c).ID, req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, orderResp{Success: true, Order: o})
}

// @Summary Orders of the current user, newest first
// @Tags orders
// @Produce json
// @Security BearerAuth
// @Success 200 {object} ordersResp
// @Router /orders/myorders [get]
func (s *Server) myOrders(c *gin.Context) {
	list, err := s.deps.Orders.ListByUser(c, identity(c).ID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ordersResp{Success: true, Orders: list})
}

// @Summary All orders
// @Tags orders
// @Produce json
// @Security BearerAuth
// @Success 200 {object} ordersResp
// @Failure 403 {object} errorResp
// @Router /orders [get]
func (s *Server) listOrders(c *gin.Context) {
	list, err := s.deps.Orders.ListAll(c)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ordersResp{Success: true, Orders: list})
}

// @Summary Get order by id
// @Tags orders
// @Produce json
// @Security BearerAuth
// @Param id path string true "Order ID"
// @Success 200 {object} orderResp
// @Failure 403 {object} errorResp
// @Failure 404 {object} errorResp
// @Router /orders/{id} [get]
func (s *Server) getOrder(c *gin.Context) {
	o, err := s.deps.Orders.Get(c, identity(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, orderResp{Success: true, Order: o})
}

// @Summary Mark order paid
// @Tags orders
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Order ID"
// @Param input body domain.PaymentResult true "Gateway confirmation"
// @Success 200 {object} orderResp
// @Failure 403 {object} errorResp
// @Failure 404 {object} errorResp
// @Router /orders/{id}/pay [put]
func (s *Server) payOrder(c *gin.Context) {
	var req domain.PaymentResult
	if err := c.ShouldBindJSON(&req); err != nil {
		badJSON(c)
		return
	}
	o, err := s.deps.Orders.MarkPaid(c, identity(c), c.Param("id"), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, orderResp{Success: true, Order: o})
}

// @Summary Mark order delivered
// @Tags orders
// @Produce json
// @Security BearerAuth
// @Param id path string true "Order ID"
// @Success 200 {object} orderResp
// @Failure 404 {object} errorResp
// @Router /orders/{id}/deliver [put]
func (s *Server) deliverOrder(c *gin.Context) {
	o, err := s.deps.Orders.MarkDelivered(c, c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, orderResp{Success: true, Order: o})
}

func mapErrorToStatus(err error) int {
	var gwErr *payment.GatewayError
	switch {
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrUserExists),
		errors.Is(err, domain.ErrInsufficientStock):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidCredential), errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &gwErr), errors.Is(err, domain.ErrGateway):
		return http.StatusPaymentRequired
	case errors.Is(err, domain.ErrGatewayNotConfigured), repository.IsConnectivity(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
