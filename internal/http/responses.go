package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"storefront/internal/domain"
	"storefront/internal/repository"
	"storefront/internal/service"
)

type errorResp struct {
	Success bool                  `json:"success"`
	Message string                `json:"message"`
	State   service.CheckoutState `json:"state,omitempty"`
}

type messageResp struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type productResp struct {
	Success bool            `json:"success"`
	Product *domain.Product `json:"product"`
}

type productsResp struct {
	Success  bool             `json:"success"`
	Products []domain.Product `json:"products"`
}

type productPageResp struct {
	Success bool `json:"success"`
	service.CatalogPage
}

type orderResp struct {
	Success bool          `json:"success"`
	Order   *domain.Order `json:"order"`
}

type ordersResp struct {
	Success bool           `json:"success"`
	Orders  []domain.Order `json:"orders"`
}

type sessionResp struct {
	Success bool             `json:"success"`
	Token   string           `json:"token"`
	User    *domain.Identity `json:"user"`
}

type userResp struct {
	Success bool             `json:"success"`
	User    *domain.Identity `json:"user"`
}

func fail(c *gin.Context, err error) {
	resp := errorResp{Message: err.Error()}
	var ce *service.CheckoutError
	if errors.As(err, &ce) {
		resp.State = ce.State
	}
	c.JSON(mapErrorToStatus(err), resp)
}

func badJSON(c *gin.Context) {
	c.JSON(http.StatusBadRequest, errorResp{Message: "invalid json"})
}

func parseCatalogQuery(c *gin.Context) (service.CatalogQuery, error) {
	var q service.CatalogQuery
	q.Filter.Keyword = c.Query("keyword")
	q.Filter.Category = c.Query("category")

	var err error
	if q.Filter.MinPrice, err = optFloat(c, "minPrice"); err != nil {
		return q, err
	}
	if q.Filter.MaxPrice, err = optFloat(c, "maxPrice"); err != nil {
		return q, err
	}
	if q.Sort, err = repository.ParseSort(c.Query("sortBy"), c.Query("order")); err != nil {
		return q, err
	}
	if q.Pagination.Page, err = optInt(c, "page"); err != nil {
		return q, err
	}
	if q.Pagination.Limit, err = optInt(c, "limit"); err != nil {
		return q, err
	}
	return q, nil
}

func optFloat(c *gin.Context, name string) (*float64, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be a number", domain.ErrValidation, name)
	}
	return &v, nil
}

// optInt returns 0 for an absent parameter; pagination normalizes it.
func optInt(c *gin.Context, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", domain.ErrValidation, name)
	}
	return v, nil
}
