package domain

import (
	"strings"
	"time"
)

// Role of an identity.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Identity is the canonical account record shared by every credential backend.
type Identity struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	Address      string    `json:"address,omitempty"`
	Phone        string    `json:"phone,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// IsAdmin reports whether the identity carries the admin role.
func (i Identity) IsAdmin() bool { return i.Role == RoleAdmin }

// Product is a catalog entry.
type Product struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       float64   `json:"price"`
	Image       string    `json:"image"`
	Category    string    `json:"category"`
	Brand       string    `json:"brand,omitempty"`
	Stock       int       `json:"stock"`
	Featured    bool      `json:"featured"`
	Rating      float64   `json:"rating"`
	NumReviews  int       `json:"numReviews"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ProductPatch carries a partial product update. Nil fields are left untouched.
type ProductPatch struct {
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	Price       *float64 `json:"price"`
	Image       *string  `json:"image"`
	Category    *string  `json:"category"`
	Brand       *string  `json:"brand"`
	Stock       *int     `json:"stock"`
	Featured    *bool    `json:"featured"`
	Rating      *float64 `json:"rating"`
	NumReviews  *int     `json:"numReviews"`
}

// Apply returns a copy of p with the patch applied.
func (pp ProductPatch) Apply(p Product) Product {
	if pp.Name != nil {
		p.Name = *pp.Name
	}
	if pp.Description != nil {
		p.Description = *pp.Description
	}
	if pp.Price != nil {
		p.Price = *pp.Price
	}
	if pp.Image != nil {
		p.Image = *pp.Image
	}
	if pp.Category != nil {
		p.Category = *pp.Category
	}
	if pp.Brand != nil {
		p.Brand = *pp.Brand
	}
	if pp.Stock != nil {
		p.Stock = *pp.Stock
	}
	if pp.Featured != nil {
		p.Featured = *pp.Featured
	}
	if pp.Rating != nil {
		p.Rating = *pp.Rating
	}
	if pp.NumReviews != nil {
		p.NumReviews = *pp.NumReviews
	}
	return p
}

// OrderItem is a frozen copy of a cart line taken when the order was placed.
type OrderItem struct {
	ProductID string  `json:"product"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Image     string  `json:"image"`
	Quantity  int     `json:"quantity"`
}

// ShippingAddress of an order.
type ShippingAddress struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zipCode"`
	Country string `json:"country"`
}

// Missing lists the names of empty required fields.
func (a ShippingAddress) Missing() []string {
	var out []string
	for _, f := range []struct{ name, v string }{
		{"street", a.Street}, {"city", a.City}, {"state", a.State}, {"zipCode", a.ZipCode}, {"country", a.Country},
	} {
		if strings.TrimSpace(f.v) == "" {
			out = append(out, f.name)
		}
	}
	return out
}

// PaymentResult records the gateway's confirmation of a payment.
type PaymentResult struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	UpdateTime   string `json:"update_time"`
	EmailAddress string `json:"email_address"`
}

// OrderOwner is the subset of the owning identity exposed with an order.
type OrderOwner struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Order is an immutable snapshot of a completed checkout plus its fulfilment flags.
type Order struct {
	ID              string          `json:"id"`
	UserID          string          `json:"userId"`
	User            *OrderOwner     `json:"user,omitempty"`
	Items           []OrderItem     `json:"orderItems"`
	ShippingAddress ShippingAddress `json:"shippingAddress"`
	PaymentMethod   string          `json:"paymentMethod"`
	ItemsPrice      float64         `json:"itemsPrice"`
	TaxPrice        float64         `json:"taxPrice"`
	ShippingPrice   float64         `json:"shippingPrice"`
	TotalPrice      float64         `json:"totalPrice"`
	IsPaid          bool            `json:"isPaid"`
	PaidAt          *time.Time      `json:"paidAt,omitempty"`
	PaymentResult   *PaymentResult  `json:"paymentResult,omitempty"`
	IsDelivered     bool            `json:"isDelivered"`
	DeliveredAt     *time.Time      `json:"deliveredAt,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
}

// StockLine is a product/quantity pair used for stock checks and reservations.
type StockLine struct {
	ProductID string
	Quantity  int
}
