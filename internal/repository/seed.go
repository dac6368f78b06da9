package repository

import (
	"time"

	"storefront/internal/domain"
)

var seedEpoch = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// SampleProducts is the catalog snapshot served while the primary store is down,
// and the seed for an empty primary catalog. Later entries are newer.
func SampleProducts() []domain.Product {
	ps := []domain.Product{
		{ID: "p1", Name: "Noise-Cancelling Headphones", Description: "Wireless over-ear headphones with active noise cancellation and 30-hour battery life.", Price: 199.99, Category: "Electronics", Brand: "SoundWave", Stock: 32, Image: "https://images.unsplash.com/photo-1515202913167-d9a698095ebf?auto=format&fit=crop&w=900&q=80", Featured: true},
		{ID: "p2", Name: "Smart Fitness Watch", Description: "Track your workouts, heart rate, and sleep with a bright AMOLED display.", Price: 149.5, Category: "Electronics", Brand: "Pulse", Stock: 50, Image: "https://images.unsplash.com/photo-1523275335684-37898b6baf30?auto=format&fit=crop&w=900&q=80", Featured: true},
		{ID: "p3", Name: "Minimalist Sofa", Description: "Modern 3-seater fabric sofa with oak legs and stain-resistant coating.", Price: 899.0, Category: "Home & Garden", Brand: "Nordic", Stock: 12, Image: "https://images.unsplash.com/photo-1493663284031-b7e3aefcae8e?auto=format&fit=crop&w=900&q=80"},
		{ID: "p4", Name: "Ergonomic Office Chair", Description: "Breathable mesh back, adjustable lumbar support, and smooth-rolling wheels.", Price: 259.99, Category: "Home & Garden", Brand: "FlowSeat", Stock: 20, Image: "https://images.unsplash.com/photo-1524758631624-e2822e304c36?auto=format&fit=crop&w=900&q=80", Featured: true},
		{ID: "p5", Name: "Trail Running Shoes", Description: "Lightweight cushioning with aggressive outsole for all terrains.", Price: 129.0, Category: "Sports", Brand: "AeroRun", Stock: 40, Image: "https://placehold.co/900x600?text=Trail+Running+Shoes"},
		{ID: "p6", Name: "Yoga Essentials Kit", Description: "6mm mat, two cork blocks, strap, and microfiber towel for daily practice.", Price: 79.99, Category: "Sports", Brand: "ZenForm", Stock: 60, Image: "https://placehold.co/900x600?text=Yoga+Essentials+Kit"},
		{ID: "p7", Name: "Classic Denim Jacket", Description: "Timeless medium-wash denim with soft cotton lining for year-round wear.", Price: 89.99, Category: "Clothing", Brand: "Everline", Stock: 70, Image: "https://images.unsplash.com/photo-1489987707025-afc232f7ea0f?auto=format&fit=crop&w=900&q=80", Featured: true},
		{ID: "p8", Name: "Organic Cotton Hoodie", Description: "Super-soft fleece hoodie with relaxed fit and kangaroo pocket.", Price: 64.0, Category: "Clothing", Brand: "PureWear", Stock: 55, Image: "https://images.unsplash.com/photo-1521572163474-6864f9cf17ab?auto=format&fit=crop&w=900&q=80"},
		{ID: "p9", Name: "Hardcover Notebook Set", Description: "Set of 3 dotted notebooks with lay-flat binding and premium paper.", Price: 28.99, Category: "Other", Brand: "Scripted", Stock: 90, Image: "https://images.unsplash.com/photo-1524995997946-a1c2e315a42f?auto=format&fit=crop&w=900&q=80"},
		{ID: "p10", Name: "Stainless Steel Water Bottle", Description: "Insulated 24oz bottle that keeps drinks cold for 24 hours and hot for 12.", Price: 32.5, Category: "Sports", Brand: "Hydra", Stock: 120, Image: "https://placehold.co/900x600?text=Stainless+Steel+Water+Bottle", Featured: true},
	}
	for i := range ps {
		ps[i].CreatedAt = seedEpoch.Add(time.Duration(i) * time.Hour)
	}
	return ps
}
