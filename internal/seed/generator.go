package seed

import (
	"fmt"
	"math"
	"math/rand"
	"time"
)

type Store struct {
	ID   int
	Name string
	City string
}

type Customer struct {
	ID    int
	Name  string
	Email string
	City  string
}

type Product struct {
	ID       int
	Name     string
	Category string
	Price    float64
}

type Order struct {
	ID         int
	CustomerID int
	StoreID    int
	OrderDate  time.Time
	Status     string
}

type OrderItem struct {
	ID        int
	OrderID   int
	ProductID int
	Quantity  int
	UnitPrice float64
}

// Dataset is a fully generated retail dataset, ready to insert in
// referential order.
type Dataset struct {
	Stores     []Store
	Customers  []Customer
	Products   []Product
	Orders     []Order
	OrderItems []OrderItem
}

var (
	cities = []string{
		"Portland", "Austin", "Denver", "Chicago", "Seattle",
		"Boston", "Atlanta", "Phoenix", "Madison", "Raleigh",
	}
	firstNames = []string{
		"Ava", "Ben", "Clara", "Diego", "Elena", "Felix", "Grace",
		"Hugo", "Iris", "Jonas", "Kira", "Liam", "Mona", "Noah",
		"Olive", "Pavel", "Quinn", "Rosa", "Sam", "Tessa",
	}
	lastNames = []string{
		"Abbott", "Becker", "Chen", "Dawson", "Eriksen", "Fischer",
		"Garcia", "Hale", "Ito", "Jensen", "Keller", "Lopez",
		"Moreau", "Novak", "Olsen", "Patel", "Reyes", "Silva",
	}
	categories = []string{
		"grocery", "electronics", "apparel", "home", "outdoors", "toys",
	}
	productAdjectives = []string{
		"Classic", "Compact", "Deluxe", "Eco", "Premium", "Basic", "Travel", "Pro",
	}
	productNouns = []string{
		"Kettle", "Backpack", "Lamp", "Sneakers", "Blender", "Notebook",
		"Headphones", "Jacket", "Tent", "Mug", "Charger", "Puzzle",
	}
)

// BuildDataset generates the dataset for cfg. Output is deterministic for a
// given Config, including the Seed.
func BuildDataset(cfg Config) Dataset {
	rnd := rand.New(rand.NewSource(cfg.Seed))

	dataset := Dataset{
		Stores:    make([]Store, 0, cfg.Stores),
		Customers: make([]Customer, 0, cfg.Customers),
		Products:  make([]Product, 0, cfg.Products),
		Orders:    make([]Order, 0, cfg.Orders),
	}

	for i := 0; i < cfg.Stores; i++ {
		city := pickOne(rnd, cities)
		dataset.Stores = append(dataset.Stores, Store{
			ID:   i + 1,
			Name: fmt.Sprintf("%s Store #%d", city, i+1),
			City: city,
		})
	}

	for i := 0; i < cfg.Customers; i++ {
		first := pickOne(rnd, firstNames)
		last := pickOne(rnd, lastNames)
		dataset.Customers = append(dataset.Customers, Customer{
			ID:    i + 1,
			Name:  first + " " + last,
			Email: fmt.Sprintf("%s.%s.%d@example.com", lower(first), lower(last), i+1),
			City:  pickOne(rnd, cities),
		})
	}

	for i := 0; i < cfg.Products; i++ {
		dataset.Products = append(dataset.Products, Product{
			ID:       i + 1,
			Name:     fmt.Sprintf("%s %s", pickOne(rnd, productAdjectives), pickOne(rnd, productNouns)),
			Category: pickOne(rnd, categories),
			Price:    round2(3 + rnd.Float64()*297),
		})
	}

	itemID := 0
	startDate := cfg.StartDate.UTC().Truncate(24 * time.Hour)
	for i := 0; i < cfg.Orders; i++ {
		order := Order{
			ID:         i + 1,
			CustomerID: rnd.Intn(cfg.Customers) + 1,
			StoreID:    rnd.Intn(cfg.Stores) + 1,
			OrderDate:  startDate.AddDate(0, 0, rnd.Intn(cfg.Days)),
			Status:     pickStatus(rnd),
		}
		dataset.Orders = append(dataset.Orders, order)

		items := rnd.Intn(cfg.MaxItemsPerOrder) + 1
		for j := 0; j < items; j++ {
			product := dataset.Products[rnd.Intn(cfg.Products)]
			itemID++
			dataset.OrderItems = append(dataset.OrderItems, OrderItem{
				ID:        itemID,
				OrderID:   order.ID,
				ProductID: product.ID,
				Quantity:  rnd.Intn(4) + 1,
				UnitPrice: product.Price,
			})
		}
	}

	return dataset
}

func pickStatus(rnd *rand.Rand) string {
	p := rnd.Intn(100)
	switch {
	case p < 60:
		return "delivered"
	case p < 80:
		return "shipped"
	case p < 93:
		return "pending"
	default:
		return "cancelled"
	}
}

func pickOne(rnd *rand.Rand, values []string) string {
	return values[rnd.Intn(len(values))]
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}

func lower(s string) string {
	out := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}
