// Package analytics computes the admin sales report. Every report is
// recomputed from the order history on read.
package analytics

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/thangnvgch211384/fshoemate/internal/domain/order"
	"github.com/thangnvgch211384/fshoemate/internal/domain/user"
)

const (
	recentLimit   = 5
	topLimit      = 5
	spenderWindow = 7 * 24 * time.Hour
)

// Source lists the full order history.
type Source interface {
	ListAll(ctx context.Context) ([]order.Order, error)
}

// Catalog resolves current product names.
type Catalog interface {
	ProductNames(ctx context.Context, productIDs []string) (map[string]string, error)
}

// OrderSummary is a row of the recent orders list.
type OrderSummary struct {
	ID            string
	Customer      string
	Total         decimal.Decimal
	Status        order.Status
	PaymentStatus order.PaymentStatus
	CreatedAt     time.Time
}

// ProductSales is a row of the best sellers list.
type ProductSales struct {
	ProductID string
	Name      string
	Quantity  int
	Revenue   decimal.Decimal
}

// Spender is a row of the weekly top spenders list.
type Spender struct {
	// CustomerID is the user id, or the contact email for guests.
	CustomerID string
	Name       string
	Email      string
	Guest      bool
	Orders     int
	Total      decimal.Decimal
}

// Report is the aggregate over all non-cancelled orders.
type Report struct {
	TotalRevenue      decimal.Decimal
	TotalOrders       int
	TotalCustomers    int
	AverageOrderValue decimal.Decimal
	RecentOrders      []OrderSummary
	TopProducts       []ProductSales
	TopSpenders       []Spender
}

// Compute builds the report from orders as of now. Product and customer
// names are taken from the order snapshots.
func Compute(orders []order.Order, now time.Time) Report {
	r := Report{
		TotalRevenue:      decimal.Zero,
		AverageOrderValue: decimal.Zero,
		RecentOrders:      []OrderSummary{},
		TopProducts:       []ProductSales{},
		TopSpenders:       []Spender{},
	}

	live := make([]order.Order, 0, len(orders))
	for _, o := range orders {
		if o.Status != order.StatusCancelled {
			live = append(live, o)
		}
	}

	gross := decimal.Zero
	customers := make(map[string]struct{})
	products := make(map[string]*ProductSales)
	spenders := make(map[string]*Spender)
	since := now.Add(-spenderWindow)

	for _, o := range live {
		gross = gross.Add(o.Totals.Total)
		if o.PaymentStatus == order.PaymentPaid {
			r.TotalRevenue = r.TotalRevenue.Add(o.Totals.Total)
		}
		key := customerKey(o)
		if key != "" {
			customers[key] = struct{}{}
		}

		for _, li := range o.Items {
			p, ok := products[li.Snapshot.ProductID]
			if !ok {
				p = &ProductSales{ProductID: li.Snapshot.ProductID, Name: li.Snapshot.Name, Revenue: decimal.Zero}
				products[li.Snapshot.ProductID] = p
			}
			p.Quantity += li.Quantity
			p.Revenue = p.Revenue.Add(li.Amount())
		}

		if key != "" && !o.CreatedAt.Before(since) {
			s, ok := spenders[key]
			if !ok {
				s = &Spender{CustomerID: key, Guest: o.IsGuest(), Total: decimal.Zero}
				if o.Contact != nil {
					s.Name = o.Contact.Name
					s.Email = o.Contact.Email
				}
				spenders[key] = s
			}
			s.Orders++
			s.Total = s.Total.Add(o.Totals.Total)
		}
	}

	r.TotalOrders = len(live)
	r.TotalCustomers = len(customers)
	if r.TotalOrders > 0 {
		r.AverageOrderValue = gross.Div(decimal.NewFromInt(int64(r.TotalOrders))).Round(0)
	}

	sort.SliceStable(live, func(i, j int) bool { return live[i].CreatedAt.After(live[j].CreatedAt) })
	for i := 0; i < len(live) && i < recentLimit; i++ {
		o := live[i]
		r.RecentOrders = append(r.RecentOrders, OrderSummary{
			ID:            o.ID,
			Customer:      customerKey(o),
			Total:         o.Totals.Total,
			Status:        o.Status,
			PaymentStatus: o.PaymentStatus,
			CreatedAt:     o.CreatedAt,
		})
	}

	for _, p := range products {
		r.TopProducts = append(r.TopProducts, *p)
	}
	sort.Slice(r.TopProducts, func(i, j int) bool {
		a, b := r.TopProducts[i], r.TopProducts[j]
		if a.Quantity != b.Quantity {
			return a.Quantity > b.Quantity
		}
		return a.ProductID < b.ProductID
	})
	if len(r.TopProducts) > topLimit {
		r.TopProducts = r.TopProducts[:topLimit]
	}

	for _, s := range spenders {
		r.TopSpenders = append(r.TopSpenders, *s)
	}
	sort.Slice(r.TopSpenders, func(i, j int) bool {
		a, b := r.TopSpenders[i], r.TopSpenders[j]
		if c := a.Total.Cmp(b.Total); c != 0 {
			return c > 0
		}
		return a.CustomerID < b.CustomerID
	})
	if len(r.TopSpenders) > topLimit {
		r.TopSpenders = r.TopSpenders[:topLimit]
	}

	return r
}

func customerKey(o order.Order) string {
	if !o.IsGuest() {
		return o.UserID
	}
	if o.Contact == nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(o.Contact.Email))
}

// Aggregator serves reports from live data.
type Aggregator struct {
	orders  Source
	catalog Catalog
	users   user.Store
	now     func() time.Time
}

// NewAggregator creates an Aggregator. catalog and users may be nil, in which
// case snapshot names are reported as is.
func NewAggregator(orders Source, catalog Catalog, users user.Store) *Aggregator {
	return &Aggregator{orders: orders, catalog: catalog, users: users, now: time.Now}
}

// Report computes the current report and enriches it with catalog product
// names and user profiles.
func (a *Aggregator) Report(ctx context.Context) (*Report, error) {
	orders, err := a.orders.ListAll(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	r := Compute(orders, a.now())
	lg := zctx.From(ctx)

	if a.catalog != nil && len(r.TopProducts) > 0 {
		ids := make([]string, len(r.TopProducts))
		for i, p := range r.TopProducts {
			ids[i] = p.ProductID
		}
		names, err := a.catalog.ProductNames(ctx, ids)
		if err != nil {
			lg.Warn("Resolve product names", zap.Error(err))
		} else {
			for i := range r.TopProducts {
				if name, ok := names[r.TopProducts[i].ProductID]; ok {
					r.TopProducts[i].Name = name
				}
			}
		}
	}

	if a.users != nil {
		for i := range r.TopSpenders {
			s := &r.TopSpenders[i]
			if s.Guest {
				continue
			}
			u, err := a.users.Get(ctx, s.CustomerID)
			if err != nil {
				lg.Warn("Resolve spender profile", zap.String("user_id", s.CustomerID), zap.Error(err))
				continue
			}
			s.Name = u.Name
			s.Email = u.Email
		}
	}

	return &r, nil
}
