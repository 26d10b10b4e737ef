package order

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/thangnvgch211384/fshoemate/internal/domain/cart"
	"github.com/thangnvgch211384/fshoemate/internal/domain/inventory"
	"github.com/thangnvgch211384/fshoemate/internal/domain/payment"
	"github.com/thangnvgch211384/fshoemate/internal/domain/promotion"
	"github.com/thangnvgch211384/fshoemate/internal/domain/user"
)

// --- Mock implementations ---

type memOrders struct {
	mu        sync.Mutex
	byID      map[string]*Order
	createErr error
	updateErr error
	// conflicts makes the next N updates fail with ErrConflict.
	conflicts int
	updates   int
	// afterWrite runs after every stored Create or Update.
	afterWrite func()
}

func newMemOrders() *memOrders {
	return &memOrders{byID: make(map[string]*Order)}
}

func (m *memOrders) Create(_ context.Context, o *Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	o.Version = 1
	m.byID[o.ID] = o.Clone()
	m.wrote()
	return nil
}

func (m *memOrders) wrote() {
	if m.afterWrite != nil {
		m.afterWrite()
	}
}

func (m *memOrders) Get(_ context.Context, id string) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return o.Clone(), nil
}

func (m *memOrders) GetByPaymentCode(_ context.Context, code int64) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.byID {
		if o.PaymentCode() == code {
			return o.Clone(), nil
		}
	}
	return nil, ErrNotFound
}

func (m *memOrders) Update(_ context.Context, o *Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates++
	if m.updateErr != nil {
		return m.updateErr
	}
	if m.conflicts > 0 {
		m.conflicts--
		return ErrConflict
	}
	cur, ok := m.byID[o.ID]
	if !ok {
		return ErrNotFound
	}
	if cur.Version != o.Version {
		return ErrConflict
	}
	o.Version++
	m.byID[o.ID] = o.Clone()
	m.wrote()
	return nil
}

func (m *memOrders) ListByUser(_ context.Context, userID string) ([]Order, error) {
	return m.list(func(o *Order) bool { return o.UserID == userID }), nil
}

func (m *memOrders) ListByEmail(_ context.Context, email string) ([]Order, error) {
	return m.list(func(o *Order) bool {
		return o.IsGuest() && o.Contact != nil && o.Contact.Email == email
	}), nil
}

func (m *memOrders) list(match func(o *Order) bool) []Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Order
	for _, o := range m.byID {
		if match(o) {
			out = append(out, *o.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// put stores an order directly, bypassing checkout.
func (m *memOrders) put(o *Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o.Version == 0 {
		o.Version = 1
	}
	m.byID[o.ID] = o.Clone()
}

type memInventory struct {
	mu           sync.Mutex
	variants     map[string]inventory.Variant
	decrementErr error
	incrementErr error
	// honorCtx fails mutations on a done context, as a database driver does.
	honorCtx bool
}

func newMemInventory(vs ...inventory.Variant) *memInventory {
	m := &memInventory{variants: make(map[string]inventory.Variant, len(vs))}
	for _, v := range vs {
		m.variants[v.ID] = v
	}
	return m
}

func (m *memInventory) GetVariants(_ context.Context, ids []string) ([]inventory.Variant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []inventory.Variant
	for _, id := range ids {
		if v, ok := m.variants[id]; ok {
			out = append(out, v)
		}
	}
	return out, nil
}

func (m *memInventory) Decrement(ctx context.Context, id string, qty int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.honorCtx && ctx.Err() != nil {
		return ctx.Err()
	}
	if m.decrementErr != nil {
		return m.decrementErr
	}
	v, ok := m.variants[id]
	if !ok {
		return inventory.ErrNotFound
	}
	if v.Stock < qty {
		return inventory.ErrInsufficientStock
	}
	v.Stock -= qty
	m.variants[id] = v
	return nil
}

func (m *memInventory) Increment(ctx context.Context, id string, qty int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.honorCtx && ctx.Err() != nil {
		return ctx.Err()
	}
	if m.incrementErr != nil {
		return m.incrementErr
	}
	v, ok := m.variants[id]
	if !ok {
		return inventory.ErrNotFound
	}
	v.Stock += qty
	m.variants[id] = v
	return nil
}

func (m *memInventory) ProductNames(_ context.Context, _ []string) (map[string]string, error) {
	return map[string]string{}, nil
}

func (m *memInventory) stock(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.variants[id].Stock
}

type memCarts struct {
	items    map[string][]cart.Item
	cleared  []string
	clearErr error
}

func (m *memCarts) Items(_ context.Context, userID string) ([]cart.Item, error) {
	return m.items[userID], nil
}

func (m *memCarts) Clear(_ context.Context, userID string) error {
	if m.clearErr != nil {
		return m.clearErr
	}
	m.cleared = append(m.cleared, userID)
	delete(m.items, userID)
	return nil
}

type memUsers map[string]*user.User

func (m memUsers) Get(_ context.Context, id string) (*user.User, error) {
	u, ok := m[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	return u, nil
}

type mockPromotions struct {
	discount *promotion.Discount
	err      error
}

func (m *mockPromotions) Validate(_ context.Context, _ string, _ []promotion.Item) (*promotion.Discount, error) {
	return m.discount, m.err
}

type mockUsage struct {
	mu    sync.Mutex
	codes []string
	err   error
}

func (m *mockUsage) IncrementUses(_ context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes = append(m.codes, code)
	return m.err
}

type mockGateway struct {
	mu        sync.Mutex
	session   *payment.Session
	createErr error
	cancelErr error
	requests  []payment.SessionRequest
	cancelled []int64
}

func (m *mockGateway) CreateSession(_ context.Context, req payment.SessionRequest) (*payment.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if m.createErr != nil {
		return nil, m.createErr
	}
	return m.session, nil
}

func (m *mockGateway) CancelSession(_ context.Context, code int64, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelled = append(m.cancelled, code)
	return m.cancelErr
}

type earned struct {
	UserID  string
	OrderID string
	Revenue decimal.Decimal
	Reason  string
}

type mockLoyalty struct {
	mu     sync.Mutex
	earned []earned
	err    error
}

func (m *mockLoyalty) EarnPoints(_ context.Context, userID, orderID string, revenue decimal.Decimal, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.earned = append(m.earned, earned{UserID: userID, OrderID: orderID, Revenue: revenue, Reason: reason})
	return m.err
}

type sent struct {
	Kind    string
	OrderID string
	To      Customer
}

type mockNotifier struct {
	mu   sync.Mutex
	sent []sent
	err  error
}

func (m *mockNotifier) record(kind string, o *Order, to Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sent{Kind: kind, OrderID: o.ID, To: to})
	return m.err
}

func (m *mockNotifier) SendOrderConfirmation(_ context.Context, o *Order, to Customer) error {
	return m.record("confirmation", o, to)
}

func (m *mockNotifier) SendOrderReceived(_ context.Context, o *Order, to Customer) error {
	return m.record("received", o, to)
}

func (m *mockNotifier) SendOrderCancellation(_ context.Context, o *Order, to Customer) error {
	return m.record("cancellation", o, to)
}

func (m *mockNotifier) kinds() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.sent))
	for i, s := range m.sent {
		out[i] = s.Kind
	}
	return out
}

type mockVerifier bool

func (m mockVerifier) VerifyCallback(payment.Callback) bool { return bool(m) }

// --- Helpers ---

var errBoom = errors.New("boom")

type fixture struct {
	orders    *memOrders
	inventory *memInventory
	carts     *memCarts
	users     memUsers
	promos    *mockPromotions
	usage     *mockUsage
	gateway   *mockGateway
	loyalty   *mockLoyalty
	notifier  *mockNotifier
	verifier  payment.Verifier
	svc       *Service
}

func newVariant(id string, price int64, stock int) inventory.Variant {
	return inventory.Variant{
		ID:        id,
		ProductID: "prod-" + id,
		Name:      "Runner " + id,
		Brand:     "Fshoe",
		Size:      "42",
		Color:     "black",
		Image:     id + ".jpg",
		Price:     decimal.NewFromInt(price),
		Stock:     stock,
	}
}

func newFixture(t *testing.T, variants ...inventory.Variant) *fixture {
	t.Helper()

	f := &fixture{
		orders:    newMemOrders(),
		inventory: newMemInventory(variants...),
		carts:     &memCarts{items: map[string][]cart.Item{}},
		users: memUsers{
			"u1": {ID: "u1", Name: "Lan", Email: "lan@example.com", Phone: "0901", Address: "1 Le Loi"},
		},
		promos:   &mockPromotions{},
		usage:    &mockUsage{},
		gateway:  &mockGateway{session: &payment.Session{CheckoutURL: "https://pay.example/s/1", Code: 4242}},
		loyalty:  &mockLoyalty{},
		notifier: &mockNotifier{},
	}
	f.svc = f.build(t)
	return f
}

func (f *fixture) build(t *testing.T) *Service {
	t.Helper()

	svc, err := NewService(Deps{
		Orders:     f.orders,
		Inventory:  f.inventory,
		Carts:      f.carts,
		Users:      f.users,
		Promotions: f.promos,
		Usage:      f.usage,
		Gateway:    f.gateway,
		Loyalty:    f.loyalty,
		Notifier:   f.notifier,
		Verifier:   f.verifier,
	}, Config{
		ShippingFees: map[string]decimal.Decimal{
			"standard": decimal.NewFromInt(30000),
			"express":  decimal.NewFromInt(50000),
		},
		ReturnURL: "https://shop.example/orders/{order_id}/success",
		CancelURL: "https://shop.example/orders/{order_id}/cancel",
	})
	require.NoError(t, err)

	seq := 0
	svc.newID = func() string {
		seq++
		return []string{"ord-aaaaaa", "ord-bbbbbb", "ord-cccccc"}[(seq-1)%3]
	}
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time {
		start = start.Add(time.Minute)
		return start
	}
	return svc
}

// placedOrder stores a committed order for cancellation and webhook tests.
func (f *fixture) placedOrder(id, userID string, method PaymentMethod, code int64) *Order {
	o := &Order{
		ID:     id,
		UserID: userID,
		Items: []LineItem{
			{VariantID: "A", Quantity: 2, Snapshot: Snapshot{Name: "Runner A", Price: decimal.NewFromInt(100000)}},
			{VariantID: "B", Quantity: 1, Snapshot: Snapshot{Name: "Runner B", Price: decimal.NewFromInt(50000)}},
		},
		PaymentMethod: method,
		PaymentStatus: PaymentPending,
		Status:        StatusPending,
		CreatedAt:     time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	o.Totals = ComputeTotals(o.Items, decimal.Zero, decimal.NewFromInt(30000))
	if userID == "" {
		o.Contact = &Customer{Name: "Guest", Email: "guest@example.com", Phone: "0902", Address: "2 Hai Ba Trung"}
	}
	if code != 0 {
		o.Gateway = &GatewaySession{CheckoutURL: "https://pay.example/s/x", Code: code}
	}
	f.orders.put(o)
	return o
}
