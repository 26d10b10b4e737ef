package order

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/thangnvgch211384/fshoemate/internal/domain/cart"
	"github.com/thangnvgch211384/fshoemate/internal/domain/inventory"
	"github.com/thangnvgch211384/fshoemate/internal/domain/loyalty"
	"github.com/thangnvgch211384/fshoemate/internal/domain/payment"
	"github.com/thangnvgch211384/fshoemate/internal/domain/promotion"
)

// CheckoutRequest holds the buyer's choices for a checkout.
type CheckoutRequest struct {
	// Items is read only by guest checkout; cart checkout reads the cart.
	Items []cart.Item
	// Contact is required for guests and optional delivery details otherwise.
	Contact        *Customer
	PaymentMethod  PaymentMethod
	DiscountCode   string
	ShippingMethod string
}

// CreateFromCart places an order for ownerID from the contents of their cart.
func (s *Service) CreateFromCart(ctx context.Context, ownerID string, req CheckoutRequest) (*Order, error) {
	if ownerID == "" {
		return nil, errors.New("owner id required")
	}
	items, err := s.carts.Items(ctx, ownerID)
	if err != nil {
		return nil, errors.Wrap(err, "read cart")
	}
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}
	return s.checkout(ctx, ownerID, items, req)
}

// CreateGuest places an order without an owning user.
func (s *Service) CreateGuest(ctx context.Context, req CheckoutRequest) (*Order, error) {
	if len(req.Items) == 0 {
		return nil, ErrNoItems
	}
	if req.Contact == nil ||
		strings.TrimSpace(req.Contact.Name) == "" ||
		strings.TrimSpace(req.Contact.Email) == "" {
		return nil, ErrInvalidContact
	}
	return s.checkout(ctx, "", req.Items, req)
}

func (s *Service) checkout(ctx context.Context, ownerID string, items []cart.Item, req CheckoutRequest) (*Order, error) {
	if !req.PaymentMethod.Valid() {
		return nil, ErrInvalidPaymentMethod
	}
	shippingMethod := req.ShippingMethod
	if shippingMethod == "" {
		shippingMethod = s.cfg.DefaultShippingMethod
	}
	shippingFee, ok := s.cfg.ShippingFees[shippingMethod]
	if !ok {
		return nil, errors.Wrap(ErrInvalidShippingMethod, shippingMethod)
	}

	merged, err := mergeItems(items)
	if err != nil {
		return nil, err
	}

	lines, err := s.freeze(ctx, merged)
	if err != nil {
		return nil, err
	}

	discount := decimal.Zero
	if code := strings.TrimSpace(req.DiscountCode); code != "" {
		d, err := s.promotions.Validate(ctx, code, promotionItems(lines))
		if err != nil {
			if promotion.IsRejection(err) {
				return nil, errors.Wrap(ErrInvalidPromotion, err.Error())
			}
			return nil, errors.Wrap(err, "validate promotion")
		}
		discount = d.Amount
		req.DiscountCode = d.Code
	}

	now := s.now()
	o := &Order{
		ID:             s.newID(),
		UserID:         ownerID,
		Items:          lines,
		Totals:         ComputeTotals(lines, discount, shippingFee),
		PaymentMethod:  req.PaymentMethod,
		PaymentStatus:  PaymentPending,
		Status:         StatusPending,
		DiscountCode:   req.DiscountCode,
		ShippingMethod: shippingMethod,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if req.Contact != nil {
		c := *req.Contact
		c.Email = strings.TrimSpace(c.Email)
		o.Contact = &c
	}

	// Commit point: nothing below may abort the order. The remaining steps
	// run to completion even if the client goes away.
	if err := s.orders.Create(ctx, o); err != nil {
		return nil, errors.Wrap(err, "create order")
	}
	ctx = zctx.With(context.WithoutCancel(ctx), zap.String("order_id", o.ID))
	s.created.Add(ctx, 1, methodAttr(o.PaymentMethod))

	lg := zctx.From(ctx)
	lg.Info("Order created",
		zap.String("payment_method", string(o.PaymentMethod)),
		zap.String("total", o.Totals.Total.String()),
		zap.Bool("guest", o.IsGuest()),
	)

	if o.DiscountCode != "" {
		if err := s.usage.IncrementUses(ctx, o.DiscountCode); err != nil {
			lg.Warn("Increment promotion usage", zap.String("code", o.DiscountCode), zap.Error(err))
		}
	}

	s.decrementStock(ctx, o)

	if !o.IsGuest() {
		if err := s.carts.Clear(ctx, ownerID); err != nil {
			lg.Warn("Clear cart", zap.Error(err))
		}
	}

	if o.PaymentMethod == PaymentGateway {
		if err := s.openSession(ctx, o); err != nil {
			return nil, err
		}
	}

	if o.PaymentMethod == PaymentCOD {
		s.earnPoints(ctx, o, loyalty.ReasonOrderPlaced)
	}

	if o.PaymentMethod == PaymentCOD || o.PaymentStatus == PaymentPaid {
		s.notify(ctx, o, "order_confirmation", s.notifier.SendOrderConfirmation)
	} else {
		s.notify(ctx, o, "order_received", s.notifier.SendOrderReceived)
	}

	return o, nil
}

// mergeItems folds duplicate variants and rejects non-positive quantities.
func mergeItems(items []cart.Item) ([]cart.Item, error) {
	out := make([]cart.Item, 0, len(items))
	index := make(map[string]int, len(items))
	for _, it := range items {
		if it.Quantity <= 0 {
			return nil, errors.Wrapf(ErrInvalidQuantity, "variant %s", it.VariantID)
		}
		if i, ok := index[it.VariantID]; ok {
			out[i].Quantity += it.Quantity
			continue
		}
		index[it.VariantID] = len(out)
		out = append(out, it)
	}
	return out, nil
}

// freeze loads every variant in one batch, checks availability, and copies
// the catalog facts into immutable line snapshots.
func (s *Service) freeze(ctx context.Context, items []cart.Item) ([]LineItem, error) {
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.VariantID
	}
	variants, err := s.inventory.GetVariants(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get variants")
	}
	byID := make(map[string]inventory.Variant, len(variants))
	for _, v := range variants {
		byID[v.ID] = v
	}

	lines := make([]LineItem, len(items))
	for i, it := range items {
		v, ok := byID[it.VariantID]
		if !ok {
			return nil, &VariantError{Kind: ErrVariantNotFound, VariantID: it.VariantID, Requested: it.Quantity}
		}
		if v.Stock < it.Quantity {
			return nil, &VariantError{
				Kind:      ErrInsufficientStock,
				VariantID: it.VariantID,
				Available: v.Stock,
				Requested: it.Quantity,
			}
		}
		lines[i] = LineItem{
			VariantID: v.ID,
			Quantity:  it.Quantity,
			Snapshot: Snapshot{
				ProductID: v.ProductID,
				Name:      v.Name,
				Brand:     v.Brand,
				Size:      v.Size,
				Color:     v.Color,
				Image:     v.Image,
				Price:     v.Price,
			},
		}
	}
	return lines, nil
}

func promotionItems(lines []LineItem) []promotion.Item {
	out := make([]promotion.Item, len(lines))
	for i, li := range lines {
		out[i] = promotion.Item{
			VariantID: li.VariantID,
			Price:     li.Snapshot.Price,
			Quantity:  li.Quantity,
		}
	}
	return out
}

// decrementStock removes each line's quantity from inventory after commit.
// Every line is attempted; failures are logged and never undo the order.
func (s *Service) decrementStock(ctx context.Context, o *Order) {
	lg := zctx.From(ctx)

	var g errgroup.Group
	g.SetLimit(s.cfg.StockConcurrency)
	for _, li := range o.Items {
		g.Go(func() error {
			if err := s.inventory.Decrement(ctx, li.VariantID, li.Quantity); err != nil {
				lg.Error("Decrement stock after commit",
					zap.String("variant_id", li.VariantID),
					zap.Int("quantity", li.Quantity),
					zap.Bool("oversold", errors.Is(err, inventory.ErrInsufficientStock)),
					zap.Error(err),
				)
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		lg.Warn("Inventory does not fully reflect order")
	}
}

// openSession requests a hosted payment session and stores the link on the
// order. Only a refusal by the gateway itself is surfaced to the caller.
func (s *Service) openSession(ctx context.Context, o *Order) error {
	lg := zctx.From(ctx)

	buyer, err := s.recipient(ctx, o)
	if err != nil {
		lg.Warn("Resolve buyer for payment session", zap.Error(err))
	}

	items := make([]payment.Item, len(o.Items))
	for i, li := range o.Items {
		items[i] = payment.Item{
			Name:     li.Snapshot.Name,
			Quantity: li.Quantity,
			Price:    li.Snapshot.Price.IntPart(),
		}
	}

	sess, err := s.gateway.CreateSession(ctx, payment.SessionRequest{
		OrderID: o.ID,
		Amount:  o.Totals.Total.IntPart(),
		Items:   items,
		Buyer: payment.Buyer{
			Name:    buyer.Name,
			Email:   buyer.Email,
			Phone:   buyer.Phone,
			Address: buyer.Address,
		},
		ReturnURL: expandURL(s.cfg.ReturnURL, o.ID),
		CancelURL: expandURL(s.cfg.CancelURL, o.ID),
	})
	if err != nil {
		var channelErr *payment.ChannelError
		if errors.As(err, &channelErr) {
			lg.Error("Gateway refused payment session", zap.Error(err))
			return &PaymentSetupError{OrderID: o.ID, Err: err}
		}
		lg.Warn("Create payment session, order stays pending without link", zap.Error(err))
		return nil
	}

	o.Gateway = &GatewaySession{CheckoutURL: sess.CheckoutURL, Code: sess.Code}
	o.UpdatedAt = s.now()
	if err := s.orders.Update(ctx, o); err != nil {
		// An unrecorded session can never be reconciled, so close it.
		if cerr := s.gateway.CancelSession(ctx, sess.Code, "order update failed"); cerr != nil {
			lg.Warn("Cancel unrecorded payment session", zap.Int64("payment_code", sess.Code), zap.Error(cerr))
		}
		o.Gateway = nil
		lg.Error("Store payment session, order stays pending without link", zap.Error(err))
		return nil
	}
	lg.Info("Payment session opened", zap.Int64("payment_code", sess.Code))
	return nil
}
