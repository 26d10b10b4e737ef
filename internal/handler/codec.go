package handler

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/thangnvgch211384/fshoemate/internal/domain/analytics"
	"github.com/thangnvgch211384/fshoemate/internal/domain/cart"
	"github.com/thangnvgch211384/fshoemate/internal/domain/order"
)

func decodeCheckout(body []byte) (order.CheckoutRequest, error) {
	var req order.CheckoutRequest
	err := jx.DecodeBytes(body).ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "items":
			err = d.Arr(func(d *jx.Decoder) error {
				it, err := decodeItem(d)
				if err != nil {
					return err
				}
				req.Items = append(req.Items, it)
				return nil
			})
		case "contact":
			if d.Next() == jx.Null {
				return d.Null()
			}
			c, err := decodeContact(d)
			if err != nil {
				return err
			}
			req.Contact = &c
		case "payment_method":
			var m string
			m, err = d.Str()
			req.PaymentMethod = order.PaymentMethod(m)
		case "discount_code":
			req.DiscountCode, err = d.Str()
		case "shipping_method":
			req.ShippingMethod, err = d.Str()
		default:
			err = d.Skip()
		}
		return errors.Wrapf(err, "field %q", key)
	})
	return req, err
}

func decodeItem(d *jx.Decoder) (cart.Item, error) {
	var it cart.Item
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "variant_id":
			it.VariantID, err = d.Str()
		case "quantity":
			it.Quantity, err = d.Int()
		default:
			err = d.Skip()
		}
		return err
	})
	return it, errors.Wrap(err, "item")
}

func decodeContact(d *jx.Decoder) (order.Customer, error) {
	var c order.Customer
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "name":
			c.Name, err = d.Str()
		case "email":
			c.Email, err = d.Str()
		case "phone":
			c.Phone, err = d.Str()
		case "address":
			c.Address, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	return c, err
}

func decodeStatus(body []byte) (order.Status, error) {
	var s string
	err := jx.DecodeBytes(body).ObjBytes(func(d *jx.Decoder, key []byte) error {
		if string(key) != "status" {
			return d.Skip()
		}
		var err error
		s, err = d.Str()
		return err
	})
	return order.Status(s), err
}

func money(e *jx.Encoder, d decimal.Decimal) {
	e.Num(jx.Num(d.String()))
}

func timestamp(e *jx.Encoder, t time.Time) {
	e.Str(t.UTC().Format(time.RFC3339))
}

func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(o.ID) })
		e.Field("short_code", func(e *jx.Encoder) { e.Str(o.ShortCode()) })
		if o.UserID != "" {
			e.Field("user_id", func(e *jx.Encoder) { e.Str(o.UserID) })
		}
		if c := o.Contact; c != nil {
			e.Field("contact", func(e *jx.Encoder) {
				e.Obj(func(e *jx.Encoder) {
					e.Field("name", func(e *jx.Encoder) { e.Str(c.Name) })
					e.Field("email", func(e *jx.Encoder) { e.Str(c.Email) })
					e.Field("phone", func(e *jx.Encoder) { e.Str(c.Phone) })
					e.Field("address", func(e *jx.Encoder) { e.Str(c.Address) })
				})
			})
		}
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, li := range o.Items {
					encodeLineItem(e, li)
				}
			})
		})
		e.Field("subtotal", func(e *jx.Encoder) { money(e, o.Totals.Subtotal) })
		e.Field("discount", func(e *jx.Encoder) { money(e, o.Totals.Discount) })
		e.Field("shipping_fee", func(e *jx.Encoder) { money(e, o.Totals.ShippingFee) })
		e.Field("total", func(e *jx.Encoder) { money(e, o.Totals.Total) })
		e.Field("payment_method", func(e *jx.Encoder) { e.Str(string(o.PaymentMethod)) })
		e.Field("payment_status", func(e *jx.Encoder) { e.Str(string(o.PaymentStatus)) })
		e.Field("status", func(e *jx.Encoder) { e.Str(string(o.Status)) })
		if o.DiscountCode != "" {
			e.Field("discount_code", func(e *jx.Encoder) { e.Str(o.DiscountCode) })
		}
		e.Field("shipping_method", func(e *jx.Encoder) { e.Str(o.ShippingMethod) })
		if o.Gateway != nil && o.Gateway.CheckoutURL != "" {
			e.Field("checkout_url", func(e *jx.Encoder) { e.Str(o.Gateway.CheckoutURL) })
		}
		e.Field("created_at", func(e *jx.Encoder) { timestamp(e, o.CreatedAt) })
		e.Field("updated_at", func(e *jx.Encoder) { timestamp(e, o.UpdatedAt) })
	})
}

func encodeLineItem(e *jx.Encoder, li order.LineItem) {
	s := li.Snapshot
	e.Obj(func(e *jx.Encoder) {
		e.Field("variant_id", func(e *jx.Encoder) { e.Str(li.VariantID) })
		e.Field("product_id", func(e *jx.Encoder) { e.Str(s.ProductID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(s.Name) })
		e.Field("brand", func(e *jx.Encoder) { e.Str(s.Brand) })
		e.Field("size", func(e *jx.Encoder) { e.Str(s.Size) })
		e.Field("color", func(e *jx.Encoder) { e.Str(s.Color) })
		e.Field("image", func(e *jx.Encoder) { e.Str(s.Image) })
		e.Field("price", func(e *jx.Encoder) { money(e, s.Price) })
		e.Field("quantity", func(e *jx.Encoder) { e.Int(li.Quantity) })
	})
}

func encodeOrders(e *jx.Encoder, orders []order.Order) {
	e.Arr(func(e *jx.Encoder) {
		for i := range orders {
			encodeOrder(e, &orders[i])
		}
	})
}

func encodeReport(e *jx.Encoder, r *analytics.Report) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("total_revenue", func(e *jx.Encoder) { money(e, r.TotalRevenue) })
		e.Field("total_orders", func(e *jx.Encoder) { e.Int(r.TotalOrders) })
		e.Field("total_customers", func(e *jx.Encoder) { e.Int(r.TotalCustomers) })
		e.Field("average_order_value", func(e *jx.Encoder) { money(e, r.AverageOrderValue) })
		e.Field("recent_orders", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, o := range r.RecentOrders {
					e.Obj(func(e *jx.Encoder) {
						e.Field("id", func(e *jx.Encoder) { e.Str(o.ID) })
						e.Field("customer", func(e *jx.Encoder) { e.Str(o.Customer) })
						e.Field("total", func(e *jx.Encoder) { money(e, o.Total) })
						e.Field("status", func(e *jx.Encoder) { e.Str(string(o.Status)) })
						e.Field("payment_status", func(e *jx.Encoder) { e.Str(string(o.PaymentStatus)) })
						e.Field("created_at", func(e *jx.Encoder) { timestamp(e, o.CreatedAt) })
					})
				}
			})
		})
		e.Field("top_products", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, p := range r.TopProducts {
					e.Obj(func(e *jx.Encoder) {
						e.Field("product_id", func(e *jx.Encoder) { e.Str(p.ProductID) })
						e.Field("name", func(e *jx.Encoder) { e.Str(p.Name) })
						e.Field("quantity", func(e *jx.Encoder) { e.Int(p.Quantity) })
						e.Field("revenue", func(e *jx.Encoder) { money(e, p.Revenue) })
					})
				}
			})
		})
		e.Field("top_spenders", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, s := range r.TopSpenders {
					e.Obj(func(e *jx.Encoder) {
						e.Field("customer_id", func(e *jx.Encoder) { e.Str(s.CustomerID) })
						e.Field("name", func(e *jx.Encoder) { e.Str(s.Name) })
						e.Field("email", func(e *jx.Encoder) { e.Str(s.Email) })
						e.Field("guest", func(e *jx.Encoder) { e.Bool(s.Guest) })
						e.Field("orders", func(e *jx.Encoder) { e.Int(s.Orders) })
						e.Field("total", func(e *jx.Encoder) { money(e, s.Total) })
					})
				}
			})
		})
	})
}
