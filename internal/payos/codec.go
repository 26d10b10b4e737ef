package payos

import (
	"sort"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/thangnvgch211384/fshoemate/internal/domain/payment"
)

type createRequest struct {
	OrderCode   int64
	Amount      int64
	Description string
	Items       []payment.Item
	Buyer       payment.Buyer
	CancelURL   string
	ReturnURL   string
	Signature   string
}

func encodeCreateRequest(r createRequest) []byte {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("orderCode", func(e *jx.Encoder) { e.Int64(r.OrderCode) })
		e.Field("amount", func(e *jx.Encoder) { e.Int64(r.Amount) })
		e.Field("description", func(e *jx.Encoder) { e.Str(r.Description) })
		if r.Buyer.Name != "" {
			e.Field("buyerName", func(e *jx.Encoder) { e.Str(r.Buyer.Name) })
		}
		if r.Buyer.Email != "" {
			e.Field("buyerEmail", func(e *jx.Encoder) { e.Str(r.Buyer.Email) })
		}
		if r.Buyer.Phone != "" {
			e.Field("buyerPhone", func(e *jx.Encoder) { e.Str(r.Buyer.Phone) })
		}
		if r.Buyer.Address != "" {
			e.Field("buyerAddress", func(e *jx.Encoder) { e.Str(r.Buyer.Address) })
		}
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, it := range r.Items {
					e.Obj(func(e *jx.Encoder) {
						e.Field("name", func(e *jx.Encoder) { e.Str(it.Name) })
						e.Field("quantity", func(e *jx.Encoder) { e.Int(it.Quantity) })
						e.Field("price", func(e *jx.Encoder) { e.Int64(it.Price) })
					})
				}
			})
		})
		e.Field("cancelUrl", func(e *jx.Encoder) { e.Str(r.CancelURL) })
		e.Field("returnUrl", func(e *jx.Encoder) { e.Str(r.ReturnURL) })
		e.Field("signature", func(e *jx.Encoder) { e.Str(r.Signature) })
	})
	return e.Bytes()
}

func encodeCancelRequest(reason string) []byte {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		if reason != "" {
			e.Field("cancellationReason", func(e *jx.Encoder) { e.Str(reason) })
		}
	})
	return e.Bytes()
}

// envelope is the common response wrapper. Data is kept raw.
type envelope struct {
	Code string
	Desc string
	Data jx.Raw
}

func decodeEnvelope(data []byte) (envelope, error) {
	var env envelope
	d := jx.DecodeBytes(data)
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "code":
			v, err := scalar(d)
			if err != nil {
				return errors.Wrap(err, "code")
			}
			env.Code = v
		case "desc":
			v, err := scalar(d)
			if err != nil {
				return errors.Wrap(err, "desc")
			}
			env.Desc = v
		case "data":
			raw, err := d.Raw()
			if err != nil {
				return errors.Wrap(err, "data")
			}
			env.Data = append(jx.Raw(nil), raw...)
		default:
			return d.Skip()
		}
		return nil
	})
	if err != nil {
		return envelope{}, err
	}
	if env.Code == "" {
		return envelope{}, errors.New("missing code")
	}
	return env, nil
}

type paymentLink struct {
	CheckoutURL   string
	OrderCode     int64
	PaymentLinkID string
}

func decodePaymentLink(data []byte) (paymentLink, error) {
	var link paymentLink
	if len(data) == 0 {
		return link, errors.New("empty data")
	}
	d := jx.DecodeBytes(data)
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "checkoutUrl":
			v, err := d.Str()
			if err != nil {
				return errors.Wrap(err, "checkoutUrl")
			}
			link.CheckoutURL = v
		case "orderCode":
			v, err := d.Int64()
			if err != nil {
				return errors.Wrap(err, "orderCode")
			}
			link.OrderCode = v
		case "paymentLinkId":
			v, err := scalar(d)
			if err != nil {
				return errors.Wrap(err, "paymentLinkId")
			}
			link.PaymentLinkID = v
		default:
			return d.Skip()
		}
		return nil
	})
	if err != nil {
		return paymentLink{}, err
	}
	if link.CheckoutURL == "" {
		return paymentLink{}, errors.New("missing checkoutUrl")
	}
	return link, nil
}

// DecodeWebhook parses a payment webhook body. Every scalar of the data
// object is kept in Fields in its textual form for checksum verification.
// A body without data yields a zero OrderCode.
func DecodeWebhook(body []byte) (payment.Callback, error) {
	var cb payment.Callback
	d := jx.DecodeBytes(body)
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "code":
			v, err := scalar(d)
			if err != nil {
				return errors.Wrap(err, "code")
			}
			cb.Code = v
		case "desc":
			v, err := scalar(d)
			if err != nil {
				return errors.Wrap(err, "desc")
			}
			cb.Description = v
		case "signature":
			v, err := scalar(d)
			if err != nil {
				return errors.Wrap(err, "signature")
			}
			cb.Signature = v
		case "data":
			if d.Next() == jx.Null {
				return d.Null()
			}
			fields, err := decodeFields(d)
			if err != nil {
				return errors.Wrap(err, "data")
			}
			cb.Fields = fields
		default:
			return d.Skip()
		}
		return nil
	})
	if err != nil {
		return payment.Callback{}, errors.Wrap(err, "decode webhook")
	}

	if v, ok := cb.Fields["orderCode"]; ok && v != "" {
		n, err := jx.DecodeStr(v).Int64()
		if err != nil {
			return payment.Callback{}, errors.Wrap(err, "decode webhook: orderCode")
		}
		cb.OrderCode = n
	}
	if v, ok := cb.Fields["amount"]; ok && v != "" {
		if n, err := jx.DecodeStr(v).Int64(); err == nil {
			cb.Amount = n
		}
	}
	cb.Reference = cb.Fields["reference"]
	return cb, nil
}

func decodeFields(d *jx.Decoder) (map[string]string, error) {
	fields := make(map[string]string)
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch d.Next() {
		case jx.Object, jx.Array:
			return d.Skip()
		}
		v, err := scalar(d)
		if err != nil {
			return errors.Wrap(err, string(key))
		}
		fields[string(key)] = v
		return nil
	})
	return fields, err
}

// scalar reads a string, number, bool or null as text. Null reads as "".
func scalar(d *jx.Decoder) (string, error) {
	switch d.Next() {
	case jx.String:
		return d.Str()
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return "", err
		}
		return n.String(), nil
	case jx.Bool:
		b, err := d.Bool()
		if err != nil {
			return "", err
		}
		if b {
			return "true", nil
		}
		return "false", nil
	case jx.Null:
		return "", d.Null()
	default:
		return "", errors.Errorf("unexpected %s", d.Next())
	}
}

// canonical joins fields sorted by key as key=value pairs with '&'.
func canonical(fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(fields[k])
	}
	return b.String()
}
