package handler

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/pharmacy-pos/internal/domain/medicine"
	"github.com/xenking/pharmacy-pos/internal/domain/sale"
)

var errMalformed = &sale.InputError{Reason: "malformed JSON body"}

// saleRequest is the checkout body before field validation. Scalars are kept
// as decoded so the sale parsers decide what is acceptable.
type saleRequest struct {
	PaymentMethod any
	Discount      any
	Paid          any
	Items         []map[string]any
}

// scalar reads one JSON value as nil, string, bool or the textual number.
// Objects and arrays are skipped and reported as their jx.Type so that
// parsers reject them.
func scalar(d *jx.Decoder) (any, error) {
	switch tt := d.Next(); tt {
	case jx.Null:
		return nil, d.Null()
	case jx.String:
		return d.Str()
	case jx.Bool:
		return d.Bool()
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return nil, err
		}
		return n.String(), nil
	default:
		return tt, d.Skip()
	}
}

func decodeSaleRequest(r io.Reader) (*saleRequest, error) {
	body, err := io.ReadAll(io.LimitReader(r, maxBodyBytes+1))
	if err != nil {
		return nil, errors.Wrap(err, "read body")
	}
	if len(body) > maxBodyBytes {
		return nil, &sale.InputError{Reason: "body too large"}
	}

	var req saleRequest
	d := jx.DecodeBytes(body)
	if d.Next() != jx.Object {
		return nil, errMalformed
	}
	err = d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "paymentMethod":
			req.PaymentMethod, err = scalar(d)
		case "discount":
			req.Discount, err = scalar(d)
		case "paid":
			req.Paid, err = scalar(d)
		case "items":
			req.Items, err = decodeItems(d)
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		if sale.IsRejection(err) {
			return nil, err
		}
		return nil, errMalformed
	}
	return &req, nil
}

func decodeItems(d *jx.Decoder) ([]map[string]any, error) {
	switch d.Next() {
	case jx.Null:
		return nil, d.Null()
	case jx.Array:
	default:
		return nil, sale.ErrEmptyItems
	}

	var items []map[string]any
	err := d.Arr(func(d *jx.Decoder) error {
		i := len(items)
		if d.Next() != jx.Object {
			return &sale.InputError{Field: fmt.Sprintf("items[%d]", i), Reason: "must be an object"}
		}
		item := make(map[string]any, 2)
		if err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
			switch k := string(key); k {
			case "medicineId", "qty":
				v, err := scalar(d)
				item[k] = v
				return err
			default:
				return d.Skip()
			}
		}); err != nil {
			return err
		}
		items = append(items, item)
		return nil
	})
	return items, err
}

// toCreateRequest validates the scalar fields into a sale.CreateRequest.
func (req *saleRequest) toCreateRequest(actor string) (sale.CreateRequest, error) {
	out := sale.CreateRequest{Actor: actor}

	if s, ok := req.PaymentMethod.(string); ok {
		out.PaymentMethod = sale.PaymentMethod(s)
	}

	var err error
	if out.Discount, err = sale.ParseMoney("discount", req.Discount); err != nil {
		return out, err
	}
	if out.Paid, err = sale.ParseMoney("paid", req.Paid); err != nil {
		return out, err
	}

	out.Items = make([]sale.Line, len(req.Items))
	for i, item := range req.Items {
		id, err := sale.ParseID(fmt.Sprintf("items[%d].medicineId", i), item["medicineId"])
		if err != nil {
			return out, err
		}
		qty, err := sale.ParseQuantity(fmt.Sprintf("items[%d].qty", i), item["qty"])
		if err != nil {
			return out, err
		}
		out.Items[i] = sale.Line{MedicineID: id, Quantity: qty}
	}
	return out, nil
}

func money(e *jx.Encoder, field string, v decimal.Decimal) {
	e.FieldStart(field)
	e.Num(jx.Num(v.StringFixed(2)))
}

func encodeReceipt(e *jx.Encoder, r *sale.Receipt, createdBy string) {
	e.ObjStart()
	e.FieldStart("id")
	e.Int64(r.ID)
	e.FieldStart("orderNumber")
	e.Str(r.OrderNumber)
	e.FieldStart("status")
	e.Str(string(r.Status))
	e.FieldStart("paymentMethod")
	e.Str(string(r.PaymentMethod))
	if createdBy != "" {
		e.FieldStart("createdBy")
		e.Str(createdBy)
	}
	money(e, "subtotal", r.Subtotal)
	money(e, "discount", r.Discount)
	money(e, "taxRate", r.TaxRate)
	money(e, "taxAmount", r.TaxAmount)
	money(e, "total", r.Total)
	money(e, "paid", r.Paid)
	money(e, "balance", r.Balance)
	money(e, "change", r.Change)

	e.FieldStart("items")
	e.ArrStart()
	for _, it := range r.Items {
		e.ObjStart()
		e.FieldStart("medicineId")
		e.Int64(it.MedicineID)
		e.FieldStart("name")
		e.Str(it.Name)
		e.FieldStart("qty")
		e.Int64(it.Quantity)
		money(e, "unitPrice", it.UnitPrice)
		money(e, "lineTotal", it.LineTotal)
		e.ObjEnd()
	}
	e.ArrEnd()

	e.FieldStart("createdAt")
	e.Str(r.CreatedAt.Format(time.RFC3339))
	e.ObjEnd()
}

func encodeMedicine(e *jx.Encoder, m medicine.Medicine, today time.Time) {
	e.ObjStart()
	e.FieldStart("id")
	e.Int64(m.ID)
	e.FieldStart("brandName")
	e.Str(m.BrandName)
	e.FieldStart("strength")
	e.Str(m.Strength)
	e.FieldStart("name")
	e.Str(m.DisplayName())
	e.FieldStart("quantity")
	e.Int64(m.Quantity)
	money(e, "sellPrice", m.SellPrice)
	e.FieldStart("expiryDate")
	e.Str(m.ExpiryDate.Format(time.DateOnly))
	e.FieldStart("expired")
	e.Bool(m.ExpiredOn(today))
	e.ObjEnd()
}

// writeJSON writes the encoder contents with status.
func writeJSON(w http.ResponseWriter, status int, e *jx.Encoder) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}
