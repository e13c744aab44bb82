package main

import (
	"bytes"
	"io"
	"os"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"

	"github.com/xenking/pharmacy-pos/db"
	"github.com/xenking/pharmacy-pos/internal/domain/medicine"
)

// readCatalog returns the raw catalog JSON. An empty path selects the
// embedded catalog; paths ending in .gz are decompressed.
func readCatalog(path string) ([]byte, error) {
	if path == "" {
		return db.SeedCatalog, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := pgzip.NewReader(f)
		if err != nil {
			return nil, errors.Wrapf(err, "create gzip reader for %s", path)
		}
		defer func() { _ = gz.Close() }()
		r = gz
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	return data, nil
}

// parseCatalog decodes a JSON array of medicines. Entries are active unless
// they carry "active": false.
func parseCatalog(data []byte) ([]medicine.Medicine, error) {
	var out []medicine.Medicine
	d := jx.DecodeBytes(bytes.TrimSpace(data))
	err := d.Arr(func(d *jx.Decoder) error {
		m := medicine.Medicine{Active: true}
		if err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
			return decodeField(d, string(key), &m)
		}); err != nil {
			return errors.Wrapf(err, "entry %d", len(out))
		}
		if err := checkEntry(m); err != nil {
			return errors.Wrapf(err, "entry %d", len(out))
		}
		out = append(out, m)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "parse catalog")
	}
	return out, nil
}

func decodeField(d *jx.Decoder, key string, m *medicine.Medicine) error {
	var err error
	switch key {
	case "brandName":
		m.BrandName, err = d.Str()
	case "strength":
		m.Strength, err = d.Str()
	case "quantity":
		m.Quantity, err = d.Int64()
	case "sellPrice":
		m.SellPrice, err = decodePrice(d)
	case "buyPrice":
		m.BuyPrice, err = decodePrice(d)
	case "expiryDate":
		var s string
		if s, err = d.Str(); err == nil {
			m.ExpiryDate, err = time.Parse(time.DateOnly, s)
		}
	case "active":
		m.Active, err = d.Bool()
	default:
		return d.Skip()
	}
	if err != nil {
		return errors.Wrap(err, key)
	}
	return nil
}

// decodePrice accepts both "1.20" and 1.20.
func decodePrice(d *jx.Decoder) (decimal.Decimal, error) {
	if d.Next() == jx.String {
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(s)
	}
	n, err := d.Num()
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(n.String())
}

func checkEntry(m medicine.Medicine) error {
	switch {
	case strings.TrimSpace(m.BrandName) == "":
		return errors.New("brandName is required")
	case m.Quantity < 0:
		return errors.New("quantity must not be negative")
	case m.SellPrice.IsNegative() || m.BuyPrice.IsNegative():
		return errors.New("prices must not be negative")
	case m.ExpiryDate.IsZero():
		return errors.New("expiryDate is required")
	}
	return nil
}
