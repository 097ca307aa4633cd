package payment

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/joao-fontenele/storefront-checkout/internal/domain"
)

const (
	MetadataVersion = 1

	metaVersion  = "v"
	metaUserID   = "userId"
	metaCoupon   = "couponCode"
	metaProducts = "products"

	// Providers cap metadata values; the product snapshot is spread over
	// products, products_1, products_2, ... when longer.
	maxMetadataValue = 500
)

var (
	ErrUnsupportedMetadata = errors.New("unsupported session metadata version")
	ErrMalformedProducts   = errors.New("malformed product snapshot")
)

// ProductSnapshot is a cart line as it was when the session was created.
type ProductSnapshot struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	Quantity   int           `json:"quantity"`
	UnitAmount domain.Amount `json:"price"`
}

// SessionMetadata is embedded in the checkout session and is the only trusted
// source for building the order once the session is paid.
type SessionMetadata struct {
	Version    int
	UserID     string
	CouponCode string
	Products   []ProductSnapshot
}

func NewSessionMetadata(userID, couponCode string, lines []domain.CartLine) SessionMetadata {
	products := make([]ProductSnapshot, 0, len(lines))
	for _, l := range lines {
		products = append(products, ProductSnapshot{
			ID:         l.ProductID,
			Name:       l.Name,
			Quantity:   l.Qty(),
			UnitAmount: l.Price,
		})
	}

	return SessionMetadata{
		Version:    MetadataVersion,
		UserID:     userID,
		CouponCode: couponCode,
		Products:   products,
	}
}

func (m SessionMetadata) Encode() (map[string]string, error) {
	products := m.Products
	if products == nil {
		products = []ProductSnapshot{}
	}

	data, err := json.Marshal(products)
	if err != nil {
		return nil, fmt.Errorf("marshal product snapshot: %w", err)
	}

	version := m.Version
	if version == 0 {
		version = MetadataVersion
	}

	out := map[string]string{
		metaVersion: strconv.Itoa(version),
		metaUserID:  m.UserID,
		metaCoupon:  m.CouponCode,
	}

	for i, chunk := range chunk(string(data), maxMetadataValue) {
		out[productsKey(i)] = chunk
	}

	return out, nil
}

// DecodeSessionMetadata reads metadata written by Encode. A malformed product
// snapshot yields metadata with no products together with a non-nil error, so
// callers may still use the user and coupon fields.
func DecodeSessionMetadata(raw map[string]string) (SessionMetadata, error) {
	m := SessionMetadata{
		Version:    MetadataVersion,
		UserID:     raw[metaUserID],
		CouponCode: raw[metaCoupon],
		Products:   []ProductSnapshot{},
	}

	if v, ok := raw[metaVersion]; ok && v != "" {
		version, err := strconv.Atoi(v)
		if err != nil {
			return m, fmt.Errorf("parse metadata version %q: %w", v, err)
		}
		m.Version = version
	}

	if m.Version != MetadataVersion {
		return m, fmt.Errorf("%w: %d", ErrUnsupportedMetadata, m.Version)
	}

	var sb strings.Builder
	for i := 0; ; i++ {
		part, ok := raw[productsKey(i)]
		if !ok {
			break
		}
		sb.WriteString(part)
	}

	if sb.Len() == 0 {
		return m, nil
	}

	var products []ProductSnapshot
	if err := json.Unmarshal([]byte(sb.String()), &products); err != nil {
		return m, fmt.Errorf("%w: %w", ErrMalformedProducts, err)
	}
	if products != nil {
		m.Products = products
	}

	return m, nil
}

func productsKey(i int) string {
	if i == 0 {
		return metaProducts
	}
	return metaProducts + "_" + strconv.Itoa(i)
}

func chunk(s string, size int) []string {
	if s == "" {
		return nil
	}

	var parts []string
	for len(s) > size {
		cut := size
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		parts = append(parts, s[:cut])
		s = s[cut:]
	}
	return append(parts, s)
}
