package domain

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestFromDecimal(t *testing.T) {
	cases := map[string]Amount{
		"18.00":  1800,
		"9.99":   999,
		"0.50":   50,
		"29.99":  2999,
		"1800":   180000,
		"0.005":  1,
		"19.994": 1999,
	}

	for in, want := range cases {
		t.Run(in, func(t *testing.T) {
			got := FromDecimal(decimal.RequireFromString(in))
			if got != want {
				t.Errorf("expected %d, got %d", want, got)
			}
		})
	}
}

func TestAmount_JSON(t *testing.T) {
	t.Run("encodes as a decimal number", func(t *testing.T) {
		data, err := json.Marshal(struct {
			Total Amount `json:"total"`
		}{Total: 5998})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(data) != `{"total":59.98}` {
			t.Errorf("unexpected json: %s", data)
		}
	})

	t.Run("decodes numbers and numeric strings", func(t *testing.T) {
		var line struct {
			A Amount `json:"a"`
			B Amount `json:"b"`
		}
		if err := json.Unmarshal([]byte(`{"a":9.99,"b":"0.50"}`), &line); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if line.A != 999 || line.B != 50 {
			t.Errorf("expected 999 and 50, got %d and %d", line.A, line.B)
		}
	})

	t.Run("rejects non numeric input", func(t *testing.T) {
		var a Amount
		if err := json.Unmarshal([]byte(`"abc"`), &a); err == nil {
			t.Error("expected error for non numeric amount")
		}
	})
}

func TestParseDecimal(t *testing.T) {
	t.Run("converts in range values", func(t *testing.T) {
		got, err := ParseDecimal(decimal.RequireFromString("92233720368547758.07"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != Amount(9223372036854775807) {
			t.Errorf("expected max int64, got %d", got)
		}
	})

	for _, in := range []string{"92233720368547758.08", "200000000000000000", "-200000000000000000"} {
		t.Run("rejects "+in, func(t *testing.T) {
			if _, err := ParseDecimal(decimal.RequireFromString(in)); !errors.Is(err, ErrAmountOutOfRange) {
				t.Errorf("expected ErrAmountOutOfRange, got %v", err)
			}
		})
	}

	t.Run("json decoding fails instead of wrapping", func(t *testing.T) {
		var lines []CartLine
		err := json.Unmarshal([]byte(`[{"price":200000000000000000}]`), &lines)
		if !errors.Is(err, ErrAmountOutOfRange) {
			t.Errorf("expected ErrAmountOutOfRange, got %v", err)
		}
	})
}

func TestCartLine_Subtotal(t *testing.T) {
	line := CartLine{Price: 2999, Quantity: 2}
	if line.Subtotal() != 5998 {
		t.Errorf("expected 5998, got %d", line.Subtotal())
	}

	line.Quantity = 0
	if line.Subtotal() != 2999 {
		t.Errorf("expected quantity to default to 1, got subtotal %d", line.Subtotal())
	}
}

func TestAmount_Percent(t *testing.T) {
	tests := []struct {
		amount Amount
		pct    int
		want   Amount
	}{
		{amount: 5998, pct: 10, want: 600},
		{amount: 1000, pct: 15, want: 150},
		{amount: 25, pct: 10, want: 3},
		{amount: 24, pct: 10, want: 2},
		{amount: 5998, pct: 100, want: 5998},
		{amount: 0, pct: 50, want: 0},
	}

	for _, tt := range tests {
		if got := tt.amount.Percent(tt.pct); got != tt.want {
			t.Errorf("%d%% of %d: expected %d, got %d", tt.pct, tt.amount, tt.want, got)
		}
	}
}
