package database

import (
	"testing"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

func TestNumericRoundTrip(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0", "0.00"},
		{"189", "189.00"},
		{"7.5", "7.50"},
		{"-15.25", "-15.25"},
	}
	for _, tt := range tests {
		n := DecimalToNumeric(decimal.RequireFromString(tt.in))
		if !n.Valid {
			t.Fatalf("%s: numeric not valid", tt.in)
		}
		if got := NumericString(n); got != tt.want {
			t.Errorf("%s: NumericString = %q, want %q", tt.in, got, tt.want)
		}
		if got := NumericToDecimal(n); !got.Equal(decimal.RequireFromString(tt.in)) {
			t.Errorf("%s: NumericToDecimal = %s", tt.in, got)
		}
	}
}

func TestNumericNull(t *testing.T) {
	var n pgtype.Numeric
	if got := NumericToDecimal(n); !got.IsZero() {
		t.Errorf("NumericToDecimal(NULL) = %s, want 0", got)
	}
	if got := NumericString(n); got != "0.00" {
		t.Errorf("NumericString(NULL) = %q, want 0.00", got)
	}
}
