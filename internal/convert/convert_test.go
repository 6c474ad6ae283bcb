package convert

import (
	"encoding/json"
	"math"
	"testing"
)

func TestFloat(t *testing.T) {
	tests := []struct {
		name string
		in   interface{}
		def  float64
		want float64
	}{
		{"nil", nil, 0, 0},
		{"nil custom default", nil, -1, -1},
		{"float", 12.5, 0, 12.5},
		{"int", 7, 0, 7},
		{"int64", int64(42), 0, 42},
		{"numeric string", "0.0534", 0, 0.0534},
		{"padded string", " 101.25 ", 0, 101.25},
		{"scientific string", "1e-8", 0, 1e-8},
		{"negative string", "-3.5", 0, -3.5},
		{"empty string", "", 9, 9},
		{"garbage string", "n/a", 3, 3},
		{"nan string", "NaN", 1, 1},
		{"inf string", "Inf", 1, 1},
		{"nan float", math.NaN(), 2, 2},
		{"json number", json.Number("88.8"), 0, 88.8},
		{"bool", true, 5, 5},
		{"map", map[string]interface{}{"a": 1}, 4, 4},
		{"slice", []interface{}{"1"}, 4, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Float(tt.in, tt.def); got != tt.want {
				t.Errorf("Float(%v, %v) = %v, want %v", tt.in, tt.def, got, tt.want)
			}
		})
	}
}

func TestFloatPtr(t *testing.T) {
	if got := FloatPtr(nil); got != nil {
		t.Errorf("nil input gave %v", *got)
	}
	if got := FloatPtr("abc"); got != nil {
		t.Errorf("garbage input gave %v", *got)
	}
	got := FloatPtr("0")
	if got == nil || *got != 0 {
		t.Errorf("zero string should be a present zero, got %v", got)
	}
	got = FloatPtr(3.25)
	if got == nil || *got != 3.25 {
		t.Errorf("float input gave %v", got)
	}
}

func TestInt64(t *testing.T) {
	tests := []struct {
		name string
		in   interface{}
		want *int64
	}{
		{"millis string", "1700000000123", i64(1700000000123)},
		{"float", float64(1700000000123), i64(1700000000123)},
		{"json number", json.Number("17"), i64(17)},
		{"fractional string", "12.9", i64(12)},
		{"nil", nil, nil},
		{"garbage", "later", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Int64(tt.in)
			switch {
			case tt.want == nil && got != nil:
				t.Errorf("Int64(%v) = %v, want nil", tt.in, *got)
			case tt.want != nil && (got == nil || *got != *tt.want):
				t.Errorf("Int64(%v) = %v, want %v", tt.in, got, *tt.want)
			}
		})
	}
}

func i64(v int64) *int64 { return &v }
