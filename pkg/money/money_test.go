package money

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToMinor(t *testing.T) {
	cases := []struct {
		in   string
		want int64
		err  error
	}{
		{in: "12.34", want: 1234},
		{in: "0.01", want: 1},
		{in: "100", want: 10000},
		{in: "5.1", want: 510},
		{in: "-3.50", want: -350},
		{in: "0", want: 0},
		{in: "0.001", err: ErrTooPrecise},
		{in: "1.999", err: ErrTooPrecise},
		{in: "1.000", want: 100},
		{in: "0e100000000", want: 0},
		{in: "10000000000000.00", want: MaxMinor},
		{in: "-10000000000000", want: -MaxMinor},
		{in: "10000000000000.01", err: ErrOverflow},
		{in: "92233720368547758.07", err: ErrOverflow},
		{in: "92233720368547758.08", err: ErrOverflow},
		{in: "1e100000000", err: ErrOverflow},
		{in: "-1e100000000", err: ErrOverflow},
		{in: "1e-100000000", err: ErrTooPrecise},
	}

	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ToMinor(decimal.RequireFromString(tc.in))
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

// 指数极大或极小的输入必须立即返回，不能按指数展开系数
func TestToMinor_HugeExponentIsCheap(t *testing.T) {
	for _, in := range []string{"1e100000000", "1e-100000000", "123456789e999999999"} {
		amount := decimal.RequireFromString(in)
		start := time.Now()
		_, err := ToMinor(amount)
		assert.Error(t, err, in)
		assert.Less(t, time.Since(start), 100*time.Millisecond, in)
	}
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "12.34", Format(1234))
	assert.Equal(t, "0.05", Format(5))
	assert.Equal(t, "100.00", Format(10000))
	assert.Equal(t, "0.00", Format(0))
	assert.True(t, FromMinor(250).Equal(decimal.RequireFromString("2.5")))
}
