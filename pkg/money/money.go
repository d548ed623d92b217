// Package money 金额在“元”（对外，十进制字符串）与“分”（对内，int64）之间转换
package money

import (
	"errors"

	"github.com/shopspring/decimal"
)

// Scale 小数位数，1 元 = 100 分
const Scale = 2

// MaxMinor 单笔金额上限（分），即 10 万亿元
const MaxMinor int64 = 1_000_000_000_000_000

const (
	maxIntegerDigits  = 14 // MaxMinor 对应的元的整数位数
	maxTrailingDigits = 18 // 两位小数之后最多容忍的尾随 0
)

var (
	ErrTooPrecise = errors.New("金额最多两位小数")
	ErrOverflow   = errors.New("金额超出范围")
)

var (
	minorPerMajor = decimal.New(1, Scale)
	maxMinor      = decimal.NewFromInt(MaxMinor)
	minMinor      = decimal.NewFromInt(-MaxMinor)
)

// ToMinor 元 -> 分，不允许超过两位小数，不做任何舍入
//
// 先只看指数和位数：decimal 的比较和截断会按指数放大系数，
// "1e100000000" 这样的输入必须在那之前被拒绝。
func ToMinor(amount decimal.Decimal) (int64, error) {
	if amount.IsZero() {
		return 0, nil
	}
	exp := int64(amount.Exponent())
	if exp < -(Scale + maxTrailingDigits) {
		return 0, ErrTooPrecise
	}
	if int64(amount.NumDigits())+exp > maxIntegerDigits {
		return 0, ErrOverflow
	}

	minor := amount.Mul(minorPerMajor)
	if !minor.Equal(minor.Truncate(0)) {
		return 0, ErrTooPrecise
	}
	if minor.GreaterThan(maxMinor) || minor.LessThan(minMinor) {
		return 0, ErrOverflow
	}
	return minor.IntPart(), nil
}

// FromMinor 分 -> 元
func FromMinor(minor int64) decimal.Decimal {
	return decimal.New(minor, -Scale)
}

// Format 分 -> "12.34"
func Format(minor int64) string {
	return FromMinor(minor).StringFixed(Scale)
}
