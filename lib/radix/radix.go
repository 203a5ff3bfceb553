// Copyright 2026 The Greenlight Authors
// SPDX-License-Identifier: Apache-2.0

// Package radix renders 128-bit unsigned integers in bases 2 through
// 36 without big-integer arithmetic on the rendering path. Each base
// divides by the largest power of the base that fits a 64-bit word,
// peeling a whole group of digits per division. The division itself
// uses reciprocal multiplication with factors precomputed at init
// (Granlund and Montgomery, "Division by Invariant Integers using
// Multiplication"), falling back to hardware two-word division for
// the bases whose factor needs more than 128 bits.
package radix

import (
	"math/big"
	"math/bits"
	"strconv"
)

const digitChars = "0123456789abcdefghijklmnopqrstuvwxyz"

type dividerKind uint8

const (
	dividerPow2 dividerKind = iota
	dividerFast
	dividerModerate
	dividerSlow
)

// divider divides a 128-bit value by radix^step, the largest power of
// its radix that fits a 64-bit word, yielding step digits per call.
type divider struct {
	kind dividerKind
	step int

	divisor uint64 // radix^step, unused for power-of-two radices

	mask  uint64 // pow2: remainder mask
	shift uint   // pow2: quotient shift

	fastShift   uint // fast: trailing zero bits of divisor
	factorHi    uint64
	factorLo    uint64
	factorShift uint
}

var (
	dividers  [37]divider
	maxDigits [37]int
)

func init() {
	max128 := new(big.Int).Lsh(big.NewInt(1), 128)
	max128.Sub(max128, big.NewInt(1))
	for r := 2; r <= 36; r++ {
		dividers[r] = buildDivider(r)
		maxDigits[r] = len(max128.Text(r))
	}
}

func buildDivider(radix int) divider {
	if radix&(radix-1) == 0 {
		log2 := bits.TrailingZeros(uint(radix))
		step := 64 / log2
		shift := uint(step * log2)
		mask := ^uint64(0)
		if shift < 64 {
			mask = uint64(1)<<shift - 1
		}
		return divider{kind: dividerPow2, step: step, mask: mask, shift: shift}
	}

	step := 0
	divisor := uint64(1)
	for divisor <= ^uint64(0)/uint64(radix) {
		divisor *= uint64(radix)
		step++
	}

	d := divider{step: step, divisor: divisor}
	factor, factorShift := chooseMultiplier(new(big.Int).SetUint64(divisor))
	if factor.BitLen() > 128 {
		// The reciprocal needs a third word; divide in hardware.
		d.kind = dividerSlow
		return d
	}
	d.factorLo = new(big.Int).And(factor, u64Mask).Uint64()
	d.factorHi = new(big.Int).Rsh(factor, 64).Uint64()
	d.factorShift = factorShift
	if fastShift := uint(bits.TrailingZeros64(divisor)); fastShift != 0 {
		d.kind = dividerFast
		d.fastShift = fastShift
	} else {
		d.kind = dividerModerate
	}
	return d
}

var u64Mask = new(big.Int).SetUint64(^uint64(0))

// chooseMultiplier computes the reciprocal factor and post-shift for
// dividing any 128-bit value by divisor. The divisor is never a power
// of two here, so its bit length equals ceil(log2(divisor)).
func chooseMultiplier(divisor *big.Int) (*big.Int, uint) {
	divBits := uint(divisor.BitLen())
	shift := divBits
	one := big.NewInt(1)
	low := new(big.Int).Lsh(one, 128+divBits)
	low.Quo(low, divisor)
	high := new(big.Int).Lsh(one, 128+divBits)
	high.Add(high, new(big.Int).Lsh(one, divBits))
	high.Quo(high, divisor)
	for shift > 0 {
		halfLow := new(big.Int).Rsh(low, 1)
		halfHigh := new(big.Int).Rsh(high, 1)
		if halfLow.Cmp(halfHigh) >= 0 {
			break
		}
		low, high = halfLow, halfHigh
		shift--
	}
	return high, shift
}

// divrem divides hi<<64|lo by radix^step. The remainder always fits
// one word because the chunk divisor does.
func (d *divider) divrem(hi, lo uint64) (qhi, qlo, rem uint64) {
	switch d.kind {
	case dividerPow2:
		return hi >> d.shift, hi<<(64-d.shift) | lo>>d.shift, lo & d.mask
	case dividerFast:
		if hi < uint64(1)<<d.fastShift {
			// Both operands are divisible by 2^fastShift after the
			// shift, so a single word division gives the quotient.
			q := (hi<<(64-d.fastShift) | lo>>d.fastShift) / (d.divisor >> d.fastShift)
			return 0, q, lo - q*d.divisor
		}
		return d.divremByFactor(hi, lo)
	case dividerModerate:
		return d.divremByFactor(hi, lo)
	default:
		qhi = hi / d.divisor
		qlo, rem = bits.Div64(hi%d.divisor, lo, d.divisor)
		return qhi, qlo, rem
	}
}

func (d *divider) divremByFactor(hi, lo uint64) (qhi, qlo, rem uint64) {
	qhi, qlo = mulHi128(hi, lo, d.factorHi, d.factorLo)
	qhi, qlo = qhi>>d.factorShift, qhi<<(64-d.factorShift)|qlo>>d.factorShift
	// The quotient is exact, so n - q*divisor fits one word and only
	// the low product word participates.
	return qhi, qlo, lo - qlo*d.divisor
}

// mulHi128 returns the high 128 bits of the 256-bit product of two
// 128-bit values.
func mulHi128(xHi, xLo, yHi, yLo uint64) (hi, lo uint64) {
	carry, _ := bits.Mul64(xLo, yLo)

	mHi, mLo := bits.Mul64(xLo, yHi)
	var c uint64
	mLo, c = bits.Add64(mLo, carry, 0)
	high1 := mHi + c

	hHi, hLo := bits.Mul64(xHi, yLo)
	_, c = bits.Add64(hLo, mLo, 0)
	high2 := hHi + c

	hi, lo = bits.Mul64(xHi, yHi)
	lo, c = bits.Add64(lo, high1, 0)
	hi += c
	lo, c = bits.Add64(lo, high2, 0)
	hi += c
	return hi, lo
}

// FormatUint128 returns the base-radix representation of the 128-bit
// value hi<<64 | lo. Radix must be in [2, 36]; digits beyond 9 are
// lowercase letters. It panics on a radix outside that range, like
// strconv.FormatUint.
func FormatUint128(hi, lo uint64, radix int) string {
	return string(AppendUint128(nil, hi, lo, radix))
}

// AppendUint128 appends the base-radix representation of hi<<64 | lo
// to dst and returns the extended slice.
func AppendUint128(dst []byte, hi, lo uint64, radix int) []byte {
	if radix < 2 || radix > 36 {
		panic("radix: invalid radix " + strconv.Itoa(radix))
	}
	if hi == 0 {
		return strconv.AppendUint(dst, lo, radix)
	}

	d := &dividers[radix]
	r := uint64(radix)
	var buf [128]byte // base 2 needs one byte per bit
	i := len(buf)
	for hi != 0 {
		var rem uint64
		hi, lo, rem = d.divrem(hi, lo)
		// Full chunks keep their leading zeros; higher digits follow.
		for k := 0; k < d.step; k++ {
			i--
			buf[i] = digitChars[rem%r]
			rem /= r
		}
	}
	// hi was nonzero, so the final quotient word is at least 1 and
	// the leading chunk carries no zero padding.
	for lo >= r {
		i--
		buf[i] = digitChars[lo%r]
		lo /= r
	}
	i--
	buf[i] = digitChars[lo]
	return append(dst, buf[i:]...)
}

// MaxDigits returns the digit count of the largest 128-bit value in
// the given radix, the widest string FormatUint128 can produce.
func MaxDigits(radix int) int {
	if radix < 2 || radix > 36 {
		panic("radix: invalid radix " + strconv.Itoa(radix))
	}
	return maxDigits[radix]
}
