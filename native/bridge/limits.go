package bridge

import "math/big"

// collateralBase scales the collateral token's yocto balances down to whole
// tokens before pricing (the collateral token carries 24 decimals).
var collateralBase = new(big.Int).Exp(big.NewInt(10), big.NewInt(24), nil)

var ratioDenominator = big.NewInt(10000)

// LockedValue is one token's contribution to the consumed bridging capacity.
type LockedValue struct {
	Amount   *big.Int
	Price    *big.Int
	Decimals uint32
}

func pow10(exp uint32) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(exp)), nil)
}

// limitValue is the total bridgeable market value backed by the staked
// collateral: whole staked tokens times the collateral price, scaled by the
// limit ratio in basis points.
func limitValue(stakedBalance, collateralPrice *big.Int, limitRatio uint32) *big.Int {
	v := new(big.Int).Div(stakedBalance, collateralBase)
	v.Mul(v, collateralPrice)
	v.Mul(v, new(big.Int).SetUint64(uint64(limitRatio)))
	return v.Div(v, ratioDenominator)
}

// usedValue sums the market value already locked across all bridged tokens.
func usedValue(locked []LockedValue) *big.Int {
	used := new(big.Int)
	for _, lv := range locked {
		v := new(big.Int).Mul(lv.Amount, lv.Price)
		v.Div(v, pow10(lv.Decimals))
		used.Add(used, v)
	}
	return used
}

// AllowedAmount computes how many units of a token may still be locked toward
// an appchain: the remaining market value backed by the staked collateral,
// converted into token units at the token's price. Zero when the capacity is
// exhausted or the token has no price.
func AllowedAmount(stakedBalance, collateralPrice *big.Int, limitRatio uint32, locked []LockedValue, token *Token) *big.Int {
	if token.Price == nil || token.Price.Sign() == 0 {
		return new(big.Int)
	}
	remaining := limitValue(stakedBalance, collateralPrice, limitRatio)
	remaining.Sub(remaining, usedValue(locked))
	if remaining.Sign() <= 0 {
		return new(big.Int)
	}
	remaining.Mul(remaining, pow10(token.Decimals))
	return remaining.Div(remaining, token.Price)
}
