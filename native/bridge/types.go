// Package bridge implements the fungible-token bridge ledger of the relay
// hub: the token registry, per-appchain bridging permissions and the dynamic
// bridging limit derived from staked collateral.
package bridge

import (
	"fmt"
	"math/big"
)

// Status is the bridging state of a registered token.
type Status uint8

const (
	StatusActivated Status = iota
	StatusPaused
	StatusClosed
)

// Valid reports whether the status value is within the supported range.
func (s Status) Valid() bool {
	return s <= StatusClosed
}

func (s Status) String() string {
	switch s {
	case StatusActivated:
		return "Activated"
	case StatusPaused:
		return "Paused"
	case StatusClosed:
		return "Closed"
	default:
		return fmt.Sprintf("Status(%d)", uint8(s))
	}
}

// Token is a registered bridge token. ID is the account of the fungible token
// contract; Price is quoted in the same base as the collateral token's price.
type Token struct {
	ID       string
	Symbol   string
	Status   Status
	Price    *big.Int
	Decimals uint32
}
