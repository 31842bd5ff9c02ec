// Package appchain implements the per-appchain lifecycle, staking and
// validator-set snapshot engine of the relay hub.
package appchain

import (
	"fmt"
	"math/big"
)

// Status is the lifecycle state of an appchain.
type Status uint8

const (
	StatusAuditing Status = iota
	StatusVoting
	StatusStaging
	StatusBooting
	StatusFrozen
)

// Valid reports whether the status value is within the supported range.
func (s Status) Valid() bool {
	return s <= StatusFrozen
}

func (s Status) String() string {
	switch s {
	case StatusAuditing:
		return "Auditing"
	case StatusVoting:
		return "Voting"
	case StatusStaging:
		return "Staging"
	case StatusBooting:
		return "Booting"
	case StatusFrozen:
		return "Frozen"
	default:
		return fmt.Sprintf("Status(%d)", uint8(s))
	}
}

// Delegator is a delegation record owned by a validator.
type Delegator struct {
	DelegatorID string
	AccountID   string
	Amount      *big.Int
	BlockHeight uint64
}

// Validator is the staking record of a single appchain validator. Delegators
// are stored separately under their own keys; only ids are tracked on the
// validator's delegator index.
type Validator struct {
	ValidatorID string
	AccountID   string
	Amount      *big.Int
	BlockHeight uint64
	Note        string
}

// ValidatorSummary is the per-validator entry of a snapshot. Weight includes
// delegated stake.
type ValidatorSummary struct {
	ValidatorID string
	AccountID   string
	Weight      *big.Int
	BlockHeight uint64
	Delegators  []Delegator
}

// ValidatorSet is a validator-set snapshot: SeqNum is the period number at
// creation time, SetID the validators nonce the set was produced under.
// Validators are ordered weight-descending, ties broken by id ascending.
type ValidatorSet struct {
	SeqNum     uint32
	SetID      uint32
	Validators []ValidatorSummary
}

// Locked records a completed inbound token lock.
type Locked struct {
	SeqNum      uint32
	TokenID     string
	SenderID    string
	Receiver    string
	Amount      *big.Int
	BlockHeight uint64
}

// Burned records a completed native-token burn.
type Burned struct {
	SeqNum      uint32
	SenderID    string
	Receiver    string
	Amount      *big.Int
	BlockHeight uint64
}

// FactKind tags a fact-log entry.
type FactKind uint8

const (
	FactUpdateValidatorSet FactKind = iota
	FactLockToken
	FactBurnNativeToken
)

// Fact is an append-only log entry; exactly one payload field matching Kind
// is set.
type Fact struct {
	Kind         FactKind
	ValidatorSet *ValidatorSet
	Locked       *Locked
	Burned       *Burned
}

// State is the persisted per-appchain record. Collections owned by the
// appchain (validators, removed validators, facts, histories, locked totals)
// live under their own key families and are not embedded here.
type State struct {
	AppchainID            string
	Status                Status
	ValidatorsNonce       uint32
	ValidatorsTimestamp   uint64
	ValidatorSetTimestamp uint64
	BootingTimestamp      uint64
	StakedBalance         *big.Int
	UpvoteBalance         *big.Int
	DownvoteBalance       *big.Int
	MessageNonce          uint64
	ProverID              string
}

// NewState returns the initial state of a freshly registered appchain.
func NewState(appchainID string) *State {
	return &State{
		AppchainID:      appchainID,
		Status:          StatusAuditing,
		StakedBalance:   new(big.Int),
		UpvoteBalance:   new(big.Int),
		DownvoteBalance: new(big.Int),
	}
}
