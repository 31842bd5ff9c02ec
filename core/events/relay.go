package events

import "math/big"

const (
	TypeAppchainRegistered    = "appchain.registered"
	TypeAppchainStatusChanged = "appchain.status_changed"
	TypeAppchainRemoved       = "appchain.removed"
	TypeStaked                = "appchain.staked"
	TypeUnstaked              = "appchain.unstaked"
	TypeValidatorSetUpdated   = "appchain.validator_set_updated"
	TypeTokenLocked           = "bridge.token_locked"
	TypeTokenUnlocked         = "bridge.token_unlocked"
	TypeNativeTokenMinted     = "bridge.native_minted"
	TypeNativeTokenBurned     = "bridge.native_burned"
	TypeMessageExecuted       = "relay.message_executed"
)

type AppchainRegistered struct {
	AppchainID string
	Founder    string
	BondTokens *big.Int
}

func (AppchainRegistered) EventType() string { return TypeAppchainRegistered }

type AppchainStatusChanged struct {
	AppchainID string
	From       string
	To         string
}

func (AppchainStatusChanged) EventType() string { return TypeAppchainStatusChanged }

type AppchainRemoved struct {
	AppchainID string
}

func (AppchainRemoved) EventType() string { return TypeAppchainRemoved }

type Staked struct {
	AppchainID  string
	ValidatorID string
	AccountID   string
	Amount      *big.Int
}

func (Staked) EventType() string { return TypeStaked }

type Unstaked struct {
	AppchainID  string
	ValidatorID string
	AccountID   string
	Amount      *big.Int
}

func (Unstaked) EventType() string { return TypeUnstaked }

type ValidatorSetUpdated struct {
	AppchainID string
	SeqNum     uint32
	SetID      uint32
}

func (ValidatorSetUpdated) EventType() string { return TypeValidatorSetUpdated }

type TokenLocked struct {
	AppchainID string
	TokenID    string
	Sender     string
	Receiver   string
	Amount     *big.Int
}

func (TokenLocked) EventType() string { return TypeTokenLocked }

type TokenUnlocked struct {
	AppchainID string
	TokenID    string
	Receiver   string
	Amount     *big.Int
}

func (TokenUnlocked) EventType() string { return TypeTokenUnlocked }

type NativeTokenMinted struct {
	AppchainID string
	Receiver   string
	Amount     *big.Int
}

func (NativeTokenMinted) EventType() string { return TypeNativeTokenMinted }

type NativeTokenBurned struct {
	AppchainID string
	Sender     string
	Receiver   string
	Amount     *big.Int
}

func (NativeTokenBurned) EventType() string { return TypeNativeTokenBurned }

type MessageExecuted struct {
	AppchainID string
	Nonce      uint64
}

func (MessageExecuted) EventType() string { return TypeMessageExecuted }
