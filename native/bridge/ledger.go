package bridge

import (
	"math/big"

	"relayhub/codec"
	"relayhub/core/errors"
)

// Storage is the persistence surface the ledger operates on.
type Storage interface {
	Put(key []byte, value []byte) error
	Get(key []byte) ([]byte, bool, error)
	Delete(key []byte) error
	AppendID(key []byte, id string) error
	IDs(key []byte) ([]string, error)
}

// Ledger maintains the bridge token registry and the per-appchain bridging
// permissions.
type Ledger struct {
	store Storage
}

// NewLedger constructs the ledger over the given storage.
func NewLedger(store Storage) *Ledger {
	return &Ledger{store: store}
}

func encodeToken(t *Token) []byte {
	w := codec.NewWriter()
	w.WriteString(t.ID)
	w.WriteString(t.Symbol)
	w.WriteU8(uint8(t.Status))
	w.WriteU128(t.Price)
	w.WriteU32(t.Decimals)
	return w.Bytes()
}

func decodeToken(data []byte) (*Token, error) {
	r := codec.NewReader(data)
	t := &Token{}
	var err error
	if t.ID, err = r.ReadString(); err != nil {
		return nil, err
	}
	if t.Symbol, err = r.ReadString(); err != nil {
		return nil, err
	}
	status, err := r.ReadU8()
	if err != nil {
		return nil, err
	}
	t.Status = Status(status)
	if !t.Status.Valid() {
		return nil, &codec.DecodeError{Offset: r.Offset(), Reason: "invalid bridge token status"}
	}
	if t.Price, err = r.ReadU128(); err != nil {
		return nil, err
	}
	if t.Decimals, err = r.ReadU32(); err != nil {
		return nil, err
	}
	if err := r.Done(); err != nil {
		return nil, err
	}
	return t, nil
}

// Register adds a token to the registry in Activated state.
func (l *Ledger) Register(tokenID, symbol string, price *big.Int, decimals uint32) error {
	if tokenID == "" {
		return errors.New(errors.CodeBadMessage, "token id must not be empty")
	}
	if _, ok, err := l.store.Get(tokenKey(tokenID)); err != nil {
		return err
	} else if ok {
		return errors.Newf(errors.CodeDuplicateBridgeToken, "token %q is already registered", tokenID)
	}
	if price == nil {
		price = new(big.Int)
	}
	t := &Token{
		ID:       tokenID,
		Symbol:   symbol,
		Status:   StatusActivated,
		Price:    new(big.Int).Set(price),
		Decimals: decimals,
	}
	if err := l.store.Put(tokenKey(tokenID), encodeToken(t)); err != nil {
		return err
	}
	return l.store.AppendID(tokenIDsKey, tokenID)
}

// Token loads a registered token.
func (l *Ledger) Token(tokenID string) (*Token, error) {
	data, ok, err := l.store.Get(tokenKey(tokenID))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.Newf(errors.CodeBridgeTokenNotFound, "token %q is not registered", tokenID)
	}
	return decodeToken(data)
}

// Tokens returns all registered tokens in registration order.
func (l *Ledger) Tokens() ([]*Token, error) {
	ids, err := l.store.IDs(tokenIDsKey)
	if err != nil {
		return nil, err
	}
	out := make([]*Token, 0, len(ids))
	for _, id := range ids {
		t, err := l.Token(id)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// SetPrice updates a token's quoted price.
func (l *Ledger) SetPrice(tokenID string, price *big.Int) error {
	t, err := l.Token(tokenID)
	if err != nil {
		return err
	}
	t.Price = new(big.Int).Set(price)
	return l.store.Put(tokenKey(tokenID), encodeToken(t))
}

// SetStatus moves a token between Activated, Paused and Closed. Closed is
// terminal.
func (l *Ledger) SetStatus(tokenID string, to Status) error {
	t, err := l.Token(tokenID)
	if err != nil {
		return err
	}
	if t.Status == StatusClosed {
		return errors.Newf(errors.CodeInvalidStatus, "token %q is closed", tokenID)
	}
	if !to.Valid() {
		return errors.Newf(errors.CodeInvalidStatus, "unknown bridge token status %d", uint8(to))
	}
	t.Status = to
	return l.store.Put(tokenKey(tokenID), encodeToken(t))
}

// RequireActive loads a token and aborts unless it is bridgeable.
func (l *Ledger) RequireActive(tokenID string) (*Token, error) {
	t, err := l.Token(tokenID)
	if err != nil {
		return nil, err
	}
	if t.Status != StatusActivated {
		return nil, errors.Newf(errors.CodeBridgeNotActive, "token %q is %s", tokenID, t.Status)
	}
	return t, nil
}

// SetPermitted grants or revokes bridging of a token to an appchain.
func (l *Ledger) SetPermitted(tokenID, appchainID string, permitted bool) error {
	if _, err := l.Token(tokenID); err != nil {
		return err
	}
	if !permitted {
		return l.store.Delete(permittedKey(tokenID, appchainID))
	}
	return l.store.Put(permittedKey(tokenID, appchainID), []byte{1})
}

// IsPermitted reports whether a token may bridge to an appchain.
func (l *Ledger) IsPermitted(tokenID, appchainID string) (bool, error) {
	_, ok, err := l.store.Get(permittedKey(tokenID, appchainID))
	return ok, err
}
