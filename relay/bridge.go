package relay

import (
	"math/big"

	"relayhub/codec"
	"relayhub/core/errors"
	"relayhub/core/host"
	"relayhub/native/appchain"
	"relayhub/native/bridge"
)

// RegisterBridgeToken adds a fungible token to the bridge registry.
func (r *Registry) RegisterBridgeToken(tokenID, symbol string, price *big.Int, decimals uint32) error {
	if err := r.requireOwner(); err != nil {
		return err
	}
	if err := r.bridge.Register(tokenID, symbol, price, decimals); err != nil {
		return err
	}
	r.log.Info("bridge token registered", "token", tokenID, "symbol", symbol)
	return nil
}

// PauseBridgeToken suspends bridging of a token.
func (r *Registry) PauseBridgeToken(tokenID string) error {
	if err := r.requireOwner(); err != nil {
		return err
	}
	return r.bridge.SetStatus(tokenID, bridge.StatusPaused)
}

// ResumeBridgeToken reactivates a paused token.
func (r *Registry) ResumeBridgeToken(tokenID string) error {
	if err := r.requireOwner(); err != nil {
		return err
	}
	return r.bridge.SetStatus(tokenID, bridge.StatusActivated)
}

// CloseBridgeToken retires a token permanently.
func (r *Registry) CloseBridgeToken(tokenID string) error {
	if err := r.requireOwner(); err != nil {
		return err
	}
	return r.bridge.SetStatus(tokenID, bridge.StatusClosed)
}

// SetBridgePermitted switches bridging of a token toward an appchain.
func (r *Registry) SetBridgePermitted(tokenID, appchainID string, permitted bool) error {
	if err := r.requireOwner(); err != nil {
		return err
	}
	return r.bridge.SetPermitted(tokenID, appchainID, permitted)
}

// SetBridgeTokenPrice is the oracle write of a bridge token price.
func (r *Registry) SetBridgeTokenPrice(tokenID string, price *big.Int) error {
	if err := r.requireOwner(); err != nil {
		return err
	}
	return r.bridge.SetPrice(tokenID, price)
}

// BridgeToken returns a registered bridge token.
func (r *Registry) BridgeToken(tokenID string) (*bridge.Token, error) {
	return r.bridge.Token(tokenID)
}

// RegisterNativeToken binds an appchain to the wrapped token contract the
// relay mints and burns on its behalf.
func (r *Registry) RegisterNativeToken(appchainID, tokenID string) error {
	if err := r.requireOwner(); err != nil {
		return err
	}
	if _, err := r.appchains.Metadata(appchainID); err != nil {
		return err
	}
	if ok, err := r.state.Has(nativeTokenKey(appchainID)); err != nil {
		return err
	} else if ok {
		return errors.Newf(errors.CodeDuplicateNativeToken, "appchain %q already has a native token", appchainID)
	}
	return r.state.Put(nativeTokenKey(appchainID), []byte(tokenID))
}

// NativeToken returns the wrapped token contract of an appchain.
func (r *Registry) NativeToken(appchainID string) (string, error) {
	data, ok, err := r.state.Get(nativeTokenKey(appchainID))
	if err != nil {
		return "", err
	}
	if !ok {
		return "", errors.Newf(errors.CodeNativeTokenNotFound, "appchain %q has no native token", appchainID)
	}
	return string(data), nil
}

// BridgeAllowedAmount computes how many units of a token may still be locked
// toward an appchain under the staked-collateral limit.
func (r *Registry) BridgeAllowedAmount(appchainID, tokenID string) (*big.Int, error) {
	st, err := r.appchains.State(appchainID)
	if err != nil {
		return nil, err
	}
	if st.Status != appchain.StatusBooting {
		return nil, errors.Newf(errors.CodeInvalidStatus, "appchain %q is not booted", appchainID)
	}
	token, err := r.bridge.RequireActive(tokenID)
	if err != nil {
		return nil, err
	}
	if ok, err := r.bridge.IsPermitted(tokenID, appchainID); err != nil {
		return nil, err
	} else if !ok {
		return nil, errors.Newf(errors.CodeBridgeNotActive, "token %q is not permitted toward %q", tokenID, appchainID)
	}
	locked, err := r.lockedValues(appchainID)
	if err != nil {
		return nil, err
	}
	settings, err := r.Settings()
	if err != nil {
		return nil, err
	}
	return bridge.AllowedAmount(st.StakedBalance, settings.CollateralPrice, settings.BridgeLimitRatio, locked, token), nil
}

// lockedValues collects the locked totals of every token bridged toward the
// appchain together with their prices and decimals.
func (r *Registry) lockedValues(appchainID string) ([]bridge.LockedValue, error) {
	tokenIDs, err := r.appchains.LockedTokenIDs(appchainID)
	if err != nil {
		return nil, err
	}
	out := make([]bridge.LockedValue, 0, len(tokenIDs))
	for _, id := range tokenIDs {
		amount, err := r.appchains.LockedAmount(appchainID, id)
		if err != nil {
			return nil, err
		}
		token, err := r.bridge.Token(id)
		if err != nil {
			return nil, err
		}
		out = append(out, bridge.LockedValue{
			Amount:   amount,
			Price:    token.Price,
			Decimals: token.Decimals,
		})
	}
	return out, nil
}

// lockToken handles the "lock_token" transfer-call: the predecessor token's
// funds stay in relay custody and the lock lands on the fact log.
func (r *Registry) lockToken(senderID string, amount *big.Int, appchainID, receiver string) error {
	tokenID := r.env.Predecessor()
	allowed, err := r.BridgeAllowedAmount(appchainID, tokenID)
	if err != nil {
		return err
	}
	if allowed.Cmp(amount) < 0 {
		return errors.Newf(errors.CodeLimitExceeded, "lock of %s exceeds the allowed %s for token %q", amount, allowed, tokenID)
	}
	if err := r.appchains.LockToken(appchainID, tokenID, senderID, receiver, amount); err != nil {
		return err
	}
	locksTotal.Inc()
	return nil
}

// BurnNativeToken burns the caller's wrapped tokens so the matching native
// amount is released on the appchain. Requires a one-yocto deposit as proof
// of intent; the fact only lands once the burn settled.
func (r *Registry) BurnNativeToken(appchainID, receiver string, amount *big.Int) error {
	if r.env.AttachedDeposit().Cmp(oneYocto) != 0 {
		return errors.New(errors.CodeInsufficientDeposit, "burn requires exactly one yocto attached")
	}
	if amount == nil || amount.Sign() <= 0 {
		return errors.New(errors.CodeBadMessage, "burn amount must be positive")
	}
	st, err := r.appchains.State(appchainID)
	if err != nil {
		return err
	}
	if st.Status != appchain.StatusBooting {
		return errors.Newf(errors.CodeInvalidStatus, "appchain %q is not booted", appchainID)
	}
	tokenID, err := r.NativeToken(appchainID)
	if err != nil {
		return err
	}
	sender := r.env.Predecessor()
	r.env.Dispatch(host.Call{
		Receiver: tokenID,
		Method:   "burn",
		Args:     encodeTransferArgs(sender, amount),
		Then: &host.Callback{
			Method: methodResolveNativeBurn,
			Args:   encodeBurnArgs(appchainID, sender, receiver, amount),
		},
	})
	return nil
}

func (r *Registry) resolveNativeBurn(args []byte, result host.Result) error {
	appchainID, sender, receiver, amount, err := decodeBurnArgs(args)
	if err != nil {
		return err
	}
	if !result.Successful {
		r.log.Warn("native burn failed", "appchain", appchainID, "sender", sender)
		return nil
	}
	if err := r.appchains.AppendBurnFact(appchainID, sender, receiver, amount); err != nil {
		return err
	}
	burnsTotal.Inc()
	return nil
}

func encodeBurnArgs(appchainID, sender, receiver string, amount *big.Int) []byte {
	w := codec.NewWriter()
	w.WriteString(appchainID)
	w.WriteString(sender)
	w.WriteString(receiver)
	w.WriteU128(amount)
	return w.Bytes()
}

func decodeBurnArgs(args []byte) (appchainID, sender, receiver string, amount *big.Int, err error) {
	r := codec.NewReader(args)
	if appchainID, err = r.ReadString(); err != nil {
		return
	}
	if sender, err = r.ReadString(); err != nil {
		return
	}
	if receiver, err = r.ReadString(); err != nil {
		return
	}
	if amount, err = r.ReadU128(); err != nil {
		return
	}
	err = r.Done()
	return
}
