package relay

import (
	"math/big"

	"relayhub/codec"
	"relayhub/core/errors"
	"relayhub/core/events"
	"relayhub/core/host"
	"relayhub/native/appchain"
)

// Continuation methods the host invokes on promise resolution.
const (
	methodResolveUnstake          = "resolve_unstake"
	methodResolveRemoveAppchain   = "resolve_remove_appchain"
	methodResolveActivateAppchain = "resolve_activate_appchain"
	methodCheckStorageDeposit     = "check_bridge_token_storage_deposit"
	methodResolveStorageDeposit   = "resolve_bridge_token_storage_deposit"
	methodResolveUnlockToken      = "resolve_unlock_token"
	methodResolveNativeMint       = "resolve_native_mint"
	methodResolveNativeBurn       = "resolve_native_burn"
)

// Resolve routes a promise resolution to its continuation. Only the relay's
// own account may invoke it.
func (r *Registry) Resolve(method string, args []byte, result host.Result) error {
	if err := r.requireSelf(); err != nil {
		return err
	}
	switch method {
	case methodResolveUnstake:
		return r.resolveUnstake(args, result)
	case methodResolveRemoveAppchain:
		return r.resolveRemoveAppchain(args, result)
	case methodResolveActivateAppchain:
		return r.resolveActivateAppchain(args, result)
	case methodCheckStorageDeposit:
		return r.checkBridgeTokenStorageDeposit(args, result)
	case methodResolveStorageDeposit:
		return r.resolveBridgeTokenStorageDeposit(args, result)
	case methodResolveUnlockToken:
		return r.resolveUnlockToken(args, result)
	case methodResolveNativeMint:
		return r.resolveNativeMint(args, result)
	case methodResolveNativeBurn:
		return r.resolveNativeBurn(args, result)
	default:
		return errors.Newf(errors.CodeInternal, "unknown continuation %q", method)
	}
}

// Relay verifies and executes a batch of appchain messages. Verification and
// decoding are synchronous and abort the whole call; execution dispatches one
// external call per fresh message, head first, each carrying a fixed slice of
// the attached deposit for storage registration. Commits happen only in the
// continuations, so replaying a partially failed batch is safe.
func (r *Registry) Relay(appchainID string, encodedMessages, headerPartial, leafProof []byte, mmrRoot [32]byte) error {
	st, err := r.appchains.State(appchainID)
	if err != nil {
		return err
	}
	if st.Status != appchain.StatusBooting {
		return errors.Newf(errors.CodeInvalidStatus, "appchain %q is not booted", appchainID)
	}
	if err := verifyRelay(encodedMessages, headerPartial, leafProof, mmrRoot); err != nil {
		return err
	}
	messages, err := codec.DecodeMessages(encodedMessages)
	if err != nil {
		return errors.Newf(errors.CodeDecode, "messages: %s", err)
	}

	fresh := make([]codec.Message, 0, len(messages))
	for _, msg := range messages {
		used, err := r.appchains.IsMessageUsed(appchainID, msg.Nonce)
		if err != nil {
			return err
		}
		if !used {
			fresh = append(fresh, msg)
		}
	}
	needed := new(big.Int).Mul(StorageDepositAmount, big.NewInt(int64(len(fresh))))
	if r.env.AttachedDeposit().Cmp(needed) < 0 {
		return errors.Newf(errors.CodeInsufficientDeposit, "batch needs %s attached, got %s", needed, r.env.AttachedDeposit())
	}

	for _, msg := range fresh {
		if err := r.dispatchMessage(appchainID, msg); err != nil {
			return err
		}
	}
	relayedBatches.Inc()
	messagesQueued.Add(float64(len(fresh)))
	r.log.Info("batch relayed", "appchain", appchainID, "messages", len(messages), "fresh", len(fresh))
	return nil
}

func (r *Registry) dispatchMessage(appchainID string, msg codec.Message) error {
	switch msg.Kind {
	case codec.PayloadBurnAsset:
		return r.dispatchUnlock(appchainID, msg.Nonce, msg.BurnAsset)
	case codec.PayloadLock:
		return r.dispatchMint(appchainID, msg.Nonce, msg.Lock)
	default:
		return errors.Newf(errors.CodeDecode, "unknown payload kind %d", msg.Kind)
	}
}

// dispatchUnlock starts the unlock chain of a BurnAsset message: query the
// receiver's storage registration on the token contract, then transfer,
// depositing storage first when needed.
func (r *Registry) dispatchUnlock(appchainID string, nonce uint64, payload *codec.BurnAssetPayload) error {
	if _, err := r.bridge.Token(payload.TokenID); err != nil {
		return err
	}
	locked, err := r.appchains.LockedAmount(appchainID, payload.TokenID)
	if err != nil {
		return err
	}
	if locked.Cmp(payload.Amount) < 0 {
		return errors.Newf(errors.CodeInsufficientLocked, "appchain %q holds %s of token %q, message asks %s", appchainID, locked, payload.TokenID, payload.Amount)
	}
	args := encodeUnlockArgs(appchainID, payload.TokenID, payload.ReceiverID, payload.Amount, nonce, StorageDepositAmount)
	queryArgs := codec.NewWriter()
	queryArgs.WriteString(payload.ReceiverID)
	r.env.Dispatch(host.Call{
		Receiver: payload.TokenID,
		Method:   "storage_balance_of",
		Args:     queryArgs.Bytes(),
		Then:     &host.Callback{Method: methodCheckStorageDeposit, Args: args},
	})
	return nil
}

// dispatchMint executes a Lock message by minting the appchain's wrapped
// token on the settlement chain.
func (r *Registry) dispatchMint(appchainID string, nonce uint64, payload *codec.LockPayload) error {
	tokenID, err := r.NativeToken(appchainID)
	if err != nil {
		return err
	}
	r.env.Dispatch(host.Call{
		Receiver: tokenID,
		Method:   "mint",
		Args:     encodeTransferArgs(payload.ReceiverID, payload.Amount),
		Deposit:  StorageDepositAmount,
		Then: &host.Callback{
			Method: methodResolveNativeMint,
			Args:   encodeMintArgs(appchainID, payload.Sender, payload.ReceiverID, payload.Amount, nonce),
		},
	})
	return nil
}

// checkBridgeTokenStorageDeposit continues the unlock chain with the
// receiver's storage state known: registered receivers get the transfer
// directly and the reserved deposit back to the signer; unregistered ones get
// a storage deposit first.
func (r *Registry) checkBridgeTokenStorageDeposit(args []byte, result host.Result) error {
	u, err := decodeUnlockArgs(args)
	if err != nil {
		return err
	}
	if !result.Successful {
		r.log.Warn("storage query failed", "appchain", u.appchainID, "token", u.tokenID)
		messagesFailed.Inc()
		return nil
	}
	if registered(result.Value) {
		r.env.Transfer(r.env.Signer(), u.deposit)
		r.dispatchTransfer(u, args)
		return nil
	}
	depositArgs := codec.NewWriter()
	depositArgs.WriteString(u.receiver)
	r.env.Dispatch(host.Call{
		Receiver: u.tokenID,
		Method:   "storage_deposit",
		Args:     depositArgs.Bytes(),
		Deposit:  u.deposit,
		Then:     &host.Callback{Method: methodResolveStorageDeposit, Args: args},
	})
	return nil
}

// registered interprets a storage_balance_of result: an empty value means the
// account is unknown to the token contract, otherwise the value carries the
// account's storage balance.
func registered(value []byte) bool {
	if len(value) == 0 {
		return false
	}
	balance, err := codec.NewReader(value).ReadU128()
	if err != nil {
		return false
	}
	return balance.Sign() > 0
}

// resolveBridgeTokenStorageDeposit continues after the storage deposit: on
// success the transfer follows; on failure the reserved deposit goes back to
// the signer, as the only external failure that moves funds.
func (r *Registry) resolveBridgeTokenStorageDeposit(args []byte, result host.Result) error {
	u, err := decodeUnlockArgs(args)
	if err != nil {
		return err
	}
	if !result.Successful {
		r.env.Transfer(r.env.Signer(), u.deposit)
		messagesFailed.Inc()
		return nil
	}
	r.dispatchTransfer(u, args)
	return nil
}

func (r *Registry) dispatchTransfer(u *unlockArgs, args []byte) {
	r.env.Dispatch(host.Call{
		Receiver: u.tokenID,
		Method:   "ft_transfer",
		Args:     encodeTransferArgs(u.receiver, u.amount),
		Deposit:  oneYocto,
		Then:     &host.Callback{Method: methodResolveUnlockToken, Args: args},
	})
}

// resolveUnlockToken commits a BurnAsset message once the transfer settled:
// the locked total shrinks and the nonce is consumed. Failure commits
// nothing.
func (r *Registry) resolveUnlockToken(args []byte, result host.Result) error {
	u, err := decodeUnlockArgs(args)
	if err != nil {
		return err
	}
	if !result.Successful {
		r.log.Warn("unlock transfer failed", "appchain", u.appchainID, "token", u.tokenID, "nonce", u.nonce)
		messagesFailed.Inc()
		return nil
	}
	if err := r.appchains.UnlockToken(u.appchainID, u.tokenID, u.receiver, u.amount); err != nil {
		return err
	}
	unlocksTotal.Inc()
	return r.commitMessage(u.appchainID, u.nonce)
}

// resolveNativeMint commits a Lock message once the mint settled.
func (r *Registry) resolveNativeMint(args []byte, result host.Result) error {
	appchainID, _, receiver, amount, nonce, err := decodeMintArgs(args)
	if err != nil {
		return err
	}
	if !result.Successful {
		r.log.Warn("native mint failed", "appchain", appchainID, "nonce", nonce)
		messagesFailed.Inc()
		return nil
	}
	r.emitter.Emit(events.NativeTokenMinted{
		AppchainID: appchainID,
		Receiver:   receiver,
		Amount:     amount,
	})
	return r.commitMessage(appchainID, nonce)
}

// commitMessage consumes a message nonce and advances the appchain's message
// counter. Replays of an already consumed nonce are no-ops.
func (r *Registry) commitMessage(appchainID string, nonce uint64) error {
	fresh, err := r.appchains.UseMessage(appchainID, nonce)
	if err != nil {
		return err
	}
	if !fresh {
		return nil
	}
	st, err := r.appchains.State(appchainID)
	if err != nil {
		return err
	}
	st.MessageNonce++
	if err := r.appchains.SaveState(st); err != nil {
		return err
	}
	r.emitter.Emit(events.MessageExecuted{AppchainID: appchainID, Nonce: nonce})
	messagesExecuted.Inc()
	return nil
}

type unlockArgs struct {
	appchainID string
	tokenID    string
	receiver   string
	amount     *big.Int
	nonce      uint64
	deposit    *big.Int
}

func encodeUnlockArgs(appchainID, tokenID, receiver string, amount *big.Int, nonce uint64, deposit *big.Int) []byte {
	w := codec.NewWriter()
	w.WriteString(appchainID)
	w.WriteString(tokenID)
	w.WriteString(receiver)
	w.WriteU128(amount)
	w.WriteU64(nonce)
	w.WriteU128(deposit)
	return w.Bytes()
}

func decodeUnlockArgs(args []byte) (*unlockArgs, error) {
	r := codec.NewReader(args)
	u := &unlockArgs{}
	var err error
	if u.appchainID, err = r.ReadString(); err != nil {
		return nil, err
	}
	if u.tokenID, err = r.ReadString(); err != nil {
		return nil, err
	}
	if u.receiver, err = r.ReadString(); err != nil {
		return nil, err
	}
	if u.amount, err = r.ReadU128(); err != nil {
		return nil, err
	}
	if u.nonce, err = r.ReadU64(); err != nil {
		return nil, err
	}
	if u.deposit, err = r.ReadU128(); err != nil {
		return nil, err
	}
	if err := r.Done(); err != nil {
		return nil, err
	}
	return u, nil
}

func encodeMintArgs(appchainID, sender, receiver string, amount *big.Int, nonce uint64) []byte {
	w := codec.NewWriter()
	w.WriteString(appchainID)
	w.WriteString(sender)
	w.WriteString(receiver)
	w.WriteU128(amount)
	w.WriteU64(nonce)
	return w.Bytes()
}

func decodeMintArgs(args []byte) (appchainID, sender, receiver string, amount *big.Int, nonce uint64, err error) {
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
	if nonce, err = r.ReadU64(); err != nil {
		return
	}
	err = r.Done()
	return
}
