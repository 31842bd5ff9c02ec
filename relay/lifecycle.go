package relay

import (
	"math/big"
	"strings"

	"relayhub/codec"
	"relayhub/core/errors"
	"relayhub/core/host"
	"relayhub/native/appchain"
)

// FtOnTransfer is the transfer-call hook invoked by token contracts. The
// predecessor is the token that moved funds; msg selects the operation.
// Returns the amount to hand back to the token contract: zero accepts the
// whole transfer.
func (r *Registry) FtOnTransfer(senderID string, amount *big.Int, msg string) (*big.Int, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, errors.New(errors.CodeBadMessage, "transfer amount must be positive")
	}
	parts := strings.Split(msg, ",")
	switch parts[0] {
	case "register_appchain":
		if len(parts) != 4 {
			return nil, errors.Newf(errors.CodeBadMessage, "malformed register_appchain message %q", msg)
		}
		return r.acceptOrReject(r.registerAppchain(senderID, amount, parts[1], parts[2], parts[3]), amount)
	case "staking":
		if len(parts) != 3 {
			return nil, errors.Newf(errors.CodeBadMessage, "malformed staking message %q", msg)
		}
		return r.acceptOrReject(r.stakeNew(senderID, amount, parts[1], parts[2]), amount)
	case "staking_more":
		if len(parts) != 2 {
			return nil, errors.Newf(errors.CodeBadMessage, "malformed staking_more message %q", msg)
		}
		return r.acceptOrReject(r.stakeMore(senderID, amount, parts[1]), amount)
	case "lock_token":
		if len(parts) != 3 {
			return nil, errors.Newf(errors.CodeBadMessage, "malformed lock_token message %q", msg)
		}
		return r.acceptOrReject(r.lockToken(senderID, amount, parts[1], parts[2]), amount)
	default:
		return nil, errors.Newf(errors.CodeBadMessage, "unknown transfer message %q", msg)
	}
}

// acceptOrReject translates an operation outcome into transfer-call
// semantics: success keeps the funds, a coded failure aborts so the token
// contract rolls the transfer back.
func (r *Registry) acceptOrReject(err error, amount *big.Int) (*big.Int, error) {
	if err != nil {
		r.log.Warn("transfer rejected", "amount", amount, "code", errors.CodeOf(err), "err", err)
		return nil, err
	}
	return new(big.Int), nil
}

func (r *Registry) requireCollateralToken() (*Settings, error) {
	s, err := r.Settings()
	if err != nil {
		return nil, err
	}
	if r.env.Predecessor() != s.TokenContractID {
		return nil, errors.Newf(errors.CodeNotOwner, "token %q is not the collateral token", r.env.Predecessor())
	}
	return s, nil
}

func (r *Registry) registerAppchain(founder string, bond *big.Int, appchainID, websiteURL, githubAddress string) error {
	if _, err := r.requireCollateralToken(); err != nil {
		return err
	}
	if err := r.appchains.Register(appchainID, founder, websiteURL, githubAddress, bond); err != nil {
		return err
	}
	r.log.Info("appchain registered", "appchain", appchainID, "founder", founder, "bond", bond)
	return nil
}

func (r *Registry) stakeNew(account string, amount *big.Int, appchainID, validatorID string) error {
	s, err := r.requireCollateralToken()
	if err != nil {
		return err
	}
	if amount.Cmp(s.MinimumStaking) < 0 {
		return errors.Newf(errors.CodeInsufficientStake, "staking %s is below the minimum %s", amount, s.MinimumStaking)
	}
	if err := r.appchains.StakeNew(appchainID, validatorID, account, amount); err != nil {
		return err
	}
	stakingOps.Inc()
	return nil
}

func (r *Registry) stakeMore(account string, amount *big.Int, appchainID string) error {
	s, err := r.requireCollateralToken()
	if err != nil {
		return err
	}
	if amount.Cmp(s.MinimumStaking) < 0 {
		return errors.Newf(errors.CodeInsufficientStake, "staking %s is below the minimum %s", amount, s.MinimumStaking)
	}
	validatorID, err := r.appchains.ValidatorIDByAccount(appchainID, account)
	if err != nil {
		return err
	}
	if validatorID == "" {
		return errors.Newf(errors.CodeValidatorNotFound, "account %q has no stake on appchain %q", account, appchainID)
	}
	if err := r.appchains.StakeMore(appchainID, validatorID, account, amount); err != nil {
		return err
	}
	stakingOps.Inc()
	return nil
}

// UpdateAppchain lets the founder revise the descriptive fields while the
// appchain still audits.
func (r *Registry) UpdateAppchain(appchainID, websiteURL, githubAddress, githubRelease, commitID, email, rpcEndpoint string) error {
	meta, err := r.appchains.Metadata(appchainID)
	if err != nil {
		return err
	}
	if r.env.Predecessor() != meta.FounderID {
		return errors.Newf(errors.CodeNotFounder, "caller %q is not the founder of %q", r.env.Predecessor(), appchainID)
	}
	st, err := r.appchains.State(appchainID)
	if err != nil {
		return err
	}
	if st.Status != appchain.StatusAuditing {
		return errors.Newf(errors.CodeInvalidStatus, "appchain %q is no longer auditing", appchainID)
	}
	meta.UpdateBasicInfo(websiteURL, githubAddress, githubRelease, commitID, email, rpcEndpoint)
	return r.appchains.SaveMetadata(meta)
}

// Unstaking dispatches the collateral refund of the caller's validator. The
// removal itself only commits in the continuation when the transfer settled.
func (r *Registry) Unstaking(appchainID string) error {
	account := r.env.Predecessor()
	validatorID, err := r.appchains.ValidatorIDByAccount(appchainID, account)
	if err != nil {
		return err
	}
	if validatorID == "" {
		return errors.Newf(errors.CodeValidatorNotFound, "account %q has no stake on appchain %q", account, appchainID)
	}
	v, err := r.appchains.Validator(appchainID, validatorID)
	if err != nil {
		return err
	}
	st, err := r.appchains.State(appchainID)
	if err != nil {
		return err
	}
	if st.Status != appchain.StatusStaging && st.Status != appchain.StatusBooting {
		return errors.Newf(errors.CodeInvalidStatus, "appchain %q does not release stake while %s", appchainID, st.Status)
	}
	settings, err := r.Settings()
	if err != nil {
		return err
	}
	r.env.Dispatch(host.Call{
		Receiver: settings.TokenContractID,
		Method:   "ft_transfer",
		Args:     encodeTransferArgs(v.AccountID, v.Amount),
		Deposit:  oneYocto,
		Then: &host.Callback{
			Method: methodResolveUnstake,
			Args:   encodeAppchainValidatorArgs(appchainID, validatorID),
		},
	})
	return nil
}

func (r *Registry) resolveUnstake(args []byte, result host.Result) error {
	appchainID, validatorID, err := decodeAppchainValidatorArgs(args)
	if err != nil {
		return err
	}
	if !result.Successful {
		r.log.Warn("unstake refund failed", "appchain", appchainID, "validator", validatorID)
		return nil
	}
	_, delegators, err := r.appchains.RemoveValidator(appchainID, validatorID, "")
	if err != nil {
		return err
	}
	settings, err := r.Settings()
	if err != nil {
		return err
	}
	for i := range delegators {
		r.env.Dispatch(host.Call{
			Receiver: settings.TokenContractID,
			Method:   "ft_transfer",
			Args:     encodeTransferArgs(delegators[i].AccountID, delegators[i].Amount),
			Deposit:  oneYocto,
		})
	}
	return nil
}

// PassAppchain moves an audited appchain into Voting.
func (r *Registry) PassAppchain(appchainID string) error {
	if err := r.requireOwner(); err != nil {
		return err
	}
	return r.appchains.Transition(appchainID, appchain.StatusVoting)
}

// AppchainGoStaging moves a voted appchain into Staging.
func (r *Registry) AppchainGoStaging(appchainID string) error {
	if err := r.requireOwner(); err != nil {
		return err
	}
	return r.appchains.Transition(appchainID, appchain.StatusStaging)
}

// FreezeAppchain halts a booted appchain: staking, locks, relays and burns
// are refused until it is reactivated.
func (r *Registry) FreezeAppchain(appchainID string) error {
	if err := r.requireOwner(); err != nil {
		return err
	}
	return r.appchains.Transition(appchainID, appchain.StatusFrozen)
}

// RemoveAppchain deletes an appchain that is still auditing, refunding a
// tenth of the bond to the founder first. The cascade delete only commits in
// the continuation when the refund settled.
func (r *Registry) RemoveAppchain(appchainID string) error {
	if err := r.requireOwner(); err != nil {
		return err
	}
	meta, err := r.appchains.Metadata(appchainID)
	if err != nil {
		return err
	}
	st, err := r.appchains.State(appchainID)
	if err != nil {
		return err
	}
	if st.Status != appchain.StatusAuditing {
		return errors.Newf(errors.CodeInvalidStatus, "appchain %q is past auditing", appchainID)
	}
	refund := new(big.Int).Div(meta.BondTokens, big.NewInt(10))
	if refund.Sign() == 0 {
		return r.appchains.ClearStorage(appchainID)
	}
	settings, err := r.Settings()
	if err != nil {
		return err
	}
	r.env.Dispatch(host.Call{
		Receiver: settings.TokenContractID,
		Method:   "ft_transfer",
		Args:     encodeTransferArgs(meta.FounderID, refund),
		Deposit:  oneYocto,
		Then: &host.Callback{
			Method: methodResolveRemoveAppchain,
			Args:   encodeAppchainArgs(appchainID),
		},
	})
	return nil
}

func (r *Registry) resolveRemoveAppchain(args []byte, result host.Result) error {
	appchainID, err := decodeAppchainArgs(args)
	if err != nil {
		return err
	}
	if !result.Successful {
		r.log.Warn("removal refund failed", "appchain", appchainID)
		return nil
	}
	return r.appchains.ClearStorage(appchainID)
}

// ActivateAppchain boots a staged appchain once it carries enough validators
// and records the published chain artefacts, refunding a tenth of the bond to
// the founder. A frozen appchain thaws back into Booting without reseeding.
func (r *Registry) ActivateAppchain(appchainID, bootNodes, rpcEndpoint, chainSpecURL, chainSpecHash, chainSpecRawURL, chainSpecRawHash string) error {
	if err := r.requireOwner(); err != nil {
		return err
	}
	st, err := r.appchains.State(appchainID)
	if err != nil {
		return err
	}
	if st.Status == appchain.StatusFrozen {
		return r.appchains.Transition(appchainID, appchain.StatusBooting)
	}
	if st.Status != appchain.StatusStaging {
		return errors.Newf(errors.CodeInvalidStatus, "appchain %q cannot activate from %s", appchainID, st.Status)
	}
	settings, err := r.Settings()
	if err != nil {
		return err
	}
	validators, err := r.appchains.Validators(appchainID)
	if err != nil {
		return err
	}
	if uint32(len(validators)) < settings.MinimumValidators {
		return errors.Newf(errors.CodeInsufficientValidators, "appchain %q has %d validators, needs %d", appchainID, len(validators), settings.MinimumValidators)
	}
	meta, err := r.appchains.Metadata(appchainID)
	if err != nil {
		return err
	}
	refund := new(big.Int).Div(meta.BondTokens, big.NewInt(10))
	bootInfo := encodeActivationArgs(appchainID, bootNodes, rpcEndpoint, chainSpecURL, chainSpecHash, chainSpecRawURL, chainSpecRawHash, refund)
	if refund.Sign() == 0 {
		return r.completeActivation(bootInfo)
	}
	r.env.Dispatch(host.Call{
		Receiver: settings.TokenContractID,
		Method:   "ft_transfer",
		Args:     encodeTransferArgs(meta.FounderID, refund),
		Deposit:  oneYocto,
		Then: &host.Callback{
			Method: methodResolveActivateAppchain,
			Args:   bootInfo,
		},
	})
	return nil
}

func (r *Registry) resolveActivateAppchain(args []byte, result host.Result) error {
	if !result.Successful {
		appchainID, _, _, _, _, _, _, _, err := decodeActivationArgs(args)
		if err != nil {
			return err
		}
		r.log.Warn("activation refund failed", "appchain", appchainID)
		return nil
	}
	return r.completeActivation(args)
}

func (r *Registry) completeActivation(args []byte) error {
	appchainID, bootNodes, rpcEndpoint, specURL, specHash, specRawURL, specRawHash, refund, err := decodeActivationArgs(args)
	if err != nil {
		return err
	}
	meta, err := r.appchains.Metadata(appchainID)
	if err != nil {
		return err
	}
	meta.UpdateBootingInfo(bootNodes, rpcEndpoint, specURL, specHash, specRawURL, specRawHash)
	meta.BondTokens = new(big.Int).Sub(meta.BondTokens, refund)
	if meta.BondTokens.Sign() < 0 {
		meta.BondTokens = new(big.Int)
	}
	if err := r.appchains.SaveMetadata(meta); err != nil {
		return err
	}
	if err := r.appchains.Boot(appchainID); err != nil {
		return err
	}
	r.log.Info("appchain activated", "appchain", appchainID)
	return nil
}

func encodeAppchainArgs(appchainID string) []byte {
	w := codec.NewWriter()
	w.WriteString(appchainID)
	return w.Bytes()
}

func decodeAppchainArgs(args []byte) (string, error) {
	r := codec.NewReader(args)
	appchainID, err := r.ReadString()
	if err != nil {
		return "", err
	}
	if err := r.Done(); err != nil {
		return "", err
	}
	return appchainID, nil
}

func encodeAppchainValidatorArgs(appchainID, validatorID string) []byte {
	w := codec.NewWriter()
	w.WriteString(appchainID)
	w.WriteString(validatorID)
	return w.Bytes()
}

func decodeAppchainValidatorArgs(args []byte) (string, string, error) {
	r := codec.NewReader(args)
	appchainID, err := r.ReadString()
	if err != nil {
		return "", "", err
	}
	validatorID, err := r.ReadString()
	if err != nil {
		return "", "", err
	}
	if err := r.Done(); err != nil {
		return "", "", err
	}
	return appchainID, validatorID, nil
}

func encodeActivationArgs(appchainID, bootNodes, rpcEndpoint, specURL, specHash, specRawURL, specRawHash string, refund *big.Int) []byte {
	w := codec.NewWriter()
	w.WriteString(appchainID)
	w.WriteString(bootNodes)
	w.WriteString(rpcEndpoint)
	w.WriteString(specURL)
	w.WriteString(specHash)
	w.WriteString(specRawURL)
	w.WriteString(specRawHash)
	w.WriteU128(refund)
	return w.Bytes()
}

func decodeActivationArgs(args []byte) (appchainID, bootNodes, rpcEndpoint, specURL, specHash, specRawURL, specRawHash string, refund *big.Int, err error) {
	r := codec.NewReader(args)
	fields := []*string{&appchainID, &bootNodes, &rpcEndpoint, &specURL, &specHash, &specRawURL, &specRawHash}
	for _, f := range fields {
		if *f, err = r.ReadString(); err != nil {
			return
		}
	}
	if refund, err = r.ReadU128(); err != nil {
		return
	}
	err = r.Done()
	return
}

// encodeTransferArgs builds the canonical argument blob of an outbound
// ft_transfer.
func encodeTransferArgs(receiver string, amount *big.Int) []byte {
	w := codec.NewWriter()
	w.WriteString(receiver)
	w.WriteU128(amount)
	return w.Bytes()
}
