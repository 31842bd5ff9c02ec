package appchain

import (
	"math/big"
	"sort"

	"relayhub/core/errors"
	"relayhub/core/events"
)

// Storage is the narrow persistence surface the engine operates on. The relay
// wires the shared state manager here; tests substitute an in-memory fake.
type Storage interface {
	Put(key []byte, value []byte) error
	Get(key []byte) ([]byte, bool, error)
	Delete(key []byte) error
	AppendID(key []byte, id string) error
	RemoveID(key []byte, id string) error
	IDs(key []byte) ([]string, error)
}

// Engine drives the appchain lifecycle, staking book and validator-set
// snapshot history.
type Engine struct {
	store   Storage
	emitter events.Emitter
	cycle   uint64
	nowFn   func() uint64
	height  func() uint64
}

// NewEngine constructs the engine over the given storage. cycle is the
// validator-set period length in nanoseconds.
func NewEngine(store Storage, cycle uint64) *Engine {
	return &Engine{
		store:   store,
		emitter: events.NoopEmitter{},
		cycle:   cycle,
		nowFn:   func() uint64 { return 0 },
		height:  func() uint64 { return 0 },
	}
}

// SetEmitter wires an event emitter. Passing nil restores the no-op emitter.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	e.emitter = emitter
}

// SetNowFunc overrides the timestamp source (nanoseconds).
func (e *Engine) SetNowFunc(now func() uint64) {
	if now != nil {
		e.nowFn = now
	}
}

// SetHeightFunc overrides the block-height source.
func (e *Engine) SetHeightFunc(height func() uint64) {
	if height != nil {
		e.height = height
	}
}

// IDs returns the registered appchain identifiers in registration order.
func (e *Engine) IDs() ([]string, error) {
	return e.store.IDs(idsKey)
}

// Metadata loads an appchain's metadata record.
func (e *Engine) Metadata(appchainID string) (*Metadata, error) {
	data, ok, err := e.store.Get(metadataKey(appchainID))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.Newf(errors.CodeAppchainNotFound, "appchain %q is not registered", appchainID)
	}
	return DecodeMetadata(data)
}

// SaveMetadata persists an appchain's metadata record.
func (e *Engine) SaveMetadata(m *Metadata) error {
	if m == nil || m.ID == "" {
		return errors.New(errors.CodeInternal, "metadata must carry an appchain id")
	}
	return e.store.Put(metadataKey(m.ID), EncodeMetadata(m))
}

// State loads an appchain's state record.
func (e *Engine) State(appchainID string) (*State, error) {
	data, ok, err := e.store.Get(stateKey(appchainID))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.Newf(errors.CodeAppchainNotFound, "appchain %q is not registered", appchainID)
	}
	return DecodeState(data)
}

// SaveState persists an appchain's state record.
func (e *Engine) SaveState(s *State) error {
	if s == nil || s.AppchainID == "" {
		return errors.New(errors.CodeInternal, "state must carry an appchain id")
	}
	return e.store.Put(stateKey(s.AppchainID), EncodeState(s))
}

// Register creates a new appchain in Auditing status. The id must be unused.
func (e *Engine) Register(appchainID, founderID, websiteURL, githubAddress string, bondTokens *big.Int) error {
	if appchainID == "" {
		return errors.New(errors.CodeBadMessage, "appchain id must not be empty")
	}
	if _, ok, err := e.store.Get(metadataKey(appchainID)); err != nil {
		return err
	} else if ok {
		return errors.Newf(errors.CodeDuplicateAppchain, "appchain %q is already registered", appchainID)
	}
	meta := NewMetadata(appchainID, founderID, websiteURL, githubAddress, bondTokens, e.height())
	if err := e.SaveMetadata(meta); err != nil {
		return err
	}
	if err := e.SaveState(NewState(appchainID)); err != nil {
		return err
	}
	if err := e.store.AppendID(idsKey, appchainID); err != nil {
		return err
	}
	e.emitter.Emit(events.AppchainRegistered{
		AppchainID: appchainID,
		Founder:    founderID,
		BondTokens: new(big.Int).Set(meta.BondTokens),
	})
	return nil
}

// Transition moves an appchain along one of the non-booting lifecycle edges:
// Auditing to Voting, Voting to Staging, Booting to Frozen and Frozen back to
// Booting. The Staging to Booting edge goes through Boot, which also seeds the
// snapshot history.
func (e *Engine) Transition(appchainID string, to Status) error {
	s, err := e.State(appchainID)
	if err != nil {
		return err
	}
	allowed := false
	switch {
	case s.Status == StatusAuditing && to == StatusVoting:
		allowed = true
	case s.Status == StatusVoting && to == StatusStaging:
		allowed = true
	case s.Status == StatusBooting && to == StatusFrozen:
		allowed = true
	case s.Status == StatusFrozen && to == StatusBooting:
		allowed = true
	}
	if !allowed {
		return errors.Newf(errors.CodeInvalidStatus, "appchain %q cannot move from %s to %s", appchainID, s.Status, to)
	}
	from := s.Status
	s.Status = to
	if err := e.SaveState(s); err != nil {
		return err
	}
	e.emitter.Emit(events.AppchainStatusChanged{AppchainID: appchainID, From: from.String(), To: to.String()})
	return nil
}

// Boot moves a staged appchain into Booting, stamps the booting timestamp and
// seeds the snapshot history with set zero so every later period has a
// predecessor to restamp from.
func (e *Engine) Boot(appchainID string) error {
	s, err := e.State(appchainID)
	if err != nil {
		return err
	}
	if s.Status != StatusStaging {
		return errors.Newf(errors.CodeInvalidStatus, "appchain %q cannot boot from %s", appchainID, s.Status)
	}
	now := e.nowFn()
	s.Status = StatusBooting
	s.BootingTimestamp = now
	s.ValidatorSetTimestamp = now
	if err := e.appendSnapshot(s, 0, false); err != nil {
		return err
	}
	if err := e.SaveState(s); err != nil {
		return err
	}
	e.emitter.Emit(events.AppchainStatusChanged{
		AppchainID: appchainID,
		From:       StatusStaging.String(),
		To:         StatusBooting.String(),
	})
	return nil
}

// Validator loads a validator record.
func (e *Engine) Validator(appchainID, validatorID string) (*Validator, error) {
	data, ok, err := e.store.Get(validatorKey(appchainID, validatorID))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.Newf(errors.CodeValidatorNotFound, "validator %q is not staked on appchain %q", validatorID, appchainID)
	}
	return DecodeValidator(data)
}

// ValidatorIDByAccount resolves the validator id staked by the given account,
// or the empty string when the account has no stake on the appchain.
func (e *Engine) ValidatorIDByAccount(appchainID, accountID string) (string, error) {
	data, ok, err := e.store.Get(accountIndexKey(appchainID, accountID))
	if err != nil {
		return "", err
	}
	if !ok {
		return "", nil
	}
	return string(data), nil
}

// Validators returns all active validator records in staking order.
func (e *Engine) Validators(appchainID string) ([]*Validator, error) {
	ids, err := e.store.IDs(validatorIDsKey(appchainID))
	if err != nil {
		return nil, err
	}
	out := make([]*Validator, 0, len(ids))
	for _, id := range ids {
		v, err := e.Validator(appchainID, id)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Delegators returns the delegation records of a validator.
func (e *Engine) Delegators(appchainID, validatorID string) ([]Delegator, error) {
	ids, err := e.store.IDs(delegatorIDsKey(appchainID, validatorID))
	if err != nil {
		return nil, err
	}
	out := make([]Delegator, 0, len(ids))
	for _, id := range ids {
		data, ok, err := e.store.Get(delegatorKey(appchainID, validatorID, id))
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		d, err := DecodeDelegator(data)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, nil
}

// PutDelegator inserts or replaces a delegation record.
func (e *Engine) PutDelegator(appchainID, validatorID string, d *Delegator) error {
	if err := e.store.Put(delegatorKey(appchainID, validatorID, d.DelegatorID), EncodeDelegator(d)); err != nil {
		return err
	}
	return e.store.AppendID(delegatorIDsKey(appchainID, validatorID), d.DelegatorID)
}

// StakeNew registers a fresh validator stake. Staking is accepted while the
// appchain is Staging or Booting; a Booting stake immediately produces a new
// validator set.
func (e *Engine) StakeNew(appchainID, validatorID, accountID string, amount *big.Int) error {
	s, err := e.stakeableState(appchainID)
	if err != nil {
		return err
	}
	if _, ok, err := e.store.Get(validatorKey(appchainID, validatorID)); err != nil {
		return err
	} else if ok {
		return errors.Newf(errors.CodeDuplicateValidator, "validator %q is already staked on appchain %q", validatorID, appchainID)
	}
	if existing, err := e.ValidatorIDByAccount(appchainID, accountID); err != nil {
		return err
	} else if existing != "" {
		return errors.Newf(errors.CodeDuplicateValidator, "account %q already stakes as validator %q", accountID, existing)
	}
	v := &Validator{
		ValidatorID: validatorID,
		AccountID:   accountID,
		Amount:      new(big.Int).Set(amount),
		BlockHeight: e.height(),
	}
	if err := e.store.Put(validatorKey(appchainID, validatorID), EncodeValidator(v)); err != nil {
		return err
	}
	if err := e.store.Put(accountIndexKey(appchainID, accountID), []byte(validatorID)); err != nil {
		return err
	}
	if err := e.store.AppendID(validatorIDsKey(appchainID), validatorID); err != nil {
		return err
	}
	return e.finishStakeMutation(s, validatorID, accountID, amount)
}

// StakeMore adds to an existing validator's stake. The caller account must be
// the one that created the stake.
func (e *Engine) StakeMore(appchainID, validatorID, accountID string, amount *big.Int) error {
	s, err := e.stakeableState(appchainID)
	if err != nil {
		return err
	}
	v, err := e.Validator(appchainID, validatorID)
	if err != nil {
		return err
	}
	if v.AccountID != accountID {
		return errors.Newf(errors.CodeNotFounder, "validator %q is owned by %q", validatorID, v.AccountID)
	}
	v.Amount = new(big.Int).Add(v.Amount, amount)
	v.BlockHeight = e.height()
	if err := e.store.Put(validatorKey(appchainID, validatorID), EncodeValidator(v)); err != nil {
		return err
	}
	return e.finishStakeMutation(s, validatorID, accountID, amount)
}

func (e *Engine) stakeableState(appchainID string) (*State, error) {
	s, err := e.State(appchainID)
	if err != nil {
		return nil, err
	}
	if s.Status != StatusStaging && s.Status != StatusBooting {
		return nil, errors.Newf(errors.CodeInvalidStatus, "appchain %q does not accept stake while %s", appchainID, s.Status)
	}
	return s, nil
}

func (e *Engine) finishStakeMutation(s *State, validatorID, accountID string, amount *big.Int) error {
	s.StakedBalance = new(big.Int).Add(s.StakedBalance, amount)
	s.ValidatorsTimestamp = e.nowFn()
	if s.Status == StatusBooting {
		if err := e.appendSnapshot(s, e.currentSeq(s), true); err != nil {
			return err
		}
	}
	if err := e.SaveState(s); err != nil {
		return err
	}
	e.emitter.Emit(events.Staked{
		AppchainID:  s.AppchainID,
		ValidatorID: validatorID,
		AccountID:   accountID,
		Amount:      new(big.Int).Set(amount),
	})
	return nil
}

// RemoveValidator retires a validator, moving its record to the removed book.
// It returns the retired record and its delegations so the caller can refund
// the stake. A Booting removal immediately produces a new validator set.
func (e *Engine) RemoveValidator(appchainID, validatorID, accountID string) (*Validator, []Delegator, error) {
	s, err := e.stakeableState(appchainID)
	if err != nil {
		return nil, nil, err
	}
	v, err := e.Validator(appchainID, validatorID)
	if err != nil {
		return nil, nil, err
	}
	if accountID != "" && v.AccountID != accountID {
		return nil, nil, errors.Newf(errors.CodeNotFounder, "validator %q is owned by %q", validatorID, v.AccountID)
	}
	delegators, err := e.Delegators(appchainID, validatorID)
	if err != nil {
		return nil, nil, err
	}
	if err := e.store.Put(removedValidatorKey(appchainID, validatorID), EncodeValidator(v)); err != nil {
		return nil, nil, err
	}
	if err := e.store.AppendID(removedIDsKey(appchainID), validatorID); err != nil {
		return nil, nil, err
	}
	if err := e.store.Delete(validatorKey(appchainID, validatorID)); err != nil {
		return nil, nil, err
	}
	if err := e.store.Delete(accountIndexKey(appchainID, v.AccountID)); err != nil {
		return nil, nil, err
	}
	if err := e.store.RemoveID(validatorIDsKey(appchainID), validatorID); err != nil {
		return nil, nil, err
	}

	total := new(big.Int).Set(v.Amount)
	for i := range delegators {
		total.Add(total, delegators[i].Amount)
	}
	s.StakedBalance = new(big.Int).Sub(s.StakedBalance, total)
	if s.StakedBalance.Sign() < 0 {
		return nil, nil, errors.New(errors.CodeInternal, "staked balance underflow")
	}
	s.ValidatorsTimestamp = e.nowFn()
	if s.Status == StatusBooting {
		if err := e.appendSnapshot(s, e.currentSeq(s), true); err != nil {
			return nil, nil, err
		}
	}
	if err := e.SaveState(s); err != nil {
		return nil, nil, err
	}
	e.emitter.Emit(events.Unstaked{
		AppchainID:  appchainID,
		ValidatorID: validatorID,
		AccountID:   v.AccountID,
		Amount:      new(big.Int).Set(v.Amount),
	})
	return v, delegators, nil
}

// RemovedValidator loads a retired validator record.
func (e *Engine) RemovedValidator(appchainID, validatorID string) (*Validator, error) {
	data, ok, err := e.store.Get(removedValidatorKey(appchainID, validatorID))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.Newf(errors.CodeValidatorNotFound, "validator %q was never removed from appchain %q", validatorID, appchainID)
	}
	return DecodeValidator(data)
}

// currentSeq is the sequence number of the running period: the number of full
// cycles since boot, plus one. Before boot it is zero.
func (e *Engine) currentSeq(s *State) uint32 {
	if s.BootingTimestamp == 0 || e.cycle == 0 {
		return 0
	}
	now := e.nowFn()
	if now < s.BootingTimestamp {
		return 1
	}
	return uint32((now-s.BootingTimestamp)/e.cycle) + 1
}

// CurrentSeqNum exposes the running period's sequence number.
func (e *Engine) CurrentSeqNum(appchainID string) (uint32, error) {
	s, err := e.State(appchainID)
	if err != nil {
		return 0, err
	}
	return e.currentSeq(s), nil
}

// appendSnapshot captures the active validators into a new history entry with
// the given sequence number. When fresh is true the validators nonce advances
// and stamps the snapshot's set id; restamped snapshots keep the current
// nonce.
func (e *Engine) appendSnapshot(s *State, seqNum uint32, fresh bool) error {
	validators, err := e.Validators(s.AppchainID)
	if err != nil {
		return err
	}
	summaries := make([]ValidatorSummary, 0, len(validators))
	for _, v := range validators {
		delegators, err := e.Delegators(s.AppchainID, v.ValidatorID)
		if err != nil {
			return err
		}
		weight := new(big.Int).Set(v.Amount)
		for i := range delegators {
			weight.Add(weight, delegators[i].Amount)
		}
		if weight.Sign() == 0 {
			continue
		}
		summaries = append(summaries, ValidatorSummary{
			ValidatorID: v.ValidatorID,
			AccountID:   v.AccountID,
			Weight:      weight,
			BlockHeight: v.BlockHeight,
			Delegators:  delegators,
		})
	}
	sort.SliceStable(summaries, func(i, j int) bool {
		cmp := summaries[i].Weight.Cmp(summaries[j].Weight)
		if cmp != 0 {
			return cmp > 0
		}
		return summaries[i].ValidatorID < summaries[j].ValidatorID
	})

	if fresh {
		s.ValidatorsNonce++
	}
	set := &ValidatorSet{SeqNum: seqNum, SetID: s.ValidatorsNonce, Validators: summaries}
	index, err := e.counter(historiesLenKey(s.AppchainID))
	if err != nil {
		return err
	}
	if err := e.store.Put(historyKey(s.AppchainID, index), EncodeValidatorSet(set)); err != nil {
		return err
	}
	if err := e.store.Put(historiesLenKey(s.AppchainID), EncodeU32(index+1)); err != nil {
		return err
	}
	if err := e.appendFact(s.AppchainID, &Fact{Kind: FactUpdateValidatorSet, ValidatorSet: set}); err != nil {
		return err
	}
	s.ValidatorSetTimestamp = e.nowFn()
	e.emitter.Emit(events.ValidatorSetUpdated{AppchainID: s.AppchainID, SeqNum: seqNum, SetID: set.SetID})
	return nil
}

// FlushSnapshot catches the snapshot history up with the running period. When
// the latest entry predates the current sequence number, the active validators
// are restamped into a new entry carrying the current nonce. No-op outside
// Booting.
func (e *Engine) FlushSnapshot(appchainID string) error {
	s, err := e.State(appchainID)
	if err != nil {
		return err
	}
	if s.Status != StatusBooting {
		return nil
	}
	seq := e.currentSeq(s)
	latest, err := e.latestSnapshot(appchainID)
	if err != nil {
		return err
	}
	if latest != nil && latest.SeqNum >= seq {
		return nil
	}
	if err := e.appendSnapshot(s, seq, false); err != nil {
		return err
	}
	return e.SaveState(s)
}

func (e *Engine) latestSnapshot(appchainID string) (*ValidatorSet, error) {
	count, err := e.counter(historiesLenKey(appchainID))
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}
	data, ok, err := e.store.Get(historyKey(appchainID, count-1))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.Newf(errors.CodeInternal, "snapshot history of %q is truncated at %d", appchainID, count-1)
	}
	return DecodeValidatorSet(data)
}

// CurrentValidatorSet returns the validator set of the running period. When no
// snapshot exists for the current sequence number yet, the latest snapshot is
// returned restamped to it.
func (e *Engine) CurrentValidatorSet(appchainID string) (*ValidatorSet, error) {
	s, err := e.State(appchainID)
	if err != nil {
		return nil, err
	}
	latest, err := e.latestSnapshot(appchainID)
	if err != nil {
		return nil, err
	}
	if latest == nil {
		return nil, errors.Newf(errors.CodeInvalidStatus, "appchain %q has no validator set yet", appchainID)
	}
	seq := e.currentSeq(s)
	if latest.SeqNum < seq {
		latest.SeqNum = seq
	}
	return latest, nil
}

// ValidatorSetBySeqNum returns the latest snapshot captured for the given
// sequence number, or nil when none exists.
func (e *Engine) ValidatorSetBySeqNum(appchainID string, seqNum uint32) (*ValidatorSet, error) {
	count, err := e.counter(historiesLenKey(appchainID))
	if err != nil {
		return nil, err
	}
	for i := count; i > 0; i-- {
		data, ok, err := e.store.Get(historyKey(appchainID, i-1))
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		set, err := DecodeValidatorSet(data)
		if err != nil {
			return nil, err
		}
		if set.SeqNum == seqNum {
			return set, nil
		}
		if set.SeqNum < seqNum {
			break
		}
	}
	return nil, nil
}

// SnapshotCount returns the number of history entries.
func (e *Engine) SnapshotCount(appchainID string) (uint32, error) {
	return e.counter(historiesLenKey(appchainID))
}

func (e *Engine) counter(key []byte) (uint32, error) {
	data, ok, err := e.store.Get(key)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return DecodeU32(data)
}

// appendFact appends an entry to the appchain's fact log, stamping sequence
// numbers into lock and burn facts.
func (e *Engine) appendFact(appchainID string, f *Fact) error {
	index, err := e.counter(factsLenKey(appchainID))
	if err != nil {
		return err
	}
	switch f.Kind {
	case FactLockToken:
		f.Locked.SeqNum = index
	case FactBurnNativeToken:
		f.Burned.SeqNum = index
	}
	if err := e.store.Put(factKey(appchainID, index), EncodeFact(f)); err != nil {
		return err
	}
	return e.store.Put(factsLenKey(appchainID), EncodeU32(index+1))
}

// Facts returns up to limit fact-log entries starting at the given index.
func (e *Engine) Facts(appchainID string, start, limit uint32) ([]*Fact, error) {
	count, err := e.counter(factsLenKey(appchainID))
	if err != nil {
		return nil, err
	}
	out := make([]*Fact, 0, limit)
	for i := start; i < count && uint32(len(out)) < limit; i++ {
		data, ok, err := e.store.Get(factKey(appchainID, i))
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errors.Newf(errors.CodeInternal, "fact log of %q is truncated at %d", appchainID, i)
		}
		f, err := DecodeFact(data)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

// FactCount returns the length of the fact log.
func (e *Engine) FactCount(appchainID string) (uint32, error) {
	return e.counter(factsLenKey(appchainID))
}

// LockToken records an inbound lock: the per-token locked total grows and a
// lock fact lands on the log. The snapshot history is flushed first so the
// fact is attributed to the running period's set.
func (e *Engine) LockToken(appchainID, tokenID, senderID, receiver string, amount *big.Int) error {
	s, err := e.State(appchainID)
	if err != nil {
		return err
	}
	if s.Status != StatusBooting {
		return errors.Newf(errors.CodeInvalidStatus, "appchain %q does not accept locks while %s", appchainID, s.Status)
	}
	if err := e.FlushSnapshot(appchainID); err != nil {
		return err
	}
	locked, err := e.LockedAmount(appchainID, tokenID)
	if err != nil {
		return err
	}
	locked = new(big.Int).Add(locked, amount)
	if err := e.store.Put(lockedKey(appchainID, tokenID), EncodeU128(locked)); err != nil {
		return err
	}
	if err := e.store.AppendID(lockedTokensKey(appchainID), tokenID); err != nil {
		return err
	}
	if err := e.appendFact(appchainID, &Fact{Kind: FactLockToken, Locked: &Locked{
		TokenID:     tokenID,
		SenderID:    senderID,
		Receiver:    receiver,
		Amount:      new(big.Int).Set(amount),
		BlockHeight: e.height(),
	}}); err != nil {
		return err
	}
	e.emitter.Emit(events.TokenLocked{
		AppchainID: appchainID,
		TokenID:    tokenID,
		Sender:     senderID,
		Receiver:   receiver,
		Amount:     new(big.Int).Set(amount),
	})
	return nil
}

// UnlockToken releases part of a token's locked total after an outbound
// transfer settled.
func (e *Engine) UnlockToken(appchainID, tokenID, receiver string, amount *big.Int) error {
	locked, err := e.LockedAmount(appchainID, tokenID)
	if err != nil {
		return err
	}
	if locked.Cmp(amount) < 0 {
		return errors.Newf(errors.CodeInsufficientLocked, "appchain %q holds %s of token %q, cannot unlock %s", appchainID, locked, tokenID, amount)
	}
	locked = new(big.Int).Sub(locked, amount)
	if locked.Sign() == 0 {
		if err := e.store.Delete(lockedKey(appchainID, tokenID)); err != nil {
			return err
		}
		if err := e.store.RemoveID(lockedTokensKey(appchainID), tokenID); err != nil {
			return err
		}
	} else if err := e.store.Put(lockedKey(appchainID, tokenID), EncodeU128(locked)); err != nil {
		return err
	}
	e.emitter.Emit(events.TokenUnlocked{
		AppchainID: appchainID,
		TokenID:    tokenID,
		Receiver:   receiver,
		Amount:     new(big.Int).Set(amount),
	})
	return nil
}

// LockedAmount returns the locked total of a token on an appchain, zero when
// nothing is locked.
func (e *Engine) LockedAmount(appchainID, tokenID string) (*big.Int, error) {
	data, ok, err := e.store.Get(lockedKey(appchainID, tokenID))
	if err != nil {
		return nil, err
	}
	if !ok {
		return new(big.Int), nil
	}
	return DecodeU128(data)
}

// LockedTokenIDs returns the ids of tokens with a non-zero locked total.
func (e *Engine) LockedTokenIDs(appchainID string) ([]string, error) {
	return e.store.IDs(lockedTokensKey(appchainID))
}

// AppendBurnFact records a completed native-token burn on the fact log. The
// snapshot history is flushed first, like for locks.
func (e *Engine) AppendBurnFact(appchainID, senderID, receiver string, amount *big.Int) error {
	if err := e.FlushSnapshot(appchainID); err != nil {
		return err
	}
	if err := e.appendFact(appchainID, &Fact{Kind: FactBurnNativeToken, Burned: &Burned{
		SenderID:    senderID,
		Receiver:    receiver,
		Amount:      new(big.Int).Set(amount),
		BlockHeight: e.height(),
	}}); err != nil {
		return err
	}
	e.emitter.Emit(events.NativeTokenBurned{
		AppchainID: appchainID,
		Sender:     senderID,
		Receiver:   receiver,
		Amount:     new(big.Int).Set(amount),
	})
	return nil
}

// UseMessage marks an inbound message nonce as consumed. It reports whether
// the nonce was fresh.
func (e *Engine) UseMessage(appchainID string, nonce uint64) (bool, error) {
	key := usedMessageKey(appchainID, nonce)
	if _, ok, err := e.store.Get(key); err != nil {
		return false, err
	} else if ok {
		return false, nil
	}
	if err := e.store.Put(key, []byte{1}); err != nil {
		return false, err
	}
	return true, nil
}

// IsMessageUsed reports whether an inbound message nonce was consumed before.
func (e *Engine) IsMessageUsed(appchainID string, nonce uint64) (bool, error) {
	_, ok, err := e.store.Get(usedMessageKey(appchainID, nonce))
	return ok, err
}

// ClearStorage removes every record owned by an appchain. Removal is only
// reachable while the appchain audits, so the fact log, histories and message
// nonces are empty by construction; they are still swept for hygiene.
func (e *Engine) ClearStorage(appchainID string) error {
	validatorIDs, err := e.store.IDs(validatorIDsKey(appchainID))
	if err != nil {
		return err
	}
	for _, id := range validatorIDs {
		v, err := e.Validator(appchainID, id)
		if err == nil {
			if err := e.store.Delete(accountIndexKey(appchainID, v.AccountID)); err != nil {
				return err
			}
		}
		delegatorIDs, err := e.store.IDs(delegatorIDsKey(appchainID, id))
		if err != nil {
			return err
		}
		for _, did := range delegatorIDs {
			if err := e.store.Delete(delegatorKey(appchainID, id, did)); err != nil {
				return err
			}
		}
		if err := e.store.Delete(delegatorIDsKey(appchainID, id)); err != nil {
			return err
		}
		if err := e.store.Delete(validatorKey(appchainID, id)); err != nil {
			return err
		}
	}
	if err := e.store.Delete(validatorIDsKey(appchainID)); err != nil {
		return err
	}

	removedIDs, err := e.store.IDs(removedIDsKey(appchainID))
	if err != nil {
		return err
	}
	for _, id := range removedIDs {
		if err := e.store.Delete(removedValidatorKey(appchainID, id)); err != nil {
			return err
		}
	}
	if err := e.store.Delete(removedIDsKey(appchainID)); err != nil {
		return err
	}

	factCount, err := e.counter(factsLenKey(appchainID))
	if err != nil {
		return err
	}
	for i := uint32(0); i < factCount; i++ {
		if err := e.store.Delete(factKey(appchainID, i)); err != nil {
			return err
		}
	}
	if err := e.store.Delete(factsLenKey(appchainID)); err != nil {
		return err
	}

	historyCount, err := e.counter(historiesLenKey(appchainID))
	if err != nil {
		return err
	}
	for i := uint32(0); i < historyCount; i++ {
		if err := e.store.Delete(historyKey(appchainID, i)); err != nil {
			return err
		}
	}
	if err := e.store.Delete(historiesLenKey(appchainID)); err != nil {
		return err
	}

	lockedIDs, err := e.store.IDs(lockedTokensKey(appchainID))
	if err != nil {
		return err
	}
	for _, id := range lockedIDs {
		if err := e.store.Delete(lockedKey(appchainID, id)); err != nil {
			return err
		}
	}
	if err := e.store.Delete(lockedTokensKey(appchainID)); err != nil {
		return err
	}

	if err := e.store.Delete(metadataKey(appchainID)); err != nil {
		return err
	}
	if err := e.store.Delete(stateKey(appchainID)); err != nil {
		return err
	}
	if err := e.store.RemoveID(idsKey, appchainID); err != nil {
		return err
	}
	e.emitter.Emit(events.AppchainRemoved{AppchainID: appchainID})
	return nil
}
