// Package relay wires the appchain engine, the bridge ledger and the host
// runtime into the contract surface of the relay hub: every externally
// callable entry point, every promise continuation and the schema migration
// live here.
package relay

import (
	"log/slog"
	"math/big"

	"relayhub/codec"
	"relayhub/core/errors"
	"relayhub/core/events"
	"relayhub/core/host"
	"relayhub/core/state"
	"relayhub/native/appchain"
	"relayhub/native/bridge"
)

// StorageDepositAmount is the fixed slice of attached deposit reserved per
// relayed message for storage registration on the target token contract
// (0.00125 in 24-decimal native currency units).
var StorageDepositAmount, _ = new(big.Int).SetString("1250000000000000000000", 10)

// oneYocto is the proof-of-intent deposit fungible-token transfers require.
var oneYocto = big.NewInt(1)

// Settings are the owner-tunable parameters of the hub.
type Settings struct {
	// TokenContractID is the account of the collateral (OCT) token contract.
	TokenContractID string
	// MinimumValidators gates activation.
	MinimumValidators uint32
	// MinimumStaking is the smallest accepted staking transfer.
	MinimumStaking *big.Int
	// BridgeLimitRatio scales the bridging capacity, in basis points.
	BridgeLimitRatio uint32
	// CollateralPrice is the oracle-written price of the collateral token.
	CollateralPrice *big.Int
}

func encodeSettings(s *Settings) []byte {
	w := codec.NewWriter()
	w.WriteString(s.TokenContractID)
	w.WriteU32(s.MinimumValidators)
	w.WriteU128(s.MinimumStaking)
	w.WriteU32(s.BridgeLimitRatio)
	w.WriteU128(s.CollateralPrice)
	return w.Bytes()
}

func decodeSettings(data []byte) (*Settings, error) {
	r := codec.NewReader(data)
	s := &Settings{}
	var err error
	if s.TokenContractID, err = r.ReadString(); err != nil {
		return nil, err
	}
	if s.MinimumValidators, err = r.ReadU32(); err != nil {
		return nil, err
	}
	if s.MinimumStaking, err = r.ReadU128(); err != nil {
		return nil, err
	}
	if s.BridgeLimitRatio, err = r.ReadU32(); err != nil {
		return nil, err
	}
	if s.CollateralPrice, err = r.ReadU128(); err != nil {
		return nil, err
	}
	if err := r.Done(); err != nil {
		return nil, err
	}
	return s, nil
}

// Registry is the deployed relay hub.
type Registry struct {
	env       host.Runtime
	state     *state.Manager
	appchains *appchain.Engine
	bridge    *bridge.Ledger
	emitter   events.Emitter
	log       *slog.Logger
}

// NewRegistry wires a registry over the state manager. cycle is the
// validator-set period in nanoseconds.
func NewRegistry(env host.Runtime, mgr *state.Manager, cycle uint64) *Registry {
	eng := appchain.NewEngine(mgr, cycle)
	eng.SetNowFunc(env.BlockTimestamp)
	eng.SetHeightFunc(env.BlockHeight)
	return &Registry{
		env:       env,
		state:     mgr,
		appchains: eng,
		bridge:    bridge.NewLedger(mgr),
		emitter:   events.NoopEmitter{},
		log:       slog.Default().With("component", "relay"),
	}
}

// SetEmitter wires an event emitter into the registry and its engines.
func (r *Registry) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	r.emitter = emitter
	r.appchains.SetEmitter(emitter)
}

// Appchains exposes the appchain engine, mainly to the test harness.
func (r *Registry) Appchains() *appchain.Engine { return r.appchains }

// Bridge exposes the bridge ledger, mainly to the test harness.
func (r *Registry) Bridge() *bridge.Ledger { return r.bridge }

// Init installs the owner and the initial settings. It can run once.
func (r *Registry) Init(owner string, settings Settings) error {
	if owner == "" {
		return errors.New(errors.CodeBadMessage, "owner must not be empty")
	}
	if ok, err := r.state.Has(ownerKey); err != nil {
		return err
	} else if ok {
		return errors.New(errors.CodeAlreadyInitialized, "registry is already initialized")
	}
	if settings.MinimumStaking == nil {
		settings.MinimumStaking = new(big.Int)
	}
	if settings.CollateralPrice == nil {
		settings.CollateralPrice = new(big.Int)
	}
	if err := r.state.Put(ownerKey, []byte(owner)); err != nil {
		return err
	}
	if err := r.state.Put(settingsKey, encodeSettings(&settings)); err != nil {
		return err
	}
	if err := r.state.Put(schemaVersionKey, appchain.EncodeU32(currentSchemaVersion)); err != nil {
		return err
	}
	r.log.Info("registry initialized", "owner", owner, "collateral", settings.TokenContractID)
	return nil
}

// Owner returns the registry owner account.
func (r *Registry) Owner() (string, error) {
	data, ok, err := r.state.Get(ownerKey)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", errors.New(errors.CodeInternal, "registry is not initialized")
	}
	return string(data), nil
}

func (r *Registry) requireOwner() error {
	owner, err := r.Owner()
	if err != nil {
		return err
	}
	if r.env.Predecessor() != owner {
		return errors.Newf(errors.CodeNotOwner, "caller %q is not the owner", r.env.Predecessor())
	}
	return nil
}

func (r *Registry) requireSelf() error {
	if r.env.Predecessor() != r.env.CurrentAccount() {
		return errors.Newf(errors.CodeNotSelf, "caller %q is not the relay", r.env.Predecessor())
	}
	return nil
}

// Settings loads the current settings record.
func (r *Registry) Settings() (*Settings, error) {
	data, ok, err := r.state.Get(settingsKey)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.New(errors.CodeInternal, "registry is not initialized")
	}
	return decodeSettings(data)
}

func (r *Registry) saveSettings(s *Settings) error {
	return r.state.Put(settingsKey, encodeSettings(s))
}

// SetCollateralPrice is the oracle write of the collateral token price.
func (r *Registry) SetCollateralPrice(price *big.Int) error {
	if err := r.requireOwner(); err != nil {
		return err
	}
	s, err := r.Settings()
	if err != nil {
		return err
	}
	s.CollateralPrice = new(big.Int).Set(price)
	return r.saveSettings(s)
}

// AppchainView is the combined query shape of one appchain.
type AppchainView struct {
	Metadata *appchain.Metadata
	State    *appchain.State
}

// Appchain returns one appchain's metadata and state.
func (r *Registry) Appchain(appchainID string) (*AppchainView, error) {
	meta, err := r.appchains.Metadata(appchainID)
	if err != nil {
		return nil, err
	}
	st, err := r.appchains.State(appchainID)
	if err != nil {
		return nil, err
	}
	return &AppchainView{Metadata: meta, State: st}, nil
}

// AppchainIDs returns the registered appchain ids in registration order.
func (r *Registry) AppchainIDs() ([]string, error) {
	return r.appchains.IDs()
}

// AppchainsByStatus returns every appchain in the given status; pass an
// invalid status to list all.
func (r *Registry) AppchainsByStatus(status appchain.Status) ([]*AppchainView, error) {
	ids, err := r.appchains.IDs()
	if err != nil {
		return nil, err
	}
	out := make([]*AppchainView, 0, len(ids))
	for _, id := range ids {
		view, err := r.Appchain(id)
		if err != nil {
			return nil, err
		}
		if status.Valid() && view.State.Status != status {
			continue
		}
		out = append(out, view)
	}
	return out, nil
}

// NumAppchains returns the number of registered appchains.
func (r *Registry) NumAppchains() (int, error) {
	ids, err := r.appchains.IDs()
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// TotalStakedBalance sums the staked balance over every appchain.
func (r *Registry) TotalStakedBalance() (*big.Int, error) {
	ids, err := r.appchains.IDs()
	if err != nil {
		return nil, err
	}
	total := new(big.Int)
	for _, id := range ids {
		st, err := r.appchains.State(id)
		if err != nil {
			return nil, err
		}
		total.Add(total, st.StakedBalance)
	}
	return total, nil
}

// MinimumStakingAmount returns the smallest accepted staking transfer.
func (r *Registry) MinimumStakingAmount() (*big.Int, error) {
	s, err := r.Settings()
	if err != nil {
		return nil, err
	}
	return s.MinimumStaking, nil
}

// Validators returns the active validators of an appchain.
func (r *Registry) Validators(appchainID string) ([]*appchain.Validator, error) {
	return r.appchains.Validators(appchainID)
}

// Validator returns one validator of an appchain.
func (r *Registry) Validator(appchainID, validatorID string) (*appchain.Validator, error) {
	return r.appchains.Validator(appchainID, validatorID)
}

// ValidatorSet returns the validator set of the running period.
func (r *Registry) ValidatorSet(appchainID string) (*appchain.ValidatorSet, error) {
	return r.appchains.CurrentValidatorSet(appchainID)
}

// ValidatorSetBySeqNum returns the latest snapshot captured for a sequence
// number, nil when none exists.
func (r *Registry) ValidatorSetBySeqNum(appchainID string, seqNum uint32) (*appchain.ValidatorSet, error) {
	return r.appchains.ValidatorSetBySeqNum(appchainID, seqNum)
}

// NextValidatorSet returns the set that becomes active next period: the
// current validators restamped to the following sequence number.
func (r *Registry) NextValidatorSet(appchainID string) (*appchain.ValidatorSet, error) {
	set, err := r.appchains.CurrentValidatorSet(appchainID)
	if err != nil {
		return nil, err
	}
	set.SeqNum++
	return set, nil
}

// LockedEvents returns up to limit lock facts starting at the given log
// offset.
func (r *Registry) LockedEvents(appchainID string, start, limit uint32) ([]*appchain.Locked, error) {
	facts, err := r.appchains.Facts(appchainID, start, limit)
	if err != nil {
		return nil, err
	}
	out := make([]*appchain.Locked, 0, len(facts))
	for _, f := range facts {
		if f.Kind == appchain.FactLockToken {
			out = append(out, f.Locked)
		}
	}
	return out, nil
}

// Facts returns up to limit fact-log entries starting at the given offset.
func (r *Registry) Facts(appchainID string, start, limit uint32) ([]*appchain.Fact, error) {
	return r.appchains.Facts(appchainID, start, limit)
}
