package appchain

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"relayhub/core/errors"
	"relayhub/core/events"
	"relayhub/core/state"
	"relayhub/storage"
)

const testCycle = uint64(60_000_000_000) // 60s in nanoseconds

type testClock struct {
	now    uint64
	height uint64
}

type recordingEmitter struct {
	emitted []events.Event
}

func (e *recordingEmitter) Emit(evt events.Event) { e.emitted = append(e.emitted, evt) }

func (e *recordingEmitter) ofType(eventType string) []events.Event {
	var out []events.Event
	for _, evt := range e.emitted {
		if evt.EventType() == eventType {
			out = append(out, evt)
		}
	}
	return out
}

func newTestEngine(t *testing.T) (*Engine, *testClock, *recordingEmitter) {
	t.Helper()
	clock := &testClock{now: 1_000_000_000, height: 100}
	emitter := &recordingEmitter{}
	eng := NewEngine(state.NewManager(storage.NewMemDB()), testCycle)
	eng.SetNowFunc(func() uint64 { return clock.now })
	eng.SetHeightFunc(func() uint64 { return clock.height })
	eng.SetEmitter(emitter)
	return eng, clock, emitter
}

func register(t *testing.T, eng *Engine, id string) {
	t.Helper()
	require.NoError(t, eng.Register(id, "founder.testnet", "https://example.org", "github.com/example", big.NewInt(1000)))
}

func toStaging(t *testing.T, eng *Engine, id string) {
	t.Helper()
	require.NoError(t, eng.Transition(id, StatusVoting))
	require.NoError(t, eng.Transition(id, StatusStaging))
}

func stake(t *testing.T, eng *Engine, id, validator, account string, amount int64) {
	t.Helper()
	require.NoError(t, eng.StakeNew(id, validator, account, big.NewInt(amount)))
}

func TestRegisterAndDuplicate(t *testing.T) {
	eng, _, emitter := newTestEngine(t)
	register(t, eng, "alpha")

	err := eng.Register("alpha", "other.testnet", "", "", big.NewInt(1))
	require.True(t, errors.HasCode(err, errors.CodeDuplicateAppchain))

	ids, err := eng.IDs()
	require.NoError(t, err)
	require.Equal(t, []string{"alpha"}, ids)

	st, err := eng.State("alpha")
	require.NoError(t, err)
	require.Equal(t, StatusAuditing, st.Status)

	meta, err := eng.Metadata("alpha")
	require.NoError(t, err)
	require.Equal(t, "founder.testnet", meta.FounderID)
	require.Equal(t, uint64(100), meta.RegistrationHeight)

	require.Len(t, emitter.ofType(events.TypeAppchainRegistered), 1)
}

func TestUnknownAppchain(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	_, err := eng.State("ghost")
	require.True(t, errors.HasCode(err, errors.CodeAppchainNotFound))
	_, err = eng.Metadata("ghost")
	require.True(t, errors.HasCode(err, errors.CodeAppchainNotFound))
}

func TestLifecycleTransitions(t *testing.T) {
	eng, _, emitter := newTestEngine(t)
	register(t, eng, "alpha")

	// Only Auditing -> Voting is legal from the start.
	err := eng.Transition("alpha", StatusStaging)
	require.True(t, errors.HasCode(err, errors.CodeInvalidStatus))
	err = eng.Transition("alpha", StatusFrozen)
	require.True(t, errors.HasCode(err, errors.CodeInvalidStatus))

	require.NoError(t, eng.Transition("alpha", StatusVoting))
	require.NoError(t, eng.Transition("alpha", StatusStaging))

	// Staging -> Booting goes through Boot, not Transition.
	err = eng.Transition("alpha", StatusBooting)
	require.True(t, errors.HasCode(err, errors.CodeInvalidStatus))
	require.NoError(t, eng.Boot("alpha"))

	require.NoError(t, eng.Transition("alpha", StatusFrozen))
	require.NoError(t, eng.Transition("alpha", StatusBooting))

	require.Len(t, emitter.ofType(events.TypeAppchainStatusChanged), 5)
}

func TestStakingOnlyWhileStagingOrBooting(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	register(t, eng, "alpha")

	err := eng.StakeNew("alpha", "val-1", "alice.testnet", big.NewInt(100))
	require.True(t, errors.HasCode(err, errors.CodeInvalidStatus))

	toStaging(t, eng, "alpha")
	stake(t, eng, "alpha", "val-1", "alice.testnet", 100)
	require.NoError(t, eng.Boot("alpha"))
	require.NoError(t, eng.Transition("alpha", StatusFrozen))

	err = eng.StakeNew("alpha", "val-2", "bob.testnet", big.NewInt(100))
	require.True(t, errors.HasCode(err, errors.CodeInvalidStatus))
}

func TestStakingBookkeeping(t *testing.T) {
	eng, clock, emitter := newTestEngine(t)
	register(t, eng, "alpha")
	toStaging(t, eng, "alpha")

	stake(t, eng, "alpha", "val-1", "alice.testnet", 100)
	stake(t, eng, "alpha", "val-2", "bob.testnet", 250)

	err := eng.StakeNew("alpha", "val-1", "carol.testnet", big.NewInt(10))
	require.True(t, errors.HasCode(err, errors.CodeDuplicateValidator))
	err = eng.StakeNew("alpha", "val-3", "alice.testnet", big.NewInt(10))
	require.True(t, errors.HasCode(err, errors.CodeDuplicateValidator))

	st, err := eng.State("alpha")
	require.NoError(t, err)
	require.Zero(t, big.NewInt(350).Cmp(st.StakedBalance))
	require.Equal(t, clock.now, st.ValidatorsTimestamp)
	// Staging staking leaves the nonce and the snapshot history untouched.
	require.Equal(t, uint32(0), st.ValidatorsNonce)
	count, err := eng.SnapshotCount("alpha")
	require.NoError(t, err)
	require.Zero(t, count)

	require.NoError(t, eng.StakeMore("alpha", "val-1", "alice.testnet", big.NewInt(50)))
	err = eng.StakeMore("alpha", "val-1", "bob.testnet", big.NewInt(50))
	require.True(t, errors.HasCode(err, errors.CodeNotFounder))

	v, err := eng.Validator("alpha", "val-1")
	require.NoError(t, err)
	require.Zero(t, big.NewInt(150).Cmp(v.Amount))

	id, err := eng.ValidatorIDByAccount("alpha", "bob.testnet")
	require.NoError(t, err)
	require.Equal(t, "val-2", id)

	require.Len(t, emitter.ofType(events.TypeStaked), 3)
}

func TestBootSeedsSnapshotHistory(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	register(t, eng, "alpha")
	toStaging(t, eng, "alpha")
	stake(t, eng, "alpha", "val-1", "alice.testnet", 100)

	require.NoError(t, eng.Boot("alpha"))

	st, err := eng.State("alpha")
	require.NoError(t, err)
	require.Equal(t, StatusBooting, st.Status)
	require.NotZero(t, st.BootingTimestamp)

	count, err := eng.SnapshotCount("alpha")
	require.NoError(t, err)
	require.Equal(t, uint32(1), count)

	seed, err := eng.ValidatorSetBySeqNum("alpha", 0)
	require.NoError(t, err)
	require.NotNil(t, seed)
	require.Equal(t, uint32(0), seed.SetID)
	require.Len(t, seed.Validators, 1)
}

func TestBootingStakeAppendsExactlyOneSnapshot(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	register(t, eng, "alpha")
	toStaging(t, eng, "alpha")
	stake(t, eng, "alpha", "val-1", "alice.testnet", 100)
	require.NoError(t, eng.Boot("alpha"))

	before, err := eng.State("alpha")
	require.NoError(t, err)
	countBefore, err := eng.SnapshotCount("alpha")
	require.NoError(t, err)

	stake(t, eng, "alpha", "val-2", "bob.testnet", 300)

	after, err := eng.State("alpha")
	require.NoError(t, err)
	require.Greater(t, after.ValidatorsNonce, before.ValidatorsNonce)

	countAfter, err := eng.SnapshotCount("alpha")
	require.NoError(t, err)
	require.Equal(t, countBefore+1, countAfter)

	set, err := eng.CurrentValidatorSet("alpha")
	require.NoError(t, err)
	require.Equal(t, after.ValidatorsNonce, set.SetID)
	require.Equal(t, uint32(1), set.SeqNum)
	require.Len(t, set.Validators, 2)
}

func TestSnapshotOrdering(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	register(t, eng, "alpha")
	toStaging(t, eng, "alpha")

	stake(t, eng, "alpha", "val-b", "b.testnet", 200)
	stake(t, eng, "alpha", "val-a", "a.testnet", 500)
	stake(t, eng, "alpha", "val-d", "d.testnet", 200)
	stake(t, eng, "alpha", "val-c", "c.testnet", 900)

	// Delegation lifts val-d above the tied val-b.
	require.NoError(t, eng.PutDelegator("alpha", "val-d", &Delegator{
		DelegatorID: "del-1",
		AccountID:   "delegator.testnet",
		Amount:      big.NewInt(150),
		BlockHeight: 100,
	}))

	require.NoError(t, eng.Boot("alpha"))
	set, err := eng.ValidatorSetBySeqNum("alpha", 0)
	require.NoError(t, err)
	require.NotNil(t, set)

	var order []string
	for _, v := range set.Validators {
		order = append(order, v.ValidatorID)
	}
	require.Equal(t, []string{"val-c", "val-a", "val-d", "val-b"}, order)
	require.Zero(t, big.NewInt(350).Cmp(set.Validators[2].Weight))
	require.Len(t, set.Validators[2].Delegators, 1)
}

func TestSnapshotTieBreaksByValidatorID(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	register(t, eng, "alpha")
	toStaging(t, eng, "alpha")

	stake(t, eng, "alpha", "val-z", "z.testnet", 100)
	stake(t, eng, "alpha", "val-a", "a.testnet", 100)
	stake(t, eng, "alpha", "val-m", "m.testnet", 100)

	require.NoError(t, eng.Boot("alpha"))
	set, err := eng.ValidatorSetBySeqNum("alpha", 0)
	require.NoError(t, err)

	var order []string
	for _, v := range set.Validators {
		order = append(order, v.ValidatorID)
	}
	require.Equal(t, []string{"val-a", "val-m", "val-z"}, order)
}

func TestRemoveValidator(t *testing.T) {
	eng, _, emitter := newTestEngine(t)
	register(t, eng, "alpha")
	toStaging(t, eng, "alpha")
	stake(t, eng, "alpha", "val-1", "alice.testnet", 100)
	stake(t, eng, "alpha", "val-2", "bob.testnet", 200)
	require.NoError(t, eng.PutDelegator("alpha", "val-2", &Delegator{
		DelegatorID: "del-1",
		AccountID:   "delegator.testnet",
		Amount:      big.NewInt(40),
	}))

	removed, delegators, err := eng.RemoveValidator("alpha", "val-2", "bob.testnet")
	require.NoError(t, err)
	require.Zero(t, big.NewInt(200).Cmp(removed.Amount))
	require.Len(t, delegators, 1)

	st, err := eng.State("alpha")
	require.NoError(t, err)
	require.Zero(t, big.NewInt(100).Cmp(st.StakedBalance))

	_, err = eng.Validator("alpha", "val-2")
	require.True(t, errors.HasCode(err, errors.CodeValidatorNotFound))

	book, err := eng.RemovedValidator("alpha", "val-2")
	require.NoError(t, err)
	require.Equal(t, "bob.testnet", book.AccountID)

	id, err := eng.ValidatorIDByAccount("alpha", "bob.testnet")
	require.NoError(t, err)
	require.Empty(t, id)

	// Wrong owner is rejected.
	_, _, err = eng.RemoveValidator("alpha", "val-1", "bob.testnet")
	require.True(t, errors.HasCode(err, errors.CodeNotFounder))

	require.Len(t, emitter.ofType(events.TypeUnstaked), 1)
}

func TestBootingRemovalAppendsSnapshot(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	register(t, eng, "alpha")
	toStaging(t, eng, "alpha")
	stake(t, eng, "alpha", "val-1", "alice.testnet", 100)
	stake(t, eng, "alpha", "val-2", "bob.testnet", 200)
	require.NoError(t, eng.Boot("alpha"))

	before, err := eng.SnapshotCount("alpha")
	require.NoError(t, err)

	_, _, err = eng.RemoveValidator("alpha", "val-1", "")
	require.NoError(t, err)

	after, err := eng.SnapshotCount("alpha")
	require.NoError(t, err)
	require.Equal(t, before+1, after)

	set, err := eng.CurrentValidatorSet("alpha")
	require.NoError(t, err)
	require.Len(t, set.Validators, 1)
	require.Equal(t, "val-2", set.Validators[0].ValidatorID)
}

func TestFlushSnapshotRestampsWithoutNonceBump(t *testing.T) {
	eng, clock, _ := newTestEngine(t)
	register(t, eng, "alpha")
	toStaging(t, eng, "alpha")
	stake(t, eng, "alpha", "val-1", "alice.testnet", 100)
	require.NoError(t, eng.Boot("alpha"))

	// The boot seed carries sequence zero while the running period is already
	// one, so the first flush restamps the set.
	require.NoError(t, eng.FlushSnapshot("alpha"))
	count, err := eng.SnapshotCount("alpha")
	require.NoError(t, err)
	require.Equal(t, uint32(2), count)

	// Flushing twice in the same period is a no-op.
	require.NoError(t, eng.FlushSnapshot("alpha"))
	count, err = eng.SnapshotCount("alpha")
	require.NoError(t, err)
	require.Equal(t, uint32(2), count)

	clock.now += 2 * testCycle

	nonceBefore, err := eng.State("alpha")
	require.NoError(t, err)
	require.NoError(t, eng.FlushSnapshot("alpha"))

	count, err = eng.SnapshotCount("alpha")
	require.NoError(t, err)
	require.Equal(t, uint32(3), count)

	after, err := eng.State("alpha")
	require.NoError(t, err)
	require.Equal(t, nonceBefore.ValidatorsNonce, after.ValidatorsNonce)

	seq, err := eng.CurrentSeqNum("alpha")
	require.NoError(t, err)
	set, err := eng.ValidatorSetBySeqNum("alpha", seq)
	require.NoError(t, err)
	require.NotNil(t, set)
	require.Equal(t, after.ValidatorsNonce, set.SetID)
}

func TestCurrentValidatorSetRestampsStaleSnapshot(t *testing.T) {
	eng, clock, _ := newTestEngine(t)
	register(t, eng, "alpha")
	toStaging(t, eng, "alpha")
	stake(t, eng, "alpha", "val-1", "alice.testnet", 100)
	require.NoError(t, eng.Boot("alpha"))

	clock.now += 3 * testCycle

	seq, err := eng.CurrentSeqNum("alpha")
	require.NoError(t, err)
	set, err := eng.CurrentValidatorSet("alpha")
	require.NoError(t, err)
	require.Equal(t, seq, set.SeqNum)
	require.Len(t, set.Validators, 1)
}

func TestFactLogRoundTrip(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	register(t, eng, "alpha")
	toStaging(t, eng, "alpha")
	stake(t, eng, "alpha", "val-1", "alice.testnet", 100)
	require.NoError(t, eng.Boot("alpha"))
	require.NoError(t, eng.LockToken("alpha", "usdc.testnet", "alice.testnet", "receiver", big.NewInt(5)))
	require.NoError(t, eng.AppendBurnFact("alpha", "bob.testnet", "receiver", big.NewInt(7)))

	count, err := eng.FactCount("alpha")
	require.NoError(t, err)
	facts, err := eng.Facts("alpha", 0, count)
	require.NoError(t, err)
	require.Len(t, facts, int(count))

	for _, f := range facts {
		decoded, err := DecodeFact(EncodeFact(f))
		require.NoError(t, err)
		require.Equal(t, f, decoded)
	}

	// The lock flushed the boot seed into period one before recording, so the
	// log holds two set updates. Lock and burn facts carry their log index as
	// sequence number.
	var kinds []FactKind
	for _, f := range facts {
		kinds = append(kinds, f.Kind)
	}
	require.Equal(t, []FactKind{FactUpdateValidatorSet, FactUpdateValidatorSet, FactLockToken, FactBurnNativeToken}, kinds)
	require.Equal(t, uint32(2), facts[2].Locked.SeqNum)
	require.Equal(t, uint32(3), facts[3].Burned.SeqNum)
}

func TestLockUnlockAccounting(t *testing.T) {
	eng, _, emitter := newTestEngine(t)
	register(t, eng, "alpha")
	toStaging(t, eng, "alpha")
	stake(t, eng, "alpha", "val-1", "alice.testnet", 100)

	// Locking requires Booting.
	err := eng.LockToken("alpha", "usdc.testnet", "a", "r", big.NewInt(10))
	require.True(t, errors.HasCode(err, errors.CodeInvalidStatus))

	require.NoError(t, eng.Boot("alpha"))
	require.NoError(t, eng.LockToken("alpha", "usdc.testnet", "a", "r", big.NewInt(10)))
	require.NoError(t, eng.LockToken("alpha", "usdc.testnet", "a", "r", big.NewInt(15)))
	require.NoError(t, eng.LockToken("alpha", "dai.testnet", "a", "r", big.NewInt(3)))

	locked, err := eng.LockedAmount("alpha", "usdc.testnet")
	require.NoError(t, err)
	require.Zero(t, big.NewInt(25).Cmp(locked))

	tokens, err := eng.LockedTokenIDs("alpha")
	require.NoError(t, err)
	require.Equal(t, []string{"usdc.testnet", "dai.testnet"}, tokens)

	err = eng.UnlockToken("alpha", "usdc.testnet", "r", big.NewInt(26))
	require.True(t, errors.HasCode(err, errors.CodeInsufficientLocked))

	require.NoError(t, eng.UnlockToken("alpha", "usdc.testnet", "r", big.NewInt(25)))
	locked, err = eng.LockedAmount("alpha", "usdc.testnet")
	require.NoError(t, err)
	require.Zero(t, locked.Sign())

	tokens, err = eng.LockedTokenIDs("alpha")
	require.NoError(t, err)
	require.Equal(t, []string{"dai.testnet"}, tokens)

	require.Len(t, emitter.ofType(events.TypeTokenLocked), 3)
	require.Len(t, emitter.ofType(events.TypeTokenUnlocked), 1)
}

func TestUseMessageIdempotence(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	register(t, eng, "alpha")

	used, err := eng.IsMessageUsed("alpha", 7)
	require.NoError(t, err)
	require.False(t, used)

	fresh, err := eng.UseMessage("alpha", 7)
	require.NoError(t, err)
	require.True(t, fresh)

	fresh, err = eng.UseMessage("alpha", 7)
	require.NoError(t, err)
	require.False(t, fresh)

	used, err = eng.IsMessageUsed("alpha", 7)
	require.NoError(t, err)
	require.True(t, used)
}

func TestClearStorageCascades(t *testing.T) {
	eng, _, emitter := newTestEngine(t)
	register(t, eng, "alpha")
	register(t, eng, "beta")
	toStaging(t, eng, "alpha")
	stake(t, eng, "alpha", "val-1", "alice.testnet", 100)
	require.NoError(t, eng.PutDelegator("alpha", "val-1", &Delegator{
		DelegatorID: "del-1",
		AccountID:   "delegator.testnet",
		Amount:      big.NewInt(5),
	}))

	require.NoError(t, eng.ClearStorage("alpha"))

	ids, err := eng.IDs()
	require.NoError(t, err)
	require.Equal(t, []string{"beta"}, ids)

	_, err = eng.State("alpha")
	require.True(t, errors.HasCode(err, errors.CodeAppchainNotFound))
	_, err = eng.Validator("alpha", "val-1")
	require.True(t, errors.HasCode(err, errors.CodeValidatorNotFound))
	delegators, err := eng.Delegators("alpha", "val-1")
	require.NoError(t, err)
	require.Empty(t, delegators)

	// The sibling appchain is untouched.
	_, err = eng.State("beta")
	require.NoError(t, err)

	require.Len(t, emitter.ofType(events.TypeAppchainRemoved), 1)
}
