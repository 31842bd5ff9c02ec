package relay

import (
	"math/big"
	"testing"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"relayhub/codec"
	"relayhub/core/events"
	"relayhub/core/host"
	"relayhub/core/state"
	"relayhub/crypto/mmr"
	"relayhub/storage"
)

const (
	relayAccount    = "relay.testnet"
	ownerAccount    = "owner.testnet"
	collateralToken = "oct.testnet"
	founderAccount  = "founder.testnet"
	usdcToken       = "usdc.testnet"
	wrappedToken    = "walpha.testnet"
	relayerAccount  = "relayer.testnet"

	testCycle = uint64(86_400_000_000_000) // one day in nanoseconds
)

// oct scales whole collateral tokens into their 24-decimal representation.
func oct(whole int64) *big.Int {
	base := new(big.Int).Exp(big.NewInt(10), big.NewInt(24), nil)
	return new(big.Int).Mul(big.NewInt(whole), base)
}

type extCall struct {
	method  string
	args    []byte
	deposit *big.Int
}

// successHandler simulates an external contract that accepts every call,
// recording it for inspection.
func successHandler(calls *[]extCall) host.ExternalHandler {
	return func(method string, args []byte, deposit *big.Int) host.Result {
		*calls = append(*calls, extCall{method: method, args: args, deposit: deposit})
		return host.Result{Successful: true}
	}
}

// failingHandler simulates an external contract that rejects every call.
func failingHandler() host.ExternalHandler {
	return func(string, []byte, *big.Int) host.Result {
		return host.Result{Successful: false}
	}
}

type eventLog struct {
	emitted []events.Event
}

func (l *eventLog) Emit(e events.Event) { l.emitted = append(l.emitted, e) }

func (l *eventLog) count(eventType string) int {
	n := 0
	for _, e := range l.emitted {
		if e.EventType() == eventType {
			n++
		}
	}
	return n
}

type fixture struct {
	sim    *host.Sim
	db     *storage.MemDB
	reg    *Registry
	events *eventLog
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	sim := host.NewSim(relayAccount)
	sim.SetTimestamp(1_000_000_000_000)
	sim.SetHeight(100)
	db := storage.NewMemDB()
	reg := NewRegistry(sim, state.NewManager(db), testCycle)
	log := &eventLog{}
	reg.SetEmitter(log)
	require.NoError(t, reg.Init(ownerAccount, Settings{
		TokenContractID:   collateralToken,
		MinimumValidators: 2,
		MinimumStaking:    oct(10),
		BridgeLimitRatio:  10000,
		CollateralPrice:   big.NewInt(2_000_000),
	}))
	return &fixture{sim: sim, db: db, reg: reg, events: log}
}

func (f *fixture) asOwner()      { f.sim.SetCaller(ownerAccount, ownerAccount) }
func (f *fixture) asCollateral() { f.sim.SetCaller(founderAccount, collateralToken) }

// transferCall invokes the transfer-call hook the way the collateral token
// contract does, with the given logical sender.
func (f *fixture) transferCall(t *testing.T, sender string, amount *big.Int, msg string) error {
	t.Helper()
	f.sim.SetCaller(sender, collateralToken)
	refund, err := f.reg.FtOnTransfer(sender, amount, msg)
	if err == nil {
		require.Zero(t, refund.Sign())
	}
	return err
}

// registerAppchain runs the registration transfer-call with a 1000-token bond.
func (f *fixture) registerAppchain(t *testing.T, appchainID string) {
	t.Helper()
	require.NoError(t, f.transferCall(t, founderAccount, big.NewInt(1000),
		"register_appchain,"+appchainID+",https://example.org,github.com/example"))
}

// stagedAppchain registers an appchain, audits it through to Staging and
// stakes two validators of 500 whole tokens each.
func (f *fixture) stagedAppchain(t *testing.T, appchainID string) {
	t.Helper()
	f.registerAppchain(t, appchainID)
	f.asOwner()
	require.NoError(t, f.reg.PassAppchain(appchainID))
	require.NoError(t, f.reg.AppchainGoStaging(appchainID))
	require.NoError(t, f.transferCall(t, "alice.testnet", oct(500), "staking,"+appchainID+",val-1"))
	require.NoError(t, f.transferCall(t, "bob.testnet", oct(500), "staking,"+appchainID+",val-2"))
}

// bootedAppchain stages an appchain and activates it, settling the bond
// refund against an accepting collateral token contract.
func (f *fixture) bootedAppchain(t *testing.T, appchainID string) {
	t.Helper()
	f.stagedAppchain(t, appchainID)
	var calls []extCall
	f.sim.RegisterContract(collateralToken, successHandler(&calls))
	f.asOwner()
	require.NoError(t, f.reg.ActivateAppchain(appchainID,
		"boot-nodes", "https://rpc.example.org", "https://spec", "spec-hash", "https://spec-raw", "spec-raw-hash"))
	require.NoError(t, f.sim.Run(f.reg))
}

// batchProof builds a single-leaf MMR carrying a header committed to the
// encoded batch, returning the pieces Relay consumes.
func batchProof(encodedMessages []byte) (headerPartial, leafProof []byte, root [32]byte) {
	header := &codec.HeaderPartial{Number: 7}
	header.Digest = []codec.DigestItem{
		{Kind: codec.DigestOther, Payload: ethcrypto.Keccak256(encodedMessages)},
	}
	leaf := codec.EncodeMMRLeaf(header.Number, header.Hash())
	root = mmr.DataNode(leaf).Hash()
	proof := &codec.MMRProof{LeafIndex: 0, LeafCount: 1}
	return header.Encode(), proof.Encode(), root
}

// relayBatch submits a message batch with enough deposit attached for the
// given number of fresh messages.
func (f *fixture) relayBatch(t *testing.T, appchainID string, messages []codec.Message, freshCount int64) error {
	t.Helper()
	encoded := codec.EncodeMessages(messages)
	headerPartial, leafProof, root := batchProof(encoded)
	f.sim.SetCaller(relayerAccount, relayerAccount)
	f.sim.SetDeposit(new(big.Int).Mul(StorageDepositAmount, big.NewInt(freshCount)))
	err := f.reg.Relay(appchainID, encoded, headerPartial, leafProof, root)
	f.sim.SetDeposit(nil)
	return err
}
