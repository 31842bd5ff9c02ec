// Package host abstracts the runtime that drives the relay: block context,
// caller identity, attached deposits, and the promise-with-callback mechanism
// every external token call goes through. The relay never blocks on an
// external call; it dispatches the call together with the name of the
// continuation the host must invoke once the call resolves, and the
// continuation runs in a later transaction against re-read state.
package host

import "math/big"

// Result is the outcome of a resolved external call.
type Result struct {
	Successful bool
	Value      []byte
}

// Callback names a continuation method on the relay itself, with its encoded
// arguments captured at dispatch time.
type Callback struct {
	Method string
	Args   []byte
}

// Call describes an external contract call to dispatch. Deposit is the amount
// of native settlement-chain currency attached to the call. Then, when set, is
// invoked by the host with the call's result.
type Call struct {
	Receiver string
	Method   string
	Args     []byte
	Deposit  *big.Int
	Then     *Callback
}

// Runtime is the host-provided execution context of a single transaction.
type Runtime interface {
	BlockHeight() uint64
	// BlockTimestamp returns the block time in nanoseconds.
	BlockTimestamp() uint64
	// CurrentAccount is the account the relay itself is deployed under.
	CurrentAccount() string
	// Signer is the account that signed the original transaction.
	Signer() string
	// Predecessor is the account that invoked the current entry point; for
	// continuation handlers it is always the relay's own account.
	Predecessor() string
	AttachedDeposit() *big.Int
	// Dispatch queues an external call. Dispatches are issued in order but
	// resolve independently.
	Dispatch(Call)
	// Transfer sends native settlement-chain currency, used for deposit
	// refunds.
	Transfer(receiver string, amount *big.Int)
}

// Contract is the callback surface the host drives on promise resolution.
type Contract interface {
	Resolve(method string, args []byte, result Result) error
}
