package host

import (
	"fmt"
	"math/big"
)

// ExternalHandler simulates one external contract. It receives the method,
// encoded arguments and attached deposit of a dispatched call and returns the
// call's result.
type ExternalHandler func(method string, args []byte, deposit *big.Int) Result

// Sim is a deterministic in-process host used by the simulation harness and
// the test suite. It queues dispatched calls and resolves them in order
// against registered external contracts, invoking continuations exactly the
// way the production host does: predecessor set to the relay account, no
// attached deposit, state re-read by the handler.
type Sim struct {
	height      uint64
	timestamp   uint64
	account     string
	signer      string
	predecessor string
	deposit     *big.Int

	queue     []Call
	contracts map[string]ExternalHandler
	transfers map[string]*big.Int
}

// NewSim creates a simulated host for a relay deployed under account.
func NewSim(account string) *Sim {
	return &Sim{
		account:   account,
		deposit:   new(big.Int),
		contracts: make(map[string]ExternalHandler),
		transfers: make(map[string]*big.Int),
	}
}

func (s *Sim) BlockHeight() uint64        { return s.height }
func (s *Sim) BlockTimestamp() uint64     { return s.timestamp }
func (s *Sim) CurrentAccount() string     { return s.account }
func (s *Sim) Signer() string             { return s.signer }
func (s *Sim) Predecessor() string        { return s.predecessor }
func (s *Sim) AttachedDeposit() *big.Int  { return new(big.Int).Set(s.deposit) }

// SetHeight sets the current block height.
func (s *Sim) SetHeight(h uint64) { s.height = h }

// SetTimestamp sets the current block time in nanoseconds.
func (s *Sim) SetTimestamp(ns uint64) { s.timestamp = ns }

// AdvanceTime moves the clock forward by the given number of nanoseconds.
func (s *Sim) AdvanceTime(ns uint64) { s.timestamp += ns }

// SetCaller configures signer and predecessor for the next entry point.
func (s *Sim) SetCaller(signer, predecessor string) {
	s.signer = signer
	s.predecessor = predecessor
}

// SetDeposit attaches a deposit to the next entry point.
func (s *Sim) SetDeposit(amount *big.Int) {
	if amount == nil {
		amount = new(big.Int)
	}
	s.deposit = new(big.Int).Set(amount)
}

// RegisterContract installs a handler simulating the external contract
// deployed under the given account.
func (s *Sim) RegisterContract(account string, handler ExternalHandler) {
	s.contracts[account] = handler
}

// Dispatch implements Runtime.
func (s *Sim) Dispatch(call Call) {
	s.queue = append(s.queue, call)
}

// Transfer implements Runtime by recording the outgoing amount.
func (s *Sim) Transfer(receiver string, amount *big.Int) {
	if amount == nil || amount.Sign() == 0 {
		return
	}
	total, ok := s.transfers[receiver]
	if !ok {
		total = new(big.Int)
		s.transfers[receiver] = total
	}
	total.Add(total, amount)
}

// Transferred returns the total native currency sent to receiver so far.
func (s *Sim) Transferred(receiver string) *big.Int {
	total, ok := s.transfers[receiver]
	if !ok {
		return new(big.Int)
	}
	return new(big.Int).Set(total)
}

// Pending reports the number of calls waiting for resolution.
func (s *Sim) Pending() int { return len(s.queue) }

// Run drains the dispatch queue, executing each call against its registered
// contract and feeding results into the relay's continuations. Calls to
// unregistered contracts fail. Continuations may dispatch further calls;
// those are processed in turn.
func (s *Sim) Run(contract Contract) error {
	for len(s.queue) > 0 {
		call := s.queue[0]
		s.queue = s.queue[1:]

		var result Result
		if handler, ok := s.contracts[call.Receiver]; ok {
			result = handler(call.Method, call.Args, call.Deposit)
		} else {
			result = Result{Successful: false}
		}
		if call.Then == nil {
			continue
		}

		savedPredecessor, savedDeposit := s.predecessor, s.deposit
		s.predecessor = s.account
		s.deposit = new(big.Int)
		err := contract.Resolve(call.Then.Method, call.Then.Args, result)
		s.predecessor, s.deposit = savedPredecessor, savedDeposit
		if err != nil {
			return fmt.Errorf("resolve %s: %w", call.Then.Method, err)
		}
	}
	return nil
}
