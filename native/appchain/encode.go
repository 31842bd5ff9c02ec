package appchain

import (
	"math/big"

	"relayhub/codec"
)

// Canonical encodings of the appchain entities. Field order is part of the
// storage contract; new fields are only ever appended and require a schema
// migration (see the relay migration routine).

// EncodeMetadata encodes a metadata record.
func EncodeMetadata(m *Metadata) []byte {
	w := codec.NewWriter()
	w.WriteString(m.ID)
	w.WriteString(m.FounderID)
	w.WriteString(m.WebsiteURL)
	w.WriteString(m.GithubAddress)
	w.WriteString(m.GithubRelease)
	w.WriteString(m.CommitID)
	w.WriteString(m.Email)
	w.WriteString(m.ChainSpecURL)
	w.WriteString(m.ChainSpecHash)
	w.WriteString(m.ChainSpecRawURL)
	w.WriteString(m.ChainSpecRawHash)
	w.WriteString(m.BootNodes)
	w.WriteString(m.RPCEndpoint)
	w.WriteString(m.SubqlURL)
	w.WriteU128(m.BondTokens)
	w.WriteU64(m.RegistrationHeight)
	return w.Bytes()
}

// DecodeMetadata decodes a metadata record.
func DecodeMetadata(data []byte) (*Metadata, error) {
	r := codec.NewReader(data)
	m := &Metadata{}
	var err error
	fields := []*string{
		&m.ID, &m.FounderID, &m.WebsiteURL, &m.GithubAddress, &m.GithubRelease,
		&m.CommitID, &m.Email, &m.ChainSpecURL, &m.ChainSpecHash,
		&m.ChainSpecRawURL, &m.ChainSpecRawHash, &m.BootNodes, &m.RPCEndpoint,
		&m.SubqlURL,
	}
	for _, f := range fields {
		if *f, err = r.ReadString(); err != nil {
			return nil, err
		}
	}
	if m.BondTokens, err = r.ReadU128(); err != nil {
		return nil, err
	}
	if m.RegistrationHeight, err = r.ReadU64(); err != nil {
		return nil, err
	}
	if err := r.Done(); err != nil {
		return nil, err
	}
	return m, nil
}

// EncodeState encodes the per-appchain state record.
func EncodeState(s *State) []byte {
	w := codec.NewWriter()
	w.WriteString(s.AppchainID)
	w.WriteU8(uint8(s.Status))
	w.WriteU32(s.ValidatorsNonce)
	w.WriteU64(s.ValidatorsTimestamp)
	w.WriteU64(s.ValidatorSetTimestamp)
	w.WriteU64(s.BootingTimestamp)
	w.WriteU128(s.StakedBalance)
	w.WriteU128(s.UpvoteBalance)
	w.WriteU128(s.DownvoteBalance)
	w.WriteU64(s.MessageNonce)
	w.WriteString(s.ProverID)
	return w.Bytes()
}

// DecodeState decodes the per-appchain state record.
func DecodeState(data []byte) (*State, error) {
	r := codec.NewReader(data)
	s := &State{}
	var err error
	if s.AppchainID, err = r.ReadString(); err != nil {
		return nil, err
	}
	status, err := r.ReadU8()
	if err != nil {
		return nil, err
	}
	s.Status = Status(status)
	if !s.Status.Valid() {
		return nil, &codec.DecodeError{Offset: r.Offset(), Reason: "invalid appchain status"}
	}
	if s.ValidatorsNonce, err = r.ReadU32(); err != nil {
		return nil, err
	}
	if s.ValidatorsTimestamp, err = r.ReadU64(); err != nil {
		return nil, err
	}
	if s.ValidatorSetTimestamp, err = r.ReadU64(); err != nil {
		return nil, err
	}
	if s.BootingTimestamp, err = r.ReadU64(); err != nil {
		return nil, err
	}
	if s.StakedBalance, err = r.ReadU128(); err != nil {
		return nil, err
	}
	if s.UpvoteBalance, err = r.ReadU128(); err != nil {
		return nil, err
	}
	if s.DownvoteBalance, err = r.ReadU128(); err != nil {
		return nil, err
	}
	if s.MessageNonce, err = r.ReadU64(); err != nil {
		return nil, err
	}
	if s.ProverID, err = r.ReadString(); err != nil {
		return nil, err
	}
	if err := r.Done(); err != nil {
		return nil, err
	}
	return s, nil
}

// EncodeValidator encodes a validator record in the current (v2) layout.
func EncodeValidator(v *Validator) []byte {
	w := codec.NewWriter()
	w.WriteString(v.ValidatorID)
	w.WriteString(v.AccountID)
	w.WriteU128(v.Amount)
	w.WriteU64(v.BlockHeight)
	w.WriteString(v.Note)
	return w.Bytes()
}

// DecodeValidator decodes a current-layout validator record.
func DecodeValidator(data []byte) (*Validator, error) {
	r := codec.NewReader(data)
	v, err := readValidatorCommon(r)
	if err != nil {
		return nil, err
	}
	if v.Note, err = r.ReadString(); err != nil {
		return nil, err
	}
	if err := r.Done(); err != nil {
		return nil, err
	}
	return v, nil
}

// DecodeValidatorLegacy decodes the pre-migration (v1) layout, which lacks
// the note field.
func DecodeValidatorLegacy(data []byte) (*Validator, error) {
	r := codec.NewReader(data)
	v, err := readValidatorCommon(r)
	if err != nil {
		return nil, err
	}
	if err := r.Done(); err != nil {
		return nil, err
	}
	return v, nil
}

func readValidatorCommon(r *codec.Reader) (*Validator, error) {
	v := &Validator{}
	var err error
	if v.ValidatorID, err = r.ReadString(); err != nil {
		return nil, err
	}
	if v.AccountID, err = r.ReadString(); err != nil {
		return nil, err
	}
	if v.Amount, err = r.ReadU128(); err != nil {
		return nil, err
	}
	if v.BlockHeight, err = r.ReadU64(); err != nil {
		return nil, err
	}
	return v, nil
}

// EncodeValidatorLegacy encodes the v1 layout. Only the migration tests need
// it, to seed pre-migration stores.
func EncodeValidatorLegacy(v *Validator) []byte {
	w := codec.NewWriter()
	w.WriteString(v.ValidatorID)
	w.WriteString(v.AccountID)
	w.WriteU128(v.Amount)
	w.WriteU64(v.BlockHeight)
	return w.Bytes()
}

// EncodeDelegator encodes a delegator record.
func EncodeDelegator(d *Delegator) []byte {
	w := codec.NewWriter()
	writeDelegator(w, d)
	return w.Bytes()
}

func writeDelegator(w *codec.Writer, d *Delegator) {
	w.WriteString(d.DelegatorID)
	w.WriteString(d.AccountID)
	w.WriteU128(d.Amount)
	w.WriteU64(d.BlockHeight)
}

// DecodeDelegator decodes a delegator record.
func DecodeDelegator(data []byte) (*Delegator, error) {
	r := codec.NewReader(data)
	d, err := readDelegator(r)
	if err != nil {
		return nil, err
	}
	if err := r.Done(); err != nil {
		return nil, err
	}
	return d, nil
}

func readDelegator(r *codec.Reader) (*Delegator, error) {
	d := &Delegator{}
	var err error
	if d.DelegatorID, err = r.ReadString(); err != nil {
		return nil, err
	}
	if d.AccountID, err = r.ReadString(); err != nil {
		return nil, err
	}
	if d.Amount, err = r.ReadU128(); err != nil {
		return nil, err
	}
	if d.BlockHeight, err = r.ReadU64(); err != nil {
		return nil, err
	}
	return d, nil
}

// EncodeValidatorSet encodes a snapshot.
func EncodeValidatorSet(set *ValidatorSet) []byte {
	w := codec.NewWriter()
	writeValidatorSet(w, set)
	return w.Bytes()
}

func writeValidatorSet(w *codec.Writer, set *ValidatorSet) {
	w.WriteU32(set.SeqNum)
	w.WriteU32(set.SetID)
	w.WriteU32(uint32(len(set.Validators)))
	for i := range set.Validators {
		v := &set.Validators[i]
		w.WriteString(v.ValidatorID)
		w.WriteString(v.AccountID)
		w.WriteU128(v.Weight)
		w.WriteU64(v.BlockHeight)
		w.WriteU32(uint32(len(v.Delegators)))
		for j := range v.Delegators {
			writeDelegator(w, &v.Delegators[j])
		}
	}
}

// DecodeValidatorSet decodes a snapshot.
func DecodeValidatorSet(data []byte) (*ValidatorSet, error) {
	r := codec.NewReader(data)
	set, err := readValidatorSet(r)
	if err != nil {
		return nil, err
	}
	if err := r.Done(); err != nil {
		return nil, err
	}
	return set, nil
}

func readValidatorSet(r *codec.Reader) (*ValidatorSet, error) {
	set := &ValidatorSet{}
	var err error
	if set.SeqNum, err = r.ReadU32(); err != nil {
		return nil, err
	}
	if set.SetID, err = r.ReadU32(); err != nil {
		return nil, err
	}
	count, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	set.Validators = make([]ValidatorSummary, 0, count)
	for i := uint32(0); i < count; i++ {
		v := ValidatorSummary{}
		if v.ValidatorID, err = r.ReadString(); err != nil {
			return nil, err
		}
		if v.AccountID, err = r.ReadString(); err != nil {
			return nil, err
		}
		if v.Weight, err = r.ReadU128(); err != nil {
			return nil, err
		}
		if v.BlockHeight, err = r.ReadU64(); err != nil {
			return nil, err
		}
		dcount, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		for j := uint32(0); j < dcount; j++ {
			d, err := readDelegator(r)
			if err != nil {
				return nil, err
			}
			v.Delegators = append(v.Delegators, *d)
		}
		set.Validators = append(set.Validators, v)
	}
	return set, nil
}

// EncodeFact encodes a tagged fact-log entry.
func EncodeFact(f *Fact) []byte {
	w := codec.NewWriter()
	w.WriteU8(uint8(f.Kind))
	switch f.Kind {
	case FactUpdateValidatorSet:
		writeValidatorSet(w, f.ValidatorSet)
	case FactLockToken:
		l := f.Locked
		w.WriteU32(l.SeqNum)
		w.WriteString(l.TokenID)
		w.WriteString(l.SenderID)
		w.WriteString(l.Receiver)
		w.WriteU128(l.Amount)
		w.WriteU64(l.BlockHeight)
	case FactBurnNativeToken:
		b := f.Burned
		w.WriteU32(b.SeqNum)
		w.WriteString(b.SenderID)
		w.WriteString(b.Receiver)
		w.WriteU128(b.Amount)
		w.WriteU64(b.BlockHeight)
	}
	return w.Bytes()
}

// DecodeFact decodes a tagged fact-log entry.
func DecodeFact(data []byte) (*Fact, error) {
	r := codec.NewReader(data)
	kind, err := r.ReadU8()
	if err != nil {
		return nil, err
	}
	f := &Fact{Kind: FactKind(kind)}
	switch f.Kind {
	case FactUpdateValidatorSet:
		if f.ValidatorSet, err = readValidatorSet(r); err != nil {
			return nil, err
		}
	case FactLockToken:
		l := &Locked{}
		if l.SeqNum, err = r.ReadU32(); err != nil {
			return nil, err
		}
		if l.TokenID, err = r.ReadString(); err != nil {
			return nil, err
		}
		if l.SenderID, err = r.ReadString(); err != nil {
			return nil, err
		}
		if l.Receiver, err = r.ReadString(); err != nil {
			return nil, err
		}
		if l.Amount, err = r.ReadU128(); err != nil {
			return nil, err
		}
		if l.BlockHeight, err = r.ReadU64(); err != nil {
			return nil, err
		}
		f.Locked = l
	case FactBurnNativeToken:
		b := &Burned{}
		if b.SeqNum, err = r.ReadU32(); err != nil {
			return nil, err
		}
		if b.SenderID, err = r.ReadString(); err != nil {
			return nil, err
		}
		if b.Receiver, err = r.ReadString(); err != nil {
			return nil, err
		}
		if b.Amount, err = r.ReadU128(); err != nil {
			return nil, err
		}
		if b.BlockHeight, err = r.ReadU64(); err != nil {
			return nil, err
		}
		f.Burned = b
	default:
		return nil, &codec.DecodeError{Offset: r.Offset(), Reason: "unknown fact kind"}
	}
	if err := r.Done(); err != nil {
		return nil, err
	}
	return f, nil
}

// EncodeU32 is a helper for length counters stored as standalone records.
func EncodeU32(v uint32) []byte {
	w := codec.NewWriter()
	w.WriteU32(v)
	return w.Bytes()
}

// DecodeU32 decodes a standalone length counter.
func DecodeU32(data []byte) (uint32, error) {
	r := codec.NewReader(data)
	v, err := r.ReadU32()
	if err != nil {
		return 0, err
	}
	if err := r.Done(); err != nil {
		return 0, err
	}
	return v, nil
}

// EncodeU128 encodes a standalone balance record.
func EncodeU128(v *big.Int) []byte {
	w := codec.NewWriter()
	w.WriteU128(v)
	return w.Bytes()
}

// DecodeU128 decodes a standalone balance record.
func DecodeU128(data []byte) (*big.Int, error) {
	r := codec.NewReader(data)
	v, err := r.ReadU128()
	if err != nil {
		return nil, err
	}
	if err := r.Done(); err != nil {
		return nil, err
	}
	return v, nil
}
