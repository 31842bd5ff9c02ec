package codec

import "math/big"

// PayloadKind tags the body of an appchain message.
type PayloadKind uint8

const (
	// PayloadBurnAsset asks the relay to release previously locked bridge
	// tokens to a settlement-chain account.
	PayloadBurnAsset PayloadKind = iota
	// PayloadLock asks the relay to mint native tokens for value locked on
	// the appchain.
	PayloadLock
)

// BurnAssetPayload is the body of a PayloadBurnAsset message.
type BurnAssetPayload struct {
	TokenID    string
	Sender     string
	ReceiverID string
	Amount     *big.Int
}

// LockPayload is the body of a PayloadLock message.
type LockPayload struct {
	Sender     string
	ReceiverID string
	Amount     *big.Int
}

// Message is a decoded appchain message. Exactly one of BurnAsset and Lock is
// set, matching Kind.
type Message struct {
	Nonce     uint64
	Kind      PayloadKind
	BurnAsset *BurnAssetPayload
	Lock      *LockPayload
}

// DecodeMessages decodes a message batch: a compact-prefixed sequence of
// {nonce, payload kind, payload bytes} entries. The decoder is total on
// well-formed input; any malformed entry fails the whole batch.
func DecodeMessages(encoded []byte) ([]Message, error) {
	r := NewReader(encoded)
	count, err := r.ReadCompact()
	if err != nil {
		return nil, err
	}
	msgs := make([]Message, 0, count)
	for i := uint64(0); i < count; i++ {
		nonce, err := r.ReadU64()
		if err != nil {
			return nil, err
		}
		kind, err := r.ReadU8()
		if err != nil {
			return nil, err
		}
		payloadLen, err := r.ReadCompact()
		if err != nil {
			return nil, err
		}
		payload, err := r.ReadRaw(int(payloadLen))
		if err != nil {
			return nil, err
		}
		msg := Message{Nonce: nonce, Kind: PayloadKind(kind)}
		pr := NewReader(payload)
		switch msg.Kind {
		case PayloadBurnAsset:
			body := &BurnAssetPayload{}
			if body.TokenID, err = pr.ReadString(); err == nil {
				if body.Sender, err = pr.ReadString(); err == nil {
					if body.ReceiverID, err = pr.ReadString(); err == nil {
						body.Amount, err = pr.ReadU128()
					}
				}
			}
			if err == nil {
				err = pr.Done()
			}
			if err != nil {
				return nil, wrapPayloadError(r, pr, err)
			}
			msg.BurnAsset = body
		case PayloadLock:
			body := &LockPayload{}
			if body.Sender, err = pr.ReadString(); err == nil {
				if body.ReceiverID, err = pr.ReadString(); err == nil {
					body.Amount, err = pr.ReadU128()
				}
			}
			if err == nil {
				err = pr.Done()
			}
			if err != nil {
				return nil, wrapPayloadError(r, pr, err)
			}
			msg.Lock = body
		default:
			return nil, &DecodeError{Offset: r.Offset(), Reason: "unknown payload kind"}
		}
		msgs = append(msgs, msg)
	}
	if err := r.Done(); err != nil {
		return nil, err
	}
	return msgs, nil
}

// wrapPayloadError rebases a payload-local offset onto the batch offset so the
// caller sees where in the original input decoding failed.
func wrapPayloadError(batch, payload *Reader, err error) error {
	if de, ok := err.(*DecodeError); ok {
		return &DecodeError{
			Offset: batch.Offset() - payload.Remaining() - (payload.Offset() - de.Offset),
			Reason: de.Reason,
		}
	}
	return err
}

// EncodeMessages produces the batch encoding of the supplied messages. The
// relay itself only decodes batches; encoding exists for provers and tests.
func EncodeMessages(msgs []Message) []byte {
	w := NewWriter()
	w.WriteCompact(uint64(len(msgs)))
	for _, m := range msgs {
		w.WriteU64(m.Nonce)
		w.WriteU8(uint8(m.Kind))
		pw := NewWriter()
		switch m.Kind {
		case PayloadBurnAsset:
			pw.WriteString(m.BurnAsset.TokenID)
			pw.WriteString(m.BurnAsset.Sender)
			pw.WriteString(m.BurnAsset.ReceiverID)
			pw.WriteU128(m.BurnAsset.Amount)
		case PayloadLock:
			pw.WriteString(m.Lock.Sender)
			pw.WriteString(m.Lock.ReceiverID)
			pw.WriteU128(m.Lock.Amount)
		}
		w.WriteCompact(uint64(len(pw.Bytes())))
		w.WriteRaw(pw.Bytes())
	}
	return w.Bytes()
}
