package codec

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func sampleBatch() []Message {
	return []Message{
		{
			Nonce: 1,
			Kind:  PayloadBurnAsset,
			BurnAsset: &BurnAssetPayload{
				TokenID:    "usdc.testnet",
				Sender:     "appchain-sender",
				ReceiverID: "alice.testnet",
				Amount:     big.NewInt(2_500_000),
			},
		},
		{
			Nonce: 2,
			Kind:  PayloadLock,
			Lock: &LockPayload{
				Sender:     "appchain-sender",
				ReceiverID: "bob.testnet",
				Amount:     big.NewInt(42),
			},
		},
	}
}

func TestMessageBatchRoundTrip(t *testing.T) {
	encoded := EncodeMessages(sampleBatch())
	decoded, err := DecodeMessages(encoded)
	require.NoError(t, err)
	require.Len(t, decoded, 2)

	require.Equal(t, uint64(1), decoded[0].Nonce)
	require.Equal(t, PayloadBurnAsset, decoded[0].Kind)
	require.Equal(t, "usdc.testnet", decoded[0].BurnAsset.TokenID)
	require.Equal(t, "alice.testnet", decoded[0].BurnAsset.ReceiverID)
	require.Zero(t, big.NewInt(2_500_000).Cmp(decoded[0].BurnAsset.Amount))

	require.Equal(t, uint64(2), decoded[1].Nonce)
	require.Equal(t, PayloadLock, decoded[1].Kind)
	require.Equal(t, "bob.testnet", decoded[1].Lock.ReceiverID)
}

func TestEmptyBatch(t *testing.T) {
	decoded, err := DecodeMessages(EncodeMessages(nil))
	require.NoError(t, err)
	require.Empty(t, decoded)
}

func TestUnknownPayloadKindFailsBatch(t *testing.T) {
	w := NewWriter()
	w.WriteCompact(1)
	w.WriteU64(9)
	w.WriteU8(99)
	w.WriteCompact(0)

	_, err := DecodeMessages(w.Bytes())
	var de *DecodeError
	require.ErrorAs(t, err, &de)
	require.Contains(t, de.Reason, "payload kind")
}

func TestTruncatedPayloadFailsBatch(t *testing.T) {
	encoded := EncodeMessages(sampleBatch())
	_, err := DecodeMessages(encoded[:len(encoded)-3])
	var de *DecodeError
	require.ErrorAs(t, err, &de)
}

func TestTrailingBytesFailBatch(t *testing.T) {
	encoded := EncodeMessages(sampleBatch())
	_, err := DecodeMessages(append(encoded, 0))
	var de *DecodeError
	require.ErrorAs(t, err, &de)
}
