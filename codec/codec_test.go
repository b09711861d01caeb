package codec_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bothonetwork/go-clustertax/codec"
	"github.com/bothonetwork/go-clustertax/common/types"
)

func TestEncodeIsDeterministic(t *testing.T) {
	t.Parallel()
	v := &types.WireTagVector{Entries: []types.TagEntry{
		{Cluster: 2, Weight: 600_000},
		{Cluster: 9, Weight: 300_000},
	}}
	a, err := codec.Encode(v)
	require.NoError(t, err)
	b, err := codec.Encode(v)
	require.NoError(t, err)
	require.Equal(t, a, b)
	require.Equal(t, a, codec.MustEncode(v))
}

func TestDecodeRejectsTrailingBytes(t *testing.T) {
	t.Parallel()
	s := types.NewUtxoActivityState(100)
	data, err := codec.Encode(&s)
	require.NoError(t, err)

	var got types.UtxoActivityState
	require.NoError(t, codec.Decode(data, &got))
	require.Error(t, codec.Decode(append(data, 0x00), &got))
}

func TestDecodeTruncatedInput(t *testing.T) {
	t.Parallel()
	v := &types.WireTagVector{Entries: []types.TagEntry{{Cluster: 1, Weight: 500_000}}}
	data, err := codec.Encode(v)
	require.NoError(t, err)

	var got types.WireTagVector
	require.Error(t, codec.Decode(data[:len(data)-1], &got))
}

func TestSliceRoundTrip(t *testing.T) {
	t.Parallel()
	entries := []types.TagEntry{
		{Cluster: 1, Weight: 500_000},
		{Cluster: 2, Weight: 250_000},
	}
	data, err := codec.EncodeSlice(entries)
	require.NoError(t, err)

	got, err := codec.DecodeSlice[types.TagEntry](data)
	require.NoError(t, err)
	require.Equal(t, entries, got)
}
