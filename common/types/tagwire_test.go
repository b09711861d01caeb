package types_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bothonetwork/go-clustertax/codec"
	"github.com/bothonetwork/go-clustertax/common/types"
)

func TestWireTagVectorRoundTrip(t *testing.T) {
	t.Parallel()
	v := &types.WireTagVector{Entries: []types.TagEntry{
		{Cluster: 5, Weight: 700_000},
		{Cluster: 3, Weight: 200_000},
		{Cluster: 8, Weight: 50_000},
	}}
	require.NoError(t, v.Validate())

	data, err := codec.Encode(v)
	require.NoError(t, err)

	var got types.WireTagVector
	require.NoError(t, codec.Decode(data, &got))
	require.Equal(t, v.Entries, got.Entries)

	// canonical order means canonical bytes
	again, err := codec.Encode(&got)
	require.NoError(t, err)
	require.Equal(t, data, again)
}

func TestWireTagVectorEmptyRoundTrip(t *testing.T) {
	t.Parallel()
	data, err := codec.Encode(&types.WireTagVector{})
	require.NoError(t, err)

	var got types.WireTagVector
	require.NoError(t, codec.Decode(data, &got))
	require.Empty(t, got.Entries)
	require.NoError(t, got.Validate())
}

func TestWireTagVectorValidate(t *testing.T) {
	t.Parallel()
	for _, tc := range []struct {
		name    string
		entries []types.TagEntry
		err     error
	}{
		{
			name: "too many entries",
			entries: func() []types.TagEntry {
				out := make([]types.TagEntry, types.MaxClusterTags+1)
				for i := range out {
					out[i] = types.TagEntry{
						Cluster: types.ClusterId(i + 1),
						Weight:  uint32(types.TagWeightScale/64 - i),
					}
				}
				return out
			}(),
			err: types.ErrTooManyTags,
		},
		{
			name: "empty cluster id",
			entries: []types.TagEntry{
				{Cluster: types.EmptyClusterId, Weight: 500_000},
			},
			err: types.ErrEmptyCluster,
		},
		{
			name: "duplicate cluster",
			entries: []types.TagEntry{
				{Cluster: 1, Weight: 500_000},
				{Cluster: 1, Weight: 100_000},
			},
			err: types.ErrDuplicateCluster,
		},
		{
			name: "weight below stored minimum",
			entries: []types.TagEntry{
				{Cluster: 1, Weight: types.MinStoredWeight - 1},
			},
			err: types.ErrWeightOutOfRange,
		},
		{
			name: "weight above scale",
			entries: []types.TagEntry{
				{Cluster: 1, Weight: types.TagWeightScale + 1},
			},
			err: types.ErrWeightOutOfRange,
		},
		{
			name: "sum above scale",
			entries: []types.TagEntry{
				{Cluster: 1, Weight: 600_000},
				{Cluster: 2, Weight: 600_000},
			},
			err: types.ErrWeightSumOverflow,
		},
		{
			name: "weights out of order",
			entries: []types.TagEntry{
				{Cluster: 1, Weight: 100_000},
				{Cluster: 2, Weight: 200_000},
			},
			err: types.ErrUnsortedTags,
		},
		{
			name: "tied weights with descending clusters",
			entries: []types.TagEntry{
				{Cluster: 2, Weight: 100_000},
				{Cluster: 1, Weight: 100_000},
			},
			err: types.ErrUnsortedTags,
		},
	} {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			v := &types.WireTagVector{Entries: tc.entries}
			require.ErrorIs(t, v.Validate(), tc.err)
		})
	}
}

func TestWireTagVectorTotalStored(t *testing.T) {
	t.Parallel()
	v := &types.WireTagVector{Entries: []types.TagEntry{
		{Cluster: 1, Weight: 600_000},
		{Cluster: 2, Weight: 300_000},
	}}
	require.Equal(t, uint64(900_000), v.TotalStored())
	require.Equal(t, uint64(0), (&types.WireTagVector{}).TotalStored())
}

func TestDecodeRejectsOversizedVector(t *testing.T) {
	t.Parallel()
	// encode above the wire limit by hand and make sure decoding refuses it
	entries := make([]types.TagEntry, types.MaxClusterTags+1)
	for i := range entries {
		entries[i] = types.TagEntry{Cluster: types.ClusterId(i + 1), Weight: 10_000}
	}
	_, err := codec.Encode(&types.WireTagVector{Entries: entries})
	require.Error(t, err)
}

func TestActivityStateRoundTrip(t *testing.T) {
	t.Parallel()
	s := types.NewUtxoActivityState(720)
	s = s.RecordSpend(2000)

	data, err := codec.Encode(&s)
	require.NoError(t, err)
	var got types.UtxoActivityState
	require.NoError(t, codec.Decode(data, &got))
	require.Equal(t, s, got)
}

func TestActivityStateAge(t *testing.T) {
	t.Parallel()
	s := types.NewUtxoActivityState(1000)
	require.Equal(t, uint64(0), s.Age(1000))
	require.Equal(t, uint64(720), s.Age(1720))
	require.Equal(t, uint64(0), s.Age(500))

	spent := s.RecordSpend(1500)
	require.Equal(t, types.BlockHeight(1000), spent.CreationBlock)
	require.Equal(t, types.BlockHeight(1500), spent.LastActivityBlock)
	// age is anchored to creation, not to activity
	require.Equal(t, uint64(720), spent.Age(1720))
}

func TestDeriveClusterId(t *testing.T) {
	t.Parallel()
	key := []byte("minter-public-key")

	a := types.DeriveClusterId(100, key, 0)
	require.Equal(t, a, types.DeriveClusterId(100, key, 0))
	require.NotEqual(t, types.EmptyClusterId, a)

	// any input change moves the id
	require.NotEqual(t, a, types.DeriveClusterId(101, key, 0))
	require.NotEqual(t, a, types.DeriveClusterId(100, key, 1))
	require.NotEqual(t, a, types.DeriveClusterId(100, []byte("other-key"), 0))
}

func TestClusterIdBytes(t *testing.T) {
	t.Parallel()
	id := types.ClusterId(0x0102030405060708)
	require.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, id.Bytes())
	require.Equal(t, "cluster/72623859790382856", id.String())
	require.Equal(t, uint64(0x0102030405060708), id.Uint64())
}
