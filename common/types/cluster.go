package types

import (
	"encoding/binary"
	"fmt"

	"github.com/spacemeshos/go-scale"

	"github.com/bothonetwork/go-clustertax/hash"
)

// BlockHeight is a position in the chain, used for decay age gating.
type BlockHeight uint64

// EncodeScale implements scale.Encodable.
func (h BlockHeight) EncodeScale(e *scale.Encoder) (int, error) {
	return scale.EncodeCompact64(e, uint64(h))
}

// DecodeScale implements scale.Decodable.
func (h *BlockHeight) DecodeScale(d *scale.Decoder) (int, error) {
	v, total, err := scale.DecodeCompact64(d)
	*h = BlockHeight(v)
	return total, err
}

// ClusterId identifies a minting-origin cluster. It is assigned once, at the
// mint that created the cluster, and never changes afterwards.
type ClusterId uint64

// EmptyClusterId is the zero value, never assigned by DeriveClusterId.
const EmptyClusterId = ClusterId(0)

func (c ClusterId) String() string {
	return fmt.Sprintf("cluster/%d", uint64(c))
}

// Uint64 returns the raw identifier.
func (c ClusterId) Uint64() uint64 {
	return uint64(c)
}

// Bytes returns the big-endian byte form used in hashing transcripts.
func (c ClusterId) Bytes() []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(c))
	return buf
}

// clusterIdDomain separates cluster id derivation from any other use of the
// hash function in the protocol.
const clusterIdDomain = "clustertax/v1/cluster-id"

// DeriveClusterId computes the ClusterId for a minting event. The id is a
// deterministic function of the mint's position and the minter key, so every
// validator assigns the same id without coordination.
func DeriveClusterId(blockHeight BlockHeight, minterPubKey []byte, outputIndex uint32) ClusterId {
	hasher := hash.GetHasher()
	defer func() {
		hasher.Reset()
		hash.PutHasher(hasher)
	}()

	var buf [12]byte
	hasher.Write([]byte(clusterIdDomain))
	binary.BigEndian.PutUint64(buf[:8], uint64(blockHeight))
	binary.BigEndian.PutUint32(buf[8:], outputIndex)
	hasher.Write(buf[:8])
	hasher.Write(minterPubKey)
	hasher.Write(buf[8:])

	sum := hasher.Sum(nil)
	id := binary.BigEndian.Uint64(sum[:8])
	if id == 0 {
		// reserve 0 as the empty id
		id = binary.BigEndian.Uint64(sum[8:16]) | 1
	}
	return ClusterId(id)
}
