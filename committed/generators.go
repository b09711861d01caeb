// Package committed implements the Phase-2 cryptographic form of tag
// vectors: per-cluster Pedersen commitments with domain-separated generators,
// plus Schnorr proofs that decay and propagation arithmetic was applied
// honestly without revealing the tags. Elliptic-curve arithmetic comes from
// gnark-crypto's BN254 implementation; this package only does the protocol
// wiring: what gets committed, in what order, under which domain tags, and
// how proofs compose across clusters.
package committed

import (
	"fmt"

	bn254 "github.com/consensys/gnark-crypto/ecc/bn254"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/bothonetwork/go-clustertax/common/types"
)

// Domain separation tags. Changing any of these is a hard fork.
const (
	clusterGeneratorDomain   = "clustertax/v1/cluster-tag-generator"
	totalMassGeneratorDomain = "clustertax/v1/total-mass-generator"
	schnorrChallengeDomain   = "clustertax/v1/schnorr-challenge"
	conservationDomain       = "clustertax/v1/conservation"
)

// defaultGeneratorCacheSize covers the clusters of several full blocks.
const defaultGeneratorCacheSize = 4096

// GeneratorCache holds the commitment generators. Cluster generators are
// derived by hash-to-curve on first use and memoized; derivation is
// deterministic, so concurrent duplicate work is harmless and the cached
// value never changes once present. Safe for concurrent use.
type GeneratorCache struct {
	clusters  *lru.Cache[types.ClusterId, bn254.G1Affine]
	blinding  bn254.G1Affine
	totalMass bn254.G1Affine
}

// NewGeneratorCache derives the fixed generators and sets up the per-cluster
// cache.
func NewGeneratorCache() (*GeneratorCache, error) {
	clusters, err := lru.New[types.ClusterId, bn254.G1Affine](defaultGeneratorCacheSize)
	if err != nil {
		return nil, fmt.Errorf("generator cache: %w", err)
	}
	_, _, g1, _ := bn254.Generators()
	totalMass, err := bn254.HashToG1([]byte("total-mass"), []byte(totalMassGeneratorDomain))
	if err != nil {
		return nil, fmt.Errorf("derive total mass generator: %w", err)
	}
	return &GeneratorCache{
		clusters:  clusters,
		blinding:  g1,
		totalMass: totalMass,
	}, nil
}

// Blinding returns the blinding base G shared by every commitment.
func (g *GeneratorCache) Blinding() bn254.G1Affine {
	return g.blinding
}

// TotalMass returns the generator for the aggregate total-mass commitment.
func (g *GeneratorCache) TotalMass() bn254.G1Affine {
	return g.totalMass
}

// Cluster returns the domain-separated generator H_k for a cluster,
// deriving and memoizing it on first use.
func (g *GeneratorCache) Cluster(id types.ClusterId) (bn254.G1Affine, error) {
	if h, ok := g.clusters.Get(id); ok {
		return h, nil
	}
	h, err := bn254.HashToG1(id.Bytes(), []byte(clusterGeneratorDomain))
	if err != nil {
		return bn254.G1Affine{}, fmt.Errorf("derive generator for %s: %w", id, err)
	}
	g.clusters.Add(id, h)
	return h, nil
}
