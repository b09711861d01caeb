package committed

import (
	"errors"
	"fmt"
	"math/big"
	"slices"

	bn254 "github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/bothonetwork/go-clustertax/common/types"
	"github.com/bothonetwork/go-clustertax/tags"
)

// ErrDuplicateCommitment is returned when a vector commits to the same
// cluster twice.
var ErrDuplicateCommitment = errors.New("duplicate cluster commitment")

// MassSecret is the prover-side witness of one commitment: the committed tag
// mass and its blinding factor. It never leaves the prover.
type MassSecret struct {
	Mass     uint64
	Blinding fr.Element
}

// NewMassSecret draws a fresh blinding factor for the given mass.
func NewMassSecret(mass uint64) (MassSecret, error) {
	var blinding fr.Element
	if _, err := blinding.SetRandom(); err != nil {
		return MassSecret{}, fmt.Errorf("draw blinding: %w", err)
	}
	return MassSecret{Mass: mass, Blinding: blinding}, nil
}

// Commit computes mass*H + blinding*G for the given value generator H.
func Commit(gens *GeneratorCache, h bn254.G1Affine, secret MassSecret) bn254.G1Affine {
	var mass fr.Element
	mass.SetUint64(secret.Mass)

	var massPart, blindPart bn254.G1Affine
	massPart.ScalarMultiplication(&h, mass.BigInt(new(big.Int)))
	g := gens.Blinding()
	blindPart.ScalarMultiplication(&g, secret.Blinding.BigInt(new(big.Int)))

	var acc bn254.G1Jac
	acc.FromAffine(&massPart)
	var blindJac bn254.G1Jac
	blindJac.FromAffine(&blindPart)
	acc.AddAssign(&blindJac)

	var out bn254.G1Affine
	out.FromJacobian(&acc)
	return out
}

// VerifyOpening checks that a commitment opens to (mass, blinding) under the
// cluster's generator. This is the designated opening check; a mismatched
// mass or blinding fails except with negligible probability.
func VerifyOpening(gens *GeneratorCache, id types.ClusterId, commitment bn254.G1Affine, mass uint64, blinding fr.Element) (bool, error) {
	h, err := gens.Cluster(id)
	if err != nil {
		return false, err
	}
	expected := Commit(gens, h, MassSecret{Mass: mass, Blinding: blinding})
	return expected.Equal(&commitment), nil
}

// ClusterCommitment is one committed (cluster, mass) entry.
type ClusterCommitment struct {
	Cluster    types.ClusterId
	Commitment bn254.G1Affine
}

// TagVectorCommitment is the chain-visible form of a tag vector: one Pedersen
// commitment per cluster plus an aggregate total-mass commitment. Entries are
// kept in ascending cluster order so the byte form is canonical.
type TagVectorCommitment struct {
	Entries   []ClusterCommitment
	TotalMass bn254.G1Affine
}

// commitment returns the entry for a cluster.
func (c *TagVectorCommitment) commitment(id types.ClusterId) (bn254.G1Affine, bool) {
	for i := range c.Entries {
		if c.Entries[i].Cluster == id {
			return c.Entries[i].Commitment, true
		}
	}
	return bn254.G1Affine{}, false
}

// clusters returns the committed cluster ids in ascending order.
func (c *TagVectorCommitment) clusters() []types.ClusterId {
	ids := make([]types.ClusterId, len(c.Entries))
	for i := range c.Entries {
		ids[i] = c.Entries[i].Cluster
	}
	return ids
}

// validateUnique rejects duplicate cluster entries before verification.
func (c *TagVectorCommitment) validateUnique() error {
	seen := make(map[types.ClusterId]struct{}, len(c.Entries))
	for i := range c.Entries {
		if _, ok := seen[c.Entries[i].Cluster]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateCommitment, c.Entries[i].Cluster)
		}
		seen[c.Entries[i].Cluster] = struct{}{}
	}
	return nil
}

// TagVectorSecret is the witness for a TagVectorCommitment.
type TagVectorSecret struct {
	Entries   map[types.ClusterId]MassSecret
	TotalMass MassSecret
}

// NewTagVectorSecret draws blinding factors for every entry of a plaintext
// tag vector plus its total mass.
func NewTagVectorSecret(v tags.TagVector) (TagVectorSecret, error) {
	secret := TagVectorSecret{Entries: make(map[types.ClusterId]MassSecret, v.Len())}
	var total uint64
	for _, p := range v.Pairs() {
		s, err := NewMassSecret(uint64(p.Weight))
		if err != nil {
			return TagVectorSecret{}, err
		}
		secret.Entries[p.Cluster] = s
		total += uint64(p.Weight)
	}
	totalSecret, err := NewMassSecret(total)
	if err != nil {
		return TagVectorSecret{}, err
	}
	secret.TotalMass = totalSecret
	return secret, nil
}

// clusters returns the witnessed cluster ids in ascending order.
func (s *TagVectorSecret) clusters() []types.ClusterId {
	ids := make([]types.ClusterId, 0, len(s.Entries))
	for id := range s.Entries {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// CommitVector produces the chain-visible commitment for a witness.
func CommitVector(gens *GeneratorCache, secret TagVectorSecret) (TagVectorCommitment, error) {
	out := TagVectorCommitment{Entries: make([]ClusterCommitment, 0, len(secret.Entries))}
	for _, id := range secret.clusters() {
		h, err := gens.Cluster(id)
		if err != nil {
			return TagVectorCommitment{}, err
		}
		out.Entries = append(out.Entries, ClusterCommitment{
			Cluster:    id,
			Commitment: Commit(gens, h, secret.Entries[id]),
		})
	}
	out.TotalMass = Commit(gens, gens.TotalMass(), secret.TotalMass)
	return out, nil
}
