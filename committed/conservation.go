package committed

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"math/bits"
	"slices"

	bn254 "github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/bothonetwork/go-clustertax/common/types"
	"github.com/bothonetwork/go-clustertax/tags"
)

var (
	// ErrBadDecayRate is returned for a decay rate above the weight scale.
	ErrBadDecayRate = errors.New("decay rate above scale")
	// ErrConservation is returned by Prove when the witness does not satisfy
	// mass conservation. A proof is never produced for an invalid witness;
	// there is no "sometimes valid" output.
	ErrConservation = errors.New("witness violates conservation")
	// ErrMassOverflow is returned when aggregate masses exceed uint64.
	ErrMassOverflow = errors.New("aggregate mass overflow")
)

// ClusterProof is the per-cluster conservation proof. Remainder commits to
// the scaled mass lost to truncation and pruning for this cluster; it is a
// public input to the verification equation.
type ClusterProof struct {
	Cluster   types.ClusterId
	Remainder bn254.G1Affine
	Proof     SchnorrProof
}

// ConservationProof attests that the committed output masses of a spend equal
// the retained fraction of the committed input masses minus a bounded
// truncation remainder, cluster by cluster and in aggregate, without
// revealing any mass. Both sides may span several vectors; commitments are
// homomorphic, so per-cluster sums across vectors are proven as one
// statement.
//
// The remainder commitments are not range-checked here; the circuit layer of
// the consuming ledger attests that each committed remainder is small. An
// exact witness simply commits remainder zero.
type ConservationProof struct {
	Clusters       []ClusterProof
	TotalRemainder bn254.G1Affine
	TotalMass      SchnorrProof
}

// scaledRemainder returns (scale-rate)*inMass - scale*outMass, the scaled
// mass the decay truncated away, or ErrConservation when the output side
// exceeds the retained input side.
func scaledRemainder(inMass, outMass uint64, ratePpm uint32) (uint64, error) {
	ihi, ilo := bits.Mul64(inMass, uint64(tags.Scale-ratePpm))
	ohi, olo := bits.Mul64(outMass, uint64(tags.Scale))
	lo, borrow := bits.Sub64(ilo, olo, 0)
	hi, borrow := bits.Sub64(ihi, ohi, borrow)
	if borrow != 0 || hi != 0 {
		return 0, fmt.Errorf("%w: in %d out %d rate %d",
			ErrConservation, inMass, outMass, ratePpm)
	}
	return lo, nil
}

// decayDelta computes D = scale*cOut + cRem - (scale-rate)*cIn. When the
// masses satisfy scale*mOut + rem == (scale-rate)*mIn, every mass term
// cancels on the value generator and D is the pure blinding point rDiff*G.
// A zero-value commitment (absent side) is the identity.
func decayDelta(cIn, cOut, cRem bn254.G1Affine, ratePpm uint32) bn254.G1Affine {
	var scaledOut, scaledIn bn254.G1Affine
	scaledOut.ScalarMultiplication(&cOut, new(big.Int).SetUint64(uint64(tags.Scale)))
	scaledIn.ScalarMultiplication(&cIn, new(big.Int).SetUint64(uint64(tags.Scale-ratePpm)))

	var acc, term bn254.G1Jac
	acc.FromAffine(&scaledOut)
	term.FromAffine(&cRem)
	acc.AddAssign(&term)
	term.FromAffine(&scaledIn)
	acc.SubAssign(&term)

	var d bn254.G1Affine
	d.FromJacobian(&acc)
	return d
}

// blindingDelta returns scale*rOut + rRem - (scale-rate)*rIn, the discrete
// log of the decay delta under the blinding base.
func blindingDelta(rIn, rOut, rRem fr.Element, ratePpm uint32) fr.Element {
	var scaleEl, retainedEl, diff, term fr.Element
	scaleEl.SetUint64(uint64(tags.Scale))
	retainedEl.SetUint64(uint64(tags.Scale - ratePpm))
	diff.Mul(&scaleEl, &rOut)
	diff.Add(&diff, &rRem)
	term.Mul(&retainedEl, &rIn)
	diff.Sub(&diff, &term)
	return diff
}

// conservationContext binds a proof to its full statement: the decay rate,
// the cluster and all three commitments.
func conservationContext(label []byte, ratePpm uint32, cIn, cOut, cRem *bn254.G1Affine) []byte {
	context := make([]byte, 0, len(conservationDomain)+len(label)+4+3*bn254.SizeOfG1AffineCompressed)
	context = append(context, conservationDomain...)
	context = append(context, label...)
	context = binary.BigEndian.AppendUint32(context, ratePpm)
	inBytes := cIn.Bytes()
	context = append(context, inBytes[:]...)
	outBytes := cOut.Bytes()
	context = append(context, outBytes[:]...)
	remBytes := cRem.Bytes()
	context = append(context, remBytes[:]...)
	return context
}

// totalMassLabel tags the aggregate proof's transcript.
var totalMassLabel = []byte("total-mass")

// DecayedSecret applies spend-time decay to a witness the way the ledger
// arithmetic does: every cluster mass becomes floor(mass*(scale-rate)/scale),
// entries falling below the prune threshold fold into background, and the
// total mass is the sum of the surviving entries. Fresh blindings are drawn
// for every output secret, so the result is what an honest prover commits on
// the output side.
func DecayedSecret(in TagVectorSecret, ratePpm uint32) (TagVectorSecret, error) {
	if ratePpm > tags.Scale {
		return TagVectorSecret{}, fmt.Errorf("%w: %d", ErrBadDecayRate, ratePpm)
	}
	out := TagVectorSecret{Entries: make(map[types.ClusterId]MassSecret, len(in.Entries))}
	var total uint64
	for id, s := range in.Entries {
		mass, err := tags.ScaleByFraction(s.Mass, uint64(tags.Scale-ratePpm), uint64(tags.Scale))
		if err != nil {
			return TagVectorSecret{}, fmt.Errorf("decay mass for %s: %w", id, err)
		}
		if mass < uint64(tags.PruneThreshold) {
			continue
		}
		ns, err := NewMassSecret(mass)
		if err != nil {
			return TagVectorSecret{}, err
		}
		out.Entries[id] = ns
		total += mass
	}
	totalSecret, err := NewMassSecret(total)
	if err != nil {
		return TagVectorSecret{}, err
	}
	out.TotalMass = totalSecret
	return out, nil
}

// sumSecrets folds one side's witnesses into a single aggregate: masses add
// as integers, blindings add in the scalar field. The aggregate opens the
// point-sum of the individual commitments.
func sumSecrets(vectors []TagVectorSecret) (TagVectorSecret, error) {
	agg := TagVectorSecret{Entries: make(map[types.ClusterId]MassSecret)}
	for _, v := range vectors {
		for id, s := range v.Entries {
			cur := agg.Entries[id]
			mass, carry := bits.Add64(cur.Mass, s.Mass, 0)
			if carry != 0 {
				return TagVectorSecret{}, fmt.Errorf("%w: %s", ErrMassOverflow, id)
			}
			var blinding fr.Element
			blinding.Add(&cur.Blinding, &s.Blinding)
			agg.Entries[id] = MassSecret{Mass: mass, Blinding: blinding}
		}
		mass, carry := bits.Add64(agg.TotalMass.Mass, v.TotalMass.Mass, 0)
		if carry != 0 {
			return TagVectorSecret{}, fmt.Errorf("%w: total mass", ErrMassOverflow)
		}
		agg.TotalMass.Mass = mass
		agg.TotalMass.Blinding.Add(&agg.TotalMass.Blinding, &v.TotalMass.Blinding)
	}
	return agg, nil
}

// sumCommitments folds one side's public commitments by point addition,
// returning the per-cluster aggregates and the aggregate total-mass point.
func sumCommitments(vectors []*TagVectorCommitment) (map[types.ClusterId]bn254.G1Affine, bn254.G1Affine, error) {
	perCluster := make(map[types.ClusterId]*bn254.G1Jac)
	var total bn254.G1Jac
	for _, v := range vectors {
		if err := v.validateUnique(); err != nil {
			return nil, bn254.G1Affine{}, err
		}
		for i := range v.Entries {
			e := &v.Entries[i]
			acc, ok := perCluster[e.Cluster]
			if !ok {
				acc = new(bn254.G1Jac)
				perCluster[e.Cluster] = acc
			}
			var term bn254.G1Jac
			term.FromAffine(&e.Commitment)
			acc.AddAssign(&term)
		}
		var term bn254.G1Jac
		term.FromAffine(&v.TotalMass)
		total.AddAssign(&term)
	}
	out := make(map[types.ClusterId]bn254.G1Affine, len(perCluster))
	for id, acc := range perCluster {
		var a bn254.G1Affine
		a.FromJacobian(acc)
		out[id] = a
	}
	var totalAffine bn254.G1Affine
	totalAffine.FromJacobian(&total)
	return out, totalAffine, nil
}

// Prover produces conservation proofs from the witness side.
type Prover struct {
	gens *GeneratorCache
}

// NewProver returns a prover over the shared generator cache.
func NewProver(gens *GeneratorCache) *Prover {
	return &Prover{gens: gens}
}

// Prove shows that the outputs derive from the inputs under the given decay
// rate. Per cluster, the aggregate output mass must equal the retained
// fraction of the aggregate input mass up to a truncation remainder; the
// remainder bound covers the per-vector truncation and prune losses the
// ledger arithmetic can produce, so any witness that does come from that
// arithmetic proves. Anything else is a caller error and yields
// ErrConservation.
func (p *Prover) Prove(in, out []TagVectorSecret, ratePpm uint32) (*ConservationProof, error) {
	if ratePpm > tags.Scale {
		return nil, fmt.Errorf("%w: %d", ErrBadDecayRate, ratePpm)
	}
	inAgg, err := sumSecrets(in)
	if err != nil {
		return nil, err
	}
	outAgg, err := sumSecrets(out)
	if err != nil {
		return nil, err
	}
	g := p.gens.Blinding()

	union := unionClusters(inAgg.clusters(), outAgg.clusters())
	// one truncation loss (< scale, scaled) or prune loss (< threshold*scale)
	// per contributing vector
	remBound := uint64(len(in)+len(out)) * uint64(tags.Scale) * uint64(tags.PruneThreshold+1)
	proof := &ConservationProof{Clusters: make([]ClusterProof, 0, len(union))}
	for _, id := range union {
		inSecret := inAgg.Entries[id]
		outSecret := outAgg.Entries[id]
		rem, err := scaledRemainder(inSecret.Mass, outSecret.Mass, ratePpm)
		if err != nil {
			return nil, fmt.Errorf("cluster %s: %w", id, err)
		}
		if rem > remBound {
			return nil, fmt.Errorf("%w: %s remainder %d above bound %d",
				ErrConservation, id, rem, remBound)
		}
		remSecret, err := NewMassSecret(rem)
		if err != nil {
			return nil, err
		}

		h, err := p.gens.Cluster(id)
		if err != nil {
			return nil, err
		}
		cIn := Commit(p.gens, h, inSecret)
		cOut := Commit(p.gens, h, outSecret)
		cRem := Commit(p.gens, h, remSecret)

		rDiff := blindingDelta(inSecret.Blinding, outSecret.Blinding, remSecret.Blinding, ratePpm)
		d := decayDelta(cIn, cOut, cRem, ratePpm)
		context := conservationContext(id.Bytes(), ratePpm, &cIn, &cOut, &cRem)
		schnorr, err := proveDLog(g, rDiff, d, context)
		if err != nil {
			return nil, err
		}
		proof.Clusters = append(proof.Clusters, ClusterProof{
			Cluster:   id,
			Remainder: cRem,
			Proof:     schnorr,
		})
	}

	totalRem, err := scaledRemainder(inAgg.TotalMass.Mass, outAgg.TotalMass.Mass, ratePpm)
	if err != nil {
		return nil, fmt.Errorf("total mass: %w", err)
	}
	if totalRem > remBound*uint64(len(union)) {
		return nil, fmt.Errorf("%w: total remainder %d above bound %d",
			ErrConservation, totalRem, remBound*uint64(len(union)))
	}
	totalRemSecret, err := NewMassSecret(totalRem)
	if err != nil {
		return nil, err
	}
	hTotal := p.gens.TotalMass()
	cIn := Commit(p.gens, hTotal, inAgg.TotalMass)
	cOut := Commit(p.gens, hTotal, outAgg.TotalMass)
	cRem := Commit(p.gens, hTotal, totalRemSecret)

	rDiff := blindingDelta(inAgg.TotalMass.Blinding, outAgg.TotalMass.Blinding, totalRemSecret.Blinding, ratePpm)
	d := decayDelta(cIn, cOut, cRem, ratePpm)
	context := conservationContext(totalMassLabel, ratePpm, &cIn, &cOut, &cRem)
	schnorr, err := proveDLog(g, rDiff, d, context)
	if err != nil {
		return nil, err
	}
	proof.TotalRemainder = cRem
	proof.TotalMass = schnorr
	return proof, nil
}

// Verifier checks conservation proofs against public commitments.
type Verifier struct {
	gens *GeneratorCache
}

// NewVerifier returns a verifier over the shared generator cache.
func NewVerifier(gens *GeneratorCache) *Verifier {
	return &Verifier{gens: gens}
}

// Verify checks that the outputs derive from the inputs under the given
// decay rate. Both sides are aggregated by point addition before checking,
// so a spend drawing the same cluster from several inputs verifies as one
// statement. The result is definitive: a false return rejects the
// transaction, there is no ambiguous or retryable outcome. Soundness rests
// on the discrete-log assumption over BN254 plus the circuit layer's range
// attestation of the remainder commitments.
func (v *Verifier) Verify(in, out []*TagVectorCommitment, proof *ConservationProof, ratePpm uint32) bool {
	if proof == nil || ratePpm > tags.Scale {
		return false
	}
	inAgg, inTotal, err := sumCommitments(in)
	if err != nil {
		return false
	}
	outAgg, outTotal, err := sumCommitments(out)
	if err != nil {
		return false
	}

	// the proof must cover exactly the union of committed clusters
	union := unionClusters(mapClusters(inAgg), mapClusters(outAgg))
	if len(proof.Clusters) != len(union) {
		return false
	}
	for i, id := range union {
		if proof.Clusters[i].Cluster != id {
			return false
		}
	}

	g := v.gens.Blinding()
	for i, id := range union {
		cIn := inAgg[id] // zero value = identity when absent
		cOut := outAgg[id]
		cRem := proof.Clusters[i].Remainder
		d := decayDelta(cIn, cOut, cRem, ratePpm)
		context := conservationContext(id.Bytes(), ratePpm, &cIn, &cOut, &cRem)
		if !verifyDLog(g, d, proof.Clusters[i].Proof, context) {
			return false
		}
	}

	d := decayDelta(inTotal, outTotal, proof.TotalRemainder, ratePpm)
	context := conservationContext(totalMassLabel, ratePpm, &inTotal, &outTotal, &proof.TotalRemainder)
	return verifyDLog(g, d, proof.TotalMass, context)
}

// mapClusters returns the keys of an aggregate in ascending order.
func mapClusters(m map[types.ClusterId]bn254.G1Affine) []types.ClusterId {
	ids := make([]types.ClusterId, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// unionClusters merges two ascending id lists into one ascending list.
func unionClusters(a, b []types.ClusterId) []types.ClusterId {
	out := make([]types.ClusterId, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	slices.Sort(out)
	return slices.Compact(out)
}
