package committed

import (
	"fmt"
	"math/big"

	bn254 "github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/bothonetwork/go-clustertax/hash"
)

// SchnorrProof proves knowledge of x with P = x*Base for a transcript-bound
// challenge. 64 bytes on the wire: compressed R plus the response scalar.
type SchnorrProof struct {
	R bn254.G1Affine
	S fr.Element
}

// challengeScalar derives the Fiat-Shamir challenge from the domain tag, the
// caller's context bytes and the proof instance. The full instance (base,
// nonce commitment, public point) is bound into the transcript so a proof
// cannot be replayed against a different statement.
func challengeScalar(context []byte, base, r, public *bn254.G1Affine) fr.Element {
	h := hash.New()
	h.Write([]byte(schnorrChallengeDomain))
	h.Write(context)
	baseBytes := base.Bytes()
	h.Write(baseBytes[:])
	rBytes := r.Bytes()
	h.Write(rBytes[:])
	publicBytes := public.Bytes()
	h.Write(publicBytes[:])

	var c fr.Element
	c.SetBytes(h.Sum(nil))
	return c
}

// proveDLog produces a Schnorr proof of knowledge of x where public = x*base.
// The nonce is drawn fresh from the system CSPRNG; the response s = k + c*x
// is computed in the scalar field with gnark-crypto's constant-time
// arithmetic, so no branch or memory access depends on the witness.
func proveDLog(base bn254.G1Affine, x fr.Element, public bn254.G1Affine, context []byte) (SchnorrProof, error) {
	var k fr.Element
	if _, err := k.SetRandom(); err != nil {
		return SchnorrProof{}, fmt.Errorf("draw nonce: %w", err)
	}

	var r bn254.G1Affine
	r.ScalarMultiplication(&base, k.BigInt(new(big.Int)))

	c := challengeScalar(context, &base, &r, &public)

	var s fr.Element
	s.Mul(&c, &x)
	s.Add(&s, &k)

	return SchnorrProof{R: r, S: s}, nil
}

// verifyDLog checks s*base == R + c*public against the same transcript.
func verifyDLog(base, public bn254.G1Affine, proof SchnorrProof, context []byte) bool {
	c := challengeScalar(context, &base, &proof.R, &public)

	var left bn254.G1Affine
	left.ScalarMultiplication(&base, proof.S.BigInt(new(big.Int)))

	var cp bn254.G1Affine
	cp.ScalarMultiplication(&public, c.BigInt(new(big.Int)))

	var right bn254.G1Jac
	right.FromAffine(&proof.R)
	var cpJac bn254.G1Jac
	cpJac.FromAffine(&cp)
	right.AddAssign(&cpJac)

	var rightAff bn254.G1Affine
	rightAff.FromJacobian(&right)
	return left.Equal(&rightAff)
}
