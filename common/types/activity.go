package types

import "github.com/spacemeshos/go-scale"

// UtxoActivityState is the per-output metadata tracked next to the tag
// vector. CreationBlock never changes after the output is created;
// LastActivityBlock is advanced only by a confirmed spend referencing the
// output. The engine reads this state and returns updated copies, it never
// mutates ledger storage directly.
type UtxoActivityState struct {
	CreationBlock     BlockHeight
	LastActivityBlock BlockHeight
}

// NewUtxoActivityState returns the state for an output created at the given
// height.
func NewUtxoActivityState(creation BlockHeight) UtxoActivityState {
	return UtxoActivityState{
		CreationBlock:     creation,
		LastActivityBlock: creation,
	}
}

// Age returns the number of blocks since the output was created, zero when
// current precedes creation (possible during reorg-time validation).
func (s UtxoActivityState) Age(current BlockHeight) uint64 {
	if current < s.CreationBlock {
		return 0
	}
	return uint64(current - s.CreationBlock)
}

// RecordSpend returns the state after a confirmed spend at the given height.
func (s UtxoActivityState) RecordSpend(current BlockHeight) UtxoActivityState {
	s.LastActivityBlock = current
	return s
}

// EncodeScale implements scale.Encodable.
func (s *UtxoActivityState) EncodeScale(enc *scale.Encoder) (total int, err error) {
	{
		n, err := scale.EncodeCompact64(enc, uint64(s.CreationBlock))
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := scale.EncodeCompact64(enc, uint64(s.LastActivityBlock))
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// DecodeScale implements scale.Decodable.
func (s *UtxoActivityState) DecodeScale(dec *scale.Decoder) (total int, err error) {
	{
		v, n, err := scale.DecodeCompact64(dec)
		if err != nil {
			return total, err
		}
		total += n
		s.CreationBlock = BlockHeight(v)
	}
	{
		v, n, err := scale.DecodeCompact64(dec)
		if err != nil {
			return total, err
		}
		total += n
		s.LastActivityBlock = BlockHeight(v)
	}
	return total, nil
}
