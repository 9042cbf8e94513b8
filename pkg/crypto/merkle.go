package crypto

import "github.com/Klingon-tech/utxo-indexer/pkg/types"

// MerkleRoot folds leaves pairwise into a single root. An odd leaf at the
// end of a level is paired with itself. No leaves yields the zero hash.
func MerkleRoot(leaves []types.Hash) types.Hash {
	switch len(leaves) {
	case 0:
		return types.Hash{}
	case 1:
		return leaves[0]
	}

	level := append([]types.Hash(nil), leaves...)
	for len(level) > 1 {
		n := 0
		for i := 0; i < len(level); i += 2 {
			right := level[i]
			if i+1 < len(level) {
				right = level[i+1]
			}
			level[n] = HashConcat(level[i], right)
			n++
		}
		level = level[:n]
	}
	return level[0]
}
