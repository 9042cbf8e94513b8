package utxo

import (
	"encoding/binary"
	"fmt"

	"github.com/Klingon-tech/utxo-indexer/pkg/crypto"
	"github.com/Klingon-tech/utxo-indexer/pkg/types"
)

// Commitment computes a merkle root over all UTXOs in the set. Leaves are
// taken in outpoint order, so two indexes that replayed the same blocks
// agree. Returns a zero hash for an empty set.
func Commitment(r Reader) (types.Hash, error) {
	var hashes []types.Hash

	err := r.ForEach(func(u *UTXO) error {
		hashes = append(hashes, hashUTXO(u))
		return nil
	})
	if err != nil {
		return types.Hash{}, fmt.Errorf("utxo commitment: %w", err)
	}
	return crypto.MerkleRoot(hashes), nil
}

// hashUTXO produces a deterministic BLAKE3 hash of a UTXO.
// Format: txid | vout(4) | amount(8) | len(address)(2) | address | script
func hashUTXO(u *UTXO) types.Hash {
	buf := make([]byte, 0, len(u.TxID)+14+len(u.Address)+len(u.Script))
	buf = append(buf, u.TxID...)
	buf = binary.LittleEndian.AppendUint32(buf, u.Vout)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(u.Amount))
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(u.Address)))
	buf = append(buf, u.Address...)
	buf = append(buf, u.Script...)
	return crypto.Hash(buf)
}
