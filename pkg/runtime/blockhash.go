package runtime

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/code-payments/endpoint-mock/pkg/solana"
)

// blockhashQueue tracks the most recent blockhashes a transaction may
// reference. It is not safe for concurrent use.
type blockhashQueue struct {
	max    int
	hashes []solana.Blockhash
	slots  map[solana.Blockhash]uint64
}

func newBlockhashQueue(max int, genesis solana.Blockhash) *blockhashQueue {
	if max < 1 {
		max = 1
	}

	q := &blockhashQueue{
		max:   max,
		slots: make(map[solana.Blockhash]uint64),
	}
	q.register(genesis, 0)
	return q
}

func (q *blockhashQueue) register(hash solana.Blockhash, slot uint64) {
	q.hashes = append(q.hashes, hash)
	q.slots[hash] = slot

	for len(q.hashes) > q.max {
		delete(q.slots, q.hashes[0])
		q.hashes = q.hashes[1:]
	}
}

func (q *blockhashQueue) latest() solana.Blockhash {
	return q.hashes[len(q.hashes)-1]
}

func (q *blockhashQueue) isValid(hash solana.Blockhash) bool {
	_, ok := q.slots[hash]
	return ok
}

// nextBlockhash chains the previous blockhash with the new slot.
func nextBlockhash(prev solana.Blockhash, slot uint64) solana.Blockhash {
	var slotBytes [8]byte
	binary.LittleEndian.PutUint64(slotBytes[:], slot)

	h := sha256.New()
	h.Write(prev[:])
	h.Write(slotBytes[:])

	var next solana.Blockhash
	copy(next[:], h.Sum(nil))
	return next
}
