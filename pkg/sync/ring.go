package sync

import (
	"encoding/binary"
	"fmt"

	"github.com/emirpasic/gods/maps/treemap"
	"github.com/emirpasic/gods/utils"
	"github.com/spaolacci/murmur3"
)

// ring is a consistent hash ring over the stripe indices [0, stripes).
// Account addresses are already uniformly distributed, but hashing keeps the
// mapping stable for arbitrary keys.
type ring struct {
	hashRing *treemap.Map

	// Cached since treemap.Map.Min() is O(log n)
	minStripe int
}

// newRing places replicationFactor virtual nodes per stripe on the ring.
func newRing(stripes int, replicationFactor uint) *ring {
	hashRing := treemap.NewWith(utils.Int64Comparator)

	virtualNode := make([]byte, 12)
	for stripe := 0; stripe < stripes; stripe++ {
		nameHash, _ := murmur3.Sum128([]byte(fmt.Sprintf("lock%d", stripe)))
		binary.LittleEndian.PutUint64(virtualNode, nameHash)

		for i := uint32(0); i < uint32(replicationFactor); i++ {
			binary.LittleEndian.PutUint32(virtualNode[8:], i)
			hash, _ := murmur3.Sum128(virtualNode)
			hashRing.Put(int64(hash), stripe)
		}
	}

	r := &ring{hashRing: hashRing}
	if _, minStripe := hashRing.Min(); minStripe != nil {
		r.minStripe = minStripe.(int)
	}
	return r
}

// shard returns the stripe owning key: the first virtual node clockwise of
// the key's hash.
func (r *ring) shard(key []byte) int {
	hash, _ := murmur3.Sum128(key)
	if _, stripe := r.hashRing.Ceiling(int64(hash)); stripe != nil {
		return stripe.(int)
	}
	return r.minStripe
}
