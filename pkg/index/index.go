// Package index maps string keys to their positions through a minimal
// perfect hash. It is used to join aggregate rows computed by different
// paths on their (claim id, category) key.
package index

import (
	"errors"
	"fmt"
	"hash/fnv"
	"strconv"

	"github.com/relab/bbhash"
)

// ErrDuplicateKey is returned by Build when a key repeats.
var ErrDuplicateKey = errors.New("duplicate key")

// Index resolves a key to the position it had in the slice passed to Build.
// Lookups of keys outside that set are rejected by comparing the stored key.
type Index struct {
	mph *bbhash.BBHash2
	// slots[h-1] holds the input position for MPHF value h.
	slots []int
	keys  []string
}

// Build constructs an index over keys. Keys must be unique.
func Build(keys []string) (*Index, error) {
	idx := &Index{keys: keys}
	if len(keys) == 0 {
		return idx, nil
	}

	hashes := make([]uint64, len(keys))
	seen := make(map[uint64]int, len(keys))
	for i, k := range keys {
		h := hashString(k)
		if prev, ok := seen[h]; ok {
			if keys[prev] == k {
				return nil, fmt.Errorf("%w: %q at positions %d and %d", ErrDuplicateKey, k, prev, i)
			}
			return nil, fmt.Errorf("hash collision between %q and %q", keys[prev], k)
		}
		seen[h] = i
		hashes[i] = h
	}

	// gamma=2.0 trades a little space for faster construction.
	mph, err := bbhash.New(hashes, bbhash.Gamma(2.0))
	if err != nil {
		return nil, fmt.Errorf("build MPHF: %w", err)
	}

	idx.mph = mph
	idx.slots = make([]int, len(keys))
	for i, h := range hashes {
		v := mph.Find(h)
		if v == 0 {
			return nil, fmt.Errorf("MPHF lookup failed for %q", keys[i])
		}
		idx.slots[v-1] = i
	}
	return idx, nil
}

// Lookup returns the position of key, or false if key was not indexed.
func (x *Index) Lookup(key string) (int, bool) {
	if x.mph == nil {
		return 0, false
	}
	v := x.mph.Find(hashString(key))
	if v == 0 || v > uint64(len(x.slots)) {
		return 0, false
	}
	pos := x.slots[v-1]
	if x.keys[pos] != key {
		return 0, false
	}
	return pos, true
}

// Len returns the number of indexed keys.
func (x *Index) Len() int {
	return len(x.keys)
}

// Key joins a claim id and category into an index key. The id is length
// prefixed, so any bytes may appear in either field.
func Key(claimID, category string) string {
	return strconv.Itoa(len(claimID)) + ":" + claimID + category
}

func hashString(s string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return h.Sum64()
}
