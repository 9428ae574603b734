package store

import (
	"hash/fnv"
	"sync"
)

// keyLocks serializes writers per record key with lock striping. Two
// concurrent writes to the same (table, id) always contend on the same
// stripe; writes to different keys almost never do. No global lock.
type keyLocks struct {
	stripes [64]sync.Mutex
}

func (k *keyLocks) lock(key string) func() {
	h := fnv.New32a()
	h.Write([]byte(key))
	m := &k.stripes[h.Sum32()%uint32(len(k.stripes))]
	m.Lock()
	return m.Unlock
}
