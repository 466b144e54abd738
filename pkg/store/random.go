package store

import (
	"math/rand"
	"sync"
	"time"
)

type lockedRandSource struct {
	lock sync.Mutex
	src  rand.Source
}

// rnd generates bundle ids and is safe for concurrent use.
var rnd = rand.New(&lockedRandSource{src: rand.NewSource(time.Now().UnixNano())})

func (r *lockedRandSource) Int63() int64 {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.src.Int63()
}

func (r *lockedRandSource) Seed(seed int64) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.src.Seed(seed)
}

// IDLength is the length of generated bundle ids.
const IDLength = 20

// NewID returns a random alphanumeric id of IDLength characters.
func NewID() string {
	const chars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	id := make([]byte, IDLength)
	for i := range id {
		id[i] = chars[rnd.Intn(len(chars))]
	}
	return string(id)
}
