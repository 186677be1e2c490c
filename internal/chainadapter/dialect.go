package chainadapter

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// dialect identifies which read-shape a deployed contract exposes.
type dialect string

const (
	dialectUnknown  dialect = ""
	dialectMapping  dialect = "contracts"
	dialectAccessor dialect = "getDetails"
)

// dialectCache remembers, per contract address, which getter shape a
// deployment answers to. Detection happens once per address for the
// life of the process.
type dialectCache struct {
	mu    sync.Mutex
	byAddr map[common.Address]dialect
}

func newDialectCache() *dialectCache {
	return &dialectCache{byAddr: make(map[common.Address]dialect)}
}

// sentinelLockID is the deterministic probe id used to detect dialect. It
// deliberately never collides with a real lock id derived from NextLockID
// because those always hash a non-empty originator/beneficiary pair.
var sentinelLockID = [32]byte{}

// detect returns the cached dialect for addr, probing with probeFn if this
// is the first time addr has been seen. probeFn is called once per
// candidate dialect and should return nil error only if the call itself
// succeeded (a zero-value/INVALID result for the sentinel id is still a
// successful call).
func (c *dialectCache) detect(ctx context.Context, addr common.Address, probeFn func(context.Context, dialect) error) (dialect, error) {
	c.mu.Lock()
	if d, ok := c.byAddr[addr]; ok {
		c.mu.Unlock()
		return d, nil
	}
	c.mu.Unlock()

	for _, d := range []dialect{dialectMapping, dialectAccessor} {
		if err := probeFn(ctx, d); err == nil {
			c.mu.Lock()
			c.byAddr[addr] = d
			c.mu.Unlock()
			return d, nil
		}
	}
	return dialectUnknown, ErrUnknownDialect
}
