package chainadapter

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDialectCacheDetectsAndCaches(t *testing.T) {
	c := newDialectCache()
	addr := common.HexToAddress("0x3333333333333333333333333333333333333333")

	calls := 0
	probe := func(ctx context.Context, d dialect) error {
		calls++
		if d == dialectAccessor {
			return nil
		}
		return errors.New("no such function")
	}

	d, err := c.detect(context.Background(), addr, probe)
	require.NoError(t, err)
	assert.Equal(t, dialectAccessor, d)
	assert.Equal(t, 2, calls, "mapping probe then accessor probe")

	calls = 0
	d, err = c.detect(context.Background(), addr, probe)
	require.NoError(t, err)
	assert.Equal(t, dialectAccessor, d)
	assert.Equal(t, 0, calls, "second detect for same address must hit the cache")
}

func TestDialectCacheFailsWhenNeitherShapeAnswers(t *testing.T) {
	c := newDialectCache()
	addr := common.HexToAddress("0x4444444444444444444444444444444444444444")

	probe := func(ctx context.Context, d dialect) error {
		return errors.New("no such function")
	}

	_, err := c.detect(context.Background(), addr, probe)
	assert.ErrorIs(t, err, ErrUnknownDialect)
}
