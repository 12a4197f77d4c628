package parallel

import (
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForVisitsEveryIndex(t *testing.T) {
	for _, cfg := range []Config{
		DefaultConfig(),
		{Workers: 4, MinChunk: 16},
		{Workers: 1},
		{Workers: 0},
		{Workers: 64, MinChunk: 0},
	} {
		t.Run(fmt.Sprintf("%+v", cfg), func(t *testing.T) {
			const n = 1000
			var visits [n]atomic.Int32
			require.NoError(t, For(n, cfg, func(i int) error {
				visits[i].Add(1)
				return nil
			}))
			for i := range visits {
				assert.Equal(t, int32(1), visits[i].Load(), "index %d", i)
			}
		})
	}
}

func TestForEmpty(t *testing.T) {
	called := false
	require.NoError(t, For(0, DefaultConfig(), func(int) error {
		called = true
		return nil
	}))
	assert.False(t, called)
}

func TestForReturnsLowestError(t *testing.T) {
	errLow := errors.New("low")
	errHigh := errors.New("high")

	err := For(100, Config{Workers: 4, MinChunk: 1}, func(i int) error {
		switch i {
		case 10:
			return errLow
		case 90:
			return errHigh
		}
		return nil
	})
	assert.ErrorIs(t, err, errLow)
}

func TestForSequentialStopsAtError(t *testing.T) {
	boom := errors.New("boom")
	var calls int
	err := For(10, Config{Workers: 1}, func(i int) error {
		calls++
		if i == 3 {
			return boom
		}
		return nil
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 4, calls)
}
