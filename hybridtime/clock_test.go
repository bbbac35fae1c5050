package hybridtime

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestClock_Now(t *testing.T) {
	wall := baseTime
	c := NewClockWithSource(func() time.Time { return wall })

	first := c.Now()
	require.Equal(t, FromTime(baseTime), first)

	// wall clock stalls, logical counter must advance
	second := c.Now()
	require.True(t, second.After(first))
	require.Equal(t, first.Physical(), second.Physical())
	require.EqualValues(t, 1, second.Logical())

	// wall clock goes backwards
	wall = baseTime.Add(-time.Hour)
	third := c.Now()
	require.True(t, third.After(second))

	wall = baseTime.Add(time.Second)
	fourth := c.Now()
	require.Equal(t, FromTime(wall), fourth)
}

func TestClock_Update(t *testing.T) {
	c := NewClockWithSource(func() time.Time { return baseTime })

	remote := FromTime(baseTime.Add(time.Minute))
	got := c.Update(remote)
	require.True(t, got.After(remote))
	require.True(t, c.Now().After(got))

	// observing an old timestamp still moves the clock forward
	last := c.Now()
	require.True(t, c.Update(Min).After(last))
}

func TestClock_Concurrent(t *testing.T) {
	c := NewClock()
	const workers, calls = 8, 100

	var mu sync.Mutex
	seen := make(map[Timestamp]struct{}, workers*calls)
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range calls {
				ts := c.Now()
				mu.Lock()
				seen[ts] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Len(t, seen, workers*calls)
}

func TestClock_SaturatesAtMax(t *testing.T) {
	c := NewClockWithSource(func() time.Time { return baseTime })
	require.Equal(t, Max, c.Update(Max))
	require.Equal(t, Max, c.Now())
	require.False(t, c.Now().Before(Max))
}
