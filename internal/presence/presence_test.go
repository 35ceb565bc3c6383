package presence

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCountUpAndDown(t *testing.T) {

	p := New()

	assert.Equal(t, 0, p.Count("demo"))
	assert.Equal(t, 0, p.Total())

	for i := 0; i < 10; i++ {
		assert.Equal(t, i+1, p.Increment("demo"))
	}

	p.Increment("other")

	assert.Equal(t, 10, p.Count("demo"))
	assert.Equal(t, 11, p.Total())

	for i := 9; i >= 0; i-- {
		assert.Equal(t, i, p.Decrement("demo"))
	}

	assert.Equal(t, 1, p.Total())
	assert.Equal(t, map[string]int{"other": 1}, p.Snapshot())
}

func TestDecrementNeverUnderflows(t *testing.T) {

	p := New()

	assert.Equal(t, 0, p.Decrement("ghost"))

	p.Increment("demo")
	assert.Equal(t, 0, p.Decrement("demo"))
	assert.Equal(t, 0, p.Decrement("demo"))
	assert.Equal(t, 0, p.Decrement("demo"))

	assert.Equal(t, 0, p.Count("demo"))
	assert.Equal(t, 0, p.Total())

	// count still works after spurious departures
	assert.Equal(t, 1, p.Increment("demo"))
}

func TestCompetingWrites(t *testing.T) {

	p := New()

	iterations := 1000
	competingFuncs := 100

	var wg sync.WaitGroup
	wg.Add(competingFuncs)

	for j := 0; j < competingFuncs; j++ {
		room := fmt.Sprintf("room-%d", j%7)
		go func() {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				p.Increment(room)
				_ = p.Total()
			}
			for i := 0; i < iterations/2; i++ {
				p.Decrement(room)
			}
			// duplicate departures
			p.Decrement("room-none")
		}()
	}
	wg.Wait()

	assert.Equal(t, competingFuncs*iterations/2, p.Total())

	sum := 0
	for room, c := range p.Snapshot() {
		assert.GreaterOrEqual(t, c, 0, room)
		sum += c
	}
	assert.Equal(t, p.Total(), sum)
}
