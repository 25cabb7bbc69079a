package engine

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClock_Stamp(t *testing.T) {
	c := NewClock()
	assert.Equal(t, int64(0), c.Last())

	first, second := Execution{RunID: "run"}, Execution{RunID: "run"}
	c.Stamp(&first)
	c.Stamp(&second)

	assert.Equal(t, int64(1), first.Seq)
	assert.Equal(t, int64(2), second.Seq)
	assert.Equal(t, int64(2), c.Last())
}

func TestClock_ResumesJournal(t *testing.T) {
	c := NewClockAt(41)
	assert.Equal(t, int64(41), c.Last())

	var exec Execution
	c.Stamp(&exec)
	assert.Equal(t, int64(42), exec.Seq)
}

func TestClock_ConcurrentStampsAreUnique(t *testing.T) {
	c := NewClock()
	const workers, perWorker = 8, 50

	execs := make([]Execution, workers*perWorker)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		w := w
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				c.Stamp(&execs[w*perWorker+i])
			}
		}()
	}
	wg.Wait()

	seen := make(map[int64]bool, len(execs))
	for _, exec := range execs {
		seen[exec.Seq] = true
	}
	assert.Len(t, seen, len(execs))
	assert.Equal(t, int64(len(execs)), c.Last())
}
