package shopping

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProductLocksReleaseEntries(t *testing.T) {
	l := newProductLocks()

	unlock := l.lock("p2", "p1", "p2")
	assert.Equal(t, 2, l.size())
	unlock()
	assert.Equal(t, 0, l.size())
}

func TestProductLocksSerializeSameProduct(t *testing.T) {
	l := newProductLocks()
	var (
		wg      sync.WaitGroup
		counter int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := l.lock("p1")
			defer unlock()
			v := counter
			v++
			counter = v
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
	assert.Equal(t, 0, l.size())
}
