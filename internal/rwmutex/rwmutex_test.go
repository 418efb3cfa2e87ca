package rwmutex

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFairRWMutex_ReadersCoalesce(t *testing.T) {
	m := New()
	var active int32
	var maxActive int32

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.RLock()
			defer m.RUnlock()
			n := atomic.AddInt32(&active, 1)
			for {
				old := atomic.LoadInt32(&maxActive)
				if n <= old || atomic.CompareAndSwapInt32(&maxActive, old, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&active, -1)
		}()
	}
	wg.Wait()
	require.Greater(t, int(maxActive), 1, "expected concurrent readers to overlap")
}

func TestFairRWMutex_WriterExclusive(t *testing.T) {
	m := New()
	var active int32
	var sawOverlap bool
	var mu sync.Mutex

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Lock()
			n := atomic.AddInt32(&active, 1)
			if n != 1 {
				mu.Lock()
				sawOverlap = true
				mu.Unlock()
			}
			time.Sleep(2 * time.Millisecond)
			atomic.AddInt32(&active, -1)
			m.Unlock()
		}()
	}
	wg.Wait()
	require.False(t, sawOverlap, "writers must never overlap")
}

func TestFairRWMutex_PendingWriterBlocksLaterReaders(t *testing.T) {
	m := New()
	order := make([]string, 0, 3)
	var mu sync.Mutex

	m.RLock() // reader 1 active

	writerDone := make(chan struct{})
	go func() {
		m.Lock()
		mu.Lock()
		order = append(order, "writer")
		mu.Unlock()
		m.Unlock()
		close(writerDone)
	}()

	// Give the writer time to enqueue behind the active reader.
	time.Sleep(20 * time.Millisecond)

	laterReaderDone := make(chan struct{})
	go func() {
		m.RLock()
		mu.Lock()
		order = append(order, "reader2")
		mu.Unlock()
		m.RUnlock()
		close(laterReaderDone)
	}()

	time.Sleep(20 * time.Millisecond)
	m.RUnlock() // release reader 1, letting the writer go next

	<-writerDone
	<-laterReaderDone

	require.Equal(t, []string{"writer", "reader2"}, order)
}
