package fingerprint

import (
	"sync"
	"testing"
	"time"

	"github.com/clickproxy/clickproxy/internal/chclient"
)

func TestComputeStability(t *testing.T) {
	q := chclient.ClickhouseQuery{
		SQL:            "SELECT 1",
		Params:         []chclient.KV{{Key: "a", Value: "1"}},
		ForwardHeaders: []chclient.KV{{Key: "User-Agent", Value: "test"}},
		Compression:    "zstd",
	}
	a := Compute(q)
	b := Compute(q)
	if a != b {
		t.Fatalf("expected stable fingerprint, got %v vs %v", a, b)
	}
}

func TestComputeOrderSensitive(t *testing.T) {
	q1 := chclient.ClickhouseQuery{Params: []chclient.KV{{Key: "a", Value: "1"}, {Key: "b", Value: "2"}}}
	q2 := chclient.ClickhouseQuery{Params: []chclient.KV{{Key: "b", Value: "2"}, {Key: "a", Value: "1"}}}
	if Compute(q1) == Compute(q2) {
		t.Fatalf("expected differently-ordered params to produce different fingerprints")
	}
}

func TestTableSingleFlight(t *testing.T) {
	tbl := NewTable()
	fp := Fingerprint(42)

	const n = 8
	var concurrent int32
	var maxConcurrent int32
	var mu sync.Mutex

	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			lease := tbl.Acquire(fp)
			mu.Lock()
			concurrent++
			if concurrent > maxConcurrent {
				maxConcurrent = concurrent
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			concurrent--
			mu.Unlock()
			lease.Release(Processed)
		}()
	}
	wg.Wait()
	if maxConcurrent != 1 {
		t.Fatalf("expected at most 1 concurrent holder, observed %d", maxConcurrent)
	}
}

func TestTableStatusVisibleAfterRelease(t *testing.T) {
	tbl := NewTable()
	fp := Fingerprint(7)
	l1 := tbl.Acquire(fp)
	if l1.Status != None {
		t.Fatalf("expected initial status None, got %v", l1.Status)
	}
	l1.Release(Processed)

	l2 := tbl.Acquire(fp)
	if l2.Status != Processed {
		t.Fatalf("expected Processed after release, got %v", l2.Status)
	}
	l2.Release(Processed)
}
