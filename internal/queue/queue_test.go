package queue

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/starford/munchie/internal/collectionstore"
	"github.com/starford/munchie/internal/models"
)

func newTestQueue(t *testing.T, opts ...Option) (*Queue, *collectionstore.File) {
	t.Helper()
	store := collectionstore.NewFile(filepath.Join(t.TempDir(), "collections.json"))
	q := New(store, opts...)
	t.Cleanup(q.Close)
	return q, store
}

func insert(id string) Transform {
	return func(cols []models.Collection) ([]models.Collection, error) {
		return append(cols, models.Collection{ID: id, Name: id}), nil
	}
}

func remove(id string) Transform {
	return func(cols []models.Collection) ([]models.Collection, error) {
		i := models.IndexByID(cols, id)
		if i < 0 {
			return nil, fmt.Errorf("remove %s: not found", id)
		}
		return append(cols[:i], cols[i+1:]...), nil
	}
}

func ids(cols []models.Collection) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.ID
	}
	return out
}

func TestInsertThenDelete(t *testing.T) {
	q, store := newTestQueue(t)
	ctx := context.Background()

	t1 := q.Enqueue(insert("X"))
	t2 := q.Enqueue(remove("X"))

	if _, err := t1.Wait(ctx); err != nil {
		t.Fatalf("T1: %v", err)
	}
	cols, err := t2.Wait(ctx)
	if err != nil {
		t.Fatalf("T2: %v", err)
	}
	if len(cols) != 0 {
		t.Errorf("T2 result = %v", ids(cols))
	}
	persisted, _ := store.Load()
	if models.IndexByID(persisted, "X") >= 0 {
		t.Error("X must not survive T2")
	}
}

func TestOrderingAndCumulativeEffect(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	const n = 20
	tasks := make([]*Task, n)
	for i := range n {
		tasks[i] = q.Enqueue(insert(fmt.Sprintf("c%02d", i)))
	}

	var finished []int
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i, task := range tasks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-task.Done()
			mu.Lock()
			finished = append(finished, i)
			mu.Unlock()
		}()
	}
	wg.Wait()

	for i, task := range tasks {
		cols, err := task.Wait(ctx)
		if err != nil {
			t.Fatalf("task %d: %v", i, err)
		}
		if len(cols) != i+1 {
			t.Fatalf("task %d observed %d collections, want %d", i, len(cols), i+1)
		}
		if cols[i].ID != fmt.Sprintf("c%02d", i) {
			t.Errorf("task %d last id = %s", i, cols[i].ID)
		}
	}
	if len(finished) != n {
		t.Errorf("finished = %d", len(finished))
	}
}

func TestConcurrentSubmittersLoseNoUpdates(t *testing.T) {
	q, store := newTestQueue(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := q.Do(ctx, insert(fmt.Sprintf("g%d", i))); err != nil {
				t.Errorf("Do: %v", err)
			}
		}()
	}
	wg.Wait()

	cols, _ := store.Load()
	if len(cols) != 32 {
		t.Errorf("persisted %d collections, want 32", len(cols))
	}
}

func TestFailureIsolation(t *testing.T) {
	q, store := newTestQueue(t)
	ctx := context.Background()

	boom := errors.New("boom")
	t1 := q.Enqueue(insert("A"))
	t2 := q.Enqueue(func(cols []models.Collection) ([]models.Collection, error) {
		cols[0].Name = "mutated"
		return nil, boom
	})
	t3 := q.Enqueue(func(cols []models.Collection) ([]models.Collection, error) {
		panic("kaboom")
	})
	t4 := q.Enqueue(insert("B"))

	if _, err := t1.Wait(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := t2.Wait(ctx); !errors.Is(err, boom) {
		t.Errorf("T2 err = %v", err)
	}
	if _, err := t3.Wait(ctx); err == nil {
		t.Error("panicking transform should fail its task")
	}
	cols, err := t4.Wait(ctx)
	if err != nil {
		t.Fatalf("T4: %v", err)
	}
	if got := ids(cols); len(got) != 2 || got[0] != "A" || got[1] != "B" {
		t.Errorf("ids = %v", got)
	}
	persisted, _ := store.Load()
	if persisted[0].Name != "A" {
		t.Errorf("failed transform leaked a write: %q", persisted[0].Name)
	}
}

func TestReentrantEnqueue(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var inner *Task
	outer := q.Enqueue(func(cols []models.Collection) ([]models.Collection, error) {
		inner = q.Enqueue(insert("inner"))
		return append(cols, models.Collection{ID: "outer"}), nil
	})
	if _, err := outer.Wait(ctx); err != nil {
		t.Fatalf("outer: %v", err)
	}

	// Enqueue from the continuation as well.
	followUp, err := q.Do(ctx, insert("continuation"))
	if err != nil {
		t.Fatalf("continuation: %v", err)
	}
	cols, err := inner.Wait(ctx)
	if err != nil {
		t.Fatalf("inner: %v", err)
	}
	if got := ids(cols); len(got) != 2 || got[1] != "inner" {
		t.Errorf("inner ids = %v", got)
	}
	if got := ids(followUp); len(got) != 3 {
		t.Errorf("follow-up ids = %v", got)
	}
}

func TestReloadsStoreEveryTask(t *testing.T) {
	q, store := newTestQueue(t)
	ctx := context.Background()

	if _, err := q.Do(ctx, insert("A")); err != nil {
		t.Fatal(err)
	}
	// Out-of-band edit must be visible to the next task.
	if err := store.Save([]models.Collection{{ID: "external"}}); err != nil {
		t.Fatal(err)
	}
	cols, err := q.Do(ctx, insert("B"))
	if err != nil {
		t.Fatal(err)
	}
	if got := ids(cols); len(got) != 2 || got[0] != "external" {
		t.Errorf("ids = %v", got)
	}
}

func TestCommitHook(t *testing.T) {
	var mu sync.Mutex
	var seen [][]string
	q, _ := newTestQueue(t, WithCommitHook(func(cols []models.Collection) {
		mu.Lock()
		seen = append(seen, ids(cols))
		mu.Unlock()
	}))
	ctx := context.Background()

	_, _ = q.Do(ctx, insert("A"))
	_, _ = q.Do(ctx, remove("missing"))
	_, _ = q.Do(ctx, insert("B"))

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 2 {
		t.Fatalf("hook calls = %v, want 2 (failed task must not commit)", seen)
	}
	if len(seen[1]) != 2 {
		t.Errorf("second commit = %v", seen[1])
	}
}

func TestClosedQueueRejects(t *testing.T) {
	store := collectionstore.NewFile(filepath.Join(t.TempDir(), "collections.json"))
	q := New(store)
	q.Close()
	if _, err := q.Do(context.Background(), insert("A")); !errors.Is(err, ErrClosed) {
		t.Errorf("err = %v, want ErrClosed", err)
	}
}
