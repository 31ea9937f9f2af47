package registry

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/quarry-dev/quarry/internal/domain"
	"github.com/quarry-dev/quarry/internal/domain/search/filter"
)

func TestEnsure_CreatesOnce(t *testing.T) {
	var created atomic.Int32
	st := &mockStore{
		createCollectionFn: func(_ context.Context, col domain.Collection) error {
			created.Add(1)
			if col.Name() != "repo" || col.Dimension() != 128 {
				t.Errorf("create (%q, %d)", col.Name(), col.Dimension())
			}
			return nil
		},
	}
	r := New(st, nil)

	if err := r.Ensure(context.Background(), "repo", 128); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	// Second call is served from the cache.
	if err := r.Ensure(context.Background(), "repo", 128); err != nil {
		t.Fatalf("Ensure again: %v", err)
	}
	if n := created.Load(); n != 1 {
		t.Errorf("CreateCollection called %d times, want 1", n)
	}
}

func TestEnsure_ConcurrentSingleFlight(t *testing.T) {
	var created atomic.Int32
	release := make(chan struct{})
	st := &mockStore{
		createCollectionFn: func(context.Context, domain.Collection) error {
			created.Add(1)
			<-release
			return nil
		},
	}
	r := New(st, nil)

	const workers = 16
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = r.Ensure(context.Background(), "repo", 128)
		}(i)
	}
	close(release)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("worker %d: %v", i, err)
		}
	}
	if n := created.Load(); n != 1 {
		t.Errorf("CreateCollection called %d times, want 1", n)
	}
}

func TestEnsure_ConcurrentDimensionConflict(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	st := &mockStore{
		createCollectionFn: func(_ context.Context, col domain.Collection) error {
			if calls.Add(1) == 1 {
				close(started)
				<-release
				return nil // created at the first caller's dimension
			}
			return domain.NewDimensionMismatch(col.Name(), 128, col.Dimension())
		},
	}
	r := New(st, nil)

	firstDone := make(chan error, 1)
	go func() { firstDone <- r.Ensure(context.Background(), "repo", 128) }()
	<-started

	// Joins the in-flight creation at 128 and must not inherit its success.
	secondDone := make(chan error, 1)
	go func() { secondDone <- r.Ensure(context.Background(), "repo", 256) }()
	close(release)

	if err := <-firstDone; err != nil {
		t.Fatalf("first Ensure: %v", err)
	}
	err := <-secondDone
	if !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Fatalf("second Ensure = %v, want ErrDimensionMismatch", err)
	}
	var dm *domain.DimensionMismatchError
	if errors.As(err, &dm) {
		if dm.Want != 128 || dm.Got != 256 {
			t.Errorf("mismatch detail = want %d got %d", dm.Want, dm.Got)
		}
	}
}

func TestEnsure_DimensionMismatch(t *testing.T) {
	r := New(&mockStore{}, nil)
	if err := r.Ensure(context.Background(), "repo", 128); err != nil {
		t.Fatalf("Ensure: %v", err)
	}

	err := r.Ensure(context.Background(), "repo", 256)
	if !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Fatalf("error = %v, want ErrDimensionMismatch", err)
	}
	var dm *domain.DimensionMismatchError
	if !errors.As(err, &dm) {
		t.Fatal("error must carry DimensionMismatchError detail")
	}
	if dm.Want != 128 || dm.Got != 256 {
		t.Errorf("mismatch detail = want %d got %d", dm.Want, dm.Got)
	}
}

func TestEnsure_InvalidName(t *testing.T) {
	r := New(&mockStore{}, nil)
	if err := r.Ensure(context.Background(), "no spaces", 128); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("error = %v, want ErrInvalidInput", err)
	}
}

func TestDrop_InvalidatesCache(t *testing.T) {
	var created atomic.Int32
	st := &mockStore{
		createCollectionFn: func(context.Context, domain.Collection) error {
			created.Add(1)
			return nil
		},
	}
	r := New(st, nil)

	if err := r.Ensure(context.Background(), "repo", 128); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if err := r.Drop(context.Background(), "repo"); err != nil {
		t.Fatalf("Drop: %v", err)
	}
	if err := r.Ensure(context.Background(), "repo", 128); err != nil {
		t.Fatalf("Ensure after drop: %v", err)
	}
	if n := created.Load(); n != 2 {
		t.Errorf("CreateCollection called %d times, want 2", n)
	}
}

func TestDimension_ConsultsBackendOnMiss(t *testing.T) {
	var calls atomic.Int32
	st := &mockStore{
		collectionDimensionFn: func(_ context.Context, name string) (int, error) {
			calls.Add(1)
			if name != "external" {
				t.Errorf("name = %q", name)
			}
			return 768, nil
		},
	}
	r := New(st, nil)

	for i := 0; i < 2; i++ {
		dim, err := r.Dimension(context.Background(), "external")
		if err != nil {
			t.Fatalf("Dimension: %v", err)
		}
		if dim != 768 {
			t.Errorf("dim = %d, want 768", dim)
		}
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("backend consulted %d times, want 1 (memoized)", n)
	}
}

func TestExists(t *testing.T) {
	r := New(&mockStore{}, nil)
	ok, err := r.Exists(context.Background(), "missing")
	if err != nil || ok {
		t.Errorf("Exists(missing) = (%v, %v), want (false, nil)", ok, err)
	}

	connErr := &mockStore{
		collectionDimensionFn: func(context.Context, string) (int, error) {
			return 0, domain.ErrConnection
		},
	}
	if _, err := New(connErr, nil).Exists(context.Background(), "any"); !errors.Is(err, domain.ErrConnection) {
		t.Errorf("connection failure must propagate, got %v", err)
	}
}

func TestInsert_ValidatesBatchDimensions(t *testing.T) {
	inserted := false
	st := &mockStore{
		insertFn: func(context.Context, string, []domain.Document) error {
			inserted = true
			return nil
		},
	}
	r := New(st, nil)
	if err := r.Ensure(context.Background(), "repo", 3); err != nil {
		t.Fatalf("Ensure: %v", err)
	}

	good, _ := domain.NewDocument("good", "text", nil, domain.Provenance{}, []float32{1, 2, 3})
	bad, _ := domain.NewDocument("bad", "text", nil, domain.Provenance{}, []float32{1, 2})

	err := r.Insert(context.Background(), "repo", []domain.Document{good, bad})
	if !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Fatalf("error = %v, want ErrDimensionMismatch", err)
	}
	if inserted {
		t.Error("a mismatched batch must not reach the store")
	}

	if err := r.Insert(context.Background(), "repo", []domain.Document{good}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if !inserted {
		t.Error("valid batch must reach the store")
	}
}

func TestInsert_EmptyBatch(t *testing.T) {
	// No dimension lookup, no store call.
	r := New(&mockStore{}, nil)
	if err := r.Insert(context.Background(), "missing", nil); err != nil {
		t.Errorf("empty insert: %v", err)
	}
}

func TestSearch_QueryVectorDimension(t *testing.T) {
	r := New(&mockStore{}, nil)
	if err := r.Ensure(context.Background(), "repo", 3); err != nil {
		t.Fatalf("Ensure: %v", err)
	}

	_, err := r.Search(context.Background(), "repo", []float32{1, 2}, filter.Expression{}, 10)
	if !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Errorf("error = %v, want ErrDimensionMismatch", err)
	}
}

func TestSearch_MissingCollection(t *testing.T) {
	r := New(&mockStore{}, nil)
	_, err := r.Search(context.Background(), "missing", []float32{1}, filter.Expression{}, 10)
	if !errors.Is(err, domain.ErrCollectionNotFound) {
		t.Errorf("error = %v, want ErrCollectionNotFound", err)
	}
}
