package pipeline

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"testing"
)

func TestFromSlice_Collect(t *testing.T) {
	got, err := Collect(context.Background(), FromSlice([]int{1, 2, 3}))
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(got, []int{1, 2, 3}) {
		t.Errorf("got %v, want [1 2 3]", got)
	}
}

func TestFromSlice_Empty(t *testing.T) {
	got, err := Collect(context.Background(), FromSlice([]int{}))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty, got %v", got)
	}
}

func TestFrom_Iterator(t *testing.T) {
	it := &sliceIter[string]{items: []string{"a", "b"}}
	got, err := Collect(context.Background(), From[string](it))
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(got, []string{"a", "b"}) {
		t.Errorf("got %v, want [a b]", got)
	}
}

func TestFromSeq(t *testing.T) {
	got, err := Collect(context.Background(), FromSeq(slices.Values([]int{4, 5, 6})))
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(got, []int{4, 5, 6}) {
		t.Errorf("got %v, want [4 5 6]", got)
	}
}

func TestFromSeq_EarlyClose(t *testing.T) {
	var yielded int
	seq := func(yield func(int) bool) {
		for i := 0; i < 100; i++ {
			yielded++
			if !yield(i) {
				return
			}
		}
	}
	ctx := context.Background()
	it := FromSeq(seq).Iter(ctx)
	if _, ok, _ := it.Next(ctx); !ok {
		t.Fatal("expected a value")
	}
	if err := it.Close(); err != nil {
		t.Fatal(err)
	}
	if yielded != 1 {
		t.Errorf("expected the sequence to stop after one value, yielded %d", yielded)
	}
}

func TestFromSeq_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Collect(ctx, FromSeq(slices.Values([]int{1})))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestFailed(t *testing.T) {
	boom := errors.New("boom")
	got, err := CollectIter(context.Background(), Failed[int](boom))
	if !errors.Is(err, boom) {
		t.Errorf("expected boom, got %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no values, got %v", got)
	}
}

func TestMap(t *testing.T) {
	doubled := Map(FromSlice([]int{1, 2, 3}), func(_ context.Context, n int) (int, error) {
		return n * 2, nil
	})
	got, err := Collect(context.Background(), doubled)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(got, []int{2, 4, 6}) {
		t.Errorf("got %v, want [2 4 6]", got)
	}
}

func TestMap_Error(t *testing.T) {
	fail := Map(FromSlice([]int{1, 2, 3}), func(_ context.Context, n int) (int, error) {
		if n == 2 {
			return 0, errors.New("bad value")
		}
		return n, nil
	})
	got, err := Collect(context.Background(), fail)
	if err == nil {
		t.Fatal("expected error")
	}
	if !slices.Equal(got, []int{1}) {
		t.Errorf("expected [1] before error, got %v", got)
	}
}

func TestMapIter_TypeConversion(t *testing.T) {
	strs := MapIter[int, string](&sliceIter[int]{items: []int{1, 2, 3}}, func(_ context.Context, n int) (string, error) {
		return fmt.Sprintf("#%d", n), nil
	})
	got, err := CollectIter(context.Background(), strs)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(got, []string{"#1", "#2", "#3"}) {
		t.Errorf("got %v, want [#1 #2 #3]", got)
	}
}

func TestFilter(t *testing.T) {
	tests := []struct {
		name string
		in   []int
		want []int
	}{
		{"some", []int{1, 2, 3, 4, 5, 6}, []int{2, 4, 6}},
		{"none", []int{1, 3, 5}, nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			evens := Filter(FromSlice(tc.in), func(n int) bool { return n%2 == 0 })
			got, err := Collect(context.Background(), evens)
			if err != nil {
				t.Fatal(err)
			}
			if !slices.Equal(got, tc.want) {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestTap(t *testing.T) {
	var tapped []int
	observed := Tap(FromSlice([]int{1, 2, 3}), func(_ context.Context, n int) error {
		tapped = append(tapped, n)
		return nil
	})
	got, err := Collect(context.Background(), observed)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(got, []int{1, 2, 3}) {
		t.Errorf("values should pass through unchanged, got %v", got)
	}
	if !slices.Equal(tapped, []int{1, 2, 3}) {
		t.Errorf("tap should see all values, got %v", tapped)
	}
}

func TestTap_Error(t *testing.T) {
	failing := Tap(FromSlice([]int{1, 2, 3}), func(_ context.Context, n int) error {
		if n == 2 {
			return errors.New("tap failed")
		}
		return nil
	})
	_, err := Collect(context.Background(), failing)
	if err == nil || !strings.Contains(err.Error(), "tap failed") {
		t.Errorf("expected tap error, got %v", err)
	}
}

func TestTake(t *testing.T) {
	tests := []struct {
		name  string
		n     int
		want  []int
		pulls int
	}{
		{"fewer than available", 2, []int{1, 2}, 2},
		{"zero", 0, nil, 0},
		{"more than available", 10, []int{1, 2, 3}, 4},
		{"negative takes all", -1, []int{1, 2, 3}, 4},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			src := &countingIter{items: []int{1, 2, 3}}
			got, err := Collect(context.Background(), Take(From[int](src), tc.n))
			if err != nil {
				t.Fatal(err)
			}
			if !slices.Equal(got, tc.want) {
				t.Errorf("got %v, want %v", got, tc.want)
			}
			if src.pulls != tc.pulls {
				t.Errorf("expected %d pulls, got %d", tc.pulls, src.pulls)
			}
			if !src.closed {
				t.Error("expected the source to be closed")
			}
		})
	}
}

func TestDrain_CloseError(t *testing.T) {
	closeErr := errors.New("close failed")
	src := &countingIter{items: []int{1}, closeErr: closeErr}
	err := Drain(From[int](src), func(context.Context, int) error { return nil }).Run(context.Background())
	if !errors.Is(err, closeErr) {
		t.Errorf("expected the close error, got %v", err)
	}

	sinkErr := errors.New("sink failed")
	src = &countingIter{items: []int{1}, closeErr: closeErr}
	err = Drain(From[int](src), func(context.Context, int) error { return sinkErr }).Run(context.Background())
	if !errors.Is(err, sinkErr) {
		t.Errorf("expected the sink error to win, got %v", err)
	}
}

func TestDrain_Run(t *testing.T) {
	var collected []int
	r := Drain(FromSlice([]int{1, 2, 3}), func(_ context.Context, n int) error {
		collected = append(collected, n)
		return nil
	})
	if err := r.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(collected, []int{1, 2, 3}) {
		t.Errorf("got %v, want [1 2 3]", collected)
	}
}

func TestForEach(t *testing.T) {
	var sum int
	err := ForEach(context.Background(), FromSlice([]int{1, 2, 3}), func(_ context.Context, n int) error {
		sum += n
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if sum != 6 {
		t.Errorf("sum = %d, want 6", sum)
	}
}

func TestIter(t *testing.T) {
	ctx := context.Background()
	it := FromSlice([]int{1, 2}).Iter(ctx)
	defer it.Close()

	v1, ok, err := it.Next(ctx)
	if err != nil || !ok || v1 != 1 {
		t.Errorf("first Next: val=%d ok=%v err=%v", v1, ok, err)
	}
	v2, ok, err := it.Next(ctx)
	if err != nil || !ok || v2 != 2 {
		t.Errorf("second Next: val=%d ok=%v err=%v", v2, ok, err)
	}
	_, ok, err = it.Next(ctx)
	if err != nil || ok {
		t.Errorf("third Next should be exhausted: ok=%v err=%v", ok, err)
	}
}

func TestChained_Pipeline(t *testing.T) {
	var tapped []int
	p := FromSlice([]int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10})
	doubled := Map(p, func(_ context.Context, n int) (int, error) { return n * 2, nil })
	fours := Filter(doubled, func(n int) bool { return n%4 == 0 })
	observed := Tap(fours, func(_ context.Context, n int) error {
		tapped = append(tapped, n)
		return nil
	})

	got, err := Collect(context.Background(), observed)
	if err != nil {
		t.Fatal(err)
	}
	want := []int{4, 8, 12, 16, 20}
	if !slices.Equal(got, want) || !slices.Equal(tapped, want) {
		t.Errorf("got %v tapped %v, want %v", got, tapped, want)
	}
}

// --- helpers ---

// countingIter yields items and records how it was used.
type countingIter struct {
	items    []int
	pulls    int
	closed   bool
	closeErr error
}

func (it *countingIter) Next(context.Context) (int, bool, error) {
	it.pulls++
	if len(it.items) == 0 {
		return 0, false, nil
	}
	v := it.items[0]
	it.items = it.items[1:]
	return v, true, nil
}

func (it *countingIter) Close() error {
	it.closed = true
	return it.closeErr
}
