package query

import (
	"context"
	"errors"
	"testing"

	"github.com/WillPhil45/Transaction-API/internal/storage"
)

// fakeRepo is a test double for storage.Repository; only the aggregate
// methods matter here.
type fakeRepo struct {
	storage.Repository

	agg       storage.Aggregate
	groups    []storage.GroupAggregate
	err       error
	scanCalls int
	lastStart string
	lastEnd   string
}

func (f *fakeRepo) Aggregate(_ context.Context, start, end string) (storage.Aggregate, error) {
	f.scanCalls++
	f.lastStart, f.lastEnd = start, end
	return f.agg, f.err
}

func (f *fakeRepo) AggregateBy(_ context.Context, start, end, _ string) ([]storage.GroupAggregate, error) {
	f.scanCalls++
	f.lastStart, f.lastEnd = start, end
	return f.groups, f.err
}

func TestSummaryValidationRejectsBeforeScan(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		q    DateRange
	}{
		{"missing start", DateRange{End: "2024-01-31"}},
		{"missing end", DateRange{Start: "2024-01-01"}},
		{"bad start format", DateRange{Start: "31/01/2024", End: "2024-02-01"}},
		{"datetime not accepted", DateRange{Start: "2024-01-01T00:00:00", End: "2024-02-01"}},
		{"inverted range", DateRange{Start: "2024-02-01", End: "2024-01-01"}},
		{"unknown group field", DateRange{Start: "2024-01-01", End: "2024-01-31", GroupBy: "amount"}},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			repo := &fakeRepo{}
			_, err := NewEngine(repo).Summary(context.Background(), tc.q)
			if err == nil {
				t.Fatal("request accepted, want validation error")
			}
			if !IsValidation(err) {
				t.Fatalf("err = %v, want *ValidationError", err)
			}
			if repo.scanCalls != 0 {
				t.Fatalf("scan executed %d times before validation failure", repo.scanCalls)
			}
		})
	}
}

func TestSummaryEmptyRangeIsDefinedResult(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{} // zero aggregate
	s, err := NewEngine(repo).Summary(context.Background(), DateRange{Start: "2024-01-01", End: "2024-01-31"})
	if err != nil {
		t.Fatalf("empty range must not fail: %v", err)
	}
	if s.Count != 0 || s.Sum != 0 {
		t.Fatalf("empty summary = %+v, want zero count and sum", s)
	}
	if s.Average != nil || s.Min != nil || s.Max != nil {
		t.Fatalf("empty summary carries values: %+v", s)
	}
}

func TestSummaryMapsAggregate(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{agg: storage.Aggregate{Count: 3, Sum: 10, Min: -2, Max: 9}}
	s, err := NewEngine(repo).Summary(context.Background(), DateRange{Start: "2024-01-01", End: "2024-01-31"})
	if err != nil {
		t.Fatal(err)
	}
	if s.Count != 3 || s.Sum != 10 {
		t.Fatalf("summary = %+v", s)
	}
	if s.Average == nil || *s.Average != 3.33 {
		t.Fatalf("average = %v, want 3.33 (rounded to 2dp)", s.Average)
	}
	if *s.Min != -2 || *s.Max != 9 {
		t.Fatalf("min/max = %v/%v", *s.Min, *s.Max)
	}
	if repo.lastStart != "2024-01-01" || repo.lastEnd != "2024-01-31" {
		t.Fatalf("scan range = [%s, %s]", repo.lastStart, repo.lastEnd)
	}
}

func TestGroupedSummaryDerivesOverallFromGroups(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{groups: []storage.GroupAggregate{
		{Key: "fuel", Aggregate: storage.Aggregate{Count: 1, Sum: 50, Min: 50, Max: 50}},
		{Key: "groceries", Aggregate: storage.Aggregate{Count: 2, Sum: 30, Min: 10, Max: 20}},
	}}
	s, err := NewEngine(repo).Summary(context.Background(),
		DateRange{Start: "2024-01-01", End: "2024-01-31", GroupBy: "category"})
	if err != nil {
		t.Fatal(err)
	}
	if repo.scanCalls != 1 {
		t.Fatalf("grouped summary took %d scans, want 1", repo.scanCalls)
	}
	if len(s.Groups) != 2 || s.Groups[0].Key != "fuel" || s.Groups[1].Key != "groceries" {
		t.Fatalf("groups = %+v", s.Groups)
	}
	if s.Count != 3 || s.Sum != 80 || *s.Min != 10 || *s.Max != 50 {
		t.Fatalf("overall = %+v, want count=3 sum=80 min=10 max=50", s)
	}
	if *s.Groups[1].Average != 15 {
		t.Fatalf("groceries average = %v, want 15", *s.Groups[1].Average)
	}
}

func TestGroupedSummaryWithNoGroups(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{}
	s, err := NewEngine(repo).Summary(context.Background(),
		DateRange{Start: "2024-01-01", End: "2024-01-31", GroupBy: "date"})
	if err != nil {
		t.Fatal(err)
	}
	if len(s.Groups) != 0 || s.Count != 0 || s.Average != nil {
		t.Fatalf("summary = %+v, want empty defined result", s)
	}
}

func TestSummaryPropagatesStoreErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("database is locked")
	repo := &fakeRepo{err: boom}
	_, err := NewEngine(repo).Summary(context.Background(), DateRange{Start: "2024-01-01", End: "2024-01-31"})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped store error", err)
	}
	if IsValidation(err) {
		t.Fatal("store failure classified as validation error")
	}
	if repo.scanCalls != 1 {
		t.Fatalf("scan attempted %d times, want exactly 1 (no retries)", repo.scanCalls)
	}
}
