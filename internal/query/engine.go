package query

import (
	"context"
	"fmt"
	"math"

	"github.com/WillPhil45/Transaction-API/internal/storage"
)

// Engine evaluates summary requests. Reads are point-in-time consistent at
// batch granularity and run concurrently with each other and with an
// in-progress ingestion.
type Engine struct {
	repo storage.Repository
}

// NewEngine returns an Engine reading from repo.
func NewEngine(repo storage.Repository) *Engine {
	return &Engine{repo: repo}
}

// Summary validates q and executes it as a single index-range scan. A
// grouped query derives the overall tuple from the group tuples, so it still
// costs one scan.
func (e *Engine) Summary(ctx context.Context, q DateRange) (*Summary, error) {
	start, end, err := q.Validate()
	if err != nil {
		return nil, err
	}

	s := &Summary{Start: start, End: end, GroupBy: q.GroupBy}

	if q.GroupBy == "" {
		agg, err := e.repo.Aggregate(ctx, start, end)
		if err != nil {
			return nil, fmt.Errorf("summary scan: %w", err)
		}
		fillFromAggregate(s, agg)
		return s, nil
	}

	groups, err := e.repo.AggregateBy(ctx, start, end, q.GroupBy)
	if err != nil {
		return nil, fmt.Errorf("grouped summary scan: %w", err)
	}

	var total storage.Aggregate
	s.Groups = make([]GroupSummary, 0, len(groups))
	for i, g := range groups {
		gs := GroupSummary{Key: g.Key, Count: g.Count, Sum: g.Sum}
		gs.Average = average(g.Sum, g.Count)
		gs.Min = ptr(g.Min)
		gs.Max = ptr(g.Max)
		s.Groups = append(s.Groups, gs)

		total.Count += g.Count
		total.Sum += g.Sum
		if i == 0 || g.Min < total.Min {
			total.Min = g.Min
		}
		if i == 0 || g.Max > total.Max {
			total.Max = g.Max
		}
	}
	fillFromAggregate(s, total)
	return s, nil
}

func fillFromAggregate(s *Summary, agg storage.Aggregate) {
	s.Count = agg.Count
	s.Sum = agg.Sum
	if agg.Count == 0 {
		// Defined empty result: zero count and sum, absent average/min/max.
		return
	}
	s.Average = average(agg.Sum, agg.Count)
	s.Min = ptr(agg.Min)
	s.Max = ptr(agg.Max)
}

// average rounds to two decimal places, matching the reported precision of
// the upload amounts.
func average(sum float64, count int64) *float64 {
	if count == 0 {
		return nil
	}
	return ptr(math.Round(sum/float64(count)*100) / 100)
}

func ptr(f float64) *float64 { return &f }
