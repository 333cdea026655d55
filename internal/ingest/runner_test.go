package ingest

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/WillPhil45/Transaction-API/internal/config"
	csvp "github.com/WillPhil45/Transaction-API/internal/parser/csv"
	"github.com/WillPhil45/Transaction-API/internal/storage"
	_ "github.com/WillPhil45/Transaction-API/internal/storage/sqlite"
	"github.com/WillPhil45/Transaction-API/internal/txn"
)

const header = "transaction_id,date,amount,category,memo\n"

// newRepo opens a fresh SQLite-backed repository with its schema bootstrapped.
func newRepo(t *testing.T, onConflict string) storage.Repository {
	t.Helper()

	cfg := storage.Config{
		Kind:       "sqlite",
		DSN:        filepath.Join(t.TempDir(), "runner.db"),
		Table:      "transactions",
		OnConflict: onConflict,
	}
	repo, err := storage.New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	t.Cleanup(repo.Close)

	if err := storage.EnsureSchema(context.Background(), repo, cfg); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	return repo
}

func ingestCSV(t *testing.T, repo storage.Repository, cfg config.Ingest, body string) (*Tracker, error) {
	t.Helper()

	r := NewRunner(repo, cfg, config.Limits{})
	tr := NewTracker("upload.csv", cfg.RejectSampleCap)
	err := r.Run(context.Background(), tr, strings.NewReader(body))
	return tr, err
}

func TestRunHappyPath(t *testing.T) {
	t.Parallel()

	repo := newRepo(t, "append")
	body := header +
		"t1,2024-01-10,12.50,groceries,milk\n" +
		"t2,2024-01-11,-3.25,fuel,\n" +
		"t3,2024-01-12,100,,\n"

	tr, err := ingestCSV(t, repo, config.Ingest{BatchSize: 2, ChannelBuffer: 4, RejectSampleCap: 5}, body)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	job := tr.Snapshot()
	if job.Status != StatusCompleted {
		t.Fatalf("status = %q, want completed", job.Status)
	}
	if job.RowsSeen != 3 || job.RowsAccepted != 3 || job.RowsRejected != 0 {
		t.Fatalf("counters = %d/%d/%d, want 3/3/0", job.RowsSeen, job.RowsAccepted, job.RowsRejected)
	}
	if job.RowsPersisted != 3 {
		t.Fatalf("rows_persisted = %d, want 3", job.RowsPersisted)
	}

	n, err := repo.Count(context.Background())
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 3 {
		t.Fatalf("store count = %d, want 3", n)
	}
}

func TestRunBadRowsInMiddle(t *testing.T) {
	t.Parallel()

	repo := newRepo(t, "append")
	body := header +
		"t1,2024-01-10,12.50,groceries,\n" +
		"t2,13/01/2024,5.00,fuel,\n" + // bad date
		"t3,2024-01-12,abc,fuel,\n" +  // bad amount
		"t4,2024-01-13,7.00,fuel,\n"

	tr, err := ingestCSV(t, repo, config.Ingest{BatchSize: 100, ChannelBuffer: 4, RejectSampleCap: 5}, body)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	job := tr.Snapshot()
	if job.Status != StatusCompleted {
		t.Fatalf("status = %q, want completed", job.Status)
	}
	if job.RowsSeen != 4 || job.RowsAccepted != 2 || job.RowsRejected != 2 {
		t.Fatalf("counters = %d/%d/%d, want 4/2/2", job.RowsSeen, job.RowsAccepted, job.RowsRejected)
	}
	if len(job.RejectedSamples) != 2 {
		t.Fatalf("len(samples) = %d, want 2", len(job.RejectedSamples))
	}
	if job.RejectedSamples[0].Line != 3 || job.RejectedSamples[0].Reason != string(csvp.ReasonBadDate) {
		t.Fatalf("sample[0] = %+v, want line 3 bad date", job.RejectedSamples[0])
	}
	if job.RejectedSamples[1].Line != 4 || job.RejectedSamples[1].Reason != string(csvp.ReasonBadAmount) {
		t.Fatalf("sample[1] = %+v, want line 4 bad amount", job.RejectedSamples[1])
	}

	n, _ := repo.Count(context.Background())
	if n != 2 {
		t.Fatalf("store count = %d, want 2", n)
	}
}

func TestRunHeaderErrorLeavesJobPending(t *testing.T) {
	t.Parallel()

	repo := newRepo(t, "append")
	body := "id,date,amount,category,memo\n" +
		"t1,2024-01-10,12.50,groceries,\n"

	tr, err := ingestCSV(t, repo, config.Ingest{BatchSize: 10, ChannelBuffer: 4, RejectSampleCap: 5}, body)
	var he *csvp.HeaderError
	if !errors.As(err, &he) {
		t.Fatalf("Run error = %v, want *HeaderError", err)
	}

	job := tr.Snapshot()
	if job.Status != StatusPending {
		t.Fatalf("status = %q, want pending", job.Status)
	}
	if job.Error == "" {
		t.Fatal("job error is empty")
	}
	if job.RowsSeen != 0 {
		t.Fatalf("rows_seen = %d, want 0", job.RowsSeen)
	}

	n, _ := repo.Count(context.Background())
	if n != 0 {
		t.Fatalf("store count = %d, want 0 (nothing written)", n)
	}
}

func TestRunBatchSizeDoesNotChangeOutcome(t *testing.T) {
	t.Parallel()

	var b strings.Builder
	b.WriteString(header)
	for i := 0; i < 57; i++ {
		// Every 10th row has a bad amount.
		if i%10 == 9 {
			b.WriteString("bad,2024-01-10,oops,,\n")
			continue
		}
		b.WriteString("t")
		b.WriteString(string(rune('a' + i%26)))
		b.WriteString(string(rune('0' + i/26)))
		b.WriteString(",2024-01-10,1.00,,\n")
	}
	body := b.String()

	for _, batchSize := range []int{1, 7, 1000} {
		repo := newRepo(t, "append")
		tr, err := ingestCSV(t, repo, config.Ingest{BatchSize: batchSize, ChannelBuffer: 2, RejectSampleCap: 5}, body)
		if err != nil {
			t.Fatalf("batchSize=%d Run: %v", batchSize, err)
		}
		job := tr.Snapshot()
		if job.RowsSeen != 57 || job.RowsAccepted != 52 || job.RowsRejected != 5 {
			t.Fatalf("batchSize=%d counters = %d/%d/%d, want 57/52/5",
				batchSize, job.RowsSeen, job.RowsAccepted, job.RowsRejected)
		}
		n, _ := repo.Count(context.Background())
		if n != 52 {
			t.Fatalf("batchSize=%d store count = %d, want 52", batchSize, n)
		}
	}
}

func TestRunDedupInFile(t *testing.T) {
	t.Parallel()

	repo := newRepo(t, "append")
	body := header +
		"t1,2024-01-10,1.00,,\n" +
		"t2,2024-01-10,2.00,,\n" +
		"t1,2024-01-11,3.00,,\n" // duplicate key, later occurrence dropped

	tr, err := ingestCSV(t, repo, config.Ingest{BatchSize: 10, ChannelBuffer: 4, RejectSampleCap: 5, DedupInFile: true}, body)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	job := tr.Snapshot()
	if job.RowsAccepted != 2 || job.RowsRejected != 1 {
		t.Fatalf("accepted/rejected = %d/%d, want 2/1", job.RowsAccepted, job.RowsRejected)
	}
	if job.RejectedSamples[0].Line != 4 || job.RejectedSamples[0].Reason != string(csvp.ReasonDuplicateKey) {
		t.Fatalf("sample[0] = %+v, want line 4 duplicate", job.RejectedSamples[0])
	}

	n, _ := repo.Count(context.Background())
	if n != 2 {
		t.Fatalf("store count = %d, want 2", n)
	}
}

func TestRunIgnorePolicyPersistedBelowAccepted(t *testing.T) {
	t.Parallel()

	repo := newRepo(t, "ignore")
	body := header +
		"t1,2024-01-10,1.00,,\n" +
		"t2,2024-01-10,2.00,,\n" +
		"t1,2024-01-11,3.00,,\n" // conflicts on transaction_id, silently skipped

	tr, err := ingestCSV(t, repo, config.Ingest{BatchSize: 10, ChannelBuffer: 4, RejectSampleCap: 5}, body)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	job := tr.Snapshot()
	if job.Status != StatusCompleted {
		t.Fatalf("status = %q, want completed", job.Status)
	}
	if job.RowsAccepted != 3 {
		t.Fatalf("rows_accepted = %d, want 3 (all rows pass validation)", job.RowsAccepted)
	}
	if job.RowsPersisted != 2 {
		t.Fatalf("rows_persisted = %d, want 2", job.RowsPersisted)
	}
}

// failAfterRepo wraps a Repository and fails CopyFrom after n successful
// batches.
type failAfterRepo struct {
	storage.Repository
	ok      int
	batches int
}

func (f *failAfterRepo) CopyFrom(ctx context.Context, batch []txn.Transaction) (int64, error) {
	if f.batches >= f.ok {
		return 0, errors.New("disk full")
	}
	f.batches++
	return f.Repository.CopyFrom(ctx, batch)
}

func TestRunStoreFailureKeepsCommittedBatches(t *testing.T) {
	t.Parallel()

	inner := newRepo(t, "append")
	repo := &failAfterRepo{Repository: inner, ok: 1}

	body := header +
		"t1,2024-01-10,1.00,,\n" +
		"t2,2024-01-10,2.00,,\n" +
		"t3,2024-01-10,3.00,,\n" +
		"t4,2024-01-10,4.00,,\n"

	tr, err := ingestCSV(t, repo, config.Ingest{BatchSize: 2, ChannelBuffer: 4, RejectSampleCap: 5}, body)
	if err == nil {
		t.Fatal("Run succeeded, want store error")
	}

	job := tr.Snapshot()
	if job.Status != StatusFailed {
		t.Fatalf("status = %q, want failed", job.Status)
	}
	if job.Error == "" {
		t.Fatal("job error is empty")
	}
	if job.RowsPersisted != 2 {
		t.Fatalf("rows_persisted = %d, want 2 (first batch stays committed)", job.RowsPersisted)
	}

	n, _ := inner.Count(context.Background())
	if n != 2 {
		t.Fatalf("store count = %d, want 2", n)
	}
}

func TestDedup(t *testing.T) {
	t.Parallel()

	d := newDedup()
	if d.duplicate("t1") {
		t.Fatal("first occurrence reported as duplicate")
	}
	if !d.duplicate("t1") {
		t.Fatal("second occurrence not reported as duplicate")
	}
	if d.duplicate("t2") {
		t.Fatal("distinct key reported as duplicate")
	}
}
