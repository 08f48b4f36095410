package syncer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/villefeed/faits-divers-crawler/internal/gazetteer"
	"github.com/villefeed/faits-divers-crawler/internal/publisher"
	pubmem "github.com/villefeed/faits-divers-crawler/internal/publisher/memory"
	"github.com/villefeed/faits-divers-crawler/internal/store"
)

// fakeStore keeps records in memory and can be told to fail a given batch.
type fakeStore struct {
	records     []store.Record
	maxIDCalls  int
	failAtBatch int
	batches     int
}

func (f *fakeStore) MaxID(context.Context) (int64, error) {
	f.maxIDCalls++
	var max int64
	for _, r := range f.records {
		if r.ID > max {
			max = r.ID
		}
	}
	return max, nil
}

func (f *fakeStore) LastDate(context.Context) (time.Time, bool, error) {
	if len(f.records) == 0 {
		return time.Time{}, false, nil
	}
	last := f.records[0].Date
	for _, r := range f.records[1:] {
		if r.Date.After(last) {
			last = r.Date
		}
	}
	return last, true, nil
}

func (f *fakeStore) LinksForDate(_ context.Context, day time.Time) (map[string]struct{}, error) {
	links := make(map[string]struct{})
	for _, r := range f.records {
		if r.Date.Equal(day) && r.OriginURL != "" {
			links[r.OriginURL] = struct{}{}
		}
	}
	return links, nil
}

func (f *fakeStore) InsertBatch(_ context.Context, batch []store.Record) error {
	f.batches++
	if f.failAtBatch > 0 && f.batches == f.failAtBatch {
		return errors.New("connection reset")
	}
	f.records = append(f.records, batch...)
	return nil
}

func (f *fakeStore) Close() {}

var (
	paris     = gazetteer.Municipality{Name: "Paris", DepartmentCode: "75", Latitude: 48.8566, Longitude: 2.3522}
	marseille = gazetteer.Municipality{Name: "Marseille", DepartmentCode: "13", Latitude: 43.2965, Longitude: 5.3698}
)

func candidate(day time.Time, city gazetteer.Municipality, originURL string) Candidate {
	return Candidate{
		Date:      day,
		Title:     "Incident à " + city.Name,
		Body:      "corps de l'article",
		OriginURL: originURL,
		City:      city,
	}
}

func TestSyncAssignsSequentialIDs(t *testing.T) {
	t.Parallel()

	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	st := &fakeStore{records: []store.Record{
		{ID: 41, Date: day.AddDate(0, 0, -1), OriginURL: "https://example.org/old"},
	}}
	w := New(st, nil, nil, Config{}, nil)

	out, err := w.Sync(context.Background(), uuid.New(), []Candidate{
		candidate(day, paris, "https://example.org/a"),
		candidate(day, marseille, "https://example.org/b"),
	})
	require.NoError(t, err)
	require.Equal(t, 2, out.Inserted)
	require.Equal(t, 0, out.Skipped)
	require.Equal(t, 1, out.Batches)
	require.Equal(t, int64(42), out.FirstID)
	require.Equal(t, int64(43), out.LastID)

	require.Equal(t, int64(42), st.records[1].ID)
	require.Equal(t, "Paris", st.records[1].City)
	require.Equal(t, "75", st.records[1].DepartmentCode)
	require.Equal(t, int64(43), st.records[2].ID)
}

func TestSyncIsIdempotent(t *testing.T) {
	t.Parallel()

	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	st := &fakeStore{}
	w := New(st, nil, nil, Config{}, nil)
	candidates := []Candidate{
		candidate(day, paris, "https://example.org/a"),
		candidate(day, marseille, "https://example.org/b"),
	}

	out, err := w.Sync(context.Background(), uuid.New(), candidates)
	require.NoError(t, err)
	require.Equal(t, 2, out.Inserted)

	// Same candidates again: everything is filtered, nothing is written.
	out, err = w.Sync(context.Background(), uuid.New(), candidates)
	require.NoError(t, err)
	require.Equal(t, 0, out.Inserted)
	require.Equal(t, 2, out.Skipped)
	require.Len(t, st.records, 2)
}

func TestSyncSkippedCandidatesConsumeNoID(t *testing.T) {
	t.Parallel()

	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	st := &fakeStore{records: []store.Record{
		{ID: 7, Date: day, OriginURL: "https://example.org/dup"},
	}}
	w := New(st, nil, nil, Config{}, nil)

	out, err := w.Sync(context.Background(), uuid.New(), []Candidate{
		candidate(day, paris, "https://example.org/dup"),
		candidate(day, marseille, "https://example.org/new"),
	})
	require.NoError(t, err)
	require.Equal(t, 1, out.Inserted)
	require.Equal(t, 1, out.Skipped)
	require.Equal(t, int64(8), out.FirstID, "the survivor takes the next id, the duplicate takes none")
}

func TestSyncDedupIsScopedPerDate(t *testing.T) {
	t.Parallel()

	day1 := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	day2 := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
	st := &fakeStore{records: []store.Record{
		{ID: 1, Date: day1, OriginURL: "https://example.org/a"},
	}}
	w := New(st, nil, nil, Config{}, nil)

	// Same origin URL on a different date is not a duplicate.
	out, err := w.Sync(context.Background(), uuid.New(), []Candidate{
		candidate(day2, paris, "https://example.org/a"),
	})
	require.NoError(t, err)
	require.Equal(t, 1, out.Inserted)
	require.Equal(t, 0, out.Skipped)
}

func TestSyncBatching(t *testing.T) {
	t.Parallel()

	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	st := &fakeStore{}
	w := New(st, nil, nil, Config{BatchSize: 2}, nil)

	candidates := make([]Candidate, 5)
	for i := range candidates {
		candidates[i] = candidate(day, paris, "https://example.org/"+string(rune('a'+i)))
	}

	out, err := w.Sync(context.Background(), uuid.New(), candidates)
	require.NoError(t, err)
	require.Equal(t, 5, out.Inserted)
	require.Equal(t, 3, out.Batches)
	require.Equal(t, 3, st.batches)
}

func TestSyncFailedBatchKeepsEarlierBatches(t *testing.T) {
	t.Parallel()

	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	st := &fakeStore{failAtBatch: 2}
	w := New(st, nil, nil, Config{BatchSize: 2}, nil)

	candidates := make([]Candidate, 5)
	for i := range candidates {
		candidates[i] = candidate(day, paris, "https://example.org/"+string(rune('a'+i)))
	}

	out, err := w.Sync(context.Background(), uuid.New(), candidates)
	require.Error(t, err)
	require.Contains(t, err.Error(), "insert batch 2")
	require.Equal(t, 2, out.Inserted)
	require.Equal(t, 1, out.Batches)
	require.Len(t, st.records, 2, "the first batch stays committed")

	// The re-run skips the committed rows and syncs the remainder.
	st.failAtBatch = 0
	out, err = w.Sync(context.Background(), uuid.New(), candidates)
	require.NoError(t, err)
	require.Equal(t, 3, out.Inserted)
	require.Equal(t, 2, out.Skipped)
	require.Len(t, st.records, 5)
}

func TestSyncPublishesBatchNotices(t *testing.T) {
	t.Parallel()

	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	st := &fakeStore{}
	pub := pubmem.New()
	runID := uuid.New()
	w := New(st, pub, nil, Config{BatchSize: 2, Topic: "faits-divers-batches"}, nil)

	candidates := []Candidate{
		candidate(day, paris, "https://example.org/a"),
		candidate(day, marseille, "https://example.org/b"),
		candidate(day, paris, "https://example.org/c"),
	}
	_, err := w.Sync(context.Background(), runID, candidates)
	require.NoError(t, err)

	notices := pub.Notices()
	require.Len(t, notices, 2)
	require.Equal(t, "faits-divers-batches", notices[0].Topic)

	first, ok := notices[0].Payload.(publisher.BatchNotice)
	require.True(t, ok)
	require.Equal(t, runID.String(), first.RunID)
	require.Equal(t, []string{"2024-03-01"}, first.Dates)
	require.Equal(t, int64(1), first.FirstID)
	require.Equal(t, int64(2), first.LastID)
	require.Equal(t, 2, first.Rows)
	require.Equal(t, 1, first.BatchIndex)

	second, ok := notices[1].Payload.(publisher.BatchNotice)
	require.True(t, ok)
	require.Equal(t, 2, second.BatchIndex)
	require.Equal(t, 1, second.Rows)
}

func TestSyncEmptyInputIsNoop(t *testing.T) {
	t.Parallel()

	st := &fakeStore{}
	w := New(st, nil, nil, Config{}, nil)

	out, err := w.Sync(context.Background(), uuid.New(), nil)
	require.NoError(t, err)
	require.Zero(t, out.Inserted)
	require.Zero(t, st.maxIDCalls, "an empty sync never touches the remote")
}
