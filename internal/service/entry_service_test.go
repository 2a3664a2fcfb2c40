package service

import (
	"context"
	"testing"
	"time"

	"github.com/andy/tally/internal/billing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecord(t *testing.T) {
	f := newFixture()
	start := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	end := start.Add(2*time.Hour + 30*time.Minute)

	entry, err := f.entrySvc.Record(context.Background(), owner, EntryInput{
		ProjectID:   1,
		Description: "Kickoff",
		Start:       &start,
		End:         &end,
	})
	require.NoError(t, err)

	assert.NotZero(t, entry.ID)
	assert.Equal(t, owner.UserID, entry.UserID)
	assert.Equal(t, int64(9000), entry.DurationSeconds)
	assertMoney(t, "2.50", entry.Hours)
	assert.True(t, entry.Billable)
}

func TestRecord_EndBeforeStartFloorsAtZero(t *testing.T) {
	f := newFixture()
	start := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	end := start.Add(-time.Hour)

	entry, err := f.entrySvc.Record(context.Background(), owner, EntryInput{ProjectID: 1, Start: &start, End: &end})
	require.NoError(t, err)
	assert.Equal(t, int64(0), entry.DurationSeconds)
	assert.True(t, entry.Hours.IsZero())
}

func TestRecord_OtherOwnersProject(t *testing.T) {
	f := newFixture()

	_, err := f.entrySvc.Record(context.Background(), owner, EntryInput{ProjectID: 2})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, f.entries.entries)
}

func TestEdit_RecomputesAndAudits(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	e := f.entry(t, owner.UserID, 1, 2, "Draft")

	end := e.StartTime.Add(4 * time.Hour)
	desc := "Design review"
	edited, err := f.entrySvc.Edit(ctx, owner, e.ID, EntryUpdate{Description: &desc, End: &end}, "typo")
	require.NoError(t, err)

	assertMoney(t, "4.00", edited.Hours)
	history, err := f.entrySvc.History(ctx, owner, e.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "description", history[0].FieldName)
	assert.Equal(t, "Draft", history[0].OldValue)
	assert.Equal(t, "typo", history[0].ChangeReason)
	assert.Equal(t, owner.UserID, history[0].ChangedBy)
}

func TestEdit_BilledEntryLocked(t *testing.T) {
	f := newFixture()
	e := f.entry(t, owner.UserID, 1, 2, "Done")
	f.entries.entries[e.ID].Billed = true

	desc := "changed"
	_, err := f.entrySvc.Edit(context.Background(), owner, e.ID, EntryUpdate{Description: &desc}, "")
	assert.ErrorIs(t, err, billing.ErrEntryAlreadyBilled)
	assert.Equal(t, "Done", f.entries.entries[e.ID].Description)
}

func TestEdit_OtherUser(t *testing.T) {
	f := newFixture()
	e := f.entry(t, owner.UserID, 1, 2, "Mine")

	desc := "theirs"
	_, err := f.entrySvc.Edit(context.Background(), other, e.ID, EntryUpdate{Description: &desc}, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEdit_MoveToOtherOwnersProject(t *testing.T) {
	f := newFixture()
	e := f.entry(t, owner.UserID, 1, 2, "Mine")

	project := int64(2)
	_, err := f.entrySvc.Edit(context.Background(), owner, e.ID, EntryUpdate{ProjectID: &project}, "")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, int64(1), f.entries.entries[e.ID].ProjectID)
}

func TestDelete_SoftDeletes(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	e := f.entry(t, owner.UserID, 1, 2, "Oops")

	require.NoError(t, f.entrySvc.Delete(ctx, owner, e.ID, "duplicate"))
	assert.True(t, f.entries.entries[e.ID].IsDeleted)

	err := f.entrySvc.Delete(ctx, owner, e.ID, "again")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUnbilled(t *testing.T) {
	f := newFixture()
	f.entry(t, owner.UserID, 1, 2, "a")
	f.entry(t, owner.UserID, 1, 3, "b")
	nonBillable := f.entry(t, owner.UserID, 1, 1, "internal")
	f.entries.entries[nonBillable.ID].Billable = false
	billed := f.entry(t, owner.UserID, 1, 4, "invoiced")
	f.entries.entries[billed.ID].Billed = true
	f.entry(t, other.UserID, 2, 8, "elsewhere")

	report, err := f.entrySvc.Unbilled(context.Background(), owner, 1)
	require.NoError(t, err)

	assert.Len(t, report.Entries, 2)
	assertMoney(t, "5.00", report.Hours)
	assertMoney(t, "250.00", report.Amount)
}

func TestMarkBilled(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	inv := f.sentInvoice(t, day(2026, 3, 31))
	e := f.entry(t, owner.UserID, 1, 2, "Work")
	wrongProject := f.entry(t, owner.UserID, 2, 1, "Elsewhere")

	err := f.entrySvc.MarkBilled(ctx, owner, inv.ID, []int64{e.ID, wrongProject.ID})
	assert.ErrorIs(t, err, billing.ErrEntryWrongProject)
	assert.False(t, f.entries.entries[e.ID].Billed)

	require.NoError(t, f.entrySvc.MarkBilled(ctx, owner, inv.ID, []int64{e.ID}))
	assert.True(t, f.entries.entries[e.ID].Billed)
	assert.Equal(t, inv.ID, *f.entries.entries[e.ID].InvoiceID)
}
