package domain

import "time"

// EntryHistory records one changed field of a time entry
type EntryHistory struct {
	ID           int64
	EntryID      int64
	ChangedBy    int64
	FieldName    string
	OldValue     string
	NewValue     string
	ChangeReason string
	ChangedAt    time.Time
}

// NewEntryHistory creates a history record for a field change made by the caller
func NewEntryHistory(entryID int64, caller Principal, fieldName, oldValue, newValue, reason string) *EntryHistory {
	return &EntryHistory{
		EntryID:      entryID,
		ChangedBy:    caller.UserID,
		FieldName:    fieldName,
		OldValue:     oldValue,
		NewValue:     newValue,
		ChangeReason: reason,
		ChangedAt:    time.Now(),
	}
}
