package contract

import (
	"context"

	"github.com/shipmetrics/prism/schema"
	"github.com/stretchr/testify/mock"
)

// --- MockRecordStore Implementation ---

// MockRecordStore is an autogenerated mock type for the RecordStore type.
type MockRecordStore struct {
	mock.Mock
}

var _ RecordStore = &MockRecordStore{} // Compile-time check

// ExecutePredicate implements the RecordStore interface.
func (m *MockRecordStore) ExecutePredicate(ctx context.Context, kind schema.RecordKind, pred Predicate, sort *schema.SortSpec, offset, limit int) ([]schema.Record, error) {
	ret := m.Called(ctx, kind, pred, sort, offset, limit)
	records, _ := ret.Get(0).([]schema.Record)
	return records, ret.Error(1)
}

// --- MockTeamResolver Implementation ---

// MockTeamResolver is an autogenerated mock type for the TeamResolver type.
type MockTeamResolver struct {
	mock.Mock
}

var _ TeamResolver = &MockTeamResolver{} // Compile-time check

// ResolveTeam implements the TeamResolver interface.
func (m *MockTeamResolver) ResolveTeam(ctx context.Context, teamID string) ([]string, error) {
	ret := m.Called(ctx, teamID)
	members, _ := ret.Get(0).([]string)
	return members, ret.Error(1)
}

// --- MockTimelineReader Implementation ---

// MockTimelineReader is an autogenerated mock type for the TimelineReader type.
type MockTimelineReader struct {
	mock.Mock
}

var _ TimelineReader = &MockTimelineReader{} // Compile-time check

// ReadSegments implements the TimelineReader interface.
func (m *MockTimelineReader) ReadSegments(ctx context.Context, recordID, field string) ([]schema.TimelineSegment, error) {
	ret := m.Called(ctx, recordID, field)
	segs, _ := ret.Get(0).([]schema.TimelineSegment)
	return segs, ret.Error(1)
}

// ReadFieldSegments implements the TimelineReader interface.
func (m *MockTimelineReader) ReadFieldSegments(ctx context.Context, recordIDs []string, field string) (map[string][]schema.TimelineSegment, error) {
	ret := m.Called(ctx, recordIDs, field)
	segs, _ := ret.Get(0).(map[string][]schema.TimelineSegment)
	return segs, ret.Error(1)
}

// --- MockMilestoneReader Implementation ---

// MockMilestoneReader is an autogenerated mock type for the MilestoneReader type.
type MockMilestoneReader struct {
	mock.Mock
}

var _ MilestoneReader = &MockMilestoneReader{} // Compile-time check

// ReadMilestone implements the MilestoneReader interface.
func (m *MockMilestoneReader) ReadMilestone(ctx context.Context, id string) (schema.Milestone, error) {
	ret := m.Called(ctx, id)
	ms, _ := ret.Get(0).(schema.Milestone)
	return ms, ret.Error(1)
}

// --- MockSprintMappingStore Implementation ---

// MockSprintMappingStore is an autogenerated mock type for the SprintMappingStore type.
type MockSprintMappingStore struct {
	mock.Mock
}

var _ SprintMappingStore = &MockSprintMappingStore{} // Compile-time check

// Upsert implements the SprintMappingStore interface.
func (m *MockSprintMappingStore) Upsert(ctx context.Context, row schema.SprintMapping) error {
	ret := m.Called(ctx, row)
	return ret.Error(0)
}

// ListByRecords implements the SprintMappingStore interface.
func (m *MockSprintMappingStore) ListByRecords(ctx context.Context, recordIDs []string) ([]schema.SprintMapping, error) {
	ret := m.Called(ctx, recordIDs)
	rows, _ := ret.Get(0).([]schema.SprintMapping)
	return rows, ret.Error(1)
}

// Close implements the SprintMappingStore interface.
func (m *MockSprintMappingStore) Close() error {
	ret := m.Called()
	return ret.Error(0)
}

// --- MockResultCache Implementation ---

// MockResultCache is an autogenerated mock type for the ResultCache type.
type MockResultCache struct {
	mock.Mock
}

var _ ResultCache = &MockResultCache{} // Compile-time check

// Get implements the ResultCache interface.
func (m *MockResultCache) Get(key string) ([]byte, int, int64, error) {
	ret := m.Called(key)
	value, _ := ret.Get(0).([]byte)
	version, _ := ret.Get(1).(int)
	ts, _ := ret.Get(2).(int64)
	return value, version, ts, ret.Error(3)
}

// Set implements the ResultCache interface.
func (m *MockResultCache) Set(key string, value []byte, version int, timestamp int64) error {
	ret := m.Called(key, value, version, timestamp)
	return ret.Error(0)
}

// GetStatus implements the ResultCache interface.
func (m *MockResultCache) GetStatus() (schema.StoreStatus, error) {
	ret := m.Called()
	status, _ := ret.Get(0).(schema.StoreStatus)
	return status, ret.Error(1)
}

// Close implements the ResultCache interface.
func (m *MockResultCache) Close() error {
	ret := m.Called()
	return ret.Error(0)
}
