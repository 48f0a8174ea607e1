package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTrace() []TraceEvent {
	r := NewResult()
	r.AddTrace(OpCreate, map[string]any{"category": "common_incoming"}, CaseOK, map[string]any{"id": int64(1), "protocolNumber": int64(40001)})
	r.AddTrace(OpCreate, map[string]any{"category": "common_outgoing"}, CaseValidation, map[string]any{"field": "recipient"})
	r.AddTrace(OpDelete, map[string]any{"id": int64(1)}, CaseOK, map[string]any{"id": int64(1)})
	r.AddTrace(OpArchive, nil, CaseOK, map[string]any{"month": "2025-09", "itemsMoved": int64(0)})
	return r.Trace
}

func TestAddTrace_NormalizesValues(t *testing.T) {
	trace := sampleTrace()

	assert.Equal(t, 1, trace[0].Seq)
	assert.Equal(t, 4, trace[3].Seq)
	assert.Equal(t, float64(40001), trace[0].Result["protocolNumber"])
	assert.Nil(t, trace[3].Args, "empty args are omitted")
}

func TestAssertTraceContains(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceContains(trace, Assertion{Op: OpCreate}))
	assert.NoError(t, assertTraceContains(trace, Assertion{Op: OpCreate, Result: map[string]interface{}{"protocolNumber": 40001}}))
	assert.NoError(t, assertTraceContains(trace, Assertion{Op: OpCreate, Outcome: CaseValidation, Result: map[string]interface{}{"field": "recipient"}}))

	err := assertTraceContains(trace, Assertion{Op: OpCreate, Result: map[string]interface{}{"protocolNumber": 40002}})
	require.Error(t, err)
	var aerr *AssertionError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, AssertTraceContains, aerr.Type)
	assert.Contains(t, err.Error(), "Full trace:")

	assert.Error(t, assertTraceContains(trace, Assertion{Op: OpList}))
	assert.Error(t, assertTraceContains(trace, Assertion{Op: OpDelete, Outcome: CaseNotFound}))
}

func TestAssertTraceOrder(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceOrder(trace, Assertion{Ops: []string{OpCreate, OpDelete, OpArchive}}))
	assert.NoError(t, assertTraceOrder(trace, Assertion{Ops: []string{OpCreate, OpArchive}}), "gaps are allowed")

	err := assertTraceOrder(trace, Assertion{Ops: []string{OpArchive, OpCreate}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "should be before")

	err = assertTraceOrder(trace, Assertion{Ops: []string{OpCreate, OpList}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing op: list")
}

func TestAssertTraceCount(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceCount(trace, Assertion{Op: OpCreate, Count: 2}))
	assert.NoError(t, assertTraceCount(trace, Assertion{Op: OpCreate, Outcome: CaseOK, Count: 1}))
	assert.NoError(t, assertTraceCount(trace, Assertion{Op: OpList, Count: 0}))

	err := assertTraceCount(trace, Assertion{Op: OpDelete, Count: 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 occurrences")
}

func TestBuildWhereClause(t *testing.T) {
	sql, args, err := buildWhereClause(map[string]interface{}{"year": 2025, "kind": "protocol", "deleted_flag": true})
	require.NoError(t, err)
	assert.Equal(t, "deleted_flag = ? AND kind = ? AND year = ?", sql)
	assert.Equal(t, []interface{}{int64(1), "protocol", int64(2025)}, args)

	sql, args, err = buildWhereClause(nil)
	require.NoError(t, err)
	assert.Empty(t, sql)
	assert.Nil(t, args)

	_, _, err = buildWhereClause(map[string]interface{}{"id; DROP TABLE registrations": 1})
	assert.Error(t, err)
}

func TestStateValuesEqual(t *testing.T) {
	tests := []struct {
		name     string
		expected interface{}
		actual   interface{}
		want     bool
	}{
		{"string", "2025-09", "2025-09", true},
		{"string from bytes", "clerk", []byte("clerk"), true},
		{"string mismatch", "clerk", "supervisor", false},
		{"int vs int64", 40001, int64(40001), true},
		{"int mismatch", 1, int64(2), false},
		{"float vs int64", float64(3), int64(3), true},
		{"bool vs int64", true, int64(1), true},
		{"bool false vs int64", false, int64(0), true},
		{"nil vs nil", nil, nil, true},
		{"nil vs value", nil, "x", false},
		{"type mismatch", "1", int64(1), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stateValuesEqual(tt.expected, tt.actual))
		})
	}
}

func TestMatchSubset(t *testing.T) {
	actual := normalizeMap(map[string]any{"total": int64(2), "ids": []int64{1, 2}, "page": 1})

	assert.True(t, matchSubset(actual, nil))
	assert.True(t, matchSubset(actual, map[string]interface{}{"total": 2}))
	assert.True(t, matchSubset(actual, map[string]interface{}{"ids": []interface{}{1, 2}}))
	assert.False(t, matchSubset(actual, map[string]interface{}{"ids": []interface{}{2, 1}}))
	assert.False(t, matchSubset(actual, map[string]interface{}{"missing": 1}))
}

func TestEvaluateAssertions_StateRequiresStore(t *testing.T) {
	errs := EvaluateAssertions(NewResult(), []Assertion{
		{Type: AssertFinalState, Table: "registrations"},
		{Type: AssertArchiveState, Month: "2025-09"},
		{Type: "eventually"},
	}, nil)

	require.Len(t, errs, 3)
	assert.Contains(t, errs[0], "requires database context")
	assert.Contains(t, errs[1], "requires database context")
	assert.Contains(t, errs[2], "unknown assertion type")
}

func TestEvaluateAssertions_AgainstStore(t *testing.T) {
	scenario := &Scenario{
		Name:        "state",
		Description: "State assertions read the primary and archive stores",
		Now:         "2025-10-03T09:30:00Z",
		Flow: []FlowStep{
			{Op: OpCreate, Category: "common_incoming", Args: map[string]interface{}{
				"issuer": "Ministry", "referenceNumber": "F-1", "subject": "Circular",
				"offices": []interface{}{"OFF-1", "OFF-2"}, "entryDate": "2025-09-01",
			}},
			{Op: OpArchive},
		},
		Assertions: []Assertion{
			{Type: AssertFinalState, Table: "registrations", Where: map[string]interface{}{"id": 1}},
			{Type: AssertFinalState, Table: "archive_batches", Where: map[string]interface{}{"month": "2025-09"}, Expect: map[string]interface{}{"items_moved": 2}},
			{Type: AssertFinalState, Table: "bad-table"},
			{Type: AssertArchiveState, Month: "2025-09", Registrations: ptr(int64(1)), AuditEvents: ptr(int64(2))},
			{Type: AssertArchiveState, Month: "2025-08"},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 5, "%v", result.Errors)

	assert.Contains(t, result.Errors[0], "row not found", "archived rows leave the primary store")
	assert.Contains(t, result.Errors[1], `field "items_moved" = 2`)
	assert.Contains(t, result.Errors[2], "invalid table name")
	assert.Contains(t, result.Errors[3], "1 audit events")
	assert.Contains(t, result.Errors[4], "archive store for 2025-08")
}
