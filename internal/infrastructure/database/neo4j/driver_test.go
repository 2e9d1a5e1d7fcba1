package neo4j

import (
	"context"
	"errors"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/turtacn/TechIntel/pkg/errors"
)

type MockDriver struct {
	mock.Mock
}

func (m *MockDriver) VerifyConnectivity(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockDriver) NewSession(ctx context.Context, cfg neo4j.SessionConfig) internalSession {
	return m.Called(ctx, cfg).Get(0).(internalSession)
}

func (m *MockDriver) Close(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// fakeSession runs work against tx, or fails with err.
type fakeSession struct {
	tx     Transaction
	err    error
	closed bool
}

func (s *fakeSession) ExecuteRead(_ context.Context, work TransactionWork) (any, error) {
	if s.err != nil {
		return nil, s.err
	}
	return work(s.tx)
}

func (s *fakeSession) Close(context.Context) error {
	s.closed = true
	return nil
}

// fakeTx answers every query with the same records.
type fakeTx struct {
	records []*neo4j.Record
	err     error
	cypher  string
	params  map[string]any
}

func (t *fakeTx) Run(_ context.Context, cypher string, params map[string]any) (Result, error) {
	t.cypher, t.params = cypher, params
	if t.err != nil {
		return nil, t.err
	}
	return &fakeResult{records: t.records}, nil
}

type fakeResult struct {
	records []*neo4j.Record
	pos     int
	err     error
}

func (r *fakeResult) Next(context.Context) bool {
	if r.pos >= len(r.records) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeResult) Record() *neo4j.Record { return r.records[r.pos-1] }
func (r *fakeResult) Err() error            { return r.err }

func TestDriver_HealthCheck(t *testing.T) {
	md := new(MockDriver)
	session := &fakeSession{tx: &fakeTx{records: []*neo4j.Record{{Keys: []string{"health"}, Values: []any{int64(1)}}}}}
	md.On("VerifyConnectivity", mock.Anything).Return(nil)
	md.On("NewSession", mock.Anything, neo4j.SessionConfig{DatabaseName: "graph", AccessMode: neo4j.AccessModeRead}).Return(session)

	d := newDriver(md, "graph", nil)
	require.NoError(t, d.HealthCheck(context.Background()))
	assert.True(t, session.closed)
	md.AssertExpectations(t)
}

func TestDriver_HealthCheckUnreachable(t *testing.T) {
	md := new(MockDriver)
	md.On("VerifyConnectivity", mock.Anything).Return(errors.New("dial tcp: refused"))

	err := newDriver(md, "", nil).HealthCheck(context.Background())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeDataSourceUnavailable))
}

func TestDriver_ExecuteReadWrapsFailure(t *testing.T) {
	md := new(MockDriver)
	md.On("NewSession", mock.Anything, mock.Anything).Return(&fakeSession{err: errors.New("syntax error")})

	_, err := newDriver(md, "", nil).ExecuteRead(context.Background(), func(Transaction) (any, error) { return nil, nil })
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeGraphQueryFailed))
}

func TestDriver_DefaultDatabase(t *testing.T) {
	d := newDriver(new(MockDriver), "", nil)
	assert.Equal(t, defaultDatabase, d.database)
}

func TestDriver_CloseOnce(t *testing.T) {
	md := new(MockDriver)
	md.On("Close", mock.Anything).Return(nil).Once()

	d := newDriver(md, "", nil)
	require.NoError(t, d.Close())
	require.NoError(t, d.Close())
	md.AssertNumberOfCalls(t, "Close", 1)
}

func TestCollectRecords_PropagatesResultError(t *testing.T) {
	res := &fakeResult{err: errors.New("stream reset")}
	_, err := CollectRecords(context.Background(), res, func(*neo4j.Record) (int, error) { return 0, nil })
	assert.EqualError(t, err, "stream reset")
}
