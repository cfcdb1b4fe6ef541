package keepalive

import (
	"context"
	"sync"
	"testing"
	"time"

	"StratView/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHeartbeat struct {
	mu    sync.Mutex
	calls int
	out   models.RemoteOutcome
}

func (f *fakeHeartbeat) Heartbeat(context.Context) models.RemoteOutcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.out
}

func (f *fakeHeartbeat) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestPingRecordsTimestamp(t *testing.T) {
	gw := &fakeHeartbeat{out: models.OKOutcome(models.EndpointHeartbeat,
		[]byte(`{"status": "alive", "timestamp": "2024-03-01T12:00:00"}`))}
	p := New(gw, time.Minute, nil, nil)

	require.NoError(t, p.Ping(context.Background()))

	st := p.Status()
	assert.False(t, st.Running)
	assert.True(t, st.LastOK)
	assert.Equal(t, "2024-03-01T12:00:00", st.LastTimestamp)
	assert.Nil(t, st.NextPing)
}

func TestPingFailureKeepsLastTimestamp(t *testing.T) {
	gw := &fakeHeartbeat{out: models.OKOutcome(models.EndpointHeartbeat, []byte(`{"timestamp": 1709294400}`))}
	p := New(gw, time.Minute, nil, nil)
	require.NoError(t, p.Ping(context.Background()))

	gw.out = models.HTTPErrorOutcome(models.EndpointHeartbeat, 503, nil)
	err := p.Ping(context.Background())
	var f *models.Failure
	require.ErrorAs(t, err, &f)
	assert.Equal(t, models.KindServiceUnavailable, f.Kind)

	st := p.Status()
	assert.False(t, st.LastOK)
	assert.Equal(t, "1709294400", st.LastTimestamp)
}

func TestStartPingsImmediatelyAndOnInterval(t *testing.T) {
	gw := &fakeHeartbeat{out: models.OKOutcome(models.EndpointHeartbeat, []byte(`{}`))}
	p := New(gw, 10*time.Millisecond, nil, nil)

	p.Start(context.Background())
	p.Start(context.Background())
	require.Eventually(t, func() bool { return gw.count() >= 3 }, time.Second, time.Millisecond)

	st := p.Status()
	assert.True(t, st.Running)
	require.NotNil(t, st.NextPing)

	p.Stop()
	n := gw.count()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, n, gw.count())
	assert.False(t, p.Status().Running)

	p.Stop()
}
