package statsd_test

import (
	"errors"
	"testing"
	"time"

	"github.com/goto/salt/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/catalystcommunity/wsprobe/pkg/statsd"
)

type call struct {
	kind  string
	name  string
	tags  []string
	rate  float64
	value time.Duration
}

type fakeClient struct {
	calls  []call
	err    error
	closed bool
}

func (f *fakeClient) Incr(name string, tags []string, rate float64) error {
	f.calls = append(f.calls, call{kind: "incr", name: name, tags: tags, rate: rate})
	return f.err
}

func (f *fakeClient) Timing(name string, value time.Duration, tags []string, rate float64) error {
	f.calls = append(f.calls, call{kind: "timing", name: name, tags: tags, rate: rate, value: value})
	return f.err
}

func (f *fakeClient) Close() error {
	f.closed = true
	return nil
}

func TestReporter(t *testing.T) {
	t.Run("influx tag format", func(t *testing.T) {
		client := &fakeClient{}
		cfg := statsd.Config{SamplingRate: 1, WithInfluxTagFormat: true}
		reporter := statsd.NewWithClient(log.NewNoop(), cfg, client)

		reporter.Incr("probe").Tag("outcome", "echo_wrapped").Success().Publish()

		require.Len(t, client.calls, 1)
		assert.Equal(t, call{kind: "incr", name: "probe,outcome=echo_wrapped,success=true", rate: 1}, client.calls[0])
	})

	t.Run("datadog tag format", func(t *testing.T) {
		client := &fakeClient{}
		cfg := statsd.Config{SamplingRate: 0.5}
		reporter := statsd.NewWithClient(log.NewNoop(), cfg, client)

		reporter.Timing("probe.duration", 250*time.Millisecond).Tag("outcome", "timeout").Failure().Publish()

		require.Len(t, client.calls, 1)
		assert.Equal(t, call{
			kind:  "timing",
			name:  "probe.duration",
			tags:  []string{"outcome:timeout", "success:false"},
			rate:  0.5,
			value: 250 * time.Millisecond,
		}, client.calls[0])
	})

	t.Run("publish error is swallowed", func(t *testing.T) {
		client := &fakeClient{err: errors.New("network down")}
		reporter := statsd.NewWithClient(log.NewNoop(), statsd.Config{}, client)

		assert.NotPanics(t, func() {
			reporter.Incr("probe").Publish()
		})
		assert.Len(t, client.calls, 1)
	})

	t.Run("close closes client", func(t *testing.T) {
		client := &fakeClient{}
		statsd.NewWithClient(log.NewNoop(), statsd.Config{}, client).Close()
		assert.True(t, client.closed)
	})
}

func TestDisabledReporter(t *testing.T) {
	reporter, err := statsd.Init(log.NewNoop(), statsd.Config{Enabled: false})
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		reporter.Incr("probe").Tag("outcome", "plain_text").Publish()
		reporter.Timing("probe.duration", time.Second).Publish()
		reporter.Close()
	})
}

func TestNilReporter(t *testing.T) {
	var reporter *statsd.Reporter

	assert.NotPanics(t, func() {
		reporter.Incr("probe").Tag("outcome", "timeout").Success().Publish()
		reporter.Close()
	})
}
