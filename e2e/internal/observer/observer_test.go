package observer

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordAndLatest(t *testing.T) {
	obs := NewObserver("tcp://unused:1883", "", nil)

	obs.Record("curator/profile/stale/u-1", 0, []byte(`{"record_id":"a"}`))
	obs.Record("curator/profile/stale/u-2", 0, []byte(`{"record_id":"b"}`))
	obs.Record("curator/profile/stale/u-1", 0, []byte(`{"record_id":"c"}`))

	latest := obs.Latest("curator/profile/stale/u-1")
	require.NotNil(t, latest)
	assert.JSONEq(t, `{"record_id":"c"}`, string(latest.Payload))

	assert.Len(t, obs.MessagesByTopic("curator/profile/stale/u-1"), 2)
	assert.Nil(t, obs.Latest("curator/profile/stale/u-3"))
	assert.Equal(t, 3, obs.Count())
}

func TestRecordKeepsNonJSONAsString(t *testing.T) {
	obs := NewObserver("tcp://unused:1883", "", nil)
	obs.Record("curator/raw", 0, []byte("not json"))

	var s string
	require.NoError(t, json.Unmarshal(obs.Latest("curator/raw").Payload, &s))
	assert.Equal(t, "not json", s)
}

func TestSaveCapture(t *testing.T) {
	obs := NewObserver("tcp://unused:1883", "", nil)
	obs.Record("curator/interaction/u-1", 1, []byte(`{"kind":"product_view"}`))

	path := filepath.Join(t.TempDir(), "out", "capture.json")
	require.NoError(t, obs.SaveCapture(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var captured []CapturedMessage
	require.NoError(t, json.Unmarshal(data, &captured))
	require.Len(t, captured, 1)
	assert.Equal(t, "curator/interaction/u-1", captured[0].Topic)
	assert.Equal(t, byte(1), captured[0].QoS)
}
