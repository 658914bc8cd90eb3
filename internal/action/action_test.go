package action

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"trustcore/pkg/errors"
)

func TestList_UnmarshalJSON(t *testing.T) {
	t.Run("single descriptor", func(t *testing.T) {
		var l List
		require.NoError(t, json.Unmarshal([]byte(`{"type":"anchor","eventHash":"abc"}`), &l))
		require.Len(t, l, 1)
		assert.Equal(t, &AnchorAction{EventHash: "abc"}, l[0])
	})

	t.Run("array with unknown type", func(t *testing.T) {
		var l List
		data := `[
			{"type":"webhook","url":"https://hooks.example.com/a","encryption":{"enabled":true}},
			{"type":"teleport","destination":"mars"}
		]`
		require.NoError(t, json.Unmarshal([]byte(data), &l))
		require.Len(t, l, 2)

		hook, ok := l[0].(*WebhookAction)
		require.True(t, ok)
		assert.Equal(t, EnvelopeObfuscation, hook.EnvelopeKind())

		unknown, ok := l[1].(*UnknownAction)
		require.True(t, ok)
		assert.Equal(t, Type("teleport"), unknown.Type())

		out, err := json.Marshal(l)
		require.NoError(t, err)
		assert.Contains(t, string(out), `"type":"teleport"`)
		assert.Contains(t, string(out), `"destination":"mars"`)
	})

	t.Run("invalid entry", func(t *testing.T) {
		var l List
		err := json.Unmarshal([]byte(`[{"type":"ledger_allocate","allocations":"nope"}]`), &l)
		assert.ErrorContains(t, err, "action[0]")
	})
}

func TestList_UnmarshalYAML(t *testing.T) {
	doc := `
- type: ledger_allocate
  ledgerEventId: evt-1
  allocations:
    - bucket: ops
      percent: 60
    - bucket: reserve
      percent: 40
- type: plugin_emit
  pluginId: notifier
  eventType: trust.flagged
`
	var l List
	require.NoError(t, yaml.Unmarshal([]byte(doc), &l))
	require.Len(t, l, 2)

	alloc := l[0].(*LedgerAllocateAction)
	assert.Equal(t, "evt-1", alloc.LedgerEventID)
	assert.NoError(t, Validate(alloc))
	assert.Equal(t, TypePluginEmit, l[1].Type())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		action  Action
		wantErr string
	}{
		{name: "relative webhook url", action: &WebhookAction{URL: "/hook"}, wantErr: "absolute"},
		{name: "bad envelope", action: &WebhookAction{URL: "https://x.example", Envelope: "rot13"}, wantErr: "unsupported webhook envelope"},
		{name: "plugin without event type", action: &PluginEmitAction{PluginID: "p"}, wantErr: "pluginId and eventType"},
		{name: "empty bucket", action: &LedgerAllocateAction{LedgerEventID: "e", Allocations: []AllocationSpec{{Percent: 100}}}, wantErr: "bucket"},
		{name: "nil", action: nil, wantErr: "required"},
		{name: "object hash", action: &AnchorAction{EventHash: map[string]interface{}{"a": 1}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.action)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, errors.Message(err), tt.wantErr)
		})
	}
}
