package protocol_test

import (
	"encoding/json"
	"testing"

	"tycoon.ai/internal/protocol"
)

func TestSchemas_ValidateSamples(t *testing.T) {
	stateSchema, err := protocol.Schema("state.schema.json")
	if err != nil {
		t.Fatalf("compile state: %v", err)
	}

	var state any
	_ = json.Unmarshal([]byte(`{
	  "type":"STATE",
	  "protocol_version":"1.0",
	  "tick":12,
	  "server_time_ms":1735689600000,
	  "money":1500,
	  "money_text":"$1.50k",
	  "offline_earnings":0,
	  "businesses":[{"id":"business-0","amount":1,"is_working":true,"progress":42.5}],
	  "managers":[{"id":"manager-0","business_id":"business-0","is_unlocked":false}]
	}`), &state)
	if err := stateSchema.Validate(state); err != nil {
		t.Fatalf("validate state: %v", err)
	}

	good := []string{
		`{"type":"ACT","protocol_version":"1.0","action":"UNLOCK","business_id":"business-1"}`,
		`{"type":"ACT","protocol_version":"1.0","id":"a1","action":"UPGRADE","business_id":"business-0","step":1}`,
		`{"type":"ACT","protocol_version":"1.0","action":"HIRE_MANAGER","manager_id":"manager-0"}`,
		`{"type":"ACT","protocol_version":"1.0","action":"COLLECT_OFFLINE"}`,
	}
	for _, s := range good {
		if err := protocol.ValidateAct([]byte(s)); err != nil {
			t.Fatalf("expected valid %s: %v", s, err)
		}
	}

	bad := []string{
		`{"type":"ACT","protocol_version":"1.0","action":"SELL"}`,
		`{"type":"ACT","protocol_version":"1.0","action":"UNLOCK"}`,
		`{"type":"ACT","protocol_version":"1.0","action":"HIRE_MANAGER","business_id":"business-0"}`,
		`{"type":"ACT","protocol_version":"1.0","action":"UPGRADE","business_id":"b","step":0}`,
		`{"type":"HELLO","protocol_version":"1.0","action":"UNLOCK","business_id":"b"}`,
		`not json`,
	}
	for _, s := range bad {
		if err := protocol.ValidateAct([]byte(s)); err == nil {
			t.Fatalf("expected invalid: %s", s)
		}
	}
}
