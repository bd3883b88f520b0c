package events

import (
	"encoding/json"
	"testing"
)

func TestConstructorsEmitExpectedKinds(t *testing.T) {
	testCases := []struct {
		name     string
		event    Event
		expected Kind
	}{
		{name: "state changed", event: NewStateChanged("idle", "wake_detected"), expected: KindStateChanged},
		{name: "wake detected", event: NewWakeDetected("hey pixel", ""), expected: KindWakeDetected},
		{name: "command processed", event: NewCommandProcessed("typed", "volume up", "handled_locally"), expected: KindCommandProcessed},
		{name: "speech queued", event: NewSpeechQueued("1", "YES?"), expected: KindSpeechQueued},
		{name: "speech spoken", event: NewSpeechSpoken("1", "YES?"), expected: KindSpeechSpoken},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			if got := testCase.event.Kind(); got != testCase.expected {
				t.Fatalf("expected kind %q, got %q", testCase.expected, got)
			}
			if testCase.event.Timestamp().IsZero() {
				t.Fatalf("expected timestamp to be set")
			}
		})
	}
}

func TestMarshalWrapsEventInEnvelope(t *testing.T) {
	data, err := Marshal(NewStateChanged("idle", "suspended"))
	if err != nil {
		t.Fatalf("expected event to marshal, got %v", err)
	}

	var decoded struct {
		Kind string `json:"kind"`
		At   string `json:"at"`
		Data struct {
			From string `json:"from"`
			To   string `json:"to"`
		} `json:"data"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("expected valid JSON, got %v", err)
	}
	if decoded.Kind != string(KindStateChanged) || decoded.At == "" {
		t.Fatalf("expected kind and time in envelope, got %s", data)
	}
	if decoded.Data.From != "idle" || decoded.Data.To != "suspended" {
		t.Fatalf("expected transition fields under data, got %s", data)
	}
}
