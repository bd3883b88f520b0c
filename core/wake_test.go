package assistant

import "testing"

func TestWakeMatcher(t *testing.T) {
	tests := []struct {
		text    string
		wake    bool
		command string
	}{
		{text: "hey pixel", wake: true},
		{text: "Hey Pixel.", wake: true},
		{text: "hey pixel what time is it", wake: true, command: "what time is it"},
		{text: "Hey, Pixel! Open YouTube.", wake: true, command: "Open YouTube."},
		{text: "so I said ok pixel tell me a joke", wake: true, command: "tell me a joke"},
		{text: "Okay Pixel, what's the time?", wake: true, command: "what's the time?"},
		{text: "Pixel, volume up", wake: true, command: "volume up"},
		{text: "pixel", wake: true},
		{text: "hey pixels are tiny", wake: true, command: "are tiny"},
		{text: "they pixel volume up", wake: true, command: "volume up"},
		{text: "my pixel phone", wake: false},
		{text: "hello there", wake: false},
		{text: "", wake: false},
		{text: "?!", wake: false},
	}

	matcher := NewWakeMatcher()
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			command, ok := matcher.Match(tt.text)
			if ok != tt.wake {
				t.Fatalf("expected wake=%v, got %v", tt.wake, ok)
			}
			if command != tt.command {
				t.Fatalf("expected inline command %q, got %q", tt.command, command)
			}
		})
	}
}

func TestWakeMatcherCustomPhrase(t *testing.T) {
	matcher := NewWakeMatcher("Hello Computer")

	if command, ok := matcher.Match("hello computer, open site"); !ok || command != "open site" {
		t.Fatalf("expected custom phrase to match, got %q, %v", command, ok)
	}
	if command, ok := matcher.Match("computer lights"); !ok || command != "lights" {
		t.Fatalf("expected bare keyword to match, got %q, %v", command, ok)
	}
	if _, ok := matcher.Match("hey pixel"); ok {
		t.Fatalf("expected default phrases to be replaced")
	}
}
