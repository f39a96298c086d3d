package webhook

import "testing"

func TestClassifyExplicitEventWins(t *testing.T) {
	t.Parallel()

	cases := []struct {
		event string
		want  EventKind
	}{
		{"message", EventMessage},
		{"group.message", EventGroupMessage},
		{"message.ack", EventReceipt},
		{"group.participants", EventGroupParticipants},
		{"something.else", EventUnknown},
	}
	for _, tc := range cases {
		p := &Payload{Event: tc.event, From: "12036@g.us"}
		if got := Classify(p); got != tc.want {
			t.Errorf("Classify(event=%q) = %q, want %q", tc.event, got, tc.want)
		}
	}
}

func TestClassifyInfersFromIdentifierSuffix(t *testing.T) {
	t.Parallel()

	cases := []struct {
		from string
		want EventKind
	}{
		{"5551234@s.whatsapp.net", EventMessage},
		{"123456789-987654@g.us", EventGroupMessage},
		{"777@newsletter", EventUnknown},
		{"", EventMessage},
		{"5551234", EventMessage},
	}
	for _, tc := range cases {
		p := &Payload{From: tc.from}
		if got := Classify(p); got != tc.want {
			t.Errorf("Classify(from=%q) = %q, want %q", tc.from, got, tc.want)
		}
	}
}

func TestClassifyInfersGroupFromRoutingAnnotation(t *testing.T) {
	t.Parallel()

	p := &Payload{From: "5551234@s.whatsapp.net in 123456789-987654@g.us"}
	if got := Classify(p); got != EventGroupMessage {
		t.Fatalf("Classify = %q, want group.message", got)
	}
}

func TestClassifyNilPayload(t *testing.T) {
	t.Parallel()

	if got := Classify(nil); got != EventUnknown {
		t.Fatalf("Classify(nil) = %q", got)
	}
}
