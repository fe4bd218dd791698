package telephony

import (
	"strings"
	"testing"
)

func TestRenderCallScript_EchoesRequest(t *testing.T) {
	xml, err := RenderCallScript(ScriptParams{
		MedicationName: "Lisinopril",
		Dosage:         "10mg",
		Quantity:       "30 tablets",
	}, "https://agent.example.com/webhooks/voice")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	for _, want := range []string{
		"Lisinopril",
		"10mg",
		"30 tablets",
		"<Record",
		`transcribe="true"`,
		"/webhooks/voice/transcription",
		"/webhooks/voice/response",
	} {
		if !strings.Contains(xml, want) {
			t.Fatalf("expected %q in script:\n%s", want, xml)
		}
	}
}

func TestRenderCallScript_OmitsUnsetFields(t *testing.T) {
	xml, err := RenderCallScript(ScriptParams{MedicationName: "Aspirin"}, "http://localhost/webhooks/voice")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if strings.Contains(xml, "dosage required") {
		t.Fatalf("dosage line should be omitted when unset:\n%s", xml)
	}
	if strings.Contains(xml, "quantity needed") {
		t.Fatalf("quantity line should be omitted when unset:\n%s", xml)
	}
}

func TestRenderCallScript_DefaultsMedicationName(t *testing.T) {
	xml, err := RenderCallScript(ScriptParams{}, "http://localhost/webhooks/voice")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !strings.Contains(xml, "the requested medication") {
		t.Fatalf("expected fallback medication phrase:\n%s", xml)
	}
}

func TestRenderResponseAck(t *testing.T) {
	xml, err := RenderResponseAck()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !strings.Contains(xml, "<Hangup") {
		t.Fatalf("expected hangup verb:\n%s", xml)
	}
}
