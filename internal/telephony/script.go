package telephony

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"
)

// Voice-script (TwiML) builder over typed ScriptParams.
// It intentionally avoids any provider SDK dependency; only the verbs the
// call flow needs are modeled.

type scriptResponse struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any    `xml:",any"`
}

type scriptSay struct {
	XMLName  xml.Name `xml:"Say"`
	Voice    string   `xml:"voice,attr,omitempty"`
	Language string   `xml:"language,attr,omitempty"`
	Text     string   `xml:",chardata"`
}

type scriptRecord struct {
	XMLName            xml.Name `xml:"Record"`
	TimeoutSeconds     int      `xml:"timeout,attr"`
	FinishOnKey        string   `xml:"finishOnKey,attr,omitempty"`
	Action             string   `xml:"action,attr,omitempty"`
	Method             string   `xml:"method,attr,omitempty"`
	Transcribe         bool     `xml:"transcribe,attr"`
	TranscribeCallback string   `xml:"transcribeCallback,attr,omitempty"`
}

type scriptHangup struct {
	XMLName xml.Name `xml:"Hangup"`
}

const (
	scriptVoice    = "alice"
	scriptLanguage = "en-US"

	recordTimeoutSeconds = 30
)

// RenderCallScript produces the scripted-dialogue document spoken to the
// pharmacy: the availability question parameterized by the request, a
// recorded reply with transcription, and a closing line.
func RenderCallScript(p ScriptParams, callbackBase string) (string, error) {
	name := strings.TrimSpace(p.MedicationName)
	if name == "" {
		name = "the requested medication"
	}

	var q strings.Builder
	fmt.Fprintf(&q, "Hello, I'm calling on behalf of a patient to check medication availability. ")
	fmt.Fprintf(&q, "I need to verify if you have %s in stock. ", name)
	if p.Dosage != "" {
		fmt.Fprintf(&q, "The dosage required is %s. ", p.Dosage)
	}
	if p.Quantity != "" {
		fmt.Fprintf(&q, "The quantity needed is %s. ", p.Quantity)
	}
	q.WriteString("Can you please check your inventory and let me know the availability?")

	r := scriptResponse{Verbs: []any{
		scriptSay{Voice: scriptVoice, Language: scriptLanguage, Text: q.String()},
		scriptRecord{
			TimeoutSeconds:     recordTimeoutSeconds,
			FinishOnKey:        "#",
			Action:             callbackBase + "/response",
			Method:             "POST",
			Transcribe:         true,
			TranscribeCallback: callbackBase + "/transcription",
		},
		scriptSay{
			Voice:    scriptVoice,
			Language: scriptLanguage,
			Text: "Thank you for your time. If you need to provide additional information, " +
				"please call us back at the number that appeared on your caller ID.",
		},
	}}
	return renderScript(r)
}

// RenderResponseAck is returned after the pharmacy's reply has been
// recorded: a short acknowledgement, then hang up.
func RenderResponseAck() (string, error) {
	r := scriptResponse{Verbs: []any{
		scriptSay{
			Voice:    scriptVoice,
			Language: scriptLanguage,
			Text: "Thank you for the information. We have recorded your response and will " +
				"follow up if needed. Have a great day!",
		},
		scriptHangup{},
	}}
	return renderScript(r)
}

func renderScript(r scriptResponse) (string, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(r); err != nil {
		return "", err
	}
	if err := enc.Flush(); err != nil {
		return "", err
	}
	return buf.String(), nil
}
