package ai

import (
	"testing"

	"github.com/pkg/errors"
)

func TestStripCodeFence(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"json fence", "```json\n{\"count\":2}\n```", `{"count":2}`},
		{"bare fence", "```\n{\"count\":2}\n```", `{"count":2}`},
		{"single line fence", "```json {\"count\":2}```", `{"count":2}`},
		{"no fence", "  {\"count\":2}\n", `{"count":2}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripCodeFence(tt.in); got != tt.want {
				t.Errorf("StripCodeFence(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseCountFenced(t *testing.T) {
	res, err := ParseCount("```json\n{\"count\":2}\n```")
	if err != nil {
		t.Fatalf("ParseCount: %v", err)
	}
	if res.Count != 2 {
		t.Errorf("Count = %d, want 2", res.Count)
	}
}

func TestParseCountRejects(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", "There are two links."},
		{"missing count", `{"links": 2}`},
		{"negative", `{"count": -1}`},
		{"fractional", `{"count": 1.5}`},
		{"string count", `{"count": "2"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCount(tt.raw)
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("got %v, want *ParseError", err)
			}
			if pe.Raw != tt.raw {
				t.Errorf("Raw = %q, want %q", pe.Raw, tt.raw)
			}
		})
	}
}

func TestParsePlan(t *testing.T) {
	raw := "```json\n" + `{"plan":[{"anchor_text":"queues","destination_url":"https://example.com/queues","type":"internal","suggested_context":"Job queues decouple work.","confidence_score":0.82}]}` + "\n```"

	res, err := ParsePlan(raw)
	if err != nil {
		t.Fatalf("ParsePlan: %v", err)
	}
	if len(res.Plan) != 1 {
		t.Fatalf("len(Plan) = %d", len(res.Plan))
	}
	item := res.Plan[0]
	if item.AnchorText != "queues" || item.DestinationURL != "https://example.com/queues" || item.ConfidenceScore != 0.82 {
		t.Errorf("unexpected item %+v", item)
	}
}

func TestParsePlanRequiresPlan(t *testing.T) {
	if _, err := ParsePlan(`{"links":[]}`); err == nil {
		t.Fatal("expected error for missing plan")
	}
	if _, err := ParsePlan(`{"plan":[{"type":"internal"}]}`); err == nil {
		t.Fatal("expected error for item without anchor_text")
	}
}
