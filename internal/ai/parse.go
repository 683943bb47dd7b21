package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

var ErrEmptyResponse = errors.New("model returned no text")

// ParseError carries the raw model output that could not be accepted.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string { return fmt.Sprintf("parse model output: %v", e.Err) }
func (e *ParseError) Unwrap() error { return e.Err }

type CountResult struct {
	Count int `json:"count"`
}

type LinkPlanItem struct {
	AnchorText       string  `json:"anchor_text"`
	DestinationURL   string  `json:"destination_url"`
	Type             string  `json:"type"`
	SuggestedContext string  `json:"suggested_context"`
	ConfidenceScore  float64 `json:"confidence_score"`
}

type PlanResult struct {
	Plan []LinkPlanItem `json:"plan"`
}

var countSchema = jsonschema.MustCompileString("count.json", `{
  "type": "object",
  "required": ["count"],
  "properties": {
    "count": {"type": "integer", "minimum": 0}
  }
}`)

var planSchema = jsonschema.MustCompileString("plan.json", `{
  "type": "object",
  "required": ["plan"],
  "properties": {
    "plan": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["anchor_text", "destination_url"],
        "properties": {
          "anchor_text": {"type": "string"},
          "destination_url": {"type": "string"},
          "type": {"type": "string"},
          "suggested_context": {"type": "string"},
          "confidence_score": {"type": "number"}
        }
      }
    }
  }
}`)

// StripCodeFence removes a surrounding Markdown code fence (``` or ```json)
// from model output.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// drop the info string, e.g. "json"
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func ParseCount(raw string) (CountResult, error) {
	var res CountResult
	if err := decode(raw, countSchema, &res); err != nil {
		return CountResult{}, err
	}
	return res, nil
}

func ParsePlan(raw string) (PlanResult, error) {
	var res PlanResult
	if err := decode(raw, planSchema, &res); err != nil {
		return PlanResult{}, err
	}
	return res, nil
}

func decode(raw string, schema *jsonschema.Schema, dst any) error {
	body := StripCodeFence(raw)

	var v any
	if err := json.Unmarshal([]byte(body), &v); err != nil {
		return &ParseError{Raw: raw, Err: errors.Wrap(err, "invalid json")}
	}
	if err := schema.Validate(v); err != nil {
		return &ParseError{Raw: raw, Err: errors.Wrap(err, "unexpected shape")}
	}
	if err := json.Unmarshal([]byte(body), dst); err != nil {
		return &ParseError{Raw: raw, Err: errors.Wrap(err, "decode")}
	}
	return nil
}
