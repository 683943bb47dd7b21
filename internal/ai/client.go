package ai

import (
	"context"
	"strings"

	"cloud.google.com/go/vertexai/genai"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

const counterSystemPrompt = "You are an HTML analysis tool. You count anchor (<a>) elements in the HTML you are given. You must output your response as a single JSON object and nothing else."

const counterUserPrompt = `Count every anchor tag (<a ...>...</a>) in the HTML document below.

Rules:
1. Count opening <a> tags, with or without attributes, regardless of nesting or letter case.
2. Do not count <abbr>, <area>, <audio> or any other tag that merely starts with "a".
3. Respond ONLY with a JSON object of the form {"count": <integer>}. Do not include any text before or after it.

HTML:
`

const plannerSystemPrompt = "You are an internal-linking assistant for web content editors. You propose where links to other pages should be placed in an article. You must output your response as a single JSON object and nothing else."

const plannerUserPrompt = `You are given the main content of an article followed by a list of candidate destination URLs.

Propose a link plan. For each link you recommend:
- "anchor_text": the exact phrase from the content that should become the link.
- "destination_url": one of the candidate URLs, verbatim.
- "type": "internal" or "external".
- "suggested_context": the sentence the anchor text appears in.
- "confidence_score": a number between 0 and 1.

Respond ONLY with a JSON object of the form {"plan": [ ... ]}. Use an empty array if no link fits.
`

// generator is satisfied by *genai.GenerativeModel.
type generator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// Client holds the pre-configured generative models used by the service.
type Client struct {
	counter generator
	planner generator
	log     *zap.Logger
}

// NewGenAIClient dials Vertex AI with an API key. The caller owns Close.
func NewGenAIClient(ctx context.Context, project, location, apiKey string) (*genai.Client, error) {
	if apiKey == "" {
		return nil, errors.New("genai: api key must be provided")
	}
	if project == "" || location == "" {
		return nil, errors.New("genai: project and location must be provided")
	}
	c, err := genai.NewClient(ctx, project, location, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, errors.Wrap(err, "genai.NewClient")
	}
	return c, nil
}

// New configures the counter and planner models on base.
func New(base *genai.Client, model string, log *zap.Logger) *Client {
	return &Client{
		counter: configure(base.GenerativeModel(model), counterSystemPrompt),
		planner: configure(base.GenerativeModel(model), plannerSystemPrompt),
		log:     log,
	}
}

func configure(m *genai.GenerativeModel, system string) *genai.GenerativeModel {
	m.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(system)},
	}
	m.GenerationConfig = genai.GenerationConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0.0),
	}
	m.SafetySettings = []*genai.SafetySetting{
		{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockOnlyHigh},
		{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockOnlyHigh},
		{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockOnlyHigh},
		{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockOnlyHigh},
	}
	return m
}

// CountAnchors asks the counter model how many anchor tags html contains.
func (c *Client) CountAnchors(ctx context.Context, html string) (CountResult, error) {
	raw, err := c.generate(ctx, c.counter, counterUserPrompt+html)
	if err != nil {
		return CountResult{}, err
	}
	res, err := ParseCount(raw)
	if err != nil {
		c.log.Warn("ai.count.parse_error", zap.Error(err), zap.Int("raw_len", len(raw)))
		return CountResult{}, err
	}
	c.log.Debug("ai.count.done", zap.Int("count", res.Count))
	return res, nil
}

// PlanLinks asks the planner model where links to urls belong in content.
func (c *Client) PlanLinks(ctx context.Context, content string, urls []string) (PlanResult, error) {
	var b strings.Builder
	b.WriteString(plannerUserPrompt)
	b.WriteString("\nMain content:\n")
	b.WriteString(content)
	b.WriteString("\n\nCandidate URLs:\n")
	for _, u := range urls {
		b.WriteString("- ")
		b.WriteString(u)
		b.WriteByte('\n')
	}

	raw, err := c.generate(ctx, c.planner, b.String())
	if err != nil {
		return PlanResult{}, err
	}
	res, err := ParsePlan(raw)
	if err != nil {
		c.log.Warn("ai.plan.parse_error", zap.Error(err), zap.Int("raw_len", len(raw)))
		return PlanResult{}, err
	}
	c.log.Debug("ai.plan.done", zap.Int("items", len(res.Plan)))
	return res, nil
}

func (c *Client) generate(ctx context.Context, m generator, prompt string) (string, error) {
	resp, err := m.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", errors.Wrap(err, "generate content")
	}
	text := responseText(resp)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// responseText concatenates the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	return strings.TrimSpace(b.String())
}
