// Copyright 2026 The PublicBridge Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package llm implements the remote LLM analyzer adapter. It speaks the
// OpenAI chat-completions wire protocol, so any compatible endpoint works by
// pointing BaseURL at it (the default targets Groq's OpenAI-compatible API).
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/Bouric0076/publicbridge-core/internal/analyzer"
)

const analyzerID = "llm-classifier"

// DefaultBaseURL is Groq's OpenAI-compatible endpoint.
const DefaultBaseURL = "https://api.groq.com/openai/v1"

// DefaultModel is the fast classification model.
const DefaultModel = "llama-3.1-8b-instant"

// Config configures the remote adapter. An empty APIKey leaves the adapter
// constructed but unavailable: Health reports it and every Analyze call
// returns a degraded result instead of an error.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
}

// Adapter wraps one remote chat-completions endpoint behind the analyzer
// contract.
type Adapter struct {
	client    openai.Client
	model     string
	available bool
	detail    string
}

// New builds the adapter. It never fails: misconfiguration is reported
// through Health instead.
func New(cfg Config) *Adapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	a := &Adapter{model: cfg.Model}
	if cfg.APIKey == "" {
		a.detail = "api key not configured"
		log.Warn("llm analyzer constructed without an API key, will report unavailable")
		return a
	}
	a.client = openai.NewClient(
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.BaseURL),
	)
	a.available = true
	return a
}

func (a *Adapter) ID() string { return analyzerID }

func (a *Adapter) Axes() []analyzer.Axis {
	return []analyzer.Axis{
		analyzer.AxisCategory,
		analyzer.AxisSentiment,
		analyzer.AxisUrgency,
		analyzer.AxisIntent,
	}
}

func (a *Adapter) Health() analyzer.Health {
	return analyzer.Health{Available: a.available, Detail: a.detail}
}

// Analyze sends the report text for classification and parses the model's
// JSON answer. All transport and parse failures degrade, never raise.
func (a *Adapter) Analyze(ctx context.Context, in analyzer.Input) analyzer.Result {
	return analyzer.Guard(analyzerID, func() analyzer.Result {
		if !a.available {
			return analyzer.DegradedResult(analyzerID, analyzer.ErrAdapterUnavailable)
		}
		in = in.Truncated()

		resp, err := a.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
			Model: openai.ChatModel(a.model),
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.SystemMessage(systemPrompt),
				openai.UserMessage(fmt.Sprintf("CITIZEN REPORT: %q", in.Text)),
			},
			Temperature: openai.Float(0.1),
			MaxTokens:   openai.Int(400),
		})
		if err != nil {
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return analyzer.DegradedResult(analyzerID, analyzer.ErrAdapterTimeout)
			}
			return analyzer.DegradedResult(analyzerID, fmt.Errorf("%w: %v", analyzer.ErrAdapterUnavailable, err))
		}
		if len(resp.Choices) == 0 {
			return analyzer.DegradedResult(analyzerID, errors.New("llm: empty completion"))
		}
		return a.parse(resp.Choices[0].Message.Content)
	})
}

// parse extracts the classification JSON from the completion text. Models
// occasionally wrap the JSON in prose or code fences; gjson tolerates both
// once the payload is isolated.
func (a *Adapter) parse(content string) analyzer.Result {
	payload := extractJSON(content)
	if payload == "" || !gjson.Valid(payload) {
		return analyzer.DegradedResult(analyzerID, errors.New("llm: no valid JSON in completion"))
	}

	category := analyzer.ParseCategory(gjson.Get(payload, "category").String())
	confidence := analyzer.Clamp01(gjson.Get(payload, "confidence").Float())
	urgency := analyzer.ParseUrgency(gjson.Get(payload, "urgency_level").String())
	sentiment := strings.ToLower(gjson.Get(payload, "sentiment").String())
	if sentiment != string(analyzer.SentimentPositive) && sentiment != string(analyzer.SentimentNegative) {
		sentiment = string(analyzer.SentimentNeutral)
	}
	intent := strings.ToLower(gjson.Get(payload, "intent").String())
	if intent == "" {
		intent = analyzer.IntentGeneral
	}

	urgencyScore := analyzer.Clamp01(gjson.Get(payload, "urgency_score").Float())
	if urgencyScore == 0 {
		urgencyScore = defaultUrgencyScore(urgency)
	}

	var keywords []string
	for _, k := range gjson.Get(payload, "keywords_found").Array() {
		if s := k.String(); s != "" {
			keywords = append(keywords, s)
		}
	}

	return analyzer.Result{
		AnalyzerID: analyzerID,
		Confidence: confidence,
		Scores: map[analyzer.Axis]map[string]float64{
			analyzer.AxisCategory:  {string(category): confidence},
			analyzer.AxisSentiment: {sentiment: confidence},
			analyzer.AxisUrgency:   {string(urgency): urgencyScore},
			analyzer.AxisIntent:    {intent: confidence},
		},
		Metrics: map[string]float64{
			"urgency_score":       urgencyScore,
			"emotional_intensity": analyzer.Clamp01(gjson.Get(payload, "emotional_intensity").Float()),
		},
		Keywords: keywords,
	}
}

func defaultUrgencyScore(u analyzer.Urgency) float64 {
	switch u {
	case analyzer.UrgencyCritical:
		return 0.95
	case analyzer.UrgencyHigh:
		return 0.75
	case analyzer.UrgencyLow:
		return 0.25
	default:
		return 0.5
	}
}

// extractJSON isolates the outermost JSON object in a completion.
func extractJSON(content string) string {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return ""
	}
	return content[start : end+1]
}

const systemPrompt = `You are a civic engagement assistant that classifies citizen reports for county governments.

Categories: infrastructure (roads, bridges, public facilities), healthcare (hospitals, clinics, health issues), public_safety (police, fire, crime), education (schools, universities), environment (pollution, waste), corruption (bribery, fraud, misconduct), transportation (transit, traffic), utilities (water, electricity, internet), government_services (permits, documents), emergency (disasters, urgent crises), general (anything else).

Respond ONLY with valid JSON in exactly this format:
{"category": "category_name", "confidence": 0.95, "urgency_level": "low|medium|high|critical", "urgency_score": 0.8, "sentiment": "positive|negative|neutral", "emotional_intensity": 0.4, "intent": "greeting|report_help|status_inquiry|civic_info|complaint|emergency|appreciation|goodbye|general", "keywords_found": ["keyword1", "keyword2"]}`
