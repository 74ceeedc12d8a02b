package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"ictbacktest/models"
)

// OpenAIOracle asks a chat model to evaluate the window. Same contract as
// the rule oracle, but slow and non-deterministic; the orchestrator
// treats its failures as per-point NO_TRADE.
type OpenAIOracle struct {
	client *openai.Client
	model  string
	logger zerolog.Logger
}

// NewOpenAIOracle creates an oracle backed by the OpenAI chat API.
func NewOpenAIOracle(apiKey, model string) *OpenAIOracle {
	if model == "" {
		model = openai.GPT4o
	}
	return &OpenAIOracle{
		client: openai.NewClient(apiKey),
		model:  model,
		logger: log.With().Str("component", "openai_oracle").Logger(),
	}
}

func (o *OpenAIOracle) Name() string { return "openai" }

// aiDecision is the JSON shape the model is instructed to answer with.
type aiDecision struct {
	Decision   string  `json:"decision"`
	Score      float64 `json:"score"`
	Confidence float64 `json:"confidence"`
	Trade      *struct {
		Kind        string  `json:"kind"`
		Entry       float64 `json:"entry"`
		StopLoss    float64 `json:"stop_loss"`
		TakeProfit1 float64 `json:"take_profit_1"`
		TakeProfit2 float64 `json:"take_profit_2"`
		TakeProfit3 float64 `json:"take_profit_3"`
	} `json:"trade,omitempty"`
	Reasoning string `json:"reasoning"`
}

// Evaluate implements models.StrategyOracle.
func (o *OpenAIOracle) Evaluate(ctx context.Context, w models.WindowContext) (*models.OracleDecision, error) {
	prompt, err := buildPrompt(w)
	if err != nil {
		return nil, fmt.Errorf("%w: building prompt: %v", models.ErrOracle, err)
	}

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrOracle, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: empty completion", models.ErrOracle)
	}

	var parsed aiDecision
	content := resp.Choices[0].Message.Content
	if err := json.Unmarshal([]byte(extractJSON(content)), &parsed); err != nil {
		o.logger.Error().Err(err).Str("content", content).Msg("unparseable oracle answer")
		return nil, fmt.Errorf("%w: parsing answer: %v", models.ErrOracle, err)
	}

	return mapDecision(parsed), nil
}

const systemPrompt = `You are a price-action analyst following ICT concepts
(order blocks, fair value gaps, liquidity sweeps, structure breaks).
Given the structural context of a chart, answer with a single JSON object:
{"decision":"PLACE_PENDING"|"NO_TRADE","score":0-10,"confidence":0-100,
"trade":{"kind":"BUY_LIMIT"|"SELL_LIMIT"|"BUY_STOP"|"SELL_STOP",
"entry":0,"stop_loss":0,"take_profit_1":0,"take_profit_2":0,
"take_profit_3":0},"reasoning":"..."}.
Omit "trade" when the decision is NO_TRADE.`

// buildPrompt serializes the window context for the model: current price,
// session and the detected structure, plus the trailing candles.
func buildPrompt(w models.WindowContext) (string, error) {
	structure, err := json.Marshal(w.Structure)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Symbol: %s\nTime: %s\nSession: %s\nCurrent price: %.5f\n\n",
		w.Symbol, w.Time.UTC().Format("2006-01-02 15:04"), w.Session, w.CurrentPrice)
	sb.WriteString("Detected structure:\n")
	sb.Write(structure)
	sb.WriteString("\n\nRecent H1 candles (time open high low close):\n")
	start := len(w.H1) - 30
	if start < 0 {
		start = 0
	}
	for _, c := range w.H1[start:] {
		fmt.Fprintf(&sb, "%s %.5f %.5f %.5f %.5f\n",
			c.Time.UTC().Format("01-02 15:04"), c.Open, c.High, c.Low, c.Close)
	}
	return sb.String(), nil
}

// extractJSON strips markdown fences the model sometimes wraps around the
// object.
func extractJSON(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, "{"); i >= 0 {
		if j := strings.LastIndex(s, "}"); j > i {
			return s[i : j+1]
		}
	}
	return s
}

func mapDecision(in aiDecision) *models.OracleDecision {
	out := &models.OracleDecision{
		Decision:   models.DecisionNoTrade,
		Score:      clamp(in.Score, 0, 10),
		Confidence: clamp(in.Confidence, 0, 100),
		Reasoning:  in.Reasoning,
	}
	if in.Decision != string(models.DecisionPlacePending) || in.Trade == nil {
		return out
	}
	out.Decision = models.DecisionPlacePending
	out.SuggestedTrade = &models.SuggestedTrade{
		Kind:        models.TradeKind(in.Trade.Kind),
		Entry:       in.Trade.Entry,
		StopLoss:    in.Trade.StopLoss,
		TakeProfit1: in.Trade.TakeProfit1,
		TakeProfit2: in.Trade.TakeProfit2,
		TakeProfit3: in.Trade.TakeProfit3,
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
