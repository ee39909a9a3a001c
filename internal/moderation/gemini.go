package moderation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

// Reasons recorded when the classifier answers but the answer is unusable.
const (
	reasonInconclusive   = "AI moderation inconclusive - needs manual review"
	reasonInvalidVerdict = "Invalid AI response - needs manual review"
)

const policyPrompt = `You are an AI moderator for an Indian college (NIT Hamirpur) anonymous confession platform called "ZeroVerse". Your task is to classify confessions using a Traffic Light system.

CONTEXT:
- This is a college community platform for students
- Users can speak in Hinglish (Hindi written in English like "yaar", "bhai", "kya baat hai")
- Common college slang is acceptable
- Light roasting and friendly banter is okay
- Indirect mentions of professors or college life are fine

TRAFFIC LIGHT SYSTEM:

RED (REJECT):
- Hate speech targeting religion, caste, gender, sexuality
- Severe bullying or harassment with intent to harm
- Explicit threats of violence or self-harm
- Extremely toxic or abusive language
- Sharing private information (doxxing)
- Sexually explicit content

YELLOW (FLAG for manual review):
- Mild negativity or complaints about college/professors
- Sarcasm or passive-aggressive tone
- Controversial opinions that might spark debate
- Roasting specific groups (but not individuals)
- Borderline inappropriate jokes
- Venting about personal problems

GREEN (APPROVE):
- Wholesome confessions
- Funny, relatable college experiences
- Harmless secrets or crushes
- Positive vibes and encouragement
- Academic struggles or success stories
- Clean humor and memes

Analyze this confession and return ONLY valid JSON in this exact format:
{
  "verdict": "APPROVE" | "REJECT" | "FLAG",
  "reason": "Brief explanation in 1-2 sentences"
}

CONFESSION TO MODERATE:
`

// GeminiClassifier moderates confessions through the Gemini REST API.
type GeminiClassifier struct {
	client  *http.Client
	baseURL string
	model   string
	apiKey  string
	log     *zap.Logger
}

func NewGeminiClassifier(baseURL, model, apiKey string, log *zap.Logger) *GeminiClassifier {
	return &GeminiClassifier{
		client:  robustHTTPClient(),
		baseURL: strings.TrimSuffix(baseURL, "/"),
		model:   model,
		apiKey:  apiKey,
		log:     log,
	}
}

// robustHTTPClient has retry-on-5xx/429 behavior and a bounded overall
// timeout. Retries happen inside the stdlib client interface.
func robustHTTPClient() *http.Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 2
	retryClient.RetryWaitMin = 500 * time.Millisecond
	retryClient.RetryWaitMax = 5 * time.Second
	retryClient.Logger = nil
	client := retryClient.StandardClient()
	client.Timeout = 20 * time.Second
	return client
}

// Wire format of the generateContent endpoint, limited to the fields we use.
type geminiRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig geminiGenConfig `json:"generationConfig"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenConfig struct {
	ResponseMIMEType string `json:"responseMimeType"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Classify sends the confession text through the policy prompt and parses
// the structured verdict. Transport failures, non-2xx statuses and a
// missing API key return ErrUnavailable; any response we did receive but
// cannot make sense of degrades to a FLAG decision so the confession lands
// in the manual review queue instead of being published or rejected.
//
// Text is classified at most once per call: the underlying client retries
// an HTTP attempt only when no usable classification came back (connection
// errors, 429, retryable 5xx), so a retry can never produce a second
// verdict for the same submission.
func (g *GeminiClassifier) Classify(ctx context.Context, title, content string) (Decision, error) {
	if g.apiKey == "" {
		return Decision{}, fmt.Errorf("%w: GEMINI_API_KEY not configured", ErrUnavailable)
	}

	prompt := fmt.Sprintf("%sTitle: %s\n\nContent: %s", policyPrompt, title, content)
	body, err := json.Marshal(geminiRequest{
		Contents:         []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
		GenerationConfig: geminiGenConfig{ResponseMIMEType: "application/json"},
	})
	if err != nil {
		return Decision{}, err
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", g.baseURL, g.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Decision{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Decision{}, fmt.Errorf("%w: reading response: %v", ErrUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		g.log.Warn("gemini returned non-200", zap.Int("status", resp.StatusCode))
		return Decision{}, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	decision := g.parse(raw)
	g.log.Info("moderation verdict",
		zap.String("verdict", string(decision.Verdict)),
		zap.String("reason", decision.Reason))
	return decision, nil
}

// parse extracts the model's JSON answer from a 200 response. Every failure
// mode here is a FLAG, never an error.
func (g *GeminiClassifier) parse(raw []byte) Decision {
	var envelope geminiResponse
	if err := json.Unmarshal(raw, &envelope); err != nil {
		g.log.Warn("unparseable gemini envelope", zap.Error(err))
		return Decision{Verdict: VerdictFlag, Reason: reasonInconclusive}
	}
	if len(envelope.Candidates) == 0 || len(envelope.Candidates[0].Content.Parts) == 0 {
		g.log.Warn("gemini response has no candidates")
		return Decision{Verdict: VerdictFlag, Reason: reasonInconclusive}
	}

	text := strings.TrimSpace(envelope.Candidates[0].Content.Parts[0].Text)
	var decision Decision
	if err := json.Unmarshal([]byte(text), &decision); err != nil {
		g.log.Warn("unparseable gemini verdict", zap.String("text", text), zap.Error(err))
		return Decision{Verdict: VerdictFlag, Reason: reasonInconclusive}
	}

	switch decision.Verdict {
	case VerdictApprove, VerdictFlag, VerdictReject:
		return decision
	default:
		g.log.Warn("unrecognized gemini verdict", zap.String("verdict", string(decision.Verdict)))
		return Decision{Verdict: VerdictFlag, Reason: reasonInvalidVerdict}
	}
}
