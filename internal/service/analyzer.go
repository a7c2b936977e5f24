package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// AnalysisRequest is what the chat surface submits for scam analysis.
type AnalysisRequest struct {
	Message  string `json:"message"`
	URL      string `json:"url,omitempty"`
	ImageURL string `json:"imageUrl,omitempty"`
}

// AnalysisResult is the verdict produced for one submission.
type AnalysisResult struct {
	Verdict   string   `json:"verdict"`
	RiskScore float64  `json:"riskScore"`
	Reasons   []string `json:"reasons,omitempty"`
}

// Analyzer produces a scam verdict for a submission. The AI backend is an
// external collaborator behind this interface; the defense layer never
// depends on which implementation answers.
type Analyzer interface {
	Analyze(ctx context.Context, req AnalysisRequest) (AnalysisResult, error)
}

// HTTPAnalyzer forwards submissions to the external AI analysis service.
type HTTPAnalyzer struct {
	baseURL string
	client  *http.Client
}

// NewHTTPAnalyzer creates an analyzer client for the given service URL.
func NewHTTPAnalyzer(baseURL string) *HTTPAnalyzer {
	return &HTTPAnalyzer{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (a *HTTPAnalyzer) Analyze(ctx context.Context, req AnalysisRequest) (AnalysisResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return AnalysisResult{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/analyze", bytes.NewReader(body))
	if err != nil {
		return AnalysisResult{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return AnalysisResult{}, fmt.Errorf("analysis service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return AnalysisResult{}, fmt.Errorf("analysis service returned status %d", resp.StatusCode)
	}

	var result AnalysisResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return AnalysisResult{}, fmt.Errorf("malformed analysis response: %w", err)
	}
	return result, nil
}

// scamIndicators are weighted phrases common in scam messages. The
// heuristic analyzer is a stand-in for the AI service in development and a
// degraded-mode fallback in production.
var scamIndicators = []struct {
	phrase string
	weight float64
}{
	{"gift card", 0.35},
	{"wire transfer", 0.3},
	{"western union", 0.3},
	{"act now", 0.2},
	{"urgent", 0.15},
	{"verify your account", 0.3},
	{"suspended", 0.2},
	{"cryptocurrency", 0.15},
	{"guaranteed returns", 0.35},
	{"lottery", 0.25},
	{"prince", 0.2},
	{"click here", 0.15},
	{"password", 0.15},
	{"ssn", 0.3},
	{"social security", 0.3},
}

// HeuristicAnalyzer scores submissions with a fixed keyword list.
type HeuristicAnalyzer struct{}

// NewHeuristicAnalyzer creates the keyword-based fallback analyzer.
func NewHeuristicAnalyzer() *HeuristicAnalyzer {
	return &HeuristicAnalyzer{}
}

func (a *HeuristicAnalyzer) Analyze(_ context.Context, req AnalysisRequest) (AnalysisResult, error) {
	lower := strings.ToLower(req.Message + " " + req.URL)

	score := 0.0
	var reasons []string
	for _, ind := range scamIndicators {
		if strings.Contains(lower, ind.phrase) {
			score += ind.weight
			reasons = append(reasons, "contains "+quoted(ind.phrase))
		}
	}
	if score > 1 {
		score = 1
	}

	verdict := "likely_safe"
	switch {
	case score >= 0.6:
		verdict = "likely_scam"
	case score >= 0.3:
		verdict = "suspicious"
	}

	return AnalysisResult{Verdict: verdict, RiskScore: score, Reasons: reasons}, nil
}

func quoted(s string) string {
	return `"` + s + `"`
}
