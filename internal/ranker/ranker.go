// Package ranker asks a language model for a second opinion on the best
// deterministic matches. It never fails a search: any problem yields no
// AI signal.
package ranker

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/xaenox/ishbor-bot/internal/logger"
	"github.com/xaenox/ishbor-bot/internal/matching"
	"github.com/xaenox/ishbor-bot/internal/models"
	"github.com/xaenox/ishbor-bot/internal/moderation"
	"go.uber.org/zap"
)

const (
	DefaultTopN     = 40
	DefaultTimeout  = 8 * time.Second
	maxReasonLength = 220
	maxLogLength    = 200
	systemPrompt    = "You rank job matches. Reply with JSON only."
)

//go:embed prompt.md
var promptTemplate string

var errNoCompleter = errors.New("ranker: no completion provider configured")

// Completer is a text completion endpoint that answers with JSON.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// Rerank is the model's opinion of one candidate.
type Rerank struct {
	AIScore int
	Reason  string
}

type Ranker struct {
	completer Completer
	topN      int
	timeout   time.Duration
	logger    *zap.Logger
}

type Option func(*Ranker)

func WithTopN(n int) Option {
	return func(r *Ranker) {
		if n > 0 {
			r.topN = n
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(r *Ranker) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// New builds a Ranker. A nil completer is valid and disables re-ranking.
func New(completer Completer, log *zap.Logger, opts ...Option) *Ranker {
	r := &Ranker{
		completer: completer,
		topN:      DefaultTopN,
		timeout:   DefaultTimeout,
		logger:    logger.WithFields(log),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Enabled reports whether a provider is configured.
func (r *Ranker) Enabled() bool {
	return r != nil && r.completer != nil
}

type profilePayload struct {
	Title          string   `json:"title,omitempty"`
	Category       string   `json:"category,omitempty"`
	Region         string   `json:"region,omitempty"`
	SalaryMin      int64    `json:"salary_min,omitempty"`
	Experience     string   `json:"experience,omitempty"`
	EmploymentType string   `json:"employment_type,omitempty"`
	Skills         []string `json:"skills,omitempty"`
}

type candidatePayload struct {
	ID              int64  `json:"id"`
	Title           string `json:"title"`
	Category        string `json:"category,omitempty"`
	Region          string `json:"region,omitempty"`
	SalaryMin       int64  `json:"salary_min,omitempty"`
	SalaryMax       int64  `json:"salary_max,omitempty"`
	ExperienceYears int    `json:"experience_years,omitempty"`
	EmploymentType  string `json:"employment_type,omitempty"`
	Remote          bool   `json:"remote,omitempty"`
	Score           int    `json:"score"`
}

// RerankForProfile sends the best results (at most the configured top N)
// to the model and returns its scores keyed by candidate id. The map is
// empty when no provider is configured or anything goes wrong.
func (r *Ranker) RerankForProfile(ctx context.Context, profile matching.Profile, results []matching.MatchResult, lang models.Language) map[int64]Rerank {
	out := make(map[int64]Rerank)
	if len(results) == 0 {
		return out
	}
	if !r.Enabled() {
		r.loggerOrNop().Debug("ai rerank skipped", zap.Error(errNoCompleter))
		return out
	}

	if len(results) > r.topN {
		results = results[:r.topN]
	}

	prompt, err := buildPrompt(profile, results, lang)
	if err != nil {
		r.logger.Warn("ai rerank prompt failed", zap.Error(err))
		return out
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	r.logger.Debug("ai rerank request",
		zap.Int("candidates", len(results)),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)))

	raw, err := r.completer.Complete(ctx, systemPrompt, prompt)
	if err != nil {
		r.logger.Warn("ai rerank failed, using deterministic scores", zap.Error(err))
		return out
	}

	sent := make(map[int64]bool, len(results))
	for _, res := range results {
		sent[res.Candidate.ID] = true
	}

	parsed, err := parseResponse(raw, sent)
	if err != nil {
		r.logger.Warn("ai rerank response unusable",
			zap.Error(err),
			zap.String("response_preview", logger.TruncateForLog(raw, maxLogLength)))
		return out
	}
	return parsed
}

func (r *Ranker) loggerOrNop() *zap.Logger {
	if r == nil || r.logger == nil {
		return zap.NewNop()
	}
	return r.logger
}

func buildPrompt(profile matching.Profile, results []matching.MatchResult, lang models.Language) (string, error) {
	p := profilePayload{
		Title:          moderation.SanitizeInput(profile.Title),
		Category:       categoryName(profile.CategoryID, lang),
		Region:         regionName(profile.RegionID, lang),
		SalaryMin:      profile.SalaryMin,
		Experience:     profile.Experience,
		EmploymentType: profile.EmploymentType,
	}
	for _, s := range profile.Skills {
		if s = moderation.SanitizeInput(s); s != "" {
			p.Skills = append(p.Skills, s)
		}
	}

	candidates := make([]candidatePayload, 0, len(results))
	for _, res := range results {
		c := res.Candidate
		candidates = append(candidates, candidatePayload{
			ID:              c.ID,
			Title:           moderation.SanitizeInput(c.Title),
			Category:        categoryName(c.CategoryID, lang),
			Region:          regionName(c.RegionID, lang),
			SalaryMin:       c.SalaryMin,
			SalaryMax:       c.SalaryMax,
			ExperienceYears: c.ExperienceYears,
			EmploymentType:  c.EmploymentType,
			Remote:          c.RemoteEligible,
			Score:           res.Score,
		})
	}

	profileJSON, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("marshal profile: %w", err)
	}
	candidatesJSON, err := json.Marshal(candidates)
	if err != nil {
		return "", fmt.Errorf("marshal candidates: %w", err)
	}

	language := "Uzbek (Latin script)"
	if lang == models.LangRu {
		language = "Russian"
	}

	prompt := strings.ReplaceAll(promptTemplate, "{{LANGUAGE}}", language)
	prompt = strings.ReplaceAll(prompt, "{{PROFILE_JSON}}", string(profileJSON))
	prompt = strings.ReplaceAll(prompt, "{{CANDIDATES_JSON}}", string(candidatesJSON))
	return prompt, nil
}

func categoryName(id int64, lang models.Language) string {
	c, ok := matching.CategoryByID(id)
	if !ok {
		return ""
	}
	return c.Name().In(lang)
}

func regionName(id int64, lang models.Language) string {
	r, ok := matching.RegionByID(id)
	if !ok {
		return ""
	}
	return r.Name().In(lang)
}

func parseResponse(raw string, sent map[int64]bool) (map[int64]Rerank, error) {
	var envelope struct {
		Results []map[string]any `json:"results"`
	}
	if err := json.Unmarshal([]byte(extractJSON(raw)), &envelope); err != nil {
		return nil, fmt.Errorf("parse ai response: %w", err)
	}

	out := make(map[int64]Rerank, len(envelope.Results))
	for _, item := range envelope.Results {
		id := int64(coerceFloat(item["id"]))
		if !sent[id] {
			continue
		}
		score := coerceFloat(item["ai_score"])
		if math.IsNaN(score) {
			continue
		}
		out[id] = Rerank{
			AIScore: clampScore(int(math.Round(score))),
			Reason:  clampRunes(strings.TrimSpace(coerceString(item["reason"])), maxReasonLength),
		}
	}
	return out, nil
}

// extractJSON strips markdown fences and any prose around the object.
func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	if start, end := strings.Index(raw, "{"), strings.LastIndex(raw, "}"); start >= 0 && end > start {
		raw = raw[start : end+1]
	}
	return strings.TrimSpace(raw)
}

func coerceFloat(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

func coerceString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func clampRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}

// Merge attaches AI opinions to results and re-sorts them. The
// deterministic score stays the primary key; the AI score only breaks ties.
// Results are never dropped or added.
func Merge(results []matching.MatchResult, reranks map[int64]Rerank) []matching.MatchResult {
	out := make([]matching.MatchResult, len(results))
	copy(out, results)
	for i := range out {
		if rr, ok := reranks[out[i].Candidate.ID]; ok {
			score := rr.AIScore
			out[i].AIScore = &score
			out[i].AIReason = rr.Reason
		}
	}

	aiScore := func(r matching.MatchResult) int {
		if r.AIScore == nil {
			return -1
		}
		return *r.AIScore
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if ai, aj := aiScore(out[i]), aiScore(out[j]); ai != aj {
			return ai > aj
		}
		return out[i].Candidate.ID < out[j].Candidate.ID
	})
	return out
}
