// Package conversation scores a new request against a session's prior
// turns to catch multi-turn attacks that no single message reveals:
// retried requests that were previously blocked, capability escalation
// across turns, sensitive topics introduced only after trust has been
// built up, and similar patterns.
package conversation

import (
	"fmt"
	"math"
	"strings"

	"github.com/CherryPod/sentinel-sub000/internal/domain/entity"
)

const (
	capScore = 5.0

	retrySimilarityThreshold = 0.45
	violationPoints          = 1.5
	instructionOverridePoint = 3.0
	contextBuildingScore     = 2.5
	topicShiftScore          = 1.5

	defaultWarnThreshold  = 3.0
	defaultBlockThreshold = 5.0

	// cumulativeDecay controls how much of a turn's total score carries
	// forward into the session's cumulative risk for the next turn.
	cumulativeDecay = 0.5
)

// Action is the analyser's verdict for a turn.
type Action string

const (
	ActionAllow Action = "allow"
	ActionWarn  Action = "warn"
	ActionBlock Action = "block"
)

// AnalysisResult is the outcome of analysing one new request against a
// session's history.
type AnalysisResult struct {
	RuleScores map[string]float64
	TotalScore float64
	Action     Action
	Warnings   []string
}

// Analyzer is a pure scoring function over (session, new request text).
// It holds no state of its own beyond its configured thresholds; all
// session state lives on the entity.Session passed to Analyze.
type Analyzer struct {
	warnThreshold  float64
	blockThreshold float64
}

func NewAnalyzer(warnThreshold, blockThreshold float64) *Analyzer {
	return &Analyzer{warnThreshold: warnThreshold, blockThreshold: blockThreshold}
}

func NewDefaultAnalyzer() *Analyzer {
	return NewAnalyzer(defaultWarnThreshold, defaultBlockThreshold)
}

// Analyze scores newRequestText against session's turn history. The very
// first turn of a session always allows: there is no history yet to
// carry a multi-turn signal.
func (a *Analyzer) Analyze(session *entity.Session, newRequestText string) AnalysisResult {
	turns := session.Turns()
	if len(turns) == 0 {
		return AnalysisResult{
			RuleScores: map[string]float64{},
			TotalScore: 0.0,
			Action:     ActionAllow,
		}
	}

	scores := map[string]float64{}
	var warnings []string

	score, warn := a.scoreRetryAfterBlock(turns, newRequestText)
	scores["retry_after_block"] = score
	if warn != "" {
		warnings = append(warnings, warn)
	}

	score, warn = a.scoreEscalation(turns, newRequestText)
	scores["escalation"] = score
	if warn != "" {
		warnings = append(warnings, warn)
	}

	scores["sensitive_topic_acceleration"] = a.scoreSensitiveTopicAcceleration(turns, newRequestText)
	scores["instruction_override"] = a.scoreInstructionOverride(newRequestText)
	scores["violation_accumulation"] = a.scoreViolationAccumulation(turns)
	scores["context_building"] = a.scoreContextBuilding(newRequestText)
	scores["reconnaissance"] = a.scoreReconnaissance(turns, newRequestText)
	scores["topic_shift"] = a.scoreTopicShift(turns, newRequestText)

	var sum float64
	for _, s := range scores {
		sum += s
	}
	total := sum + session.CumulativeRisk()

	action := ActionAllow
	switch {
	case total >= a.blockThreshold:
		action = ActionBlock
	case total >= a.warnThreshold:
		action = ActionWarn
	}

	session.SetCumulativeRisk(total * cumulativeDecay)

	return AnalysisResult{
		RuleScores: scores,
		TotalScore: total,
		Action:     action,
		Warnings:   warnings,
	}
}

func (a *Analyzer) scoreRetryAfterBlock(turns []entity.ConversationTurn, newText string) (float64, string) {
	maxSim := 0.0
	for _, t := range turns {
		if t.ResultStatus != entity.TurnBlocked {
			continue
		}
		if sim := ratio(t.RequestText, newText); sim > maxSim {
			maxSim = sim
		}
	}
	if maxSim <= retrySimilarityThreshold {
		return 0, ""
	}
	score := math.Min(capScore, maxSim*6.0)
	return score, fmt.Sprintf("request is similar (%.0f%%) to a previously blocked turn", maxSim*100)
}

func (a *Analyzer) scoreEscalation(turns []entity.ConversationTurn, newText string) (float64, string) {
	newTier := classifyTier(newText)
	if newTier == tierNone {
		return 0, ""
	}

	prevTier := tierNone
	for _, t := range turns {
		if tier := classifyTier(t.RequestText); tier > prevTier {
			prevTier = tier
		}
	}
	if prevTier == tierNone {
		return 0, ""
	}

	jump := int(newTier - prevTier)
	if jump <= 0 {
		return 0, ""
	}

	var score float64
	switch {
	case newTier == tierExfiltrate || newTier == tierPersist:
		score = 2.0 + float64(jump)
	case jump >= 2:
		score = float64(jump)
	default:
		return 0, ""
	}

	score = math.Min(capScore, score)
	return score, "capability escalation across turns"
}

func (a *Analyzer) scoreSensitiveTopicAcceleration(turns []entity.ConversationTurn, newText string) float64 {
	if len(turns) == 0 {
		return 0
	}

	newKeywords := sensitiveKeywordsIn(newText)
	if len(newKeywords) == 0 {
		return 0
	}

	allAlreadyMentioned := true
	for _, kw := range newKeywords {
		mentioned := false
		for _, t := range turns {
			if containsKeyword(t.RequestText, kw) {
				mentioned = true
				break
			}
		}
		if !mentioned {
			allAlreadyMentioned = false
			break
		}
	}
	if allAlreadyMentioned {
		return 0
	}

	score := 2.0 + 0.25*float64(len(turns)-1)
	return math.Min(capScore, score)
}

func (a *Analyzer) scoreInstructionOverride(newText string) float64 {
	var matches int
	for _, re := range instructionOverridePatterns {
		if re.MatchString(newText) {
			matches++
		}
	}
	if matches == 0 {
		return 0
	}
	return math.Min(capScore, float64(matches)*instructionOverridePoint)
}

func (a *Analyzer) scoreViolationAccumulation(turns []entity.ConversationTurn) float64 {
	var blocked int
	for _, t := range turns {
		if t.ResultStatus == entity.TurnBlocked {
			blocked++
		}
	}
	return math.Min(capScore, float64(blocked)*violationPoints)
}

func (a *Analyzer) scoreContextBuilding(newText string) float64 {
	if !hasContextReference(newText) {
		return 0
	}
	if !hasEscalationLanguage(newText) && len(sensitiveKeywordsIn(newText)) == 0 {
		return 0
	}
	return contextBuildingScore
}

func (a *Analyzer) scoreReconnaissance(turns []entity.ConversationTurn, newText string) float64 {
	count := 0
	for _, t := range turns {
		if isReconnaissancePattern(t.RequestText) {
			count++
		}
	}
	if isReconnaissancePattern(newText) {
		count++
	}
	if count < 2 {
		return 0
	}
	score := 1.5*float64(count) - 1.0
	return math.Min(capScore, score)
}

func (a *Analyzer) scoreTopicShift(turns []entity.ConversationTurn, newText string) float64 {
	if len(turns) < 2 {
		return 0
	}
	if !isSystemFocused(newText) {
		return 0
	}

	var textCodeCount, systemCount int
	for _, t := range turns {
		switch {
		case isTextCodeFocused(t.RequestText):
			textCodeCount++
		case isSystemFocused(t.RequestText):
			systemCount++
		}
	}

	if textCodeCount >= 2 && textCodeCount > systemCount {
		return topicShiftScore
	}
	return 0
}

func containsKeyword(text, keyword string) bool {
	return strings.Contains(strings.ToLower(text), strings.ToLower(keyword))
}
