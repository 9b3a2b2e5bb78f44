// TacSight - Training Exercise Telemetry Analytics
// Copyright 2026 TacSight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tacsight/tacsight

package validation

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tacsight/tacsight/internal/dataset"
	"github.com/tacsight/tacsight/internal/logging"
	"github.com/tacsight/tacsight/internal/metrics"
	"github.com/tacsight/tacsight/internal/models"
)

// EventPublisher abstracts the event bus for the engine's publications.
type EventPublisher interface {
	Publish(event any)
}

// Stats tracks engine performance counters across runs.
type Stats struct {
	TotalValidations int            `json:"total_validations"`
	TotalIssuesFound int            `json:"total_issues_found"`
	CriticalIssues   int            `json:"critical_issues"`
	AverageRunTime   time.Duration  `json:"average_validation_time"`
	MostCommonIssues map[string]int `json:"most_common_issues"`
	ActiveRules      int            `json:"active_rules"`
	TotalRules       int            `json:"total_rules"`
}

// Engine is the rule-based data quality engine. Rule mutation and
// statistics are guarded by a mutex; ValidateData itself is a
// self-contained computation safe to run from multiple workers.
type Engine struct {
	mu         sync.RWMutex
	rules      []Rule
	validators map[RuleType]RuleValidator
	stats      Stats
	publisher  EventPublisher
}

// NewEngine creates an engine with the built-in validators and,
// unless withDefaults is false, the default telemetry rule set.
func NewEngine(publisher EventPublisher, withDefaults bool) *Engine {
	e := &Engine{
		validators: map[RuleType]RuleValidator{
			RuleRequiredColumn: requiredColumnValidator{},
			RuleDataType:       dataTypeValidator{},
			RuleValueRange:     valueRangeValidator{},
			RulePatternMatch:   patternMatchValidator{},
			RuleBusinessRule:   businessRuleValidator{},
		},
		stats:     Stats{MostCommonIssues: map[string]int{}},
		publisher: publisher,
	}
	if withDefaults {
		e.rules = defaultRules()
		logging.Info().Int("rules", len(e.rules)).Msg("initialized default validation rules")
	}
	return e
}

// RegisterValidator installs a validator for a rule type, replacing
// any existing one.
func (e *Engine) RegisterValidator(ruleType RuleType, v RuleValidator) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.validators[ruleType] = v
}

// AddRule registers a rule. The rule ID must be unique and the rule
// shape must pass struct validation.
func (e *Engine) AddRule(rule Rule) error {
	if err := structValidator().Struct(rule); err != nil {
		return fmt.Errorf("invalid rule %s: %w", rule.RuleID, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for _, existing := range e.rules {
		if existing.RuleID == rule.RuleID {
			return fmt.Errorf("%w: %s", ErrRuleExists, rule.RuleID)
		}
	}
	e.rules = append(e.rules, rule)
	logging.Info().Str("rule_id", rule.RuleID).Msg("added validation rule")
	return nil
}

// RemoveRule deletes a rule by ID. Returns false if unknown.
func (e *Engine) RemoveRule(ruleID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, rule := range e.rules {
		if rule.RuleID == ruleID {
			e.rules = append(e.rules[:i], e.rules[i+1:]...)
			logging.Info().Str("rule_id", ruleID).Msg("removed validation rule")
			return true
		}
	}
	return false
}

// EnableRule enables a rule by ID. Returns false if unknown.
func (e *Engine) EnableRule(ruleID string) bool {
	return e.setEnabled(ruleID, true)
}

// DisableRule disables a rule by ID. Returns false if unknown.
func (e *Engine) DisableRule(ruleID string) bool {
	return e.setEnabled(ruleID, false)
}

func (e *Engine) setEnabled(ruleID string, enabled bool) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range e.rules {
		if e.rules[i].RuleID == ruleID {
			e.rules[i].Enabled = enabled
			return true
		}
	}
	return false
}

// Rules returns a copy of the registered rules, optionally filtered
// to those applicable to a domain.
func (e *Engine) Rules(domain *models.AnalysisDomain) []Rule {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Rule, 0, len(e.rules))
	for _, rule := range e.rules {
		if domain == nil || rule.Domain == nil || *rule.Domain == *domain {
			out = append(out, rule)
		}
	}
	return out
}

// ValidateData runs every applicable rule over the dataset and returns
// a scored result. A panicking or failing validator is converted into
// an error-severity issue for that rule; the run always completes.
func (e *Engine) ValidateData(ds *dataset.Dataset, requestID string, domain *models.AnalysisDomain) *models.ValidationResult {
	start := time.Now()
	if requestID == "" {
		requestID = "validation_" + uuid.NewString()
	}

	if ds == nil || ds.Len() == 0 {
		// Empty input short-circuits before any per-record division.
		result := &models.ValidationResult{
			RequestID:      requestID,
			TotalRecords:   0,
			ValidationTime: time.Since(start),
			OverallScore:   0,
			Issues: []models.ValidationIssue{{
				RuleID:       "EMPTY_DATASET",
				Severity:     models.SeverityError,
				Message:      "Dataset contains no records; nothing to validate",
				SuggestedFix: "Verify the data source produced records",
			}},
			Summary:         map[string]int{"total_issues": 1, "error": 1},
			Recommendations: []string{"Verify the data load pipeline before requesting analysis"},
		}
		e.recordRun(result, time.Since(start))
		e.publishResult(result)
		return result
	}

	var issues []models.ValidationIssue
	for _, rule := range e.applicableRules(domain) {
		ruleIssues, err := e.runRule(ds, rule)
		if err != nil {
			logging.Err(err).Str("rule_id", rule.RuleID).Msg("validation rule execution failed")
			issues = append(issues, models.ValidationIssue{
				RuleID:       rule.RuleID,
				Severity:     models.SeverityError,
				Message:      fmt.Sprintf("Validation rule execution failed: %v", err),
				SuggestedFix: "Review rule configuration",
			})
			continue
		}
		issues = append(issues, ruleIssues...)
	}

	elapsed := time.Since(start)
	result := &models.ValidationResult{
		RequestID:       requestID,
		TotalRecords:    ds.Len(),
		ValidationTime:  elapsed,
		OverallScore:    overallScore(issues, ds.Len()),
		Issues:          issues,
		Summary:         summarize(issues),
		Recommendations: recommendations(issues, ds.Len()),
	}

	e.recordRun(result, elapsed)
	e.publishResult(result)

	logging.Info().
		Str("request_id", requestID).
		Int("records", ds.Len()).
		Int("issues", len(issues)).
		Float64("score", result.OverallScore).
		Msg("validation completed")

	return result
}

func (e *Engine) applicableRules(domain *models.AnalysisDomain) []Rule {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Rule, 0, len(e.rules))
	for _, rule := range e.rules {
		if !rule.Enabled {
			continue
		}
		if domain != nil && rule.Domain != nil && *rule.Domain != *domain {
			continue
		}
		out = append(out, rule)
	}
	return out
}

// runRule executes one rule with panic containment.
func (e *Engine) runRule(ds *dataset.Dataset, rule Rule) (issues []models.ValidationIssue, err error) {
	defer func() {
		if r := recover(); r != nil {
			issues = nil
			err = fmt.Errorf("validator panicked: %v", r)
		}
	}()

	e.mu.RLock()
	v, ok := e.validators[rule.Type]
	e.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRuleType, rule.Type)
	}
	return v.Validate(ds, rule)
}

// overallScore computes the weighted quality score. Penalties are
// proportional to affected records, summed, capped at 100.
func overallScore(issues []models.ValidationIssue, totalRecords int) float64 {
	if len(issues) == 0 {
		return 100
	}
	penalty := 0.0
	for _, issue := range issues {
		penalty += float64(issue.AffectedCount) / float64(totalRecords) * issue.Severity.Weight() * 100
	}
	if penalty > 100 {
		penalty = 100
	}
	score := 100 - penalty
	if score < 0 {
		score = 0
	}
	return score
}

func summarize(issues []models.ValidationIssue) map[string]int {
	summary := map[string]int{"total_issues": len(issues)}
	affected := 0
	for _, issue := range issues {
		summary[issue.Severity.String()]++
		affected += issue.AffectedCount
	}
	summary["affected_records"] = affected
	return summary
}

func recommendations(issues []models.ValidationIssue, totalRecords int) []string {
	var recs []string

	critical := 0
	var missing, typeIssues, rangeIssues, business bool
	for _, issue := range issues {
		if issue.Severity == models.SeverityCritical {
			critical++
		}
		switch issue.RuleID {
		case "BR_CASUALTY_TRANSITIONS", "BR_FALL_CASUALTY_CORRELATION", "BR_BATTERY_DEPLETION", "BR_NETWORK_CONSISTENCY":
			business = true
		}
		switch {
		case containsFold(issue.Message, "missing"):
			missing = true
		case containsFold(issue.Message, "datetime"), containsFold(issue.Message, "numeric"):
			typeIssues = true
		case containsFold(issue.Message, "range"):
			rangeIssues = true
		}
	}

	if critical > 0 {
		recs = append(recs, fmt.Sprintf("CRITICAL: Address %d critical data quality issues immediately", critical))
	}
	if missing {
		recs = append(recs, "Add missing required columns to data source")
	}
	if typeIssues {
		recs = append(recs, "Review and standardize data formats for consistency")
	}
	if rangeIssues {
		recs = append(recs, "Implement data validation at source to prevent out-of-range values")
	}
	if business {
		recs = append(recs, "Review business logic and sensor calibration")
	}
	if totalRecords > 0 && len(issues)*10 > totalRecords {
		recs = append(recs, "Consider implementing automated data cleansing processes")
	}
	if len(recs) == 0 {
		recs = append(recs, "Data quality is acceptable - continue monitoring")
	}
	return recs
}

func containsFold(s, sub string) bool {
	for i := 0; i+len(sub) <= len(s); i++ {
		match := true
		for j := 0; j < len(sub); j++ {
			a, b := s[i+j], sub[j]
			if 'A' <= a && a <= 'Z' {
				a += 'a' - 'A'
			}
			if 'A' <= b && b <= 'Z' {
				b += 'a' - 'A'
			}
			if a != b {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

func (e *Engine) recordRun(result *models.ValidationResult, elapsed time.Duration) {
	e.mu.Lock()
	e.stats.TotalValidations++
	e.stats.TotalIssuesFound += len(result.Issues)
	e.stats.CriticalIssues += result.CriticalIssues()
	n := time.Duration(e.stats.TotalValidations)
	e.stats.AverageRunTime = (e.stats.AverageRunTime*(n-1) + elapsed) / n
	for _, issue := range result.Issues {
		e.stats.MostCommonIssues[issue.RuleID]++
	}
	e.mu.Unlock()

	metrics.RecordValidation(result.OverallScore, elapsed)
	for _, issue := range result.Issues {
		metrics.ValidationIssues.WithLabelValues(issue.Severity.String()).Inc()
	}
}

func (e *Engine) publishResult(result *models.ValidationResult) {
	if e.publisher == nil {
		return
	}

	e.publisher.Publish(models.Event{
		Type:   models.EventValidationComplete,
		Source: "DataValidator",
		Data: map[string]any{
			"request_id":      result.RequestID,
			"total_records":   result.TotalRecords,
			"validation_time": result.ValidationTime.Seconds(),
			"overall_score":   result.OverallScore,
			"total_issues":    len(result.Issues),
			"critical_issues": result.CriticalIssues(),
		},
	})

	for _, issue := range result.Issues {
		if issue.Severity != models.SeverityCritical {
			continue
		}
		metrics.RecordAlert("data_quality", models.AlertCritical.String())
		e.publisher.Publish(models.Event{
			Type:   models.EventAlertTriggered,
			Source: "DataValidator",
			Data: map[string]any{
				"alert_type":     "DATA_QUALITY_CRITICAL",
				"level":          models.AlertCritical.String(),
				"message":        issue.Message,
				"affected_count": issue.AffectedCount,
				"rule_id":        issue.RuleID,
				"column":         issue.Column,
			},
		})
	}
}

// Statistics returns a snapshot of the engine counters.
func (e *Engine) Statistics() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := e.stats
	out.MostCommonIssues = make(map[string]int, len(e.stats.MostCommonIssues))
	for k, v := range e.stats.MostCommonIssues {
		out.MostCommonIssues[k] = v
	}
	out.TotalRules = len(e.rules)
	for _, rule := range e.rules {
		if rule.Enabled {
			out.ActiveRules++
		}
	}
	return out
}

// ApplyConfig applies a CONFIG_CHANGED payload. The validation_rules
// key maps rule IDs to {"enabled": bool} toggles.
func (e *Engine) ApplyConfig(config map[string]any) {
	rulesConfig, ok := config["validation_rules"].(map[string]any)
	if !ok {
		return
	}
	ids := make([]string, 0, len(rulesConfig))
	for ruleID := range rulesConfig {
		ids = append(ids, ruleID)
	}
	sort.Strings(ids)

	for _, ruleID := range ids {
		ruleConfig, ok := rulesConfig[ruleID].(map[string]any)
		if !ok {
			continue
		}
		enabled, ok := ruleConfig["enabled"].(bool)
		if !ok {
			continue
		}
		if enabled {
			e.EnableRule(ruleID)
		} else {
			e.DisableRule(ruleID)
		}
	}
	logging.Info().Msg("validation configuration updated")
}
