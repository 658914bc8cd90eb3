package rules

import (
	"time"

	"trustcore/internal/action"
	"trustcore/internal/condition"
)

type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

func (s Status) Valid() bool {
	return s == StatusActive || s == StatusInactive
}

type Rule struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Description    string         `json:"description,omitempty"`
	Condition      condition.Tree `json:"condition"`
	Actions        action.List    `json:"action"`
	Priority       int            `json:"priority"`
	Status         Status         `json:"status"`
	ExecutionCount int64          `json:"executionCount"`
	LastExecutedAt *time.Time     `json:"lastExecutedAt,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

// Filter narrows ListRules. A zero Filter matches every rule.
type Filter struct {
	Status Status
}

type CreateRuleRequest struct {
	Name        string         `json:"name" yaml:"name" binding:"required"`
	Description string         `json:"description" yaml:"description"`
	Condition   condition.Tree `json:"condition" yaml:"condition"`
	Actions     action.List    `json:"action" yaml:"action"`
	Priority    int            `json:"priority" yaml:"priority"`
	Status      Status         `json:"status" yaml:"status"`
}

type SetStatusRequest struct {
	Status Status `json:"status" binding:"required"`
}

type EvaluateRequest struct {
	Event  map[string]interface{} `json:"event" binding:"required"`
	DryRun bool                   `json:"dry_run"`
}

type ValidateRequest struct {
	Condition condition.Tree `json:"condition"`
}

type ValidateResponse struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// EvaluationResult is the outcome of one rule against one event.
type EvaluationResult struct {
	RuleID        string          `json:"ruleId"`
	RuleName      string          `json:"ruleName"`
	Matched       bool            `json:"matched"`
	Executed      bool            `json:"executed"`
	ActionResults []action.Result `json:"actionResults,omitempty"`
	Error         string          `json:"error,omitempty"`
	Duration      time.Duration   `json:"-"`
	DurationMs    float64         `json:"durationMs"`
}
