// Package models holds the data model for the ticket enrichment and routing
// pipeline: tickets, agents, customers, categories, routing rules, and
// knowledge base documents.
package models

import "time"

// TicketStatus is the lifecycle state of a ticket.
type TicketStatus string

const (
	StatusNew        TicketStatus = "new"
	StatusOpen       TicketStatus = "open"
	StatusPending    TicketStatus = "pending"
	StatusInProgress TicketStatus = "in_progress"
	StatusResolved   TicketStatus = "resolved"
	StatusClosed     TicketStatus = "closed"
	StatusEscalated  TicketStatus = "escalated"
)

// CustomerTier is the commercial bucket of the submitting customer.
type CustomerTier string

const (
	TierFree       CustomerTier = "free"
	TierStandard   CustomerTier = "standard"
	TierPremium    CustomerTier = "premium"
	TierVIP        CustomerTier = "vip"
	TierEnterprise CustomerTier = "enterprise"
)

// SLAMultiplier returns the SLA duration multiplier for the tier; lower
// multipliers mean a tighter deadline.
func (t CustomerTier) SLAMultiplier() float64 {
	switch t {
	case TierFree:
		return 2.0
	case TierStandard:
		return 1.0
	case TierPremium:
		return 0.75
	case TierVIP:
		return 0.5
	case TierEnterprise:
		return 0.25
	default:
		return 1.0
	}
}

// PriorityBoost returns the tier's additive contribution to priority scoring.
func (t CustomerTier) PriorityBoost() int {
	switch t {
	case TierFree:
		return -1
	case TierStandard:
		return 0
	case TierPremium:
		return 1
	case TierVIP, TierEnterprise:
		return 2
	default:
		return 0
	}
}

// ResponseSource identifies where a suggested response came from.
type ResponseSource string

const (
	SourceRAG         ResponseSource = "rag"
	SourceAIGenerated ResponseSource = "ai_generated"
	SourceTemplate    ResponseSource = "template"
)

// SuggestedResponse is one candidate reply attached to a processed ticket.
type SuggestedResponse struct {
	Content   string         `json:"content"`
	Source    ResponseSource `json:"source"`
	Relevance float64        `json:"relevance"`
	SourceID  string         `json:"source_id,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Classification is the Classifier's output attached to a ticket.
type Classification struct {
	PrimaryCategory     string             `json:"primary_category"`
	Confidence          float64            `json:"confidence"`
	AllCategories       map[string]float64 `json:"all_categories,omitempty"`
	SecondaryCategories []string           `json:"secondary_categories,omitempty"`
	Reasoning           string             `json:"reasoning,omitempty"`
	Method              string             `json:"method"` // ai, ai_cached, rule_based, default
}

// SentimentDetail carries the richer, optional crisis-detection fields the
// external model may populate; the rule-based fallback leaves these zero.
type SentimentDetail struct {
	EmotionalState    string   `json:"emotional_state,omitempty"`
	Urgency           string   `json:"urgency,omitempty"`
	RiskLevel         string   `json:"risk_level,omitempty"`
	ChurnRisk         string   `json:"churn_risk,omitempty"`
	HiddenIssues      []string `json:"hidden_issues,omitempty"`
	RecommendedAction string   `json:"recommended_action,omitempty"`
	CrisisPotential   bool     `json:"crisis_potential,omitempty"`
	ThreatDetected    bool     `json:"threat_detected,omitempty"`
	PassiveAggressive bool     `json:"passive_aggressive,omitempty"`
}

// SentimentLabel enumerates the sentiment classes.
type SentimentLabel string

const (
	SentimentPositive SentimentLabel = "positive"
	SentimentNeutral  SentimentLabel = "neutral"
	SentimentNegative SentimentLabel = "negative"
	SentimentAngry    SentimentLabel = "angry"
)

// Sentiment is the Sentiment Analyzer's output.
type Sentiment struct {
	Label                  SentimentLabel  `json:"label"`
	Score                  float64         `json:"score"`
	Confidence             float64         `json:"confidence"`
	AngerLevel             float64         `json:"anger_level"`
	SatisfactionPrediction int             `json:"satisfaction_prediction"`
	KeyPhrases             []string        `json:"key_phrases,omitempty"`
	Reasoning              string          `json:"reasoning,omitempty"`
	Method                 string          `json:"method"`
	Detail                 SentimentDetail `json:"detail,omitempty"`
}

// PriorityLevel is the human label for a priority score.
type PriorityLevel string

const (
	PriorityCritical PriorityLevel = "critical"
	PriorityHigh     PriorityLevel = "high"
	PriorityMedium   PriorityLevel = "medium"
	PriorityLow      PriorityLevel = "low"
	PriorityMinimal  PriorityLevel = "minimal"
)

// LevelForScore maps a clamped 1..5 score to its label.
func LevelForScore(score int) PriorityLevel {
	switch score {
	case 5:
		return PriorityCritical
	case 4:
		return PriorityHigh
	case 3:
		return PriorityMedium
	case 2:
		return PriorityLow
	default:
		return PriorityMinimal
	}
}

// PriorityBreakdown exposes the raw inputs behind a priority score, useful
// for debugging and for recalculate_with_override.
type PriorityBreakdown struct {
	Base             int     `json:"base"`
	TotalAdjustment  int     `json:"total_adjustment"`
	FinalScore       int     `json:"final_score"`
	CapsRatio        float64 `json:"caps_ratio"`
	ExclamationCount int     `json:"exclamation_count"`
	WordCount        int     `json:"word_count"`
}

// Priority is the Priority Scorer's output.
type Priority struct {
	Score         int               `json:"score"`
	Level         PriorityLevel     `json:"level"`
	Factors       []string          `json:"factors"`
	FactorDetails map[string]int    `json:"factor_details"`
	Breakdown     PriorityBreakdown `json:"breakdown"`
}

// RoutingReason explains why a routing decision came out the way it did.
type RoutingReason string

const (
	ReasonSkillMatch        RoutingReason = "skill_match"
	ReasonLanguageMatch     RoutingReason = "language_match"
	ReasonVIPHandler        RoutingReason = "vip_handler"
	ReasonCriticalHandler   RoutingReason = "critical_handler"
	ReasonLoadBalance       RoutingReason = "load_balance"
	ReasonRoundRobin        RoutingReason = "round_robin"
	ReasonRuleBased         RoutingReason = "rule_based"
	ReasonEscalation        RoutingReason = "escalation"
	ReasonNoAvailableAgents RoutingReason = "no_available_agents"
	ReasonSkipped           RoutingReason = "skipped"
)

// RoutingAlternative is one runner-up candidate returned alongside a decision.
type RoutingAlternative struct {
	AgentID   string          `json:"agent_id"`
	AgentName string          `json:"agent_name"`
	Score     float64         `json:"score"`
	Reasons   []RoutingReason `json:"reasons"`
}

// Assignment is the Router's decision, persisted on the ticket.
type Assignment struct {
	AgentID          string               `json:"agent_id,omitempty"`
	AgentName        string               `json:"agent_name,omitempty"`
	Team             string               `json:"team,omitempty"`
	Reason           RoutingReason        `json:"reason"`
	Confidence       float64              `json:"confidence"`
	Score            float64              `json:"score"`
	ScoreBreakdown   map[string]float64   `json:"score_breakdown,omitempty"`
	Alternatives     []RoutingAlternative `json:"alternatives,omitempty"`
	RuleName         string               `json:"rule_name,omitempty"`
	Message          string               `json:"message,omitempty"`
	PreviousAgentID  string               `json:"previous_agent_id,omitempty"`
	EscalationReason string               `json:"escalation_reason,omitempty"`
}

// Ticket is the root entity processed by the pipeline.
type Ticket struct {
	ID string `json:"id"`

	Content string `json:"content"`
	Subject string `json:"subject,omitempty"`

	CustomerEmail string       `json:"customer_email,omitempty"`
	CustomerName  string       `json:"customer_name,omitempty"`
	CustomerTier  CustomerTier `json:"customer_tier"`

	ExternalID     string `json:"external_id,omitempty"`
	ExternalSystem string `json:"external_system,omitempty"`
	Source         string `json:"source"`
	Channel        string `json:"channel,omitempty"`

	Language string `json:"language,omitempty"`

	Classification *Classification `json:"classification,omitempty"`
	Sentiment      *Sentiment      `json:"sentiment,omitempty"`
	Priority       *Priority       `json:"priority,omitempty"`
	Assignment     *Assignment     `json:"assignment,omitempty"`

	Status      TicketStatus `json:"status"`
	IsProcessed bool         `json:"is_processed"`

	ProcessingError string `json:"processing_error,omitempty"`

	SLADueAt    *time.Time `json:"sla_due_at,omitempty"`
	SLABreached bool       `json:"sla_breached"`

	SuggestedResponses []SuggestedResponse `json:"suggested_responses,omitempty"`

	Tags         []string          `json:"tags,omitempty"`
	CustomFields map[string]string `json:"custom_fields,omitempty"`

	// SkipRouting persists the submit-time request flag so the async worker
	// (which only has the ticket id to go on) still honors it.
	SkipRouting bool `json:"skip_routing,omitempty"`

	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	FirstResponseAt *time.Time `json:"first_response_at,omitempty"`
	ResolvedAt      *time.Time `json:"resolved_at,omitempty"`
}

// Escalate bumps priority by one (capped at 5) and marks the ticket escalated.
// Mirrors the invariant: escalated -> priority = min(prev+1, 5).
func (t *Ticket) Escalate(reason string) {
	if t.Priority != nil {
		t.Priority.Score = minInt(t.Priority.Score+1, 5)
		t.Priority.Level = LevelForScore(t.Priority.Score)
	}
	t.Status = StatusEscalated
	if t.Assignment != nil {
		t.Assignment.EscalationReason = reason
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
