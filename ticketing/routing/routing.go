// Package routing evaluates configured rules then a weighted scoring
// formula to pick the single best-fit live agent for a ticket, under skill,
// language, capacity, and policy constraints. The Router only recommends;
// committing the assignment (and the agent-load mutation) is the caller's
// responsibility so it can be wrapped in a storage transaction.
package routing

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ticketflow/engine/observability"
	"github.com/ticketflow/engine/ticketing/models"
)

var logger = observability.NewLogger(nil)

// Reason aliases are provided for readability within this package; the
// canonical enum lives on models.Ticket's Assignment.
const (
	ReasonSkillMatch      = models.ReasonSkillMatch
	ReasonLanguageMatch   = models.ReasonLanguageMatch
	ReasonVIPHandler      = models.ReasonVIPHandler
	ReasonCriticalHandler = models.ReasonCriticalHandler
	ReasonLoadBalance     = models.ReasonLoadBalance
	ReasonRoundRobin      = models.ReasonRoundRobin
	ReasonRuleBased       = models.ReasonRuleBased
	ReasonEscalation      = models.ReasonEscalation
	ReasonNoAvailable     = models.ReasonNoAvailableAgents
)

// Request is everything the Router needs to pick an agent.
type Request struct {
	Category     string
	Priority     int
	Language     string
	CustomerTier models.CustomerTier
	Source       string
	Content      string
	Subject      string
	Sentiment    models.SentimentLabel
	Now          time.Time
	VIPTiers     map[models.CustomerTier]bool
}

// Alternative is a runner-up candidate surfaced alongside the winner.
type Alternative struct {
	AgentID   string
	AgentName string
	Score     float64
	Reasons   []string
}

// Decision is the Router's recommendation, not yet committed.
type Decision struct {
	AgentID          string
	AgentName        string
	Team             string
	Reason           models.RoutingReason
	Confidence       float64
	Score            float64
	ScoreBreakdown   map[string]float64
	Alternatives     []Alternative
	RuleName         string
	Message          string
	EscalationReason string
}

// CustomPredicate is a named, pre-registered predicate a "custom" rule may
// reference. No expression text is ever evaluated; unregistered names never
// match.
type CustomPredicate func(ticket Request) bool

// Router evaluates rules then scores candidates to pick an agent. The rule
// set is a read-mostly snapshot: SetRules swaps it atomically when rule
// configuration changes, so in-flight evaluations keep a consistent view.
type Router struct {
	mu               sync.RWMutex
	rules            []models.RoutingRule
	customPredicates map[string]CustomPredicate
	defaultVIPTiers  map[models.CustomerTier]bool
}

// Config configures a Router.
type Config struct {
	Rules            []models.RoutingRule
	CustomPredicates map[string]CustomPredicate
	VIPTiers         map[models.CustomerTier]bool
}

// New builds a Router.
func New(cfg Config) *Router {
	vipTiers := cfg.VIPTiers
	if vipTiers == nil {
		vipTiers = map[models.CustomerTier]bool{
			models.TierVIP:        true,
			models.TierEnterprise: true,
		}
	}
	predicates := cfg.CustomPredicates
	if predicates == nil {
		predicates = map[string]CustomPredicate{}
	}
	rules := append([]models.RoutingRule{}, cfg.Rules...)
	sort.SliceStable(rules, func(i, j int) bool { return rules[i].Priority > rules[j].Priority })

	return &Router{
		rules:            rules,
		customPredicates: predicates,
		defaultVIPTiers:  vipTiers,
	}
}

// SetRules replaces the rule snapshot, re-sorting by priority descending.
func (r *Router) SetRules(rules []models.RoutingRule) {
	sorted := append([]models.RoutingRule{}, rules...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Priority > sorted[j].Priority })

	r.mu.Lock()
	r.rules = sorted
	r.mu.Unlock()
}

func (r *Router) ruleSnapshot() []models.RoutingRule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rules
}

// SelectCandidates narrows the full agent roster to the eligible set per the
// candidate-selection algorithm: capacity, VIP/critical gating with a
// fallback retry without those gates, then a working-hours filter with a
// fallback to the unfiltered online set.
func SelectCandidates(agents []*models.SupportAgent, req Request, now time.Time) []*models.SupportAgent {
	vipTiers := req.VIPTiers
	if vipTiers == nil {
		vipTiers = map[models.CustomerTier]bool{models.TierVIP: true, models.TierEnterprise: true}
	}

	base := make([]*models.SupportAgent, 0, len(agents))
	for _, a := range agents {
		if a.IsActive && a.Status == models.AgentOnline && a.HasCapacity() {
			base = append(base, a)
		}
	}

	gated := make([]*models.SupportAgent, 0, len(base))
	for _, a := range base {
		if vipTiers[req.CustomerTier] && !a.CanHandleVIP {
			continue
		}
		if req.Priority == 5 && !a.CanHandleCritical {
			continue
		}
		gated = append(gated, a)
	}
	if len(gated) == 0 {
		gated = base
	}

	withinHours := make([]*models.SupportAgent, 0, len(gated))
	for _, a := range gated {
		if isWithinWorkingHours(a.WorkingHours, now) {
			withinHours = append(withinHours, a)
		}
	}
	if len(withinHours) == 0 {
		withinHours = gated
	}

	return withinHours
}

// isWithinWorkingHours converts now into the agent's own timezone before
// comparing against their shift window. The original scorer this is
// modeled on compared against a bare UTC clock; doing the conversion
// per-agent here is a deliberate correctness improvement, since agents in
// different timezones would otherwise be evaluated against the wrong wall
// clock.
func isWithinWorkingHours(wh models.WorkingHours, now time.Time) bool {
	if wh.Start == "" || wh.End == "" {
		return true
	}
	loc, err := time.LoadLocation(wh.Timezone)
	if err != nil {
		loc = time.UTC
	}
	local := now.In(loc)

	weekday := int(local.Weekday()+6) % 7 // Monday=0 .. Sunday=6
	if len(wh.WorkingDays) > 0 {
		found := false
		for _, d := range wh.WorkingDays {
			if d == weekday {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	start, errS := parseHHMM(wh.Start)
	end, errE := parseHHMM(wh.End)
	if errS != nil || errE != nil {
		return true
	}
	cur := local.Hour()*60 + local.Minute()
	return cur >= start && cur <= end
}

var errMalformedTime = errors.New("malformed HH:MM time")

func parseHHMM(s string) (int, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, errMalformedTime
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, err
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, err
	}
	return h*60 + m, nil
}

// Route runs rule evaluation then, absent a terminal rule match, weighted
// scoring over the candidate set. It never mutates agent state; the caller
// commits the chosen agent's load increment transactionally.
func (r *Router) Route(ctx context.Context, agents []*models.SupportAgent, req Request) *Decision {
	now := req.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	candidates := SelectCandidates(agents, req, now)
	if len(candidates) == 0 {
		return &Decision{Reason: ReasonNoAvailable, Message: "no agents available to route to"}
	}

	if decision := r.evaluateRules(candidates, req, now); decision != nil {
		return decision
	}

	return r.score(candidates, req, nil)
}

// Reassign re-runs scoring with a set of agent ids excluded, used when a
// previous assignment must move (escalation, agent offline, capacity race).
func (r *Router) Reassign(ctx context.Context, agents []*models.SupportAgent, req Request, exclude map[string]bool) *Decision {
	now := req.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	candidates := SelectCandidates(agents, req, now)
	filtered := make([]*models.SupportAgent, 0, len(candidates))
	for _, a := range candidates {
		if !exclude[a.ID] {
			filtered = append(filtered, a)
		}
	}
	if len(filtered) == 0 {
		return &Decision{Reason: ReasonNoAvailable, Message: "no agents available after exclusions"}
	}
	return r.score(filtered, req, exclude)
}

// Recommend returns a read-only ranked list without ever selecting a winner
// for commit; it shares the scoring function with Route but skips rule
// evaluation's terminal actions, making it safe for preview/admin surfaces.
func (r *Router) Recommend(ctx context.Context, agents []*models.SupportAgent, req Request, limit int) []Alternative {
	now := req.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	candidates := SelectCandidates(agents, req, now)
	scored := r.scoreAll(candidates, req)
	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	out := make([]Alternative, 0, len(scored))
	for _, s := range scored {
		out = append(out, Alternative{AgentID: s.agent.ID, AgentName: s.agent.Name, Score: s.total, Reasons: s.reasons})
	}
	return out
}

func (r *Router) evaluateRules(candidates []*models.SupportAgent, req Request, now time.Time) *Decision {
	for _, rule := range r.ruleSnapshot() {
		if !rule.IsActive {
			continue
		}
		if !withinRuleWindow(rule, now) {
			continue
		}
		if len(rule.AppliesToSources) > 0 && !containsString(rule.AppliesToSources, req.Source) {
			continue
		}
		if len(rule.AppliesToCategories) > 0 && !containsString(rule.AppliesToCategories, req.Category) {
			continue
		}
		if !r.conditionMatches(rule, req) {
			continue
		}

		decision := r.applyAction(rule, candidates, req)
		if decision != nil {
			return decision
		}
		if rule.IsExclusive {
			return nil
		}
	}
	return nil
}

func withinRuleWindow(rule models.RoutingRule, now time.Time) bool {
	if rule.ActiveFrom != nil && now.Before(*rule.ActiveFrom) {
		return false
	}
	if rule.ActiveUntil != nil && now.After(*rule.ActiveUntil) {
		return false
	}
	if len(rule.ActiveDays) > 0 {
		weekday := int(now.Weekday()+6) % 7
		if !containsInt(rule.ActiveDays, weekday) {
			return false
		}
	}
	if rule.ActiveHoursStart != "" && rule.ActiveHoursEnd != "" {
		start, errS := parseHHMM(rule.ActiveHoursStart)
		end, errE := parseHHMM(rule.ActiveHoursEnd)
		if errS == nil && errE == nil {
			cur := now.Hour()*60 + now.Minute()
			if cur < start || cur > end {
				return false
			}
		}
	}
	return true
}

func (r *Router) conditionMatches(rule models.RoutingRule, req Request) bool {
	switch rule.Type {
	case models.RuleCategory:
		return containsString(rule.Conditions.Categories, req.Category)
	case models.RuleKeyword:
		haystack := strings.ToLower(req.Content + " " + req.Subject)
		return matchKeywords(haystack, rule.Conditions.Keywords, rule.Conditions.MatchMode)
	case models.RuleSentiment:
		for _, s := range rule.Conditions.Sentiments {
			if s == req.Sentiment {
				return true
			}
		}
		return false
	case models.RulePriority:
		min, max := rule.Conditions.MinPriority, rule.Conditions.MaxPriority
		if min == 0 {
			min = 1
		}
		if max == 0 {
			max = 5
		}
		return req.Priority >= min && req.Priority <= max
	case models.RuleCustomer:
		for _, t := range rule.Conditions.Tiers {
			if t == req.CustomerTier {
				return true
			}
		}
		return false
	case models.RuleLanguage:
		return containsString(rule.Conditions.Languages, req.Language)
	case models.RuleTime:
		return true // window already checked by withinRuleWindow
	case models.RuleCustom:
		predicate, ok := r.customPredicates[rule.Conditions.CustomPredicate]
		if !ok {
			logger.Warn("custom rule predicate not registered, defaulting to no-match",
				observability.String("predicate", rule.Conditions.CustomPredicate))
			return false
		}
		return predicate(req)
	default:
		return false
	}
}

func matchKeywords(haystack string, keywords []string, mode models.MatchMode) bool {
	if len(keywords) == 0 {
		return false
	}
	if mode == models.MatchAll {
		for _, kw := range keywords {
			if !strings.Contains(haystack, strings.ToLower(kw)) {
				return false
			}
		}
		return true
	}
	for _, kw := range keywords {
		if strings.Contains(haystack, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

func (r *Router) applyAction(rule models.RoutingRule, candidates []*models.SupportAgent, req Request) *Decision {
	switch rule.Action {
	case models.ActionAssignAgent:
		for _, a := range candidates {
			if a.ID == rule.ActionParams.AgentID {
				return &Decision{
					AgentID: a.ID, AgentName: a.Name, Reason: ReasonRuleBased,
					Confidence: 1.0, RuleName: rule.Name,
				}
			}
		}
		return nil // specified agent not in candidate set; fall through
	case models.ActionAssignTeam:
		var best *models.SupportAgent
		for _, a := range candidates {
			if a.Team != rule.ActionParams.Team {
				continue
			}
			if best == nil || a.CurrentLoad < best.CurrentLoad {
				best = a
			}
		}
		if best == nil {
			return nil
		}
		return &Decision{
			AgentID: best.ID, AgentName: best.Name, Team: rule.ActionParams.Team,
			Reason: ReasonRuleBased, Confidence: 0.9, RuleName: rule.Name,
		}
	case models.ActionEscalate:
		return &Decision{
			Team: rule.ActionParams.Team, Reason: ReasonEscalation,
			Confidence: 1.0, RuleName: rule.Name,
			EscalationReason: rule.ActionParams.Reason,
			Message:          rule.ActionParams.Message,
		}
	case models.ActionNotify, models.ActionAddTag, models.ActionSetPriority, models.ActionAutoReply, models.ActionSkipQueue:
		return nil // non-terminal; evaluation continues per IsExclusive
	default:
		return nil
	}
}

type scoredCandidate struct {
	agent     *models.SupportAgent
	total     float64
	breakdown map[string]float64
	reasons   []string
}

func (r *Router) scoreAll(candidates []*models.SupportAgent, req Request) []scoredCandidate {
	vipTiers := req.VIPTiers
	if vipTiers == nil {
		vipTiers = r.defaultVIPTiers
	}

	scored := make([]scoredCandidate, 0, len(candidates))
	for _, a := range candidates {
		breakdown := map[string]float64{}
		total := 50.0
		breakdown["base"] = 50

		if a.HasSkill(req.Category) {
			breakdown["skill_match"] = 30
			total += 30
		}
		if spec, ok := a.Specializations[req.Category]; ok {
			breakdown["specialization"] = 10 * spec
			total += 10 * spec
		} else {
			breakdown["specialization"] = 10 * 0.5
			total += 10 * 0.5
		}
		if a.HasLanguage(req.Language) {
			breakdown["language_match"] = 15
			total += 15
		}
		if req.Priority >= 4 {
			v := 5 * float64(a.ExperienceLevel)
			breakdown["experience"] = v
			total += v
		}
		if vipTiers[req.CustomerTier] && a.CanHandleVIP {
			breakdown["vip_handler"] = 20
			total += 20
		}
		if req.Priority == 5 && a.CanHandleCritical {
			breakdown["critical_handler"] = 20
			total += 20
		}
		if a.MaxLoad > 0 {
			penalty := 20 * (float64(a.CurrentLoad) / float64(a.MaxLoad))
			breakdown["load_penalty"] = -penalty
			total -= penalty
		}
		if a.Performance.HasCSAT {
			v := 5 * (a.Performance.CSAT - 3)
			breakdown["csat"] = v
			total += v
		}
		if a.Performance.HasQualityScore {
			v := 10 * (a.Performance.QualityScore / 100)
			breakdown["quality"] = v
			total += v
		}

		scored = append(scored, scoredCandidate{
			agent: a, total: total, breakdown: breakdown,
			reasons: reasonOrder(breakdown),
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].total != scored[j].total {
			return scored[i].total > scored[j].total
		}
		if scored[i].agent.CurrentLoad != scored[j].agent.CurrentLoad {
			return scored[i].agent.CurrentLoad < scored[j].agent.CurrentLoad
		}
		return scored[i].agent.ExperienceLevel > scored[j].agent.ExperienceLevel
	})
	return scored
}

// reasonOrder lists, in the spec-defined priority order, which named
// qualifiers fired for a candidate's breakdown.
func reasonOrder(breakdown map[string]float64) []string {
	order := []string{"skill_match", "vip_handler", "critical_handler", "language_match", "load_penalty"}
	reasons := make([]string, 0, len(order))
	for _, name := range order {
		if v, ok := breakdown[name]; ok && v != 0 {
			reasons = append(reasons, name)
		}
	}
	return reasons
}

func (r *Router) score(candidates []*models.SupportAgent, req Request, exclude map[string]bool) *Decision {
	scored := r.scoreAll(candidates, req)
	if len(scored) == 0 {
		return &Decision{Reason: ReasonNoAvailable, Message: "no candidates to score"}
	}

	winner := scored[0]
	confidence := 0.95
	if len(scored) > 1 {
		confidence = min64(0.5+(winner.total-scored[1].total)/100, 0.99)
	}

	reason := deriveReason(winner.reasons)

	alternatives := make([]Alternative, 0, 3)
	for _, s := range scored[1:] {
		if len(alternatives) >= 3 {
			break
		}
		alternatives = append(alternatives, Alternative{
			AgentID: s.agent.ID, AgentName: s.agent.Name, Score: s.total, Reasons: s.reasons,
		})
	}

	return &Decision{
		AgentID:        winner.agent.ID,
		AgentName:      winner.agent.Name,
		Reason:         reason,
		Confidence:     confidence,
		Score:          winner.total,
		ScoreBreakdown: winner.breakdown,
		Alternatives:   alternatives,
	}
}

func deriveReason(reasons []string) models.RoutingReason {
	if len(reasons) == 0 {
		return ReasonLoadBalance
	}
	switch reasons[0] {
	case "skill_match":
		return ReasonSkillMatch
	case "vip_handler":
		return ReasonVIPHandler
	case "critical_handler":
		return ReasonCriticalHandler
	case "language_match":
		return ReasonLanguageMatch
	default:
		return ReasonLoadBalance
	}
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func containsInt(list []int, v int) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func min64(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

// ToModel converts a Decision into the persisted Assignment model.
func ToModel(d *Decision) *models.Assignment {
	alts := make([]models.RoutingAlternative, 0, len(d.Alternatives))
	for _, a := range d.Alternatives {
		reasons := make([]models.RoutingReason, 0, len(a.Reasons))
		for _, r := range a.Reasons {
			reasons = append(reasons, reasonToModel(r))
		}
		alts = append(alts, models.RoutingAlternative{
			AgentID: a.AgentID, AgentName: a.AgentName, Score: a.Score, Reasons: reasons,
		})
	}
	return &models.Assignment{
		AgentID:          d.AgentID,
		AgentName:        d.AgentName,
		Team:             d.Team,
		Reason:           d.Reason,
		Confidence:       d.Confidence,
		Score:            d.Score,
		ScoreBreakdown:   d.ScoreBreakdown,
		Alternatives:     alts,
		RuleName:         d.RuleName,
		Message:          d.Message,
		EscalationReason: d.EscalationReason,
	}
}

func reasonToModel(qualifier string) models.RoutingReason {
	switch qualifier {
	case "skill_match":
		return models.ReasonSkillMatch
	case "vip_handler":
		return models.ReasonVIPHandler
	case "critical_handler":
		return models.ReasonCriticalHandler
	case "language_match":
		return models.ReasonLanguageMatch
	case "load_penalty":
		return models.ReasonLoadBalance
	default:
		return models.ReasonLoadBalance
	}
}
