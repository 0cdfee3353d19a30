// Package pipeline coordinates the seven-step ticket enrichment and routing
// process: language detection, classification, sentiment analysis, priority
// scoring, routing with transactional assignment, knowledge base suggestion,
// and finalization. It runs either inline (sync) or via a background worker
// fed by a queue.Queue (async).
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ticketflow/engine/observability"
	"github.com/ticketflow/engine/ticketing/classify"
	ticketingconfig "github.com/ticketflow/engine/ticketing/config"
	"github.com/ticketflow/engine/ticketing/dedup"
	"github.com/ticketflow/engine/ticketing/knowledgebase"
	"github.com/ticketflow/engine/ticketing/models"
	"github.com/ticketflow/engine/ticketing/normalize"
	"github.com/ticketflow/engine/ticketing/priority"
	"github.com/ticketflow/engine/ticketing/queue"
	"github.com/ticketflow/engine/ticketing/routing"
	"github.com/ticketflow/engine/ticketing/sentiment"
	"github.com/ticketflow/engine/ticketing/storage"
	"github.com/ticketflow/engine/validation"
)

var logger = observability.NewLogger(nil)

const defaultSource = "api"

// Deps wires the Coordinator's collaborators. Classifier, SentimentAnalyzer,
// Router, and Store are required; KnowledgeBase, Queue, and DedupGuard are
// optional — their absence just disables the feature they back (suggested
// responses, async processing, idempotent re-submission).
type Deps struct {
	Store             storage.Store
	Classifier        *classify.Classifier
	SentimentAnalyzer *sentiment.Analyzer
	Router            *routing.Router
	KnowledgeBase     *knowledgebase.KnowledgeBase
	Queue             queue.Queue
	DedupGuard        *dedup.Guard
	Config            *ticketingconfig.Config

	// Metrics and Tracer default to the process-wide collectors (no-ops
	// unless the host enabled them).
	Metrics *observability.MetricsCollector
	Tracer  *observability.Tracer
}

// Coordinator is the pipeline's entry point: Submit validates and persists a
// ticket, then runs or enqueues the seven-step process.
type Coordinator struct {
	store      storage.Store
	classifier *classify.Classifier
	sentiment  *sentiment.Analyzer
	router     *routing.Router
	kb         *knowledgebase.KnowledgeBase
	queue      queue.Queue
	dedupGuard *dedup.Guard
	cfg        *ticketingconfig.Config
	metrics    *observability.MetricsCollector
	tracer     *observability.Tracer
}

// New builds a Coordinator. Panics if a required dependency is missing,
// mirroring how this codebase's other constructors fail fast on misuse
// rather than deferring the nil dereference.
func New(deps Deps) *Coordinator {
	if deps.Store == nil || deps.Classifier == nil || deps.SentimentAnalyzer == nil || deps.Router == nil {
		panic("pipeline: Store, Classifier, SentimentAnalyzer, and Router are required")
	}
	cfg := deps.Config
	if cfg == nil {
		cfg = &ticketingconfig.Config{
			AssignmentRetryAttempts: 3,
			PipelineDeadlineSeconds: 300,
		}
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = observability.GetMetrics()
	}
	tracer := deps.Tracer
	if tracer == nil {
		tracer = observability.GetTracer()
	}
	return &Coordinator{
		store:      deps.Store,
		classifier: deps.Classifier,
		sentiment:  deps.SentimentAnalyzer,
		router:     deps.Router,
		kb:         deps.KnowledgeBase,
		queue:      deps.Queue,
		dedupGuard: deps.DedupGuard,
		cfg:        cfg,
		metrics:    metrics,
		tracer:     tracer,
	}
}

// SubmitRequest mirrors the external ticket-submission contract.
type SubmitRequest struct {
	Content       string
	Subject       string
	CustomerEmail string
	CustomerName  string
	CustomerTier  models.CustomerTier

	ExternalID     string
	ExternalSystem string
	Source         string
	Channel        string

	Language     string
	Tags         []string
	CustomFields map[string]string

	ProcessAsync bool
	SkipRouting  bool
}

// SubmitResult is returned once a ticket is created; its Status tells the
// caller whether enrichment already ran or was only queued.
type SubmitResult struct {
	TicketID string
	Status   string // processed, queued, failed

	Classification *models.Classification
	Sentiment      *models.Sentiment
	Priority       *models.Priority
	Routing        *models.Assignment

	SuggestedResponses []models.SuggestedResponse
	ProcessingTimeMs   int64
	Error              string
}

// Submit validates req, persists a new ticket, then runs or enqueues
// processing depending on ProcessAsync.
func (c *Coordinator) Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	if c.dedupGuard != nil && req.ExternalID != "" && req.ExternalSystem != "" {
		key := dedup.Key(req.ExternalSystem, req.ExternalID)
		duplicate, err := c.dedupGuard.CheckAndMark(ctx, key)
		if err != nil {
			logger.Warn("pipeline: dedup check failed, proceeding without guard", observability.Err(err))
		} else if duplicate {
			return nil, &Error{Kind: KindConflict, Message: fmt.Sprintf("ticket already submitted for %s", key)}
		}
	}

	ticket := buildTicket(req)

	if err := c.store.Tickets().Create(ctx, ticket); err != nil {
		return nil, dependencyErr("failed to persist ticket", err)
	}

	async := req.ProcessAsync
	if async && c.queue != nil {
		if err := c.queue.Enqueue(ctx, ticket.ID); err != nil {
			logger.Error("pipeline: failed to enqueue ticket, falling back to sync processing",
				observability.String("ticket_id", ticket.ID), observability.Err(err))
			async = false
		} else {
			c.metrics.RecordTicketSubmitted(ticket.Source, string(ticket.CustomerTier), "async")
			return &SubmitResult{TicketID: ticket.ID, Status: "queued"}, nil
		}
	}

	c.metrics.RecordTicketSubmitted(ticket.Source, string(ticket.CustomerTier), "sync")

	start := time.Now()
	c.processTicket(ctx, ticket, "sync")
	elapsed := time.Since(start)

	return &SubmitResult{
		TicketID:           ticket.ID,
		Status:             "processed",
		Classification:     ticket.Classification,
		Sentiment:          ticket.Sentiment,
		Priority:           ticket.Priority,
		Routing:            ticket.Assignment,
		SuggestedResponses: ticket.SuggestedResponses,
		ProcessingTimeMs:   elapsed.Milliseconds(),
		Error:              ticket.ProcessingError,
	}, nil
}

func validate(req SubmitRequest) error {
	err := validation.NewTicketValidator().
		ValidateContent(req.Content).
		ValidateSubject(req.Subject).
		ValidateCustomerEmail(req.CustomerEmail).
		ValidateTier(string(req.CustomerTier)).
		ValidateLanguage(req.Language).
		ValidateTags(req.Tags).
		Validate()
	if err != nil {
		return &Error{Kind: KindValidation, Message: err.Error(), Cause: err}
	}
	return nil
}

func buildTicket(req SubmitRequest) *models.Ticket {
	cleaned, _ := normalize.Clean(req.Content, normalize.DefaultCleanOptions())

	tier := req.CustomerTier
	if tier == "" {
		tier = models.TierStandard
	}
	source := req.Source
	if source == "" {
		source = defaultSource
	}

	now := time.Now().UTC()
	return &models.Ticket{
		ID:             uuid.New().String(),
		Content:        cleaned,
		Subject:        req.Subject,
		CustomerEmail:  req.CustomerEmail,
		CustomerName:   req.CustomerName,
		CustomerTier:   tier,
		ExternalID:     req.ExternalID,
		ExternalSystem: req.ExternalSystem,
		Source:         source,
		Channel:        req.Channel,
		Language:       req.Language,
		Tags:           req.Tags,
		CustomFields:   req.CustomFields,
		SkipRouting:    req.SkipRouting,
		Status:         models.StatusNew,
		IsProcessed:    false,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// processTicket runs the seven-step enrichment and routing sequence against
// an already-persisted ticket, bounded by the per-ticket deadline. Steps 1-4
// and 6 degrade gracefully on failure (recording processing_error) rather
// than aborting; step 5's capacity race is retried a bounded number of times
// before the ticket is persisted unassigned.
func (c *Coordinator) processTicket(ctx context.Context, ticket *models.Ticket, mode string) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.PipelineDeadline())
	defer cancel()

	started := time.Now()
	ctx, span := c.tracer.StartPipelineSpan(ctx, ticket.ID, mode)
	defer span.End()

	var errs []string
	recordErr := func(step string, err error) {
		errs = append(errs, fmt.Sprintf("%s: %v", step, err))
		logger.Warn("pipeline: step degraded", observability.String("ticket_id", ticket.ID),
			observability.String("step", step), observability.Err(err))
	}
	step := func(name string, fn func(ctx context.Context) error) {
		stepCtx, stepSpan := c.tracer.StartStepSpan(ctx, name, ticket.ID)
		start := time.Now()
		err := fn(stepCtx)
		c.metrics.RecordPipelineStep(name, time.Since(start), err)
		c.tracer.EndSpan(stepSpan, err)
		if err != nil {
			recordErr(name, err)
		}
	}

	// Step 1: language detection.
	if ticket.Language == "" {
		lang, _ := normalize.DetectLanguage(ticket.Content)
		ticket.Language = lang
	}

	// Step 2: classification.
	step("classification", func(ctx context.Context) error {
		classification, err := c.classifier.Classify(ctx, ticket.Content, ticket.Language, true)
		if classification != nil {
			ticket.Classification = classify.ToModel(classification)
			c.metrics.RecordClassification(classification.PrimaryCategory, classification.Method)
		}
		return err
	})

	// Step 3: sentiment.
	step("sentiment", func(ctx context.Context) error {
		sentimentResult, err := c.sentiment.Analyze(ctx, ticket.Content, ticket.Language)
		if sentimentResult != nil {
			ticket.Sentiment = sentiment.ToModel(sentimentResult)
			c.metrics.RecordSentiment(string(ticket.Sentiment.Label))
		}
		return err
	})

	// Step 4: priority, plus the SLA due date derived from the category's
	// SLA hours and the customer tier's multiplier.
	category := ""
	if ticket.Classification != nil {
		category = ticket.Classification.PrimaryCategory
	}
	categoryBoost, slaHours := c.categoryFactors(ctx, category)

	sentimentLabel := models.SentimentNeutral
	angerLevel := 0.0
	if ticket.Sentiment != nil {
		sentimentLabel = ticket.Sentiment.Label
		angerLevel = ticket.Sentiment.AngerLevel
	}
	ticket.Priority = priority.Calculate(priority.Request{
		Text:          ticket.Content,
		Sentiment:     sentimentLabel,
		AngerLevel:    angerLevel,
		CustomerTier:  ticket.CustomerTier,
		Category:      category,
		Language:      ticket.Language,
		CategoryBoost: categoryBoost,
	})
	c.metrics.RecordPriority(string(ticket.Priority.Level))

	due := ticket.CreatedAt.Add(time.Duration(slaHours * ticket.CustomerTier.SLAMultiplier() * float64(time.Hour)))
	ticket.SLADueAt = &due

	// Step 5: routing and transactional assignment.
	if ticket.SkipRouting {
		ticket.Assignment = &models.Assignment{Reason: models.ReasonSkipped}
		c.metrics.RecordAssignment(string(models.ReasonSkipped), "skipped")
	} else {
		step("routing", func(ctx context.Context) error {
			return c.assignTicket(ctx, ticket)
		})
		if ticket.Assignment != nil {
			outcome := "committed"
			if ticket.Assignment.AgentID == "" {
				outcome = "unassigned"
			}
			c.metrics.RecordAssignment(string(ticket.Assignment.Reason), outcome)
		}
	}

	// Step 6: knowledge base suggestions; absence of a KB or a lookup
	// failure is non-fatal.
	if c.kb != nil {
		step("suggested_responses", func(ctx context.Context) error {
			suggestions, err := c.kb.GenerateSuggestedResponses(ctx, ticket.Content, category, ticket.Language, 3)
			if err != nil {
				return err
			}
			ticket.SuggestedResponses = suggestions
			return nil
		})
	}

	// Step 7: finalize.
	ticket.IsProcessed = true
	ticket.Status = models.StatusOpen
	if len(errs) > 0 {
		ticket.ProcessingError = strings.Join(errs, "; ")
	}
	ticket.UpdatedAt = time.Now().UTC()

	if err := c.store.Tickets().Update(ctx, ticket); err != nil {
		logger.Error("pipeline: failed to persist processed ticket",
			observability.String("ticket_id", ticket.ID), observability.Err(err))
	}

	c.metrics.RecordTicketProcessed(len(errs) > 0, mode, time.Since(started))
}

func (c *Coordinator) categoryFactors(ctx context.Context, category string) (boost int, slaHours float64) {
	slaHours = 24
	if category == "" {
		return 0, slaHours
	}
	cat, err := c.store.Categories().Get(ctx, category)
	if err != nil || cat == nil {
		return 0, slaHours
	}
	if cat.SLAHours > 0 {
		slaHours = cat.SLAHours
	}
	return cat.PriorityBoost, slaHours
}

// assignTicket runs the Router then commits the decision transactionally,
// retrying with the losing agent excluded when the commit loses a capacity
// race. Exhausting retries (or finding no candidates at all) persists the
// ticket unassigned with reason no_available_agents, which is not treated
// as a pipeline failure.
func (c *Coordinator) assignTicket(ctx context.Context, ticket *models.Ticket) error {
	agents, err := c.store.Agents().List(ctx, models.ListAgentsRequest{Limit: 1000})
	if err != nil {
		return fmt.Errorf("failed to list agents: %w", err)
	}

	req := c.routingRequest(ticket)

	exclude := map[string]bool{}
	attempts := c.cfg.AssignmentRetryAttempts
	if attempts <= 0 {
		attempts = 3
	}

	var decision *routing.Decision
	for attempt := 0; attempt < attempts; attempt++ {
		if len(exclude) == 0 {
			decision = c.router.Route(ctx, agents, req)
		} else {
			decision = c.router.Reassign(ctx, agents, req, exclude)
		}
		if decision.AgentID == "" {
			ticket.Assignment = &models.Assignment{Reason: decision.Reason, Message: decision.Message}
			return nil
		}

		tx, err := c.store.Begin(ctx)
		if err != nil {
			return fmt.Errorf("failed to begin assignment transaction: %w", err)
		}

		assignment := routing.ToModel(decision)
		err = tx.AssignTicket(ctx, ticket.ID, decision.AgentID, "", assignment)
		if err == nil {
			if cerr := tx.Commit(); cerr != nil {
				return fmt.Errorf("failed to commit assignment: %w", cerr)
			}
			ticket.Assignment = assignment
			return nil
		}

		_ = tx.Rollback()
		if err == storage.ErrAgentAtCapacity {
			c.metrics.RecordCapacityRetry()
			exclude[decision.AgentID] = true
			continue
		}
		return fmt.Errorf("failed to assign ticket: %w", err)
	}

	ticket.Assignment = &models.Assignment{
		Reason:  models.ReasonNoAvailableAgents,
		Message: "exhausted assignment retries under capacity contention",
	}
	return nil
}
