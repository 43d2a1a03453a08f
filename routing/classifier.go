package routing

import (
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/swarmroute/swarmroute/config"
	"github.com/swarmroute/swarmroute/types"
)

// DomainKeywords maps a domain tag to its trigger keywords. Ordered:
// detection order is the table order and downstream selection depends on it.
type DomainKeywords struct {
	Domain   string
	Keywords []string
}

// defaultDomainTable is the fixed domain→keyword table. A query may match
// zero, one, or many domains.
func defaultDomainTable() []DomainKeywords {
	return []DomainKeywords{
		{"dns", []string{"dns", "domain name", "spf", "dkim", "dmarc", "nameserver", "mx record", "a record", "cname"}},
		{"email", []string{"email", "mailbox", "smtp", "imap", "outlook", "exchange online", "deliverability"}},
		{"azure", []string{"azure", "entra", "active directory", "tenant", "microsoft 365", "m365", "intune"}},
		{"security", []string{"security", "audit", "vulnerability", "compliance", "phishing", "mfa", "firewall", "breach"}},
		{"finance", []string{"budget", "invoice", "financial", "cash flow", "pricing", "forecast"}},
		{"web", []string{"website", "wordpress", "hosting", "ssl", "certificate", "landing page"}},
	}
}

// categoryPatterns are priority-ordered: the first family with a match wins.
var categoryPatterns = []struct {
	category types.Category
	markers  []string
}{
	{types.CategoryTechnicalQuestion, []string{
		"how do i", "how to", "how can i", "what is", "what are", "why is",
		"why does", "troubleshoot", "not working", "error",
	}},
	{types.CategoryOperationalTask, []string{
		"set up", "setup", "install", "deploy", "migrate", "configure",
		"create", "update", "renew", "transfer", "remove", "delete", "add",
	}},
	{types.CategoryStrategicPlanning, []string{
		"strategy", "roadmap", "long-term", "long term", "should we",
		"plan for", "growth", "vision",
	}},
	{types.CategoryAnalysisResearch, []string{
		"analyze", "analyse", "compare", "evaluate", "research", "review",
		"investigate", "assess",
	}},
	{types.CategoryCreativeGeneration, []string{
		"write", "draft", "generate", "compose", "brainstorm",
	}},
}

// Complexity modifier marker phrases.
var (
	multiStepMarkers   = []string{"and then", "after that", "followed by", "step by step", ", then"}
	integrationMarkers = []string{"integrate", "integration", "connect", "sync with"}
	migrationMarkers   = []string{"migrate", "migration", "move to", "switch to", "transfer to"}
	customMarkers      = []string{"custom", "bespoke", "tailored", "special requirement"}
	urgencyMarkers     = []string{"urgent", "asap", "immediately", "critical", "right away", "emergency"}
)

// Classifier turns raw user text into a structured Intent.
type Classifier struct {
	cfg         config.RoutingConfig
	table       []DomainKeywords
	recognizers []Recognizer
	logger      *zap.Logger
}

// ClassifierOption configures a Classifier.
type ClassifierOption func(*Classifier)

// WithDomainTable replaces the built-in domain→keyword table.
func WithDomainTable(table []DomainKeywords) ClassifierOption {
	return func(c *Classifier) { c.table = table }
}

// WithRecognizers replaces the built-in entity recognizers.
func WithRecognizers(recognizers ...Recognizer) ClassifierOption {
	return func(c *Classifier) { c.recognizers = recognizers }
}

// NewClassifier creates a classifier with the given routing weights.
func NewClassifier(cfg config.RoutingConfig, logger *zap.Logger, opts ...ClassifierOption) *Classifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Classifier{
		cfg:         cfg,
		table:       defaultDomainTable(),
		recognizers: defaultRecognizers(),
		logger:      logger.With(zap.String("component", "intent_classifier")),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify analyzes a query and returns its Intent. Classification always
// succeeds: entity recognizer failures degrade that category and are logged,
// never propagated.
func (c *Classifier) Classify(query string) types.Intent {
	lower := strings.ToLower(query)

	intent := types.Intent{
		RawQuery: query,
		Domains:  c.detectDomains(lower),
		Category: c.detectCategory(lower),
		Entities: c.extractEntities(query),
	}
	intent.Complexity = c.scoreComplexity(lower, intent)

	c.logger.Debug("classified query",
		zap.Strings("domains", intent.Domains),
		zap.String("category", string(intent.Category)),
		zap.Int("complexity", intent.Complexity),
	)
	return intent
}

// detectDomains returns matched domain tags in table order.
func (c *Classifier) detectDomains(lower string) []string {
	var domains []string
	for _, entry := range c.table {
		for _, kw := range entry.Keywords {
			if strings.Contains(lower, kw) {
				domains = append(domains, entry.Domain)
				break
			}
		}
	}
	return domains
}

// detectCategory picks the first pattern family with a marker present.
// Default is operational_task.
func (c *Classifier) detectCategory(lower string) types.Category {
	for _, family := range categoryPatterns {
		for _, marker := range family.markers {
			if strings.Contains(lower, marker) {
				return family.category
			}
		}
	}
	return types.CategoryOperationalTask
}

// extractEntities runs every recognizer, skipping ones that fail.
func (c *Classifier) extractEntities(query string) map[string][]types.Entity {
	entities := make(map[string][]types.Entity)
	for _, r := range c.recognizers {
		found, err := r.Recognize(query)
		if err != nil {
			c.logger.Warn("entity recognizer failed, classification degraded",
				zap.String("kind", string(r.Kind())),
				zap.String("code", string(types.ErrClassificationDegraded)),
				zap.Error(err),
			)
			continue
		}
		if len(found) > 0 {
			entities[string(r.Kind())] = found
		}
	}
	return entities
}

// scoreComplexity applies the additive modifier weights to the base score
// and clamps to [1,10]. Each modifier is monotonic: it only ever adds.
func (c *Classifier) scoreComplexity(lower string, intent types.Intent) int {
	score := c.cfg.BaseComplexity

	if len(intent.Domains) >= 2 {
		score += c.cfg.WeightMultiDomain
	}
	if containsAny(lower, multiStepMarkers) {
		score += c.cfg.WeightMultiStep
	}
	if c.hasLargeQuantity(intent) {
		score += c.cfg.WeightScale
	}
	if containsAny(lower, integrationMarkers) {
		score += c.cfg.WeightIntegration
	}
	if containsAny(lower, migrationMarkers) {
		score += c.cfg.WeightMigration
	}
	if containsAny(lower, customMarkers) {
		score += c.cfg.WeightCustom
	}
	if containsAny(lower, urgencyMarkers) {
		score += c.cfg.WeightUrgency
	}

	if score < 1 {
		score = 1
	}
	if score > 10 {
		score = 10
	}
	return score
}

func (c *Classifier) hasLargeQuantity(intent types.Intent) bool {
	for _, e := range intent.Entities[string(types.EntityQuantity)] {
		n, err := strconv.Atoi(e.Value)
		if err == nil && n >= c.cfg.ScaleThreshold {
			return true
		}
	}
	return false
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}
