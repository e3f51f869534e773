// Package rules provides the CEL-Go based supplemental rule engine.
package rules

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/sikaguard/sikaguard/internal/domain"
)

// Engine compiles tenant-defined CEL expressions over extracted
// transaction fields and evaluates them after the built-in layers.
// An engine with no rules loaded evaluates to no hits.
type Engine struct {
	mu            sync.RWMutex
	env           *cel.Env
	compiledRules map[string]*CompiledRule
	maxWorkers    int
}

// CompiledRule holds a pre-compiled CEL program.
type CompiledRule struct {
	Config  *domain.RuleConfig
	Program cel.Program
}

// NewEngine creates a rule engine with the transaction field variables
// bound into the CEL environment.
func NewEngine(maxWorkers int) (*Engine, error) {
	if maxWorkers <= 0 {
		maxWorkers = 10
	}

	env, err := cel.NewEnv(
		cel.Variable("amount", cel.DoubleType),
		cel.Variable("tx_type", cel.StringType),
		cel.Variable("provider", cel.StringType),
		cel.Variable("counterpart_name", cel.StringType),
		cel.Variable("counterpart_number", cel.StringType),
		cel.Variable("hour", cel.IntType),
		cel.Variable("has_reference", cel.BoolType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{
		env:           env,
		compiledRules: make(map[string]*CompiledRule),
		maxWorkers:    maxWorkers,
	}, nil
}

// ValidateRule compiles a rule without mutating loaded engine rules.
func (e *Engine) ValidateRule(cfg *domain.RuleConfig) error {
	if cfg == nil {
		return fmt.Errorf("rule config is required")
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	_, err := e.compileRule(cfg)
	return err
}

// LoadRule compiles and loads a rule into the engine.
func (e *Engine) LoadRule(cfg *domain.RuleConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	compiled, err := e.compileRule(cfg)
	if err != nil {
		return err
	}

	e.compiledRules[cfg.ID] = compiled
	return nil
}

// LoadRules compiles and loads all enabled rules.
func (e *Engine) LoadRules(configs []*domain.RuleConfig) error {
	for _, cfg := range configs {
		if cfg.Enabled {
			if err := e.LoadRule(cfg); err != nil {
				return err
			}
		}
	}
	return nil
}

// ReloadRules atomically replaces the loaded rule set. Enables
// hot-reloading from the database without dropping in-flight
// evaluations.
func (e *Engine) ReloadRules(configs []*domain.RuleConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	newRules := make(map[string]*CompiledRule)
	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}
		compiled, err := e.compileRule(cfg)
		if err != nil {
			return err
		}
		newRules[cfg.ID] = compiled
	}

	e.compiledRules = newRules
	return nil
}

// Evaluate runs every loaded rule against the transaction in parallel
// and returns the hits. A rule that errors at runtime is logged and
// skipped; it never fails the analysis.
func (e *Engine) Evaluate(ctx context.Context, tx *domain.ParsedTransaction) []domain.RuleHit {
	e.mu.RLock()
	rules := make([]*CompiledRule, 0, len(e.compiledRules))
	for _, rule := range e.compiledRules {
		rules = append(rules, rule)
	}
	e.mu.RUnlock()

	if len(rules) == 0 {
		return nil
	}

	activation := activationFor(tx)

	hits := make([]*domain.RuleHit, len(rules))
	var wg sync.WaitGroup

	sem := make(chan struct{}, e.maxWorkers)

	for i, rule := range rules {
		wg.Add(1)
		go func(idx int, r *CompiledRule) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			out, _, err := r.Program.Eval(activation)
			if err != nil {
				slog.Warn("rule evaluation failed",
					"rule_id", r.Config.ID,
					"error", err,
				)
				return
			}
			if fired, ok := out.(types.Bool); ok && bool(fired) {
				hits[idx] = &domain.RuleHit{
					RuleID:  r.Config.ID,
					Penalty: r.Config.Penalty,
					Factor:  r.Config.Factor,
				}
			}
		}(i, rule)
	}

	wg.Wait()

	var fired []domain.RuleHit
	for _, hit := range hits {
		if hit != nil {
			fired = append(fired, *hit)
		}
	}
	// Stable output order regardless of map iteration.
	sort.Slice(fired, func(i, j int) bool { return fired[i].RuleID < fired[j].RuleID })
	return fired
}

// activationFor maps extracted transaction fields to CEL variables.
// Absent optional fields bind to zero values.
func activationFor(tx *domain.ParsedTransaction) map[string]any {
	amount := 0.0
	if tx.Amount != nil {
		amount = *tx.Amount
	}
	hour, known := tx.Hour()
	if !known {
		hour = -1
	}

	return map[string]any{
		"amount":             amount,
		"tx_type":            string(tx.Type),
		"provider":           string(tx.Provider),
		"counterpart_name":   tx.CounterpartName,
		"counterpart_number": tx.CounterpartNumber,
		"hour":               hour,
		"has_reference":      tx.Reference != "",
	}
}

// RulesCount returns the number of loaded rules.
func (e *Engine) RulesCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiledRules)
}

// GetLoadedRules returns the currently loaded rule configurations.
func (e *Engine) GetLoadedRules() []*domain.RuleConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()

	rules := make([]*domain.RuleConfig, 0, len(e.compiledRules))
	for _, compiled := range e.compiledRules {
		rules = append(rules, compiled.Config)
	}
	return rules
}

// Close cleans up the engine.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.compiledRules = make(map[string]*CompiledRule)
	return nil
}

func (e *Engine) compileRule(cfg *domain.RuleConfig) (*CompiledRule, error) {
	ast, issues := e.env.Compile(cfg.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile rule %s: %w", cfg.ID, issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("rule %s: expression must return bool, got %s", cfg.ID, ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for rule %s: %w", cfg.ID, err)
	}

	return &CompiledRule{
		Config:  cfg,
		Program: program,
	}, nil
}
