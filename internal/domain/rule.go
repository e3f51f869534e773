package domain

// RuleConfig defines a supplemental detection rule. Rules are CEL
// expressions over the extracted transaction fields, evaluated after
// the built-in layers; a rule that fires adds its penalty to the
// composite score and its factor string to the result.
type RuleConfig struct {
	ID          string `json:"id"`
	TenantID    string `json:"tenantId"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Version     string `json:"version"`

	// CEL expression; must return bool.
	Expression string `json:"expression"`

	// Penalty added to the composite score when the expression is true.
	Penalty int `json:"penalty"`

	// Factor is the human-readable reason attached when the rule fires.
	Factor string `json:"factor"`

	// Whether rule is active
	Enabled bool `json:"enabled"`
}

// RuleHit is the outcome of a fired supplemental rule.
type RuleHit struct {
	RuleID  string `json:"ruleId"`
	Penalty int    `json:"penalty"`
	Factor  string `json:"factor"`
}
