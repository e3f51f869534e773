package domain

// BehaviorProfile summarizes a user's historical transaction behavior.
// Read-only input to the behavior layer; the engine never mutates it.
type BehaviorProfile struct {
	UserID string `json:"userId"`

	// AverageAmount is nil until the user has enough history
	// (MinProfileTransactions completed transactions).
	AverageAmount *float64 `json:"averageAmount,omitempty"`

	TransactionCount int `json:"transactionCount"`
}

// MinProfileTransactions is the history size below which the average
// is withheld and the amount-anomaly check is skipped.
const MinProfileTransactions = 3
