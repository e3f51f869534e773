// Package velocity derives the analyzer's repository-backed inputs:
// trailing-window transaction counts, cached behavior profiles, and
// cached blacklist verdicts.
package velocity

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sikaguard/sikaguard/internal/domain"
	"github.com/sikaguard/sikaguard/internal/risk"
)

// profileTTL bounds staleness of cached behavior profiles.
const profileTTL = 5 * time.Minute

// blacklistTTL bounds how long a blacklist verdict can lag a
// management change. Kept short: a fresh entry must bite quickly.
const blacklistTTL = time.Minute

// Service reads a user's recent transactions and reduces them to the
// counts and averages the scoring layers need. The cache in front of
// profile reads is optional.
type Service struct {
	repo  domain.Repository
	cache domain.Cache
}

func New(repo domain.Repository, cache domain.Cache) *Service {
	return &Service{repo: repo, cache: cache}
}

// Counts returns how many of the user's transactions fall inside the
// 1h, 3h and 24h windows ending at the given time. The transaction
// being analyzed is excluded so it never counts against itself.
func (s *Service) Counts(ctx context.Context, tenantID, userID string, at time.Time, excludeTxID string) (risk.WindowCounts, error) {
	since := at.Add(-24 * time.Hour)

	history, err := s.repo.GetTransactionsByUser(ctx, tenantID, userID, since)
	if err != nil {
		return risk.WindowCounts{}, fmt.Errorf("loading transaction history: %w", err)
	}

	var counts risk.WindowCounts
	for _, tx := range history {
		if tx.ID == excludeTxID {
			continue
		}
		ts := tx.EffectiveTime()
		if ts.After(at) {
			continue
		}
		age := at.Sub(ts)
		switch {
		case age <= time.Hour:
			counts.LastHour++
			counts.Last3h++
			counts.Last24h++
		case age <= 3*time.Hour:
			counts.Last3h++
			counts.Last24h++
		case age <= 24*time.Hour:
			counts.Last24h++
		}
	}
	return counts, nil
}

// Profile returns the user's behavior profile, consulting the cache
// first when one is configured. Cache errors fall through to the
// repository read.
func (s *Service) Profile(ctx context.Context, tenantID, userID string) (*domain.BehaviorProfile, error) {
	if s.cache != nil {
		profile, err := s.cache.GetProfile(ctx, tenantID, userID)
		if err != nil {
			slog.Warn("profile cache read failed",
				"tenant_id", tenantID,
				"user_id", userID,
				"error", err,
			)
		} else if profile != nil {
			return profile, nil
		}
	}

	profile, err := s.repo.GetBehaviorProfile(ctx, tenantID, userID)
	if err != nil {
		return nil, fmt.Errorf("loading behavior profile: %w", err)
	}

	if s.cache != nil && profile != nil {
		if err := s.cache.SetProfile(ctx, tenantID, userID, profile, profileTTL); err != nil {
			slog.Warn("profile cache write failed",
				"tenant_id", tenantID,
				"user_id", userID,
				"error", err,
			)
		}
	}
	return profile, nil
}

// Blacklisted reports whether a counterpart identity is blocked,
// consulting the cache first when one is configured. Both verdicts are
// cached; blacklistTTL bounds how stale either can get.
func (s *Service) Blacklisted(ctx context.Context, tenantID, identity string) (bool, error) {
	key := "blacklist:" + identity

	if s.cache != nil {
		val, err := s.cache.Get(ctx, tenantID, key)
		if err != nil {
			slog.Warn("blacklist cache read failed",
				"tenant_id", tenantID,
				"error", err,
			)
		} else if val != nil {
			return string(val) == "1", nil
		}
	}

	hit, err := s.repo.IsBlacklisted(ctx, tenantID, identity)
	if err != nil {
		return false, fmt.Errorf("checking blacklist: %w", err)
	}

	if s.cache != nil {
		verdict := []byte("0")
		if hit {
			verdict = []byte("1")
		}
		if err := s.cache.Set(ctx, tenantID, key, verdict, blacklistTTL); err != nil {
			slog.Warn("blacklist cache write failed",
				"tenant_id", tenantID,
				"error", err,
			)
		}
	}
	return hit, nil
}
