// Package gate guards credit-metered actions: it checks the caller's plan
// and balance before an action runs and debits the ledger once the action
// has succeeded.
package gate

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"creative-studio-backend/internal/credits"
	"creative-studio-backend/internal/models"
)

// ErrUpgradeRequired matches every *Error returned by the gate.
var ErrUpgradeRequired = errors.New("upgrade required")

type Reason string

const (
	// ReasonCredits means a free user's balance does not cover the cost.
	ReasonCredits Reason = "credits"
	// ReasonPro means the feature is reserved for the pro plan.
	ReasonPro Reason = "pro"
)

// Error is returned when an action is blocked. The caller should offer an
// upgrade (and, for ReasonCredits, a rewarded ad).
type Error struct {
	Feature models.Feature
	Reason  Reason
	Credits int
}

func (e *Error) Error() string {
	if e.Reason == ReasonPro {
		return fmt.Sprintf("%s is a Pro feature. Please upgrade to use it.", e.Feature)
	}
	return fmt.Sprintf("You're out of credits. Watch an ad or upgrade to Pro to keep using %s.", e.Feature)
}

func (e *Error) Is(target error) bool {
	return target == ErrUpgradeRequired
}

var proOnly = map[models.Feature]bool{
	models.Feature4KEnhance:        true,
	models.FeatureBackgroundCutout: true,
	models.FeatureVideoGeneration:  true,
}

// Cost returns the credit price of feature. Every metered feature costs one.
func Cost(feature models.Feature) int {
	return 1
}

// ProOnly reports whether free users are blocked from feature regardless of
// their balance.
func ProOnly(feature models.Feature) bool {
	return proOnly[feature]
}

type Gate struct {
	ledger *credits.Ledger
}

func New(ledger *credits.Ledger) *Gate {
	return &Gate{ledger: ledger}
}

// Check reports whether userID may use feature right now.
func (g *Gate) Check(ctx context.Context, userID string, feature models.Feature) (*models.UserState, error) {
	state, err := g.ledger.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	if state.Plan == models.PlanPro {
		return state, nil
	}
	if ProOnly(feature) {
		return state, &Error{Feature: feature, Reason: ReasonPro, Credits: state.Credits}
	}
	if state.Credits < Cost(feature) {
		return state, &Error{Feature: feature, Reason: ReasonCredits, Credits: state.Credits}
	}
	return state, nil
}

// Run checks the gate, runs action and debits the ledger only when action
// returns nil. A failed action costs nothing.
func (g *Gate) Run(ctx context.Context, userID string, feature models.Feature, action func(ctx context.Context) error) (*models.UserState, error) {
	if _, err := g.Check(ctx, userID, feature); err != nil {
		return nil, err
	}

	if err := action(ctx); err != nil {
		return nil, err
	}

	spent, state, err := g.ledger.Spend(ctx, userID, Cost(feature), feature)
	if err != nil {
		return nil, fmt.Errorf("failed to debit credits: %w", err)
	}
	if !spent {
		// Balance changed between check and debit. The result is already
		// delivered, so only log it.
		logrus.WithFields(logrus.Fields{
			"user_id": userID,
			"feature": feature,
		}).Warn("Action completed but debit was rejected")
	}
	return state, nil
}
