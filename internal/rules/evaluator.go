package rules

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/orlcnr/mesa-core/pkg/db/models"
	pkgerrors "github.com/orlcnr/mesa-core/pkg/errors"
)

// Rule keys the core consults before guarded actions.
const (
	KeyCancelAfterPreparation = "cancel_after_preparation"
	KeyDineInRequiresTable    = "dine_in_requires_table"
	KeyPreventDeleteReferenced = "prevent_delete_if_referenced"
)

// Evaluator answers "may this operation proceed?" synchronously, inside the
// caller's transaction. Rule authoring is external; the core only reads the
// stored verdict.
type Evaluator interface {
	Check(ctx context.Context, tx *gorm.DB, restaurantID uuid.UUID, key string, ruleCtx map[string]any) error
}

type evaluator struct {
	db *gorm.DB
}

// NewEvaluator builds the storage-backed rule evaluator.
func NewEvaluator(db *gorm.DB) Evaluator {
	return &evaluator{db: db}
}

// Check returns nil when the action is allowed. A missing or disabled rule
// row means allow; an enabled row denies with its configured reason.
func (e *evaluator) Check(ctx context.Context, tx *gorm.DB, restaurantID uuid.UUID, key string, ruleCtx map[string]any) error {
	if restaurantID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "restaurant id required")
	}
	if key == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "rule key required")
	}

	conn := e.db
	if tx != nil {
		conn = tx
	}

	var rule models.Rule
	err := conn.WithContext(ctx).
		Where("restaurant_id = ? AND key = ?", restaurantID, key).
		First(&rule).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load rule")
	}
	if !rule.Enabled {
		return nil
	}

	reason := rule.DenyReason
	if reason == "" {
		reason = fmt.Sprintf("action blocked by rule %q", key)
	}
	return pkgerrors.New(pkgerrors.CodePolicyDenied, reason).WithDetails(ruleCtx)
}
