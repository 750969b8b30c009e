package rules

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/orlcnr/mesa-core/pkg/db/models"
	pkgerrors "github.com/orlcnr/mesa-core/pkg/errors"
)

func setupRulesTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	schema := `
CREATE TABLE IF NOT EXISTS rules (
  id TEXT PRIMARY KEY,
  restaurant_id TEXT NOT NULL,
  key TEXT NOT NULL,
  enabled INTEGER NOT NULL DEFAULT 0,
  deny_reason TEXT,
  created_at DATETIME,
  updated_at DATETIME,
  UNIQUE (restaurant_id, key)
);`
	require.NoError(t, db.Exec(schema).Error)
	return db
}

func seedRule(t *testing.T, db *gorm.DB, restaurantID uuid.UUID, key string, enabled bool, reason string) {
	t.Helper()
	rule := models.Rule{
		ID:           uuid.New(),
		RestaurantID: restaurantID,
		Key:          key,
		Enabled:      enabled,
		DenyReason:   reason,
	}
	require.NoError(t, db.Create(&rule).Error)
}

func TestCheckMissingRuleAllows(t *testing.T) {
	db := setupRulesTestDB(t)
	evaluator := NewEvaluator(db)

	err := evaluator.Check(context.Background(), nil, uuid.New(), KeyCancelAfterPreparation, nil)
	assert.NoError(t, err)
}

func TestCheckDisabledRuleAllows(t *testing.T) {
	db := setupRulesTestDB(t)
	evaluator := NewEvaluator(db)
	restaurantID := uuid.New()
	seedRule(t, db, restaurantID, KeyCancelAfterPreparation, false, "should not appear")

	err := evaluator.Check(context.Background(), nil, restaurantID, KeyCancelAfterPreparation, nil)
	assert.NoError(t, err)
}

func TestCheckEnabledRuleDenies(t *testing.T) {
	db := setupRulesTestDB(t)
	evaluator := NewEvaluator(db)
	restaurantID := uuid.New()
	seedRule(t, db, restaurantID, KeyCancelAfterPreparation, true, "kitchen already started")

	err := evaluator.Check(context.Background(), nil, restaurantID, KeyCancelAfterPreparation, map[string]any{
		"order_status": "preparing",
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodePolicyDenied))
	assert.Contains(t, err.Error(), "kitchen already started")

	// another restaurant's rule does not apply
	err = evaluator.Check(context.Background(), nil, uuid.New(), KeyCancelAfterPreparation, nil)
	assert.NoError(t, err)
}

func TestCheckEnabledRuleDefaultReason(t *testing.T) {
	db := setupRulesTestDB(t)
	evaluator := NewEvaluator(db)
	restaurantID := uuid.New()
	seedRule(t, db, restaurantID, KeyDineInRequiresTable, true, "")

	err := evaluator.Check(context.Background(), nil, restaurantID, KeyDineInRequiresTable, nil)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodePolicyDenied))
	assert.Contains(t, err.Error(), KeyDineInRequiresTable)
}

func TestCheckValidation(t *testing.T) {
	db := setupRulesTestDB(t)
	evaluator := NewEvaluator(db)

	err := evaluator.Check(context.Background(), nil, uuid.Nil, KeyCancelAfterPreparation, nil)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	err = evaluator.Check(context.Background(), nil, uuid.New(), "", nil)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}
