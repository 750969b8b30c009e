package menu

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/orlcnr/mesa-core/pkg/db/models"
	pkgerrors "github.com/orlcnr/mesa-core/pkg/errors"
)

// Provider gives the core read-only access to menu prices, availability and
// recipe expansion. The menu subsystem owns the data.
type Provider interface {
	WithTx(tx *gorm.DB) Provider
	MenuItem(ctx context.Context, id uuid.UUID) (*models.MenuItem, error)
	RecipeFor(ctx context.Context, menuItemID uuid.UUID) ([]models.Recipe, error)
}

type provider struct {
	db *gorm.DB
}

// NewProvider builds a menu provider bound to the provided DB.
func NewProvider(db *gorm.DB) Provider {
	return &provider{db: db}
}

func (p *provider) WithTx(tx *gorm.DB) Provider {
	if tx == nil {
		return p
	}
	return &provider{db: tx}
}

func (p *provider) MenuItem(ctx context.Context, id uuid.UUID) (*models.MenuItem, error) {
	var item models.MenuItem
	err := p.db.WithContext(ctx).Where("id = ?", id).First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "menu item %s not found", id)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load menu item")
	}
	return &item, nil
}

func (p *provider) RecipeFor(ctx context.Context, menuItemID uuid.UUID) ([]models.Recipe, error) {
	var recipes []models.Recipe
	err := p.db.WithContext(ctx).
		Where("menu_item_id = ?", menuItemID).
		Find(&recipes).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load recipe")
	}
	return recipes, nil
}
