package cashier

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/orlcnr/mesa-core/pkg/db/models"
	"github.com/orlcnr/mesa-core/pkg/enums"
	pkgerrors "github.com/orlcnr/mesa-core/pkg/errors"
)

// Repository is the persistence surface of the cash session ledger.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindRegister(ctx context.Context, id uuid.UUID) (*models.CashRegister, error)
	FindOpenSessionByRegister(ctx context.Context, registerID uuid.UUID) (*models.CashSession, error)
	FindSessionForUpdate(ctx context.Context, id uuid.UUID) (*models.CashSession, error)
	InsertSession(ctx context.Context, session *models.CashSession) error
	UpdateSession(ctx context.Context, id uuid.UUID, updates map[string]any) error
	InsertMovement(ctx context.Context, movement *models.CashMovement) error
	ListMovements(ctx context.Context, sessionID uuid.UUID) ([]models.CashMovement, error)
	FindOpenSessionByOpener(ctx context.Context, restaurantID, userID uuid.UUID) (*models.CashSession, error)
	FindOldestOpenSession(ctx context.Context, restaurantID uuid.UUID) (*models.CashSession, error)
	RestaurantForSession(ctx context.Context, sessionID uuid.UUID) (uuid.UUID, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a cashier repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindRegister(ctx context.Context, id uuid.UUID) (*models.CashRegister, error) {
	var register models.CashRegister
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&register).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "cash register %s not found", id)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cash register")
	}
	return &register, nil
}

// FindOpenSessionByRegister returns nil, nil when the register has no open
// session.
func (r *repository) FindOpenSessionByRegister(ctx context.Context, registerID uuid.UUID) (*models.CashSession, error) {
	var session models.CashSession
	err := r.db.WithContext(ctx).
		Where("register_id = ? AND status = ?", registerID, enums.CashSessionStatusOpen).
		First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load open session")
	}
	return &session, nil
}

func (r *repository) FindSessionForUpdate(ctx context.Context, id uuid.UUID) (*models.CashSession, error) {
	var session models.CashSession
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "cash session %s not found", id)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock cash session")
	}
	return &session, nil
}

func (r *repository) InsertSession(ctx context.Context, session *models.CashSession) error {
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *repository) UpdateSession(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.CashSession{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) InsertMovement(ctx context.Context, movement *models.CashMovement) error {
	return r.db.WithContext(ctx).Create(movement).Error
}

func (r *repository) ListMovements(ctx context.Context, sessionID uuid.UUID) ([]models.CashMovement, error) {
	var movements []models.CashMovement
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at ASC").
		Find(&movements).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list cash movements")
	}
	return movements, nil
}

func (r *repository) FindOpenSessionByOpener(ctx context.Context, restaurantID, userID uuid.UUID) (*models.CashSession, error) {
	var session models.CashSession
	err := r.db.WithContext(ctx).
		Joins("JOIN cash_registers ON cash_registers.id = cash_sessions.register_id").
		Where("cash_registers.restaurant_id = ? AND cash_sessions.opened_by = ? AND cash_sessions.status = ?",
			restaurantID, userID, enums.CashSessionStatusOpen).
		First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load opener session")
	}
	return &session, nil
}

func (r *repository) FindOldestOpenSession(ctx context.Context, restaurantID uuid.UUID) (*models.CashSession, error) {
	var session models.CashSession
	err := r.db.WithContext(ctx).
		Joins("JOIN cash_registers ON cash_registers.id = cash_sessions.register_id").
		Where("cash_registers.restaurant_id = ? AND cash_sessions.status = ?",
			restaurantID, enums.CashSessionStatusOpen).
		Order("cash_sessions.created_at ASC").
		First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load oldest open session")
	}
	return &session, nil
}

func (r *repository) RestaurantForSession(ctx context.Context, sessionID uuid.UUID) (uuid.UUID, error) {
	var register models.CashRegister
	err := r.db.WithContext(ctx).
		Joins("JOIN cash_sessions ON cash_sessions.register_id = cash_registers.id").
		Where("cash_sessions.id = ?", sessionID).
		First(&register).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return uuid.Nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "cash session %s not found", sessionID)
		}
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve session restaurant")
	}
	return register.RestaurantID, nil
}
