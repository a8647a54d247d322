package orders

import (
	"context"

	"github.com/angelmondragon/pixmock-backend/pkg/db"
	pkgerrors "github.com/angelmondragon/pixmock-backend/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a SQL-backed Store bound to the provided DB.
func NewRepository(conn *gorm.DB) Store {
	return &repository{db: conn}
}

func (r *repository) Create(ctx context.Context, order *Order) error {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		if db.IsUniqueViolation(err, "") {
			return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "order already exists")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create order")
	}
	return nil
}

func (r *repository) FindByID(ctx context.Context, id string) (*Order, error) {
	var order Order
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&order).Error; err != nil {
		if db.IsNotFound(err) {
			return nil, errOrderNotFound(id)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find order")
	}
	return &order, nil
}

func (r *repository) Update(ctx context.Context, id string, fn func(*Order) error) (*Order, error) {
	var updated *Order
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order Order
		query := tx
		if tx.Dialector.Name() == "postgres" {
			query = tx.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		if err := query.Where("id = ?", id).First(&order).Error; err != nil {
			if db.IsNotFound(err) {
				return errOrderNotFound(id)
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order for update")
		}
		if err := fn(&order); err != nil {
			return err
		}
		if err := tx.Save(&order).Error; err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "payment already bound to another order")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save order")
		}
		updated = &order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *repository) List(ctx context.Context) ([]Order, error) {
	var out []Order
	if err := r.db.WithContext(ctx).Order("created_at ASC, id ASC").Find(&out).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list orders")
	}
	return out, nil
}
