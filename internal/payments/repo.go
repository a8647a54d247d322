package payments

import (
	"context"

	"github.com/angelmondragon/pixmock-backend/pkg/db"
	pkgerrors "github.com/angelmondragon/pixmock-backend/pkg/errors"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a SQL-backed Store bound to the provided DB.
func NewRepository(conn *gorm.DB) Store {
	return &repository{db: conn}
}

func (r *repository) Create(ctx context.Context, payment *Payment) error {
	if err := r.db.WithContext(ctx).Create(payment).Error; err != nil {
		if db.IsUniqueViolation(err, "") {
			return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "payment already exists")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create payment")
	}
	return nil
}

func (r *repository) FindByID(ctx context.Context, id string) (*Payment, error) {
	var payment Payment
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&payment).Error; err != nil {
		if db.IsNotFound(err) {
			return nil, errPaymentNotFound(id)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find payment")
	}
	return &payment, nil
}

func (r *repository) FindByOrder(ctx context.Context, orderID string) (*Payment, error) {
	var payment Payment
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC, id ASC").
		First(&payment).Error
	if err != nil {
		if db.IsNotFound(err) {
			return nil, errNoPaymentForOrder(orderID)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find payment by order")
	}
	return &payment, nil
}

func (r *repository) Save(ctx context.Context, payment *Payment) error {
	res := r.db.WithContext(ctx).
		Model(&Payment{}).
		Where("id = ?", payment.ID).
		Updates(map[string]any{
			"status":     payment.Status,
			"updated_at": payment.UpdatedAt,
		})
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "save payment")
	}
	if res.RowsAffected == 0 {
		return errPaymentNotFound(payment.ID)
	}
	return nil
}

func (r *repository) List(ctx context.Context) ([]Payment, error) {
	var out []Payment
	if err := r.db.WithContext(ctx).Order("created_at ASC, id ASC").Find(&out).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list payments")
	}
	return out, nil
}
