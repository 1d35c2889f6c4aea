package storage

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"main/internal/model"
	"main/pkg/conn"
	"main/pkg/exception"
)

// Postgres persists aggregates through gorm. Schema ownership is external;
// AutoMigrate only runs when the dev flag asks for it.
type Postgres struct {
	db *gorm.DB
}

func NewPostgres(client *conn.Client, autoMigrate bool) (*Postgres, error) {
	db := client.DB()
	if db == nil {
		return nil, exception.ErrNilInstance
	}
	if autoMigrate {
		if err := db.AutoMigrate(
			&model.Order{},
			&model.Position{},
			&model.EmergencyStopRecord{},
			&model.RiskAlert{},
			&model.AutoOrder{},
		); err != nil {
			return nil, fmt.Errorf("auto migrate: %w", err)
		}
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) SaveOrder(ctx context.Context, order model.Order) error {
	return p.db.WithContext(ctx).Save(&order).Error
}

func (p *Postgres) UpdateOrder(ctx context.Context, order model.Order) error {
	return p.updateVersioned(ctx, &model.Order{}, order.ID, order.Version, &order)
}

func (p *Postgres) GetOrder(ctx context.Context, id string) (model.Order, error) {
	var order model.Order
	err := p.db.WithContext(ctx).First(&order, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Order{}, exception.ErrNotFound
	}
	return order, err
}

func (p *Postgres) ListOrders(ctx context.Context) ([]model.Order, error) {
	var orders []model.Order
	err := p.db.WithContext(ctx).Find(&orders).Error
	return orders, err
}

func (p *Postgres) SavePosition(ctx context.Context, position model.Position) error {
	return p.db.WithContext(ctx).Save(&position).Error
}

func (p *Postgres) ListPositions(ctx context.Context) ([]model.Position, error) {
	var positions []model.Position
	err := p.db.WithContext(ctx).Find(&positions).Error
	return positions, err
}

func (p *Postgres) SaveStop(ctx context.Context, record model.EmergencyStopRecord) error {
	return p.db.WithContext(ctx).Save(&record).Error
}

func (p *Postgres) UpdateStop(ctx context.Context, record model.EmergencyStopRecord) error {
	return p.updateVersioned(ctx, &model.EmergencyStopRecord{}, record.ID, record.Version, &record)
}

func (p *Postgres) ListStops(ctx context.Context) ([]model.EmergencyStopRecord, error) {
	var records []model.EmergencyStopRecord
	err := p.db.WithContext(ctx).Find(&records).Error
	return records, err
}

func (p *Postgres) SaveAlert(ctx context.Context, alert model.RiskAlert) error {
	return p.db.WithContext(ctx).Save(&alert).Error
}

func (p *Postgres) UpdateAlert(ctx context.Context, alert model.RiskAlert) error {
	return p.updateVersioned(ctx, &model.RiskAlert{}, alert.ID, alert.Version, &alert)
}

func (p *Postgres) GetAlert(ctx context.Context, id string) (model.RiskAlert, error) {
	var alert model.RiskAlert
	err := p.db.WithContext(ctx).First(&alert, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.RiskAlert{}, exception.ErrNotFound
	}
	return alert, err
}

func (p *Postgres) ListAlerts(ctx context.Context) ([]model.RiskAlert, error) {
	var alerts []model.RiskAlert
	err := p.db.WithContext(ctx).Find(&alerts).Error
	return alerts, err
}

func (p *Postgres) SaveAutoOrder(ctx context.Context, auto model.AutoOrder) error {
	return p.db.WithContext(ctx).Save(&auto).Error
}

func (p *Postgres) ListAutoOrders(ctx context.Context) ([]model.AutoOrder, error) {
	var autos []model.AutoOrder
	err := p.db.WithContext(ctx).Find(&autos).Error
	return autos, err
}

// updateVersioned writes the row only when it is still at version-1,
// surfacing lost updates as ErrVersionConflict.
func (p *Postgres) updateVersioned(ctx context.Context, mdl any, id string, version int64, value any) error {
	res := p.db.WithContext(ctx).Model(mdl).
		Where("id = ? AND version = ?", id, version-1).
		Select("*").Updates(value)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return exception.ErrVersionConflict
	}
	return nil
}
