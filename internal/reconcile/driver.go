package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iurnickita/orderexport/internal/model"
	"go.uber.org/zap"
)

var ErrBatchAborted = errors.New("export batch aborted")

type ExportGateway interface {
	CreateCustomer(ctx context.Context, account model.Account, customer model.Customer) (model.Customer, error)
	CreateOrder(ctx context.Context, account model.Account, payload model.ExportPayload) (int64, error)
}

type Journal interface {
	ExportRecordPost(ctx context.Context, record model.ExportRecord) error
}

type DriverConfig struct {
	SessionID string
	Source    model.Account
	Target    model.Account
	Export    model.ExportConfig
}

// Driver создает выбранные заказы в аккаунте-получателе.
type Driver struct {
	gateway ExportGateway
	journal Journal
	cfg     DriverConfig
	zaplog  *zap.Logger
}

func NewDriver(gateway ExportGateway, journal Journal, cfg DriverConfig, zaplog *zap.Logger) *Driver {
	return &Driver{
		gateway: gateway,
		journal: journal,
		cfg:     cfg,
		zaplog:  zaplog,
	}
}

// Submit обрабатывает заказы последовательно, в порядке среза.
// Ошибка создания клиента помечает только этот заказ; ошибка создания заказа
// останавливает пакет, оставшиеся заказы сохраняют статус и получают предупреждение.
func (d *Driver) Submit(ctx context.Context, orders []model.Order, publish PublishFunc) ([]model.Order, error) {
	result := make([]model.Order, len(orders))
	for i := range orders {
		result[i] = orders[i].Clone()
	}

	for i := range result {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		order := &result[i]

		if order.Status == model.OrderStatusExported {
			continue
		}
		if order.Status != model.OrderStatusCanBeExported {
			order.AddWarning("order %s is not ready for export (%s)", order.Number, order.Status)
			if !publish(*order) {
				return result, ErrStalePass
			}
			continue
		}

		customer, err := d.resolveCustomer(ctx, *order)
		if err != nil {
			d.zaplog.Warn("customer creation failed",
				zap.Int64("order_id", order.ID),
				zap.String("profile", d.cfg.Target.Profile),
				zap.Error(err))
			order.Status = model.OrderStatusError
			order.AddError("failed to create customer: %v", err)
			if !publish(*order) {
				return result, ErrStalePass
			}
			continue
		}

		targetID, err := d.gateway.CreateOrder(ctx, d.cfg.Target, d.newPayload(*order, customer))
		if err != nil {
			d.zaplog.Error("order creation failed, batch aborted",
				zap.Int64("order_id", order.ID),
				zap.String("profile", d.cfg.Target.Profile),
				zap.Error(err))
			order.Status = model.OrderStatusError
			order.AddError("failed to create order: %v", err)
			publish(*order)
			// предупреждение только заказам, которые ушли бы в экспорт
			for j := i + 1; j < len(result); j++ {
				if result[j].Status != model.OrderStatusCanBeExported {
					continue
				}
				result[j].AddWarning("export batch stopped after order %s failed", order.Number)
				publish(result[j])
			}
			return result, fmt.Errorf("%w: order %s", ErrBatchAborted, order.Number)
		}

		order.Status = model.OrderStatusExported
		order.AddSuccess("order exported to %s as %d", d.cfg.Target.Profile, targetID)
		d.record(ctx, *order, targetID)
		d.zaplog.Info("order exported",
			zap.Int64("order_id", order.ID),
			zap.Int64("target_order_id", targetID))

		if !publish(*order) {
			return result, ErrStalePass
		}
	}
	return result, nil
}

func (d *Driver) resolveCustomer(ctx context.Context, order model.Order) (model.Customer, error) {
	if d.cfg.Export.StaticCustomerCnpj != "" {
		if order.DefaultCustomer == nil {
			return model.Customer{}, fmt.Errorf("%w: validate orders again", ErrDefaultCustomerMissing)
		}
		return *order.DefaultCustomer, nil
	}
	return d.gateway.CreateCustomer(ctx, d.cfg.Target, order.Customer)
}

func (d *Driver) newPayload(order model.Order, customer model.Customer) model.ExportPayload {
	return model.ExportPayload{
		SourceID:         order.ID,
		Customer:         customer,
		Date:             order.Date,
		OrderStoreNumber: order.StoreNumber,
		OrderNumber:      order.Number,
		Original:         order.Original,
		Products:         order.ProductsToExport,
		ProfileSource:    d.cfg.Source.Profile,
		ProfileTarget:    d.cfg.Target.Profile,
		StoreID:          d.cfg.Export.DefaultStoreID,
		SituacaoID:       d.cfg.Export.DefaultSituacaoID,
	}
}

// record пишет журнал экспорта; сбой журнала не меняет результат заказа.
func (d *Driver) record(ctx context.Context, order model.Order, targetID int64) {
	if d.journal == nil {
		return
	}
	err := d.journal.ExportRecordPost(ctx, model.ExportRecord{
		SessionID:     d.cfg.SessionID,
		SourceProfile: d.cfg.Source.Profile,
		TargetProfile: d.cfg.Target.Profile,
		SourceOrderID: order.ID,
		OrderNumber:   order.Number,
		TargetOrderID: targetID,
		ExportedAt:    time.Now(),
	})
	if err != nil {
		d.zaplog.Error("export journal write failed", zap.Int64("order_id", order.ID), zap.Error(err))
	}
}
