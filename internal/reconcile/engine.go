package reconcile

import (
	"context"
	"errors"

	"github.com/iurnickita/orderexport/internal/model"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	ErrDefaultCustomerMissing = errors.New("default customer not found in target account")
	ErrEmptyCatalog           = errors.New("product catalog is empty")
	ErrStalePass              = errors.New("pass superseded by a newer one")
)

// PublishFunc передает обновленные заказы на доску.
// false означает, что проход устарел и его нужно остановить.
type PublishFunc func(orders ...model.Order) bool

type Gateway interface {
	DetailFetcher
	ListProducts(ctx context.Context, account model.Account, depositID int64) ([]model.Product, error)
	GetCustomer(ctx context.Context, account model.Account, document string) (model.Customer, error)
}

type EngineConfig struct {
	Source   model.Account
	Target   model.Account
	Export   model.ExportConfig
	MatchKey MatchKey
}

// Engine выполняет проход проверки заказов.
type Engine struct {
	gateway Gateway
	cfg     EngineConfig
	zaplog  *zap.Logger
}

func NewEngine(gateway Gateway, cfg EngineConfig, zaplog *zap.Logger) *Engine {
	return &Engine{
		gateway: gateway,
		cfg:     cfg,
		zaplog:  zaplog,
	}
}

type referenceData struct {
	sourceProducts  []model.Product
	targetProducts  []model.Product
	defaultCustomer *model.Customer
	customerErr     error
}

// Run проверяет заказы строго по очереди, публикуя каждый результат.
// Возвращает итоговые заказы и ошибку уровня прохода, если проход прерван.
func (e *Engine) Run(ctx context.Context, orders []model.Order, publish PublishFunc) ([]model.Order, error) {
	working := make([]model.Order, len(orders))
	for i := range orders {
		working[i] = orders[i].Clone()
		working[i].ResetStatus()
	}
	if !publish(working...) {
		return working, ErrStalePass
	}

	ref := e.fetchReferenceData(ctx)

	// без обязательного статичного клиента ни один заказ не проверяется
	if e.cfg.Export.StaticCustomerCnpj != "" && ref.defaultCustomer == nil {
		e.zaplog.Warn("default customer fetch failed, pass aborted",
			zap.String("profile", e.cfg.Target.Profile),
			zap.String("document", e.cfg.Export.StaticCustomerCnpj),
			zap.Error(ref.customerErr))
		for i := range working {
			working[i].Status = model.OrderStatusError
			working[i].AddError("default customer %s not found in target account", e.cfg.Export.StaticCustomerCnpj)
		}
		publish(working...)
		return working, ErrDefaultCustomerMissing
	}

	if len(ref.sourceProducts) == 0 || len(ref.targetProducts) == 0 {
		e.zaplog.Warn("product catalog is empty, pass aborted",
			zap.String("source_profile", e.cfg.Source.Profile),
			zap.Int("source_products", len(ref.sourceProducts)),
			zap.String("target_profile", e.cfg.Target.Profile),
			zap.Int("target_products", len(ref.targetProducts)))
		return working, ErrEmptyCatalog
	}

	catalogs := Catalogs{
		Source:             NewCatalog(ref.sourceProducts, e.cfg.MatchKey),
		Target:             NewCatalog(ref.targetProducts, e.cfg.MatchKey),
		StaticCustomerCnpj: e.cfg.Export.StaticCustomerCnpj,
	}

	for i := range working {
		if err := ctx.Err(); err != nil {
			return working, err
		}

		working[i].ResetStatus()
		working[i].Status = model.OrderStatusLoading
		if ref.defaultCustomer != nil {
			customer := *ref.defaultCustomer
			working[i].DefaultCustomer = &customer
		}
		if !publish(working[i]) {
			return working, ErrStalePass
		}

		processed, err := ProcessStatus(ctx, e.gateway, e.cfg.Source, working[i], catalogs)
		if err != nil {
			e.zaplog.Warn("order detail fetch failed",
				zap.Int64("order_id", working[i].ID),
				zap.Error(err))
		}
		working[i] = processed
		e.zaplog.Debug("order processed",
			zap.Int64("order_id", processed.ID),
			zap.String("number", processed.Number),
			zap.Stringer("status", processed.Status),
			zap.Strings("errors", processed.Errors))

		if !publish(working[i]) {
			return working, ErrStalePass
		}
	}
	return working, nil
}

// fetchReferenceData загружает оба каталога и статичного клиента одновременно.
// Ошибки не отменяют соседние запросы: каталог деградирует до пустого списка.
func (e *Engine) fetchReferenceData(ctx context.Context) referenceData {
	var (
		ref referenceData
		g   errgroup.Group
	)

	g.Go(func() error {
		products, err := e.gateway.ListProducts(ctx, e.cfg.Source, 0)
		if err != nil {
			e.zaplog.Error("source catalog fetch failed", zap.String("profile", e.cfg.Source.Profile), zap.Error(err))
			return nil
		}
		ref.sourceProducts = products
		return nil
	})
	g.Go(func() error {
		products, err := e.gateway.ListProducts(ctx, e.cfg.Target, 0)
		if err != nil {
			e.zaplog.Error("target catalog fetch failed", zap.String("profile", e.cfg.Target.Profile), zap.Error(err))
			return nil
		}
		ref.targetProducts = products
		return nil
	})
	if e.cfg.Export.StaticCustomerCnpj != "" {
		g.Go(func() error {
			customer, err := e.gateway.GetCustomer(ctx, e.cfg.Target, e.cfg.Export.StaticCustomerCnpj)
			if err != nil {
				ref.customerErr = err
				return nil
			}
			ref.defaultCustomer = &customer
			return nil
		})
	}

	_ = g.Wait()
	return ref
}
