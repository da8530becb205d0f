package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/iurnickita/orderexport/internal/board"
	"github.com/iurnickita/orderexport/internal/model"
	"github.com/iurnickita/orderexport/internal/reconcile"
	"github.com/iurnickita/orderexport/internal/service/config"
	"github.com/iurnickita/orderexport/internal/service/platformclient"
	"github.com/iurnickita/orderexport/internal/store"
)

type Service interface {
	OpenSession(ctx context.Context, source model.Account) (model.Session, error)
	GetSession(ctx context.Context, sessionID string) (model.Session, error)
	CloseSession(ctx context.Context, sessionID string) error
	SetTargetAccount(ctx context.Context, sessionID string, target model.Account) (model.Session, error)
	ClearTargetAccount(ctx context.Context, sessionID string) (model.Session, error)
	SaveExportConfig(ctx context.Context, sessionID string, exportConfig model.ExportConfig) (model.Session, error)
	GetSituations(ctx context.Context, sessionID string) ([]model.Option, error)
	GetStores(ctx context.Context, sessionID string) ([]model.Option, error)
	LoadOrders(ctx context.Context, sessionID string, since time.Time) (board.Snapshot, error)
	GetOrders(ctx context.Context, sessionID string) (board.Snapshot, error)
	ValidateOrders(ctx context.Context, sessionID string) error
	ExportOrders(ctx context.Context, sessionID string, ids []int64) error
	GetExports(ctx context.Context, sessionID string) ([]model.ExportRecord, error)
	Shutdown()
}

var (
	ErrInsufficientData = errors.New("insufficient data")
	ErrNoSession        = errors.New("session not found")
	ErrNoTargetAccount  = errors.New("target account is not logged in")
	ErrBusy             = board.ErrBusy
	ErrEmptySelection   = board.ErrEmptySelection
	ErrPlatform         = errors.New("platform request failed")
)

type service struct {
	cfg      config.Config
	matchKey reconcile.MatchKey
	store    store.Store
	platform platformclient.PlatformClient
	boards   *board.Registry
	lookups  *cache.Cache
	zaplog   *zap.Logger

	// фоновые проходы проверки и экспорта
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewService(cfg config.Config, store store.Store, zaplog *zap.Logger) (Service, error) {
	platform := platformclient.NewPlatformClient(cfg.Platform)
	return newService(cfg, store, platform, zaplog)
}

func newService(cfg config.Config, store store.Store, platform platformclient.PlatformClient, zaplog *zap.Logger) (*service, error) {
	matchKey, err := reconcile.ParseMatchKey(cfg.MatchKey)
	if err != nil {
		return nil, err
	}
	ttl := cfg.LookupCacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	ctx, cancel := context.WithCancel(context.Background())
	service := service{
		cfg:      cfg,
		matchKey: matchKey,
		store:    store,
		platform: platform,
		boards:   board.NewRegistry(),
		lookups:  cache.New(ttl, 2*ttl),
		zaplog:   zaplog,
		ctx:      ctx,
		cancel:   cancel,
	}
	return &service, nil
}

// Shutdown отменяет идущие проходы и ждет их завершения.
func (service *service) Shutdown() {
	service.cancel()
	service.wg.Wait()
}

// Сессия

func (service *service) OpenSession(ctx context.Context, source model.Account) (model.Session, error) {
	if source.Empty() {
		return model.Session{}, ErrInsufficientData
	}

	session := model.Session{
		ID:        uuid.NewString(),
		Source:    source,
		CreatedAt: time.Now().UTC(),
	}
	if err := service.store.SessionPost(ctx, session); err != nil {
		return model.Session{}, err
	}
	service.zaplog.Info("session opened", zap.String("profile", source.Profile))
	return session, nil
}

func (service *service) GetSession(ctx context.Context, sessionID string) (model.Session, error) {
	if sessionID == "" {
		return model.Session{}, ErrNoSession
	}
	session, err := service.store.SessionGet(ctx, sessionID)
	if err != nil {
		switch err {
		case store.ErrNoRows:
			return model.Session{}, ErrNoSession
		default:
			return model.Session{}, err
		}
	}
	return session, nil
}

func (service *service) CloseSession(ctx context.Context, sessionID string) error {
	if _, err := service.GetSession(ctx, sessionID); err != nil {
		return err
	}
	service.boards.Get(sessionID).Load(nil)
	service.boards.Drop(sessionID)
	return service.store.SessionDelete(ctx, sessionID)
}

func (service *service) SetTargetAccount(ctx context.Context, sessionID string, target model.Account) (model.Session, error) {
	if target.Empty() {
		return model.Session{}, ErrInsufficientData
	}
	return service.updateSession(ctx, sessionID, func(session *model.Session) {
		session.Target = target
	})
}

func (service *service) ClearTargetAccount(ctx context.Context, sessionID string) (model.Session, error) {
	return service.updateSession(ctx, sessionID, func(session *model.Session) {
		session.Target = model.Account{}
	})
}

func (service *service) SaveExportConfig(ctx context.Context, sessionID string, exportConfig model.ExportConfig) (model.Session, error) {
	if exportConfig.DefaultStoreID < 0 || exportConfig.DefaultSituacaoID < 0 {
		return model.Session{}, ErrInsufficientData
	}
	return service.updateSession(ctx, sessionID, func(session *model.Session) {
		session.Config = exportConfig
	})
}

func (service *service) updateSession(ctx context.Context, sessionID string, update func(session *model.Session)) (model.Session, error) {
	session, err := service.GetSession(ctx, sessionID)
	if err != nil {
		return model.Session{}, err
	}
	update(&session)
	if err := service.store.SessionPut(ctx, session); err != nil {
		if errors.Is(err, store.ErrNoRows) {
			return model.Session{}, ErrNoSession
		}
		return model.Session{}, err
	}
	return session, nil
}

// Справочники аккаунта-получателя

func (service *service) GetSituations(ctx context.Context, sessionID string) ([]model.Option, error) {
	return service.lookup(ctx, sessionID, "situations", service.platform.ListSituations)
}

func (service *service) GetStores(ctx context.Context, sessionID string) ([]model.Option, error) {
	return service.lookup(ctx, sessionID, "stores", service.platform.ListStores)
}

func (service *service) lookup(ctx context.Context, sessionID string, kind string,
	fetch func(ctx context.Context, account model.Account) ([]model.Option, error)) ([]model.Option, error) {
	session, err := service.targetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	key := kind + ":" + session.Target.Profile
	if cached, ok := service.lookups.Get(key); ok {
		return cached.([]model.Option), nil
	}
	options, err := fetch(ctx, session.Target)
	if err != nil {
		service.zaplog.Error("lookup fetch failed",
			zap.String("kind", kind),
			zap.String("profile", session.Target.Profile),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrPlatform, err)
	}
	service.lookups.SetDefault(key, options)
	return options, nil
}

func (service *service) targetSession(ctx context.Context, sessionID string) (model.Session, error) {
	session, err := service.GetSession(ctx, sessionID)
	if err != nil {
		return model.Session{}, err
	}
	if session.Target.Empty() {
		return model.Session{}, ErrNoTargetAccount
	}
	return session, nil
}

// Заказы

func (service *service) LoadOrders(ctx context.Context, sessionID string, since time.Time) (board.Snapshot, error) {
	session, err := service.GetSession(ctx, sessionID)
	if err != nil {
		return board.Snapshot{}, err
	}

	orders, err := service.platform.ListOrders(ctx, session.Source, since)
	if err != nil {
		service.zaplog.Error("source orders fetch failed",
			zap.String("profile", session.Source.Profile),
			zap.Error(err))
		return board.Snapshot{}, fmt.Errorf("%w: %v", ErrPlatform, err)
	}

	b := service.boards.Get(sessionID)
	generation := b.Load(orders)
	service.zaplog.Info("source orders loaded",
		zap.String("profile", session.Source.Profile),
		zap.Int("orders", len(orders)),
		zap.Uint64("generation", generation))
	return b.Snapshot(), nil
}

func (service *service) GetOrders(ctx context.Context, sessionID string) (board.Snapshot, error) {
	if _, err := service.GetSession(ctx, sessionID); err != nil {
		return board.Snapshot{}, err
	}
	return service.boards.Get(sessionID).Snapshot(), nil
}

// ValidateOrders запускает проход проверки в фоне; прогресс виден через GetOrders.
func (service *service) ValidateOrders(ctx context.Context, sessionID string) error {
	session, err := service.targetSession(ctx, sessionID)
	if err != nil {
		return err
	}

	b := service.boards.Get(sessionID)
	generation, orders, err := b.BeginValidation()
	if err != nil {
		return err
	}

	engine := reconcile.NewEngine(service.platform, reconcile.EngineConfig{
		Source:   session.Source,
		Target:   session.Target,
		Export:   session.Config,
		MatchKey: service.matchKey,
	}, service.zaplog.With(zap.String("session", sessionID), zap.Uint64("generation", generation)))

	service.wg.Add(1)
	go func() {
		defer service.wg.Done()

		var passErr error
		defer func() { b.Finish(generation, passErr) }()

		_, passErr = engine.Run(service.ctx, orders, func(orders ...model.Order) bool {
			return b.Publish(generation, orders...)
		})
		if passErr != nil {
			service.zaplog.Warn("validation pass stopped",
				zap.String("session", sessionID),
				zap.Uint64("generation", generation),
				zap.Error(passErr))
		}
	}()
	return nil
}

// ExportOrders снимает выбор и запускает пакет экспорта в фоне.
func (service *service) ExportOrders(ctx context.Context, sessionID string, ids []int64) error {
	if len(ids) == 0 {
		return ErrEmptySelection
	}
	session, err := service.targetSession(ctx, sessionID)
	if err != nil {
		return err
	}

	b := service.boards.Get(sessionID)
	generation, orders, err := b.BeginExport(ids)
	if err != nil {
		return err
	}

	driver := reconcile.NewDriver(service.platform, service.store, reconcile.DriverConfig{
		SessionID: sessionID,
		Source:    session.Source,
		Target:    session.Target,
		Export:    session.Config,
	}, service.zaplog.With(zap.String("session", sessionID), zap.Uint64("generation", generation)))

	service.wg.Add(1)
	go func() {
		defer service.wg.Done()

		var batchErr error
		defer func() { b.Finish(generation, batchErr) }()

		_, batchErr = driver.Submit(service.ctx, orders, func(orders ...model.Order) bool {
			return b.Publish(generation, orders...)
		})
		if batchErr != nil {
			service.zaplog.Warn("export batch stopped",
				zap.String("session", sessionID),
				zap.Error(batchErr))
		}
	}()
	return nil
}

func (service *service) GetExports(ctx context.Context, sessionID string) ([]model.ExportRecord, error) {
	session, err := service.targetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return service.store.ExportRecordGet(ctx, session.Source.Profile, session.Target.Profile)
}
