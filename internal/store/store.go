package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/iurnickita/orderexport/internal/model"
	"github.com/iurnickita/orderexport/internal/store/config"
)

// Store - хранилище сессий (аккаунты и настройки экспорта) и журнала экспорта.
type Store interface {
	SessionPost(ctx context.Context, session model.Session) error
	SessionGet(ctx context.Context, id string) (model.Session, error)
	SessionPut(ctx context.Context, session model.Session) error
	SessionDelete(ctx context.Context, id string) error
	ExportRecordPost(ctx context.Context, record model.ExportRecord) error
	ExportRecordGet(ctx context.Context, sourceProfile string, targetProfile string) ([]model.ExportRecord, error)
	Close() error
}

var (
	ErrNoRows        = errors.New("no rows")
	ErrAlreadyExists = errors.New("already exists")
)

type store struct {
	database *sql.DB
}

// NewStore открывает postgres. Без DSN используется хранилище в памяти.
func NewStore(cfg config.Config) (Store, error) {
	if cfg.DBDsn == "" {
		return newMemStore(), nil
	}

	db, err := sql.Open("pgx", cfg.DBDsn)
	if err != nil {
		return nil, err
	}

	// Таблица сессий.
	// Одна строка на вход пользователя: аккаунт-источник, аккаунт-получатель и настройки экспорта
	_, err = db.Exec(
		"CREATE TABLE IF NOT EXISTS session (" +
			" id VARCHAR (36) PRIMARY KEY," +
			" source_profile VARCHAR (100) NOT NULL," +
			" source_secret TEXT NOT NULL," +
			" target_profile VARCHAR (100) NOT NULL DEFAULT ''," +
			" target_secret TEXT NOT NULL DEFAULT ''," +
			" default_store_id BIGINT NOT NULL DEFAULT 0," +
			" default_situacao_id BIGINT NOT NULL DEFAULT 0," +
			" static_customer_cnpj VARCHAR (20) NOT NULL DEFAULT ''," +
			" created_at TIMESTAMP NOT NULL" +
			" );")
	if err != nil {
		db.Close()
		return nil, err
	}

	// Журнал экспорта.
	// Запись создается на каждый заказ, созданный в аккаунте-получателе
	_, err = db.Exec(
		"CREATE TABLE IF NOT EXISTS export_journal (" +
			" source_profile VARCHAR (100) NOT NULL," +
			" source_order_id BIGINT NOT NULL," +
			" target_profile VARCHAR (100) NOT NULL," +
			" target_order_id BIGINT NOT NULL," +
			" order_number VARCHAR (50) NOT NULL," +
			" session_id VARCHAR (36) NOT NULL," +
			" exported_at TIMESTAMP NOT NULL," +
			" PRIMARY KEY (source_profile, source_order_id, target_profile, target_order_id)" +
			" );")
	if err != nil {
		db.Close()
		return nil, err
	}

	return &store{
		database: db,
	}, nil
}

func (store *store) Close() error {
	return store.database.Close()
}

func (store *store) SessionPost(ctx context.Context, session model.Session) error {
	_, err := store.database.ExecContext(ctx,
		"INSERT INTO session (id, source_profile, source_secret, target_profile, target_secret,"+
			" default_store_id, default_situacao_id, static_customer_cnpj, created_at)"+
			" VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)",
		session.ID,
		session.Source.Profile,
		session.Source.Secret,
		session.Target.Profile,
		session.Target.Secret,
		session.Config.DefaultStoreID,
		session.Config.DefaultSituacaoID,
		session.Config.StaticCustomerCnpj,
		session.CreatedAt)
	if err != nil {
		// Проверка: уже существует
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == "23505" {
				return ErrAlreadyExists
			}
		}
		return err
	}
	return nil
}

func (store *store) SessionGet(ctx context.Context, id string) (model.Session, error) {
	var session model.Session
	row := store.database.QueryRowContext(ctx,
		"SELECT id, source_profile, source_secret, target_profile, target_secret,"+
			" default_store_id, default_situacao_id, static_customer_cnpj, created_at"+
			" FROM session"+
			" WHERE id = $1",
		id)
	err := row.Scan(&session.ID,
		&session.Source.Profile,
		&session.Source.Secret,
		&session.Target.Profile,
		&session.Target.Secret,
		&session.Config.DefaultStoreID,
		&session.Config.DefaultSituacaoID,
		&session.Config.StaticCustomerCnpj,
		&session.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Session{}, ErrNoRows
		}
		return model.Session{}, err
	}
	return session, nil
}

func (store *store) SessionPut(ctx context.Context, session model.Session) error {
	res, err := store.database.ExecContext(ctx,
		"UPDATE session"+
			" SET target_profile = $2, target_secret = $3,"+
			"     default_store_id = $4, default_situacao_id = $5, static_customer_cnpj = $6"+
			" WHERE id = $1",
		session.ID,
		session.Target.Profile,
		session.Target.Secret,
		session.Config.DefaultStoreID,
		session.Config.DefaultSituacaoID,
		session.Config.StaticCustomerCnpj)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNoRows
	}
	return nil
}

func (store *store) SessionDelete(ctx context.Context, id string) error {
	_, err := store.database.ExecContext(ctx,
		"DELETE FROM session WHERE id = $1",
		id)
	return err
}

func (store *store) ExportRecordPost(ctx context.Context, record model.ExportRecord) error {
	_, err := store.database.ExecContext(ctx,
		"INSERT INTO export_journal (source_profile, source_order_id, target_profile, target_order_id,"+
			" order_number, session_id, exported_at)"+
			" VALUES ($1, $2, $3, $4, $5, $6, $7)",
		record.SourceProfile,
		record.SourceOrderID,
		record.TargetProfile,
		record.TargetOrderID,
		record.OrderNumber,
		record.SessionID,
		record.ExportedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == "23505" {
				return ErrAlreadyExists
			}
		}
		return err
	}
	return nil
}

func (store *store) ExportRecordGet(ctx context.Context, sourceProfile string, targetProfile string) ([]model.ExportRecord, error) {
	rows, err := store.database.QueryContext(ctx,
		"SELECT source_profile, source_order_id, target_profile, target_order_id,"+
			" order_number, session_id, exported_at"+
			" FROM export_journal"+
			" WHERE source_profile = $1"+
			"   AND target_profile = $2"+
			" ORDER BY exported_at",
		sourceProfile,
		targetProfile)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var records []model.ExportRecord
	for rows.Next() {
		var record model.ExportRecord
		err := rows.Scan(&record.SourceProfile,
			&record.SourceOrderID,
			&record.TargetProfile,
			&record.TargetOrderID,
			&record.OrderNumber,
			&record.SessionID,
			&record.ExportedAt)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}
