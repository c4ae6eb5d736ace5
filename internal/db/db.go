package db

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"github.com/csr-ugra/hh-vacancy-loader/internal/apperror"
	"github.com/csr-ugra/hh-vacancy-loader/internal/log"
	"github.com/csr-ugra/hh-vacancy-loader/internal/util"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"
	"modernc.org/sqlite"
	"strings"
	"sync"
)

const maintenanceDatabase = "postgres"

// sqliteLower is a unicode aware LOWER for sqlite, the builtin one only folds
// ascii letters.
const sqliteLower = "unicode_lower"

var registerSqliteFunctions = sync.OnceValue(func() error {
	return sqlite.RegisterDeterministicScalarFunction(sqliteLower, 1, func(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
		switch v := args[0].(type) {
		case string:
			return strings.ToLower(v), nil
		case []byte:
			return strings.ToLower(string(v)), nil
		default:
			return v, nil
		}
	})
})

func GetConnection(ctx context.Context, config *util.Config) (*bun.DB, error) {
	if config.DbDriver.Value == util.DriverSqlite {
		return OpenSqlite(ctx, config.SqlitePath.Value)
	}

	dsn, err := config.PostgresDsn(config.DatabaseName())
	if err != nil {
		return nil, apperror.StoreConnection("invalid postgres dsn", err)
	}

	return openPostgres(ctx, dsn)
}

func openPostgres(ctx context.Context, dsn string) (*bun.DB, error) {
	sqlDb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqlDb, pgdialect.New())
	addDebugHook(db)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, apperror.StoreConnection("failed to connect to postgres", err)
	}

	return db, nil
}

// OpenSqlite opens a sqlite database through the pure-go driver. ":memory:"
// is limited to one connection, every new connection would otherwise see its
// own empty database.
func OpenSqlite(ctx context.Context, dsn string) (*bun.DB, error) {
	if err := registerSqliteFunctions(); err != nil {
		return nil, apperror.StoreConnection("failed to register sqlite functions", err)
	}

	sqlDb, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, apperror.StoreConnection("failed to open sqlite", err)
	}

	if dsn == ":memory:" {
		sqlDb.SetMaxOpenConns(1)
	}

	for _, pragma := range []string{
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := sqlDb.ExecContext(ctx, pragma); err != nil {
			_ = sqlDb.Close()
			return nil, apperror.StoreConnection(fmt.Sprintf("failed to exec %s", pragma), err)
		}
	}

	db := bun.NewDB(sqlDb, sqlitedialect.New())
	addDebugHook(db)

	return db, nil
}

func addDebugHook(db *bun.DB) {
	db.AddQueryHook(bundebug.NewQueryHook(
		bundebug.WithEnabled(false),

		// BUNDEBUG=1 logs failed queries
		// BUNDEBUG=2 logs all queries
		bundebug.FromEnv("BUNDEBUG")))
}

// EnsureDatabase creates the postgres database named in config when it does
// not exist yet. It is a no-op for sqlite.
func EnsureDatabase(ctx context.Context, config *util.Config, logger log.Logger) error {
	if config.DbDriver.Value == util.DriverSqlite {
		return nil
	}

	dsn, err := config.PostgresDsn(maintenanceDatabase)
	if err != nil {
		return apperror.StoreConnection("invalid postgres dsn", err)
	}

	connection, err := openPostgres(ctx, dsn)
	if err != nil {
		return err
	}
	defer connection.Close()

	name := config.DatabaseName()
	logger = logger.WithField("Database", name)

	exists, err := connection.NewSelect().
		TableExpr("pg_database").
		Where("datname = ?", name).
		Exists(ctx)
	if err != nil {
		return apperror.StoreConnection("failed to look up database", err)
	}

	if exists {
		logger.Debug("database already exists")
		return nil
	}

	_, err = connection.ExecContext(ctx, "CREATE DATABASE ? TEMPLATE template0 ENCODING 'UTF8'", bun.Ident(name))
	if err != nil {
		return apperror.StoreConnection("failed to create database", err)
	}
	logger.Info("created database")

	return nil
}

// CreateSchema creates the employers and vacancies tables if they are missing.
func CreateSchema(ctx context.Context, connection bun.IDB) error {
	_, err := connection.NewCreateTable().
		Model((*EmployerModel)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return apperror.StoreConnection("failed to create employers table", err)
	}

	_, err = connection.NewCreateTable().
		Model((*VacancyModel)(nil)).
		IfNotExists().
		ForeignKey(`("employer_id") REFERENCES "employers" ("employer_id")`).
		Exec(ctx)
	if err != nil {
		return apperror.StoreConnection("failed to create vacancies table", err)
	}

	return nil
}
