// Package migrations 使用 golang-migrate 执行内嵌的 SQL 迁移
package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed sql/postgres/*.sql sql/mysql/*.sql
var migrationFS embed.FS

// Result 迁移执行结果
type Result struct {
	Version uint
	Dirty   bool
	Changed bool
}

// New 为指定数据库类型创建迁移实例
func New(db *sql.DB, dbType string) (*migrate.Migrate, error) {
	var (
		driver database.Driver
		err    error
	)
	switch dbType {
	case "postgres":
		driver, err = postgres.WithInstance(db, &postgres.Config{})
	case "mysql":
		driver, err = mysql.WithInstance(db, &mysql.Config{})
	default:
		return nil, fmt.Errorf("unsupported database type: %s", dbType)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s driver: %w", dbType, err)
	}

	source, err := iofs.New(migrationFS, "sql/"+dbType)
	if err != nil {
		return nil, fmt.Errorf("failed to create iofs source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, dbType, driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return m, nil
}

// Up 执行所有未应用的迁移
func Up(db *sql.DB, dbType string) (Result, error) {
	m, err := New(db, dbType)
	if err != nil {
		return Result{}, err
	}
	return apply(m, m.Up)
}

// Down 回滚指定步数的迁移
func Down(db *sql.DB, dbType string, steps int) (Result, error) {
	if steps <= 0 {
		return Result{}, fmt.Errorf("steps must be positive")
	}
	m, err := New(db, dbType)
	if err != nil {
		return Result{}, err
	}
	return apply(m, func() error { return m.Steps(-steps) })
}

// Status 返回当前迁移版本
func Status(db *sql.DB, dbType string) (Result, error) {
	m, err := New(db, dbType)
	if err != nil {
		return Result{}, err
	}
	return version(m, false)
}

func apply(m *migrate.Migrate, run func() error) (Result, error) {
	err := run()
	changed := true
	if errors.Is(err, migrate.ErrNoChange) {
		changed = false
	} else if err != nil {
		return Result{}, fmt.Errorf("failed to run migrations: %w", err)
	}
	return version(m, changed)
}

func version(m *migrate.Migrate, changed bool) (Result, error) {
	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return Result{Changed: changed}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("failed to get migration version: %w", err)
	}
	return Result{Version: v, Dirty: dirty, Changed: changed}, nil
}
