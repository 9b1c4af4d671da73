// Package database 数据库连接管理
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// DB 全局 ORM 连接，SQLDB 为其底层连接池
var (
	DB    *gorm.DB
	SQLDB *sql.DB
)

// ErrNotConnected 尚未调用 Connect
var ErrNotConnected = errors.New("database not connected")

// PingTimeout 健康检查超时时间
const PingTimeout = 2 * time.Second

// PoolConfig 连接池参数，零值字段保持驱动默认值
type PoolConfig struct {
	MaxOpen     int
	MaxIdle     int
	MaxLifetime time.Duration
}

// Connect 打开连接并配置连接池，成功后才替换全局变量
func Connect(dialector gorm.Dialector, gormLogger gormlogger.Interface, pool PoolConfig) error {
	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormLogger})
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql.DB: %w", err)
	}
	if pool.MaxOpen > 0 {
		sqlDB.SetMaxOpenConns(pool.MaxOpen)
	}
	if pool.MaxIdle > 0 {
		sqlDB.SetMaxIdleConns(pool.MaxIdle)
	}
	if pool.MaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(pool.MaxLifetime)
	}

	DB, SQLDB = db, sqlDB
	return nil
}

// Migrate 自动迁移数据表
func Migrate(tables ...interface{}) error {
	if DB == nil {
		return ErrNotConnected
	}
	return DB.AutoMigrate(tables...)
}

// Ping 检查连接是否可用
func Ping(ctx context.Context) error {
	if SQLDB == nil {
		return ErrNotConnected
	}
	ctx, cancel := context.WithTimeout(ctx, PingTimeout)
	defer cancel()
	return SQLDB.PingContext(ctx)
}

// Close 关闭连接池
func Close() error {
	if SQLDB == nil {
		return nil
	}
	err := SQLDB.Close()
	DB, SQLDB = nil, nil
	return err
}
