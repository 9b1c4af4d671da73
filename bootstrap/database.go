package bootstrap

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"easypay/pkg/config"
	"easypay/pkg/database"
	"easypay/pkg/database/migrations"
	"easypay/pkg/logger"
)

// SetupDB 初始化数据库和 ORM
func SetupDB() {
	// 根据配置文件选择数据库类型
	var dbConfig gorm.Dialector
	switch config.Get("database.connection") {
	case "postgresql":
		dbConfig = setupPostgreSQL()
	case "sqlite":
		dbConfig = setupSQLite()
	default:
		panic(errors.New("database connection not supported: " + config.Get("database.connection")))
	}

	// 连接数据库，并设置 GORM 的日志模式
	if err := database.Connect(dbConfig, logger.NewGormLogger(), dbPool()); err != nil {
		logger.ErrorString("数据库", "连接", err.Error())
		panic(err)
	}

	// 自动迁移数据库结构
	if err := database.Migrate(migrations.RegisterTables()...); err != nil {
		logger.ErrorString("数据库", "自动迁移", "数据表结构迁移失败："+err.Error())
		panic(err)
	}
	logger.InfoString("数据库", "自动迁移", "数据表结构迁移成功")
}

// setupPostgreSQL 配置 PostgreSQL 连接，会话时区与 app.timezone 一致
func setupPostgreSQL() gorm.Dialector {
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable TimeZone=%s",
		config.Get("database.postgresql.host"),
		config.Get("database.postgresql.port"),
		config.Get("database.postgresql.username"),
		config.Get("database.postgresql.password"),
		config.Get("database.postgresql.database"),
		config.GetString("app.timezone", "Asia/Seoul"),
	)
	return postgres.New(postgres.Config{
		DSN: dsn,
	})
}

// setupSQLite 配置 SQLite 连接
func setupSQLite() gorm.Dialector {
	return sqlite.Open(config.Get("database.sqlite.database"))
}

// dbPool 连接池配置，SQLite 只使用一个连接
func dbPool() database.PoolConfig {
	if config.Get("database.connection") == "sqlite" {
		return database.PoolConfig{MaxOpen: 1}
	}
	return database.PoolConfig{
		MaxOpen:     config.GetInt("database.postgresql.max_open_connections"),
		MaxIdle:     config.GetInt("database.postgresql.max_idle_connections"),
		MaxLifetime: time.Duration(config.GetInt("database.postgresql.max_life_seconds")) * time.Second,
	}
}
