package config

import (
	"time"

	"index-coordinator/internal/utils"
)

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	DataDir         string        `json:"dataDir"`         // 数据库文件存储目录
	DatabaseName    string        `json:"databaseName"`    // 数据库文件名
	MaxOpenConns    int           `json:"maxOpenConns"`    // 最大打开连接数
	MaxIdleConns    int           `json:"maxIdleConns"`    // 最大空闲连接数
	ConnMaxLifetime time.Duration `json:"connMaxLifetime"` // 连接最大生命周期
	ConnMaxIdleTime time.Duration `json:"connMaxIdleTime"` // 连接最大空闲时间
}

// DefaultDatabaseConfig 默认数据库配置
func DefaultDatabaseConfig() *DatabaseConfig {
	return &DatabaseConfig{
		DataDir:         utils.DbDir,
		DatabaseName:    "index_coordinator.db",
		MaxOpenConns:    5,
		MaxIdleConns:    3,
		ConnMaxLifetime: 15 * time.Minute,
		ConnMaxIdleTime: 3 * time.Minute,
	}
}
