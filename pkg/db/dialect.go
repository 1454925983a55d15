package db

import (
	"fmt"
	"time"

	"github.com/smallbiznis/tindahan/internal/config"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// MySQLDSN builds a DSN for an arbitrary set of coordinates. Branch
// databases share the server's character set policy, so the charset is
// fixed to utf8mb4.
func MySQLDSN(user, password, host, port, name string) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&collation=utf8mb4_unicode_ci&parseTime=True&loc=UTC",
		user,
		password,
		host,
		port,
		name,
	)
}

// MySQLDSNWithTimeout is MySQLDSN with dial and I/O deadlines, so an
// unreachable host fails within the given budget instead of waiting out
// the OS TCP timeout.
func MySQLDSNWithTimeout(user, password, host, port, name string, timeout time.Duration) string {
	return MySQLDSN(user, password, host, port, name) +
		fmt.Sprintf("&timeout=%s&readTimeout=%s&writeTimeout=%s", timeout, timeout, timeout)
}

func Dialect(cfg config.Config) (gorm.Dialector, error) {
	switch cfg.DBType {
	case "mysql":
		return mysql.Open(MySQLDSN(
			cfg.DBUser,
			cfg.DBPassword,
			cfg.DBHost,
			cfg.DBPort,
			cfg.DBName,
		)), nil
	case "postgres":
		return postgres.Open(fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
			cfg.DBHost,
			cfg.DBUser,
			cfg.DBPassword,
			cfg.DBName,
			cfg.DBPort,
			cfg.DBSSLMode,
		)), nil
	case "sqlite":
		return sqlite.Open("gorm.db"), nil
	default:
		return nil, fmt.Errorf("unsupported %s type", cfg.DBType)
	}
}
