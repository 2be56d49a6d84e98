package datastore

import (
	"net"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/tphakala/codescan/internal/conf"
	"github.com/tphakala/codescan/internal/logger"
)

const (
	mysqlMaxOpenConns    = 10
	mysqlMaxIdleConns    = 5
	mysqlConnMaxLifetime = 5 * time.Minute
)

// MySQLStore implements Interface for MySQL.
type MySQLStore struct {
	DataStore
	Settings *conf.Settings
}

func validateMySQLConfig(settings *conf.Settings) error {
	m := settings.Output.MySQL
	switch {
	case m.Host == "":
		return validationError("mysql host must not be empty", "output.mysql.host", "")
	case m.Database == "":
		return validationError("mysql database must not be empty", "output.mysql.database", "")
	case m.Username == "":
		return validationError("mysql username must not be empty", "output.mysql.username", "")
	}
	return nil
}

// mysqlConfig builds the driver config. Times are read and written as UTC.
func mysqlConfig(m *conf.MySQLSettings) *mysqldriver.Config {
	port := m.Port
	if port == "" {
		port = "3306"
	}

	cfg := mysqldriver.NewConfig()
	cfg.User = m.Username
	cfg.Passwd = m.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(m.Host, port)
	cfg.DBName = m.Database
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	cfg.Params = map[string]string{"charset": "utf8mb4"}
	return cfg
}

// redactedDSN returns the DSN with the password masked, for logging.
func redactedDSN(cfg *mysqldriver.Config) string {
	c := cfg.Clone()
	if c.Passwd != "" {
		c.Passwd = "***"
	}
	return c.FormatDSN()
}

// Open connects to MySQL and migrates the schema.
func (store *MySQLStore) Open() error {
	if err := validateMySQLConfig(store.Settings); err != nil {
		return err
	}

	cfg := mysqlConfig(&store.Settings.Output.MySQL)

	db, err := gorm.Open(mysql.Open(cfg.FormatDSN()), gormConfig())
	if err != nil {
		getLogger().Error("failed to open MySQL database",
			logger.String("dsn", redactedDSN(cfg)),
			logger.Error(err))
		return dbError(err, "open", "db_type", "mysql", "host", store.Settings.Output.MySQL.Host)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return dbError(err, "open", "db_type", "mysql")
	}
	sqlDB.SetMaxOpenConns(mysqlMaxOpenConns)
	sqlDB.SetMaxIdleConns(mysqlMaxIdleConns)
	sqlDB.SetConnMaxLifetime(mysqlConnMaxLifetime)

	store.DB = db
	if err := performAutoMigration(db, "mysql", store.metrics); err != nil {
		_ = store.DataStore.Close()
		return err
	}

	getLogger().Info("MySQL database opened", logger.String("dsn", redactedDSN(cfg)))
	return nil
}
