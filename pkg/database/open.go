package database

import (
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"
)

const (
	driverMySQL  = "mysql"
	driverSQLite = "sqlite"
)

// Open DSN mariadb://, mysql:// ou sqlite:// → driver database/sql.
// Un DSN sans schéma est transmis tel quel au driver MySQL.
func Open(dsn string) (*sql.DB, string, string, error) {
	driver, native, err := toDriverDSN(dsn)
	if err != nil {
		return nil, "", "", err
	}
	db, err := sql.Open(driver, native)
	if err != nil {
		return nil, "", "", err
	}
	if driver == driverSQLite {
		// une seule connexion : SQLite sérialise les écritures
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
	}
	return db, driver, native, nil
}

func toDriverDSN(dsn string) (string, string, error) {
	switch {
	case dsn == "":
		return "", "", fmt.Errorf("dsn vide")
	case strings.HasPrefix(dsn, "sqlite://"):
		path := strings.TrimPrefix(dsn, "sqlite://")
		if path == "" {
			return "", "", fmt.Errorf("dsn incomplet (chemin sqlite)")
		}
		return driverSQLite, path + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", nil
	case strings.HasPrefix(dsn, "mariadb://"), strings.HasPrefix(dsn, "mysql://"):
		native, err := toMySQLDSN(dsn)
		return driverMySQL, native, err
	}
	return driverMySQL, dsn, nil
}

func toMySQLDSN(dsn string) (string, error) {
	if strings.HasPrefix(dsn, "mariadb://") || strings.HasPrefix(dsn, "mysql://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return "", fmt.Errorf("parse dsn: %w", err)
		}
		user := ""
		pass := ""
		if u.User != nil {
			user = u.User.Username()
			pw, _ := u.User.Password()
			pass = pw
		}
		host := u.Host
		db := strings.TrimPrefix(u.Path, "/")
		if user == "" || host == "" || db == "" {
			return "", fmt.Errorf("dsn incomplet (user/host/db)")
		}
		return fmt.Sprintf("%s:%s@tcp(%s)/%s?parseTime=true&loc=UTC&interpolateParams=true",
			user, pass, host, db), nil
	}
	return dsn, nil
}
