package tenant

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
)

var (
	// ErrNotProvisioned marks an operation that requires a dedicated
	// branch database on a store that has none.
	ErrNotProvisioned = errors.New("store_not_provisioned")

	// ErrMainStoreDatabase rejects provisioning or dropping the main
	// store's database. The main store's database is the process's own
	// default connection.
	ErrMainStoreDatabase = errors.New("main_store_database_protected")

	// ErrInvalidDatabaseName rejects identifiers that cannot safely be
	// spliced into DDL.
	ErrInvalidDatabaseName = errors.New("invalid_database_name")
)

// MySQL server error numbers that indicate the connected user lacks
// CREATE/DROP rights.
const (
	mysqlErrDBAccessDenied = 1044
	mysqlErrAccessDenied   = 1045
	mysqlErrSpecificGrant  = 1227
)

// PrivilegeError reports that the database user lacks CREATE DATABASE
// rights. It carries an actionable remediation statement.
type PrivilegeError struct {
	User string
	Err  error
}

func (e *PrivilegeError) Error() string {
	return fmt.Sprintf("database user lacks CREATE DATABASE privilege: %v", e.Err)
}

func (e *PrivilegeError) Unwrap() error { return e.Err }

// Remediation returns the GRANT statements an administrator must run.
func (e *PrivilegeError) Remediation() string {
	user := e.User
	if user == "" {
		user = "<db-user>"
	}
	return fmt.Sprintf(
		"GRANT CREATE ON *.* TO '%s'@'%%'; GRANT ALL PRIVILEGES ON `%s%%`.* TO '%s'@'%%'; FLUSH PRIVILEGES;",
		user, DatabasePrefix, user,
	)
}

// ProvisioningError wraps any failure during create/migrate/fixup so
// the store-creation flow can roll back the registry row.
type ProvisioningError struct {
	StoreID  string
	Database string
	Step     string
	Err      error
}

func (e *ProvisioningError) Error() string {
	return fmt.Sprintf("provisioning %s (store %s) failed at %s: %v", e.Database, e.StoreID, e.Step, e.Err)
}

func (e *ProvisioningError) Unwrap() error { return e.Err }

// classifyError lifts driver errors into the typed taxonomy. Structured
// MySQL error numbers are authoritative; message sniffing is kept only
// for drivers that erase them.
func classifyError(user string, err error) error {
	if err == nil {
		return nil
	}

	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		switch mysqlErr.Number {
		case mysqlErrDBAccessDenied, mysqlErrAccessDenied, mysqlErrSpecificGrant:
			return &PrivilegeError{User: user, Err: err}
		}
		return err
	}

	msg := err.Error()
	if strings.Contains(msg, "Access denied") || strings.Contains(msg, "Error 1044") {
		return &PrivilegeError{User: user, Err: err}
	}
	return err
}

// IsPrivilegeErr reports whether err stems from missing CREATE rights.
func IsPrivilegeErr(err error) bool {
	var privErr *PrivilegeError
	return errors.As(err, &privErr)
}
