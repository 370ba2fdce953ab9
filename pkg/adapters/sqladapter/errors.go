package sqladapter

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// ConstraintKind names the violated constraint family.
type ConstraintKind string

const (
	Unique     ConstraintKind = "unique"
	ForeignKey ConstraintKind = "foreign key"
	Check      ConstraintKind = "check"
	NotNull    ConstraintKind = "not null"
	Other      ConstraintKind = "constraint"
)

// ConstraintError reports a statement rejected by a database constraint.
type ConstraintError struct {
	Kind  ConstraintKind
	Table string
	Err   error
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("sqladapter: %s constraint violated on %s: %v", e.Kind, e.Table, e.Err)
}

func (e *ConstraintError) Unwrap() error {
	return e.Err
}

// IsConstraintError reports whether err was caused by a constraint violation.
func IsConstraintError(err error) bool {
	var e *ConstraintError
	return errors.As(err, &e)
}

// PostgreSQL SQLSTATE codes (class 23).
const (
	pgNotNullViolation    = "23502"
	pgForeignKeyViolation = "23503"
	pgUniqueViolation     = "23505"
	pgCheckViolation      = "23514"
)

// MySQL error numbers.
const (
	mysqlNotNull          = 1048
	mysqlDuplicateEntry   = 1062
	mysqlForeignKeyParent = 1451
	mysqlForeignKeyChild  = 1452
	mysqlCheckViolation   = 3819
)

// classify wraps err in a ConstraintError when a driver reports a constraint
// violation, and returns it unchanged otherwise.
func classify(table string, err error) error {
	if kind, ok := constraintKind(err); ok {
		return &ConstraintError{Kind: kind, Table: table, Err: err}
	}
	return err
}

func constraintKind(err error) (ConstraintKind, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pgUniqueViolation:
			return Unique, true
		case pgForeignKeyViolation:
			return ForeignKey, true
		case pgCheckViolation:
			return Check, true
		case pgNotNullViolation:
			return NotNull, true
		}
		if pqErr.Code.Class() == "23" {
			return Other, true
		}
		return "", false
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case mysqlDuplicateEntry:
			return Unique, true
		case mysqlForeignKeyParent, mysqlForeignKeyChild:
			return ForeignKey, true
		case mysqlCheckViolation:
			return Check, true
		case mysqlNotNull:
			return NotNull, true
		}
		return "", false
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return Unique, true
		case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
			return ForeignKey, true
		case sqlite3.SQLITE_CONSTRAINT_CHECK:
			return Check, true
		case sqlite3.SQLITE_CONSTRAINT_NOTNULL:
			return NotNull, true
		}
		if liteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT {
			return kindFromMessage(liteErr.Error()), true
		}
	}
	return "", false
}

func kindFromMessage(message string) ConstraintKind {
	switch {
	case strings.Contains(message, "UNIQUE constraint failed"):
		return Unique
	case strings.Contains(message, "FOREIGN KEY constraint failed"):
		return ForeignKey
	case strings.Contains(message, "CHECK constraint failed"):
		return Check
	case strings.Contains(message, "NOT NULL constraint failed"):
		return NotNull
	}
	return Other
}
