package db

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

func IsDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "duplicate key value violates unique constraint"): // postgres 23505
		return true
	case strings.Contains(msg, "Error 1062"): // mysql
		return true
	case strings.Contains(msg, "UNIQUE constraint failed"): // sqlite
		return true
	}
	return false
}

// ForUpdate adds a row lock to the next query. SQLite has no row locks and
// serializes writers instead, so the clause is skipped there.
func ForUpdate(tx *gorm.DB) *gorm.DB {
	if tx == nil || tx.Dialector == nil {
		return tx
	}
	if strings.Contains(strings.ToLower(tx.Dialector.Name()), "sqlite") {
		return tx
	}
	return tx.Clauses(clauseForUpdate)
}
