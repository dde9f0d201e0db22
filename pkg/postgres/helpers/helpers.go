package helpers

import (
	"fmt"

	"gorm.io/gorm"
)

// WrapTxAndCommit runs fn inside tx when one is given, otherwise in a new transaction that is
// committed on success and rolled back on error or panic.
func WrapTxAndCommit[T any](fn func(*gorm.DB) (T, error), db *gorm.DB, tx *gorm.DB) (res T, err error) {
	if tx != nil {
		return fn(tx)
	}

	tx = db.Begin()
	if tx.Error != nil {
		return res, fmt.Errorf("failed to begin transaction: %w", tx.Error)
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	res, err = fn(tx)
	if err != nil {
		tx.Rollback()
		return res, err
	}
	if cErr := tx.Commit().Error; cErr != nil {
		return res, fmt.Errorf("failed to commit transaction: %w", cErr)
	}
	return res, nil
}
