package workflow

import (
	"fmt"

	"gorm.io/gorm"
)

// AcquireWeekPostingLock serializes generation per week across instances using
// MySQL advisory locks.
// NOTE: GET_LOCK is connection-scoped, so this must be called on the same
// *gorm.DB that will do the generation transaction. On non-MySQL dialects
// (sqlite in tests) this is a no-op; the meta insert check-and-set is the
// authoritative guard either way.
func AcquireWeekPostingLock(tx *gorm.DB, scope string, weekStart string) error {
	if tx.Dialector.Name() != "mysql" {
		return nil
	}
	lockName := fmt.Sprintf("%s:%s", scope, weekStart)
	var ok int
	if err := tx.Raw("SELECT GET_LOCK(?, 30)", lockName).Scan(&ok).Error; err != nil {
		return err
	}
	if ok != 1 {
		return fmt.Errorf("could not acquire posting lock for %s week=%s", scope, weekStart)
	}
	return nil
}

func ReleaseWeekPostingLock(tx *gorm.DB, scope string, weekStart string) {
	if tx.Dialector.Name() != "mysql" {
		return
	}
	lockName := fmt.Sprintf("%s:%s", scope, weekStart)
	var _ok int
	_ = tx.Raw("SELECT RELEASE_LOCK(?)", lockName).Scan(&_ok).Error
}
