// Package repository implements the seat inventory and booking store on
// MySQL.  Every status change is a conditional UPDATE whose affected row
// count tells the caller whether the expected prior state still held.
package repository

import (
	"database/sql/driver"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
)

// ErrTxConflict marks failures where MySQL aborted the transaction
// because of lock contention.  The whole transaction was rolled back and
// can be retried.
var ErrTxConflict = errors.New("transaction conflict")

const (
	mysqlLockWaitTimeout = 1205
	mysqlDeadlock        = 1213
)

// classify wraps contention failures with ErrTxConflict.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) && (me.Number == mysqlDeadlock || me.Number == mysqlLockWaitTimeout) {
		return fmt.Errorf("%w: %v", ErrTxConflict, err)
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, mysql.ErrInvalidConn) {
		return fmt.Errorf("%w: %v", ErrTxConflict, err)
	}
	return err
}
