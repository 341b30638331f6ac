package storage

import (
	"database/sql/driver"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

var (
	ErrUserNotFound     = errors.New("user not found")
	ErrProductNotFound  = errors.New("product not found")
	ErrCartItemNotFound = errors.New("cart item not found")
	ErrOrderNotFound    = errors.New("order not found")
	ErrEmailTaken       = errors.New("email already registered")
	ErrQuantityLimit    = errors.New("cart line quantity limit exceeded")

	// ErrTransient - ошибки, после которых можно повторить: таймаут блокировки, дедлок, обрыв соединения
	ErrTransient = errors.New("transient storage failure")
	// ErrConstraint - нарушено ограничение БД, например остаток ушёл бы в минус
	ErrConstraint = errors.New("constraint violation")
)

// коды ошибок postgres
const (
	codeLockNotAvailable     = "55P03"
	codeDeadlockDetected     = "40P01"
	codeSerializationFailure = "40001"
	codeQueryCanceled        = "57014"
	codeCheckViolation       = "23514"
	codeForeignKeyViolation  = "23503"
	codeUniqueViolation      = "23505"
	codeNumericOutOfRange    = "22003"
)

// classify сводит ошибки драйвера к ErrTransient и ErrConstraint, сохраняя причину
func classify(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case codeLockNotAvailable, codeDeadlockDetected, codeSerializationFailure, codeQueryCanceled:
			return fmt.Errorf("%w: %w", ErrTransient, err)
		case codeCheckViolation:
			return fmt.Errorf("%w: %w", ErrConstraint, err)
		}
	}
	if errors.Is(err, driver.ErrBadConn) {
		return fmt.Errorf("%w: %w", ErrTransient, err)
	}
	return err
}

// Classify - то же самое для вызывающих вне пакета, работающих с *sql.Tx напрямую
func Classify(err error) error {
	return classify(err)
}

func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

func pqCode(err error) (pq.ErrorCode, string) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code, pqErr.Constraint
	}
	return "", ""
}
