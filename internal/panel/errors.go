package panel

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNotFound у пользователя нет записи на панели. Это нормальное состояние для нового пользователя.
var ErrNotFound = errors.New("panel user not found")

// StatusError неожиданный HTTP-статус от панели.
type StatusError struct {
	Op   string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Op, e.Code, e.Body)
}

// IsUnauthorized сообщает, что токен панели отклонён.
func IsUnauthorized(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusUnauthorized
}
