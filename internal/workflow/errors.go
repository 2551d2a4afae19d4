package workflow

import "errors"

// NonRetryableError помечает ошибку шага, при которой повтор бессмысленен.
// Консьюмер завершает ран со статусом failed без повторов.
type NonRetryableError struct {
	Reason string
}

func (e *NonRetryableError) Error() string {
	return e.Reason
}

// NonRetryable оборачивает причину в NonRetryableError.
func NonRetryable(reason string) error {
	return &NonRetryableError{Reason: reason}
}

// IsNonRetryable сообщает, является ли ошибка (или ее причина) невосстановимой.
func IsNonRetryable(err error) bool {
	var nre *NonRetryableError
	return errors.As(err, &nre)
}
