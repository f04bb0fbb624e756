package schema

import (
	"errors"
)

var (
	ErrNotExist     = errors.New("not_exist_record")
	ErrNotFound     = errors.New("not_found")
	ErrNotImplement = errors.New("method_not_implement")
)
