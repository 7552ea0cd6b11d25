package repositories

import "errors"

// Storage error sentinels. Implementations wrap them with fmt.Errorf("...: %w").
var (
	ErrNotFound     = errors.New("record not found")
	ErrDuplicateKey = errors.New("duplicate key")
)
