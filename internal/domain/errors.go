package domain

import "errors"

// ErrDuplicate is returned by repositories when a unique field is already taken.
var ErrDuplicate = errors.New("duplicate record")
