package collection

import "errors"

// ErrClosed is returned when a collection is used after Close.
var ErrClosed = errors.New("collection is closed")
