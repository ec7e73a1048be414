package svc

import "errors"

// ErrNilConfig is returned when the service context is built without a
// configuration.
var ErrNilConfig = errors.New("nil config")
