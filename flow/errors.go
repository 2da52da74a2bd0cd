package flow

import "errors"

// ErrKeyNotSupported is returned when a plugin is asked to get a key it does
// not produce, or to set a key that is not in its configuration.
var ErrKeyNotSupported = errors.New("flow: key not supported by plugin")

// ErrDataNotAvailableYet is returned when a plugin's get_value is called
// for a key that is legitimately produced later in the pipeline.
var ErrDataNotAvailableYet = errors.New("flow: data not available yet")
