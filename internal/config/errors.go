package config

import "errors"

// ErrConfiguration indicates invalid settings; the process should exit
// rather than run with a partial configuration.
var ErrConfiguration = errors.New("invalid configuration")
