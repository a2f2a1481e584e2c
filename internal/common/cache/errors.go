package cache

import "errors"

var ErrNoLoader = errors.New("cache: no loader configured")
