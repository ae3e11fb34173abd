package domain

import "errors"

var ErrNoLayerImported = errors.New("no layer imported")
