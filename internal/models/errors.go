package models

import "errors"

var ErrIllegalTransition = errors.New("illegal stage transition")
