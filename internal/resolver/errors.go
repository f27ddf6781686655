package resolver

import "errors"

var errNoPTR = errors.New("resolver: no PTR record in response")
