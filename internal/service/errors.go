package service

import "errors"

// ErrCheckoutInProgress is returned when a user's checkout lock is already
// held by another in-flight request.
var ErrCheckoutInProgress = errors.New("another checkout is in progress")
