package partitiondistribution

import "errors"

// ErrInvalidArgument is returned (wrapped) when a value can't be constructed from the given input.
var ErrInvalidArgument = errors.New("invalid argument")
