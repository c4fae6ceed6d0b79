package topology

import "errors"

// ErrNotImplemented is returned by loaders that exist only as placeholders.
var ErrNotImplemented = errors.New("not implemented")
