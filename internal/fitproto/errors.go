package fitproto

import "errors"

// Sentinel errors raised by the wire-level decoder. The root fit package
// wraps these in a DecodeError that adds an error kind; callers
// that only care about the kind can still match with errors.Is against the
// values here.
var (
	ErrBadHeader           = errors.New("fitproto: bad header")
	ErrNotFit              = errors.New("fitproto: not a FIT file")
	ErrUndefinedLocalType  = errors.New("fitproto: data message references undefined local type")
	ErrOrphanCompressedTS  = errors.New("fitproto: compressed timestamp header before any timestamp anchor")
	ErrUnsupportedBaseType = errors.New("fitproto: unsupported base type")
	ErrTruncated           = errors.New("fitproto: stream ended before data_size was satisfied")
)
