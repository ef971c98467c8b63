package fit

import (
	"errors"
	"fmt"

	"github.com/lucasjlepore/fit-decode/internal/fitproto"
)

// ErrorKind classifies a DecodeError (§7).
type ErrorKind int

const (
	KindBadHeader ErrorKind = iota
	KindNotFit
	KindUndefinedLocalType
	KindOrphanCompressedTimestamp
	KindUnsupportedBaseType
	KindTruncated
	KindStoreError
	KindBadOption
)

func (k ErrorKind) String() string {
	switch k {
	case KindBadHeader:
		return "bad_header"
	case KindNotFit:
		return "not_fit"
	case KindUndefinedLocalType:
		return "undefined_local_type"
	case KindOrphanCompressedTimestamp:
		return "orphan_compressed_timestamp"
	case KindUnsupportedBaseType:
		return "unsupported_base_type"
	case KindTruncated:
		return "truncated"
	case KindStoreError:
		return "store_error"
	case KindBadOption:
		return "bad_option"
	default:
		return "unknown"
	}
}

// DecodeError wraps a decode-time or post-processing failure with the kind
// classification from §7. It carries only the kind and the wrapped error; no
// record index or byte offset is attached.
type DecodeError struct {
	Kind ErrorKind
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("fit: %s: %v", e.Kind, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func classify(err error) *DecodeError {
	switch {
	case errors.Is(err, fitproto.ErrBadHeader):
		return &DecodeError{Kind: KindBadHeader, Err: err}
	case errors.Is(err, fitproto.ErrNotFit):
		return &DecodeError{Kind: KindNotFit, Err: err}
	case errors.Is(err, fitproto.ErrUndefinedLocalType):
		return &DecodeError{Kind: KindUndefinedLocalType, Err: err}
	case errors.Is(err, fitproto.ErrOrphanCompressedTS):
		return &DecodeError{Kind: KindOrphanCompressedTimestamp, Err: err}
	case errors.Is(err, fitproto.ErrUnsupportedBaseType):
		return &DecodeError{Kind: KindUnsupportedBaseType, Err: err}
	case errors.Is(err, fitproto.ErrTruncated):
		return &DecodeError{Kind: KindTruncated, Err: err}
	default:
		return &DecodeError{Kind: KindStoreError, Err: err}
	}
}

var validUnits = map[string]bool{"metric": true, "statute": true, "raw": true}

var validFixData = map[string]bool{
	"all": true, "cadence": true, "distance": true, "heart_rate": true,
	"lat_lon": true, "speed": true, "power": true, "altitude": true,
	"enhanced_speed": true, "enhanced_altitude": true,
}

func validateOptions(cfg Config) error {
	if cfg.Units == "" {
		return nil
	}
	if !validUnits[cfg.Units] {
		return &DecodeError{Kind: KindBadOption, Err: fmt.Errorf("fit: invalid units %q", cfg.Units)}
	}
	for name := range cfg.FixData {
		if !validFixData[name] {
			return &DecodeError{Kind: KindBadOption, Err: fmt.Errorf("fit: invalid fix_data entry %q", name)}
		}
	}
	return nil
}
