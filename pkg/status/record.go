package status

// Record is the in/out error record of the boundary contract.
// A zero Record means success.
type Record struct {
	Code    int    `json:"code"`
	Kind    Kind   `json:"kind,omitempty"`
	Message string `json:"message"`
}

// Capture converts err into a Record. A nil error yields a success record.
func Capture(err error) Record {
	if err == nil {
		return Record{}
	}
	return Record{Code: int(CodeOf(err)), Kind: KindOf(err), Message: err.Error()}
}

// OK reports whether the record indicates success.
func (r Record) OK() bool {
	return r.Code == int(OK)
}

// Err converts the record back into an error, nil on success. A record
// without a kind takes the kind implied by its code.
func (r Record) Err() error {
	if r.OK() {
		return nil
	}
	kind := r.Kind
	if kind == KindNone {
		kind = kindForCode(Code(r.Code))
	}
	return &Error{Code: Code(r.Code), Kind: kind, Message: r.Message}
}

// Clear resets the record to success.
func (r *Record) Clear() {
	*r = Record{}
}

func kindForCode(c Code) Kind {
	switch c {
	case OK:
		return KindNone
	case InvalidArgument, InvalidObject, RegistrationFailure, Discard:
		return KindInvalidArgument
	case InvalidStateTransition, InvalidFunctionCall:
		return KindInvalidState
	case ConnectionFailure:
		return KindConnection
	case Fatal, UserAbort:
		return KindFederationFatal
	case ExecutionFailure:
		return KindLocalFatal
	default:
		return KindInvalidArgument
	}
}
