// Package errs defines the node's error taxonomy: a small set of typed
// failure kinds that every component wraps its causes in, so callers can
// use errors.As to decide whether a failure is fatal, retryable, or a
// benign not-found rather than parsing message strings.
package errs

import "fmt"

// Kind labels which taxonomy bucket an error falls into.
type Kind string

const (
	KindConfiguration Kind = "configuration"
	KindStorage       Kind = "storage"
	KindCrypto        Kind = "crypto"
	KindProtocol      Kind = "protocol"
	KindTimeout       Kind = "timeout"
	KindConsensus     Kind = "consensus"
	KindNotFound      Kind = "not_found"
)

// Error wraps a cause with a taxonomy Kind and a Fatal flag.
// Fatal errors must propagate to the top level and terminate the process;
// non-fatal errors are absorbed at the component boundary that produced them.
type Error struct {
	Kind  Kind
	Fatal bool
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Cause }

func wrap(kind Kind, fatal bool, msg string, cause error) *Error {
	return &Error{Kind: kind, Fatal: fatal, Msg: msg, Cause: cause}
}

// Configuration wraps a bad CLI/env/config-file error. Always fatal at startup.
func Configuration(msg string, cause error) *Error { return wrap(KindConfiguration, true, msg, cause) }

// Storage wraps a backing-store failure. fatal should be true only for
// invariant violations (broken chain tail, missing referenced fact); a
// transient I/O failure should be non-fatal so the caller can retry.
func Storage(msg string, cause error, fatal bool) *Error {
	return wrap(KindStorage, fatal, msg, cause)
}

// Crypto wraps a signature or hash mismatch. Never fatal: the offending
// message is dropped and the sender's reputation is penalised.
func Crypto(msg string, cause error) *Error { return wrap(KindCrypto, false, msg, cause) }

// Protocol wraps a malformed frame, unknown message type, or oversize
// payload. Never fatal: the connection is dropped with a penalty.
func Protocol(msg string, cause error) *Error { return wrap(KindProtocol, false, msg, cause) }

// Timeout wraps an expected reply that never arrived.
func Timeout(msg string, cause error) *Error { return wrap(KindTimeout, false, msg, cause) }

// Consensus wraps an invalid block, wrong-leader, or equivocation failure.
func Consensus(msg string, cause error) *Error { return wrap(KindConsensus, false, msg, cause) }

// NotFound wraps a benign lookup miss. Surfaced as 404 on HTTP, an empty
// reply on P2P.
func NotFound(msg string) *Error { return wrap(KindNotFound, false, msg, nil) }

// IsFatal reports whether err (or any error it wraps) is a fatal *Error.
func IsFatal(err error) bool {
	var e *Error
	for err != nil {
		if as, ok := err.(*Error); ok {
			e = as
			if e.Fatal {
				return true
			}
		}
		err = unwrapOnce(err)
	}
	return false
}

func unwrapOnce(err error) error {
	u, ok := err.(interface{ Unwrap() error })
	if !ok {
		return nil
	}
	return u.Unwrap()
}
