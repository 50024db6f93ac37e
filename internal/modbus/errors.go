package modbus

import (
	"errors"
	"fmt"
)

// The client reports every failure as exactly one of three kinds:
//
//   - ConnectionError: the host was unreachable or refused the connection.
//   - TimeoutError: the device produced no response within the budget.
//   - ProtocolError: the device responded with a malformed or unexpected frame.
//
// Retry and suspension policy belongs to the caller.

type ConnectionError struct {
	Addr string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("modbus connect %s: %v", e.Addr, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

type TimeoutError struct {
	Addr string
	Err  error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("modbus timeout %s: %v", e.Addr, e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

type ProtocolError struct {
	Addr   string
	Reason string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("modbus protocol %s: %s", e.Addr, e.Reason)
}

// IsConnection reports whether err is (or wraps) a ConnectionError.
func IsConnection(err error) bool {
	var ce *ConnectionError
	return errors.As(err, &ce)
}

// IsTimeout reports whether err is (or wraps) a TimeoutError.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

// IsProtocol reports whether err is (or wraps) a ProtocolError.
func IsProtocol(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}
