package modbus

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"sync/atomic"
	"time"
)

// Modbus TCP function codes used by the fleet.
const (
	FuncReadHolding byte = 0x03
	FuncReadInput   byte = 0x04
)

const (
	// DefaultTimeout bounds a full transaction (dial, write, response).
	DefaultTimeout = 3 * time.Second

	mbapHeaderLen    = 7
	mbapProtocolID   = 0
	maxRegisterCount = 125
	exceptionBit     = 0x80
)

// Client issues single-transaction register reads over Modbus TCP. One TCP
// connection per transaction: sections are polled on tens-of-seconds
// intervals, and a fresh dial keeps connection faults visible per attempt.
type Client struct {
	timeout time.Duration
	txnID   atomic.Uint32
}

// NewClient returns a client with the given per-transaction timeout.
// Non-positive timeouts fall back to DefaultTimeout.
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{timeout: timeout}
}

// ReadHolding reads count holding registers starting at reg (FC 3).
func (c *Client) ReadHolding(ctx context.Context, addr string, unit byte, reg, count uint16) ([]uint16, error) {
	return c.read(ctx, addr, unit, FuncReadHolding, reg, count)
}

// ReadInput reads count input registers starting at reg (FC 4).
func (c *Client) ReadInput(ctx context.Context, addr string, unit byte, reg, count uint16) ([]uint16, error) {
	return c.read(ctx, addr, unit, FuncReadInput, reg, count)
}

func (c *Client) read(ctx context.Context, addr string, unit, fc byte, reg, count uint16) ([]uint16, error) {
	if count == 0 || count > maxRegisterCount {
		return nil, &ProtocolError{Addr: addr, Reason: fmt.Sprintf("register count %d out of range", count)}
	}

	dialer := net.Dialer{Timeout: c.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, classifyIOErr(addr, err, true)
	}
	defer func() { _ = conn.Close() }()

	// One deadline covers the whole request/response exchange.
	if err := conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
		return nil, &ConnectionError{Addr: addr, Err: err}
	}

	txn := uint16(c.txnID.Add(1))
	if _, err := conn.Write(buildReadFrame(txn, unit, fc, reg, count)); err != nil {
		return nil, classifyIOErr(addr, err, true)
	}

	header := make([]byte, mbapHeaderLen)
	if _, err := io.ReadFull(conn, header); err != nil {
		return nil, classifyIOErr(addr, err, false)
	}
	if got := binary.BigEndian.Uint16(header[0:2]); got != txn {
		return nil, &ProtocolError{Addr: addr, Reason: fmt.Sprintf("transaction id mismatch: sent %d, got %d", txn, got)}
	}
	if proto := binary.BigEndian.Uint16(header[2:4]); proto != mbapProtocolID {
		return nil, &ProtocolError{Addr: addr, Reason: fmt.Sprintf("unexpected protocol id %d", proto)}
	}
	// Length covers unit id + PDU; unit id is part of the 7-byte header.
	pduLen := int(binary.BigEndian.Uint16(header[4:6])) - 1
	if pduLen < 2 {
		return nil, &ProtocolError{Addr: addr, Reason: fmt.Sprintf("response PDU too short (%d bytes)", pduLen)}
	}

	pdu := make([]byte, pduLen)
	if _, err := io.ReadFull(conn, pdu); err != nil {
		return nil, classifyIOErr(addr, err, false)
	}

	if pdu[0] == fc|exceptionBit {
		return nil, &ProtocolError{Addr: addr, Reason: fmt.Sprintf("exception code %d for function %d", pdu[1], fc)}
	}
	if pdu[0] != fc {
		return nil, &ProtocolError{Addr: addr, Reason: fmt.Sprintf("function code mismatch: sent %d, got %d", fc, pdu[0])}
	}
	byteCount := int(pdu[1])
	if byteCount != 2*int(count) || len(pdu) != 2+byteCount {
		return nil, &ProtocolError{Addr: addr, Reason: fmt.Sprintf("byte count %d does not match %d requested registers", byteCount, count)}
	}

	regs := make([]uint16, count)
	for i := range regs {
		regs[i] = binary.BigEndian.Uint16(pdu[2+2*i : 4+2*i])
	}
	return regs, nil
}

// buildReadFrame assembles MBAP header + read-registers PDU.
func buildReadFrame(txn uint16, unit, fc byte, reg, count uint16) []byte {
	frame := make([]byte, 12)
	binary.BigEndian.PutUint16(frame[0:2], txn)
	binary.BigEndian.PutUint16(frame[2:4], mbapProtocolID)
	binary.BigEndian.PutUint16(frame[4:6], 6) // unit + fc + reg + count
	frame[6] = unit
	frame[7] = fc
	binary.BigEndian.PutUint16(frame[8:10], reg)
	binary.BigEndian.PutUint16(frame[10:12], count)
	return frame
}

// classifyIOErr maps transport errors to the failure taxonomy. dialing
// distinguishes where a non-timeout failure lands: before a connection is
// established it is a ConnectionError, after that a truncated conversation
// is an unexpected response.
func classifyIOErr(addr string, err error, dialing bool) error {
	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		return &TimeoutError{Addr: addr, Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{Addr: addr, Err: err}
	}
	if dialing {
		return &ConnectionError{Addr: addr, Err: err}
	}
	return &ProtocolError{Addr: addr, Reason: fmt.Sprintf("response cut short: %v", err)}
}

// PairToFloat decodes two big-endian registers holding an IEEE754 binary32
// value, high word first. This matches the section controllers' float
// encoding.
func PairToFloat(hi, lo uint16) float64 {
	return float64(math.Float32frombits(uint32(hi)<<16 | uint32(lo)))
}

// FloatToPair is the inverse of PairToFloat.
func FloatToPair(v float64) (hi, lo uint16) {
	bits := math.Float32bits(float32(v))
	return uint16(bits >> 16), uint16(bits)
}
