package telemetry

import (
	"context"
	"fmt"
	"math"

	"hoodwatch/internal/modbus"
)

// RegisterReader is the protocol primitive the reader composes over.
type RegisterReader interface {
	ReadHolding(ctx context.Context, addr string, unit byte, reg, count uint16) ([]uint16, error)
	ReadInput(ctx context.Context, addr string, unit byte, reg, count uint16) ([]uint16, error)
}

// RegisterMap carries the deployment-specific register layout of a section
// controller. Values come from configuration, never from code.
type RegisterMap struct {
	UnitID byte
	// Lamp burn hours for slot N live at LampHoursBase + (N-1)*LampHoursStride,
	// encoded as a big-endian float register pair.
	LampHoursBase   uint16
	LampHoursStride uint16
	// LifeSetpoint is the section-wide max-hours register pair.
	LifeSetpoint uint16
	// DPS is a single holding register, zero meaning tripped.
	DPS uint16
	// FilterPressure is an input register pair, pascals.
	FilterPressure uint16
}

// Reader decodes per-device measurements for one register layout. Protocol
// failures pass through unchanged; the reader adds no retry or
// reclassification.
type Reader struct {
	client RegisterReader
	regs   RegisterMap
}

func NewReader(client RegisterReader, regs RegisterMap) *Reader {
	return &Reader{client: client, regs: regs}
}

// ReadLampHours returns the accumulated burn hours of one lamp slot (1-4).
func (r *Reader) ReadLampHours(ctx context.Context, addr string, slot int) (float64, error) {
	if slot < 1 || slot > 4 {
		return 0, fmt.Errorf("lamp slot %d out of range 1-4", slot)
	}
	reg := r.regs.LampHoursBase + uint16(slot-1)*r.regs.LampHoursStride
	return r.readFloatPair(ctx, addr, reg, modbus.FuncReadHolding)
}

// ReadLifeSetpoint returns the configured life-hours setpoint shared by the
// section's lamps.
func (r *Reader) ReadLifeSetpoint(ctx context.Context, addr string) (float64, error) {
	return r.readFloatPair(ctx, addr, r.regs.LifeSetpoint, modbus.FuncReadHolding)
}

// ReadDPS returns true when the differential pressure switch is closed (ok).
func (r *Reader) ReadDPS(ctx context.Context, addr string) (bool, error) {
	regs, err := r.client.ReadHolding(ctx, addr, r.regs.UnitID, r.regs.DPS, 1)
	if err != nil {
		return false, err
	}
	return regs[0] != 0, nil
}

// ReadFilterPressure returns the filter differential pressure in pascals.
func (r *Reader) ReadFilterPressure(ctx context.Context, addr string) (float64, error) {
	return r.readFloatPair(ctx, addr, r.regs.FilterPressure, modbus.FuncReadInput)
}

func (r *Reader) readFloatPair(ctx context.Context, addr string, reg uint16, fc byte) (float64, error) {
	var (
		regs []uint16
		err  error
	)
	if fc == modbus.FuncReadInput {
		regs, err = r.client.ReadInput(ctx, addr, r.regs.UnitID, reg, 2)
	} else {
		regs, err = r.client.ReadHolding(ctx, addr, r.regs.UnitID, reg, 2)
	}
	if err != nil {
		return 0, err
	}
	v := modbus.PairToFloat(regs[0], regs[1])
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0, &modbus.ProtocolError{Addr: addr, Reason: fmt.Sprintf("register %d decoded to invalid value %v", reg, v)}
	}
	return v, nil
}
