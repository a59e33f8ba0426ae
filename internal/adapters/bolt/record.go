package bolt

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/bft-labs/fahmunge/internal/domain"
)

// frameRecord is the persisted form of a domain.Frame.
type frameRecord struct {
	Time       float32         `msgpack:"time"`
	NAtoms     uint32          `msgpack:"natoms"`
	Coords     []byte          `msgpack:"coords"` // zstd(little-endian float32)
	Lengths    [3]float32      `msgpack:"cell_lengths"`
	Angles     [3]float32      `msgpack:"cell_angles"`
	Velocities []byte          `msgpack:"velocities,omitempty"`
	Energies   *energiesRecord `msgpack:"energies,omitempty"`
}

type energiesRecord struct {
	Kinetic          float32 `msgpack:"kinetic"`
	Potential        float32 `msgpack:"potential"`
	Temperature      float32 `msgpack:"temperature"`
	AlchemicalLambda float32 `msgpack:"lambda"`
}

// ledgerRecord is the persisted form of a domain.LedgerEntry.
type ledgerRecord struct {
	ID    string `msgpack:"id"`
	First uint64 `msgpack:"first"`
	Count uint64 `msgpack:"count"`
}

var (
	codecOnce sync.Once
	encoder   *zstd.Encoder
	decoder   *zstd.Decoder
	codecErr  error
)

func codecs() (*zstd.Encoder, *zstd.Decoder, error) {
	codecOnce.Do(func() {
		encoder, codecErr = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if codecErr != nil {
			return
		}
		decoder, codecErr = zstd.NewReader(nil)
	})
	return encoder, decoder, codecErr
}

func packFloats(v []float32) ([]byte, error) {
	if len(v) == 0 {
		return nil, nil
	}
	enc, _, err := codecs()
	if err != nil {
		return nil, err
	}
	raw := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(raw[4*i:], math.Float32bits(f))
	}
	return enc.EncodeAll(raw, nil), nil
}

func unpackFloats(b []byte, n int) ([]float32, error) {
	if len(b) == 0 {
		return nil, nil
	}
	_, dec, err := codecs()
	if err != nil {
		return nil, err
	}
	raw, err := dec.DecodeAll(b, make([]byte, 0, 4*n))
	if err != nil {
		return nil, err
	}
	if len(raw) != 4*n {
		return nil, fmt.Errorf("decoded %d bytes, want %d", len(raw), 4*n)
	}
	out := make([]float32, n)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[4*i:]))
	}
	return out, nil
}

func encodeFrame(f domain.Frame) ([]byte, error) {
	coords, err := packFloats(f.Coords)
	if err != nil {
		return nil, err
	}
	vel, err := packFloats(f.Velocities)
	if err != nil {
		return nil, err
	}
	rec := frameRecord{
		Time:       f.Time,
		NAtoms:     uint32(f.NAtoms()),
		Coords:     coords,
		Lengths:    f.CellLengths,
		Angles:     f.CellAngles,
		Velocities: vel,
	}
	if e := f.Energies; e != nil {
		rec.Energies = &energiesRecord{
			Kinetic:          e.Kinetic,
			Potential:        e.Potential,
			Temperature:      e.Temperature,
			AlchemicalLambda: e.AlchemicalLambda,
		}
	}
	return msgpack.Marshal(&rec)
}

func decodeFrame(b []byte) (domain.Frame, error) {
	var rec frameRecord
	if err := msgpack.Unmarshal(b, &rec); err != nil {
		return domain.Frame{}, err
	}
	n := 3 * int(rec.NAtoms)
	coords, err := unpackFloats(rec.Coords, n)
	if err != nil {
		return domain.Frame{}, fmt.Errorf("coordinates: %w", err)
	}
	vel, err := unpackFloats(rec.Velocities, n)
	if err != nil {
		return domain.Frame{}, fmt.Errorf("velocities: %w", err)
	}
	f := domain.Frame{
		Time:        rec.Time,
		Coords:      coords,
		CellLengths: rec.Lengths,
		CellAngles:  rec.Angles,
		Velocities:  vel,
	}
	if e := rec.Energies; e != nil {
		f.Energies = &domain.Energies{
			Kinetic:          e.Kinetic,
			Potential:        e.Potential,
			Temperature:      e.Temperature,
			AlchemicalLambda: e.AlchemicalLambda,
		}
	}
	return f, nil
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func btoi(b []byte) uint64 {
	return binary.BigEndian.Uint64(b)
}
