// Package codec converts between Modbus 16-bit register words and typed
// scalars, and applies the SMA register scaling conventions (FIX0..FIX3,
// TEMP, or a tag-list mapping).
package codec

import (
	"encoding/binary"
	"fmt"
)

// DataType identifies the wire representation of a Modbus register value.
type DataType string

const (
	U16 DataType = "U16"
	S16 DataType = "S16"
	U32 DataType = "U32"
	S32 DataType = "S32"
	U64 DataType = "U64"
	S64 DataType = "S64"
)

// Scaling identifies the SMA fixed-point scaling applied after decoding.
type Scaling string

const (
	FIX0 Scaling = "FIX0"
	FIX1 Scaling = "FIX1"
	FIX2 Scaling = "FIX2"
	FIX3 Scaling = "FIX3"
	TEMP Scaling = "TEMP"
)

// TagList is a scaling that looks decoded integer values up in a mapping,
// eg. register values that encode an enumerated device state.
type TagList map[int64]string

// WordsFor returns the number of 16-bit registers dtype occupies.
func WordsFor(dtype DataType) (int, error) {
	switch dtype {
	case U16, S16:
		return 1, nil
	case U32, S32:
		return 2, nil
	case U64, S64:
		return 4, nil
	default:
		return 0, fmt.Errorf("codec: unrecognized Modbus data type %q", dtype)
	}
}

// Decode interprets words as big-endian dtype, sign-extending as needed, then
// applies scaling (nil scaling leaves the decoded integer unscaled).
//
// scaling may be a Scaling (FIX0/FIX1/FIX2/FIX3/TEMP) or a TagList. Any other
// type is a programmer error.
func Decode(dtype DataType, words []uint16, scaling any) (any, error) {
	n, err := WordsFor(dtype)
	if err != nil {
		return nil, err
	}
	if len(words) != n {
		return nil, fmt.Errorf("codec: %s requires %d words, got %d", dtype, n, len(words))
	}

	raw := wordsToUint64(words)

	var signed int64
	var unsigned uint64 = raw
	switch dtype {
	case U16:
		unsigned = raw & 0xFFFF
	case S16:
		signed = int64(int16(uint16(raw)))
	case U32:
		unsigned = raw & 0xFFFFFFFF
	case S32:
		signed = int64(int32(uint32(raw)))
	case U64:
		unsigned = raw
	case S64:
		signed = int64(raw)
	}

	isSigned := dtype == S16 || dtype == S32 || dtype == S64

	if scaling == nil {
		if isSigned {
			return signed, nil
		}
		return unsigned, nil
	}

	switch s := scaling.(type) {
	case Scaling:
		return applyScale(s, signed, unsigned, isSigned)
	case TagList:
		var key int64
		if isSigned {
			key = signed
		} else {
			key = int64(unsigned)
		}
		tag, ok := s[key]
		if !ok {
			return nil, fmt.Errorf("codec: no tag-list mapping for value %d", key)
		}
		return tag, nil
	default:
		return nil, fmt.Errorf("codec: unsupported scaling type %T", scaling)
	}
}

func applyScale(s Scaling, signed int64, unsigned uint64, isSigned bool) (any, error) {
	toFloat := func() float64 {
		if isSigned {
			return float64(signed)
		}
		return float64(unsigned)
	}

	switch s {
	case FIX0:
		if isSigned {
			return signed, nil
		}
		return unsigned, nil
	case FIX1:
		return toFloat() / 10.0, nil
	case FIX2:
		return toFloat() / 100.0, nil
	case FIX3:
		return toFloat() / 1000.0, nil
	case TEMP:
		return toFloat() / 10.0, nil
	default:
		return nil, fmt.Errorf("codec: unrecognized scaling %q", s)
	}
}

func wordsToUint64(words []uint16) uint64 {
	buf := make([]byte, len(words)*2)
	for i, w := range words {
		binary.BigEndian.PutUint16(buf[i*2:], w)
	}
	switch len(buf) {
	case 2:
		return uint64(binary.BigEndian.Uint16(buf))
	case 4:
		return uint64(binary.BigEndian.Uint32(buf))
	case 8:
		return binary.BigEndian.Uint64(buf)
	default:
		return 0
	}
}

// EncodeS32 splits watts (two's complement, 32-bit) into big-endian
// [hi, lo] 16-bit words, used to build the rendement (40149) write payload.
func EncodeS32(watts int32) [2]uint16 {
	u := uint32(watts)
	return [2]uint16{
		uint16(u >> 16),
		uint16(u & 0xFFFF),
	}
}

// DecodeS32 is the inverse of EncodeS32, used by round-trip tests.
func DecodeS32(words [2]uint16) int32 {
	u := uint32(words[0])<<16 | uint32(words[1])
	return int32(u)
}
