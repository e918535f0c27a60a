package zcl

import (
	"encoding/binary"
	"fmt"
	"math"
)

// ZCL data type IDs
const (
	TypeNoData     uint8 = 0x00
	TypeBool       uint8 = 0x10
	TypeBitmap8    uint8 = 0x18
	TypeBitmap16   uint8 = 0x19
	TypeBitmap24   uint8 = 0x1A
	TypeBitmap32   uint8 = 0x1B
	TypeUint8      uint8 = 0x20
	TypeUint16     uint8 = 0x21
	TypeUint24     uint8 = 0x22
	TypeUint32     uint8 = 0x23
	TypeUint40     uint8 = 0x24
	TypeUint48     uint8 = 0x25
	TypeInt8       uint8 = 0x28
	TypeInt16      uint8 = 0x29
	TypeInt24      uint8 = 0x2A
	TypeInt32      uint8 = 0x2B
	TypeEnum8      uint8 = 0x30
	TypeEnum16     uint8 = 0x31
	TypeFloat32    uint8 = 0x39
	TypeFloat64    uint8 = 0x3A
	TypeOctetStr   uint8 = 0x41
	TypeCharStr    uint8 = 0x42
	TypeOctetStr16 uint8 = 0x43
	TypeCharStr16  uint8 = 0x44
	TypeUTC        uint8 = 0xE2
	TypeClusterID  uint8 = 0xE8
	TypeAttrID     uint8 = 0xE9
	TypeEUI64      uint8 = 0xF0
)

type typeClass int

const (
	classUnsigned typeClass = iota
	classSigned
	classBool
	classFloat
	classString
	classOctets
	classEUI64
	classNone
)

type typeInfo struct {
	name  string
	size  int // -1 for length-prefixed
	class typeClass
}

var typeTable = map[uint8]typeInfo{
	TypeNoData:     {"nodata", 0, classNone},
	TypeBool:       {"bool", 1, classBool},
	TypeBitmap8:    {"map8", 1, classUnsigned},
	TypeBitmap16:   {"map16", 2, classUnsigned},
	TypeBitmap24:   {"map24", 3, classUnsigned},
	TypeBitmap32:   {"map32", 4, classUnsigned},
	TypeUint8:      {"uint8", 1, classUnsigned},
	TypeUint16:     {"uint16", 2, classUnsigned},
	TypeUint24:     {"uint24", 3, classUnsigned},
	TypeUint32:     {"uint32", 4, classUnsigned},
	TypeUint40:     {"uint40", 5, classUnsigned},
	TypeUint48:     {"uint48", 6, classUnsigned},
	TypeInt8:       {"int8", 1, classSigned},
	TypeInt16:      {"int16", 2, classSigned},
	TypeInt24:      {"int24", 3, classSigned},
	TypeInt32:      {"int32", 4, classSigned},
	TypeEnum8:      {"enum8", 1, classUnsigned},
	TypeEnum16:     {"enum16", 2, classUnsigned},
	TypeFloat32:    {"single", 4, classFloat},
	TypeFloat64:    {"double", 8, classFloat},
	TypeOctetStr:   {"octstr", -1, classOctets},
	TypeCharStr:    {"string", -1, classString},
	TypeOctetStr16: {"octstr16", -1, classOctets},
	TypeCharStr16:  {"string16", -1, classString},
	TypeUTC:        {"utc", 4, classUnsigned},
	TypeClusterID:  {"clusterId", 2, classUnsigned},
	TypeAttrID:     {"attrId", 2, classUnsigned},
	TypeEUI64:      {"EUI64", 8, classEUI64},
}

// TypeSize returns the fixed size in bytes of a ZCL type, or -1 for
// length-prefixed and unknown types.
func TypeSize(typeID uint8) int {
	info, ok := typeTable[typeID]
	if !ok {
		return -1
	}
	return info.size
}

// TypeName returns the herdsman-style name of a ZCL type.
func TypeName(typeID uint8) string {
	if info, ok := typeTable[typeID]; ok {
		return info.name
	}
	return fmt.Sprintf("0x%02X", typeID)
}

// TypeByName resolves a type name as returned by TypeName.
func TypeByName(name string) (uint8, bool) {
	for id, info := range typeTable {
		if info.name == name {
			return id, true
		}
	}
	return 0, false
}

// lengthPrefix returns the width of the length prefix of a string type.
func lengthPrefix(typeID uint8) int {
	if typeID == TypeOctetStr16 || typeID == TypeCharStr16 {
		return 2
	}
	return 1
}

// DecodeValue decodes a typed value from data, returning the value and the
// number of bytes consumed. Unsigned integers decode to the smallest Go type
// that holds them (uint8, uint16, uint32, uint64), signed to int8/16/32.
func DecodeValue(typeID uint8, data []byte) (any, int, error) {
	info, ok := typeTable[typeID]
	if !ok {
		return nil, 0, fmt.Errorf("zcl: unsupported type 0x%02X", typeID)
	}
	if info.size < 0 {
		return decodeString(typeID, info.class, data)
	}
	if len(data) < info.size {
		return nil, 0, fmt.Errorf("zcl: not enough data for %s: need %d, have %d", info.name, info.size, len(data))
	}

	raw := readUint(data, info.size)
	switch info.class {
	case classNone:
		return nil, 0, nil
	case classBool:
		return raw != 0, 1, nil
	case classSigned:
		shift := 64 - 8*uint(info.size)
		v := int64(raw<<shift) >> shift
		switch info.size {
		case 1:
			return int8(v), 1, nil
		case 2:
			return int16(v), 2, nil
		default:
			return int32(v), info.size, nil
		}
	case classFloat:
		if info.size == 4 {
			return math.Float32frombits(uint32(raw)), 4, nil
		}
		return math.Float64frombits(raw), 8, nil
	case classEUI64:
		var addr [8]byte
		copy(addr[:], data[:8])
		return addr, 8, nil
	}

	switch {
	case info.size == 1:
		return uint8(raw), 1, nil
	case info.size == 2:
		return uint16(raw), 2, nil
	case info.size <= 4:
		return uint32(raw), info.size, nil
	default:
		return raw, info.size, nil
	}
}

func decodeString(typeID uint8, class typeClass, data []byte) (any, int, error) {
	prefix := lengthPrefix(typeID)
	if len(data) < prefix {
		return nil, 0, fmt.Errorf("zcl: missing length prefix for %s", TypeName(typeID))
	}
	length := int(readUint(data, prefix))
	if (prefix == 1 && length == 0xFF) || (prefix == 2 && length == 0xFFFF) {
		return nil, prefix, nil
	}
	if len(data) < prefix+length {
		return nil, 0, fmt.Errorf("zcl: %s truncated: need %d, have %d", TypeName(typeID), length, len(data)-prefix)
	}
	body := data[prefix : prefix+length]
	if class == classString {
		return string(body), prefix + length, nil
	}
	b := make([]byte, length)
	copy(b, body)
	return b, prefix + length, nil
}

// EncodeValue encodes a Go value into ZCL wire format, checking the range of
// the target type.
func EncodeValue(typeID uint8, val any) ([]byte, error) {
	info, ok := typeTable[typeID]
	if !ok || info.class == classNone {
		return nil, fmt.Errorf("zcl: encode not implemented for type 0x%02X", typeID)
	}

	switch info.class {
	case classBool:
		v, ok := toBool(val)
		if !ok {
			return nil, fmt.Errorf("zcl: cannot convert %T to bool", val)
		}
		if v {
			return []byte{1}, nil
		}
		return []byte{0}, nil

	case classUnsigned:
		v, ok := toUint64(val)
		if !ok {
			return nil, fmt.Errorf("zcl: cannot convert %T to %s", val, info.name)
		}
		limit := uint64(1)<<(8*uint(info.size)) - 1
		if v > limit {
			return nil, fmt.Errorf("zcl: value %d overflows %s (max %d)", v, info.name, limit)
		}
		return writeUint(v, info.size), nil

	case classSigned:
		v, ok := toInt64(val)
		if !ok {
			return nil, fmt.Errorf("zcl: cannot convert %T to %s", val, info.name)
		}
		bits := 8 * uint(info.size)
		lo, hi := -(int64(1) << (bits - 1)), int64(1)<<(bits-1)-1
		if v < lo || v > hi {
			return nil, fmt.Errorf("zcl: value %d overflows %s (range %d..%d)", v, info.name, lo, hi)
		}
		return writeUint(uint64(v), info.size), nil

	case classFloat:
		v, ok := toFloat64(val)
		if !ok {
			return nil, fmt.Errorf("zcl: cannot convert %T to %s", val, info.name)
		}
		if info.size == 4 {
			return writeUint(uint64(math.Float32bits(float32(v))), 4), nil
		}
		return writeUint(math.Float64bits(v), 8), nil

	case classEUI64:
		switch a := val.(type) {
		case [8]byte:
			return append([]byte(nil), a[:]...), nil
		case []byte:
			if len(a) != 8 {
				return nil, fmt.Errorf("zcl: EUI64 requires 8 bytes, got %d", len(a))
			}
			return append([]byte(nil), a...), nil
		}
		return nil, fmt.Errorf("zcl: cannot convert %T to EUI64", val)
	}

	var body []byte
	switch v := val.(type) {
	case string:
		body = []byte(v)
	case []byte:
		if info.class == classString {
			return nil, fmt.Errorf("zcl: cannot convert %T to %s", val, info.name)
		}
		body = v
	default:
		return nil, fmt.Errorf("zcl: cannot convert %T to %s", val, info.name)
	}
	prefix := lengthPrefix(typeID)
	max := 254
	if prefix == 2 {
		max = 65534
	}
	if len(body) > max {
		return nil, fmt.Errorf("zcl: data too long for %s: %d (max %d)", info.name, len(body), max)
	}
	return append(writeUint(uint64(len(body)), prefix), body...), nil
}

func readUint(data []byte, size int) uint64 {
	var v uint64
	for i := size - 1; i >= 0; i-- {
		v = v<<8 | uint64(data[i])
	}
	return v
}

func writeUint(v uint64, size int) []byte {
	if size == 8 {
		return binary.LittleEndian.AppendUint64(nil, v)
	}
	buf := make([]byte, size)
	for i := range buf {
		buf[i] = byte(v >> (8 * uint(i)))
	}
	return buf
}

func toBool(v any) (bool, bool) {
	switch val := v.(type) {
	case bool:
		return val, true
	case float64:
		return val != 0, true
	case int:
		return val != 0, true
	case uint8:
		return val != 0, true
	}
	return false, false
}

func toUint64(v any) (uint64, bool) {
	i, ok := toInt64(v)
	if ok && i >= 0 {
		return uint64(i), true
	}
	if u, isU := v.(uint64); isU {
		return u, true
	}
	return 0, false
}

func toFloat64(v any) (float64, bool) {
	switch val := v.(type) {
	case float32:
		return float64(val), true
	case float64:
		return val, true
	}
	if i, ok := toInt64(v); ok {
		return float64(i), true
	}
	return 0, false
}

func toInt64(v any) (int64, bool) {
	switch val := v.(type) {
	case int8:
		return int64(val), true
	case int16:
		return int64(val), true
	case int32:
		return int64(val), true
	case int64:
		return val, true
	case int:
		return int64(val), true
	case uint8:
		return int64(val), true
	case uint16:
		return int64(val), true
	case uint32:
		return int64(val), true
	case uint:
		if uint64(val) > math.MaxInt64 {
			return 0, false
		}
		return int64(val), true
	case uint64:
		if val > math.MaxInt64 {
			return 0, false
		}
		return int64(val), true
	case float64:
		if val != math.Trunc(val) || val > math.MaxInt64 || val < math.MinInt64 {
			return 0, false
		}
		return int64(val), true
	}
	return 0, false
}

// ToInt64 converts any Go numeric value to int64. Floats must be integral.
func ToInt64(v any) (int64, bool) { return toInt64(v) }
