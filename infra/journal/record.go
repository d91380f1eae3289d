package journal

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Kind discriminates journal records.
type Kind uint8

const (
	KindCreate Kind = iota + 1
	KindPut
	KindFill
	KindStore
)

func (k Kind) String() string {
	switch k {
	case KindCreate:
		return "create"
	case KindPut:
		return "put"
	case KindFill:
		return "fill"
	case KindStore:
		return "store"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Record is one durable array mutation. Create carries Length and
// ArrayID; Put carries Index and Value; Fill carries Value; Store
// carries the full Values slice.
type Record struct {
	Seq     uint64
	Time    int64
	Kind    Kind
	Name    string
	Index   uint64
	Value   int64
	Length  uint64
	Values  []int64
	ArrayID []byte
}

// Field numbers are frozen; only add, never renumber.
const (
	fieldSeq     = 1
	fieldTime    = 2
	fieldKind    = 3
	fieldName    = 4
	fieldIndex   = 5
	fieldValue   = 6
	fieldLength  = 7
	fieldValues  = 8
	fieldArrayID = 9
)

// Marshal encodes the record as protobuf wire format. Values is a
// packed sint64 field; Value uses zigzag so negatives stay small.
func (r *Record) Marshal() []byte {
	b := make([]byte, 0, 64+len(r.Values)*2)
	b = protowire.AppendTag(b, fieldSeq, protowire.VarintType)
	b = protowire.AppendVarint(b, r.Seq)
	b = protowire.AppendTag(b, fieldTime, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(r.Time))
	b = protowire.AppendTag(b, fieldKind, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(r.Kind))
	b = protowire.AppendTag(b, fieldName, protowire.BytesType)
	b = protowire.AppendString(b, r.Name)
	b = protowire.AppendTag(b, fieldIndex, protowire.VarintType)
	b = protowire.AppendVarint(b, r.Index)
	b = protowire.AppendTag(b, fieldValue, protowire.VarintType)
	b = protowire.AppendVarint(b, protowire.EncodeZigZag(r.Value))
	b = protowire.AppendTag(b, fieldLength, protowire.VarintType)
	b = protowire.AppendVarint(b, r.Length)
	if len(r.Values) > 0 {
		packed := make([]byte, 0, len(r.Values)*2)
		for _, v := range r.Values {
			packed = protowire.AppendVarint(packed, protowire.EncodeZigZag(v))
		}
		b = protowire.AppendTag(b, fieldValues, protowire.BytesType)
		b = protowire.AppendBytes(b, packed)
	}
	if len(r.ArrayID) > 0 {
		b = protowire.AppendTag(b, fieldArrayID, protowire.BytesType)
		b = protowire.AppendBytes(b, r.ArrayID)
	}
	return b
}

// Unmarshal decodes a record body. Unknown fields are skipped.
func Unmarshal(b []byte) (*Record, error) {
	r := &Record{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("%w: %v", ErrCorruptRecord, protowire.ParseError(n))
		}
		b = b[n:]

		switch num {
		case fieldSeq, fieldTime, fieldKind, fieldIndex, fieldValue, fieldLength:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, fmt.Errorf("%w: %v", ErrCorruptRecord, protowire.ParseError(n))
			}
			b = b[n:]
			switch num {
			case fieldSeq:
				r.Seq = v
			case fieldTime:
				r.Time = int64(v)
			case fieldKind:
				r.Kind = Kind(v)
			case fieldIndex:
				r.Index = v
			case fieldValue:
				r.Value = protowire.DecodeZigZag(v)
			case fieldLength:
				r.Length = v
			}
		case fieldName:
			s, n := protowire.ConsumeString(b)
			if n < 0 {
				return nil, fmt.Errorf("%w: %v", ErrCorruptRecord, protowire.ParseError(n))
			}
			r.Name = s
			b = b[n:]
		case fieldValues:
			packed, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, fmt.Errorf("%w: %v", ErrCorruptRecord, protowire.ParseError(n))
			}
			b = b[n:]
			for len(packed) > 0 {
				v, m := protowire.ConsumeVarint(packed)
				if m < 0 {
					return nil, fmt.Errorf("%w: %v", ErrCorruptRecord, protowire.ParseError(m))
				}
				r.Values = append(r.Values, protowire.DecodeZigZag(v))
				packed = packed[m:]
			}
		case fieldArrayID:
			id, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, fmt.Errorf("%w: %v", ErrCorruptRecord, protowire.ParseError(n))
			}
			r.ArrayID = append([]byte(nil), id...)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, fmt.Errorf("%w: %v", ErrCorruptRecord, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return r, nil
}
