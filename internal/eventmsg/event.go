// Package eventmsg decodes the log events that index recorded camera frames.
//
// Events use the protobuf wire format. A root Event carries, in one of its
// per-camera fields, an embedded EncodeIndex describing where a frame lives in
// the recorded encoder stream.
package eventmsg

import (
	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

// IndexType identifies the stream an EncodeIndex points into.
type IndexType int32

const (
	TypeBigBoxLossless IndexType = 0
	// TypeFullHEVC is a complete hardware-encoded frame. It is the only type
	// the camera server republishes.
	TypeFullHEVC       IndexType = 1
	TypeQcameraH264    IndexType = 6
	TypeLivestreamH264 IndexType = 7
)

func (t IndexType) String() string {
	switch t {
	case TypeBigBoxLossless:
		return "bigBoxLossless"
	case TypeFullHEVC:
		return "fullHEVC"
	case TypeQcameraH264:
		return "qcameraH264"
	case TypeLivestreamH264:
		return "livestreamH264"
	default:
		return "unknown"
	}
}

// Which names the Event field holding the encode index.
type Which int

const (
	WhichNone Which = iota
	WhichRoadEncodeIdx
	WhichDriverEncodeIdx
	WhichWideRoadEncodeIdx
)

func (w Which) String() string {
	switch w {
	case WhichRoadEncodeIdx:
		return "roadEncodeIdx"
	case WhichDriverEncodeIdx:
		return "driverEncodeIdx"
	case WhichWideRoadEncodeIdx:
		return "wideRoadEncodeIdx"
	default:
		return "none"
	}
}

// Event field numbers.
const (
	fieldLogMonoTime       protowire.Number = 1
	fieldValid             protowire.Number = 2
	fieldRoadEncodeIdx     protowire.Number = 10
	fieldDriverEncodeIdx   protowire.Number = 11
	fieldWideRoadEncodeIdx protowire.Number = 12
)

// EncodeIndex field numbers.
const (
	fieldFrameID         protowire.Number = 1
	fieldType            protowire.Number = 2
	fieldEncodeID        protowire.Number = 3
	fieldSegmentNum      protowire.Number = 4
	fieldSegmentID       protowire.Number = 5
	fieldSegmentIDEncode protowire.Number = 6
	fieldTimestampSof    protowire.Number = 7
	fieldTimestampEof    protowire.Number = 8
)

var (
	// ErrNoEncodeIndex is returned when an event carries no encode index.
	ErrNoEncodeIndex = errors.New("event has no encode index")
	// ErrWireType is returned when a known field has an unexpected wire type.
	ErrWireType = errors.New("unexpected wire type")
)

// EncodeIndex locates one frame inside a recorded encoder segment.
type EncodeIndex struct {
	FrameID         uint32
	Type            IndexType
	EncodeID        uint32
	SegmentNum      int32
	SegmentID       uint32 // frame index within the segment file
	SegmentIDEncode uint32
	TimestampSof    uint64 // start of frame, monotonic nanoseconds
	TimestampEof    uint64 // end of frame, monotonic nanoseconds
}

// Event is the decoded root message.
type Event struct {
	LogMonoTime uint64
	Valid       bool
	Which       Which
	EncodeIdx   EncodeIndex
}

// Decode parses a raw event message.
func Decode(b []byte) (*Event, error) {
	ev := &Event{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, errors.Wrap(protowire.ParseError(n), "failed to read event tag")
		}
		b = b[n:]

		switch num {
		case fieldLogMonoTime, fieldValid:
			if typ != protowire.VarintType {
				return nil, errors.Wrapf(ErrWireType, "event field %d", num)
			}
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, errors.Wrapf(protowire.ParseError(n), "failed to read event field %d", num)
			}
			b = b[n:]
			if num == fieldLogMonoTime {
				ev.LogMonoTime = v
			} else {
				ev.Valid = protowire.DecodeBool(v)
			}

		case fieldRoadEncodeIdx, fieldDriverEncodeIdx, fieldWideRoadEncodeIdx:
			if typ != protowire.BytesType {
				return nil, errors.Wrapf(ErrWireType, "event field %d", num)
			}
			raw, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, errors.Wrapf(protowire.ParseError(n), "failed to read event field %d", num)
			}
			b = b[n:]
			idx, err := decodeEncodeIndex(raw)
			if err != nil {
				return nil, err
			}
			ev.EncodeIdx = idx
			ev.Which = whichForField(num)

		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, errors.Wrapf(protowire.ParseError(n), "failed to skip event field %d", num)
			}
			b = b[n:]
		}
	}

	if ev.Which == WhichNone {
		return nil, ErrNoEncodeIndex
	}
	return ev, nil
}

func decodeEncodeIndex(b []byte) (EncodeIndex, error) {
	var idx EncodeIndex
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return idx, errors.Wrap(protowire.ParseError(n), "failed to read encode index tag")
		}
		b = b[n:]

		if num < fieldFrameID || num > fieldTimestampEof {
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return idx, errors.Wrapf(protowire.ParseError(n), "failed to skip encode index field %d", num)
			}
			b = b[n:]
			continue
		}
		if typ != protowire.VarintType {
			return idx, errors.Wrapf(ErrWireType, "encode index field %d", num)
		}

		v, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return idx, errors.Wrapf(protowire.ParseError(n), "failed to read encode index field %d", num)
		}
		b = b[n:]

		switch num {
		case fieldFrameID:
			idx.FrameID = uint32(v)
		case fieldType:
			idx.Type = IndexType(int32(v))
		case fieldEncodeID:
			idx.EncodeID = uint32(v)
		case fieldSegmentNum:
			idx.SegmentNum = int32(v)
		case fieldSegmentID:
			idx.SegmentID = uint32(v)
		case fieldSegmentIDEncode:
			idx.SegmentIDEncode = uint32(v)
		case fieldTimestampSof:
			idx.TimestampSof = v
		case fieldTimestampEof:
			idx.TimestampEof = v
		}
	}
	return idx, nil
}

func whichForField(num protowire.Number) Which {
	switch num {
	case fieldRoadEncodeIdx:
		return WhichRoadEncodeIdx
	case fieldDriverEncodeIdx:
		return WhichDriverEncodeIdx
	case fieldWideRoadEncodeIdx:
		return WhichWideRoadEncodeIdx
	}
	return WhichNone
}

func fieldForWhich(w Which) protowire.Number {
	switch w {
	case WhichRoadEncodeIdx:
		return fieldRoadEncodeIdx
	case WhichDriverEncodeIdx:
		return fieldDriverEncodeIdx
	case WhichWideRoadEncodeIdx:
		return fieldWideRoadEncodeIdx
	}
	return 0
}
