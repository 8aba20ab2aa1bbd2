package eventmsg

import (
	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

// Encode serializes ev. Replay tooling uses it to synthesize index events.
func Encode(ev *Event) ([]byte, error) {
	field := fieldForWhich(ev.Which)
	if field == 0 {
		return nil, ErrNoEncodeIndex
	}

	var b []byte
	if ev.LogMonoTime != 0 {
		b = protowire.AppendTag(b, fieldLogMonoTime, protowire.VarintType)
		b = protowire.AppendVarint(b, ev.LogMonoTime)
	}
	b = protowire.AppendTag(b, fieldValid, protowire.VarintType)
	b = protowire.AppendVarint(b, protowire.EncodeBool(ev.Valid))

	b = protowire.AppendTag(b, field, protowire.BytesType)
	b = protowire.AppendBytes(b, encodeIndex(&ev.EncodeIdx))
	return b, nil
}

// MustEncode is Encode for callers that always set Which.
func MustEncode(ev *Event) []byte {
	b, err := Encode(ev)
	if err != nil {
		panic(errors.Wrap(err, "eventmsg: encode"))
	}
	return b
}

func encodeIndex(idx *EncodeIndex) []byte {
	var b []byte
	appendVarint := func(num protowire.Number, v uint64) {
		b = protowire.AppendTag(b, num, protowire.VarintType)
		b = protowire.AppendVarint(b, v)
	}
	appendVarint(fieldFrameID, uint64(idx.FrameID))
	appendVarint(fieldType, uint64(int64(idx.Type)))
	appendVarint(fieldEncodeID, uint64(idx.EncodeID))
	appendVarint(fieldSegmentNum, uint64(int64(idx.SegmentNum)))
	appendVarint(fieldSegmentID, uint64(idx.SegmentID))
	appendVarint(fieldSegmentIDEncode, uint64(idx.SegmentIDEncode))
	appendVarint(fieldTimestampSof, idx.TimestampSof)
	appendVarint(fieldTimestampEof, idx.TimestampEof)
	return b
}
