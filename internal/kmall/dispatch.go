package kmall

import (
	"fmt"
)

// Decode decodes one complete record, header through checksum. offset is
// the record position in its file and is only used in errors.
func Decode(data []byte, offset int64) (Record, error) {
	hdr, err := ParseHeader(data)
	if err != nil {
		return nil, Corrupt("", offset, "record of %d bytes is shorter than a header", len(data))
	}
	if int64(hdr.Size) != int64(len(data)) {
		return nil, Corrupt(hdr.Tag, offset, "header size %d does not match %d record bytes", hdr.Size, len(data))
	}
	if len(data) < MinRecordSize {
		return nil, Corrupt(hdr.Tag, offset, "record size %d below minimum %d", len(data), MinRecordSize)
	}
	switch kind := KindOf(hdr.Tag); kind {
	case KindIIP:
		return record(decodeIIP(data, offset))
	case KindIOP:
		return record(decodeIOP(data, offset))
	case KindIBE:
		return record(decodeIBE(data, offset))
	case KindIBR, KindIBS:
		return nil, &RecordError{Tag: hdr.Tag, Offset: offset, Err: ErrNotImplemented, Detail: kind.Description()}
	case KindMRZ:
		return record(decodeMRZ(data, offset))
	case KindMWC:
		return record(decodeMWC(data, offset))
	case KindSPO:
		return record(decodePosition(KindSPO, data, offset))
	case KindCPO:
		r, err := decodePosition(KindCPO, data, offset)
		if err != nil {
			return nil, err
		}
		return &CPO{SPO: *r}, nil
	case KindSKM:
		return record(decodeSKM(data, offset))
	case KindSVP:
		return record(decodeSVP(data, offset))
	case KindSVT:
		return record(decodeSVT(data, offset))
	case KindSCL:
		return record(decodeSCL(data, offset))
	case KindSDE:
		return record(decodeSDE(data, offset))
	case KindSHI:
		return record(decodeSHI(data, offset))
	case KindCHE:
		return record(decodeCHE(data, offset))
	case KindFCF:
		return record(decodeFCF(data, offset))
	case KindUnknown:
		return nil, &RecordError{Tag: hdr.Tag, Offset: offset, Err: ErrInvalidArgument, Detail: "unknown record tag"}
	default:
		panic(fmt.Sprintf("kmall: kind %v has no decoder", kind))
	}
}

// record keeps a failed decode from returning a typed nil inside a
// non-nil Record.
func record[T Record](r T, err error) (Record, error) {
	if err != nil {
		return nil, err
	}
	return r, nil
}

// ReadStats reads the ping sizing fields of a #MRZ or #MWC record.
func ReadStats(kind Kind, data []byte, offset int64) (PingStats, error) {
	switch kind {
	case KindMRZ:
		return ReadMRZStats(data, offset)
	case KindMWC:
		return ReadMWCStats(data, offset)
	}
	return PingStats{}, fmt.Errorf("%w: %v records carry no ping", ErrInvalidArgument, kind)
}
