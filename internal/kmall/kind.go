package kmall

import "fmt"

// Kind identifies a record type. The set is closed: Decode switches over
// every value.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindIIP
	KindIOP
	KindIBE
	KindIBR
	KindIBS
	KindMRZ
	KindMWC
	KindSPO
	KindCPO
	KindSKM
	KindSVP
	KindSVT
	KindSCL
	KindSDE
	KindSHI
	KindCHE
	KindFCF
)

var kindTags = [...]string{
	KindUnknown: "",
	KindIIP:     "#IIP",
	KindIOP:     "#IOP",
	KindIBE:     "#IBE",
	KindIBR:     "#IBR",
	KindIBS:     "#IBS",
	KindMRZ:     "#MRZ",
	KindMWC:     "#MWC",
	KindSPO:     "#SPO",
	KindCPO:     "#CPO",
	KindSKM:     "#SKM",
	KindSVP:     "#SVP",
	KindSVT:     "#SVT",
	KindSCL:     "#SCL",
	KindSDE:     "#SDE",
	KindSHI:     "#SHI",
	KindCHE:     "#CHE",
	KindFCF:     "#FCF",
}

var kindDescriptions = [...]string{
	KindUnknown: "unknown",
	KindIIP:     "Installation parameters and sensor setup",
	KindIOP:     "Runtime parameters as chosen by operator",
	KindIBE:     "Built in test error report",
	KindIBR:     "Built in test reply",
	KindIBS:     "Built in test short reply",
	KindMRZ:     "Multibeam raw range and depth",
	KindMWC:     "Multibeam water column",
	KindSPO:     "Sensor position data",
	KindCPO:     "Compatibility position sensor data",
	KindSKM:     "Sensor KM binary attitude data",
	KindSVP:     "Sensor sound velocity profile",
	KindSVT:     "Sensor sound velocity at transducer",
	KindSCL:     "Sensor clock",
	KindSDE:     "Sensor depth",
	KindSHI:     "Sensor height",
	KindCHE:     "Compatibility heave data",
	KindFCF:     "Backscatter calibration file",
}

// Kinds lists every known kind in catalog order.
func Kinds() []Kind {
	out := make([]Kind, 0, len(kindTags)-1)
	for k := KindIIP; int(k) < len(kindTags); k++ {
		out = append(out, k)
	}
	return out
}

// KindOf returns the kind for an exact tag match, or KindUnknown.
func KindOf(tag string) Kind {
	for k := KindIIP; int(k) < len(kindTags); k++ {
		if kindTags[k] == tag {
			return k
		}
	}
	return KindUnknown
}

func (k Kind) Tag() string {
	if int(k) < len(kindTags) {
		return kindTags[k]
	}
	return ""
}

func (k Kind) Description() string {
	if int(k) < len(kindDescriptions) {
		return kindDescriptions[k]
	}
	return kindDescriptions[KindUnknown]
}

func (k Kind) String() string {
	if t := k.Tag(); t != "" {
		return t
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Record is a decoded record of any kind.
type Record interface {
	Kind() Kind
	DatagramHeader() Header
}

// lookup resolves a dictionary value or fails the cursor with
// UnsupportedEncoding.
func lookup[K comparable](c *cursor, dict map[K]string, v K, at int, what string) string {
	s, ok := dict[v]
	if !ok {
		c.unsupported(at, "%s value %v not in dictionary", what, v)
	}
	return s
}
