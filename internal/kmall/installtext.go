package kmall

import (
	"fmt"
	"strings"
)

// Installation is the parsed installation parameter text. Values holds the
// version and serial number entries, Devices one key table per sensor.
type Installation struct {
	Values  map[string]string            `json:"values"`
	Devices map[string]map[string]string `json:"devices"`
}

var installVersionKeys = map[string]string{
	"OSCV":   "operator_controller_version",
	"EMXV":   "sonar_model_number",
	"PU":     "pu_id_type",
	"SN":     "pu_serial_number",
	"IP":     "ip_address_subnet_mask",
	"UDP":    "command_tcpip_port",
	"TYPE":   "cpu_type",
	"CPU":    "cpu_software_version",
	"VXW":    "vxw_software_version",
	"FILTER": "filter_software_version",
	"CBMF":   "cbmf_software_version",
	"TX":     "tx_software_version",
	"RX":     "rx_software_version",
	"DCL":    "dcl_version",
	"KMALL":  "kmall_version",
}

var installSerialKeys = map[string]string{
	"TX": "tx_serial_number",
	"RX": "rx_serial_number",
}

var (
	transducerKeys = map[string]string{
		"N":   "serial_number",
		"X":   "along_location",
		"Y":   "athwart_location",
		"Z":   "vertical_location",
		"R":   "roll_angle",
		"P":   "pitch_angle",
		"H":   "heading_angle",
		"G":   "gain",
		"S":   "sounder_size_deg",
		"V":   "version",
		"W":   "system_description",
		"IPX": "port_sector_forward",
		"IPY": "port_sector_starboard",
		"IPZ": "port_sector_down",
		"ICX": "center_sector_forward",
		"ICY": "center_sector_starboard",
		"ICZ": "center_sector_down",
		"ISX": "starboard_sector_forward",
		"ISY": "starboard_sector_starboard",
		"ISZ": "starboard_sector_down",
		"ITX": "tx_forward",
		"ITY": "tx_starboard",
		"ITZ": "tx_down",
		"IRX": "rx_forward",
		"IRY": "rx_starboard",
		"IRZ": "rx_down",
	}
	positionKeys = map[string]string{
		"X": "along_location",
		"Y": "athwart_location",
		"Z": "vertical_location",
		"D": "time_delay",
		"G": "datum",
		"T": "time_stamp",
		"C": "motion_compensation",
		"F": "data_format",
		"Q": "quality_check",
		"I": "input_source",
		"U": "active_passive",
	}
	motionKeys = map[string]string{
		"X": "along_location",
		"Y": "athwart_location",
		"Z": "vertical_location",
		"R": "roll_angle",
		"P": "pitch_angle",
		"H": "heading_angle",
		"D": "time_delay",
		"M": "motion_reference",
		"F": "data_format",
		"I": "input_source",
		"U": "active_passive",
	}
	clockKeys = map[string]string{
		"F": "data_format",
		"S": "synchonisation",
		"A": "IPPS_setting",
		"I": "input_source",
		"Q": "sync",
	}
	depthKeys = map[string]string{
		"X": "along_location",
		"Y": "athwart_location",
		"Z": "vertical_location",
		"D": "time_delay",
		"O": "offset",
		"S": "scale",
		"A": "added_heave",
		"F": "data_format",
		"I": "input_source",
		"U": "active_passive",
	}
	svpKeys = map[string]string{
		"F": "data_format",
		"I": "input_source",
		"U": "active_passive",
	}
	systemKeys = map[string]string{
		"SSNL": "ship_noise",
		"SWLZ": "water_line",
	}
)

type installDevice struct {
	name string
	keys map[string]string
}

var installDevices = map[string]installDevice{
	"TRAI_TX1": {"transducer_1", transducerKeys},
	"TRAI_TX2": {"transducer_2", transducerKeys},
	"TRAI_RX1": {"receiver_1", transducerKeys},
	"TRAI_RX2": {"receiver_2", transducerKeys},
	"ATTI_1":   {"motion_sensor_1", motionKeys},
	"ATTI_2":   {"motion_sensor_2", motionKeys},
	"ATTI_3":   {"motion_sensor_3", motionKeys},
	"POSI_1":   {"position_1", positionKeys},
	"POSI_2":   {"position_2", positionKeys},
	"POSI_3":   {"position_3", positionKeys},
	"CLCK":     {"clock", clockKeys},
	"SVPI":     {"sound_velocity_1", svpKeys},
	"DPHI":     {"depth_pressure_sensor", depthKeys},
	"EMXI":     {"system", systemKeys},
}

type installScanner struct {
	records []string
	i       int
}

func (s *installScanner) next(what string) (string, error) {
	if s.i >= len(s.records) {
		return "", malformedInstall("text ends before %s (record %d)", what, s.i)
	}
	r := s.records[s.i]
	s.i++
	return r, nil
}

func malformedInstall(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrMalformedInstallationText, fmt.Sprintf(format, args...))
}

// splitPair splits a record on the first sep.
func splitPair(rec, sep, what string) (string, string, error) {
	k, v, ok := strings.Cut(rec, sep)
	if !ok {
		return "", "", malformedInstall("%s %q has no %q", what, rec, sep)
	}
	return k, v, nil
}

func translated(dict map[string]string, key string) string {
	if name, ok := dict[key]; ok {
		return name
	}
	return key
}

// ParseInstallationText parses the comma separated installation text. The
// fixed header entries come first, then version entries closed by
// VERSIONS-END, serial numbers closed by SERIALno-END, two more version
// entries and finally one DEVICE:key=value;... entry per sensor.
func ParseInstallationText(text string) (Installation, error) {
	inst := Installation{
		Values:  make(map[string]string),
		Devices: make(map[string]map[string]string),
	}
	s := &installScanner{records: strings.Split(strings.ReplaceAll(text, "\n", ""), ",")}

	fixed := []struct {
		sep  string
		what string
	}{
		{":", "operator controller version"},
		{":", "sonar model"},
		{"_", "processing unit"},
		{"=", "serial number"},
		{"=", "ip address"},
		{"=", "udp port"},
		{"=", "cpu type"},
	}
	for _, f := range fixed {
		rec, err := s.next(f.what)
		if err != nil {
			return inst, err
		}
		k, v, err := splitPair(rec, f.sep, f.what)
		if err != nil {
			return inst, err
		}
		inst.Values[translated(installVersionKeys, k)] = v
	}

	for {
		rec, err := s.next("VERSIONS-END")
		if err != nil {
			return inst, err
		}
		if strings.HasPrefix(rec, "VERSIONS-END") {
			break
		}
		k, v, err := splitPair(rec, ":", "version entry")
		if err != nil {
			return inst, err
		}
		inst.Values[translated(installVersionKeys, k)] = v
	}

	rec, err := s.next("SERIALno")
	if err != nil {
		return inst, err
	}
	parts := strings.SplitN(rec, ":", 3)
	if len(parts) != 3 || parts[0] != "SERIALno" {
		return inst, malformedInstall("expected SERIALno:TX:value, got %q", rec)
	}
	inst.Values[translated(installSerialKeys, parts[1])] = parts[2]

	for {
		rec, err := s.next("SERIALno-END")
		if err != nil {
			return inst, err
		}
		if strings.HasPrefix(rec, "SERIALno-END") {
			break
		}
		k, v, err := splitPair(rec, ":", "serial entry")
		if err != nil {
			return inst, err
		}
		inst.Values[translated(installSerialKeys, k)] = v
	}

	for i := 0; i < 2; i++ {
		rec, err := s.next("trailing version")
		if err != nil {
			return inst, err
		}
		k, v, err := splitPair(rec, ":", "version entry")
		if err != nil {
			return inst, err
		}
		inst.Values[translated(installVersionKeys, k)] = v
	}

	for ; s.i < len(s.records); s.i++ {
		rec := strings.TrimSpace(s.records[s.i])
		if rec == "" {
			continue
		}
		id, values, err := splitPair(rec, ":", "device entry")
		if err != nil {
			return inst, err
		}
		dev, ok := installDevices[id]
		if !ok {
			return inst, fmt.Errorf("%w: unknown installation device %q", ErrUnsupportedEncoding, id)
		}
		table := make(map[string]string)
		for _, tok := range strings.Split(values, ";") {
			if tok == "" {
				continue
			}
			k, v, _ := strings.Cut(tok, "=")
			table[translated(dev.keys, k)] = v
		}
		inst.Devices[dev.name] = table
	}
	return inst, nil
}
