package kmall

import (
	"errors"
	"strings"
	"testing"

	"example.com/kmgate/internal/kmall/kmalltest"
)

func TestDecodeIIP(t *testing.T) {
	r := mustDecode(t, kmalltest.IIP(testTime, kmalltest.SampleInstallText)).(*IIP)
	if r.Text != kmalltest.SampleInstallText {
		t.Fatalf("Text = %q", r.Text)
	}
	values := map[string]string{
		"operator_controller_version": "Empty",
		"sonar_model_number":          "EM2040P",
		"pu_id_type":                  "0",
		"pu_serial_number":            "53011",
		"command_tcpip_port":          "1997",
		"cpu_software_version":        "1.4.1",
		"DCL_VERSION":                 "1.2",
		"tx_serial_number":            "20252",
		"rx_serial_number":            "20252",
		"dcl_version":                 "1.2",
		"kmall_version":               "Rev I",
	}
	for k, want := range values {
		if got := r.Installation.Values[k]; got != want {
			t.Fatalf("Values[%s] = %q, want %q", k, got, want)
		}
	}
	dev := r.Installation.Devices
	checks := []struct{ device, key, want string }{
		{"transducer_1", "serial_number", "20252"},
		{"transducer_1", "system_description", "EM2040P"},
		{"receiver_1", "rx_forward", "0.002"},
		{"position_1", "data_format", "GGA"},
		{"motion_sensor_1", "motion_reference", "RP"},
		{"clock", "IPPS_setting", "RISING"},
		{"sound_velocity_1", "input_source", "COM4"},
		{"system", "water_line", "-0.100"},
	}
	for _, c := range checks {
		if got := dev[c.device][c.key]; got != c.want {
			t.Fatalf("%s.%s = %q, want %q", c.device, c.key, got, c.want)
		}
	}
}

func TestTextPadding(t *testing.T) {
	for _, text := range []string{"ABCDEFG", "ABCDEFGH"} {
		r := mustDecode(t, kmalltest.IOP(testTime, text)).(*IOP)
		if r.RuntimeText != text {
			t.Fatalf("RuntimeText = %q, want %q", r.RuntimeText, text)
		}
		if r.Info.TextSize != len(text) {
			t.Fatalf("TextSize = %d, want %d", r.Info.TextSize, len(text))
		}
	}
}

func TestDecodeIBE(t *testing.T) {
	r := mustDecode(t, kmalltest.IBE(testTime, 3, -1, "RX board temperature high")).(*IBE)
	if r.Info.Number != 3 || r.Info.Status != -1 {
		t.Fatalf("Info = %+v", r.Info)
	}
	if r.BISTText != "RX board temperature high" {
		t.Fatalf("BISTText = %q", r.BISTText)
	}
}

func TestParseInstallationTextErrors(t *testing.T) {
	tests := []struct {
		name string
		text string
		want error
	}{
		{
			name: "missing serial block",
			text: strings.Replace(kmalltest.SampleInstallText, "SERIALno:TX:20252", "SERIAL:TX:20252", 1),
			want: ErrMalformedInstallationText,
		},
		{
			name: "unknown device",
			text: kmalltest.SampleInstallText + "FOOB:X=1,",
			want: ErrUnsupportedEncoding,
		},
		{
			name: "truncated",
			text: "OSCV:Empty,EMXV:EM2040P",
			want: ErrMalformedInstallationText,
		},
		{
			name: "missing versions end",
			text: "OSCV:Empty,EMXV:EM2040P,PU_0,SN=1,IP=1.2.3.4,UDP=1,TYPE=CPU2,CPU:1.0",
			want: ErrMalformedInstallationText,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseInstallationText(tc.text); !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestDecodeIIPMalformed(t *testing.T) {
	text := strings.Replace(kmalltest.SampleInstallText, "SERIALno:TX:20252", "SERIAL:TX:20252", 1)
	_, err := Decode(kmalltest.IIP(testTime, text), 64)
	if !errors.Is(err, ErrMalformedInstallationText) {
		t.Fatalf("err = %v", err)
	}
	var re *RecordError
	if !errors.As(err, &re) || re.Offset != 64 || re.Tag != "#IIP" {
		t.Fatalf("err = %#v", err)
	}
}

func TestInstallationUnknownKeyKept(t *testing.T) {
	text := strings.Replace(kmalltest.SampleInstallText, "SVPI:F=AML;", "SVPI:F=AML;ZZ=7;", 1)
	inst, err := ParseInstallationText(text)
	if err != nil {
		t.Fatalf("ParseInstallationText: %v", err)
	}
	if got := inst.Devices["sound_velocity_1"]["ZZ"]; got != "7" {
		t.Fatalf("ZZ = %q, want 7", got)
	}
}
