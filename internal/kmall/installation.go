package kmall

// IInfo precedes the installation and runtime parameter text.
type IInfo struct {
	Size     uint16 `json:"size"`
	Info     uint16 `json:"info"`
	Status   uint16 `json:"status"`
	TextSize int    `json:"textSize"`
}

const iinfoSize = 6

func (c *cursor) iinfo() IInfo {
	start := c.pos()
	if !c.need(iinfoSize, "installation info") {
		return IInfo{}
	}
	in := IInfo{Size: c.u16(), Info: c.u16(), Status: c.u16()}
	if int(in.Size) < iinfoSize {
		c.corrupt(start, "installation info size %d below %d", in.Size, iinfoSize)
		return in
	}
	in.TextSize = int(in.Size) - iinfoSize
	return in
}

// IIP carries installation parameters and sensor setup.
type IIP struct {
	Header       Header       `json:"header"`
	Info         IInfo        `json:"info"`
	Text         string       `json:"text"`
	Installation Installation `json:"installation"`
}

func (r *IIP) Kind() Kind             { return KindIIP }
func (r *IIP) DatagramHeader() Header { return r.Header }

// IOP carries the runtime parameters chosen by the operator.
type IOP struct {
	Header      Header `json:"header"`
	Info        IInfo  `json:"info"`
	RuntimeText string `json:"runtimeText"`
}

func (r *IOP) Kind() Kind             { return KindIOP }
func (r *IOP) DatagramHeader() Header { return r.Header }

func decodeIIP(data []byte, offset int64) (*IIP, error) {
	c := newCursor(data, offset, KindIIP.Tag())
	r := &IIP{Header: c.header()}
	r.Info = c.iinfo()
	r.Text = c.textBlock(r.Info.TextSize, "installation text")
	c.verifyChecksum(r.Header.Size)
	if c.err != nil {
		return nil, c.err
	}
	inst, err := ParseInstallationText(r.Text)
	if err != nil {
		return nil, &RecordError{Tag: KindIIP.Tag(), Offset: offset, Err: err}
	}
	r.Installation = inst
	return r, nil
}

func decodeIOP(data []byte, offset int64) (*IOP, error) {
	c := newCursor(data, offset, KindIOP.Tag())
	r := &IOP{Header: c.header()}
	r.Info = c.iinfo()
	r.RuntimeText = c.textBlock(r.Info.TextSize, "runtime text")
	c.verifyChecksum(r.Header.Size)
	if c.err != nil {
		return nil, c.err
	}
	return r, nil
}

// BISTInfo precedes a built in test report.
type BISTInfo struct {
	Size     uint16 `json:"size"`
	Info     uint8  `json:"info"`
	Style    uint8  `json:"style"`
	Number   uint8  `json:"number"`
	Status   int8   `json:"status"`
	TextSize int    `json:"textSize"`
}

const bistInfoSize = 6

// IBE is a built in test error report.
type IBE struct {
	Header   Header   `json:"header"`
	Info     BISTInfo `json:"info"`
	BISTText string   `json:"bistText"`
}

func (r *IBE) Kind() Kind             { return KindIBE }
func (r *IBE) DatagramHeader() Header { return r.Header }

func decodeIBE(data []byte, offset int64) (*IBE, error) {
	c := newCursor(data, offset, KindIBE.Tag())
	r := &IBE{Header: c.header()}
	start := c.pos()
	if c.need(bistInfoSize, "bist info") {
		r.Info = BISTInfo{Size: c.u16(), Info: c.u8(), Style: c.u8(), Number: c.u8(), Status: c.i8()}
		if int(r.Info.Size) < bistInfoSize {
			c.corrupt(start, "bist info size %d below %d", r.Info.Size, bistInfoSize)
		}
		r.Info.TextSize = int(r.Info.Size) - bistInfoSize
	}
	r.BISTText = c.textBlock(r.Info.TextSize, "bist text")
	c.verifyChecksum(r.Header.Size)
	if c.err != nil {
		return nil, c.err
	}
	return r, nil
}
