package report

import (
	"bytes"
	"strconv"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"example.com/kmgate/internal/common"
)

const qrImageName = "digest-qr"

// SaveSummaryPDF renders s into a PDF document. When the summary carries a
// digest, a QR code of it is placed beside the title.
func SaveSummaryPDF(s Summary, out string) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Survey File Summary", false)
	pdf.SetAuthor("kmallctl", false)
	pdf.SetCreator("kmallctl", false)
	pdf.SetMargins(15, 20, 15)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()

	if err := addDigestQR(pdf, s.SHA256); err != nil {
		return err
	}
	addPDFTitle(pdf, "Survey File Summary")
	addOverviewSection(pdf, s)
	addKindsSection(pdf, s.Kinds)

	if pdf.Err() {
		return pdf.Error()
	}
	return pdf.OutputFileAndClose(out)
}

func addDigestQR(pdf *gofpdf.Fpdf, digest string) error {
	if digest == "" {
		return nil
	}
	png, err := DigestToQR(digest, 256)
	if err != nil {
		return err
	}
	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader(qrImageName, opts, bytes.NewReader(png))
	pageW, _ := pdf.GetPageSize()
	_, _, right, _ := pdf.GetMargins()
	pdf.ImageOptions(qrImageName, pageW-right-30, 12, 30, 30, false, opts, 0, "")
	return nil
}

func addPDFTitle(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, title)
	pdf.Ln(12)
}

func addOverviewSection(pdf *gofpdf.Fpdf, s Summary) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Overview")
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "", 11)
	items := []struct {
		label string
		value string
	}{
		{label: "File", value: emptyFallback(s.Path, "-")},
		{label: "Kind", value: emptyFallback(s.FileKind, "-")},
		{label: "Size", value: common.FormatBytes(s.FileSize)},
		{label: "Records", value: strconv.Itoa(s.NumberOfRecords)},
		{label: "Pings", value: strconv.Itoa(s.NumberOfPings)},
		{label: "Max beams", value: strconv.Itoa(s.MaxBeams)},
		{label: "Max TX sectors", value: strconv.Itoa(s.MaxTxSectors)},
		{label: "Split pings", value: yesNo(s.HasSplitPings)},
		{label: "Start", value: timeLabel(s.Start)},
		{label: "End", value: timeLabel(s.End)},
		{label: "Duration", value: s.Duration().String()},
	}
	for _, item := range items {
		pdf.CellFormat(40, 6, item.label, "", 0, "L", false, 0, "")
		pdf.MultiCell(0, 6, item.value, "", "L", false)
	}
	if len(s.Reordered) > 0 {
		pdf.CellFormat(40, 6, "Re-sorted", "", 0, "L", false, 0, "")
		pdf.MultiCell(0, 6, strings.Join(s.Reordered, ", "), "", "L", false)
	}
	if s.SHA256 != "" {
		pdf.SetFont("Courier", "", 8)
		pdf.CellFormat(40, 5, "SHA-256", "", 0, "L", false, 0, "")
		pdf.MultiCell(0, 5, s.SHA256, "", "L", false)
	}
	pdf.Ln(4)
}

func addKindsSection(pdf *gofpdf.Fpdf, kinds []KindSummary) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Record Kinds")
	pdf.Ln(9)

	if len(kinds) == 0 {
		pdf.SetFont("Helvetica", "", 11)
		pdf.MultiCell(0, 6, "No records.", "", "L", false)
		return
	}

	headers := []string{"Tag", "Count", "Bytes", "First", "Last"}
	widths := []float64{20, 20, 30, 55, 55}

	pdf.SetFillColor(240, 240, 240)
	pdf.SetFont("Helvetica", "B", 10)
	for i, h := range headers {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 9)
	for _, k := range kinds {
		values := []string{
			k.Tag,
			strconv.Itoa(k.Count),
			common.FormatBytes(k.Bytes),
			timeLabel(k.First),
			timeLabel(k.Last),
		}
		renderTableRow(pdf, widths, values, 5)
	}
}

func renderTableRow(pdf *gofpdf.Fpdf, widths []float64, values []string, lineHeight float64) {
	xStart := pdf.GetX()
	yStart := pdf.GetY()
	maxLines := 1
	splitCols := make([][]string, len(values))
	for i, val := range values {
		lines := pdf.SplitText(emptyFallback(val, "-"), widths[i]-2)
		if len(lines) == 0 {
			lines = []string{""}
		}
		splitCols[i] = lines
		if len(lines) > maxLines {
			maxLines = len(lines)
		}
	}
	x := xStart
	for i, lines := range splitCols {
		pdf.SetXY(x, yStart)
		pdf.MultiCell(widths[i], lineHeight, strings.Join(lines, "\n"), "1", "L", false)
		x += widths[i]
	}
	pdf.SetXY(xStart, yStart+float64(maxLines)*lineHeight)
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func timeLabel(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format("2006-01-02 15:04:05.000Z")
}

func emptyFallback(val, fallback string) string {
	if strings.TrimSpace(val) == "" {
		return fallback
	}
	return val
}
