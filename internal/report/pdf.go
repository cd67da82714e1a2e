package report

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"example.com/rnxgate/internal/common"
)

// SavePDF renders the summary into a PDF document. The file's SHA-256
// digest, when present, is embedded both as text and as a QR code.
func SavePDF(sum Summary, lang Language, out string) error {
	t := NewTranslator(lang)
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(t.T("report.title"), true)
	pdf.SetAuthor("rnxctl", false)
	pdf.SetCreator("rnxctl", false)
	pdf.SetMargins(15, 20, 15)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()

	enc := pdf.UnicodeTranslatorFromDescriptor("")

	addPDFTitle(pdf, enc(t.T("report.title")))
	addSummarySection(pdf, enc, t, sum)
	addMatrixSection(pdf, enc, t, sum.Codes)
	if len(sum.Sensors) > 0 {
		addSensorSection(pdf, enc, t, sum.Sensors)
	}
	if sum.Sha256 != "" {
		if err := addSummaryQR(pdf, sum); err != nil {
			return err
		}
	}
	pdf.SetFont("Helvetica", "I", 8)
	pdf.Ln(4)
	pdf.Cell(0, 4, enc(t.Format("report.generated", time.Now().UTC().Format(time.RFC3339))))

	if pdf.Err() {
		return pdf.Error()
	}
	return pdf.OutputFileAndClose(out)
}

func addPDFTitle(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, title)
	pdf.Ln(12)
}

func addSummarySection(pdf *gofpdf.Fpdf, enc func(string) string, t Translator, sum Summary) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, enc(t.T("report.summary")))
	pdf.Ln(8)

	format := sum.Format
	if sum.System != "" {
		format = fmt.Sprintf("%s (%s)", sum.Format, sum.System)
	}
	items := []struct {
		key   string
		value string
	}{
		{key: "report.file", value: sum.File},
		{key: "report.digest", value: sum.Sha256},
		{key: "report.size", value: sizeLabel(sum.Bytes)},
		{key: "report.format", value: format},
		{key: "report.version", value: sum.Version},
		{key: "report.marker", value: sum.Marker},
		{key: "report.first", value: epochLabel(sum.First)},
		{key: "report.last", value: epochLabel(sum.Last)},
		{key: "report.epochs", value: strconv.Itoa(sum.Epochs)},
		{key: "report.events", value: strconv.Itoa(sum.Events)},
	}
	pdf.SetFont("Helvetica", "", 10)
	for _, item := range items {
		if item.value == "" {
			continue
		}
		pdf.CellFormat(40, 6, enc(t.T(item.key)), "", 0, "L", false, 0, "")
		pdf.SetFont("Courier", "", 9)
		pdf.CellFormat(0, 6, item.value, "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
	}
	pdf.Ln(4)
}

func addMatrixSection(pdf *gofpdf.Fpdf, enc func(string) string, t Translator, codes []CodeCount) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, enc(t.T("report.matrix")))
	pdf.Ln(9)

	if len(codes) == 0 {
		pdf.SetFont("Helvetica", "", 10)
		pdf.MultiCell(0, 6, enc(t.T("report.none")), "", "L", false)
		pdf.Ln(2)
		return
	}

	headers := []string{enc(t.T("report.system")), enc(t.T("report.code")), enc(t.T("report.count"))}
	widths := []float64{40, 60, 40}

	pdf.SetFillColor(240, 240, 240)
	pdf.SetFont("Helvetica", "B", 10)
	for i, h := range headers {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 9)
	for _, row := range codes {
		values := []string{emptyFallback(row.System, "-"), row.Code, strconv.Itoa(row.Count)}
		for i, v := range values {
			pdf.CellFormat(widths[i], 6, v, "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}
	pdf.Ln(4)
}

func addSensorSection(pdf *gofpdf.Fpdf, enc func(string) string, t Translator, stats []SensorStats) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, enc(t.T("report.sensors")))
	pdf.Ln(9)

	headers := []string{
		enc(t.T("report.sensor")), enc(t.T("report.count")),
		enc(t.T("report.min")), enc(t.T("report.mean")), enc(t.T("report.max")),
	}
	widths := []float64{30, 25, 30, 30, 30}

	pdf.SetFillColor(240, 240, 240)
	pdf.SetFont("Helvetica", "B", 10)
	for i, h := range headers {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 9)
	for _, row := range stats {
		values := []string{
			row.Code, strconv.Itoa(row.N),
			fmt.Sprintf("%.1f", row.Min), fmt.Sprintf("%.1f", row.Mean), fmt.Sprintf("%.1f", row.Max),
		}
		for i, v := range values {
			pdf.CellFormat(widths[i], 6, v, "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}
	pdf.Ln(4)
}

func addSummaryQR(pdf *gofpdf.Fpdf, sum Summary) error {
	png, err := SummaryQR(sum, 256)
	if err != nil {
		return err
	}
	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("summary-qr", opts, bytes.NewReader(png))
	if pdf.Err() {
		return pdf.Error()
	}
	pdf.ImageOptions("summary-qr", pdf.GetX(), pdf.GetY(), 30, 30, false, opts, 0, "")
	pdf.Ln(34)
	return nil
}

func sizeLabel(b int64) string {
	if b <= 0 {
		return ""
	}
	return fmt.Sprintf("%s (%d B)", common.FormatBytes(b), b)
}

func epochLabel(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02 15:04:05.000")
}

func emptyFallback(val, fallback string) string {
	if strings.TrimSpace(val) == "" {
		return fallback
	}
	return val
}
