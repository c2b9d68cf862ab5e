package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"log/slog"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/totegamma/ticketgate/internal/usecase"
)

const (
	pageWidth  = 148.0
	pageHeight = 210.0
	margin     = 8.0
	qrSide     = 64.0
)

// PDFRenderer lays out an A5 ticket.
type PDFRenderer struct {
	creationDate func() time.Time
	compress     bool
}

func NewPDFRenderer() *PDFRenderer {
	return &PDFRenderer{creationDate: time.Now, compress: true}
}

func (r *PDFRenderer) Render(ctx context.Context, a usecase.Artifact) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pdf := fpdf.New("P", "mm", "A5", "")
	pdf.SetCompression(r.compress)
	pdf.SetCreationDate(r.creationDate())
	pdf.SetTitle("Ticket "+a.TicketID, true)
	pdf.SetSubject(a.EventName, true)
	pdf.SetCreator("ticketgate", true)
	pdf.SetKeywords(fmt.Sprintf("trace:%s hash:%s", a.TraceID, a.TraceHash), false)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetDrawColor(int(a.Border.R), int(a.Border.G), int(a.Border.B))
	pdf.SetLineWidth(2.5)
	pdf.Rect(margin/2, margin/2, pageWidth-margin, pageHeight-margin, "D")

	y := margin + 2
	if banner := normalizeBanner(a.Banner); banner != nil {
		opts := fpdf.ImageOptions{ImageType: "PNG"}
		pdf.RegisterImageOptionsReader("banner", opts, bytes.NewReader(banner))
		pdf.ImageOptions("banner", margin+2, y, pageWidth-2*margin-4, 36, false, opts, 0, "")
		y += 40
	}

	pdf.SetTextColor(17, 24, 39)
	pdf.SetFont("Helvetica", "B", 18)
	pdf.SetXY(margin+2, y)
	pdf.MultiCell(pageWidth-2*margin-4, 8, tr(a.EventName), "", "C", false)

	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(55, 65, 81)
	for _, line := range []string{
		joinNonEmpty(" / ", a.EventDate, a.EventTime),
		a.Venue,
	} {
		if line == "" {
			continue
		}
		pdf.SetX(margin + 2)
		pdf.CellFormat(pageWidth-2*margin-4, 6, tr(line), "", 1, "C", false, 0, "")
	}

	pdf.Ln(3)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.SetTextColor(int(a.Border.R), int(a.Border.G), int(a.Border.B))
	pdf.SetX(margin + 2)
	pdf.CellFormat(pageWidth-2*margin-4, 7, tr(ticketTypeLabel(a.TicketType)), "", 1, "C", false, 0, "")

	pdf.SetFont("Helvetica", "", 11)
	pdf.SetTextColor(17, 24, 39)
	pdf.SetX(margin + 2)
	pdf.CellFormat(pageWidth-2*margin-4, 6, tr(a.AttendeeName), "", 1, "C", false, 0, "")

	qrOpts := fpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("qr", qrOpts, bytes.NewReader(a.QRCodePNG))
	qrY := pdf.GetY() + 4
	pdf.ImageOptions("qr", (pageWidth-qrSide)/2, qrY, qrSide, qrSide, false, qrOpts, 0, "")

	pdf.SetXY(margin+2, qrY+qrSide+2)
	pdf.SetFont("Courier", "", 7)
	pdf.SetTextColor(75, 85, 99)
	pdf.CellFormat(pageWidth-2*margin-4, 4, a.TicketID, "", 1, "C", false, 0, "")

	pdf.SetFont("Courier", "", 3.5)
	pdf.SetTextColor(156, 163, 175)
	pdf.SetXY(margin+2, pageHeight-margin-12)
	pdf.CellFormat(pageWidth-2*margin-4, 2, a.Microtext+" "+a.Microtext, "", 1, "C", false, 0, "")

	if a.Watermark != "" {
		pdf.SetAlpha(0.08, "Normal")
		pdf.SetFont("Helvetica", "B", 30)
		pdf.SetTextColor(int(a.Border.R), int(a.Border.G), int(a.Border.B))
		pdf.TransformBegin()
		pdf.TransformRotate(45, pageWidth/2, pageHeight/2)
		w := pdf.GetStringWidth(a.Watermark)
		pdf.Text(pageWidth/2-w/2, pageHeight/2, a.Watermark)
		pdf.TransformEnd()
		pdf.SetAlpha(1, "Normal")
	}

	if pdf.Err() {
		return nil, pdf.Error()
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// normalizeBanner re-encodes any decodable banner as PNG. Undecodable banners are
// dropped so they never fail the document.
func normalizeBanner(raw []byte) []byte {
	if len(raw) == 0 {
		return nil
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		slog.Warn(
			"banner is not a supported image",
			slog.String("error", err.Error()),
			slog.String("module", "render"),
		)
		return nil
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil
	}
	return buf.Bytes()
}

func ticketTypeLabel(t string) string {
	if t == "" {
		return "ADMISSION"
	}
	return t
}

func joinNonEmpty(sep string, parts ...string) string {
	out := ""
	for _, p := range parts {
		if p == "" {
			continue
		}
		if out != "" {
			out += sep
		}
		out += p
	}
	return out
}

var _ usecase.DocumentRenderer = (*PDFRenderer)(nil)
