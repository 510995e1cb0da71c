package export

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// FormField is one auto-filled entry on a rendered form.
type FormField struct {
	Label  string
	Value  string
	Source string // pipeline stage or provider the value came from
}

// FilledForm is the printable artifact produced by the auto-fill stage.
type FilledForm struct {
	FormName   string
	ClientID   string
	DocumentID string
	Fields     []FormField
}

// FormRenderer renders auto-filled form records into a summary PDF.
type FormRenderer struct{}

// NewFormRenderer constructs a renderer.
func NewFormRenderer() *FormRenderer {
	return &FormRenderer{}
}

// Render creates a PDF summary of the filled form.
func (r *FormRenderer) Render(form FilledForm) ([]byte, error) {
	if form.FormName == "" {
		return nil, fmt.Errorf("form name required")
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 10, strings.ToUpper(form.FormName), "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 9)
	pdf.CellFormat(0, 6, fmt.Sprintf("Client %s / Document %s", form.ClientID, form.DocumentID), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	fields := make([]FormField, len(form.Fields))
	copy(fields, form.Fields)
	sort.SliceStable(fields, func(i, j int) bool { return fields[i].Label < fields[j].Label })

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(70, 8, "Field", "1", 0, "C", false, 0, "")
	pdf.CellFormat(85, 8, "Value", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 8, "Source", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 9)
	for _, f := range fields {
		pdf.CellFormat(70, 7, f.Label, "1", 0, "", false, 0, "")
		pdf.CellFormat(85, 7, f.Value, "1", 0, "", false, 0, "")
		pdf.CellFormat(35, 7, f.Source, "1", 0, "", false, 0, "")
		pdf.Ln(-1)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render form pdf: %w", err)
	}
	return buf.Bytes(), nil
}
