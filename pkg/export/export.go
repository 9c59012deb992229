// Package export renders committed schedules as JSON, CSV or XML reports.
package export

import (
	"encoding/csv"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/kilianp07/berthplan/core/schedule"
)

// Format names an output encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatXML  Format = "xml"
)

// ParseFormat accepts json, csv and xml in any case. Empty means JSON.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatJSON, nil
	case FormatJSON, FormatCSV, FormatXML:
		return f, nil
	default:
		return "", fmt.Errorf("unknown export format %q", s)
	}
}

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv"
	case FormatXML:
		return "application/xml"
	default:
		return "application/json"
	}
}

// Row is one assignment of the report.
type Row struct {
	VesselID  string    `json:"vessel_id" xml:"vessel-id"`
	Name      string    `json:"name,omitempty" xml:"name,omitempty"`
	Category  string    `json:"category" xml:"category"`
	BerthID   string    `json:"berth_id" xml:"berth-id"`
	Start     time.Time `json:"start" xml:"start"`
	End       time.Time `json:"end" xml:"end"`
	Status    string    `json:"status" xml:"status"`
	WaitHours float64   `json:"wait_hours" xml:"wait-hours"`
}

// Report is a schedule rendering at a given version.
type Report struct {
	Type      string    `json:"type"`
	Version   uint64    `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	Rows      []Row     `json:"assignments"`
	Pending   []string  `json:"pending"`
}

// NewReport builds a report from the committed assignments of s.
func NewReport(s *schedule.Schedule, createdAt time.Time) Report {
	r := Report{Type: "berth_schedule", Version: s.Version(), CreatedAt: createdAt, Pending: []string{}}
	for _, a := range s.Assignments() {
		v, _ := s.Vessel(a.VesselID)
		r.Rows = append(r.Rows, Row{
			VesselID:  a.VesselID,
			Name:      v.Name,
			Category:  v.Category,
			BerthID:   a.BerthID,
			Start:     a.Window.Start,
			End:       a.Window.End,
			Status:    v.Status.String(),
			WaitHours: round2(a.Window.Start.Sub(v.ETA).Hours()),
		})
	}
	for _, v := range s.Pending() {
		r.Pending = append(r.Pending, v.ID)
	}
	return r
}

// Write renders r to w in the given format.
func Write(w io.Writer, f Format, r Report) error {
	switch f {
	case FormatJSON, "":
		return WriteJSON(w, r)
	case FormatCSV:
		return WriteCSV(w, r.Rows)
	case FormatXML:
		return WriteXML(w, r)
	default:
		return fmt.Errorf("unknown export format %q", f)
	}
}

// WriteJSON writes the report to w in JSON format.
func WriteJSON(w io.Writer, r Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// WriteCSV writes the assignments to w in CSV format with a header row.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"vessel_id", "name", "category", "berth_id", "start", "end", "status", "wait_hours"}); err != nil {
		return err
	}
	for _, r := range rows {
		rec := []string{
			r.VesselID,
			r.Name,
			r.Category,
			r.BerthID,
			r.Start.Format(time.RFC3339),
			r.End.Format(time.RFC3339),
			r.Status,
			strconv.FormatFloat(r.WaitHours, 'f', -1, 64),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

type xmlRow struct {
	Index int `xml:"index,attr"`
	Row
}

type xmlReport struct {
	XMLName   xml.Name `xml:"Report"`
	Type      string   `xml:"type,attr"`
	Version   uint64   `xml:"version,attr"`
	CreatedAt string   `xml:"created_at,attr"`
	Total     int      `xml:"total_assignments,attr"`
	Rows      []xmlRow `xml:"Assignment"`
	Pending   []string `xml:"Pending>vessel-id,omitempty"`
}

// WriteXML writes the report as an indented <Report> document.
func WriteXML(w io.Writer, r Report) error {
	doc := xmlReport{
		Type:      r.Type,
		Version:   r.Version,
		CreatedAt: r.CreatedAt.Format(time.RFC3339),
		Total:     len(r.Rows),
		Pending:   r.Pending,
	}
	for i, row := range r.Rows {
		doc.Rows = append(doc.Rows, xmlRow{Index: i + 1, Row: row})
	}
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

func round2(f float64) float64 { return math.Round(f*100) / 100 }
