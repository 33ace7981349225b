package web

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/dustin/go-humanize"

	sdyn "github.com/sdyn/go-sdyn"
	"github.com/sdyn/go-sdyn/internal/logging"
)

var reportKinds = []option{
	{Value: "members", Label: "Гишүүдийн тайлан"},
	{Value: "fees", Label: "Татварын тайлан"},
	{Value: "events", Label: "Арга хэмжээний тайлан"},
}

var exportFormats = []option{
	{Value: sdyn.FormatCSV, Label: "CSV"},
	{Value: sdyn.FormatXLSX, Label: "Excel"},
	{Value: sdyn.FormatPDF, Label: "PDF"},
}

var exportTypes = map[string]string{
	sdyn.FormatCSV:  "text/csv; charset=utf-8",
	sdyn.FormatXLSX: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	sdyn.FormatPDF:  "application/pdf",
}

type reportLink struct {
	Label string
	Href  string
}

type reportRow struct {
	Label string
	Links []reportLink
}

type reportsData struct {
	Cards []statCard
	Rows  []reportRow
}

func (s *Server) reports(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stats, err := clientFrom(ctx).DashboardStats(ctx)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	rows := make([]reportRow, 0, len(reportKinds))
	for _, k := range reportKinds {
		row := reportRow{Label: k.Label}
		for _, f := range exportFormats {
			row.Links = append(row.Links, reportLink{
				Label: f.Label,
				Href:  "/reports/export?kind=" + k.Value + "&format=" + f.Value,
			})
		}
		rows = append(rows, row)
	}
	s.render(w, r, http.StatusOK, "reports", &Page{
		Title: "Тайлан",
		Data:  reportsData{Cards: statCards(stats), Rows: rows},
	})
}

// reportExport proxies a rendered report from the backend as a download.
func (s *Server) reportExport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	kind, format := q.Get("kind"), q.Get("format")
	if format == "" {
		format = sdyn.FormatCSV
	}
	if !hasOption(reportKinds, kind) || !hasOption(exportFormats, format) {
		s.renderError(w, r, http.StatusBadRequest, "Тайлангийн төрөл эсвэл формат буруу байна.", "/reports")
		return
	}

	ctx := r.Context()
	raw, err := clientFrom(ctx).ExportReport(ctx, kind, format)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ct := raw.ContentType
	if ct == "" {
		ct = exportTypes[format]
	}
	logging.FromContext(ctx).Infow("Report exported", "kind", kind, "format", format,
		"size", humanize.Bytes(uint64(len(raw.Data))))

	h := w.Header()
	h.Set("Content-Type", ct)
	h.Set("Content-Disposition", fmt.Sprintf(`attachment; filename="sdyn-%s-report.%s"`, kind, format))
	h.Set("Content-Length", strconv.Itoa(len(raw.Data)))
	h.Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw.Data)
}
