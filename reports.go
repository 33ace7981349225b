package sdyn

import (
	"context"
	"net/http"
	"net/url"

	"github.com/pkg/errors"
)

// Export formats accepted by ExportReport.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
	FormatPDF  = "pdf"
)

func (c *Client) DashboardStats(ctx context.Context) (*DashboardStats, error) {
	var stats DashboardStats
	if err := c.doGET(ctx, "/reports/dashboard", nil, &stats); err != nil {
		return nil, errors.Wrap(err, "get dashboard stats")
	}
	return &stats, nil
}

// ExportReport downloads a rendered report. kind is one of members, fees or
// events.
func (c *Client) ExportReport(ctx context.Context, kind, format string) (*RawBody, error) {
	switch format {
	case FormatCSV, FormatXLSX, FormatPDF:
	default:
		return nil, errors.Errorf("unsupported export format %q", format)
	}
	var raw RawBody
	params := url.Values{"format": {format}}
	if _, err := c.do(ctx, http.MethodGet, "/reports/export/"+url.PathEscape(kind), params, nil, &raw); err != nil {
		return nil, errors.Wrapf(err, "export %s report", kind)
	}
	return &raw, nil
}
