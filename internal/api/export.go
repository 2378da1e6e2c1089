package api

import (
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/soaringjerry/cracks/internal/services"
)

// GET /api/admin/export/{target}?format=long|wide&raw=1
func (rt *Router) handleExport(w http.ResponseWriter, r *http.Request) {
	agg, ok := rt.aggregatorFor(w, r)
	if !ok {
		return
	}
	target := agg.Target()
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "long"
	}
	render := map[string]func([]services.ExportRow) ([]byte, error){
		"long": services.ExportLongCSV,
		"wide": services.ExportWideCSV,
	}[format]
	if render == nil {
		writeError(w, http.StatusBadRequest, "unsupported format")
		return
	}

	recs, err := rt.opts.Store.List(r.Context(), target.Collection)
	if err != nil {
		rt.logger.Error("export list", zap.String("target", target.Name), zap.Error(err))
		writeError(w, http.StatusBadGateway, "storage unavailable")
		return
	}
	stored := make([]*services.StoredRecord, 0, len(recs))
	for _, rec := range recs {
		stored = append(stored, &services.StoredRecord{Signature: rec.Signature, Fields: rec.Fields, UpdatedAt: rec.UpdatedAt})
	}
	raw := r.URL.Query().Get("raw") == "1"
	b, err := render(services.ExportRows(stored, target.Field, raw))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	rt.logger.Info("export", zap.String("target", target.Name), zap.String("format", format), zap.Bool("raw", raw), zap.Int("records", len(stored)))

	name := fmt.Sprintf("%s-%s-%s.csv", target.Name, format, time.Now().UTC().Format("20060102"))
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename="+name)
	_, _ = w.Write(b)
}
