package api

import (
	"bytes"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"controltower/internal/export"
	"controltower/internal/opt"
	"controltower/internal/store"
)

// ExportHandler handles GET /v1/export/{name}.csv for the filtered master
// view, ranked routes, transfer plan and reorder plan.
func (s *Server) ExportHandler(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	p, err := s.parseParams(r)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid parameters", err.Error(), r.URL.Path)
		return
	}
	var file string
	var fn func(snap *store.Snapshot, out io.Writer) error
	switch name {
	case "master":
		file = export.MasterFile
		fn = func(snap *store.Snapshot, out io.Writer) error {
			return export.Master(out, s.active(snap, p).Records)
		}
	case "routes":
		file = export.RoutesFile
		fn = func(snap *store.Snapshot, out io.Writer) error {
			scores, err := opt.ScoreRoutes(s.active(snap, p).Records, p.weights, p.granularity, p.heur.NeutralScore)
			if err != nil {
				return err
			}
			return export.Routes(out, scores)
		}
	case "transfers":
		file = export.TransfersFile
		fn = func(snap *store.Snapshot, out io.Writer) error {
			return export.Transfers(out, s.plan(snap, p).Transfers)
		}
	case "reorders":
		file = export.ReordersFile
		fn = func(snap *store.Snapshot, out io.Writer) error {
			return export.Reorders(out, s.plan(snap, p))
		}
	default:
		writeProblem(w, http.StatusNotFound, "Not Found", "unknown export "+name, r.URL.Path)
		return
	}
	snap, ok := s.snapshot(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := fn(snap, &buf); err != nil {
		writeProblem(w, http.StatusInternalServerError, "Export failed", err.Error(), r.URL.Path)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+file+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
