package handlers

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"relmap/application/queries"
	"relmap/application/transfer"
	"relmap/pkg/common"
	pkgerrors "relmap/pkg/errors"
	"relmap/pkg/observability"

	"go.uber.org/zap"
)

// MaxDocumentBytes bounds uploaded import documents
const MaxDocumentBytes = 10 << 20

// GraphHandler serves the filtered view and whole-map operations
type GraphHandler struct {
	base
	tracer        *observability.Tracer
	reloadTimeout time.Duration
}

// NewGraphHandler creates a new graph handler. Whole-map operations run in their own trace subsegment.
func NewGraphHandler(sessions Sessions, tracer *observability.Tracer, errorHandler *pkgerrors.ErrorHandler, logger *zap.Logger) *GraphHandler {
	if tracer == nil {
		tracer = observability.NewTracer("relmap", false)
	}
	return &GraphHandler{base: newBase(sessions, errorHandler, logger), tracer: tracer, reloadTimeout: 30 * time.Second}
}

// GetGraph handles GET /graph?search=&proximity=&category=
// category may be repeated or comma separated.
func (h *GraphHandler) GetGraph(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	criteria, err := queries.NewFilterCriteria(q.Get("search"), q.Get("proximity"), categoryParams(q["category"]))
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	s, ok := h.session(w, r)
	if !ok {
		return
	}
	common.RespondJSON(w, r, http.StatusOK, s.View(criteria))
}

// Export handles GET /export
func (h *GraphHandler) Export(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	data, err := s.Export()
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	contentType, extension := s.DocumentType()
	filename := "relmap-" + time.Now().UTC().Format("20060102") + "." + extension
	common.RespondFile(w, contentType, filename, data)
}

// Import handles POST /import. The document is read from the multipart field
// "file" or, for any other content type, from the raw body.
func (h *GraphHandler) Import(w http.ResponseWriter, r *http.Request) {
	data, err := readDocument(w, r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	s, ok := h.session(w, r)
	if !ok {
		return
	}
	h.tracer.AddAnnotation(r.Context(), "userID", s.OwnerID())
	var report transfer.ImportReport
	err = h.tracer.TraceFunction(r.Context(), "import", func(context.Context) error {
		var importErr error
		report, importErr = s.Import(data)
		return importErr
	})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, r, http.StatusOK, report)
}

// Reset handles POST /reset
func (h *GraphHandler) Reset(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := s.Reset(); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondNoContent(w)
}

// Reload handles POST /graph/reload
func (h *GraphHandler) Reload(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.reloadTimeout)
	defer cancel()
	h.tracer.AddAnnotation(ctx, "userID", s.OwnerID())
	if err := h.tracer.TraceFunction(ctx, "reload", s.Reload); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, r, http.StatusOK, s.View(queries.FilterCriteria{Proximity: queries.ProximityAll}))
}

func categoryParams(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func readDocument(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxDocumentBytes)

	var src io.Reader = r.Body
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, _, err := r.FormFile("file")
		if err != nil {
			return nil, pkgerrors.NewDocumentFormatError("missing file field").WithCause(err)
		}
		defer file.Close()
		src = file
	}

	data, err := io.ReadAll(src)
	if err != nil {
		return nil, pkgerrors.NewDocumentFormatError("document could not be read").WithCause(err)
	}
	if len(data) == 0 {
		return nil, pkgerrors.NewDocumentFormatError("document is empty")
	}
	return data, nil
}
