package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/leaddesk/internal/core"
	"github.com/JonMunkholm/leaddesk/internal/export"
	"github.com/JonMunkholm/leaddesk/internal/logging"
	"github.com/JonMunkholm/leaddesk/internal/messaging"
	"github.com/JonMunkholm/leaddesk/internal/table"
)

const (
	// multipartOverhead is added to the image limit for the text fields.
	multipartOverhead = 1 << 20

	progressPing = 15 * time.Second
)

type startBatchResponse struct {
	ID           string `json:"id"`
	TemplateName string `json:"templateName"`
	Targets      int    `json:"targets"`
}

// handleStartBatch sends the submitted template to every selected row.
//
// The form is multipart: header, text, text1-3 and either an "image" file
// part or an "imageDataUrl" field.
func (s *Server) handleStartBatch(w http.ResponseWriter, r *http.Request) {
	maxImage := s.cfg.Messaging.MaxImageSize
	r.Body = http.MaxBytesReader(w, r.Body, maxImage+multipartOverhead)
	if err := r.ParseMultipartForm(maxImage + multipartOverhead); err != nil {
		respondError(w, r, &badRequestError{err: err}, 0)
		return
	}
	if r.MultipartForm != nil {
		defer func() { _ = r.MultipartForm.RemoveAll() }()
	}

	form, err := parseBatchForm(r, maxImage)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}

	var targets []string
	err = s.withTable(w, r, func(e *table.Engine) error {
		targets = s.service.TargetsOf(e.SelectedRecords())
		if len(targets) == 0 {
			return core.ErrNoTargets
		}
		return nil
	})
	if err != nil {
		respondError(w, r, err, 0)
		return
	}

	ctx := withRequestMetadata(r.Context(), r)
	id, err := s.service.StartBatch(ctx, form, targets)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}

	logging.WithFields(r.Context(), "batch_id", id, "targets", len(targets)).Info("batch submitted")
	writeJSONStatus(w, http.StatusAccepted, startBatchResponse{
		ID:           id,
		TemplateName: form.TemplateName(),
		Targets:      len(targets),
	})
}

func parseBatchForm(r *http.Request, maxImage int64) (messaging.Form, error) {
	form := messaging.Form{
		Header:     messaging.HeaderKind(r.FormValue("header")),
		HeaderText: r.FormValue("text"),
		Text1:      r.FormValue("text1"),
		Text2:      r.FormValue("text2"),
		Text3:      r.FormValue("text3"),
	}
	if form.Header != messaging.HeaderImage {
		return form, nil
	}

	img, err := formImage(r, maxImage)
	if err != nil {
		return form, err
	}
	form.Image = img
	return form, nil
}

// formImage reads the header image from the file part, falling back to a
// data URL field. A missing image returns nil; Validate reports it.
func formImage(r *http.Request, maxImage int64) (*messaging.Image, error) {
	file, hdr, err := r.FormFile("image")
	switch {
	case err == nil:
		defer file.Close()
		data, err := io.ReadAll(io.LimitReader(file, maxImage+1))
		if err != nil {
			return nil, &badRequestError{err: err}
		}
		if len(data) == 0 {
			break
		}
		if int64(len(data)) > maxImage {
			return nil, fmt.Errorf("%w: over %d bytes", messaging.ErrImageTooLarge, maxImage)
		}
		mime := hdr.Header.Get("Content-Type")
		if mime == "" || mime == "application/octet-stream" {
			mime = http.DetectContentType(data)
		}
		return &messaging.Image{Data: data, MIMEType: mime, Filename: hdr.Filename}, nil
	case !errors.Is(err, http.ErrMissingFile):
		return nil, &badRequestError{err: err}
	}

	if dataURL := r.FormValue("imageDataUrl"); dataURL != "" {
		img, err := messaging.DecodeDataURL(dataURL)
		if err != nil {
			return nil, fmt.Errorf("decode header image data url: %w", err)
		}
		if int64(len(img.Data)) > maxImage {
			return nil, fmt.Errorf("%w: over %d bytes", messaging.ErrImageTooLarge, maxImage)
		}
		return img, nil
	}
	return nil, nil
}

type batchListResponse struct {
	Active  []core.BatchStatus `json:"active"`
	History []core.BatchStatus `json:"history"`
}

func (s *Server) handleListBatches(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			respondError(w, r, &badRequestError{err: fmt.Errorf("invalid limit %q", v)}, 0)
			return
		}
		limit = n
	}

	hist, err := s.service.History(r.Context(), limit)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	active := s.service.ActiveBatches()
	if active == nil {
		active = []core.BatchStatus{}
	}
	writeJSON(w, batchListResponse{Active: active, History: hist})
}

func (s *Server) handleGetBatch(w http.ResponseWriter, r *http.Request) {
	st, err := s.service.BatchStatus(r.Context(), chi.URLParam(r, "batchID"))
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	writeJSON(w, st)
}

func (s *Server) handleCancelBatch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "batchID")
	if err := s.service.CancelBatch(id); err != nil {
		respondError(w, r, err, 0)
		return
	}
	logging.WithFields(r.Context(), "batch_id", id).Info("batch cancel requested")
	writeJSONStatus(w, http.StatusAccepted, map[string]string{"id": id, "status": "cancelling"})
}

// handleErrorReport downloads errors.json for a finished batch.
func (s *Server) handleErrorReport(w http.ResponseWriter, r *http.Request) {
	report, err := s.service.ErrorReport(r.Context(), chi.URLParam(r, "batchID"))
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.ReportFilename+`"`)
	_, _ = w.Write(report)
}

// handleBatchProgress streams progress as server-sent events. Each update is
// a "progress" event; a final "done" event carries the batch status.
func (s *Server) handleBatchProgress(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "batchID")

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, r, errors.New("streaming unsupported"), http.StatusInternalServerError)
		return
	}

	updates, err := s.service.SubscribeProgress(id)
	if errors.Is(err, core.ErrBatchNotFound) {
		// Finished and evicted batches still answer from history.
		st, herr := s.service.BatchStatus(r.Context(), id)
		if herr != nil {
			respondError(w, r, herr, 0)
			return
		}
		startSSE(w)
		writeEvent(w, "done", "", st)
		flusher.Flush()
		return
	}
	if err != nil {
		respondError(w, r, err, 0)
		return
	}

	startSSE(w)
	flusher.Flush()

	ticker := time.NewTicker(progressPing)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			_, _ = io.WriteString(w, ": ping\n\n")
			flusher.Flush()

		case p, open := <-updates:
			if !open {
				st, err := s.service.BatchStatus(ctx, id)
				if err != nil {
					logging.FromContext(ctx).Warn("final batch status", "batch_id", id, "error", err)
					return
				}
				writeEvent(w, "done", "", st)
				flusher.Flush()
				return
			}
			writeEvent(w, "progress", strconv.Itoa(p.Attempted), p)
			flusher.Flush()
		}
	}
}

func startSSE(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
}

func writeEvent(w io.Writer, event, id string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if id != "" {
		fmt.Fprintf(w, "id: %s\n", id)
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}
