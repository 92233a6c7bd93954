package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/starford/munchie/internal/backup"
	"github.com/starford/munchie/internal/collectionservice"
)

const (
	maxJSONBody    = 10 << 20
	maxRestoreBody = 512 << 20
)

// Handler holds API route handlers.
type Handler struct {
	svc *collectionservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *collectionservice.Service) *Handler {
	return &Handler{svc: svc}
}

// decodeBody reads a JSON request body into v. An empty body leaves v as is.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return false
	}
	return true
}

// ListCollections handles GET /api/collections.
//
//	@Summary		List every collection
//	@Tags			collections
//	@Produce		json
//	@Success		200	{object}	CollectionListResponse
//	@Security		BearerAuth
//	@Router			/collections [get]
func (h *Handler) ListCollections(w http.ResponseWriter, r *http.Request) {
	cols, err := h.svc.List(r.Context())
	if err != nil {
		writeError(w, "list collections", err)
		return
	}
	writeJSON(w, http.StatusOK, CollectionListResponse{Collections: cols, Total: len(cols)})
}

// GetCollection handles GET /api/collections/{id}.
//
//	@Summary		Get a single collection
//	@Tags			collections
//	@Produce		json
//	@Param			id	path		string	true	"Collection id"
//	@Success		200	{object}	Collection
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/collections/{id} [get]
func (h *Handler) GetCollection(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	c, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, "get collection", err, slog.String("id", id))
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// CreateCollection handles POST /api/collections.
//
//	@Summary		Create a collection
//	@Tags			collections
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateCollectionRequest	true	"Collection to create"
//	@Success		201		{object}	Collection
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/collections [post]
func (h *Handler) CreateCollection(w http.ResponseWriter, r *http.Request) {
	var req CreateCollectionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	c, err := h.svc.Create(r.Context(), req)
	if err != nil {
		writeError(w, "create collection", err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// UpdateCollection handles PUT /api/collections/{id}.
//
//	@Summary		Update collection fields
//	@Tags			collections
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string					true	"Collection id"
//	@Param			body	body		UpdateCollectionRequest	true	"Fields to change"
//	@Success		200		{object}	Collection
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/collections/{id} [put]
func (h *Handler) UpdateCollection(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req UpdateCollectionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	c, err := h.svc.Update(r.Context(), id, req)
	if err != nil {
		writeError(w, "update collection", err, slog.String("id", id))
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// DeleteCollection handles DELETE /api/collections/{id}.
//
//	@Summary		Delete a collection
//	@Tags			collections
//	@Param			id	path	string	true	"Collection id"
//	@Success		204	"Collection deleted"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/collections/{id} [delete]
func (h *Handler) DeleteCollection(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.Delete(r.Context(), id); err != nil {
		writeError(w, "delete collection", err, slog.String("id", id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ScanFolders handles POST /api/collections/scan.
//
//	@Summary		Derive collections from the folder tree and merge them
//	@Tags			collections
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ScanRequest	false	"Scan options"
//	@Success		200		{object}	ScanResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/collections/scan [post]
func (h *Handler) ScanFolders(w http.ResponseWriter, r *http.Request) {
	var req ScanRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := h.svc.Scan(r.Context(), req)
	if err != nil {
		writeError(w, "scan folders", err, slog.String("path", req.Path))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ReconcileHidden handles POST /api/collections/reconcile-hidden.
//
//	@Summary		Align every model's hidden flag with collection membership
//	@Tags			collections
//	@Produce		json
//	@Success		200	{object}	reconcile.HiddenReport
//	@Security		BearerAuth
//	@Router			/collections/reconcile-hidden [post]
func (h *Handler) ReconcileHidden(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.ReconcileHidden(r.Context())
	if err != nil {
		writeError(w, "reconcile hidden", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// ListModels handles GET /api/models.
//
//	@Summary		List indexed models with optional pagination and tag filter
//	@Tags			models
//	@Produce		json
//	@Param			limit	query		int		false	"Page size"
//	@Param			offset	query		int		false	"Page offset"
//	@Param			tag		query		string	false	"Filter by tag"
//	@Success		200		{object}	ModelListResponse
//	@Security		BearerAuth
//	@Router			/models [get]
func (h *Handler) ListModels(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	items, total, err := h.svc.ListModels(r.Context(), limit, offset, q.Get("tag"))
	if err != nil {
		writeError(w, "list models", err)
		return
	}
	writeJSON(w, http.StatusOK, ModelListResponse{Models: items, Total: total})
}

// Backup handles GET /api/backup.
//
//	@Summary		Download a backup of every sidecar and the collection store
//	@Tags			backup
//	@Produce		json
//	@Param			gzip	query	bool	false	"Gzip the envelope"
//	@Success		200		{object}	models.BackupEnvelope
//	@Security		BearerAuth
//	@Router			/backup [get]
func (h *Handler) Backup(w http.ResponseWriter, r *http.Request) {
	env, fileErrs, err := h.svc.Backup(r.Context())
	if err != nil {
		writeError(w, "backup", err)
		return
	}
	compress, _ := strconv.ParseBool(r.URL.Query().Get("gzip"))

	name := fmt.Sprintf("munchie-backup-%s.json", env.Timestamp.Format("20060102-150405"))
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if compress {
		name += ".gz"
		w.Header().Set("Content-Type", "application/gzip")
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("X-Backup-Errors", strconv.Itoa(len(fileErrs)))
	w.WriteHeader(http.StatusOK)
	if err := backup.Encode(w, env, compress); err != nil {
		slog.Error("backup encode failed", slog.String("error", err.Error()))
	}
}

// Restore handles POST /api/restore.
//
//	@Summary		Restore sidecars and collections from a backup envelope
//	@Tags			backup
//	@Accept			json
//	@Produce		json
//	@Param			strategy	query		string	false	"File matching"	Enums(hash-match, path-match, force)
//	@Param			collections	query		string	false	"Collection handling"	Enums(merge, replace)
//	@Success		200			{object}	RestoreResponse
//	@Failure		400			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/restore [post]
func (h *Handler) Restore(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRestoreBody)
	env, err := backup.Decode(r.Body)
	if err != nil {
		writeError(w, "decode backup", err)
		return
	}
	q := r.URL.Query()
	res, err := h.svc.Restore(r.Context(), env, q.Get("strategy"), q.Get("collections"))
	if err != nil {
		writeError(w, "restore", err)
		return
	}
	writeJSON(w, http.StatusOK, RestoreResponse{
		Restored:    res.Restored,
		Skipped:     res.Skipped,
		Errors:      res.Errors,
		Collections: len(res.Collections),
	})
}
