package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/campaignhub/backend/api/transport"
	"github.com/campaignhub/backend/domain"
	"github.com/campaignhub/backend/pkg/httpcontext"
	"github.com/campaignhub/backend/repository"
	contentUC "github.com/campaignhub/backend/usecase/content"
)

type ContentHandler struct {
	baseHandler
	registry *contentUC.Registry
}

func NewContentHandler(registry *contentUC.Registry, adapter *httpcontext.Adapter, logger *zap.Logger) *ContentHandler {
	return &ContentHandler{
		baseHandler: newBaseHandler(adapter, logger),
		registry:    registry,
	}
}

// @Summary List entities for a domain
// @Tags content
// @Router /api/v1/content/{domain} [get]
func (h *ContentHandler) List(ctx *fasthttp.RequestCtx) {
	svc, ok := h.service(ctx)
	if !ok {
		return
	}

	filter := repository.EntityFilter{
		Limit:  parseInt(string(ctx.QueryArgs().Peek("limit")), 0),
		Offset: parseInt(string(ctx.QueryArgs().Peek("offset")), 0),
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	items, err := svc.List(stdCtx, filter)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	if items == nil {
		items = []domain.Entity{}
	}
	h.respondSuccess(ctx, http.StatusOK, items)
}

// @Summary Get one entity
// @Tags content
// @Router /api/v1/content/{domain}/{id} [get]
func (h *ContentHandler) Get(ctx *fasthttp.RequestCtx) {
	svc, ok := h.service(ctx)
	if !ok {
		return
	}
	id, _ := ctx.UserValue("id").(string)

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	entity, err := svc.GetByID(stdCtx, id)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, entity)
}

// @Summary Create or replace an entity
// @Tags content
// @Router /api/v1/content/{domain} [post]
func (h *ContentHandler) Upsert(ctx *fasthttp.RequestCtx) {
	svc, ok := h.service(ctx)
	if !ok {
		return
	}

	var req transport.EntityRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.respondJSON(ctx, http.StatusBadRequest, transport.NewError(string(domain.ErrCodeInvalid), "invalid payload", nil))
		return
	}

	entity := &domain.Entity{
		ID:     req.ID,
		Views:  req.Views,
		Fields: req.Fields,
	}
	if entity.ID == "" {
		if id, ok := ctx.UserValue("id").(string); ok {
			entity.ID = id
		}
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	persisted, err := svc.Upsert(stdCtx, entity)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	// A locally durable write is a success even when the remote store lagged;
	// the meta block tells the caller whether cross-device sync is delayed.
	h.respondJSON(ctx, http.StatusOK, transport.NewSuccess(persisted, syncMeta(svc)))
}

// @Summary Delete an entity
// @Tags content
// @Router /api/v1/content/{domain}/{id} [delete]
func (h *ContentHandler) Delete(ctx *fasthttp.RequestCtx) {
	svc, ok := h.service(ctx)
	if !ok {
		return
	}
	id, _ := ctx.UserValue("id").(string)
	if id == "" {
		h.respondJSON(ctx, http.StatusBadRequest, transport.NewError(string(domain.ErrCodeInvalid), "missing entity id", nil))
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	if err := svc.Delete(stdCtx, id); err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondJSON(ctx, http.StatusOK, transport.NewSuccess(nil, syncMeta(svc)))
}

// @Summary Record one view
// @Tags content
// @Router /api/v1/content/{domain}/{id}/views [post]
func (h *ContentHandler) IncrementView(ctx *fasthttp.RequestCtx) {
	svc, ok := h.service(ctx)
	if !ok {
		return
	}
	id, _ := ctx.UserValue("id").(string)

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	svc.IncrementView(stdCtx, id)
	h.respondSuccess(ctx, http.StatusAccepted, nil)
}

// @Summary Read domain settings
// @Tags content
// @Router /api/v1/content/{domain}/settings [get]
func (h *ContentHandler) GetSettings(ctx *fasthttp.RequestCtx) {
	svc, ok := h.service(ctx)
	if !ok {
		return
	}
	blob, ok := svc.Settings()
	if !ok {
		h.respondSuccess(ctx, http.StatusOK, map[string]any{})
		return
	}
	h.respondSuccess(ctx, http.StatusOK, json.RawMessage(blob))
}

// @Summary Replace domain settings
// @Tags content
// @Router /api/v1/content/{domain}/settings [put]
func (h *ContentHandler) UpdateSettings(ctx *fasthttp.RequestCtx) {
	svc, ok := h.service(ctx)
	if !ok {
		return
	}

	body := ctx.PostBody()
	if !json.Valid(body) {
		h.respondJSON(ctx, http.StatusBadRequest, transport.NewError(string(domain.ErrCodeInvalid), "settings must be valid JSON", nil))
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	if err := svc.UpdateSettings(stdCtx, body); err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, nil)
}

// @Summary Pending sync status
// @Tags sync
// @Router /api/v1/content/{domain}/sync [get]
func (h *ContentHandler) SyncStatus(ctx *fasthttp.RequestCtx) {
	svc, ok := h.service(ctx)
	if !ok {
		return
	}
	h.respondSuccess(ctx, http.StatusOK, map[string]any{
		"pending": svc.PendingCount(),
	})
}

// @Summary Drain pending writes and refresh from remote
// @Tags sync
// @Router /api/v1/content/{domain}/sync [post]
func (h *ContentHandler) Resync(ctx *fasthttp.RequestCtx) {
	svc, ok := h.service(ctx)
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	drained, err := svc.Resync(stdCtx)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, map[string]any{
		"drained": drained,
		"pending": svc.PendingCount(),
	})
}

func (h *ContentHandler) service(ctx *fasthttp.RequestCtx) (*contentUC.Service, bool) {
	name, _ := ctx.UserValue("domain").(string)
	svc, ok := h.registry.Get(name)
	if !ok {
		h.respondJSON(ctx, http.StatusNotFound, transport.NewError(string(domain.ErrCodeNotFound), "unknown content domain", nil))
		return nil, false
	}
	return svc, true
}

func syncMeta(svc *contentUC.Service) map[string]any {
	pending := svc.PendingCount()
	meta := map[string]any{"pending_sync": pending}
	if pending > 0 {
		meta["sync_delayed"] = true
	}
	return meta
}

func parseInt(value string, fallback int) int {
	if v, err := strconv.Atoi(value); err == nil {
		return v
	}
	return fallback
}
