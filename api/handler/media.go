package handler

import (
	"encoding/json"
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/campaignhub/backend/api/transport"
	"github.com/campaignhub/backend/domain"
	"github.com/campaignhub/backend/pkg/httpcontext"
	contentUC "github.com/campaignhub/backend/usecase/content"
	mediaUC "github.com/campaignhub/backend/usecase/media"
)

type MediaHandler struct {
	baseHandler
	registry *contentUC.Registry
	uc       *mediaUC.Service
}

func NewMediaHandler(uc *mediaUC.Service, registry *contentUC.Registry, adapter *httpcontext.Adapter, logger *zap.Logger) *MediaHandler {
	return &MediaHandler{
		baseHandler: newBaseHandler(adapter, logger),
		registry:    registry,
		uc:          uc,
	}
}

// @Summary Upload a media object for a domain
// @Tags media
// @Router /api/v1/media/{domain} [post]
func (h *MediaHandler) Upload(ctx *fasthttp.RequestCtx) {
	name, _ := ctx.UserValue("domain").(string)
	svc, ok := h.registry.Get(name)
	if !ok {
		h.respondJSON(ctx, http.StatusNotFound, transport.NewError(string(domain.ErrCodeNotFound), "unknown content domain", nil))
		return
	}

	var req transport.MediaUploadRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil || len(req.Data) == 0 {
		h.respondJSON(ctx, http.StatusBadRequest, transport.NewError(string(domain.ErrCodeInvalid), "invalid payload", nil))
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	result, err := h.uc.Upload(stdCtx, svc.Descriptor(), req.Filename, req.Data, req.ContentType)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusCreated, result)
}

// @Summary Serve an ephemeral fallback object
// @Tags media
// @Router /media/{token} [get]
func (h *MediaHandler) Serve(ctx *fasthttp.RequestCtx) {
	token, _ := ctx.UserValue("token").(string)
	data, contentType, ok := h.uc.Serve(token)
	if !ok {
		ctx.SetStatusCode(http.StatusNotFound)
		return
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	ctx.Response.Header.SetContentType(contentType)
	ctx.SetStatusCode(http.StatusOK)
	ctx.SetBody(data)
}
