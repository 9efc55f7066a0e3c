package handler

import (
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/campaignhub/backend/api/transport"
	"github.com/campaignhub/backend/domain"
	"github.com/campaignhub/backend/pkg/httpcontext"
	backupUC "github.com/campaignhub/backend/usecase/backup"
	contentUC "github.com/campaignhub/backend/usecase/content"
)

type BackupHandler struct {
	baseHandler
	registry *contentUC.Registry
	uc       *backupUC.Service
}

func NewBackupHandler(uc *backupUC.Service, registry *contentUC.Registry, adapter *httpcontext.Adapter, logger *zap.Logger) *BackupHandler {
	return &BackupHandler{
		baseHandler: newBaseHandler(adapter, logger),
		registry:    registry,
		uc:          uc,
	}
}

// @Summary Export a domain's state
// @Tags backup
// @Router /api/v1/backup/{domain} [get]
func (h *BackupHandler) Export(ctx *fasthttp.RequestCtx) {
	svc, ok := h.service(ctx)
	if !ok {
		return
	}
	h.respondSuccess(ctx, http.StatusOK, h.uc.Export(svc))
}

// @Summary Import a previously exported document
// @Tags backup
// @Router /api/v1/backup/{domain} [post]
func (h *BackupHandler) Import(ctx *fasthttp.RequestCtx) {
	svc, ok := h.service(ctx)
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	if err := h.uc.Import(stdCtx, svc, ctx.PostBody()); err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, map[string]any{
		"imported": len(svc.LocalList()),
	})
}

func (h *BackupHandler) service(ctx *fasthttp.RequestCtx) (*contentUC.Service, bool) {
	name, _ := ctx.UserValue("domain").(string)
	svc, ok := h.registry.Get(name)
	if !ok {
		h.respondJSON(ctx, http.StatusNotFound, transport.NewError(string(domain.ErrCodeNotFound), "unknown content domain", nil))
		return nil, false
	}
	return svc, true
}
