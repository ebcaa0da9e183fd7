package handler

import (
	"net/http"

	"roombook/internal/identity"
	"roombook/internal/reservations/service"
	apperrors "roombook/pkg/errors"
	httputil "roombook/pkg/http"
	"roombook/pkg/logger"
	"roombook/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type ReservationHandler struct {
	service service.ReservationService
	log     *logger.Logger
}

func NewReservationHandler(service service.ReservationService, log *logger.Logger) *ReservationHandler {
	return &ReservationHandler{
		service: service,
		log:     log,
	}
}

func (h *ReservationHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	caller, ok := h.caller(w, r, "Create")
	if !ok {
		return
	}

	var input model.ReservationInput
	if err := httputil.DecodeJSON(r, &input); err != nil {
		h.writeError(w, "Create", err)
		return
	}

	view, err := h.service.Create(r.Context(), caller, &input)
	if err != nil {
		h.writeError(w, "Create", err)
		return
	}

	if err := httputil.WriteCreated(w, view); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *ReservationHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	caller, ok := h.caller(w, r, "GetByID")
	if !ok {
		return
	}

	view, err := h.service.GetByID(r.Context(), caller, ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}

	if err := httputil.WriteSuccess(w, view); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ReservationHandler) GetAll(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	caller, ok := h.caller(w, r, "GetAll")
	if !ok {
		return
	}

	views, err := h.service.ListAll(r.Context(), caller)
	if err != nil {
		h.writeError(w, "GetAll", err)
		return
	}
	h.writeList(w, "GetAll", views)
}

func (h *ReservationHandler) GetMine(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	caller, ok := h.caller(w, r, "GetMine")
	if !ok {
		return
	}

	views, err := h.service.ListMine(r.Context(), caller)
	if err != nil {
		h.writeError(w, "GetMine", err)
		return
	}
	h.writeList(w, "GetMine", views)
}

// GetBySpace lists a space's reservations. With ?future=true only those
// dated today or later are returned.
func (h *ReservationHandler) GetBySpace(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	caller, ok := h.caller(w, r, "GetBySpace")
	if !ok {
		return
	}

	future, err := httputil.QueryBool(r, "future")
	if err != nil {
		h.writeError(w, "GetBySpace", err)
		return
	}

	var views []*model.ReservationView
	if future {
		views, err = h.service.ListFutureBySpace(r.Context(), caller, ps.ByName("id"))
	} else {
		views, err = h.service.ListBySpace(r.Context(), caller, ps.ByName("id"))
	}
	if err != nil {
		h.writeError(w, "GetBySpace", err)
		return
	}
	h.writeList(w, "GetBySpace", views)
}

func (h *ReservationHandler) Update(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	caller, ok := h.caller(w, r, "Update")
	if !ok {
		return
	}

	var update model.ReservationUpdate
	if err := httputil.DecodeJSON(r, &update); err != nil {
		h.writeError(w, "Update", err)
		return
	}

	view, err := h.service.Update(r.Context(), caller, ps.ByName("id"), &update)
	if err != nil {
		h.writeError(w, "Update", err)
		return
	}

	if err := httputil.WriteSuccess(w, view); err != nil {
		h.log.Error("failed to write success response", "handler", "Update", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ReservationHandler) Delete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	caller, ok := h.caller(w, r, "Delete")
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), caller, ps.ByName("id")); err != nil {
		h.writeError(w, "Delete", err)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *ReservationHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/reservations", h.Create)
	router.GET("/api/v1/reservations", h.GetAll)
	router.GET("/api/v1/reservations/mine", h.GetMine)
	router.GET("/api/v1/reservations/id/:id", h.GetByID)
	router.PUT("/api/v1/reservations/id/:id", h.Update)
	router.DELETE("/api/v1/reservations/id/:id", h.Delete)
	router.GET("/api/v1/spaces/:id/reservations", h.GetBySpace)
}

func (h *ReservationHandler) caller(w http.ResponseWriter, r *http.Request, handler string) (identity.Principal, bool) {
	caller, ok := identity.FromContext(r.Context())
	if !ok {
		h.writeError(w, handler, apperrors.Unauthorized("Authentication required"))
		return identity.Principal{}, false
	}
	return caller, true
}

func (h *ReservationHandler) writeList(w http.ResponseWriter, handler string, views []*model.ReservationView) {
	if views == nil {
		views = []*model.ReservationView{}
	}
	if err := httputil.WriteList(w, views, len(views)); err != nil {
		h.log.Error("failed to write list response", "handler", handler, "operation", "WriteList", "error", err)
	}
}

func (h *ReservationHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}
