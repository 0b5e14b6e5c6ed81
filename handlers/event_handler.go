package handlers

import (
	"net/http"

	"rsvp-server/middleware"
	"rsvp-server/services"

	"github.com/gorilla/mux"
)

type EventHandler struct {
	eventService *services.EventService
	engine       *services.RSVPEngine
}

type userRef struct {
	UserID string `json:"user_id"`
}

func NewEventHandler(eventService *services.EventService, engine *services.RSVPEngine) *EventHandler {
	return &EventHandler{eventService: eventService, engine: engine}
}

func (h *EventHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(w, r)
	if !ok {
		return
	}
	var input services.EventInput
	if !decode(w, r, &input) {
		return
	}
	event, err := h.eventService.CreateEvent(r.Context(), caller, input)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, event)
}

func (h *EventHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	event, err := h.eventService.GetEvent(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// InviteUser records the invitation on the invited user's side.
func (h *EventHandler) InviteUser(w http.ResponseWriter, r *http.Request) {
	var input userRef
	if !decode(w, r, &input) {
		return
	}
	user, err := h.engine.InviteUser(r.Context(), input.UserID, mux.Vars(r)["id"])
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *EventHandler) AddToWaitlist(w http.ResponseWriter, r *http.Request) {
	var input userRef
	if !decode(w, r, &input) {
		return
	}
	event, err := h.eventService.AddToWaitlist(r.Context(), mux.Vars(r)["id"], input.UserID)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// RSVP confirms the caller's attendance.
func (h *EventHandler) RSVP(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(w, r)
	if !ok {
		return
	}
	user, err := h.engine.RSVP(r.Context(), caller, mux.Vars(r)["id"])
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *EventHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	var input userRef
	if !decode(w, r, &input) {
		return
	}
	user, err := h.engine.Reconcile(r.Context(), input.UserID, mux.Vars(r)["id"])
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
