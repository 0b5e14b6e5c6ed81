package handlers

import (
	"net/http"

	"rsvp-server/middleware"
	"rsvp-server/models"
	"rsvp-server/services"

	"github.com/gorilla/mux"
)

type UserHandler struct {
	userService *services.UserService
	graph       *services.SocialGraph
}

type UsersResponse struct {
	Users []models.User `json:"users"`
	Count int           `json:"count"`
}

func NewUserHandler(userService *services.UserService, graph *services.SocialGraph) *UserHandler {
	return &UserHandler{userService: userService, graph: graph}
}

func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.userService.GetUser(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) GetUserByUsername(w http.ResponseWriter, r *http.Request) {
	user, err := h.userService.GetUserByUsername(r.Context(), mux.Vars(r)["username"])
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) GetUserByEmail(w http.ResponseWriter, r *http.Request) {
	user, err := h.userService.GetUserByEmail(r.Context(), mux.Vars(r)["email"])
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(w, r)
	if !ok {
		return
	}
	var input services.ProfileInput
	if !decode(w, r, &input) {
		return
	}
	user, err := h.userService.UpdateProfile(r.Context(), caller, input)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(w, r)
	if !ok {
		return
	}
	var input struct {
		Password string `json:"password"`
	}
	if !decode(w, r, &input) {
		return
	}
	user, err := h.userService.UpdatePassword(r.Context(), caller, input.Password)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) UpdatePhoto(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(w, r)
	if !ok {
		return
	}
	var input struct {
		URL string `json:"profile_photo_url"`
	}
	if !decode(w, r, &input) {
		return
	}
	user, err := h.userService.UpdatePhotoURL(r.Context(), caller, input.URL)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) VerifyMe(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(w, r)
	if !ok {
		return
	}
	user, err := h.userService.VerifyUser(r.Context(), caller)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// Follow makes the caller follow the user in the path.
func (h *UserHandler) Follow(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(w, r)
	if !ok {
		return
	}
	user, err := h.graph.Follow(r.Context(), mux.Vars(r)["id"], caller)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) Unfollow(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(w, r)
	if !ok {
		return
	}
	user, err := h.graph.Unfollow(r.Context(), mux.Vars(r)["id"], caller)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) ListFollowers(w http.ResponseWriter, r *http.Request) {
	users, err := h.graph.ListFollowers(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, UsersResponse{Users: users, Count: len(users)})
}

func (h *UserHandler) ListFollowing(w http.ResponseWriter, r *http.Request) {
	users, err := h.graph.ListFollowing(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, UsersResponse{Users: users, Count: len(users)})
}
