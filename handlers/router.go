package handlers

import (
	"log/slog"
	"net/http"

	"rsvp-server/middleware"
	"rsvp-server/services"

	"github.com/gorilla/mux"
)

type RouterDeps struct {
	Users          *services.UserService
	Graph          *services.SocialGraph
	Events         *services.EventService
	Engine         *services.RSVPEngine
	JWTSecret      string
	AllowedOrigins []string
	Logger         *slog.Logger
}

func NewRouter(d RouterDeps) *mux.Router {
	authHandler := NewAuthHandler(d.Users)
	userHandler := NewUserHandler(d.Users, d.Graph)
	eventHandler := NewEventHandler(d.Events, d.Engine)

	r := mux.NewRouter()
	r.Use(middleware.LoggingMiddleware(d.Logger))
	r.Use(middleware.ErrorMiddleware(d.Logger))
	r.Use(middleware.CORSMiddleware(d.AllowedOrigins))

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods("GET")

	// Auth routes
	authRouter := r.PathPrefix("/auth").Subrouter()
	authRouter.HandleFunc("/register", authHandler.RegisterUser).Methods("POST", "OPTIONS")
	authRouter.HandleFunc("/login", authHandler.LoginUser).Methods("POST", "OPTIONS")

	// User routes
	userRouter := r.PathPrefix("/users").Subrouter()
	userRouter.Use(middleware.JWTMiddleware(d.JWTSecret))
	userRouter.HandleFunc("/me", userHandler.UpdateMe).Methods("PUT", "OPTIONS")
	userRouter.HandleFunc("/me/password", userHandler.UpdatePassword).Methods("PUT", "OPTIONS")
	userRouter.HandleFunc("/me/photo", userHandler.UpdatePhoto).Methods("PUT", "OPTIONS")
	userRouter.HandleFunc("/me/verify", userHandler.VerifyMe).Methods("POST", "OPTIONS")
	userRouter.HandleFunc("/by-username/{username}", userHandler.GetUserByUsername).Methods("GET", "OPTIONS")
	userRouter.HandleFunc("/by-email/{email}", userHandler.GetUserByEmail).Methods("GET", "OPTIONS")
	userRouter.HandleFunc("/{id}", userHandler.GetUser).Methods("GET", "OPTIONS")
	userRouter.HandleFunc("/{id}/follow", userHandler.Follow).Methods("POST", "OPTIONS")
	userRouter.HandleFunc("/{id}/follow", userHandler.Unfollow).Methods("DELETE")
	userRouter.HandleFunc("/{id}/followers", userHandler.ListFollowers).Methods("GET", "OPTIONS")
	userRouter.HandleFunc("/{id}/following", userHandler.ListFollowing).Methods("GET", "OPTIONS")

	// Event routes
	eventRouter := r.PathPrefix("/events").Subrouter()
	eventRouter.Use(middleware.JWTMiddleware(d.JWTSecret))
	eventRouter.HandleFunc("", eventHandler.CreateEvent).Methods("POST", "OPTIONS")
	eventRouter.HandleFunc("/{id}", eventHandler.GetEvent).Methods("GET", "OPTIONS")
	eventRouter.HandleFunc("/{id}/invite", eventHandler.InviteUser).Methods("POST", "OPTIONS")
	eventRouter.HandleFunc("/{id}/waitlist", eventHandler.AddToWaitlist).Methods("POST", "OPTIONS")
	eventRouter.HandleFunc("/{id}/rsvp", eventHandler.RSVP).Methods("POST", "OPTIONS")
	eventRouter.HandleFunc("/{id}/reconcile", eventHandler.Reconcile).Methods("POST", "OPTIONS")

	return r
}
