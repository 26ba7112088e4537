package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"ChatRelay/server/internal/appMiddleware"
	"ChatRelay/server/internal/config"
	"ChatRelay/server/internal/db"
	"ChatRelay/server/internal/handlers"
	"ChatRelay/server/internal/mailer"
	"ChatRelay/server/internal/pool"
	"ChatRelay/server/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	db.InitDB(cfg.DatabaseURL)

	userService := services.NewUserService()
	chatService := services.NewChatService()
	pool.Init(chatService, userService)
	handlers.InitOtp(mailer.New(cfg))

	r := chi.NewRouter()

	r.Use(appMiddleware.CorsMiddleware)

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Post("/auth/register", handlers.Register)
	r.Post("/auth/login", handlers.Login)
	r.Post("/auth/otp-send", handlers.SendOtp)
	r.Post("/auth/otp-verify", handlers.VerifyOtp)

	r.Group(func(r chi.Router) {
		r.Use(appMiddleware.AuthMiddleware)

		r.Get("/user/search", handlers.SearchUsers)
		r.Get("/user/profile", handlers.GetProfile)
		r.Put("/user/profile", handlers.UpdateProfile)
		r.Post("/user/block", handlers.BlockUser)
		r.Post("/user/unblock", handlers.UnblockUser)

		r.Post("/chat", handlers.CreateChat)
		r.Get("/chat/fetch", handlers.GetChatsByUserId)
		r.Post("/chat/group", handlers.CreateGroupChat)
		r.Put("/chat/group", handlers.RenameGroup)
		r.Put("/chat/group/add", handlers.AddGroupMember)
		r.Put("/chat/group/remove", handlers.RemoveGroupMember)

		r.Get("/message/{chatId}", handlers.GetMessages)
		r.Post("/message", handlers.SendMessage)
		r.Post("/message/{chatId}/seen", handlers.MarkSeen)
		r.Put("/message/{messageId}", handlers.EditMessage)
		r.Delete("/message/{messageId}", handlers.DeleteMessage)
	})

	r.Get("/ws", handlers.WebSocketHandler)

	srv := &http.Server{
		Addr:         cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	log.Printf("Server started on port %s\n", cfg.Port)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %s\n", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	<-stop

	log.Println("Stopping the server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server shutdown error: %s\n", err)
	}
	log.Println("Server has been successfully stopped")
}
