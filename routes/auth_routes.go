package routes

import (
	"github.com/gin-gonic/gin"

	handlers "sosalert/internal/handlers/shared"
)

func SetupAuthRoutes(r *gin.RouterGroup, authHandler *handlers.AuthHandler, auth gin.HandlerFunc) {
	public := r.Group("/auth")
	{
		public.POST("/register", authHandler.Register)
		public.POST("/login", authHandler.Login)
	}

	account := r.Group("/auth")
	account.Use(auth)
	{
		account.POST("/logout", authHandler.Logout)
		account.GET("/me", authHandler.Me)
		account.PUT("/profile", authHandler.UpdateProfile)
		account.PUT("/update-location", authHandler.UpdateLocation)
		account.PUT("/change-password", authHandler.ChangePassword)
		account.DELETE("/account", authHandler.DeleteAccount)
	}
}
