package bootstrap

import "github.com/gin-gonic/gin"

// SetGinMode silences Gin's debug output outside development.
func SetGinMode(env string) {
	switch env {
	case "production", "staging":
		gin.SetMode(gin.ReleaseMode)
	}
}
