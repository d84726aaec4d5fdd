package handlers

import (
	"github.com/gin-gonic/gin"

	"taskhub/hierarchy"
	"taskhub/middleware"
	"taskhub/tasks"
)

type Deps struct {
	Projects  *hierarchy.Service
	Tasks     *tasks.Service
	Store     Pinger
	JWTSecret []byte
}

// RegisterRoutes mounts /health unauthenticated and everything else behind
// bearer auth.
func RegisterRoutes(r gin.IRouter, d Deps) {
	r.GET("/health", HealthCheck(d.Store))

	api := r.Group("/", middleware.AuthRequired(d.JWTSecret))

	api.POST("/projects", CreateProject(d.Projects))
	api.GET("/projects", ListProjects(d.Projects))
	api.POST("/projects/repair", RepairProjects(d.Projects))
	api.GET("/projects/:id", GetProject(d.Projects))
	api.PATCH("/projects/:id", UpdateProject(d.Projects))
	api.DELETE("/projects/:id", DeleteProject(d.Projects))

	api.POST("/tasks", CreateTask(d.Tasks))
	api.GET("/tasks", ListTasks(d.Tasks))
	api.GET("/tasks/:id", GetTask(d.Tasks))
	api.PATCH("/tasks/:id", UpdateTask(d.Tasks))
	api.DELETE("/tasks/:id", DeleteTask(d.Tasks))
}
