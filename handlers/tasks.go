package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"taskhub/models"
	"taskhub/tasks"
)

func CreateTask(svc *tasks.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		ownerID, ok := owner(c)
		if !ok {
			return
		}

		var req models.CreateTaskRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		task, err := svc.Create(c.Request.Context(), ownerID, req)
		if err != nil {
			respondError(c, "create task", err)
			return
		}

		c.JSON(http.StatusCreated, task)
	}
}

// ListTasks supports ?completed=, ?project=, ?sortBy=field:asc|desc,
// ?limit= and ?skip=.
func ListTasks(svc *tasks.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		ownerID, ok := owner(c)
		if !ok {
			return
		}

		var q models.TaskQuery
		if err := c.ShouldBindQuery(&q); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if raw := c.Query("project"); raw != "" {
			project, err := uuid.Parse(raw)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid project ID"})
				return
			}
			q.Project = &project
		}

		list, err := svc.List(c.Request.Context(), ownerID, q)
		if err != nil {
			respondError(c, "list tasks", err)
			return
		}

		c.JSON(http.StatusOK, models.TasksResponse{
			Tasks: list,
			Total: len(list),
		})
	}
}

func GetTask(svc *tasks.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		ownerID, ok := owner(c)
		if !ok {
			return
		}
		taskID, ok := parseID(c, "task")
		if !ok {
			return
		}

		task, err := svc.Get(c.Request.Context(), ownerID, taskID)
		if err != nil {
			respondError(c, "get task", err)
			return
		}

		c.JSON(http.StatusOK, task)
	}
}

func UpdateTask(svc *tasks.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		ownerID, ok := owner(c)
		if !ok {
			return
		}
		taskID, ok := parseID(c, "task")
		if !ok {
			return
		}

		body, err := c.GetRawData()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
			return
		}
		patch, err := models.DecodeTaskPatch(body)
		if err != nil {
			respondError(c, "update task", err)
			return
		}

		task, err := svc.Update(c.Request.Context(), ownerID, taskID, patch)
		if err != nil {
			respondError(c, "update task", err)
			return
		}

		c.JSON(http.StatusOK, task)
	}
}

func DeleteTask(svc *tasks.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		ownerID, ok := owner(c)
		if !ok {
			return
		}
		taskID, ok := parseID(c, "task")
		if !ok {
			return
		}

		task, err := svc.Delete(c.Request.Context(), ownerID, taskID)
		if err != nil {
			respondError(c, "delete task", err)
			return
		}

		c.JSON(http.StatusOK, task)
	}
}
