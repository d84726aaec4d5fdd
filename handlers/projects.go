package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"taskhub/hierarchy"
	"taskhub/logging"
	"taskhub/models"
)

func CreateProject(svc *hierarchy.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		ownerID, ok := owner(c)
		if !ok {
			return
		}

		var req models.CreateProjectRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			logging.Logger.Debugf("Bind error: %v", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		project, err := svc.CreateProject(c.Request.Context(), ownerID, req)
		if err != nil {
			respondError(c, "create project", err)
			return
		}

		c.JSON(http.StatusCreated, project)
	}
}

// ListProjects returns the caller's top-level projects.
func ListProjects(svc *hierarchy.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		ownerID, ok := owner(c)
		if !ok {
			return
		}

		projects, err := svc.ListProjects(c.Request.Context(), ownerID)
		if err != nil {
			respondError(c, "list projects", err)
			return
		}

		c.JSON(http.StatusOK, models.ProjectsResponse{
			Projects: projects,
			Total:    len(projects),
		})
	}
}

func GetProject(svc *hierarchy.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		ownerID, ok := owner(c)
		if !ok {
			return
		}
		projectID, ok := parseID(c, "project")
		if !ok {
			return
		}

		detail, err := svc.GetProject(c.Request.Context(), ownerID, projectID)
		if err != nil {
			respondError(c, "get project", err)
			return
		}

		c.JSON(http.StatusOK, detail)
	}
}

func UpdateProject(svc *hierarchy.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		ownerID, ok := owner(c)
		if !ok {
			return
		}
		projectID, ok := parseID(c, "project")
		if !ok {
			return
		}

		body, err := c.GetRawData()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
			return
		}
		patch, err := models.DecodeProjectPatch(body)
		if err != nil {
			respondError(c, "update project", err)
			return
		}

		project, err := svc.UpdateProject(c.Request.Context(), ownerID, projectID, patch)
		if err != nil {
			respondError(c, "update project", err)
			return
		}

		c.JSON(http.StatusOK, project)
	}
}

// DeleteProject removes the project with its whole subtree and answers with
// the project as it was.
func DeleteProject(svc *hierarchy.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		ownerID, ok := owner(c)
		if !ok {
			return
		}
		projectID, ok := parseID(c, "project")
		if !ok {
			return
		}

		project, err := svc.DeleteProject(c.Request.Context(), ownerID, projectID)
		if err != nil {
			respondError(c, "delete project", err)
			return
		}

		c.JSON(http.StatusOK, project)
	}
}

func RepairProjects(svc *hierarchy.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		ownerID, ok := owner(c)
		if !ok {
			return
		}

		report, err := svc.Repair(c.Request.Context(), ownerID)
		if err != nil {
			respondError(c, "repair projects", err)
			return
		}

		logging.Logger.WithFields(logrus.Fields{
			"owner": ownerID,
			"clean": report.Clean(),
		}).Info("Repaired project hierarchy")
		c.JSON(http.StatusOK, report)
	}
}
