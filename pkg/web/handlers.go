// Package web provides HTTP handlers and REST API endpoints for mirror workflow management.
package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/dukex/chanmirror/pkg/models"
	"github.com/dukex/chanmirror/pkg/services"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

type APIHandlers struct {
	workflowService *services.Workflow
	channelService  *services.Channel
	runService      *services.Run
	validator       *validator.Validate
}

func NewAPIHandlers(
	workflowService *services.Workflow,
	channelService *services.Channel,
	runService *services.Run,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		workflowService: workflowService,
		channelService:  channelService,
		runService:      runService,
		validator:       validator,
	}
}

// Register mounts the workflow routes on router.
func (h *APIHandlers) Register(router fiber.Router) {
	w := router.Group("/workflows")
	w.Get("/", h.GetWorkflows)
	w.Post("/", h.CreateWorkflow)
	w.Get("/:id", h.GetWorkflow)
	w.Patch("/:id", h.UpdateWorkflow)
	w.Delete("/:id", h.DeleteWorkflow)
	w.Post("/:id/run", h.RunWorkflow)

	w.Get("/:id/channels", h.GetChannels)
	w.Post("/:id/channels", h.BindChannel)
	w.Delete("/:id/channels/:channelId", h.UnbindChannel)
	w.Get("/:id/channels/:channelId/mappings", h.GetMappings)
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	req, err := parseListWorkflowsRequest(c)
	if err != nil {
		return badRequest(c, "Invalid query parameters: "+err.Error())
	}

	result, err := h.workflowService.ListWorkflows(c.Context(), *req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"workflows":     result.Workflows,
		"total_count":   result.TotalCount,
		"has_next_page": result.HasNextPage,
		"pagination": fiber.Map{
			"limit":  req.Limit,
			"offset": req.Offset,
		},
		"sorting": fiber.Map{
			"sort_by":    req.SortBy,
			"sort_order": req.SortOrder,
		},
	})
}

// parseListWorkflowsRequest parses query parameters for listing workflows.
func parseListWorkflowsRequest(c fiber.Ctx) (*services.ListWorkflowsRequest, error) {
	req := &services.ListWorkflowsRequest{}

	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			return nil, err
		}

		req.Limit = limit
	}

	if offsetStr := c.Query("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil {
			return nil, err
		}

		req.Offset = offset
	}

	req.OwnerID = c.Query("owner_id")

	if statusStr := c.Query("status"); statusStr != "" {
		status := models.WorkflowStatus(statusStr)
		req.Status = &status
	}

	req.SortBy = c.Query("sort_by")
	req.SortOrder = c.Query("sort_order")

	return req, nil
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	workflow, err := h.workflowService.FetchByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(workflow)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, ok := h.workflowService.HealthCheck(c.Context())

	status := "unhealthy"
	message := "chanmirror API is unhealthy"
	httpStatus := http.StatusServiceUnavailable

	if ok {
		status = "healthy"
		message = "chanmirror API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}

func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	var req CreateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	workflow := &models.Workflow{
		ID:           req.ID,
		Name:         req.Name,
		Type:         models.WorkflowTypeMirror,
		Status:       req.Status,
		TargetRootID: req.TargetRootID,
		Schedule:     req.Schedule,
		Owner:        req.Owner,
	}

	created, err := h.workflowService.Create(c.Context(), workflow)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) UpdateWorkflow(c fiber.Ctx) error {
	id := c.Params("id")

	var req UpdateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	existing, err := h.workflowService.FetchByID(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	if req.Name != nil {
		existing.Name = *req.Name
	}

	if req.TargetRootID != nil {
		existing.TargetRootID = *req.TargetRootID
	}

	if req.Schedule != nil {
		existing.Schedule = *req.Schedule
	}

	if req.Status != nil {
		existing.Status = *req.Status
	}

	if req.Owner != nil {
		existing.Owner = *req.Owner
	}

	updated, err := h.workflowService.Update(c.Context(), id, existing)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) DeleteWorkflow(c fiber.Ctx) error {
	err := h.workflowService.Delete(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// RunWorkflow queues a run; a worker picks it up.
func (h *APIHandlers) RunWorkflow(c fiber.Ctx) error {
	id := c.Params("id")

	requestID, err := h.runService.Request(c.Context(), id, "api")
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(RunResponse{RequestID: requestID, WorkflowID: id})
}

func (h *APIHandlers) GetChannels(c fiber.Ctx) error {
	bindings, err := h.channelService.List(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"channels": bindings})
}

func (h *APIHandlers) BindChannel(c fiber.Ctx) error {
	var req BindChannelRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	binding, err := h.channelService.Bind(c.Context(), c.Params("id"), &models.ChannelBinding{
		SourceChannelID:   req.ChannelID,
		SourceChannelName: req.ChannelName,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(binding)
}

func (h *APIHandlers) UnbindChannel(c fiber.Ctx) error {
	err := h.channelService.Unbind(c.Context(), c.Params("id"), c.Params("channelId"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// GetMappings lists the ledger of a channel; ?since=<ts> narrows the window.
func (h *APIHandlers) GetMappings(c fiber.Ctx) error {
	since := 0.0

	if sinceStr := c.Query("since"); sinceStr != "" {
		ts, err := models.ParseTS(sinceStr)
		if err != nil {
			return badRequest(c, "Invalid since parameter: "+err.Error())
		}

		since = ts
	}

	mappings, err := h.channelService.Mappings(c.Context(), c.Params("id"), c.Params("channelId"), since)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"mappings": mappings})
}
