package main

import (
	"context"
	"database/sql"
	"net/http"
	"portal/lib/api"
	"portal/lib/auth"
	"portal/lib/models"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/sirupsen/logrus"
)

const dueDateLayout = "2006-01-02"

// createTask handles POST /tasks
func (h *Handler) createTask(ctx context.Context, claims *auth.Claims, body string) events.APIGatewayProxyResponse {
	if !claims.IsStaffOrAdmin() {
		return api.ErrorResponse(http.StatusForbidden, "Staff access required", h.Logger)
	}

	var createReq models.CreateTaskRequest
	if err := api.ParseJSONBody(body, &createReq); err != nil {
		h.Logger.WithError(err).Error("Failed to parse create task request")
		return api.ErrorResponse(http.StatusBadRequest, "Invalid request body", h.Logger)
	}
	if createReq.OrgID == 0 || createReq.AssigneeID == 0 || createReq.Title == "" {
		return api.ErrorResponse(http.StatusBadRequest, "Organization, assignee, and title are required", h.Logger)
	}

	task := &models.Task{
		OrgID:      createReq.OrgID,
		AssigneeID: createReq.AssigneeID,
		CreatedBy:  claims.UserID,
		Title:      createReq.Title,
		Status:     models.TaskStatusPending,
		Priority:   createReq.Priority,
	}
	if task.Priority == "" {
		task.Priority = models.TaskPriorityMedium
	}
	if createReq.Description != "" {
		task.Description = sql.NullString{String: createReq.Description, Valid: true}
	}
	if createReq.DueDate != "" {
		dueDate, err := time.Parse(dueDateLayout, createReq.DueDate)
		if err != nil {
			return api.ErrorResponse(http.StatusBadRequest, "Invalid due date, expected YYYY-MM-DD", h.Logger)
		}
		task.DueDate = &dueDate
	}

	created, err := h.Tasks.CreateTask(ctx, task)
	if err != nil {
		h.Logger.WithError(err).Error("Failed to create task")
		return api.ErrorResponse(http.StatusInternalServerError, "Failed to create task", h.Logger)
	}

	h.recordActivity(ctx, created.OrgID, claims.UserID, "task.created", "task", created.ID, created.Title)

	if assignee, err := h.Users.GetUser(ctx, created.AssigneeID); err == nil && assignee.IsActive() {
		h.Dispatcher.SendTaskAssignedEmail(ctx, assignee, created.ID, created.Title, created.Priority, created.DueDate)
	}

	return api.SuccessResponse(http.StatusCreated, created, h.Logger)
}

// listTasks handles GET /tasks. Clients see their own tasks; staff filter by
// organization and optional status/priority/assignee.
func (h *Handler) listTasks(ctx context.Context, claims *auth.Claims, query map[string]string) events.APIGatewayProxyResponse {
	if !claims.IsStaffOrAdmin() {
		tasks, err := h.Tasks.GetTasksByAssignee(ctx, claims.UserID)
		if err != nil {
			h.Logger.WithError(err).Error("Failed to list tasks by assignee")
			return api.ErrorResponse(http.StatusInternalServerError, "Failed to list tasks", h.Logger)
		}
		return api.SuccessResponse(http.StatusOK, models.TaskListResponse{Tasks: tasks, Total: len(tasks)}, h.Logger)
	}

	raw, ok := query["org_id"]
	if !ok || raw == "" {
		return api.ErrorResponse(http.StatusBadRequest, "org_id query parameter is required", h.Logger)
	}
	orgID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return api.ErrorResponse(http.StatusBadRequest, "Invalid organization ID", h.Logger)
	}

	filters := map[string]string{}
	for _, key := range []string{"status", "priority", "assignee_id"} {
		if v, ok := query[key]; ok && v != "" {
			filters[key] = v
		}
	}

	tasks, err := h.Tasks.GetTasksByOrg(ctx, orgID, filters)
	if err != nil {
		h.Logger.WithError(err).Error("Failed to list tasks")
		return api.ErrorResponse(http.StatusInternalServerError, "Failed to list tasks", h.Logger)
	}

	return api.SuccessResponse(http.StatusOK, models.TaskListResponse{Tasks: tasks, Total: len(tasks)}, h.Logger)
}

// getTask handles GET /tasks/{id}
func (h *Handler) getTask(ctx context.Context, claims *auth.Claims, idStr string) events.APIGatewayProxyResponse {
	task, resp := h.loadTask(ctx, claims, idStr)
	if task == nil {
		return resp
	}
	return api.SuccessResponse(http.StatusOK, task, h.Logger)
}

// updateTask handles PUT /tasks/{id}
func (h *Handler) updateTask(ctx context.Context, claims *auth.Claims, idStr, body string) events.APIGatewayProxyResponse {
	if !claims.IsStaffOrAdmin() {
		return api.ErrorResponse(http.StatusForbidden, "Staff access required", h.Logger)
	}

	task, resp := h.loadTask(ctx, claims, idStr)
	if task == nil {
		return resp
	}

	var updateReq models.UpdateTaskRequest
	if err := api.ParseJSONBody(body, &updateReq); err != nil {
		return api.ErrorResponse(http.StatusBadRequest, "Invalid request body", h.Logger)
	}

	reassigned := false
	if updateReq.Title != "" {
		task.Title = updateReq.Title
	}
	if updateReq.Description != "" {
		task.Description = sql.NullString{String: updateReq.Description, Valid: true}
	}
	if updateReq.Priority != "" {
		task.Priority = updateReq.Priority
	}
	if updateReq.AssigneeID != 0 && updateReq.AssigneeID != task.AssigneeID {
		task.AssigneeID = updateReq.AssigneeID
		reassigned = true
	}
	if updateReq.DueDate != "" {
		dueDate, err := time.Parse(dueDateLayout, updateReq.DueDate)
		if err != nil {
			return api.ErrorResponse(http.StatusBadRequest, "Invalid due date, expected YYYY-MM-DD", h.Logger)
		}
		task.DueDate = &dueDate
	}

	updated, err := h.Tasks.UpdateTask(ctx, task)
	if err != nil {
		h.Logger.WithError(err).Error("Failed to update task")
		return api.ErrorResponse(http.StatusInternalServerError, "Failed to update task", h.Logger)
	}

	if reassigned {
		if assignee, err := h.Users.GetUser(ctx, updated.AssigneeID); err == nil && assignee.IsActive() {
			h.Dispatcher.SendTaskAssignedEmail(ctx, assignee, updated.ID, updated.Title, updated.Priority, updated.DueDate)
		}
	}

	return api.SuccessResponse(http.StatusOK, updated, h.Logger)
}

// updateTaskStatus handles PUT /tasks/{id}/status. Assignees move their own
// tasks; staff move any.
func (h *Handler) updateTaskStatus(ctx context.Context, claims *auth.Claims, idStr, body string) events.APIGatewayProxyResponse {
	task, resp := h.loadTask(ctx, claims, idStr)
	if task == nil {
		return resp
	}

	if !claims.IsStaffOrAdmin() && task.AssigneeID != claims.UserID {
		return api.ErrorResponse(http.StatusForbidden, "Access denied", h.Logger)
	}

	var statusReq models.UpdateTaskStatusRequest
	if err := api.ParseJSONBody(body, &statusReq); err != nil || statusReq.Status == "" {
		return api.ErrorResponse(http.StatusBadRequest, "Status is required", h.Logger)
	}

	switch statusReq.Status {
	case models.TaskStatusPending, models.TaskStatusInProgress, models.TaskStatusCompleted, models.TaskStatusCancelled:
	default:
		return api.ErrorResponse(http.StatusBadRequest, "Invalid status", h.Logger)
	}

	updated, err := h.Tasks.UpdateTaskStatus(ctx, task.ID, statusReq.Status)
	if err != nil {
		h.Logger.WithError(err).Error("Failed to update task status")
		return api.ErrorResponse(http.StatusInternalServerError, "Failed to update task status", h.Logger)
	}

	h.recordActivity(ctx, task.OrgID, claims.UserID, "task."+statusReq.Status, "task", task.ID, "")

	return api.SuccessResponse(http.StatusOK, updated, h.Logger)
}

// createComment handles POST /tasks/{id}/comments
func (h *Handler) createComment(ctx context.Context, claims *auth.Claims, idStr, body string) events.APIGatewayProxyResponse {
	task, resp := h.loadTask(ctx, claims, idStr)
	if task == nil {
		return resp
	}

	var commentReq models.CreateTaskCommentRequest
	if err := api.ParseJSONBody(body, &commentReq); err != nil || commentReq.Content == "" {
		return api.ErrorResponse(http.StatusBadRequest, "Comment content is required", h.Logger)
	}

	comment, err := h.Tasks.CreateComment(ctx, &models.TaskComment{
		TaskID:   task.ID,
		AuthorID: claims.UserID,
		Content:  commentReq.Content,
	})
	if err != nil {
		h.Logger.WithError(err).Error("Failed to create comment")
		return api.ErrorResponse(http.StatusInternalServerError, "Failed to create comment", h.Logger)
	}

	h.notifyCommentCounterpart(ctx, claims, task, commentReq.Content)

	return api.SuccessResponse(http.StatusCreated, comment, h.Logger)
}

// notifyCommentCounterpart emails the other side of the conversation: the
// assignee when staff comment, the task creator when the assignee comments.
func (h *Handler) notifyCommentCounterpart(ctx context.Context, claims *auth.Claims, task *models.Task, content string) {
	recipientID := task.AssigneeID
	if claims.UserID == task.AssigneeID {
		recipientID = task.CreatedBy
	}
	if recipientID == claims.UserID {
		return
	}

	recipient, err := h.Users.GetUser(ctx, recipientID)
	if err != nil || !recipient.IsActive() {
		return
	}

	author, err := h.Users.GetUser(ctx, claims.UserID)
	authorName := claims.Email
	if err == nil {
		authorName = author.GetFullName()
	}

	h.Dispatcher.SendTaskCommentEmail(ctx, recipient, task.ID, task.Title, authorName, content)
}

// listComments handles GET /tasks/{id}/comments
func (h *Handler) listComments(ctx context.Context, claims *auth.Claims, idStr string) events.APIGatewayProxyResponse {
	task, resp := h.loadTask(ctx, claims, idStr)
	if task == nil {
		return resp
	}

	comments, err := h.Tasks.GetComments(ctx, task.ID)
	if err != nil {
		h.Logger.WithError(err).Error("Failed to list comments")
		return api.ErrorResponse(http.StatusInternalServerError, "Failed to list comments", h.Logger)
	}

	return api.SuccessResponse(http.StatusOK, models.TaskCommentListResponse{Comments: comments, Total: len(comments)}, h.Logger)
}

// editComment handles PUT /tasks/{id}/comments/{commentId}. Only the author
// may edit, enforced in the repository.
func (h *Handler) editComment(ctx context.Context, claims *auth.Claims, commentIDStr, body string) events.APIGatewayProxyResponse {
	commentID, err := strconv.ParseInt(commentIDStr, 10, 64)
	if err != nil {
		return api.ErrorResponse(http.StatusBadRequest, "Invalid comment ID", h.Logger)
	}

	var commentReq models.CreateTaskCommentRequest
	if err := api.ParseJSONBody(body, &commentReq); err != nil || commentReq.Content == "" {
		return api.ErrorResponse(http.StatusBadRequest, "Comment content is required", h.Logger)
	}

	updated, err := h.Tasks.EditComment(ctx, commentID, claims.UserID, commentReq.Content)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			return api.ErrorResponse(http.StatusNotFound, "Comment not found or not yours to edit", h.Logger)
		}
		h.Logger.WithError(err).Error("Failed to edit comment")
		return api.ErrorResponse(http.StatusInternalServerError, "Failed to edit comment", h.Logger)
	}

	return api.SuccessResponse(http.StatusOK, updated, h.Logger)
}

// loadTask resolves the path ID and enforces scoping: staff see everything,
// clients only tasks in their organization.
func (h *Handler) loadTask(ctx context.Context, claims *auth.Claims, idStr string) (*models.Task, events.APIGatewayProxyResponse) {
	taskID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return nil, api.ErrorResponse(http.StatusBadRequest, "Invalid task ID", h.Logger)
	}

	task, err := h.Tasks.GetTask(ctx, taskID)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			return nil, api.ErrorResponse(http.StatusNotFound, "Task not found", h.Logger)
		}
		h.Logger.WithError(err).Error("Failed to get task")
		return nil, api.ErrorResponse(http.StatusInternalServerError, "Failed to retrieve task", h.Logger)
	}

	if !claims.CanAccessOrg(task.OrgID) {
		h.Logger.WithFields(logrus.Fields{"user_id": claims.UserID, "org_id": task.OrgID}).Warn("Cross-organization task access denied")
		return nil, api.ErrorResponse(http.StatusForbidden, "Access denied", h.Logger)
	}

	return task, events.APIGatewayProxyResponse{}
}

func (h *Handler) recordActivity(ctx context.Context, orgID, actorID int64, action, entityType string, entityID int64, detail string) {
	entry := &models.ActivityEntry{
		OrgID:      orgID,
		ActorID:    actorID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
	}
	if detail != "" {
		entry.Detail = sql.NullString{String: detail, Valid: true}
	}
	if err := h.Activity.RecordActivity(ctx, entry); err != nil {
		h.Logger.WithError(err).WithField("action", action).Error("Failed to record activity")
	}
}
