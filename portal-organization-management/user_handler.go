package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"portal/lib/api"
	"portal/lib/auth"
	"portal/lib/models"
	"strconv"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

func (h *Handler) handleUserRoutes(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	method := request.HTTPMethod
	pathParams := request.PathParameters

	switch {
	case method == http.MethodPost && request.Resource == "/users":
		return h.createUser(ctx, request)
	case method == http.MethodGet && request.Resource == "/users/{id}":
		return h.getUserByID(ctx, request, pathParams["id"])
	case method == http.MethodPut && request.Resource == "/users/{id}":
		return h.updateUser(ctx, request, pathParams["id"])
	case method == http.MethodPut && request.Resource == "/users/{id}/status":
		return h.updateUserStatus(ctx, request, pathParams["id"])
	default:
		return api.ErrorResponse(http.StatusMethodNotAllowed, "Method not allowed", h.Logger), nil
	}
}

// createUser invites a new user: Cognito account first, database row second.
// The Cognito account is removed again when the database insert fails.
func (h *Handler) createUser(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	claims, err := auth.ExtractClaimsFromRequest(request)
	if err != nil {
		h.Logger.WithError(err).Error("Failed to extract JWT claims")
		return api.ErrorResponse(http.StatusUnauthorized, "Unauthorized", h.Logger), nil
	}

	if !claims.IsAdmin() {
		h.Logger.WithField("user_id", claims.UserID).Warn("Non-admin attempted to create user")
		return api.ErrorResponse(http.StatusForbidden, "Admin access required", h.Logger), nil
	}

	var createRequest models.CreateUserRequest
	if err := api.ParseJSONBody(request.Body, &createRequest); err != nil {
		h.Logger.WithError(err).Error("Failed to parse create user request")
		return api.ErrorResponse(http.StatusBadRequest, "Invalid request body", h.Logger), nil
	}

	if createRequest.Email == "" || createRequest.FirstName == "" || createRequest.LastName == "" {
		return api.ErrorResponse(http.StatusBadRequest, "Email, first name, and last name are required", h.Logger), nil
	}

	switch createRequest.Role {
	case models.RoleAdmin, models.RoleStaff:
		// Firm side: no organization required.
	case models.RoleClient:
		if createRequest.OrgID == 0 {
			return api.ErrorResponse(http.StatusBadRequest, "Client users require an organization", h.Logger), nil
		}
	default:
		return api.ErrorResponse(http.StatusBadRequest, "Invalid role", h.Logger), nil
	}

	// Create user in Cognito first
	cognitoID, err := h.createCognitoUser(ctx, createRequest.Email, createRequest.FirstName, createRequest.LastName)
	if err != nil {
		h.Logger.WithError(err).Error("Failed to create user in Cognito")
		return api.ErrorResponse(http.StatusInternalServerError, "Failed to create user account", h.Logger), nil
	}

	user := &models.User{
		CognitoID: cognitoID,
		Email:     createRequest.Email,
		FirstName: createRequest.FirstName,
		LastName:  createRequest.LastName,
		Role:      createRequest.Role,
		Status:    models.UserStatusPending,
	}
	if createRequest.OrgID != 0 {
		user.OrgID = sql.NullInt64{Int64: createRequest.OrgID, Valid: true}
	}

	createdUser, err := h.Users.CreateUser(ctx, user)
	if err != nil {
		// If database creation fails, clean up Cognito user
		h.deleteCognitoUser(ctx, cognitoID)
		h.Logger.WithError(err).Error("Failed to create user in database")
		return api.ErrorResponse(http.StatusInternalServerError, "Failed to create user", h.Logger), nil
	}

	h.Logger.WithFields(logrus.Fields{
		"user_id": createdUser.UserID,
		"email":   createdUser.Email,
		"role":    createdUser.Role,
	}).Info("Successfully created user")

	return api.SuccessResponse(http.StatusCreated, models.CreateUserResponse{
		User:    *createdUser,
		Message: "User invited successfully. A temporary password was sent via email.",
	}, h.Logger), nil
}

func (h *Handler) getUserByID(ctx context.Context, request events.APIGatewayProxyRequest, userIDStr string) (events.APIGatewayProxyResponse, error) {
	claims, err := auth.ExtractClaimsFromRequest(request)
	if err != nil {
		return api.ErrorResponse(http.StatusUnauthorized, "Unauthorized", h.Logger), nil
	}

	userID, err := strconv.ParseInt(userIDStr, 10, 64)
	if err != nil {
		return api.ErrorResponse(http.StatusBadRequest, "Invalid user ID", h.Logger), nil
	}

	// Clients may only read their own record
	if !claims.IsStaffOrAdmin() && claims.UserID != userID {
		return api.ErrorResponse(http.StatusForbidden, "Access denied", h.Logger), nil
	}

	user, err := h.Users.GetUser(ctx, userID)
	if err != nil {
		if isNotFound(err) {
			return api.ErrorResponse(http.StatusNotFound, "User not found", h.Logger), nil
		}
		h.Logger.WithError(err).Error("Failed to get user")
		return api.ErrorResponse(http.StatusInternalServerError, "Failed to retrieve user", h.Logger), nil
	}

	return api.SuccessResponse(http.StatusOK, user, h.Logger), nil
}

func (h *Handler) updateUser(ctx context.Context, request events.APIGatewayProxyRequest, userIDStr string) (events.APIGatewayProxyResponse, error) {
	claims, err := auth.ExtractClaimsFromRequest(request)
	if err != nil {
		return api.ErrorResponse(http.StatusUnauthorized, "Unauthorized", h.Logger), nil
	}

	userID, err := strconv.ParseInt(userIDStr, 10, 64)
	if err != nil {
		return api.ErrorResponse(http.StatusBadRequest, "Invalid user ID", h.Logger), nil
	}

	// Users edit their own profile; staff and admins edit anyone.
	if !claims.IsStaffOrAdmin() && claims.UserID != userID {
		return api.ErrorResponse(http.StatusForbidden, "Access denied", h.Logger), nil
	}

	var updateRequest models.UpdateUserRequest
	if err := api.ParseJSONBody(request.Body, &updateRequest); err != nil {
		h.Logger.WithError(err).Error("Failed to parse update user request")
		return api.ErrorResponse(http.StatusBadRequest, "Invalid request body", h.Logger), nil
	}

	user, err := h.Users.GetUser(ctx, userID)
	if err != nil {
		if isNotFound(err) {
			return api.ErrorResponse(http.StatusNotFound, "User not found", h.Logger), nil
		}
		h.Logger.WithError(err).Error("Failed to load user for update")
		return api.ErrorResponse(http.StatusInternalServerError, "Failed to update user", h.Logger), nil
	}

	if updateRequest.FirstName != "" {
		user.FirstName = updateRequest.FirstName
	}
	if updateRequest.LastName != "" {
		user.LastName = updateRequest.LastName
	}
	if updateRequest.OrgID != 0 {
		if !claims.IsAdmin() {
			return api.ErrorResponse(http.StatusForbidden, "Only admins can reassign organizations", h.Logger), nil
		}
		user.OrgID = sql.NullInt64{Int64: updateRequest.OrgID, Valid: true}
	}
	if updateRequest.OnboardingComplete != nil {
		user.OnboardingComplete = *updateRequest.OnboardingComplete
	}

	updatedUser, err := h.Users.UpdateUser(ctx, user)
	if err != nil {
		h.Logger.WithError(err).Error("Failed to update user")
		return api.ErrorResponse(http.StatusInternalServerError, "Failed to update user", h.Logger), nil
	}

	return api.SuccessResponse(http.StatusOK, updatedUser, h.Logger), nil
}

func (h *Handler) updateUserStatus(ctx context.Context, request events.APIGatewayProxyRequest, userIDStr string) (events.APIGatewayProxyResponse, error) {
	claims, err := auth.ExtractClaimsFromRequest(request)
	if err != nil {
		return api.ErrorResponse(http.StatusUnauthorized, "Unauthorized", h.Logger), nil
	}

	if !claims.IsAdmin() {
		return api.ErrorResponse(http.StatusForbidden, "Admin access required", h.Logger), nil
	}

	userID, err := strconv.ParseInt(userIDStr, 10, 64)
	if err != nil {
		return api.ErrorResponse(http.StatusBadRequest, "Invalid user ID", h.Logger), nil
	}

	var statusRequest models.UpdateUserRequest
	if err := api.ParseJSONBody(request.Body, &statusRequest); err != nil {
		return api.ErrorResponse(http.StatusBadRequest, "Invalid request body", h.Logger), nil
	}
	if statusRequest.Status == "" {
		return api.ErrorResponse(http.StatusBadRequest, "Status is required", h.Logger), nil
	}

	if err := h.Users.UpdateUserStatus(ctx, userID, statusRequest.Status); err != nil {
		if isNotFound(err) {
			return api.ErrorResponse(http.StatusNotFound, "User not found", h.Logger), nil
		}
		h.Logger.WithError(err).Error("Failed to update user status")
		return api.ErrorResponse(http.StatusInternalServerError, "Failed to update user status", h.Logger), nil
	}

	return api.SuccessResponse(http.StatusOK, map[string]string{"status": statusRequest.Status}, h.Logger), nil
}

// createCognitoUser provisions the Cognito account and returns its sub.
// Cognito generates and emails the temporary password.
func (h *Handler) createCognitoUser(ctx context.Context, email, firstName, lastName string) (string, error) {
	input := &cognitoidentityprovider.AdminCreateUserInput{
		UserPoolId:        aws.String(h.UserPoolID),
		Username:          aws.String(email),
		TemporaryPassword: aws.String(generateTempPassword()),
		MessageAction:     types.MessageActionType("SEND"),
		UserAttributes: []types.AttributeType{
			{
				Name:  aws.String("email"),
				Value: aws.String(email),
			},
			{
				Name:  aws.String("given_name"),
				Value: aws.String(firstName),
			},
			{
				Name:  aws.String("family_name"),
				Value: aws.String(lastName),
			},
			{
				Name:  aws.String("email_verified"),
				Value: aws.String("true"),
			},
		},
	}

	result, err := h.CognitoClient.AdminCreateUser(ctx, input)
	if err != nil {
		return "", fmt.Errorf("failed to create user in Cognito: %w", err)
	}

	var cognitoID string
	for _, attr := range result.User.Attributes {
		if *attr.Name == "sub" {
			cognitoID = *attr.Value
			break
		}
	}
	if cognitoID == "" {
		return "", fmt.Errorf("failed to get Cognito user ID from response")
	}

	return cognitoID, nil
}

func (h *Handler) deleteCognitoUser(ctx context.Context, cognitoID string) {
	_, err := h.CognitoClient.AdminDeleteUser(ctx, &cognitoidentityprovider.AdminDeleteUserInput{
		UserPoolId: aws.String(h.UserPoolID),
		Username:   aws.String(cognitoID),
	})
	if err != nil {
		h.Logger.WithError(err).WithField("cognito_id", cognitoID).Error("Failed to clean up Cognito user")
	}
}

// generateTempPassword builds a one-time password satisfying the pool policy.
// Cognito forces a change on first sign-in.
func generateTempPassword() string {
	return "Tp1!" + uuid.New().String()[:12]
}

func isNotFound(err error) bool {
	return err != nil && strings.Contains(err.Error(), "not found")
}
