package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"portal/lib/api"
	"portal/lib/auth"
	"portal/lib/clients"
	"portal/lib/constants"
	"portal/lib/data"
	"portal/lib/models"
	"portal/lib/util"
	"strconv"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/sirupsen/logrus"
)

// Handler struct contains all dependencies for the Lambda function
type Handler struct {
	DB            *sql.DB
	Logger        *logrus.Logger
	CognitoClient *cognitoidentityprovider.Client
	UserPoolID    string
	Users         data.UserRepository
}

// Global variables for Lambda cold start optimization
// These are initialized once during Lambda cold start and reused across invocations
var (
	logger             *logrus.Logger
	isLocal            bool
	ssmRepository      data.SSMRepository
	ssmParams          map[string]string
	sqlDB              *sql.DB
	orgRepository      data.OrgRepository
	activityRepository data.ActivityRepository
	handler            *Handler
)

func LambdaHandler(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	logger.WithFields(logrus.Fields{
		"operation": "LambdaHandler",
		"method":    request.HTTPMethod,
		"path":      request.Path,
		"resource":  request.Resource,
	}).Info("Organization management request received")

	// User administration lives in user_handler.go
	if strings.HasPrefix(request.Path, "/users") || strings.HasPrefix(request.Resource, "/users") {
		return handler.handleUserRoutes(ctx, request)
	}

	// Extract claims from JWT token via API Gateway authorizer
	claims, err := auth.ExtractClaimsFromRequest(request)
	if err != nil {
		logger.WithError(err).Error("Authentication failed")
		return api.ErrorResponse(http.StatusUnauthorized, "Authentication failed", logger), nil
	}

	pathSegments := strings.Split(strings.Trim(request.Path, "/"), "/")

	switch request.HTTPMethod {
	case http.MethodPost:
		// POST /organizations - Create new organization
		if !claims.IsStaffOrAdmin() {
			return api.ErrorResponse(http.StatusForbidden, "Staff access required", logger), nil
		}
		return handleCreateOrganization(ctx, claims, request.Body), nil

	case http.MethodGet:
		if len(pathSegments) >= 3 && pathSegments[2] == "users" {
			// GET /organizations/{id}/users - List users of an organization
			return handleListOrgUsers(ctx, claims, pathSegments[1]), nil
		}
		if len(pathSegments) >= 3 && pathSegments[2] == "activity" {
			// GET /organizations/{id}/activity - Organization activity log
			return handleGetActivity(ctx, claims, pathSegments[1], request.QueryStringParameters), nil
		}
		if len(pathSegments) >= 2 && pathSegments[1] != "" {
			// GET /organizations/{id} - Get specific organization
			return handleGetOrganization(ctx, claims, pathSegments[1]), nil
		}
		// GET /organizations - List organizations (firm side only)
		if !claims.IsStaffOrAdmin() {
			return api.ErrorResponse(http.StatusForbidden, "Staff access required", logger), nil
		}
		return handleListOrganizations(ctx), nil

	case http.MethodPut:
		// PUT /organizations/{id} - Update organization
		if len(pathSegments) < 2 || pathSegments[1] == "" {
			return api.ErrorResponse(http.StatusBadRequest, "Organization ID required for update", logger), nil
		}
		if !claims.IsStaffOrAdmin() {
			return api.ErrorResponse(http.StatusForbidden, "Staff access required", logger), nil
		}
		return handleUpdateOrganization(ctx, claims, pathSegments[1], request.Body), nil

	default:
		return api.ErrorResponse(http.StatusMethodNotAllowed, "Method not allowed", logger), nil
	}
}

// handleCreateOrganization handles POST /organizations
func handleCreateOrganization(ctx context.Context, claims *auth.Claims, body string) events.APIGatewayProxyResponse {
	var createReq models.CreateOrganizationRequest
	if err := api.ParseJSONBody(body, &createReq); err != nil {
		logger.WithError(err).Error("Failed to parse create organization request")
		return api.ErrorResponse(http.StatusBadRequest, "Invalid request body", logger)
	}

	if createReq.Name == "" || createReq.ContactEmail == "" {
		return api.ErrorResponse(http.StatusBadRequest, "Name and contact email are required", logger)
	}

	org := &models.Organization{
		Name:         createReq.Name,
		ContactEmail: createReq.ContactEmail,
		Status:       models.OrgStatusActive,
		CreatedBy:    claims.UserID,
		UpdatedBy:    claims.UserID,
	}
	if createReq.RegistrationNumber != "" {
		org.RegistrationNumber = sql.NullString{String: createReq.RegistrationNumber, Valid: true}
	}

	createdOrg, err := orgRepository.CreateOrganization(ctx, org)
	if err != nil {
		logger.WithError(err).Error("Failed to create organization")
		return api.ErrorResponse(http.StatusInternalServerError, "Failed to create organization", logger)
	}

	recordActivity(ctx, createdOrg.OrgID, claims.UserID, "organization.created", "organization", createdOrg.OrgID, createdOrg.Name)

	return api.SuccessResponse(http.StatusCreated, createdOrg, logger)
}

// handleGetOrganization handles GET /organizations/{id}
func handleGetOrganization(ctx context.Context, claims *auth.Claims, orgIDStr string) events.APIGatewayProxyResponse {
	orgID, err := strconv.ParseInt(orgIDStr, 10, 64)
	if err != nil {
		return api.ErrorResponse(http.StatusBadRequest, "Invalid organization ID", logger)
	}

	if !claims.CanAccessOrg(orgID) {
		logger.WithFields(logrus.Fields{"user_id": claims.UserID, "org_id": orgID}).Warn("Cross-organization access denied")
		return api.ErrorResponse(http.StatusForbidden, "Access denied", logger)
	}

	org, err := orgRepository.GetOrganization(ctx, orgID)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			return api.ErrorResponse(http.StatusNotFound, "Organization not found", logger)
		}
		logger.WithError(err).Error("Failed to get organization")
		return api.ErrorResponse(http.StatusInternalServerError, "Failed to get organization", logger)
	}

	return api.SuccessResponse(http.StatusOK, org, logger)
}

// handleListOrganizations handles GET /organizations
func handleListOrganizations(ctx context.Context) events.APIGatewayProxyResponse {
	orgs, err := orgRepository.GetOrganizations(ctx)
	if err != nil {
		logger.WithError(err).Error("Failed to list organizations")
		return api.ErrorResponse(http.StatusInternalServerError, "Failed to list organizations", logger)
	}

	return api.SuccessResponse(http.StatusOK, models.OrganizationListResponse{
		Organizations: orgs,
		Total:         len(orgs),
	}, logger)
}

// handleUpdateOrganization handles PUT /organizations/{id}
func handleUpdateOrganization(ctx context.Context, claims *auth.Claims, orgIDStr, body string) events.APIGatewayProxyResponse {
	orgID, err := strconv.ParseInt(orgIDStr, 10, 64)
	if err != nil {
		return api.ErrorResponse(http.StatusBadRequest, "Invalid organization ID", logger)
	}

	var updateReq models.UpdateOrganizationRequest
	if err := api.ParseJSONBody(body, &updateReq); err != nil {
		logger.WithError(err).Error("Failed to parse update organization request")
		return api.ErrorResponse(http.StatusBadRequest, "Invalid request body", logger)
	}

	org, err := orgRepository.GetOrganization(ctx, orgID)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			return api.ErrorResponse(http.StatusNotFound, "Organization not found", logger)
		}
		logger.WithError(err).Error("Failed to load organization for update")
		return api.ErrorResponse(http.StatusInternalServerError, "Failed to update organization", logger)
	}

	if updateReq.Name != "" {
		org.Name = updateReq.Name
	}
	if updateReq.ContactEmail != "" {
		org.ContactEmail = updateReq.ContactEmail
	}
	if updateReq.RegistrationNumber != "" {
		org.RegistrationNumber = sql.NullString{String: updateReq.RegistrationNumber, Valid: true}
	}
	if updateReq.Status != "" {
		if !claims.IsAdmin() {
			return api.ErrorResponse(http.StatusForbidden, "Only admins can change organization status", logger)
		}
		org.Status = updateReq.Status
	}
	org.UpdatedBy = claims.UserID

	updatedOrg, err := orgRepository.UpdateOrganization(ctx, org)
	if err != nil {
		logger.WithError(err).Error("Failed to update organization")
		return api.ErrorResponse(http.StatusInternalServerError, "Failed to update organization", logger)
	}

	recordActivity(ctx, orgID, claims.UserID, "organization.updated", "organization", orgID, "")

	return api.SuccessResponse(http.StatusOK, updatedOrg, logger)
}

// handleListOrgUsers handles GET /organizations/{id}/users
func handleListOrgUsers(ctx context.Context, claims *auth.Claims, orgIDStr string) events.APIGatewayProxyResponse {
	orgID, err := strconv.ParseInt(orgIDStr, 10, 64)
	if err != nil {
		return api.ErrorResponse(http.StatusBadRequest, "Invalid organization ID", logger)
	}

	if !claims.CanAccessOrg(orgID) {
		return api.ErrorResponse(http.StatusForbidden, "Access denied", logger)
	}

	users, err := handler.Users.GetUsersByOrg(ctx, orgID)
	if err != nil {
		logger.WithError(err).Error("Failed to list organization users")
		return api.ErrorResponse(http.StatusInternalServerError, "Failed to retrieve users", logger)
	}

	return api.SuccessResponse(http.StatusOK, models.UserListResponse{Users: users, Total: len(users)}, logger)
}

// handleGetActivity handles GET /organizations/{id}/activity
func handleGetActivity(ctx context.Context, claims *auth.Claims, orgIDStr string, query map[string]string) events.APIGatewayProxyResponse {
	orgID, err := strconv.ParseInt(orgIDStr, 10, 64)
	if err != nil {
		return api.ErrorResponse(http.StatusBadRequest, "Invalid organization ID", logger)
	}

	if !claims.IsStaffOrAdmin() {
		return api.ErrorResponse(http.StatusForbidden, "Staff access required", logger)
	}

	limit := 50
	if raw, ok := query["limit"]; ok {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}

	entries, err := activityRepository.GetActivityByOrg(ctx, orgID, limit)
	if err != nil {
		logger.WithError(err).Error("Failed to get activity log")
		return api.ErrorResponse(http.StatusInternalServerError, "Failed to retrieve activity", logger)
	}

	return api.SuccessResponse(http.StatusOK, models.ActivityListResponse{Entries: entries, Total: len(entries)}, logger)
}

// recordActivity appends to the organization activity log. Best-effort: a
// failed log write never fails the request.
func recordActivity(ctx context.Context, orgID, actorID int64, action, entityType string, entityID int64, detail string) {
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
	if err := activityRepository.RecordActivity(ctx, entry); err != nil {
		logger.WithError(err).WithField("action", action).Error("Failed to record activity")
	}
}

// main is the Lambda function entry point.
// It simply starts the AWS Lambda runtime with our Handler function.
func main() {
	lambda.Start(LambdaHandler)
}

func init() {
	var err error

	isLocal = parseIsLocal()

	// --- Logger Setup ---
	logger = setupLogger(isLocal)

	// Initialize AWS SSM Parameter Store client for configuration management
	ssmClient := clients.NewSSMClient(isLocal)
	ssmRepository = &data.SSMDao{
		SSM:    ssmClient,
		Logger: logger,
	}

	// Retrieve all required configuration parameters from SSM Parameter Store
	ssmParams, err = ssmRepository.GetParameters()
	if err != nil {
		logger.WithFields(logrus.Fields{
			"operation": "init",
			"error":     err.Error(),
		}).Fatal("Error while getting SSM params from parameter store")
	}

	logger.WithFields(logrus.Fields{
		"operation":    "init",
		"params_count": len(ssmParams),
	}).Debug("Retrieved SSM parameters")

	// Initialize PostgreSQL database connection using credentials from SSM
	// This establishes a connection pool that will be reused across Lambda invocations
	err = setupPostgresSQLClient(ssmParams)
	if err != nil {
		logger.WithFields(logrus.Fields{
			"operation": "init",
			"error":     err.Error(),
		}).Fatal("Error setting up PostgreSQL client")
	}

	logger.WithField("operation", "init").Info("Organization Management Lambda initialization completed successfully")
}

func parseIsLocal() bool {
	isLocal, _ := strconv.ParseBool(os.Getenv("IS_LOCAL"))
	return isLocal
}

func setupLogger(isLocal bool) *logrus.Logger {
	logger := logrus.New()
	util.SetLogLevel(logger, os.Getenv("LOG_LEVEL"))
	logger.SetFormatter(&logrus.JSONFormatter{PrettyPrint: isLocal})
	return logger
}

func setupPostgresSQLClient(ssmParams map[string]string) error {
	var err error

	sqlDB, err = clients.NewPostgresSQLClient(
		ssmParams[constants.DATABASE_RDS_ENDPOINT],
		ssmParams[constants.DATABASE_PORT],
		ssmParams[constants.DATABASE_NAME],
		ssmParams[constants.DATABASE_USERNAME],
		ssmParams[constants.DATABASE_PASSWORD],
		ssmParams[constants.SSL_MODE],
	)
	if err != nil {
		return fmt.Errorf("error creating PostgreSQL client: %w", err)
	}

	orgRepository = &data.OrgDao{DB: sqlDB, Logger: logger}
	activityRepository = &data.ActivityDao{DB: sqlDB, Logger: logger}

	// Initialize Cognito client for user invites
	cognitoClient := clients.NewCognitoIdentityProviderClient(isLocal)

	userPoolID := ssmParams[constants.COGNITO_USER_POOL_ID]
	if userPoolID == "" {
		logger.Fatal("COGNITO_USER_POOL_ID not found in SSM parameters")
	}

	handler = &Handler{
		DB:            sqlDB,
		Logger:        logger,
		CognitoClient: cognitoClient,
		UserPoolID:    userPoolID,
		Users:         &data.UserDao{DB: sqlDB, Logger: logger},
	}

	if logger.IsLevelEnabled(logrus.DebugLevel) {
		logger.WithField("operation", "setupPostgresSQLClient").Debug("PostgreSQL client initialized successfully")
	}
	return nil
}
