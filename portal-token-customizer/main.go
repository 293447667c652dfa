// Package main implements the AWS Cognito Pre-Token Generation V2.0 Lambda trigger.
//
// Every API Lambda authorizes requests off claims baked into the JWT, so this
// trigger looks the user up in the portal database and stamps user_id, org_id,
// role, and status into both the ID and Access tokens. A portal user whose
// claims are missing is treated as unauthenticated by the API layer.
//
// Error handling is deliberately soft: if the database is unavailable or the
// user row is missing, the event is returned unchanged so Cognito
// authentication itself never fails. The user gets a token without portal
// claims and the API layer rejects it with a 401.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"portal/lib/clients"
	"portal/lib/constants"
	"portal/lib/data"
	"portal/lib/util"
	"strconv"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/sirupsen/logrus"
)

// Global variables for Lambda cold start optimization
var (
	logger         *logrus.Logger
	isLocal        bool
	ssmRepository  data.SSMRepository
	userRepository data.UserRepository
	ssmParams      map[string]string
	sqlDB          *sql.DB
)

// Handler processes the Cognito Pre Token Generation V2.0 trigger event
func Handler(ctx context.Context, event events.CognitoEventUserPoolsPreTokenGenV2_0) (events.CognitoEventUserPoolsPreTokenGenV2_0, error) {
	logger.WithFields(logrus.Fields{
		"trigger_source": event.TriggerSource,
		"user_pool_id":   event.UserPoolID,
		"username":       event.UserName,
		"operation":      "Handler",
	}).Debug("Processing Cognito Pre Token Generation V2.0 event")

	if !isValidTriggerSourceV2(event.TriggerSource) {
		logger.WithFields(logrus.Fields{
			"trigger_source": event.TriggerSource,
			"operation":      "Handler",
		}).Warn("Invalid trigger source for V2.0, returning event unchanged")
		return event, nil
	}

	// In Pre Token Generation triggers event.UserName carries the user's
	// Cognito 'sub' UUID, not their email
	cognitoID := event.UserName
	if cognitoID == "" {
		logger.WithField("operation", "Handler").Error("Username (cognito_id) is empty in event")
		return event, errors.New("username cannot be empty")
	}

	user, err := userRepository.GetUserByCognitoID(ctx, cognitoID)
	if err != nil {
		logger.WithFields(logrus.Fields{
			"cognito_id": cognitoID,
			"operation":  "Handler",
			"error":      err.Error(),
		}).Error("Failed to fetch user from database, proceeding without custom claims")
		return event, nil
	}

	claimsToAdd := map[string]interface{}{
		"user_id":    strconv.FormatInt(user.UserID, 10),
		"cognito_id": user.CognitoID,
		"email":      user.Email,
		"full_name":  user.GetFullName(),
		"role":       user.Role,
		"status":     user.Status,
	}
	if user.OrgID.Valid {
		claimsToAdd["org_id"] = strconv.FormatInt(user.OrgID.Int64, 10)
	}

	event.Response.ClaimsAndScopeOverrideDetails = events.ClaimsAndScopeOverrideDetailsV2_0{
		IDTokenGeneration: events.IDTokenGenerationV2_0{
			ClaimsToAddOrOverride: claimsToAdd,
			ClaimsToSuppress:      []string{},
		},
		AccessTokenGeneration: events.AccessTokenGenerationV2_0{
			ClaimsToAddOrOverride: claimsToAdd,
			ClaimsToSuppress:      []string{},
			ScopesToAdd:           []string{},
			ScopesToSuppress:      []string{},
		},
		GroupOverrideDetails: events.GroupConfigurationV2_0{
			GroupsToOverride:   []string{user.Role},
			IAMRolesToOverride: []string{},
			PreferredRole:      nil,
		},
	}

	logger.WithFields(logrus.Fields{
		"user_id":    user.UserID,
		"cognito_id": user.CognitoID,
		"role":       user.Role,
		"operation":  "Handler",
	}).Debug("Successfully added custom claims to token")

	return event, nil
}

// isValidTriggerSourceV2 filters out legacy V1.0 trigger sources. Responding
// to a V1.0 trigger with the V2.0 response shape breaks authentication.
func isValidTriggerSourceV2(triggerSource string) bool {
	validSources := []string{
		"TokenGeneration_HostedAuth",
		"TokenGeneration_Authentication",
		"TokenGeneration_NewPasswordChallenge",
		"TokenGeneration_AuthenticateDevice",
		"TokenGeneration_RefreshTokens",
	}

	for _, valid := range validSources {
		if triggerSource == valid {
			return true
		}
	}
	return false
}

func main() {
	lambda.Start(Handler)
}

func init() {
	var err error

	isLocal = parseIsLocal()
	logger = setupLogger(isLocal)

	ssmClient := clients.NewSSMClient(isLocal)
	ssmRepository = &data.SSMDao{
		SSM:    ssmClient,
		Logger: logger,
	}

	ssmParams, err = ssmRepository.GetParameters()
	if err != nil {
		logger.WithFields(logrus.Fields{
			"operation": "init",
			"error":     err.Error(),
		}).Fatal("Error while getting SSM params from parameter store")
	}

	err = setupDatabase(ssmParams)
	if err != nil {
		logger.WithFields(logrus.Fields{
			"operation": "init",
			"error":     err.Error(),
		}).Fatal("Error setting up token customizer")
	}

	logger.WithField("operation", "init").Info("Token Customizer Lambda initialization completed successfully")
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

func setupDatabase(ssmParams map[string]string) error {
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

	userRepository = &data.UserDao{DB: sqlDB, Logger: logger}

	return nil
}
