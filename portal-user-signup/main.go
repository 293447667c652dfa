// Package main implements the AWS Cognito Post-Confirmation Lambda trigger.
//
// Portal users are always invited: an admin creates the database record with
// status "pending" and calls AdminCreateUser, Cognito emails a temporary
// password, and when the user completes the password challenge this trigger
// flips the record to "active".
//
// The trigger never blocks the Cognito confirmation flow. If the database
// update fails, the error is logged with a correlation ID and the event is
// returned to Cognito as a success; an admin can activate the user manually.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"portal/lib/clients"
	"portal/lib/constants"
	"portal/lib/data"
	"portal/lib/util"
	"strconv"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Global variables for Lambda cold start optimization
var (
	logger         *logrus.Logger
	isLocal        bool
	ssmRepository  data.SSMRepository
	ssmParams      map[string]string
	sqlDB          *sql.DB
	userRepository data.UserRepository
)

// Handler processes the Cognito Post-Confirmation trigger event. It returns
// the event unchanged and never errors: a failed activation must not stop the
// user from completing sign-up.
func Handler(ctx context.Context, event events.CognitoEventUserPoolsPostConfirmation) (events.CognitoEventUserPoolsPostConfirmation, error) {
	correlationID := uuid.New().String()

	cognitoID := event.UserName
	email := event.Request.UserAttributes["email"]

	log := logger.WithFields(logrus.Fields{
		"correlation_id": correlationID,
		"cognito_id":     cognitoID,
		"email":          email,
		"trigger_source": event.TriggerSource,
		"operation":      "Handler",
	})

	if cognitoID == "" {
		log.Error("Cognito ID (username) is empty, skipping activation")
		return event, nil
	}

	log.Debug("Processing Cognito Post-Confirmation event")

	if err := userRepository.ActivateByCognitoID(ctx, cognitoID); err != nil {
		log.WithError(err).Error("Failed to activate user, account stays pending until an admin intervenes")
		return event, nil
	}

	log.Info("Invited user activated")
	return event, nil
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
		}).Fatal("Error setting up user signup handler")
	}

	logger.WithField("operation", "init").Info("User Signup Lambda initialization completed successfully")
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
