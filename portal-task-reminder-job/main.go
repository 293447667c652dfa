// Package main implements the daily task reminder Lambda, triggered by an
// EventBridge schedule. It emails clients about tasks coming due and stamps
// each task so a retried or duplicate run within the same UTC day sends
// nothing.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"portal/lib/clients"
	"portal/lib/constants"
	"portal/lib/data"
	"portal/lib/jobs"
	"portal/lib/mailer"
	"portal/lib/util"
	"strconv"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/sirupsen/logrus"
)

// Global variables for Lambda cold start optimization
var (
	logger        *logrus.Logger
	isLocal       bool
	ssmRepository data.SSMRepository
	ssmParams     map[string]string
	sqlDB         *sql.DB
	job           *jobs.TaskReminderJob
)

func Handler(ctx context.Context, event events.CloudWatchEvent) error {
	logger.WithFields(logrus.Fields{
		"operation":  "Handler",
		"event_id":   event.ID,
		"event_time": event.Time,
	}).Info("Task reminder job triggered")

	result, err := job.Run(ctx, time.Now().UTC())
	if err != nil {
		logger.WithError(err).Error("Task reminder job failed")
		return err
	}

	logger.WithFields(logrus.Fields{
		"operation":  "Handler",
		"examined":   result.Examined,
		"sent":       result.Sent,
		"suppressed": result.Suppressed,
		"failed":     result.Failed,
	}).Info("Task reminder job completed")

	return nil
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

	err = setupJob(ssmParams)
	if err != nil {
		logger.WithFields(logrus.Fields{
			"operation": "init",
			"error":     err.Error(),
		}).Fatal("Error setting up task reminder job")
	}

	logger.WithField("operation", "init").Info("Task Reminder Job Lambda initialization completed successfully")
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

func setupJob(ssmParams map[string]string) error {
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

	job = &jobs.TaskReminderJob{
		Tasks:      &data.TaskDao{DB: sqlDB, Logger: logger},
		Users:      &data.UserDao{DB: sqlDB, Logger: logger},
		Dispatcher: setupDispatcher(ssmParams),
		Logger:     logger,
	}

	return nil
}

func setupDispatcher(ssmParams map[string]string) *mailer.Dispatcher {
	return &mailer.Dispatcher{
		Gate:          &mailer.Gate{Prefs: &data.PreferenceDao{DB: sqlDB, Logger: logger}, Logger: logger},
		Email:         setupEmailClient(ssmParams),
		Notifications: &data.NotificationDao{DB: sqlDB, Logger: logger},
		FromAddress:   ssmParams[constants.EMAIL_FROM_ADDRESS],
		BaseURL:       ssmParams[constants.PORTAL_BASE_URL],
		Logger:        logger,
	}
}

func setupEmailClient(ssmParams map[string]string) clients.EmailClientInterface {
	apiKey := ssmParams[constants.EMAIL_API_KEY]
	if apiKey == "" {
		logger.Warn("EMAIL_API_KEY not configured; transactional email disabled")
		return nil
	}
	return clients.NewEmailClient(ssmParams[constants.EMAIL_API_URL], apiKey)
}
