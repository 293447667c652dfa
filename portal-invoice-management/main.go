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
	"portal/lib/mailer"
	"portal/lib/util"
	"strconv"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/sirupsen/logrus"
)

// Handler struct contains all dependencies for the Lambda function
type Handler struct {
	DB         *sql.DB
	Logger     *logrus.Logger
	Invoices   data.InvoiceRepository
	Users      data.UserRepository
	Activity   data.ActivityRepository
	Dispatcher *mailer.Dispatcher
}

// Global variables for Lambda cold start optimization
var (
	logger        *logrus.Logger
	isLocal       bool
	ssmRepository data.SSMRepository
	ssmParams     map[string]string
	sqlDB         *sql.DB
	handler       *Handler
)

func LambdaHandler(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	logger.WithFields(logrus.Fields{
		"operation": "LambdaHandler",
		"method":    request.HTTPMethod,
		"resource":  request.Resource,
	}).Info("Invoice management request received")

	claims, err := auth.ExtractClaimsFromRequest(request)
	if err != nil {
		logger.WithError(err).Error("Authentication failed")
		return api.ErrorResponse(http.StatusUnauthorized, "Authentication failed", logger), nil
	}

	method := request.HTTPMethod
	pathParams := request.PathParameters

	switch {
	case method == http.MethodPost && request.Resource == "/invoices":
		return handler.createInvoice(ctx, claims, request.Body), nil
	case method == http.MethodGet && request.Resource == "/invoices":
		return handler.listInvoices(ctx, claims, request.QueryStringParameters), nil
	case method == http.MethodGet && request.Resource == "/invoices/export":
		return handler.exportInvoices(ctx, claims, request.QueryStringParameters), nil
	case method == http.MethodGet && request.Resource == "/invoices/{id}":
		return handler.getInvoice(ctx, claims, pathParams["id"]), nil
	case method == http.MethodPut && request.Resource == "/invoices/{id}":
		return handler.updateInvoice(ctx, claims, pathParams["id"], request.Body), nil
	case method == http.MethodPut && request.Resource == "/invoices/{id}/status":
		return handler.updateInvoiceStatus(ctx, claims, pathParams["id"], request.Body), nil
	default:
		return api.ErrorResponse(http.StatusMethodNotAllowed, "Method not allowed", logger), nil
	}
}

func main() {
	lambda.Start(LambdaHandler)
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

	err = setupHandler(ssmParams)
	if err != nil {
		logger.WithFields(logrus.Fields{
			"operation": "init",
			"error":     err.Error(),
		}).Fatal("Error setting up invoice management handler")
	}

	logger.WithField("operation", "init").Info("Invoice Management Lambda initialization completed successfully")
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

func setupHandler(ssmParams map[string]string) error {
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

	handler = &Handler{
		DB:       sqlDB,
		Logger:   logger,
		Invoices: &data.InvoiceDao{DB: sqlDB, Logger: logger},
		Users:    &data.UserDao{DB: sqlDB, Logger: logger},
		Activity: &data.ActivityDao{DB: sqlDB, Logger: logger},
		Dispatcher: &mailer.Dispatcher{
			Gate:          &mailer.Gate{Prefs: &data.PreferenceDao{DB: sqlDB, Logger: logger}, Logger: logger},
			Email:         setupEmailClient(ssmParams),
			Notifications: &data.NotificationDao{DB: sqlDB, Logger: logger},
			FromAddress:   ssmParams[constants.EMAIL_FROM_ADDRESS],
			BaseURL:       ssmParams[constants.PORTAL_BASE_URL],
			Logger:        logger,
		},
	}

	return nil
}

func setupEmailClient(ssmParams map[string]string) clients.EmailClientInterface {
	apiKey := ssmParams[constants.EMAIL_API_KEY]
	if apiKey == "" {
		logger.Warn("EMAIL_API_KEY not configured; transactional email disabled")
		return nil
	}
	return clients.NewEmailClient(ssmParams[constants.EMAIL_API_URL], apiKey)
}
