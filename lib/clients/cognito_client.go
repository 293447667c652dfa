package clients

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
)

// NewCognitoIdentityProviderClient creates a Cognito client for user pool
// administration (invites, attribute updates).
func NewCognitoIdentityProviderClient(isLocal bool) *cognitoidentityprovider.Client {
	cfg, err := config.LoadDefaultConfig(context.TODO(),
		config.WithRegion("us-east-2"),
	)
	if err != nil {
		panic(err)
	}

	if isLocal {
		cfg.BaseEndpoint = aws.String("http://localhost:4566")
	}

	return cognitoidentityprovider.NewFromConfig(cfg)
}
