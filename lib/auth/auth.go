package auth

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/aws/aws-lambda-go/events"
)

// Role constants mirrored from the users table
const (
	RoleAdmin  = "admin"
	RoleStaff  = "staff"
	RoleClient = "client"
)

// Claims represents the JWT claims extracted from the API Gateway authorizer context
type Claims struct {
	UserID    int64  `json:"user_id"`
	Email     string `json:"email"`
	CognitoID string `json:"sub"`
	OrgID     int64  `json:"org_id"` // zero for staff/admin not pinned to an organization
	Role      string `json:"role"`
}

// IsStaffOrAdmin reports whether the caller may act on behalf of the firm.
func (c *Claims) IsStaffOrAdmin() bool {
	return c.Role == RoleAdmin || c.Role == RoleStaff
}

// IsAdmin reports whether the caller has full administrative access.
func (c *Claims) IsAdmin() bool {
	return c.Role == RoleAdmin
}

// CanAccessOrg reports whether the caller may read records scoped to orgID.
// Staff and admins see every organization; clients only their own.
func (c *Claims) CanAccessOrg(orgID int64) bool {
	if c.IsStaffOrAdmin() {
		return true
	}
	return c.OrgID != 0 && c.OrgID == orgID
}

// ExtractClaimsFromRequest extracts and parses JWT claims from an API Gateway request
func ExtractClaimsFromRequest(request events.APIGatewayProxyRequest) (*Claims, error) {
	// Get claims from authorizer context
	var claimsMap map[string]interface{}
	var ok bool

	if authClaims, exists := request.RequestContext.Authorizer["claims"]; exists {
		claimsMap, ok = authClaims.(map[string]interface{})
	}

	// Some API Gateway configurations flatten claims directly into the authorizer map
	if !ok {
		claimsMap = request.RequestContext.Authorizer
		ok = (claimsMap != nil)
	}

	if !ok || claimsMap == nil {
		return nil, fmt.Errorf("claims not found in authorizer context")
	}

	userID, err := parseInt64Claim(claimsMap, "user_id")
	if err != nil {
		return nil, err
	}

	// org_id is absent for firm staff that have not been pinned to an organization
	orgID, _ := parseInt64Claim(claimsMap, "org_id")

	email, ok := claimsMap["email"].(string)
	if !ok {
		return nil, fmt.Errorf("email not found or invalid in claims")
	}

	cognitoID, ok := claimsMap["sub"].(string)
	if !ok {
		return nil, fmt.Errorf("sub not found or invalid in claims")
	}

	role, ok := claimsMap["role"].(string)
	if !ok || role == "" {
		role = RoleClient
	}

	return &Claims{
		UserID:    userID,
		Email:     email,
		CognitoID: cognitoID,
		OrgID:     orgID,
		Role:      role,
	}, nil
}

// parseInt64Claim reads a numeric claim that may arrive as a string or a JSON number
func parseInt64Claim(claimsMap map[string]interface{}, key string) (int64, error) {
	value, exists := claimsMap[key]
	if !exists {
		return 0, fmt.Errorf("%s not found in claims", key)
	}

	switch v := value.(type) {
	case string:
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("failed to parse %s string: %w", key, err)
		}
		return parsed, nil
	case float64:
		return int64(v), nil
	default:
		return 0, fmt.Errorf("%s has unexpected type", key)
	}
}

// ToJSON converts claims to a JSON string for logging
func (c *Claims) ToJSON() string {
	data, _ := json.Marshal(c)
	return string(data)
}
