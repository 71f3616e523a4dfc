package domain

// Claim kinds reserve a value for exactly one verified user.
const (
	ClaimUsername = "username"
	ClaimEmail    = "email"
)

// Claim is written atomically with verification and maps a unique value to its owner.
// PK: claim ("<kind>#<value>").
type Claim struct {
	Claim  string `json:"claim" dynamodbav:"claim"`
	UserID string `json:"user_id" dynamodbav:"user_id"`
}

// ClaimKey builds the partition key for a claim.
func ClaimKey(kind, value string) string {
	return kind + "#" + value
}
