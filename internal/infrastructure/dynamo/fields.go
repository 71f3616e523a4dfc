package dynamo

// DynamoDB attribute names used in expressions across the repo.
// Using constants prevents silent runtime bugs caused by key typos.
const (
	fieldUserID             = "user_id"
	fieldUsername           = "username"
	fieldEmail              = "email"
	fieldIsVerified         = "is_verified"
	fieldIsAcceptingMessage = "is_accepting_message"
	fieldVerifyCode         = "verify_code"
	fieldVerifyCodeExpiry   = "verify_code_expiry"
	fieldVerifyAttempts     = "verify_attempts"
	fieldMessageID          = "message_id"
	fieldUpdatedAt          = "updated_at"
	fieldClaim              = "claim"
)

// GSI names on the users table.
const (
	indexUsername = "username-index"
	indexEmail    = "email-index"
)
