package dynamo

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/mystery-message-api/internal/domain"
)

// UserRepo provides typed DynamoDB operations for the users table and the
// user_claims table that backs uniqueness among verified users.
type UserRepo struct {
	client      API
	tableName   string
	claimsTable string
	now         func() time.Time
}

func NewUserRepo(client API, tableName, claimsTable string) *UserRepo {
	return &UserRepo{client: client, tableName: tableName, claimsTable: claimsTable, now: time.Now}
}

// CreatePending stores a brand-new unverified user.
func (r *UserRepo) CreatePending(ctx context.Context, u *domain.User) error {
	item, err := attributevalue.MarshalMap(u)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(r.tableName),
		Item:                     item,
		ConditionExpression:      aws.String("attribute_not_exists(#uid)"),
		ExpressionAttributeNames: map[string]string{"#uid": fieldUserID},
	})
	if _, ok := conditionFailed(err); ok {
		return fmt.Errorf("user id collision: %w", domain.ErrConflict)
	}
	if err != nil {
		return storeErr("put user", err)
	}
	return nil
}

// ReplacePending overwrites an abandoned sign-up. The write only lands while
// the stored record is still unverified.
func (r *UserRepo) ReplacePending(ctx context.Context, u *domain.User) error {
	item, err := attributevalue.MarshalMap(u)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_exists(#uid) AND #ver = :false"),
		ExpressionAttributeNames: map[string]string{
			"#uid": fieldUserID,
			"#ver": fieldIsVerified,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{":false": boolValue(false)},
	})
	if _, ok := conditionFailed(err); ok {
		return fmt.Errorf("pending registration changed concurrently: %w", domain.ErrConflict)
	}
	if err != nil {
		return storeErr("replace user", err)
	}
	return nil
}

// GetAccepting reads only the acceptance gate of userID.
func (r *UserRepo) GetAccepting(ctx context.Context, userID string) (bool, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:            aws.String(r.tableName),
		Key:                  strKey(fieldUserID, userID),
		ProjectionExpression: aws.String("#uid, #acc"),
		ExpressionAttributeNames: map[string]string{
			"#uid": fieldUserID,
			"#acc": fieldIsAcceptingMessage,
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return false, storeErr("get acceptance", err)
	}
	if out.Item == nil {
		return false, fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	var gate struct {
		Accepting bool `dynamodbav:"is_accepting_message"`
	}
	if err := attributevalue.UnmarshalMap(out.Item, &gate); err != nil {
		return false, fmt.Errorf("unmarshal user: %w", err)
	}
	return gate.Accepting, nil
}

// ListByUsername returns every record carrying username, verified or not.
func (r *UserRepo) ListByUsername(ctx context.Context, username string) ([]domain.User, error) {
	return r.queryGSI(ctx, indexUsername, fieldUsername, username)
}

// ListByEmail returns every record carrying email, verified or not.
func (r *UserRepo) ListByEmail(ctx context.Context, email string) ([]domain.User, error) {
	return r.queryGSI(ctx, indexEmail, fieldEmail, email)
}

// ClaimOwner returns the id of the verified user holding the given claim.
func (r *UserRepo) ClaimOwner(ctx context.Context, kind, value string) (string, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.claimsTable),
		Key:            strKey(fieldClaim, domain.ClaimKey(kind, value)),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return "", storeErr("get claim", err)
	}
	if out.Item == nil {
		return "", fmt.Errorf("%s claim not found: %w", kind, domain.ErrNotFound)
	}
	var c domain.Claim
	if err := attributevalue.UnmarshalMap(out.Item, &c); err != nil {
		return "", fmt.Errorf("unmarshal claim: %w", err)
	}
	return c.UserID, nil
}

// ReserveAttempt spends one code attempt on the pending record u, allowing at most limit.
// It fails with domain.ErrExpired once the attempts are used up or the code
// was replaced by a newer sign-up.
func (r *UserRepo) ReserveAttempt(ctx context.Context, u *domain.User, limit int) error {
	_, err := r.client.UpdateItem(ctx, reserveAttemptInput(r.tableName, u, limit))
	if _, ok := conditionFailed(err); ok {
		return fmt.Errorf("verification code is no longer valid, please sign up again to get a new code: %w", domain.ErrExpired)
	}
	if err != nil {
		return storeErr("reserve verify attempt", err)
	}
	return nil
}

// MarkVerified flips u to verified, drops its code fields and claims its
// username and email in one transaction. The update is guarded on the code
// the caller checked, so a concurrent re-registration cannot be verified
// with a stale code.
func (r *UserRepo) MarkVerified(ctx context.Context, u *domain.User) error {
	in, err := verifyTransaction(r.tableName, r.claimsTable, u, r.now())
	if err != nil {
		return err
	}
	_, err = r.client.TransactWriteItems(ctx, in)
	if err == nil {
		return nil
	}
	var tce *types.TransactionCanceledException
	if errors.As(err, &tce) {
		return verifyCancelReason(tce.CancellationReasons)
	}
	return storeErr("verify user", err)
}

// Update applies a partial SET to an existing user and stamps updated_at.
func (r *UserRepo) Update(ctx context.Context, userID string, updates map[string]interface{}) error {
	updates[fieldUpdatedAt] = r.now().UTC()
	ue, err := buildUpdateExpr(updates)
	if err != nil {
		return err
	}
	ue.Names["#uid"] = fieldUserID
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey(fieldUserID, userID),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("attribute_exists(#uid)"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	if _, ok := conditionFailed(err); ok {
		return fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	if err != nil {
		return storeErr("update user", err)
	}
	return nil
}

// SetAccepting sets the acceptance gate of userID.
func (r *UserRepo) SetAccepting(ctx context.Context, userID string, accepting bool) error {
	return r.Update(ctx, userID, map[string]interface{}{fieldIsAcceptingMessage: accepting})
}

func (r *UserRepo) queryGSI(ctx context.Context, index, attr, value string) ([]domain.User, error) {
	p := dynamodb.NewQueryPaginator(r.client, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String(index),
		KeyConditionExpression:    aws.String("#a = :v"),
		ExpressionAttributeNames:  map[string]string{"#a": attr},
		ExpressionAttributeValues: map[string]types.AttributeValue{":v": strValue(value)},
	})
	var users []domain.User
	for p.HasMorePages() {
		out, err := p.NextPage(ctx)
		if err != nil {
			return nil, storeErr("query "+index, err)
		}
		var page []domain.User
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, fmt.Errorf("unmarshal users: %w", err)
		}
		users = append(users, page...)
	}
	return users, nil
}

func reserveAttemptInput(table string, u *domain.User, limit int) *dynamodb.UpdateItemInput {
	return &dynamodb.UpdateItemInput{
		TableName:           aws.String(table),
		Key:                 strKey(fieldUserID, u.UserID),
		UpdateExpression:    aws.String("ADD #att :one"),
		ConditionExpression: aws.String("#ver = :false AND #code = :code AND (attribute_not_exists(#att) OR #att < :max)"),
		ExpressionAttributeNames: map[string]string{
			"#att":  fieldVerifyAttempts,
			"#ver":  fieldIsVerified,
			"#code": fieldVerifyCode,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one":   &types.AttributeValueMemberN{Value: "1"},
			":max":   &types.AttributeValueMemberN{Value: strconv.Itoa(limit)},
			":false": boolValue(false),
			":code":  strValue(u.VerifyCode),
		},
	}
}

func verifyTransaction(usersTable, claimsTable string, u *domain.User, now time.Time) (*dynamodb.TransactWriteItemsInput, error) {
	usernameClaim, err := attributevalue.MarshalMap(domain.Claim{
		Claim:  domain.ClaimKey(domain.ClaimUsername, u.Username),
		UserID: u.UserID,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal username claim: %w", err)
	}
	emailClaim, err := attributevalue.MarshalMap(domain.Claim{
		Claim:  domain.ClaimKey(domain.ClaimEmail, u.Email),
		UserID: u.UserID,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal email claim: %w", err)
	}
	claimNames := map[string]string{"#c": fieldClaim}

	return &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Update: &types.Update{
				TableName:           aws.String(usersTable),
				Key:                 strKey(fieldUserID, u.UserID),
				UpdateExpression:    aws.String("SET #ver = :true, #upd = :now REMOVE #code, #exp, #att"),
				ConditionExpression: aws.String("#ver = :false AND #code = :code"),
				ExpressionAttributeNames: map[string]string{
					"#ver":  fieldIsVerified,
					"#upd":  fieldUpdatedAt,
					"#code": fieldVerifyCode,
					"#exp":  fieldVerifyCodeExpiry,
					"#att":  fieldVerifyAttempts,
				},
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":true":  boolValue(true),
					":false": boolValue(false),
					":now":   timeValue(now),
					":code":  strValue(u.VerifyCode),
				},
			}},
			{Put: &types.Put{
				TableName:                aws.String(claimsTable),
				Item:                     usernameClaim,
				ConditionExpression:      aws.String("attribute_not_exists(#c)"),
				ExpressionAttributeNames: claimNames,
			}},
			{Put: &types.Put{
				TableName:                aws.String(claimsTable),
				Item:                     emailClaim,
				ConditionExpression:      aws.String("attribute_not_exists(#c)"),
				ExpressionAttributeNames: claimNames,
			}},
		},
	}, nil
}

// verifyCancelReason maps the per-item cancellation reasons of the verify
// transaction (user update, username claim, email claim) to domain errors.
func verifyCancelReason(reasons []types.CancellationReason) error {
	for i, reason := range reasons {
		if aws.ToString(reason.Code) != "ConditionalCheckFailed" {
			continue
		}
		switch i {
		case 0:
			return fmt.Errorf("account changed while verifying, request a new code: %w", domain.ErrConflict)
		case 1:
			return fmt.Errorf("username is already taken: %w", domain.ErrConflict)
		case 2:
			return fmt.Errorf("email is already registered: %w", domain.ErrConflict)
		}
	}
	return fmt.Errorf("verification conflicted with a concurrent update: %w", domain.ErrConflict)
}
