package dynamo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/mystery-message-api/internal/domain"
	"github.com/sethvargo/go-retry"
)

// maxAppendRetries bounds how often an append cancelled by a concurrent
// transaction on the same owner is replayed.
const maxAppendRetries = 8

// MessageRepo provides typed DynamoDB operations for the messages table.
// Every message is its own item (PK user_id, SK message_id); the owner's
// acceptance gate stays on the users table.
type MessageRepo struct {
	client     API
	tableName  string
	usersTable string
	backoff    func() retry.Backoff
}

func NewMessageRepo(client API, tableName, usersTable string) *MessageRepo {
	return &MessageRepo{client: client, tableName: tableName, usersTable: usersTable, backoff: appendBackoff}
}

func appendBackoff() retry.Backoff {
	return retry.WithMaxRetries(maxAppendRetries,
		retry.WithJitter(10*time.Millisecond, retry.NewExponential(15*time.Millisecond)))
}

// AppendMessage stores msg for userID. The gate check on the user item and
// the put of the message commit in one transaction, so a closed gate and the
// append can never interleave.
func (r *MessageRepo) AppendMessage(ctx context.Context, userID string, msg domain.Message) error {
	msg.UserID = userID
	in, err := appendMessageInput(r.usersTable, r.tableName, msg)
	if err != nil {
		return err
	}
	return retry.Do(ctx, r.backoff(), func(ctx context.Context) error {
		_, err := r.client.TransactWriteItems(ctx, in)
		if err == nil {
			return nil
		}
		var tce *types.TransactionCanceledException
		if !errors.As(err, &tce) {
			return storeErr("append message", err)
		}
		if transactionConflict(tce.CancellationReasons) {
			slog.Debug("append conflicted with a concurrent transaction, retrying", "user_id", userID)
			return retry.RetryableError(fmt.Errorf("append message: too many concurrent writes: %w", domain.ErrConflict))
		}
		return appendCancelReason(tce.CancellationReasons)
	})
}

// ListMessages returns every message of userID in key order.
func (r *MessageRepo) ListMessages(ctx context.Context, userID string) ([]domain.Message, error) {
	p := dynamodb.NewQueryPaginator(r.client, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		KeyConditionExpression:    aws.String("#uid = :uid"),
		ExpressionAttributeNames:  map[string]string{"#uid": fieldUserID},
		ExpressionAttributeValues: map[string]types.AttributeValue{":uid": strValue(userID)},
		ConsistentRead:            aws.Bool(true),
	})
	msgs := []domain.Message{}
	for p.HasMorePages() {
		out, err := p.NextPage(ctx)
		if err != nil {
			return nil, storeErr("query messages", err)
		}
		var page []domain.Message
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, fmt.Errorf("unmarshal messages: %w", err)
		}
		msgs = append(msgs, page...)
	}
	return msgs, nil
}

// RemoveMessage deletes messageID from userID's inbox. The key includes the
// owner, so another user's message id is simply not found.
func (r *MessageRepo) RemoveMessage(ctx context.Context, userID, messageID string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			fieldUserID:    strValue(userID),
			fieldMessageID: strValue(messageID),
		},
		ConditionExpression:      aws.String("attribute_exists(#mid)"),
		ExpressionAttributeNames: map[string]string{"#mid": fieldMessageID},
	})
	if _, ok := conditionFailed(err); ok {
		return fmt.Errorf("message not found: %w", domain.ErrNotFound)
	}
	if err != nil {
		return storeErr("delete message", err)
	}
	return nil
}

func appendMessageInput(usersTable, messagesTable string, msg domain.Message) (*dynamodb.TransactWriteItemsInput, error) {
	item, err := attributevalue.MarshalMap(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal message: %w", err)
	}
	return &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{ConditionCheck: &types.ConditionCheck{
				TableName:           aws.String(usersTable),
				Key:                 strKey(fieldUserID, msg.UserID),
				ConditionExpression: aws.String("attribute_exists(#uid) AND #acc = :true"),
				ExpressionAttributeNames: map[string]string{
					"#uid": fieldUserID,
					"#acc": fieldIsAcceptingMessage,
				},
				ExpressionAttributeValues:           map[string]types.AttributeValue{":true": boolValue(true)},
				ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
			}},
			{Put: &types.Put{
				TableName:                aws.String(messagesTable),
				Item:                     item,
				ConditionExpression:      aws.String("attribute_not_exists(#mid)"),
				ExpressionAttributeNames: map[string]string{"#mid": fieldMessageID},
			}},
		},
	}, nil
}

// transactionConflict reports whether the transaction lost to another one in
// flight on the same items, which is safe to replay.
func transactionConflict(reasons []types.CancellationReason) bool {
	for _, reason := range reasons {
		if aws.ToString(reason.Code) == "TransactionConflict" {
			return true
		}
	}
	return false
}

// appendCancelReason maps the cancellation reasons of the append transaction
// (gate check, message put) to domain errors.
func appendCancelReason(reasons []types.CancellationReason) error {
	for i, reason := range reasons {
		if aws.ToString(reason.Code) != "ConditionalCheckFailed" {
			continue
		}
		if i > 0 {
			return fmt.Errorf("message id collision: %w", domain.ErrConflict)
		}
		if len(reason.Item) == 0 {
			return fmt.Errorf("user not found: %w", domain.ErrNotFound)
		}
		return fmt.Errorf("user is not accepting messages: %w", domain.ErrRejected)
	}
	return fmt.Errorf("append message cancelled: %w", domain.ErrStore)
}
