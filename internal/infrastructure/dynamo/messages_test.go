package dynamo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/mystery-message-api/internal/domain"
	"github.com/sethvargo/go-retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testAppendRetries = 2

func newMessageRepo(api *mockAPI) *MessageRepo {
	r := NewMessageRepo(api, "messages", "users")
	r.backoff = func() retry.Backoff {
		return retry.WithMaxRetries(testAppendRetries, retry.NewConstant(time.Millisecond))
	}
	return r
}

func cancelled(reasons ...types.CancellationReason) error {
	return &types.TransactionCanceledException{Message: aws.String("Transaction cancelled"), CancellationReasons: reasons}
}

func reason(code string, item map[string]types.AttributeValue) types.CancellationReason {
	return types.CancellationReason{Code: aws.String(code), Item: item}
}

func messageItems(t *testing.T, msgs ...domain.Message) []map[string]types.AttributeValue {
	t.Helper()
	items := make([]map[string]types.AttributeValue, 0, len(msgs))
	for _, m := range msgs {
		item, err := attributevalue.MarshalMap(m)
		require.NoError(t, err)
		items = append(items, item)
	}
	return items
}

// --- AppendMessage ---

func TestAppendMessageInput_GuardsOnGate(t *testing.T) {
	in, err := appendMessageInput("users", "messages", domain.Message{UserID: "u1", MessageID: "m1", Content: "hello", CreatedAt: fixedNow})
	require.NoError(t, err)
	require.Len(t, in.TransactItems, 2)

	check := in.TransactItems[0].ConditionCheck
	require.NotNil(t, check)
	assert.Equal(t, "users", aws.ToString(check.TableName))
	assert.Equal(t, strKey("user_id", "u1"), check.Key)
	assert.Equal(t, "attribute_exists(#uid) AND #acc = :true", aws.ToString(check.ConditionExpression))
	assert.Equal(t, "is_accepting_message", check.ExpressionAttributeNames["#acc"])
	assert.Equal(t, types.ReturnValuesOnConditionCheckFailureAllOld, check.ReturnValuesOnConditionCheckFailure)

	put := in.TransactItems[1].Put
	require.NotNil(t, put)
	assert.Equal(t, "messages", aws.ToString(put.TableName))
	assert.Equal(t, "attribute_not_exists(#mid)", aws.ToString(put.ConditionExpression))
	assert.Equal(t, &types.AttributeValueMemberS{Value: "u1"}, put.Item["user_id"])
	assert.Equal(t, &types.AttributeValueMemberS{Value: "m1"}, put.Item["message_id"])
	assert.Equal(t, &types.AttributeValueMemberS{Value: "hello"}, put.Item["content"])
}

func TestAppendMessage_StampsOwner(t *testing.T) {
	api := &mockAPI{}
	api.On("TransactWriteItems", mock.Anything, mock.MatchedBy(func(in *dynamodb.TransactWriteItemsInput) bool {
		owner, ok := in.TransactItems[1].Put.Item["user_id"].(*types.AttributeValueMemberS)
		return ok && owner.Value == "u1"
	})).Return(&dynamodb.TransactWriteItemsOutput{}, nil)

	require.NoError(t, newMessageRepo(api).AppendMessage(context.Background(), "u1", domain.Message{MessageID: "m1"}))
	api.AssertExpectations(t)
}

func TestAppendMessage_GateClosed_Rejected(t *testing.T) {
	api := &mockAPI{}
	api.On("TransactWriteItems", mock.Anything, mock.Anything).Return(nil, cancelled(
		reason("ConditionalCheckFailed", map[string]types.AttributeValue{"user_id": &types.AttributeValueMemberS{Value: "u1"}}),
		reason("None", nil),
	))

	err := newMessageRepo(api).AppendMessage(context.Background(), "u1", domain.Message{MessageID: "m1"})
	assert.True(t, errors.Is(err, domain.ErrRejected))
	api.AssertNumberOfCalls(t, "TransactWriteItems", 1)
}

func TestAppendMessage_NoUser_NotFound(t *testing.T) {
	api := &mockAPI{}
	api.On("TransactWriteItems", mock.Anything, mock.Anything).Return(nil, cancelled(
		reason("ConditionalCheckFailed", nil),
		reason("None", nil),
	))

	err := newMessageRepo(api).AppendMessage(context.Background(), "ghost", domain.Message{MessageID: "m1"})
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestAppendMessage_IDCollision_Conflict(t *testing.T) {
	api := &mockAPI{}
	api.On("TransactWriteItems", mock.Anything, mock.Anything).Return(nil, cancelled(
		reason("None", nil),
		reason("ConditionalCheckFailed", nil),
	))

	err := newMessageRepo(api).AppendMessage(context.Background(), "u1", domain.Message{MessageID: "m1"})
	assert.True(t, errors.Is(err, domain.ErrConflict))
}

func TestAppendMessage_RetriesOnTransactionConflict(t *testing.T) {
	api := &mockAPI{}
	api.On("TransactWriteItems", mock.Anything, mock.Anything).
		Return(nil, cancelled(reason("TransactionConflict", nil), reason("None", nil))).Once()
	api.On("TransactWriteItems", mock.Anything, mock.Anything).
		Return(&dynamodb.TransactWriteItemsOutput{}, nil).Once()

	require.NoError(t, newMessageRepo(api).AppendMessage(context.Background(), "u1", domain.Message{MessageID: "m1"}))
	api.AssertExpectations(t)
}

func TestAppendMessage_GivesUpAfterRetries(t *testing.T) {
	api := &mockAPI{}
	api.On("TransactWriteItems", mock.Anything, mock.Anything).
		Return(nil, cancelled(reason("TransactionConflict", nil), reason("None", nil)))

	err := newMessageRepo(api).AppendMessage(context.Background(), "u1", domain.Message{MessageID: "m1"})
	assert.True(t, errors.Is(err, domain.ErrConflict))
	api.AssertNumberOfCalls(t, "TransactWriteItems", testAppendRetries+1)
}

func TestAppendMessage_Throttled_StoreError(t *testing.T) {
	api := &mockAPI{}
	api.On("TransactWriteItems", mock.Anything, mock.Anything).Return(nil, &types.ProvisionedThroughputExceededException{})

	err := newMessageRepo(api).AppendMessage(context.Background(), "u1", domain.Message{MessageID: "m1"})
	assert.True(t, errors.Is(err, domain.ErrStore))
	api.AssertNumberOfCalls(t, "TransactWriteItems", 1)
}

// --- ListMessages ---

func TestListMessages_QueriesOwnerPartition(t *testing.T) {
	api := &mockAPI{}
	api.On("Query", mock.Anything, mock.MatchedBy(func(in *dynamodb.QueryInput) bool {
		uid, ok := in.ExpressionAttributeValues[":uid"].(*types.AttributeValueMemberS)
		return ok && uid.Value == "u1" && aws.ToString(in.TableName) == "messages" && aws.ToBool(in.ConsistentRead)
	})).Return(&dynamodb.QueryOutput{Items: messageItems(t,
		domain.Message{UserID: "u1", MessageID: "a", Content: "first", CreatedAt: fixedNow},
		domain.Message{UserID: "u1", MessageID: "b", Content: "second", CreatedAt: fixedNow},
	)}, nil)

	msgs, err := newMessageRepo(api).ListMessages(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "a", msgs[0].MessageID)
	assert.True(t, msgs[0].CreatedAt.Equal(fixedNow))
	api.AssertExpectations(t)
}

func TestListMessages_EmptyInbox(t *testing.T) {
	api := &mockAPI{}
	api.On("Query", mock.Anything, mock.Anything).Return(&dynamodb.QueryOutput{}, nil)

	msgs, err := newMessageRepo(api).ListMessages(context.Background(), "u1")
	require.NoError(t, err)
	assert.NotNil(t, msgs)
	assert.Empty(t, msgs)
}

func TestListMessages_SDKFailure_IsStoreError(t *testing.T) {
	api := &mockAPI{}
	api.On("Query", mock.Anything, mock.Anything).Return(nil, errors.New("boom"))

	_, err := newMessageRepo(api).ListMessages(context.Background(), "u1")
	assert.True(t, errors.Is(err, domain.ErrStore))
}

// --- RemoveMessage ---

func TestRemoveMessage_KeyedOnOwnerAndID(t *testing.T) {
	api := &mockAPI{}
	api.On("DeleteItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.DeleteItemInput) bool {
		owner, _ := in.Key["user_id"].(*types.AttributeValueMemberS)
		mid, _ := in.Key["message_id"].(*types.AttributeValueMemberS)
		return owner != nil && owner.Value == "u1" && mid != nil && mid.Value == "m1" &&
			aws.ToString(in.ConditionExpression) == "attribute_exists(#mid)"
	})).Return(&dynamodb.DeleteItemOutput{}, nil)

	require.NoError(t, newMessageRepo(api).RemoveMessage(context.Background(), "u1", "m1"))
	api.AssertExpectations(t)
}

func TestRemoveMessage_UnknownID_NotFound(t *testing.T) {
	api := &mockAPI{}
	api.On("DeleteItem", mock.Anything, mock.Anything).Return(nil, ccf(nil))

	err := newMessageRepo(api).RemoveMessage(context.Background(), "u1", "someone-elses")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestRemoveMessage_SDKFailure_IsStoreError(t *testing.T) {
	api := &mockAPI{}
	api.On("DeleteItem", mock.Anything, mock.Anything).Return(nil, errors.New("boom"))

	err := newMessageRepo(api).RemoveMessage(context.Background(), "u1", "m1")
	assert.True(t, errors.Is(err, domain.ErrStore))
}
