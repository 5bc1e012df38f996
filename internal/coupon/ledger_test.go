package coupon

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockDynamo struct {
	putInput  *dynamodb.PutItemInput
	putErr    error
	scanPages []*dynamodb.ScanOutput
	scans     []*dynamodb.ScanInput
}

func (m *mockDynamo) Scan(_ context.Context, input *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	copied := *input
	m.scans = append(m.scans, &copied)
	if len(m.scanPages) == 0 {
		return &dynamodb.ScanOutput{}, nil
	}
	page := m.scanPages[0]
	m.scanPages = m.scanPages[1:]
	return page, nil
}

func (m *mockDynamo) PutItem(_ context.Context, input *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	m.putInput = input
	if m.putErr != nil {
		return nil, m.putErr
	}
	return &dynamodb.PutItemOutput{}, nil
}

func TestDynamoLedgerConditionalPut(t *testing.T) {
	mock := &mockDynamo{}
	ledger := NewDynamoLedger(mock, "coupons")
	rec := Record{Code: "123456", UserID: 42, Username: "alice", IssuedAt: time.Now()}

	require.NoError(t, ledger.Reserve(context.Background(), rec))
	require.NotNil(t, mock.putInput)
	assert.Equal(t, "coupons", *mock.putInput.TableName)
	if expr := mock.putInput.ConditionExpression; expr == nil || *expr != "attribute_not_exists(code)" {
		t.Fatalf("expected condition expression to prevent overwrites, got %v", expr)
	}
	code, ok := mock.putInput.Item["code"].(*types.AttributeValueMemberS)
	require.True(t, ok)
	assert.Equal(t, "123456", code.Value)

	mock.putErr = &types.ConditionalCheckFailedException{}
	assert.ErrorIs(t, ledger.Reserve(context.Background(), rec), ErrCodeTaken)

	mock.putErr = errors.New("throttled")
	err := ledger.Reserve(context.Background(), rec)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCodeTaken)
}

func TestDynamoLedgerByUserPicksEarliestAcrossPages(t *testing.T) {
	early := time.Date(2026, time.October, 14, 20, 0, 0, 0, time.UTC)
	late := early.Add(time.Hour)
	first, err := attributevalue.MarshalMap(Record{Code: "222222", UserID: 42, IssuedAt: late})
	require.NoError(t, err)
	second, err := attributevalue.MarshalMap(Record{Code: "111111", UserID: 42, IssuedAt: early})
	require.NoError(t, err)

	mock := &mockDynamo{scanPages: []*dynamodb.ScanOutput{
		{Items: []map[string]types.AttributeValue{first}, LastEvaluatedKey: map[string]types.AttributeValue{"code": &types.AttributeValueMemberS{Value: "222222"}}},
		{Items: []map[string]types.AttributeValue{second}},
	}}
	ledger := NewDynamoLedger(mock, "coupons")

	rec, ok, err := ledger.ByUser(context.Background(), 42)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "111111", rec.Code)
	require.Len(t, mock.scans, 2)
	assert.Equal(t, "userId = :uid", *mock.scans[0].FilterExpression)
	assert.Nil(t, mock.scans[0].ExclusiveStartKey)
	assert.NotNil(t, mock.scans[1].ExclusiveStartKey)

	_, ok, err = ledger.ByUser(context.Background(), 7)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPostgresLedgerByUser(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	ledger := NewPostgresLedger(mock)
	at := time.Date(2026, time.October, 14, 21, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT code, tg_user_id").
		WithArgs(int64(42)).
		WillReturnRows(pgxmock.NewRows([]string{"code", "tg_user_id", "username", "full_name", "issued_at"}).
			AddRow("654321", int64(42), "alice", "Алиса", at))
	rec, ok, err := ledger.ByUser(context.Background(), 42)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "654321", rec.Code)
	assert.Equal(t, "Алиса", rec.DisplayName)

	mock.ExpectQuery("SELECT code, tg_user_id").
		WithArgs(int64(7)).
		WillReturnError(pgx.ErrNoRows)
	_, ok, err = ledger.ByUser(context.Background(), 7)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresLedgerReserve(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	ledger := NewPostgresLedger(mock)
	at := time.Date(2026, time.October, 14, 21, 0, 0, 0, time.UTC)
	rec := Record{Code: "654321", UserID: 42, Username: "alice", DisplayName: "Алиса", IssuedAt: at}

	mock.ExpectExec("INSERT INTO coupons").
		WithArgs("654321", int64(42), "alice", "Алиса", at).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, ledger.Reserve(context.Background(), rec))

	mock.ExpectExec("INSERT INTO coupons").
		WithArgs("654321", int64(42), "alice", "Алиса", at).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	assert.ErrorIs(t, ledger.Reserve(context.Background(), rec), ErrCodeTaken)

	require.NoError(t, mock.ExpectationsWereMet())
}
