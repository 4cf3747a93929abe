package dynamo

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// fakeClient is an in-process table with the PK/SK key schema. Query
// supports only "PK = :pk" key conditions, Limit and ExclusiveStartKey.
type fakeClient struct {
	mu    sync.Mutex
	items map[string]map[string]map[string]ddbtypes.AttributeValue
	calls map[string]int
	fail  error
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		items: make(map[string]map[string]map[string]ddbtypes.AttributeValue),
		calls: make(map[string]int),
	}
}

func keyOf(m map[string]ddbtypes.AttributeValue) (pk, sk string, err error) {
	var k itemKey
	if err := attributevalue.UnmarshalMap(m, &k); err != nil {
		return "", "", err
	}
	if k.PK == "" || k.SK == "" {
		return "", "", errors.New("ValidationException: key attributes must not be empty")
	}
	return k.PK, k.SK, nil
}

func (f *fakeClient) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["PutItem"]++
	if f.fail != nil {
		return nil, f.fail
	}
	pk, sk, err := keyOf(in.Item)
	if err != nil {
		return nil, err
	}
	if f.items[pk] == nil {
		f.items[pk] = make(map[string]map[string]ddbtypes.AttributeValue)
	}
	f.items[pk][sk] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeClient) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["GetItem"]++
	if f.fail != nil {
		return nil, f.fail
	}
	pk, sk, err := keyOf(in.Key)
	if err != nil {
		return nil, err
	}
	return &dynamodb.GetItemOutput{Item: f.items[pk][sk]}, nil
}

func (f *fakeClient) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["DeleteItem"]++
	if f.fail != nil {
		return nil, f.fail
	}
	pk, sk, err := keyOf(in.Key)
	if err != nil {
		return nil, err
	}
	delete(f.items[pk], sk)
	return &dynamodb.DeleteItemOutput{}, nil
}

func (f *fakeClient) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["Query"]++
	if f.fail != nil {
		return nil, f.fail
	}
	pkv, ok := in.ExpressionAttributeValues[":pk"].(*ddbtypes.AttributeValueMemberS)
	if !ok {
		return nil, errors.New("ValidationException: missing :pk")
	}
	part := f.items[pkv.Value]
	sks := make([]string, 0, len(part))
	for sk := range part {
		sks = append(sks, sk)
	}
	slices.Sort(sks)

	if in.ExclusiveStartKey != nil {
		_, start, err := keyOf(in.ExclusiveStartKey)
		if err != nil {
			return nil, err
		}
		i, found := slices.BinarySearch(sks, start)
		if found {
			i++
		}
		sks = sks[i:]
	}

	out := &dynamodb.QueryOutput{}
	for _, sk := range sks {
		if in.Limit != nil && len(out.Items) == int(*in.Limit) {
			last, _ := attributevalue.MarshalMap(itemKey{PK: pkv.Value, SK: out.Items[len(out.Items)-1]["SK"].(*ddbtypes.AttributeValueMemberS).Value})
			out.LastEvaluatedKey = last
			break
		}
		out.Items = append(out.Items, part[sk])
	}
	out.Count = int32(len(out.Items))
	return out, nil
}
