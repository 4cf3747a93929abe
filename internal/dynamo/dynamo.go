// Package dynamo implements a Datastore on an Amazon DynamoDB table.
//
// The table needs a string partition key named PK and a string sort key
// named SK. A record is stored as {PK: "K#"+kind, SK: key, Payload}; every
// kind written is also recorded as {PK: "KINDS", SK: kind}. An optional
// namespace prefixes both partition keys.
package dynamo

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/mesh-intelligence/ndb/pkg/types"
)

const backendName = types.BackendDynamoDB

const (
	recordPrefix = "K#"
	kindsPK      = "KINDS"
)

// opTimeout bounds each request, including each page of a scan.
const opTimeout = 10 * time.Second

const scanPageSize = 256

// Client is the part of *dynamodb.Client the backend uses.
type Client interface {
	dynamodb.QueryAPIClient
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

type itemKey struct {
	PK string `dynamodbav:"PK"`
	SK string `dynamodbav:"SK"`
}

type item struct {
	PK      string `dynamodbav:"PK"`
	SK      string `dynamodbav:"SK"`
	Payload string `dynamodbav:"Payload,omitempty"`
}

// Backend is a Datastore over one DynamoDB table.
type Backend struct {
	mu        sync.RWMutex
	open      bool
	client    Client
	table     string
	namespace string
}

// Option configures a Backend.
type Option func(*Backend)

// WithNamespace prefixes partition keys with ns.
func WithNamespace(ns string) Option {
	return func(b *Backend) { b.namespace = ns }
}

// New returns a backend over table using client.
func New(client Client, table string, opts ...Option) *Backend {
	b := &Backend{open: true, client: client, table: table}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Open builds a DynamoDB client from cfg and returns a backend over
// cfg.Table. Static credentials are used when both keys are set, the AWS
// default chain otherwise. A non-empty Endpoint points the client at a
// local DynamoDB.
func Open(ctx context.Context, cfg types.DynamoDBConfig) (*Backend, error) {
	if cfg.Table == "" {
		return nil, types.ErrDynamoDBTable
	}
	var loadOpts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS configuration: %w", err)
	}
	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return New(client, cfg.Table, WithNamespace(cfg.Namespace)), nil
}

func (b *Backend) recordPK(kind string) string { return b.namespace + recordPrefix + kind }
func (b *Backend) kindsPK() string             { return b.namespace + kindsPK }

func (b *Backend) key(pk, sk string) (map[string]ddbtypes.AttributeValue, error) {
	return attributevalue.MarshalMap(itemKey{PK: pk, SK: sk})
}

func (b *Backend) put(ctx context.Context, it item) error {
	av, err := attributevalue.MarshalMap(it)
	if err != nil {
		return err
	}
	_, err = b.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(b.table),
		Item:      av,
	})
	return err
}

// Set stores payload under (kind, key) and records the kind.
func (b *Backend) Set(kind, key, payload string) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.open {
		return types.ErrDatastoreClosed
	}
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if err := b.put(ctx, item{PK: b.kindsPK(), SK: kind}); err != nil {
		return types.NewBackendError(backendName, "set", kind, key, err)
	}
	err := b.put(ctx, item{PK: b.recordPK(kind), SK: key, Payload: payload})
	return types.NewBackendError(backendName, "set", kind, key, err)
}

// Get returns the payload stored under (kind, key). Reads are strongly
// consistent.
func (b *Backend) Get(kind, key string) (string, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.open {
		return "", false, types.ErrDatastoreClosed
	}
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	k, err := b.key(b.recordPK(kind), key)
	if err != nil {
		return "", false, types.NewBackendError(backendName, "get", kind, key, err)
	}
	out, err := b.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(b.table),
		Key:            k,
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return "", false, types.NewBackendError(backendName, "get", kind, key, err)
	}
	if out.Item == nil {
		return "", false, nil
	}
	var it item
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return "", false, types.NewBackendError(backendName, "get", kind, key, err)
	}
	return it.Payload, true, nil
}

// Delete removes (kind, key). Deleting a missing item is not an error.
func (b *Backend) Delete(kind, key string) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.open {
		return types.ErrDatastoreClosed
	}
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	k, err := b.key(b.recordPK(kind), key)
	if err != nil {
		return types.NewBackendError(backendName, "delete", kind, key, err)
	}
	_, err = b.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(b.table),
		Key:       k,
	})
	return types.NewBackendError(backendName, "delete", kind, key, err)
}

// ScanKeys yields the keys of kind in sort-key order, one query page at a
// time.
func (b *Backend) ScanKeys(kind string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for sk, err := range b.partition(b.recordPK(kind)) {
			if err != nil {
				yield("", types.NewBackendError(backendName, "scan", kind, "", err))
				return
			}
			if !yield(sk, nil) {
				return
			}
		}
	}
}

// ListKinds returns every kind ever written, sorted.
func (b *Backend) ListKinds() ([]string, error) {
	kinds := []string{}
	for sk, err := range b.partition(b.kindsPK()) {
		if err != nil {
			return nil, types.NewBackendError(backendName, "kinds", "", "", err)
		}
		kinds = append(kinds, sk)
	}
	slices.Sort(kinds)
	return kinds, nil
}

// partition yields the sort keys stored under pk.
func (b *Backend) partition(pk string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		b.mu.RLock()
		if !b.open {
			b.mu.RUnlock()
			yield("", types.ErrDatastoreClosed)
			return
		}
		client := b.client
		b.mu.RUnlock()

		p := dynamodb.NewQueryPaginator(client, &dynamodb.QueryInput{
			TableName:              aws.String(b.table),
			KeyConditionExpression: aws.String("PK = :pk"),
			ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
				":pk": &ddbtypes.AttributeValueMemberS{Value: pk},
			},
			ProjectionExpression: aws.String("SK"),
			ConsistentRead:       aws.Bool(true),
			Limit:                aws.Int32(scanPageSize),
		})
		for p.HasMorePages() {
			page, err := b.nextPage(p)
			if err != nil {
				yield("", err)
				return
			}
			for _, raw := range page.Items {
				var k itemKey
				if err := attributevalue.UnmarshalMap(raw, &k); err != nil {
					yield("", err)
					return
				}
				if !yield(k.SK, nil) {
					return
				}
			}
		}
	}
}

func (b *Backend) nextPage(p *dynamodb.QueryPaginator) (*dynamodb.QueryOutput, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.open {
		return nil, types.ErrDatastoreClosed
	}
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	return p.NextPage(ctx)
}

// Close marks the backend closed. The SDK client holds no resources that
// need releasing. Close is idempotent.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.open = false
	return nil
}

