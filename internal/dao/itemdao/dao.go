// Package itemdao records the audit trail of work items as they are
// dispatched and processed. Nothing reads the ledger to make decisions.
package itemdao

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/savaki/ddb/v2"
	"github.com/savaki/stage-pipeline/internal/pipeline"
)

// TableName returns the default ledger table for env
func TableName(env string) string {
	return fmt.Sprintf("stage-pipeline-%s-items", env)
}

// PK represents a DynamoDB partition key in format {bucket}/{fileName}
// Example: extract-data-prd/x.csv
type PK string

// NewPK creates a new partition key from bucket and fileName
func NewPK(bucket, fileName string) PK {
	return PK(fmt.Sprintf("%s/%s", bucket, fileName))
}

// ParsePK parses a partition key into its bucket and fileName components
func ParsePK(pk PK) (bucket, fileName string, err error) {
	bucket, fileName, ok := strings.Cut(string(pk), "/")
	if !ok || bucket == "" || fileName == "" || strings.Contains(fileName, "/") {
		return "", "", fmt.Errorf("invalid PK format: %s, expected {bucket}/{fileName}", pk)
	}
	return bucket, fileName, nil
}

// String returns the string representation of the partition key
func (pk PK) String() string {
	return string(pk)
}

// ID represents a ledger entry in format {bucket}/{fileName}:{ksuid}
// Example: extract-data-prd/x.csv:2HFj3kLmNoPqRsTuVwXy
type ID string

func (id ID) String() string {
	return string(id)
}

// NewID constructs an ID from partition key and sort key
func NewID(pk PK, sk string) ID {
	return ID(fmt.Sprintf("%s:%s", pk, sk))
}

// ParseID parses an ID into its partition key (pk) and sort key (sk) components
func ParseID(id ID) (pk PK, sk string, err error) {
	s := string(id)
	i := strings.LastIndex(s, ":")
	if i <= 0 || i == len(s)-1 {
		return "", "", fmt.Errorf("invalid item ID format: %s, expected {bucket}/{fileName}:{ksuid}", s)
	}
	return PK(s[:i]), s[i+1:], nil
}

// State is the lifecycle state of one dispatch attempt
type State string

const (
	StateClaimed   State = "CLAIMED"    // moved to InProgress
	StateLaunched  State = "LAUNCHED"   // worker task started
	StateProcessed State = "PROCESSED"  // outputs written and input moved to Done
	StateHandedOff State = "HANDED_OFF" // next stage accepted the trigger
	StateFailed    State = "FAILED"
)

// Terminal reports whether no further transitions are expected
func (s State) Terminal() bool {
	return s == StateHandedOff || s == StateFailed
}

// Record represents one dispatch attempt of a work item
type Record struct {
	PK         PK      `ddb:"hash" dynamodbav:"pk"`  // {bucket}/{fileName}
	SK         string  `ddb:"range" dynamodbav:"sk"` // KSUID, one per dispatch attempt
	Bucket     string  `dynamodbav:"bucket,omitempty"`
	FileName   string  `dynamodbav:"file_name,omitempty"`
	Key        string  `dynamodbav:"key,omitempty"` // key at the time of the last transition
	State      State   `dynamodbav:"state,omitempty"`
	TaskArn    *string `dynamodbav:"task_arn,omitempty"`
	ErrorMsg   *string `dynamodbav:"error_msg,omitempty"`
	CreatedAt  int64   `dynamodbav:"created_at,omitempty"`
	UpdatedAt  int64   `dynamodbav:"updated_at,omitempty"`
	FinishedAt *int64  `dynamodbav:"finished_at,omitempty"`
}

// GetID returns the full ID in format: {bucket}/{fileName}:{ksuid}
func (r *Record) GetID() ID {
	return NewID(r.PK, r.SK)
}

// CreateInput contains the fields needed to create a ledger entry
type CreateInput struct {
	Item  pipeline.WorkItem
	SK    string // KSUID sort key, usually the dispatch id
	State State
}

// UpdateInput contains the fields that can be updated on a ledger entry
type UpdateInput struct {
	PK       PK
	SK       string
	State    State
	Key      string  // optional
	TaskArn  *string // optional
	ErrorMsg *string // optional
}

// Ledger is the write side of the DAO used by the dispatcher and worker
type Ledger interface {
	Create(ctx context.Context, input CreateInput) (Record, error)
	UpdateState(ctx context.Context, input UpdateInput) error
}

// Nop is a Ledger that records nothing
type Nop struct{}

func (Nop) Create(_ context.Context, input CreateInput) (Record, error) {
	return Record{
		PK:       NewPK(input.Item.Bucket, input.Item.FileName()),
		SK:       input.SK,
		Bucket:   input.Item.Bucket,
		FileName: input.Item.FileName(),
		Key:      input.Item.Key,
		State:    input.State,
	}, nil
}

func (Nop) UpdateState(context.Context, UpdateInput) error { return nil }

// DAO provides data access operations for ledger records
type DAO struct {
	db    *ddb.DDB
	table *ddb.Table
}

// New creates a new DAO instance
func New(client *dynamodb.Client, tableName string) *DAO {
	db := ddb.New(client)
	table := db.MustTable(tableName, &Record{})
	return &DAO{
		db:    db,
		table: table,
	}
}

// Create writes a new ledger entry
func (d *DAO) Create(ctx context.Context, input CreateInput) (Record, error) {
	if input.SK == "" {
		return Record{}, fmt.Errorf("sk is required")
	}
	if input.State == "" {
		input.State = StateClaimed
	}

	now := time.Now().Unix()
	record := Record{
		PK:        NewPK(input.Item.Bucket, input.Item.FileName()),
		SK:        input.SK,
		Bucket:    input.Item.Bucket,
		FileName:  input.Item.FileName(),
		Key:       input.Item.Key,
		State:     input.State,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if input.State.Terminal() {
		record.FinishedAt = &now
	}

	err := d.table.Put(&record).RunWithContext(ctx)
	if err != nil {
		return Record{}, fmt.Errorf("failed to create item record: %w", err)
	}

	return record, nil
}

// Find retrieves a ledger entry by ID
func (d *DAO) Find(ctx context.Context, id ID) (Record, error) {
	pk, sk, err := ParseID(id)
	if err != nil {
		return Record{}, err
	}

	var record Record

	err = d.table.Get(pk.String()).
		Range(sk).
		ConsistentRead(true).
		ScanWithContext(ctx, &record)
	if err != nil {
		errStr := err.Error()
		if strings.Contains(errStr, "item not found") || strings.Contains(errStr, "ItemNotFound") {
			return Record{}, fmt.Errorf("item record not found: %s", id)
		}
		return Record{}, fmt.Errorf("failed to find item record: %w", err)
	}

	if record.PK == "" && record.SK == "" {
		return Record{}, fmt.Errorf("item record not found: %s", id)
	}

	return record, nil
}

// UpdateState moves a ledger entry to a new state
func (d *DAO) UpdateState(ctx context.Context, input UpdateInput) error {
	if input.State == "" {
		return fmt.Errorf("state is required")
	}

	now := time.Now().Unix()

	update := d.table.Update(input.PK.String()).
		Range(input.SK).
		Set("#State = ?", string(input.State)).
		Set("#UpdatedAt = ?", now)

	if input.State.Terminal() {
		update = update.Set("#FinishedAt = ?", now)
	}
	if input.Key != "" {
		update = update.Set("#Key = ?", input.Key)
	}
	if input.TaskArn != nil {
		update = update.Set("#TaskArn = ?", *input.TaskArn)
	}
	if input.ErrorMsg != nil {
		update = update.Set("#ErrorMsg = ?", *input.ErrorMsg)
	}

	if err := update.RunWithContext(ctx); err != nil {
		return fmt.Errorf("failed to update item record: %w", err)
	}

	return nil
}

// Query returns every dispatch attempt for a partition key, oldest first
func (d *DAO) Query(ctx context.Context, pk PK) ([]Record, error) {
	var records []Record

	err := d.table.Query("#PK = ?", pk.String()).
		FindAllWithContext(ctx, &records)
	if err != nil {
		return nil, fmt.Errorf("failed to query item records: %w", err)
	}

	return records, nil
}

// QueryByFile returns every dispatch attempt for fileName in bucket
func (d *DAO) QueryByFile(ctx context.Context, bucket, fileName string) ([]Record, error) {
	return d.Query(ctx, NewPK(bucket, fileName))
}
