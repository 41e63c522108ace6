package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"

	"github.com/shaiso/Vetflow/internal/domain"

	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"
)

// Ошибки архива.
var (
	ErrBucketRequired = errors.New("bucket is required")
	ErrNotFound       = errors.New("archive object not found")
)

// Archiver хранит итоговые документы discharge в object storage:
// результаты orchestration и тексты выписок.
//
// Ключи:
//
//	{prefix}results/{clinic}/{key}.json
//	{prefix}summaries/{case_id}/{summary_id}.json
type Archiver struct {
	bucket *blob.Bucket
	prefix string
}

// Open открывает bucket по URL (s3://, file://, mem://).
func Open(ctx context.Context, bucketURL, prefix string) (*Archiver, error) {
	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, fmt.Errorf("open bucket %s: %w", bucketURL, err)
	}
	return New(bucket, prefix)
}

// New создаёт Archiver поверх открытого bucket.
func New(bucket *blob.Bucket, prefix string) (*Archiver, error) {
	if bucket == nil {
		return nil, ErrBucketRequired
	}
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &Archiver{bucket: bucket, prefix: prefix}, nil
}

// ResultRecord — архивная запись orchestration.
type ResultRecord struct {
	Key      string                       `json:"key"`
	ClinicID string                       `json:"clinic_id"`
	UserID   string                       `json:"user_id"`
	Request  *domain.OrchestrationRequest `json:"request,omitempty"`
	Result   *domain.OrchestrationResult  `json:"result"`
}

// SaveResult сохраняет результат orchestration под ключом key.
func (a *Archiver) SaveResult(ctx context.Context, rec *ResultRecord) error {
	if rec == nil || rec.Result == nil {
		return errors.New("result record is required")
	}
	return a.put(ctx, a.resultKey(rec.ClinicID, rec.Key), rec)
}

// LoadResult читает результат orchestration.
func (a *Archiver) LoadResult(ctx context.Context, clinicID, key string) (*ResultRecord, error) {
	var rec ResultRecord
	if err := a.get(ctx, a.resultKey(clinicID, key), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// SaveSummary сохраняет копию выписки.
func (a *Archiver) SaveSummary(ctx context.Context, s *domain.DischargeSummary) error {
	if s == nil {
		return errors.New("summary is required")
	}
	return a.put(ctx, a.summaryKey(s.CaseID, s.ID), s)
}

// LoadSummary читает копию выписки.
func (a *Archiver) LoadSummary(ctx context.Context, caseID, summaryID uuid.UUID) (*domain.DischargeSummary, error) {
	var s domain.DischargeSummary
	if err := a.get(ctx, a.summaryKey(caseID, summaryID), &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Close закрывает bucket.
func (a *Archiver) Close() error {
	return a.bucket.Close()
}

func (a *Archiver) put(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	opts := &blob.WriterOptions{ContentType: "application/json"}
	if err := a.bucket.WriteAll(ctx, key, data, opts); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

func (a *Archiver) get(ctx context.Context, key string, v any) error {
	data, err := a.bucket.ReadAll(ctx, key)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return ErrNotFound
		}
		return fmt.Errorf("read %s: %w", key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshal %s: %w", key, err)
	}
	return nil
}

func (a *Archiver) resultKey(clinicID, key string) string {
	return a.prefix + "results/" + clinicID + "/" + key + ".json"
}

func (a *Archiver) summaryKey(caseID, summaryID uuid.UUID) string {
	return a.prefix + "summaries/" + caseID.String() + "/" + summaryID.String() + ".json"
}
