package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rotisserie/eris"

	"github.com/bryanwahyu/bito-analyst/internal/domain/analysis"
)

// ReportStore keeps completed analyses as JSON objects in a MinIO/S3 bucket.
type ReportStore struct {
	client     *minio.Client
	bucketName string
	presignTTL time.Duration
}

type Options struct {
	Endpoint   string
	Region     string
	Bucket     string
	AccessKey  string
	SecretKey  string
	UseSSL     bool
	PresignTTL time.Duration
}

// New buat koneksi MinIO
func New(ctx context.Context, o Options) (*ReportStore, error) {
	cli, err := minio.New(o.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(o.AccessKey, o.SecretKey, ""),
		Secure: o.UseSSL,
		Region: o.Region,
	})
	if err != nil {
		return nil, eris.Wrap(err, "minio: new client")
	}

	// pastikan bucket ada
	exists, err := cli.BucketExists(ctx, o.Bucket)
	if err != nil {
		return nil, eris.Wrapf(err, "minio: check bucket %s", o.Bucket)
	}
	if !exists {
		if err := cli.MakeBucket(ctx, o.Bucket, minio.MakeBucketOptions{Region: o.Region}); err != nil {
			return nil, eris.Wrapf(err, "minio: make bucket %s", o.Bucket)
		}
	}

	ttl := o.PresignTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &ReportStore{client: cli, bucketName: o.Bucket, presignTTL: ttl}, nil
}

// ReportKey is the object key of an analysis report.
func ReportKey(id int64) string {
	return fmt.Sprintf("analyses/%d/report.json", id)
}

// Archive uploads the analysis, snapshot included, and returns the object key.
func (s *ReportStore) Archive(ctx context.Context, a *analysis.Analysis) (string, error) {
	body, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return "", eris.Wrap(err, "minio: marshal report")
	}
	key := ReportKey(a.ID)
	_, err = s.client.PutObject(ctx, s.bucketName, key, bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return "", eris.Wrapf(err, "minio: put %s", key)
	}
	return key, nil
}

// URL presigns a GET for the report. Private buckets need this, a plain
// endpoint URL would be rejected.
func (s *ReportStore) URL(ctx context.Context, id int64) (string, error) {
	key := ReportKey(id)
	if _, err := s.client.StatObject(ctx, s.bucketName, key, minio.StatObjectOptions{}); err != nil {
		if isNotFound(err) {
			return "", analysis.ErrNotFound
		}
		return "", eris.Wrapf(err, "minio: stat %s", key)
	}

	params := url.Values{}
	params.Set("response-content-disposition", fmt.Sprintf(`attachment; filename="analysis-%d.json"`, id))
	u, err := s.client.PresignedGetObject(ctx, s.bucketName, key, s.presignTTL, params)
	if err != nil {
		return "", eris.Wrapf(err, "minio: presign %s", key)
	}
	return u.String(), nil
}

// Remove deletes the report. Missing objects are not an error.
func (s *ReportStore) Remove(ctx context.Context, id int64) error {
	key := ReportKey(id)
	err := s.client.RemoveObject(ctx, s.bucketName, key, minio.RemoveObjectOptions{})
	if err != nil && !isNotFound(err) {
		return eris.Wrapf(err, "minio: remove %s", key)
	}
	return nil
}

func isNotFound(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound
}
