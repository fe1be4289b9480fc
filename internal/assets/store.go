// Package assets хранит PDF счетов в S3-совместимом хранилище (AWS S3, MinIO).
package assets

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/magabrotheeeer/billdesk/internal/config"
)

// ContentType тип загружаемых файлов.
const ContentType = "application/pdf"

var (
	loadDefaultAWSConfig = awsconfig.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

// Asset описывает загруженный файл.
type Asset struct {
	URL      string
	PublicID string
}

// ObjectAPI часть клиента S3, которой пользуется Store.
type ObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Store загружает и удаляет PDF в бакете.
type Store struct {
	client  ObjectAPI
	bucket  string
	folder  string
	baseURL string
}

// New создает клиента S3 по настройкам. Для MinIO задается Endpoint,
// адресация бакета тогда идет через путь.
func New(ctx context.Context, cfg config.Assets) (*Store, error) {
	const op = "assets.New"

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	client := newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
	})

	return NewWithClient(client, cfg.Bucket, cfg.Folder, publicBaseURL(cfg)), nil
}

// NewWithClient собирает Store поверх готового клиента.
func NewWithClient(client ObjectAPI, bucket, folder, baseURL string) *Store {
	return &Store{
		client:  client,
		bucket:  bucket,
		folder:  strings.Trim(folder, "/"),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

func publicBaseURL(cfg config.Assets) string {
	switch {
	case cfg.PublicBaseURL != "":
		return cfg.PublicBaseURL
	case cfg.Endpoint != "":
		return strings.TrimRight(cfg.Endpoint, "/") + "/" + cfg.Bucket
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
	}
}

// URL строит публичную ссылку на объект.
func (s *Store) URL(publicID string) string {
	parts := strings.Split(publicID, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return s.baseURL + "/" + strings.Join(parts, "/")
}

// Upload кладет blob под ключом publicID.
func (s *Store) Upload(ctx context.Context, blob []byte, publicID string) (*Asset, error) {
	const op = "assets.Upload"
	if len(blob) == 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrEmptyBlob)
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(publicID),
		Body:          bytes.NewReader(blob),
		ContentType:   aws.String(ContentType),
		ContentLength: aws.Int64(int64(len(blob))),
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Asset{URL: s.URL(publicID), PublicID: publicID}, nil
}

// Destroy удаляет объект. Удаление отсутствующего объекта не ошибка.
func (s *Store) Destroy(ctx context.Context, publicID string) error {
	const op = "assets.Destroy"
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(publicID),
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
