// archive хранит сырые тела webhook-событий провайдера в MinIO/S3.
// Архив нужен для разбора инцидентов и ручной переобработки доставок.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	mclient "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/pribylovaa/flexibill/internal/config"
)

// MinioArchive — адаптер MinIO для архива webhook-событий.
type MinioArchive struct {
	client *mclient.Client
	bucket string
}

// New создаёт клиента MinIO.
// Убирает схему из endpoint, подбирает Secure по схеме и выполняет
// fail-fast-проверку наличия бакета.
func New(ctx context.Context, cfg config.S3Config) (*MinioArchive, error) {
	const op = "archive.minio.New"

	endpoint := cfg.Endpoint
	secure := strings.HasPrefix(endpoint, "https://")

	if u, err := url.Parse(endpoint); err == nil && u.Scheme != "" && u.Host != "" {
		endpoint = u.Host
		secure = u.Scheme == "https"
	}

	client, err := mclient.New(endpoint, &mclient.Options{
		Creds:  credentials.NewStaticV4(cfg.RootUser, cfg.RootPassword, ""),
		Secure: secure,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if !exists {
		return nil, fmt.Errorf("%s: bucket %q does not exist", op, cfg.Bucket)
	}

	return &MinioArchive{client: client, bucket: cfg.Bucket}, nil
}

// Put сохраняет payload под ключом key как application/json.
func (a *MinioArchive) Put(ctx context.Context, key string, payload []byte) error {
	const op = "archive.minio.Put"

	_, err := a.client.PutObject(ctx, a.bucket, key, bytes.NewReader(payload), int64(len(payload)),
		mclient.PutObjectOptions{ContentType: "application/json"},
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Get читает ранее сохранённый payload.
func (a *MinioArchive) Get(ctx context.Context, key string) ([]byte, error) {
	const op = "archive.minio.Get"

	obj, err := a.client.GetObject(ctx, a.bucket, key, mclient.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer obj.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(obj); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return buf.Bytes(), nil
}
