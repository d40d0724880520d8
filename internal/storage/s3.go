package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsretry "github.com/aws/aws-sdk-go-v2/aws/retry"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"golang.org/x/sync/semaphore"

	"github.com/ao3vault/vault/internal/fileinfo"
	"github.com/ao3vault/vault/internal/logging"
	"github.com/ao3vault/vault/internal/pathutil"
)

// defaultS3Concurrency bounds the number of in-flight requests a single
// S3Backend will issue at once.
const defaultS3Concurrency = 100

// S3Config describes how to construct an S3-compatible backend.
type S3Config struct {
	// Name is the backend's stable identifier.
	Name string
	// Bucket is the target bucket.
	Bucket string
	// Prefix is prepended to every key; it is normalized (no leading or
	// trailing slash) on construction.
	Prefix string
	// Region is the bucket's region.
	Region string
	// Endpoint optionally overrides the default AWS endpoint, for
	// S3-compatible services (MinIO, R2, etc.).
	Endpoint string
	// AccessKeyID and SecretAccessKey are explicit static credentials.
	AccessKeyID     string
	SecretAccessKey string
	// PathStyle forces path-style bucket addressing rather than
	// virtual-hosted-style, required by most non-AWS S3-compatible
	// services.
	PathStyle bool
	// MaxConcurrency bounds in-flight requests; defaults to
	// defaultS3Concurrency when zero.
	MaxConcurrency int64
}

// S3Backend is a storage backend over an S3-compatible object store.
type S3Backend struct {
	name      string
	bucket    string
	prefix    string
	client    *s3.Client
	semaphore *semaphore.Weighted
	logger    *logging.Logger
}

// NewS3Backend constructs an S3Backend from explicit configuration,
// including a standard retry policy with exponential backoff (at least
// four attempts).
func NewS3Backend(cfg S3Config, logger *logging.Logger) (*S3Backend, error) {
	concurrency := cfg.MaxConcurrency
	if concurrency <= 0 {
		concurrency = defaultS3Concurrency
	}

	options := s3.Options{
		Region:           cfg.Region,
		UsePathStyle:     cfg.PathStyle,
		RetryMaxAttempts: 4,
		RetryMode:        aws.RetryModeStandard,
		Retryer: awsretry.NewStandard(func(ro *awsretry.StandardOptions) {
			ro.MaxAttempts = 4
		}),
	}
	if cfg.AccessKeyID != "" {
		options.Credentials = credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.SecretAccessKey, "")
	}
	if cfg.Endpoint != "" {
		options.BaseEndpoint = aws.String(cfg.Endpoint)
	}

	client := s3.New(options)

	return &S3Backend{
		name:      cfg.Name,
		bucket:    cfg.Bucket,
		prefix:    strings.Trim(cfg.Prefix, "/"),
		client:    client,
		semaphore: semaphore.NewWeighted(concurrency),
		logger:    logger,
	}, nil
}

// Name implements Backend.Name.
func (b *S3Backend) Name() string { return b.name }

// key computes the full object key for a validated relative path.
func (b *S3Backend) key(path string) (string, error) {
	validated, err := pathutil.Validate(path)
	if err != nil {
		return "", &Error{Kind: ErrorKindInvalidPath, Target: b.name, Path: path, Cause: breadcrumb(err)}
	}
	if b.prefix == "" {
		return validated, nil
	}
	return b.prefix + "/" + validated, nil
}

// acquire bounds concurrent in-flight requests via the backend's
// semaphore.
func (b *S3Backend) acquire(ctx context.Context) error {
	return b.semaphore.Acquire(ctx, 1)
}

func (b *S3Backend) release() {
	b.semaphore.Release(1)
}

// ListStream implements Backend.ListStream using paginated ListObjectsV2.
func (b *S3Backend) ListStream(ctx context.Context, prefix string) <-chan Entry {
	out := make(chan Entry)
	go func() {
		defer close(out)

		listPrefix := b.prefix
		if prefix != "" {
			resolvedPrefix, err := b.key(prefix)
			if err != nil {
				select {
				case out <- Entry{Err: err}:
				case <-ctx.Done():
				}
				return
			}
			listPrefix = resolvedPrefix
		}

		if err := b.acquire(ctx); err != nil {
			return
		}
		paginator := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
			Bucket: aws.String(b.bucket),
			Prefix: aws.String(listPrefix),
		})
		b.release()

		for paginator.HasMorePages() {
			if err := b.acquire(ctx); err != nil {
				return
			}
			page, err := paginator.NextPage(ctx)
			b.release()
			if err != nil {
				select {
				case out <- Entry{Err: b.translate("", err)}:
				case <-ctx.Done():
					return
				}
				return
			}
			for _, obj := range page.Contents {
				key := aws.ToString(obj.Key)
				relative := b.stripPrefix(key)
				if relative == "" {
					continue
				}
				meta, err := fileinfo.NewMeta(
					b.name, relative, detectCompression(relative),
					aws.ToInt64(obj.Size), aws.ToTime(obj.LastModified).UTC())
				if err != nil {
					select {
					case out <- Entry{Err: err}:
					case <-ctx.Done():
						return
					}
					continue
				}
				select {
				case out <- Entry{Info: fileinfo.Discovered{Meta: meta}}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

func (b *S3Backend) stripPrefix(key string) string {
	if b.prefix == "" {
		return key
	}
	trimmed := strings.TrimPrefix(key, b.prefix+"/")
	if trimmed == key {
		return ""
	}
	return trimmed
}

// List implements Backend.List.
func (b *S3Backend) List(ctx context.Context, prefix string) ([]fileinfo.Discovered, error) {
	var results []fileinfo.Discovered
	for entry := range b.ListStream(ctx, prefix) {
		if entry.Err != nil {
			return nil, entry.Err
		}
		results = append(results, entry.Info)
	}
	return results, nil
}

// Exists implements Backend.Exists using a head-object request.
func (b *S3Backend) Exists(ctx context.Context, path string) (bool, error) {
	_, err := b.headObject(ctx, path)
	if err != nil {
		if IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (b *S3Backend) headObject(ctx context.Context, path string) (*s3.HeadObjectOutput, error) {
	key, err := b.key(path)
	if err != nil {
		return nil, err
	}
	if err := b.acquire(ctx); err != nil {
		return nil, &Error{Kind: ErrorKindIO, Target: b.name, Path: path, Cause: breadcrumb(err)}
	}
	defer b.release()
	out, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, b.translate(path, err)
	}
	return out, nil
}

// Stat implements Backend.Stat using a head-object request.
func (b *S3Backend) Stat(ctx context.Context, path string) (fileinfo.Discovered, error) {
	out, err := b.headObject(ctx, path)
	if err != nil {
		return fileinfo.Discovered{}, err
	}
	meta, err := fileinfo.NewMeta(b.name, path, detectCompression(path),
		aws.ToInt64(out.ContentLength), aws.ToTime(out.LastModified).UTC())
	if err != nil {
		return fileinfo.Discovered{}, err
	}
	return fileinfo.Discovered{Meta: meta}, nil
}

// Read implements Backend.Read.
func (b *S3Backend) Read(ctx context.Context, path string) ([]byte, error) {
	r, err := b.Reader(ctx, path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &Error{Kind: ErrorKindIO, Target: b.name, Path: path, Cause: breadcrumb(err)}
	}
	return data, nil
}

// ReadHead implements Backend.ReadHead using a byte-range request.
func (b *S3Backend) ReadHead(ctx context.Context, path string, n int) ([]byte, error) {
	key, err := b.key(path)
	if err != nil {
		return nil, err
	}
	if err := b.acquire(ctx); err != nil {
		return nil, &Error{Kind: ErrorKindIO, Target: b.name, Path: path, Cause: breadcrumb(err)}
	}
	defer b.release()
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
		Range:  aws.String(fmt.Sprintf("bytes=0-%d", n-1)),
	})
	if err != nil {
		return nil, b.translate(path, err)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, &Error{Kind: ErrorKindIO, Target: b.name, Path: path, Cause: breadcrumb(err)}
	}
	return data, nil
}

// Reader implements Backend.Reader.
func (b *S3Backend) Reader(ctx context.Context, path string) (io.ReadCloser, error) {
	key, err := b.key(path)
	if err != nil {
		return nil, err
	}
	if err := b.acquire(ctx); err != nil {
		return nil, &Error{Kind: ErrorKindIO, Target: b.name, Path: path, Cause: breadcrumb(err)}
	}
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		b.release()
		return nil, b.translate(path, err)
	}
	return &releasingReadCloser{ReadCloser: out.Body, release: b.release}, nil
}

// releasingReadCloser releases the backend's semaphore slot when the
// reader is closed, keeping the slot held for the lifetime of the stream
// rather than just the initial request.
type releasingReadCloser struct {
	io.ReadCloser
	release func()
}

func (r *releasingReadCloser) Close() error {
	defer r.release()
	return r.ReadCloser.Close()
}

// Write implements Backend.Write.
func (b *S3Backend) Write(ctx context.Context, path string, data []byte) error {
	key, err := b.key(path)
	if err != nil {
		return err
	}
	if err := b.acquire(ctx); err != nil {
		return &Error{Kind: ErrorKindIO, Target: b.name, Path: path, Cause: breadcrumb(err)}
	}
	defer b.release()
	_, err = b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return b.translate(path, err)
	}
	return nil
}

// Writer implements Backend.Writer. The returned writer buffers bytes in
// memory and uploads them in a single PutObject call on Close, since S3
// has no append semantics; the caller must Close to finalize the write.
func (b *S3Backend) Writer(ctx context.Context, path string) (io.WriteCloser, error) {
	return &s3Writer{ctx: ctx, backend: b, path: path}, nil
}

type s3Writer struct {
	ctx     context.Context
	backend *S3Backend
	path    string
	buffer  bytes.Buffer
}

func (w *s3Writer) Write(p []byte) (int, error) {
	return w.buffer.Write(p)
}

func (w *s3Writer) Close() error {
	return w.backend.Write(w.ctx, w.path, w.buffer.Bytes())
}

// Delete implements Backend.Delete.
func (b *S3Backend) Delete(ctx context.Context, path string) error {
	key, err := b.key(path)
	if err != nil {
		return err
	}
	exists, err := b.Exists(ctx, path)
	if err != nil {
		return err
	}
	if !exists {
		return &Error{Kind: ErrorKindNotFound, Target: b.name, Path: path}
	}
	if err := b.acquire(ctx); err != nil {
		return &Error{Kind: ErrorKindIO, Target: b.name, Path: path, Cause: breadcrumb(err)}
	}
	defer b.release()
	_, err = b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return b.translate(path, err)
	}
	return nil
}

// Rename implements Backend.Rename as copy-then-delete, which is the only
// option S3 offers; it is not atomic. If the delete of the source fails
// after a successful copy, the duplicate is tolerated (logged as a
// warning) rather than treating the rename as failed: a stray copy is
// recoverable, a silently lost file is not.
func (b *S3Backend) Rename(ctx context.Context, from, to string) error {
	fromKey, err := b.key(from)
	if err != nil {
		return err
	}
	toKey, err := b.key(to)
	if err != nil {
		return err
	}

	if err := b.acquire(ctx); err != nil {
		return &Error{Kind: ErrorKindIO, Target: b.name, Path: from, Cause: breadcrumb(err)}
	}
	source := fmt.Sprintf("%s/%s", b.bucket, fromKey)
	_, err = b.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(b.bucket),
		Key:        aws.String(toKey),
		CopySource: aws.String(source),
	})
	b.release()
	if err != nil {
		return b.translate(from, err)
	}

	if err := b.Delete(ctx, from); err != nil {
		b.logger.Warnf("rename %s -> %s: copy succeeded but delete of source failed: %v", from, to, err)
	}
	return nil
}

// translate maps an AWS SDK error into the canonical storage taxonomy.
func (b *S3Backend) translate(path string, err error) error {
	if err == nil {
		return nil
	}
	var notFound *types.NoSuchKey
	var notFound2 *types.NotFound
	if errors.As(err, &notFound) || errors.As(err, &notFound2) {
		return &Error{Kind: ErrorKindNotFound, Target: b.name, Path: path, Cause: breadcrumb(err)}
	}
	var respErr interface{ HTTPStatusCode() int }
	if errors.As(err, &respErr) {
		switch respErr.HTTPStatusCode() {
		case 404:
			return &Error{Kind: ErrorKindNotFound, Target: b.name, Path: path, Cause: breadcrumb(err)}
		case 403, 401:
			return &Error{Kind: ErrorKindPermissionDenied, Target: b.name, Path: path, Cause: breadcrumb(err)}
		}
	}
	return &Error{Kind: ErrorKindNetwork, Target: b.name, Path: path, Cause: breadcrumb(err)}
}
