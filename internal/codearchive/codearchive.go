// Package codearchive best-effort mirrors a function's source code to S3
// alongside the registry record, the way invoker's telemetry sink mirrors
// execution results: a write here never blocks or fails an invocation path,
// it only logs a warning on error (SPEC_FULL.md domain-stack wiring for
// config.S3Config).
package codearchive

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/oriys/barq/internal/config"
	"github.com/oriys/barq/internal/logging"
)

// Archiver uploads a function's source to an S3 bucket, keyed by function
// ID, whenever it is registered or updated. A nil *Archiver (returned when
// S3 is not configured) is a valid no-op.
type Archiver struct {
	client *s3.Client
	bucket string
	prefix string
}

// New builds an Archiver from cfg. It returns (nil, nil) when cfg.Bucket is
// empty, so callers can wire it unconditionally and treat a nil Archiver as
// disabled.
func New(ctx context.Context, cfg config.S3Config) (*Archiver, error) {
	if cfg.Bucket == "" {
		return nil, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("codearchive: load AWS config: %w", err)
	}

	return &Archiver{
		client: s3.NewFromConfig(awsCfg),
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
	}, nil
}

func (a *Archiver) key(funcID string) string {
	if a.prefix == "" {
		return funcID
	}
	return a.prefix + "/" + funcID
}

// Archive uploads code under the function's key. Call it fire-and-forget
// from a goroutine; it only returns an error for the synchronous caller
// that wants to log one.
func (a *Archiver) Archive(ctx context.Context, funcID, code string) error {
	if a == nil {
		return nil
	}
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(a.key(funcID)),
		Body:   bytes.NewReader([]byte(code)),
	})
	if err != nil {
		return fmt.Errorf("codearchive: put object: %w", err)
	}
	return nil
}

// ArchiveAsync runs Archive in the background and logs a warning on
// failure, mirroring the invoker's treatment of telemetry sink errors:
// archival is a convenience, never a blocking dependency of registration.
func (a *Archiver) ArchiveAsync(funcID, code string) {
	if a == nil {
		return
	}
	go func() {
		if err := a.Archive(context.Background(), funcID, code); err != nil {
			logging.Op().Warn("codearchive: archive failed", "func_id", funcID, "err", err)
		}
	}()
}
