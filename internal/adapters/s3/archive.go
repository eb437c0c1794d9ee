package s3

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Archive stores exported sprint reports in a bucket.
type Archive struct {
	bucket string
	client *s3.Client
}

func NewArchive(
	ctx context.Context,
	region, endpoint, accessKey, secretKey, bucket string,
) (*Archive, error) {
	loadOpts := []func(*awsConfig.LoadOptions) error{
		awsConfig.WithRegion(region),
	}
	if accessKey != "" {
		loadOpts = append(loadOpts, awsConfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		))
	}

	cfg, err := awsConfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})

	return &Archive{bucket: bucket, client: client}, nil
}

func (a *Archive) PutCSV(ctx context.Context, objectKey string, payload []byte) error {
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(objectKey),
		Body:        bytes.NewReader(payload),
		ContentType: aws.String("text/csv"),
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", objectKey, err)
	}
	return nil
}

var unsafeKeyChars = regexp.MustCompile(`[^a-z0-9]+`)

// ObjectKey names an archived report: reports/{board}/{yyyy-mm-dd}/{sprint-slug}-{unix}.csv
func ObjectKey(boardID int64, sprintName string, at time.Time) string {
	slug := strings.Trim(unsafeKeyChars.ReplaceAllString(strings.ToLower(sprintName), "-"), "-")
	if slug == "" {
		slug = "sprint"
	}
	at = at.UTC()
	return fmt.Sprintf("reports/%d/%s/%s-%d.csv", boardID, at.Format("2006-01-02"), slug, at.Unix())
}
