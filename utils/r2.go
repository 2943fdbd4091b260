// utils/r2.go
package utils

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

var ErrStorageDisabled = errors.New("icon storage is not configured")
var ErrUnsupportedIcon = errors.New("icon must be a png, jpeg, webp, gif or svg image")

var r2Client *s3.Client
var r2Bucket string
var cdnBaseURL string

var iconTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".webp": "image/webp",
	".gif":  "image/gif",
	".svg":  "image/svg+xml",
}

// InitR2 configures the Cloudflare R2 client. Without R2_BUCKET_NAME the
// client stays disabled and uploads return ErrStorageDisabled.
func InitR2(ctx context.Context) error {
	r2Bucket = os.Getenv("R2_BUCKET_NAME")
	if r2Bucket == "" {
		return nil
	}
	accountID := os.Getenv("CLOUDFLARE_ACCOUNT_ID")
	accessKeyID := os.Getenv("R2_ACCESS_KEY_ID")
	accessKeySecret := os.Getenv("R2_ACCESS_KEY_SECRET")
	if accountID == "" || accessKeyID == "" || accessKeySecret == "" {
		return fmt.Errorf("R2_BUCKET_NAME set but CLOUDFLARE_ACCOUNT_ID / R2 credentials missing")
	}

	endpoint := fmt.Sprintf("https://%s.r2.cloudflarestorage.com", accountID)
	cdnBaseURL = strings.TrimRight(os.Getenv("CDN_BASE_URL"), "/")
	if cdnBaseURL == "" {
		cdnBaseURL = endpoint + "/" + r2Bucket
	}

	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion("auto"),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			accessKeyID, accessKeySecret, "",
		)),
	)
	if err != nil {
		return fmt.Errorf("failed to load R2 config: %w", err)
	}

	r2Client = s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
	})
	return nil
}

func R2Enabled() bool {
	return r2Client != nil
}

// UploadAchievementIcon stores an icon under achievements/icons/ and returns its public URL.
func UploadAchievementIcon(ctx context.Context, fileHeader *multipart.FileHeader) (string, error) {
	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	contentType, ok := iconTypes[ext]
	if !ok {
		return "", ErrUnsupportedIcon
	}
	return UploadFileToR2(ctx, fileHeader, "achievements/icons/"+uuid.NewString()+ext, contentType)
}

// UploadFileToR2 uploads a multipart file to R2 and returns the public URL.
func UploadFileToR2(ctx context.Context, fileHeader *multipart.FileHeader, key, contentType string) (string, error) {
	if r2Client == nil {
		return "", ErrStorageDisabled
	}

	file, err := fileHeader.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	_, err = r2Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(r2Bucket),
		Key:           aws.String(key),
		Body:          file,
		ContentLength: aws.Int64(fileHeader.Size),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to R2: %w", err)
	}

	return fmt.Sprintf("%s/%s", cdnBaseURL, key), nil
}
