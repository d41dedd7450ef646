package services

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/google/uuid"

	"github.com/paperclip/paperclip/internal/common"
	"github.com/paperclip/paperclip/internal/dbx"
	sc "github.com/paperclip/paperclip/internal/server/config"
	"github.com/paperclip/paperclip/internal/server/models"
	"github.com/paperclip/paperclip/internal/server/repositories/repomanager"
)

const (
	DefaultConversationTitle = "New conversation"
	ExportURLValidity        = 15 * time.Minute
	maxTitleLength           = 200
	maxContentLength         = 32_000
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		return c.PutObject(ctx, in, optFns...)
	}

	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

// ConversationService manages a user's conversations and their messages.
// A conversation owned by someone else is reported as common.ErrorNotFound.
type ConversationService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	config      *sc.Config
	now         func() time.Time
}

func NewConversationService(db *sql.DB, m repomanager.RepositoryManager, cfg *sc.Config) *ConversationService {
	return &ConversationService{
		db:          db,
		repomanager: m,
		config:      cfg,
		now:         time.Now,
	}
}

func (s *ConversationService) Create(ctx context.Context, userID, title string) (*models.Conversation, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = DefaultConversationTitle
	}
	if err := validation.Validate(title, validation.RuneLength(1, maxTitleLength)); err != nil {
		return nil, fmt.Errorf("%w: title %v", common.ErrorValidation, err)
	}

	c, err := s.repomanager.Conversations(s.db).Create(ctx, &models.Conversation{UserID: userID, Title: title})
	if err != nil {
		return nil, fmt.Errorf("error creating conversation: %w", err)
	}
	return c, nil
}

func (s *ConversationService) List(ctx context.Context, userID string) ([]*models.Conversation, error) {
	return s.repomanager.Conversations(s.db).ListByUser(ctx, userID)
}

func (s *ConversationService) Get(ctx context.Context, userID, id string) (*models.Conversation, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, common.ErrorNotFound
	}
	return s.repomanager.Conversations(s.db).Get(ctx, id, userID)
}

func (s *ConversationService) Delete(ctx context.Context, userID, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return common.ErrorNotFound
	}
	return s.repomanager.Conversations(s.db).Delete(ctx, id, userID)
}

// Messages returns the whole transcript of a conversation, oldest first.
func (s *ConversationService) Messages(ctx context.Context, userID, id string) ([]*models.Message, error) {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return nil, err
	}
	return s.repomanager.Messages(s.db).ListByConversation(ctx, id)
}

// Recent returns up to limit of the newest messages, oldest first.
func (s *ConversationService) Recent(ctx context.Context, userID, id string, limit int) ([]*models.Message, error) {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return nil, err
	}
	return s.repomanager.Messages(s.db).ListRecent(ctx, id, limit)
}

// AppendMessage stores a turn and bumps the conversation's updated_at in one
// transaction.
func (s *ConversationService) AppendMessage(ctx context.Context, userID, id, role, content, tool string) (*models.Message, error) {
	err := validation.Validate(role, validation.Required, validation.In(common.RoleUser, common.RoleAssistant))
	if err != nil {
		return nil, fmt.Errorf("%w: role %v", common.ErrorValidation, err)
	}
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: content cannot be blank", common.ErrorValidation)
	}
	if err := validation.Validate(content, validation.RuneLength(1, maxContentLength)); err != nil {
		return nil, fmt.Errorf("%w: content %v", common.ErrorValidation, err)
	}

	if _, err := s.Get(ctx, userID, id); err != nil {
		return nil, err
	}

	var msg *models.Message
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		msg, err = s.repomanager.Messages(tx).Append(ctx, &models.Message{
			ConversationID: id,
			Role:           role,
			Content:        content,
			Tool:           tool,
		})
		if err != nil {
			return err
		}
		return s.repomanager.Conversations(tx).Touch(ctx, id)
	})
	if err != nil {
		return nil, fmt.Errorf("error appending message: %w", err)
	}
	return msg, nil
}

// ExportKey builds the object key for an export made at t.
func ExportKey(userID string, t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("exports/%s/%04d/%02d/%02d/%s.json", userID, t.Year(), t.Month(), t.Day(), uuid.New())
}

func (s *ConversationService) getS3Clients(ctx context.Context) (*s3.Client, *s3.PresignClient, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(s.config.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.config.S3RootUser,
			s.config.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, nil, err
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(s.config.S3BaseEndpoint)
		o.UsePathStyle = true
	})

	return client, s3.NewPresignClient(client), nil
}

// Export uploads the conversation transcript as JSON and returns a presigned
// GET URL for it that is valid for ExportURLValidity.
func (s *ConversationService) Export(ctx context.Context, userID, id string) (string, error) {
	conv, err := s.Get(ctx, userID, id)
	if err != nil {
		return "", err
	}
	msgs, err := s.repomanager.Messages(s.db).ListByConversation(ctx, id)
	if err != nil {
		return "", err
	}

	now := s.now()
	body, err := json.Marshal(&models.Transcript{Conversation: conv, Messages: msgs, ExportedAt: now.UTC()})
	if err != nil {
		return "", fmt.Errorf("encode transcript: %w", err)
	}

	client, presignClient, err := s.getS3Clients(ctx)
	if err != nil {
		return "", fmt.Errorf("s3 config: %w", err)
	}

	bucket := s.config.S3Bucket
	key := ExportKey(userID, now)

	_, err = putObject(client, ctx, &s3.PutObjectInput{
		Bucket:      &bucket,
		Key:         &key,
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("upload export: %w", err)
	}

	req, err := presignGetObject(presignClient, ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(ExportURLValidity))
	if err != nil {
		return "", fmt.Errorf("presign export: %w", err)
	}

	return req.URL, nil
}
