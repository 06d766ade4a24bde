package notify

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

// sesAPI is the part of *sesv2.Client SESNotifier uses.
type sesAPI interface {
	SendEmail(ctx context.Context, in *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESConfig selects the region and, optionally, static credentials and a
// custom endpoint (LocalStack and similar).
type SESConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	BaseEndpoint    string
}

// SESNotifier sends emails through Amazon SES v2.
type SESNotifier struct {
	r      Renderer
	client sesAPI
}

// NewSESNotifier loads the AWS configuration and builds the SES client.
// Without static keys the default credential chain is used.
func NewSESNotifier(ctx context.Context, r Renderer, c SESConfig) (*SESNotifier, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(c.Region)}
	if c.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(c.AccessKeyID, c.SecretAccessKey, "")))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := sesv2.NewFromConfig(cfg, func(o *sesv2.Options) {
		if c.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(c.BaseEndpoint)
		}
	})
	return &SESNotifier{r: r, client: client}, nil
}

func (n *SESNotifier) SendPasswordResetEmail(ctx context.Context, msg PasswordResetEmail) error {
	return n.send(ctx, n.r.PasswordReset(msg))
}

func (n *SESNotifier) SendEmailVerificationEmail(ctx context.Context, msg VerificationEmail) error {
	return n.send(ctx, n.r.Verification(msg))
}

func (n *SESNotifier) send(ctx context.Context, m Message) error {
	_, err := n.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(m.From),
		Destination:      &types.Destination{ToAddresses: []string{m.To}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(m.Subject), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Text: &types.Content{Data: aws.String(m.Text), Charset: aws.String("UTF-8")},
				},
			},
		},
		EmailTags: []types.MessageTag{{Name: aws.String("kind"), Value: aws.String(m.Kind)}},
	})
	if err != nil {
		return fmt.Errorf("ses send: %w", err)
	}
	return nil
}
