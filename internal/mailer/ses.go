package mailer

import (
	"context"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

const charset = "UTF-8"

// sesAPI is the part of the SES v2 client the transport uses.
type sesAPI interface {
	SendEmail(ctx context.Context, in *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESTransport sends through Amazon SES v2.
type SESTransport struct {
	client sesAPI
	from   Sender
}

// NewSESTransport loads AWS credentials from the default chain.
func NewSESTransport(ctx context.Context, region string, from Sender) (*SESTransport, error) {
	opts := []func(*awsconfig.LoadOptions) error{}
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}
	return &SESTransport{client: sesv2.NewFromConfig(cfg), from: from}, nil
}

func (t *SESTransport) Send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return ErrNoRecipient
	}
	if _, err := t.client.SendEmail(ctx, t.input(msg)); err != nil {
		return fmt.Errorf("ses send to %s: %w", msg.To, err)
	}
	return nil
}

func (t *SESTransport) input(msg Message) *sesv2.SendEmailInput {
	body := &types.Body{
		Text: &types.Content{Data: aws.String(msg.Text), Charset: aws.String(charset)},
	}
	if msg.HTML != "" {
		body.Html = &types.Content{Data: aws.String(msg.HTML), Charset: aws.String(charset)}
	}

	names := make([]string, 0, len(msg.Headers))
	for k := range msg.Headers {
		names = append(names, k)
	}
	sort.Strings(names)
	headers := make([]types.MessageHeader, 0, len(names))
	for _, k := range names {
		headers = append(headers, types.MessageHeader{Name: aws.String(k), Value: aws.String(msg.Headers[k])})
	}

	return &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(t.from.String()),
		Destination:      &types.Destination{ToAddresses: []string{msg.To}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String(charset)},
				Body:    body,
				Headers: headers,
			},
		},
	}
}
