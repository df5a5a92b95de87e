package ses

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	"github.com/lattiq/mailmerge/internal/core"
)

const transportName = "aws_ses"

// Config holds the Amazon SES settings.
type Config struct {
	// Region is the AWS region hosting the SES endpoint.
	Region string

	// ConfigurationSet optionally names an SES configuration set applied
	// to every send.
	ConfigurationSet string

	// AccessKeyID and SecretAccessKey override the AWS default
	// credential chain when both are set.
	AccessKeyID     string
	SecretAccessKey string
}

// Transport delivers email through Amazon SES using the raw-message
// API, so the built payload reaches SES byte for byte.
type Transport struct {
	client *ses.Client
	config Config
}

// NewTransport creates an SES transport.
func NewTransport(config Config) (*Transport, error) {
	if config.Region == "" {
		return nil, core.NewValidationError("region", "AWS region is required")
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(config.Region),
	}
	if config.AccessKeyID != "" || config.SecretAccessKey != "" {
		if config.AccessKeyID == "" || config.SecretAccessKey == "" {
			return nil, core.NewValidationError("credentials",
				"access key and secret key must be set together")
		}
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(config.AccessKeyID, config.SecretAccessKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, core.NewTransportErrorWithCause(transportName, "config_error",
			"failed to load AWS config", err)
	}

	return &Transport{
		client: ses.NewFromConfig(cfg),
		config: config,
	}, nil
}

// Send submits the payload via SendRawEmail. The explicit destination
// list carries the envelope recipients, so Bcc delivery works even
// though the payload headers never name them.
func (t *Transport) Send(ctx context.Context, email *core.Email) (*core.SendResult, error) {
	if err := email.Validate(); err != nil {
		return nil, err
	}

	input := &ses.SendRawEmailInput{
		Source:       aws.String(email.From.Email),
		Destinations: email.Recipients(),
		RawMessage:   &types.RawMessage{Data: email.Payload},
	}
	if t.config.ConfigurationSet != "" {
		input.ConfigurationSetName = aws.String(t.config.ConfigurationSet)
	}

	output, err := t.client.SendRawEmail(ctx, input)
	if err != nil {
		return nil, core.NewTransportErrorWithCause(transportName, "send_error",
			"failed to send email", err)
	}

	return &core.SendResult{
		MessageID: aws.ToString(output.MessageId),
		Transport: transportName,
		Timestamp: time.Now(),
	}, nil
}
