package aws

import (
	"context"
	"errors"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-aws/sqs"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/projectionflow/transport"
	"github.com/drblury/projectionflow/transport/transporttest"
)

func stubFactories(t *testing.T, loader func(context.Context, ...func(*awsconfig.LoadOptions) error) (aws.Config, error)) (*transporttest.Publisher, *transporttest.Subscriber, *sqs.PublisherConfig) {
	t.Helper()
	originalLoader, originalPub, originalSub := DefaultConfigLoader, PublisherFactory, SubscriberFactory
	t.Cleanup(func() {
		DefaultConfigLoader, PublisherFactory, SubscriberFactory = originalLoader, originalPub, originalSub
	})

	pub, sub := &transporttest.Publisher{}, &transporttest.Subscriber{}
	var captured sqs.PublisherConfig
	DefaultConfigLoader = loader
	PublisherFactory = func(cfg sqs.PublisherConfig, _ watermill.LoggerAdapter) (message.Publisher, error) {
		captured = cfg
		return pub, nil
	}
	SubscriberFactory = func(sqs.SubscriberConfig, watermill.LoggerAdapter) (message.Subscriber, error) {
		return sub, nil
	}
	return pub, sub, &captured
}

func TestRegistered(t *testing.T) {
	assert.True(t, transport.DefaultRegistry.Has(TransportName))
	caps := transport.GetCapabilities(TransportName)
	assert.False(t, caps.SupportsOrdering)
	assert.True(t, caps.SupportsReliableDelivery())
}

func TestBuildAppliesRegionAndCredentials(t *testing.T) {
	var loadOptions awsconfig.LoadOptions
	pub, sub, captured := stubFactories(t, func(_ context.Context, opts ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		for _, opt := range opts {
			require.NoError(t, opt(&loadOptions))
		}
		return aws.Config{}, nil
	})

	cfg := &transporttest.Config{AWSRegion: "eu-west-1", AWSAccessKeyID: "key", AWSSecretAccessKey: "secret"}
	tr, err := Build(context.Background(), cfg, watermill.NopLogger{})

	require.NoError(t, err)
	assert.Same(t, pub, tr.Publisher)
	assert.Same(t, sub, tr.Subscriber)
	assert.Equal(t, "eu-west-1", loadOptions.Region)
	require.NotNil(t, loadOptions.Credentials)
	creds, err := loadOptions.Credentials.Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "key", creds.AccessKeyID)
	assert.Equal(t, "eu-west-1", captured.AWSConfig.Region)
	assert.Empty(t, captured.OptFns)
}

func TestBuildWithCustomEndpoint(t *testing.T) {
	_, _, captured := stubFactories(t, func(context.Context, ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{Region: "us-east-1"}, nil
	})

	cfg := &transporttest.Config{AWSEndpoint: "http://localhost:4566"}
	_, err := Build(context.Background(), cfg, watermill.NopLogger{})

	require.NoError(t, err)
	assert.Len(t, captured.OptFns, 1)
}

func TestBuildRejectsRelativeEndpoint(t *testing.T) {
	stubFactories(t, func(context.Context, ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, nil
	})

	_, err := Build(context.Background(), &transporttest.Config{AWSEndpoint: "localhost"}, watermill.NopLogger{})
	assert.ErrorContains(t, err, "AWS endpoint")
}

func TestBuildPropagatesLoaderError(t *testing.T) {
	stubFactories(t, func(context.Context, ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, errors.New("no credentials")
	})

	_, err := Build(context.Background(), &transporttest.Config{}, watermill.NopLogger{})
	assert.ErrorContains(t, err, "no credentials")
}

func TestBuildClosesPublisherWhenSubscriberFails(t *testing.T) {
	pub, _, _ := stubFactories(t, func(context.Context, ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, nil
	})
	SubscriberFactory = func(sqs.SubscriberConfig, watermill.LoggerAdapter) (message.Subscriber, error) {
		return nil, errors.New("subscriber error")
	}

	_, err := Build(context.Background(), &transporttest.Config{}, watermill.NopLogger{})
	assert.ErrorContains(t, err, "subscriber error")
	assert.Equal(t, 1, pub.Closed)
}
