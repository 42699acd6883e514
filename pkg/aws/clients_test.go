package aws

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSNS struct {
	input *sns.PublishInput
	err   error
}

func (f *fakeSNS) Publish(_ context.Context, in *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.input = in
	return &sns.PublishOutput{}, f.err
}

func TestSNSPublishSetsEventType(t *testing.T) {
	fake := &fakeSNS{}
	c := &SNSClient{client: fake}

	err := c.Publish(context.Background(), "arn:aws:sns:us-east-1:000000000000:labels", "label_purchased", []byte(`{"label_id":"se-label-1"}`))
	require.NoError(t, err)

	assert.Equal(t, "arn:aws:sns:us-east-1:000000000000:labels", *fake.input.TopicArn)
	assert.Equal(t, `{"label_id":"se-label-1"}`, *fake.input.Message)
	attr := fake.input.MessageAttributes[EventTypeAttribute]
	assert.Equal(t, "String", *attr.DataType)
	assert.Equal(t, "label_purchased", *attr.StringValue)
}

func TestSNSPublishEmptyTopic(t *testing.T) {
	fake := &fakeSNS{}
	c := &SNSClient{client: fake}

	assert.Error(t, c.Publish(context.Background(), "", "label_purchased", nil))
	assert.Nil(t, fake.input)
}

func TestSNSPublishWrapsError(t *testing.T) {
	c := &SNSClient{client: &fakeSNS{err: errors.New("throttled")}}

	err := c.Publish(context.Background(), "arn:topic", "label_purchased", []byte(`{}`))
	assert.ErrorContains(t, err, "throttled")
	assert.ErrorContains(t, err, "label_purchased")
}

type countingSecrets struct {
	calls  int
	values map[string]*string
}

func (c *countingSecrets) GetSecretValue(_ context.Context, in *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	c.calls++
	v, ok := c.values[*in.SecretId]
	if !ok {
		return nil, errors.New("ResourceNotFoundException")
	}
	return &secretsmanager.GetSecretValueOutput{SecretString: v}, nil
}

func TestSecretsClientCachesValues(t *testing.T) {
	key := "shipengine-key"
	api := &countingSecrets{values: map[string]*string{
		"storefront/SHIPENGINE_API_KEY": &key,
		"storefront/BINARY":             nil,
	}}
	c := newSecretsClient(api)

	for i := 0; i < 3; i++ {
		v, err := c.GetSecret(context.Background(), "storefront/SHIPENGINE_API_KEY")
		require.NoError(t, err)
		assert.Equal(t, "shipengine-key", v)
	}
	assert.Equal(t, 1, api.calls)

	_, err := c.GetSecret(context.Background(), "storefront/BINARY")
	assert.ErrorContains(t, err, "binary")

	_, err = c.GetSecret(context.Background(), "storefront/MISSING")
	assert.Error(t, err)
}
