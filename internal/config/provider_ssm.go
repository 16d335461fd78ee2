package config

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// GetParameters accepts at most 10 names per call.
const ssmMaxBatchSize = 10

// SSMClient is the subset of the SSM API used by SSMProvider.
type SSMClient interface {
	GetParameters(ctx context.Context, params *ssm.GetParametersInput, optFns ...func(*ssm.Options)) (*ssm.GetParametersOutput, error)
}

// SSMProvider resolves SecureString parameters from SSM Parameter Store.
type SSMProvider struct {
	client SSMClient
}

// NewSSMProvider wraps an SSM client. Callers build the client from the
// same aws.Config the rest of the process uses so endpoint overrides apply.
func NewSSMProvider(client SSMClient) *SSMProvider {
	return &SSMProvider{client: client}
}

// NewSSMProviderFromConfig builds the provider from an AWS SDK config.
func NewSSMProviderFromConfig(cfg aws.Config) *SSMProvider {
	return NewSSMProvider(ssm.NewFromConfig(cfg))
}

// GetParametersBatch fetches keys in batches of ten with decryption.
// Any parameter SSM reports as invalid fails the whole call: a missing key
// must never degrade silently into an empty secret.
func (p *SSMProvider) GetParametersBatch(ctx context.Context, keys []string) (map[string]string, error) {
	result := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return result, nil
	}

	for i := 0; i < len(keys); i += ssmMaxBatchSize {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("ssm: resolution cancelled: %w", err)
		}

		end := min(i+ssmMaxBatchSize, len(keys))
		out, err := p.client.GetParameters(ctx, &ssm.GetParametersInput{
			Names:          keys[i:end],
			WithDecryption: aws.Bool(true),
		})
		if err != nil {
			return nil, fmt.Errorf("ssm: GetParameters failed for keys %d-%d of %d: %w", i, end-1, len(keys), err)
		}
		if len(out.InvalidParameters) > 0 {
			return nil, fmt.Errorf("ssm: parameters not found: %v", out.InvalidParameters)
		}

		for _, param := range out.Parameters {
			if param.Name != nil && param.Value != nil {
				result[*param.Name] = *param.Value
			}
		}
	}

	return result, nil
}
