// Package awsconf builds aws.Config values for the S3 and SQS clients from
// the auth modes the config file supports.
package awsconf

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
)

const (
	AuthIAMRole = "iam-role"
	AuthIAMKeys = "iam-keys"
	AuthStatic  = "static"

	DefaultRegion = "us-east-1"
)

type Options struct {
	Region             string
	Auth               string
	Profile            string
	AccessKey          string
	SecretKey          string
	InsecureSkipVerify bool
}

// Load resolves credentials according to opts.Auth:
//   - iam-role: default chain (env, instance/task role, web identity)
//   - iam-keys: shared credentials file, optionally a named profile
//   - static:   the given access/secret key pair
func Load(ctx context.Context, opts Options) (aws.Config, error) {
	region := opts.Region
	if region == "" {
		region = DefaultRegion
	}
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
	}
	switch opts.Auth {
	case "", AuthIAMRole:
	case AuthIAMKeys:
		if opts.Profile != "" {
			loadOpts = append(loadOpts, awsconfig.WithSharedConfigProfile(opts.Profile))
		}
	case AuthStatic:
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, "")))
	default:
		return aws.Config{}, fmt.Errorf("unsupported auth type %q", opts.Auth)
	}
	if opts.InsecureSkipVerify {
		loadOpts = append(loadOpts, awsconfig.WithHTTPClient(&http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			},
		}))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return cfg, nil
}

// NormalizeEndpoint defaults a bare host to https.
func NormalizeEndpoint(endpoint string) (string, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return "", nil
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("endpoint: %w", err)
	}
	if u.Scheme == "" {
		u, err = url.Parse("https://" + endpoint)
		if err != nil {
			return "", fmt.Errorf("endpoint: %w", err)
		}
	}
	return u.String(), nil
}
