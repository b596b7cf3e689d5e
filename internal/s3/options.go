package s3

import "S3ArchiveBuilder/internal/config"

// OptionsFrom maps a bucket section of the config file onto client options.
func OptionsFrom(c *config.S3Config) Options {
	if c == nil {
		return Options{}
	}
	return Options{
		Endpoint:           c.Endpoint,
		Region:             c.Region,
		Auth:               c.Auth,
		Profile:            c.Profile,
		AccessKey:          c.AccessKey,
		SecretKey:          c.SecretKey,
		Bucket:             c.Bucket,
		PathStyle:          c.PathStyle,
		InsecureSkipVerify: c.TLS != nil && c.TLS.InsecureSkipVerify,
	}
}
