package directory

import "context"

// siteProvider implements Provider for a directory category whose detail
// pages share the common structure. Categories differ only in their type
// tag and overview URL on this site; providers with divergent detail
// markup can supply their own Provider implementation.
type siteProvider struct {
	tag     string
	details *DetailExtractor
}

// NewProvider returns a Provider stamping records with tag.
func NewProvider(tag string, details *DetailExtractor) Provider {
	return &siteProvider{tag: tag, details: details}
}

func (p *siteProvider) ExtractDetailFields(ctx context.Context, url string) DetailFields {
	return p.details.Extract(ctx, url)
}

func (p *siteProvider) TypeTag() string {
	return p.tag
}
