package media

import (
	"strings"
)

// Site names the place an upload comes from. Each site has its own limits.
type Site string

const (
	SiteEventCover     Site = "event_cover"
	SiteEventDesign    Site = "event_design"
	SiteCommunityMedia Site = "community_media"
	SiteCommunityCover Site = "community_cover"
	SiteAdmin          Site = "admin"
)

const (
	MIMEImageJPEG = "image/jpeg"
	MIMEImagePNG  = "image/png"
	MIMEImageWebP = "image/webp"
	MIMEImageGIF  = "image/gif"
	MIMEImageAVIF = "image/avif"
)

const megabyte = 1024 * 1024

// extensions maps accepted MIME types to object key extensions.
var extensions = map[string]string{
	MIMEImageJPEG: ".jpg",
	MIMEImagePNG:  ".png",
	MIMEImageWebP: ".webp",
	MIMEImageGIF:  ".gif",
	MIMEImageAVIF: ".avif",
}

// Policy bounds what one site accepts.
type Policy struct {
	MaxBytes int64

	// Types lists the accepted MIME types. Empty means any raster image/* type.
	Types []string
}

// Validate checks a declared MIME type and size without touching any store.
func (p Policy) Validate(mimeType string, size int64) error {
	if !p.accepts(mimeType) {
		return ErrUnsupportedType
	}
	if size <= 0 {
		return ErrEmptyFile
	}
	if size > p.MaxBytes {
		return ErrFileTooLarge
	}
	return nil
}

func (p Policy) accepts(mimeType string) bool {
	mimeType = normalizeMIME(mimeType)
	if len(p.Types) == 0 {
		// SVG can carry scripts and is never served from the gallery.
		return strings.HasPrefix(mimeType, "image/") && mimeType != "image/svg+xml" && len(mimeType) > len("image/")
	}
	for _, t := range p.Types {
		if t == mimeType {
			return true
		}
	}
	return false
}

// Policies maps each site to its policy.
type Policies map[Site]Policy

// DefaultPolicies returns the per-site limits. eventMB applies to event
// uploads, communityMB to gallery and admin uploads.
func DefaultPolicies(eventMB, communityMB int) Policies {
	strict := []string{MIMEImageJPEG, MIMEImagePNG, MIMEImageWebP}
	return Policies{
		SiteEventCover:     {MaxBytes: int64(eventMB) * megabyte, Types: strict},
		SiteEventDesign:    {MaxBytes: int64(eventMB) * megabyte},
		SiteCommunityMedia: {MaxBytes: int64(communityMB) * megabyte},
		SiteCommunityCover: {MaxBytes: int64(communityMB) * megabyte, Types: strict},
		SiteAdmin:          {MaxBytes: int64(communityMB) * megabyte, Types: strict},
	}
}

// MaxBytes returns the largest ceiling across sites, used to cap request bodies.
func (p Policies) MaxBytes() int64 {
	var largest int64
	for _, policy := range p {
		largest = max(largest, policy.MaxBytes)
	}
	return largest
}

func normalizeMIME(mimeType string) string {
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	return strings.ToLower(strings.TrimSpace(mimeType))
}

// extensionFor returns the key extension for mimeType, falling back to the
// sanitized subtype.
func extensionFor(mimeType string) string {
	mimeType = normalizeMIME(mimeType)
	if ext, ok := extensions[mimeType]; ok {
		return ext
	}
	var b strings.Builder
	for _, r := range strings.TrimPrefix(mimeType, "image/") {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return ""
	}
	return "." + b.String()
}
