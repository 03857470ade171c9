// Package content stores the ordered blocks that make up community and event pages.
package content

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"
)

// OwnerType identifies the kind of page a block belongs to.
type OwnerType string

const (
	OwnerCommunity OwnerType = "community"
	OwnerEvent     OwnerType = "event"
)

// Valid reports whether t is a known owner type.
func (t OwnerType) Valid() bool {
	return t == OwnerCommunity || t == OwnerEvent
}

// Owner is the page a block is rendered on.
type Owner struct {
	Type OwnerType `json:"type"`
	ID   string    `json:"id"`
}

func (o Owner) String() string { return string(o.Type) + "/" + o.ID }

// BlockType is the discriminator of the Content sum type.
type BlockType string

const (
	TypeHeading  BlockType = "heading"
	TypeText     BlockType = "text"
	TypeImage    BlockType = "image"
	TypeCarousel BlockType = "carousel"
)

const (
	MaxHeadingLength  = 200
	MaxTextLength     = 20000
	MaxAltLength      = 300
	MaxCaptionLength  = 500
	MaxCarouselImages = 20
)

var (
	ErrUnknownBlockType = errors.New("unknown block type")
	ErrInvalidContent   = errors.New("invalid block content")
)

// Content is the typed payload of a block. Implementations are Heading,
// Text, Image and Carousel.
type Content interface {
	BlockType() BlockType
	Validate() error
}

// Heading is a section title.
type Heading struct {
	Text  string `json:"text"`
	Level int    `json:"level"`
}

func (Heading) BlockType() BlockType { return TypeHeading }

func (h Heading) Validate() error {
	n := utf8.RuneCountInString(strings.TrimSpace(h.Text))
	if n == 0 || n > MaxHeadingLength {
		return fmt.Errorf("%w: heading text must be 1-%d characters", ErrInvalidContent, MaxHeadingLength)
	}
	if h.Level < 1 || h.Level > 3 {
		return fmt.Errorf("%w: heading level must be 1-3", ErrInvalidContent)
	}
	return nil
}

// Text is a paragraph of body copy.
type Text struct {
	Body string `json:"body"`
}

func (Text) BlockType() BlockType { return TypeText }

func (t Text) Validate() error {
	n := utf8.RuneCountInString(strings.TrimSpace(t.Body))
	if n == 0 || n > MaxTextLength {
		return fmt.Errorf("%w: text body must be 1-%d characters", ErrInvalidContent, MaxTextLength)
	}
	return nil
}

// Image is a single picture, usually one uploaded to the media gallery.
type Image struct {
	URL     string `json:"url"`
	Alt     string `json:"alt,omitempty"`
	Caption string `json:"caption,omitempty"`
}

func (Image) BlockType() BlockType { return TypeImage }

func (i Image) Validate() error {
	u, err := url.Parse(i.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: image url must be an http(s) URL", ErrInvalidContent)
	}
	if utf8.RuneCountInString(i.Alt) > MaxAltLength {
		return fmt.Errorf("%w: alt text longer than %d characters", ErrInvalidContent, MaxAltLength)
	}
	if utf8.RuneCountInString(i.Caption) > MaxCaptionLength {
		return fmt.Errorf("%w: caption longer than %d characters", ErrInvalidContent, MaxCaptionLength)
	}
	return nil
}

// Carousel is a slideshow of images.
type Carousel struct {
	Images []Image `json:"images"`
}

func (Carousel) BlockType() BlockType { return TypeCarousel }

func (c Carousel) Validate() error {
	if len(c.Images) == 0 || len(c.Images) > MaxCarouselImages {
		return fmt.Errorf("%w: carousel needs 1-%d images", ErrInvalidContent, MaxCarouselImages)
	}
	for i, img := range c.Images {
		if err := img.Validate(); err != nil {
			return fmt.Errorf("image %d: %w", i, err)
		}
	}
	return nil
}

// DecodeContent parses raw into the variant selected by blockType and validates it.
func DecodeContent(blockType BlockType, raw json.RawMessage) (Content, error) {
	var c Content
	var err error
	switch blockType {
	case TypeHeading:
		var v Heading
		err = json.Unmarshal(raw, &v)
		c = v
	case TypeText:
		var v Text
		err = json.Unmarshal(raw, &v)
		c = v
	case TypeImage:
		var v Image
		err = json.Unmarshal(raw, &v)
		c = v
	case TypeCarousel:
		var v Carousel
		err = json.Unmarshal(raw, &v)
		c = v
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBlockType, blockType)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidContent, err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Block is one positioned piece of a page.
type Block struct {
	ID        string
	Owner     Owner
	Content   Content
	Position  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Type returns the block's discriminator.
func (b *Block) Type() BlockType {
	if b.Content == nil {
		return ""
	}
	return b.Content.BlockType()
}

type blockJSON struct {
	ID        string          `json:"id"`
	OwnerType OwnerType       `json:"owner_type"`
	OwnerID   string          `json:"owner_id"`
	BlockType BlockType       `json:"block_type"`
	Content   json.RawMessage `json:"content"`
	Position  int             `json:"position"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// MarshalJSON writes the block with its content keyed by block_type.
func (b Block) MarshalJSON() ([]byte, error) {
	raw, err := json.Marshal(b.Content)
	if err != nil {
		return nil, err
	}
	return json.Marshal(blockJSON{
		ID:        b.ID,
		OwnerType: b.Owner.Type,
		OwnerID:   b.Owner.ID,
		BlockType: b.Type(),
		Content:   raw,
		Position:  b.Position,
		CreatedAt: b.CreatedAt,
		UpdatedAt: b.UpdatedAt,
	})
}

// UnmarshalJSON decodes and validates the content variant named by block_type.
func (b *Block) UnmarshalJSON(data []byte) error {
	var v blockJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	c, err := DecodeContent(v.BlockType, v.Content)
	if err != nil {
		return err
	}
	*b = Block{
		ID:        v.ID,
		Owner:     Owner{Type: v.OwnerType, ID: v.OwnerID},
		Content:   c,
		Position:  v.Position,
		CreatedAt: v.CreatedAt,
		UpdatedAt: v.UpdatedAt,
	}
	return nil
}

func copyBlock(b *Block) *Block {
	cp := *b
	if car, ok := b.Content.(Carousel); ok {
		cp.Content = Carousel{Images: append([]Image(nil), car.Images...)}
	}
	return &cp
}
