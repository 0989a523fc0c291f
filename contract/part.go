package contract

import (
	"errors"
	"fmt"
	"strings"
)

type PartKind int

const (
	PartPrimitive PartKind = iota + 1
	PartComplex
	PartAttachment
)

func (k PartKind) String() string {
	switch k {
	case PartPrimitive:
		return "primitive"
	case PartComplex:
		return "complex"
	case PartAttachment:
		return "attachment"
	}
	return "invalid"
}

// BodyPart is one named field of a multipart or urlencoded body.
type BodyPart struct {
	Kind  PartKind
	Name  string
	Value any
}

func PrimitivePart(name string, value any) BodyPart {
	return BodyPart{Kind: PartPrimitive, Name: name, Value: value}
}

// ComplexPart is JSON encoded and sent as an untyped form field.
func ComplexPart(name string, value any) BodyPart {
	return BodyPart{Kind: PartComplex, Name: name, Value: value}
}

// AttachmentPart carries an Attachment, *Attachment, []Attachment or
// []*Attachment.
func AttachmentPart(name string, value any) BodyPart {
	return BodyPart{Kind: PartAttachment, Name: name, Value: value}
}

var ErrInvalidAttachment = errors.New("invalid attachment")

// Attachment is a file sent in a multipart body. Content is a []byte, an
// *os.File or any io.Reader.
type Attachment struct {
	Content   any
	FileName  string
	MediaType string
}

// NewAttachment builds an attachment, rejecting an empty file name or
// media type.
func NewAttachment(content any, fileName, mediaType string) (Attachment, error) {
	if strings.TrimSpace(fileName) == "" {
		return Attachment{}, fmt.Errorf("%w: file name is required", ErrInvalidAttachment)
	}
	if strings.TrimSpace(mediaType) == "" {
		return Attachment{}, fmt.Errorf("%w: media type is required for %q", ErrInvalidAttachment, fileName)
	}
	return Attachment{Content: content, FileName: fileName, MediaType: mediaType}, nil
}
