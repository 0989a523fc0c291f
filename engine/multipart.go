package engine

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"os"
	"strings"

	"github.com/kolah/courier/contract"
	"github.com/kolah/courier/internal/mediatype"
	"github.com/kolah/courier/internal/serialize"
)

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// encodeMultipart writes the parts as multipart/form-data. Streams are read
// into memory so that the body has a known length.
func (e *Engine) encodeMultipart(op *contract.Operation, body *contract.RequestBody) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, part := range body.Parts {
		if err := e.writePart(op, w, part); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", &ConfigError{Operation: op.Description(), Part: "request body", Reason: "cannot finish multipart body", Err: err}
	}
	return &buf, w.FormDataContentType(), nil
}

func (e *Engine) writePart(op *contract.Operation, w *multipart.Writer, part contract.BodyPart) error {
	switch part.Kind {
	case contract.PartPrimitive:
		var err error
		serialize.Form(part.Name, part.Value, func(name, value string) {
			if err == nil {
				err = w.WriteField(name, value)
			}
		})
		return err

	case contract.PartComplex:
		if serialize.IsNil(part.Value) {
			return nil
		}
		data, err := e.codec.Encode(part.Value, mediatype.JSON)
		if err != nil {
			return &ConfigError{Operation: op.Description(), Part: fmt.Sprintf("part %q", part.Name), Reason: "cannot encode value", Err: err}
		}
		return w.WriteField(part.Name, string(data))

	case contract.PartAttachment:
		attachments, ok := attachmentsOf(part.Value)
		if !ok {
			return &ConfigError{
				Operation: op.Description(),
				Part:      fmt.Sprintf("part %q", part.Name),
				Reason:    fmt.Sprintf("attachment part holds %T", part.Value),
				fatal:     true,
			}
		}
		for _, a := range attachments {
			if err := writeAttachment(op, w, part.Name, a); err != nil {
				return err
			}
		}
		return nil
	}

	return &ConfigError{
		Operation: op.Description(),
		Part:      fmt.Sprintf("part %q", part.Name),
		Reason:    fmt.Sprintf("unknown part kind %d", part.Kind),
		fatal:     true,
	}
}

// attachmentsOf accepts a single attachment or a slice of them. Nil values
// and nil elements carry no attachment.
func attachmentsOf(v any) ([]contract.Attachment, bool) {
	switch x := v.(type) {
	case nil:
		return nil, true
	case contract.Attachment:
		return []contract.Attachment{x}, true
	case *contract.Attachment:
		if x == nil {
			return nil, true
		}
		return []contract.Attachment{*x}, true
	case []contract.Attachment:
		return x, true
	case []*contract.Attachment:
		result := make([]contract.Attachment, 0, len(x))
		for _, a := range x {
			if a != nil {
				result = append(result, *a)
			}
		}
		return result, true
	}
	return nil, false
}

func writeAttachment(op *contract.Operation, w *multipart.Writer, name string, a contract.Attachment) error {
	if strings.TrimSpace(a.FileName) == "" || strings.TrimSpace(a.MediaType) == "" {
		return &ConfigError{
			Operation: op.Description(),
			Part:      fmt.Sprintf("part %q", name),
			Reason:    "attachment requires a file name and a media type",
			Err:       contract.ErrInvalidAttachment,
			fatal:     true,
		}
	}

	content, err := attachmentContent(op, a)
	if err != nil {
		return err
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		quoteEscaper.Replace(name), quoteEscaper.Replace(a.FileName)))
	h.Set("Content-Type", a.MediaType)
	pw, err := w.CreatePart(h)
	if err != nil {
		return &bodyReadError{err: err}
	}
	if _, err := io.Copy(pw, content); err != nil {
		return &bodyReadError{err: fmt.Errorf("read attachment %q: %w", a.FileName, err)}
	}
	return nil
}

// attachmentContent passes bytes and files through and reads other streams
// fully into memory.
func attachmentContent(op *contract.Operation, a contract.Attachment) (io.Reader, error) {
	switch c := a.Content.(type) {
	case nil:
		return bytes.NewReader(nil), nil
	case []byte:
		return bytes.NewReader(c), nil
	case *os.File:
		return c, nil
	case io.Reader:
		data, err := io.ReadAll(c)
		if err != nil {
			return nil, &bodyReadError{err: fmt.Errorf("read attachment %q: %w", a.FileName, err)}
		}
		return bytes.NewReader(data), nil
	}
	return nil, &ConfigError{
		Operation: op.Description(),
		Part:      fmt.Sprintf("attachment %q", a.FileName),
		Reason:    fmt.Sprintf("content of type %T is not bytes, a file or a reader", a.Content),
		fatal:     true,
	}
}
