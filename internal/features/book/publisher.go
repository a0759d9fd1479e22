// Package book publishes new recommendations.
package book

import (
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"

	"bookworm/internal/common/errors"
	"bookworm/internal/common/validation"
	"bookworm/internal/domain/book"
)

const fallbackMIME = "image/jpeg"

// EncodeImage returns data as a "data:<mime>;base64,..." URL. The type is sniffed
// from the content; when that is not an image the file extension decides, then image/jpeg.
func EncodeImage(data []byte, filename string) (string, error) {
	if len(data) == 0 {
		return "", errors.NewValidationError("image", "is empty")
	}
	return "data:" + imageMIME(data, filename) + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

func imageMIME(data []byte, filename string) string {
	detected := mimetype.Detect(data).String()
	if i := strings.IndexByte(detected, ';'); i >= 0 {
		detected = detected[:i]
	}
	if strings.HasPrefix(detected, "image/") {
		return detected
	}

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	switch ext {
	case "":
		return fallbackMIME
	case "jpg":
		return "image/jpeg"
	case "svg":
		return "image/svg+xml"
	default:
		return "image/" + ext
	}
}

// ReadImage loads an image file and encodes it with EncodeImage.
func ReadImage(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrCodeValidation, "cannot read image %s", path)
	}
	return EncodeImage(data, path)
}

// Creator is the create half of the API.
type Creator interface {
	CreateBook(ctx context.Context, d book.Draft) (*book.Book, error)
}

// Result is the outcome of Publish. Failures are reported here, never as errors.
type Result struct {
	Success bool
	Book    *book.Book
	Error   string
	Code    errors.ErrorCode
}

type Publisher struct {
	creator Creator
	log     zerolog.Logger
}

func NewPublisher(creator Creator, log zerolog.Logger) *Publisher {
	return &Publisher{creator: creator, log: log.With().Str("component", "publisher").Logger()}
}

// Validate checks a draft without sending it.
func Validate(d book.Draft) error {
	if err := validation.ValidateTitle(d.Title); err != nil {
		return err
	}
	if err := validation.ValidateCaption(d.Caption); err != nil {
		return err
	}
	if err := validation.ValidateImageDataURL(d.Image); err != nil {
		return err
	}
	return validation.ValidateRating(d.Rating)
}

func (p *Publisher) Publish(ctx context.Context, d book.Draft) Result {
	d.Title = strings.TrimSpace(d.Title)
	d.Caption = strings.TrimSpace(d.Caption)
	if err := Validate(d); err != nil {
		return Result{Error: errors.UserMessage(err), Code: errors.CodeOf(err)}
	}

	created, err := p.creator.CreateBook(ctx, d)
	if err != nil {
		p.log.Warn().Err(err).Str("title", d.Title).Msg("Publish failed")
		return Result{Error: publishMessage(err), Code: errors.CodeOf(err)}
	}

	p.log.Info().Str("book_id", created.ID).Msg("Book published")
	return Result{Success: true, Book: created}
}

func publishMessage(err error) string {
	appErr, ok := errors.AsAppError(err)
	if !ok {
		return errors.MsgUnexpected
	}
	switch {
	case appErr.IsUnauthorized():
		return errors.MsgUnauthorized
	case appErr.Code == errors.ErrCodeHTTPStatus && appErr.Status == 400:
		return errors.MsgBadRequest
	}
	return errors.UserMessage(err)
}
