package book

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookworm/internal/common/errors"
	"bookworm/internal/domain/book"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

func TestEncodeImage(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		filename string
		prefix   string
	}{
		{"sniffed png", pngHeader, "cover.jpg", "data:image/png;base64,"},
		{"sniffed jpeg", []byte{0xff, 0xd8, 0xff, 0xe0, 0, 0x10, 'J', 'F', 'I', 'F'}, "", "data:image/jpeg;base64,"},
		{"extension fallback", []byte("not really an image"), "cover.webp", "data:image/webp;base64,"},
		{"jpg extension", []byte("plain"), "cover.JPG", "data:image/jpeg;base64,"},
		{"default", []byte("plain"), "cover", "data:image/jpeg;base64,"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			url, err := EncodeImage(tt.data, tt.filename)
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(url, tt.prefix), url)
		})
	}

	_, err := EncodeImage(nil, "x.png")
	assert.Equal(t, errors.ErrCodeValidation, errors.CodeOf(err))
}

func TestReadImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cover.png")
	require.NoError(t, os.WriteFile(path, pngHeader, 0o600))

	url, err := ReadImage(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "data:image/png;base64,"))

	_, err = ReadImage(filepath.Join(t.TempDir(), "missing.png"))
	assert.Error(t, err)
}

type fakeCreator struct {
	calls int
	got   book.Draft
	err   error
}

func (f *fakeCreator) CreateBook(_ context.Context, d book.Draft) (*book.Book, error) {
	f.calls++
	f.got = d
	if f.err != nil {
		return nil, f.err
	}
	return &book.Book{ID: "bk1", Title: d.Title, Rating: d.Rating}, nil
}

func validDraft(t *testing.T) book.Draft {
	t.Helper()
	img, err := EncodeImage(pngHeader, "cover.png")
	require.NoError(t, err)
	return book.Draft{Title: "  Dune ", Caption: "Spice", Image: img, Rating: 5}
}

func TestPublish(t *testing.T) {
	creator := &fakeCreator{}
	p := NewPublisher(creator, zerolog.Nop())

	res := p.Publish(context.Background(), validDraft(t))
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "bk1", res.Book.ID)
	assert.Equal(t, "Dune", creator.got.Title)
}

func TestPublishValidatesFirst(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*book.Draft)
		msg    string
	}{
		{"missing title", func(d *book.Draft) { d.Title = " " }, "title is required"},
		{"missing caption", func(d *book.Draft) { d.Caption = "" }, "caption is required"},
		{"missing image", func(d *book.Draft) { d.Image = "" }, "image is required"},
		{"rating zero", func(d *book.Draft) { d.Rating = 0 }, "rating must be between 1 and 5"},
		{"rating six", func(d *book.Draft) { d.Rating = 6 }, "rating must be between 1 and 5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			creator := &fakeCreator{}
			d := validDraft(t)
			tt.mutate(&d)

			res := NewPublisher(creator, zerolog.Nop()).Publish(context.Background(), d)
			assert.False(t, res.Success)
			assert.Equal(t, tt.msg, res.Error)
			assert.Equal(t, errors.ErrCodeValidation, res.Code)
			assert.Zero(t, creator.calls)
		})
	}
}

func TestPublishErrorMessages(t *testing.T) {
	tests := []struct {
		name string
		err  error
		msg  string
	}{
		{"unauthorized", errors.NewHTTPStatusError("create book", 401, "Token is not valid"), errors.MsgUnauthorized},
		{"logged out", errors.NewUnauthorizedError("not logged in"), errors.MsgUnauthorized},
		{"bad request", errors.NewHTTPStatusError("create book", 400, "Please provide all fields"), errors.MsgBadRequest},
		{"server message", errors.NewHTTPStatusError("create book", 500, "Internal server error"), "Internal server error"},
		{"network", errors.NewTransportError("create book", stderrors.New("refused")), errors.MsgNetwork},
		{"foreign", stderrors.New("boom"), errors.MsgUnexpected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := NewPublisher(&fakeCreator{err: tt.err}, zerolog.Nop()).Publish(context.Background(), validDraft(t))
			assert.False(t, res.Success)
			assert.Nil(t, res.Book)
			assert.Equal(t, tt.msg, res.Error)
		})
	}
}
