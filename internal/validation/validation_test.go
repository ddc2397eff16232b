package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOwnerID(t *testing.T) {
	t.Parallel()
	assert.NoError(t, OwnerID("f47ac10b-58cc-4372-a567-0e02b2c3d479"))
	assert.ErrorIs(t, OwnerID(""), ErrInvalidOwnerID)
	assert.ErrorIs(t, OwnerID("not-a-uuid"), ErrInvalidOwnerID)
	assert.ErrorIs(t, OwnerID("f47ac10b-58cc-1372-a567-0e02b2c3d479"), ErrInvalidOwnerID)
}

func TestFileID(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		in    string
		want  string
		errIs error
	}{
		{name: "simple", in: "file_123_abcd1234_abcd1234", want: "file_123_abcd1234_abcd1234", errIs: nil},
		{name: "empty", in: "", want: "", errIs: ErrInvalidFileID},
		{name: "dot", in: ".", want: "", errIs: ErrInvalidFileID},
		{name: "dotdot", in: "..", want: "", errIs: ErrInvalidFileID},
		{name: "slash", in: "a/b", want: "", errIs: ErrInvalidFileID},
		{name: "traversal", in: "../escape", want: "", errIs: ErrInvalidFileID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FileID(tt.in)
			assert.Equal(t, tt.want, got)
			assert.ErrorIs(t, err, tt.errIs)
		})
	}
}

func TestExtension(t *testing.T) {
	t.Parallel()
	allowed := []string{"pdf", "docx", "txt", "md"}
	ext, err := Extension("report.PDF", allowed)
	assert.NoError(t, err)
	assert.Equal(t, "pdf", ext)

	_, err = Extension("archive.zip", allowed)
	assert.ErrorIs(t, err, ErrUnsupportedExtension)
}

func TestSize(t *testing.T) {
	t.Parallel()
	assert.ErrorIs(t, Size(0, 100), ErrEmptyFile)
	assert.ErrorIs(t, Size(101, 100), ErrFileTooLarge)
	assert.NoError(t, Size(100, 100))
}
