package validation_test

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/listenupapp/dirwatch/internal/errors"
	"github.com/listenupapp/dirwatch/internal/validation"
)

type watchSettings struct {
	Path       string `json:"path" validate:"required,watchpath"`
	Locale     string `json:"locale" validate:"omitempty,bcp47_language_tag"`
	BufferSize int    `json:"buffer_size" validate:"gte=272"`
}

type settings struct {
	Level string        `json:"level" validate:"oneof=debug info warn error"`
	Watch watchSettings `json:"watch"`
}

func TestValidator_ValidateSuccess(t *testing.T) {
	v := validation.New()

	err := v.Validate(settings{
		Level: "info",
		Watch: watchSettings{Path: "/tmp", Locale: "de-DE", BufferSize: 4096},
	})
	assert.NoError(t, err)
}

func TestValidator_ValidateErrors(t *testing.T) {
	v := validation.New()

	tests := []struct {
		name      string
		in        settings
		wantField string
		wantMsg   string
	}{
		{
			name:      "missing path",
			in:        settings{Level: "info", Watch: watchSettings{BufferSize: 4096}},
			wantField: "watch.path",
			wantMsg:   "is required",
		},
		{
			name:      "NUL in path",
			in:        settings{Level: "info", Watch: watchSettings{Path: "/tmp/\x00x", BufferSize: 4096}},
			wantField: "watch.path",
			wantMsg:   "must not contain NUL bytes and must be shorter than 4096 bytes",
		},
		{
			name:      "path too long",
			in:        settings{Level: "info", Watch: watchSettings{Path: "/" + strings.Repeat("a", 4096), BufferSize: 4096}},
			wantField: "watch.path",
			wantMsg:   "must not contain NUL bytes and must be shorter than 4096 bytes",
		},
		{
			name:      "buffer too small",
			in:        settings{Level: "info", Watch: watchSettings{Path: "/tmp", BufferSize: 16}},
			wantField: "watch.buffer_size",
			wantMsg:   "must be greater than or equal to 272",
		},
		{
			name:      "unknown level",
			in:        settings{Level: "loud", Watch: watchSettings{Path: "/tmp", BufferSize: 4096}},
			wantField: "level",
			wantMsg:   "must be one of: debug info warn error",
		},
		{
			name:      "bad locale",
			in:        settings{Level: "info", Watch: watchSettings{Path: "/tmp", Locale: "not a tag", BufferSize: 4096}},
			wantField: "watch.locale",
			wantMsg:   "must be a BCP 47 language tag",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.in)
			require.Error(t, err)

			var domainErr *domainerrors.Error
			require.ErrorAs(t, err, &domainErr)
			assert.Equal(t, domainerrors.CodeValidation, domainErr.Code)
			assert.Equal(t, http.StatusBadRequest, domainErr.HTTPStatus())

			details, ok := domainErr.Details.(map[string]string)
			require.True(t, ok)
			assert.Equal(t, tt.wantMsg, details[tt.wantField])
		})
	}
}

func TestValidator_Var(t *testing.T) {
	v := validation.New()

	assert.NoError(t, v.Var("path", "/home/user", "required,watchpath"))

	err := v.Var("path", "", "required,watchpath")
	require.Error(t, err)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrValidation))
}
