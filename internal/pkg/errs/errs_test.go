package errs

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewError_FormatsTemplate(t *testing.T) {
	req := require.New(t)

	err := NewError(ErrMessageNotFound, int64(42))

	req.Equal(ErrMessageNotFound, err.Code)
	req.Equal(http.StatusNotFound, err.Status)
	req.Equal("Message with id 42 not found.", err.Message)
}

func TestNewError_UnknownCodeFallsBack(t *testing.T) {
	req := require.New(t)

	err := NewError(999999)

	req.Equal(ErrUnknown, err.Code)
	req.Equal(http.StatusInternalServerError, err.Status)
}

func TestFromError(t *testing.T) {
	req := require.New(t)

	req.Nil(FromError(nil))

	wrapped := fmt.Errorf("handler: %w", NewError(ErrUnauthorized))
	req.Equal(ErrUnauthorized, FromError(wrapped).Code)

	req.Equal(ErrUnknown, FromError(errors.New("boom")).Code)
}
