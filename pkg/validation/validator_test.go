package validation

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string `json:"name" validate:"required,max=5"`
	Email string `json:"email" validate:"required,email"`
	Phone string `json:"phone" validate:"phone8"`
}

func TestStructReportsFieldsByJSONName(t *testing.T) {
	err := Struct(sample{Name: "toolong", Email: "nope", Phone: "12ab5678"})
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrInvalid))

	var ve *Error
	require.True(t, errors.As(err, &ve))
	require.Equal(t, "must be at most 5 characters long", ve.Fields["name"])
	require.Equal(t, "must be a valid email", ve.Fields["email"])
	require.Equal(t, "must be exactly 8 digits", ve.Fields["phone"])
}

func TestStructPhoneLength(t *testing.T) {
	err := Struct(sample{Name: "ok", Email: "a@b.co", Phone: "1234567"})
	var ve *Error
	require.True(t, errors.As(err, &ve))
	require.Contains(t, ve.Fields, "phone")

	err = Struct(sample{Name: "ok", Email: "a@b.co", Phone: "-1234567"})
	require.True(t, errors.As(err, &ve))
	require.Contains(t, ve.Fields, "phone")

	require.NoError(t, Struct(sample{Name: "ok", Email: "a@b.co", Phone: "12345678"}))
}

func TestToDetails(t *testing.T) {
	require.Nil(t, ToDetails(nil))
	require.Equal(t, map[string]string{"phone": "bad"}, ToDetails(NewError("phone", "bad")))

	var v map[string]any
	jerr := json.Unmarshal([]byte("{"), &v)
	require.Equal(t, map[string]string{"payload": "invalid json"}, ToDetails(jerr))
	require.Equal(t, map[string]string{"payload": "invalid payload"}, ToDetails(errors.New("x")))
}

func TestErrorMessageIsStable(t *testing.T) {
	err := &Error{Fields: map[string]string{"b": "two", "a": "one"}}
	require.Equal(t, "validation failed: a one; b two", err.Error())
}
