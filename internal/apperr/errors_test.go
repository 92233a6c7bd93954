package apperr

import (
	"errors"
	"fmt"
	"os"
	"testing"
)

func TestValidationErrorIs(t *testing.T) {
	err := fmt.Errorf("create: %w", Invalid("name", "is required"))
	if !errors.Is(err, ErrValidation) {
		t.Fatal("wrapped validation error should match ErrValidation")
	}
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Field != "name" {
		t.Errorf("errors.As = %+v", ve)
	}
	if errors.Is(err, ErrNotFound) {
		t.Error("validation error must not match ErrNotFound")
	}
}

func TestFileErrorUnwrap(t *testing.T) {
	fe := FileError{Path: "a/b-munchie.json", Err: os.ErrNotExist}
	if !errors.Is(fe, os.ErrNotExist) {
		t.Error("FileError should unwrap to its cause")
	}
	txt, _ := fe.MarshalText()
	if string(txt) != fe.Error() {
		t.Errorf("MarshalText = %q", txt)
	}
}
