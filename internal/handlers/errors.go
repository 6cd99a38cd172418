package handlers

import (
	"errors"
	"fmt"
)

var errInvalidToken = errors.New("invalid token")

func errMissingField(name string) error {
	return fmt.Errorf("missing %s", name)
}

func errUnknownCommand(t string) error {
	return fmt.Errorf("unknown command %q", t)
}
