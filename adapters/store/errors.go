package store

import (
	"errors"

	"github.com/layer-3/authrelay/core"
)

func isNotFound(err error) bool {
	return errors.Is(err, core.ErrNotFound)
}
