package repository

import (
	"github.com/pkg/errors"

	er "github.com/dnsscience/telemetry/internal/errors"
)

var ErrInvalidInput = errors.New("invalid input parameters")

// storeErr tags a gorm failure so callers can tell store trouble apart from
// lookup trouble.
func storeErr(op string, err error) error {
	return er.New(er.KindStore, op, errors.Wrap(err, "db error"))
}
