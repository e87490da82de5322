// Package repository provides data access layer implementations for the application.
package repository

import (
	"errors"
	"fmt"

	"socialfeed/internal/models"

	"gorm.io/gorm"
)

// ErrVersionConflict reports that a conditional save found a newer version of
// the aggregate than the one it read.
var ErrVersionConflict = errors.New("version conflict")

// translate maps driver errors onto the application error taxonomy.
func translate(err error, resource string, id any) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return models.NewNotFoundError(resource, id)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return models.NewValidationError(fmt.Sprintf("%s already exists", resource))
	default:
		var appErr *models.AppError
		if errors.As(err, &appErr) {
			return err
		}
		return models.NewStorageError(err)
	}
}
