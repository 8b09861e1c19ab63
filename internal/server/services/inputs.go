package services

import (
	"strings"
	"unicode/utf8"

	"github.com/dmitrijs2005/cartographer/internal/common"
	"github.com/dmitrijs2005/cartographer/internal/server/models"
)

const maxTextLength = 255

// MapInput carries the writable Map fields. Nil means "not supplied".
type MapInput struct {
	Title   *string
	Publish *bool
}

// ComponentInput carries the writable Component fields. Nil means "not
// supplied"; ParentSet distinguishes an explicit null parent from an absent
// one.
type ComponentInput struct {
	Title            *string
	ArchivesSpaceURI *string
	Level            *string
	Map              *int64
	ParentSet        bool
	Parent           *int64
	Order            *int64
}

func (in MapInput) validate(full bool) error {
	if in.Title == nil {
		if full {
			return common.NewValidationError("title", "This field is required.")
		}
		return nil
	}
	title := strings.TrimSpace(*in.Title)
	if title == "" {
		return common.NewValidationError("title", "This field may not be blank.")
	}
	return checkLength("title", title)
}

// validate checks what can be checked without the database. full requires
// the fields a create or full replace must name.
func (in ComponentInput) validate(full bool) error {
	if full && in.Map == nil {
		return common.NewValidationError("map", "This field is required.")
	}
	if in.Title != nil {
		if err := checkLength("title", *in.Title); err != nil {
			return err
		}
	}
	if in.ArchivesSpaceURI != nil {
		if err := checkLength("archivesspace_uri", *in.ArchivesSpaceURI); err != nil {
			return err
		}
	}
	if in.Level != nil {
		if lvl := models.NormalizeLevel(*in.Level); !models.IsValidLevel(lvl) {
			return common.NewValidationError("level", "%q is not a valid choice. Valid choices: %s.",
				*in.Level, strings.Join(models.Levels(), ", "))
		}
	}
	if in.Order != nil && *in.Order < 0 {
		return common.NewValidationError("order", "Ensure this value is greater than or equal to 0.")
	}
	return nil
}

func checkLength(field, v string) error {
	if utf8.RuneCountInString(v) > maxTextLength {
		return common.NewValidationError(field, "Ensure this field has no more than %d characters.", maxTextLength)
	}
	return nil
}
