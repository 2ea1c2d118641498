package web

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// recommendRequest is the POST /recommend body.
type recommendRequest struct {
	SongName     string `json:"song_name" validate:"required,min=2,max=200"`
	ArtistName   string `json:"artist_name" validate:"max=200"`
	PlaylistSize *int   `json:"playlist_size" validate:"omitempty,min=1,max=20"`
}

// normalize trims the text fields and applies the default playlist size.
func (r *recommendRequest) normalize(defaultSize int) {
	r.SongName = strings.TrimSpace(r.SongName)
	r.ArtistName = strings.TrimSpace(r.ArtistName)
	if r.PlaylistSize == nil {
		size := defaultSize
		r.PlaylistSize = &size
	}
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		// Report fields by their JSON names.
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// validateRequest returns a user-facing message for the first invalid field,
// or "" when req is valid.
func validateRequest(req any) string {
	err := getValidator().Struct(req)
	if err == nil {
		return ""
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	return fieldMessage(verrs[0])
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Field() {
	case "song_name":
		switch fe.Tag() {
		case "required":
			return "Please enter a song name"
		case "min":
			return "Song name must be at least 2 characters long"
		case "max":
			return "Song name too long (max 200 characters)"
		}
	case "artist_name":
		return "Artist name too long (max 200 characters)"
	case "playlist_size":
		return "playlist_size must be between 1 and 20"
	}
	return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
}
