package service

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/go-playground/validator/v10"

	"github.com/sakif/skyhub/internal/apperror"
	"github.com/sakif/skyhub/internal/auth"
	"github.com/sakif/skyhub/internal/blob"
	"github.com/sakif/skyhub/internal/model"
)

// DefaultMaxUploadSize applies when a service is built with a zero limit.
const DefaultMaxUploadSize = 5 << 20

// ProfileInput carries the editable profile fields shared by registration
// and profile edit. A nil pointer means "not supplied, keep"; a pointer to
// an empty string means "clear".
type ProfileInput struct {
	Track               *string `json:"track"               validate:"omitempty,track"`
	Skills              *string `json:"skills"              validate:"omitempty,max=200"`
	AvailableForProject *bool   `json:"availableForProject"`
	GitHubLink          *string `json:"githubLink"          validate:"omitempty,url,max=200"`
	PortfolioLink       *string `json:"portfolioLink"       validate:"omitempty,url,max=200"`
	LinkedInLink        *string `json:"linkedinLink"        validate:"omitempty,url,max=200"`
	PhoneNumber         *string `json:"phoneNumber"         validate:"omitempty,min=7,max=20"`

	Avatar *blob.Upload `json:"-" validate:"-"`
	CV     *blob.Upload `json:"-" validate:"-"`
}

// RegisterInput is a local sign-up.
type RegisterInput struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Email    string `json:"email"    validate:"required,email,max=120"`
	Password string `json:"password" validate:"required,min=6"`
	ProfileInput
}

// LoginInput is a local sign-in.
type LoginInput struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// UpdateProfileInput edits a member. Username and email are always
// required; the handler fills them from the stored member when omitted.
type UpdateProfileInput struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Email    string `json:"email"    validate:"required,email,max=120"`
	ProfileInput
}

// PostInput carries a new post. A blank title is derived from the content.
type PostInput struct {
	Title   string       `json:"title"   validate:"max=200"`
	Content string       `json:"content" validate:"max=10000"`
	Image   *blob.Upload `json:"-"       validate:"-"`
	Video   *blob.Upload `json:"-"       validate:"-"`
}

// PostEdit carries a partial post update. A nil field is left as stored; an
// empty Title asks for one derived from the content. Media is replaced only
// when a new file is supplied.
type PostEdit struct {
	Title   *string      `json:"title"   validate:"omitempty,max=200"`
	Content *string      `json:"content" validate:"omitempty,max=10000"`
	Image   *blob.Upload `json:"-"       validate:"-"`
	Video   *blob.Upload `json:"-"       validate:"-"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report fields by their JSON name so clients can map errors to inputs.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	if err := v.RegisterValidation("track", func(fl validator.FieldLevel) bool {
		return slices.Contains(model.Tracks, fl.Field().String())
	}); err != nil {
		panic(err)
	}

	return v
}

// checkStruct runs the struct tags and returns every violated field at once.
func checkStruct(in any) map[string]string {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return map[string]string{"input": err.Error()}
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = describe(fe)
	}
	return fields
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "required"
	case "email":
		return "must be a valid email address"
	case "url":
		return "must be a valid URL"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "track":
		return "must be one of: " + strings.Join(model.Tracks, ", ")
	default:
		return "is invalid"
	}
}

// checkPassword adds bcrypt's byte limit, which the rune-counting max tag
// cannot express.
func checkPassword(password string, fields map[string]string) map[string]string {
	if len(password) > auth.MaxPasswordBytes {
		fields = addField(fields, "password", fmt.Sprintf("must be at most %d bytes", auth.MaxPasswordBytes))
	}
	return fields
}

// uploadRule lists the extensions accepted for one kind of upload.
type uploadRule struct {
	field string
	exts  []string
}

var (
	avatarUpload    = uploadRule{field: "avatar", exts: []string{"jpg", "jpeg", "png"}}
	cvUpload        = uploadRule{field: "cv", exts: []string{"pdf"}}
	postImageUpload = uploadRule{field: "image", exts: []string{"jpg", "jpeg", "png", "gif"}}
	postVideoUpload = uploadRule{field: "video", exts: []string{"mp4", "webm", "ogg"}}
)

// checkUpload validates an optional upload: allowed extension, size limit,
// and content that really is what the extension claims.
func checkUpload(rule uploadRule, u *blob.Upload, maxSize int64, fields map[string]string) map[string]string {
	if u.Empty() {
		return fields
	}

	ext := u.Ext()
	switch {
	case !slices.Contains(rule.exts, ext):
		return addField(fields, rule.field, "must be one of: "+strings.Join(rule.exts, ", "))
	case int64(len(u.Data)) > maxSize:
		return addField(fields, rule.field, "must be at most "+humanize.IBytes(uint64(maxSize)))
	case !blob.MatchesExt(ext, u.Data):
		return addField(fields, rule.field, "content does not match the ."+ext+" extension")
	}
	return fields
}

func addField(fields map[string]string, name, msg string) map[string]string {
	if fields == nil {
		fields = make(map[string]string)
	}
	fields[name] = msg
	return fields
}

func invalid(fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	return apperror.InvalidFields(fields)
}

// normalizeProfile trims every supplied field in place.
func normalizeProfile(p *ProfileInput) {
	for _, f := range []*string{p.Track, p.Skills, p.GitHubLink, p.PortfolioLink, p.LinkedInLink, p.PhoneNumber} {
		if f != nil {
			*f = strings.TrimSpace(*f)
		}
	}
}

// applyProfile copies the supplied fields onto m. Blank values clear the
// optional columns.
func applyProfile(m *model.Member, p ProfileInput) {
	set := func(dst **string, src *string) {
		if src == nil {
			return
		}
		if *src == "" {
			*dst = nil
			return
		}
		v := *src
		*dst = &v
	}

	set(&m.Track, p.Track)
	set(&m.GitHubLink, p.GitHubLink)
	set(&m.PortfolioLink, p.PortfolioLink)
	set(&m.LinkedInLink, p.LinkedInLink)
	set(&m.PhoneNumber, p.PhoneNumber)
	if p.Skills != nil {
		m.Skills = *p.Skills
	}
	if p.AvailableForProject != nil {
		m.AvailableForProject = *p.AvailableForProject
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
