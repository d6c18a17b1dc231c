package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/sakif/skyhub/internal/blob"
	"github.com/sakif/skyhub/internal/model"
	"github.com/sakif/skyhub/internal/service"
)

const (
	// multipartMemory is kept in RAM before parts spill to temp files.
	multipartMemory = 8 << 20
	// formOverhead covers the text fields and multipart framing around uploads.
	formOverhead = 1 << 20
)

// parseForm accepts multipart or urlencoded bodies, capped at limit bytes.
func parseForm(w http.ResponseWriter, r *http.Request, limit int64) error {
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	err := r.ParseMultipartForm(multipartMemory)
	if errors.Is(err, http.ErrNotMultipart) {
		err = r.ParseForm()
	}
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return fmt.Errorf("request body exceeds %d bytes", tooBig.Limit)
		}
		return fmt.Errorf("malformed form: %w", err)
	}
	return nil
}

// decodeJSON reads a single JSON object, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, limit int64, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, limit))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

// formFile reads an optional uploaded file. A missing part is not an error.
func formFile(r *http.Request, name string) (*blob.Upload, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}
	f, hdr, err := r.FormFile(name)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	return &blob.Upload{Filename: hdr.Filename, Data: data}, nil
}

// optionalValue is nil when the field was not submitted at all, so the
// service can tell "keep" from "clear".
func optionalValue(r *http.Request, name string) *string {
	values, ok := r.Form[name]
	if !ok || len(values) == 0 {
		return nil
	}
	v := values[0]
	return &v
}

// optionalBool accepts yes/no as well as anything strconv.ParseBool does.
func optionalBool(r *http.Request, name string) *bool {
	raw := optionalValue(r, name)
	if raw == nil {
		return nil
	}
	b := truthy(*raw)
	return &b
}

func truthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "on":
		return true
	}
	b, _ := strconv.ParseBool(s)
	return b
}

// readProfile fills the profile fields and uploads shared by registration
// and profile edit.
func readProfile(r *http.Request) (service.ProfileInput, error) {
	p := service.ProfileInput{
		Track:               optionalValue(r, "track"),
		Skills:              optionalValue(r, "skills"),
		AvailableForProject: optionalBool(r, "availableForProject"),
		GitHubLink:          optionalValue(r, "githubLink"),
		PortfolioLink:       optionalValue(r, "portfolioLink"),
		LinkedInLink:        optionalValue(r, "linkedinLink"),
		PhoneNumber:         optionalValue(r, "phoneNumber"),
	}

	var err error
	if p.Avatar, err = formFile(r, "avatar"); err != nil {
		return p, err
	}
	if p.CV, err = formFile(r, "cv"); err != nil {
		return p, err
	}
	return p, nil
}

func readPost(r *http.Request) (service.PostInput, error) {
	in := service.PostInput{
		Title:   r.FormValue("title"),
		Content: r.FormValue("content"),
	}

	var err error
	if in.Image, err = formFile(r, "image"); err != nil {
		return in, err
	}
	if in.Video, err = formFile(r, "video"); err != nil {
		return in, err
	}
	return in, nil
}

// readPostEdit leaves absent fields nil so the edit keeps them.
func readPostEdit(r *http.Request) (service.PostEdit, error) {
	in := service.PostEdit{
		Title:   optionalValue(r, "title"),
		Content: optionalValue(r, "content"),
	}

	var err error
	if in.Image, err = formFile(r, "image"); err != nil {
		return in, err
	}
	if in.Video, err = formFile(r, "video"); err != nil {
		return in, err
	}
	return in, nil
}

func memberFilter(r *http.Request) model.MemberFilter {
	q := r.URL.Query()
	return model.MemberFilter{
		Search:        q.Get("search"),
		Track:         q.Get("track"),
		AvailableOnly: truthy(q.Get("available")),
	}
}

func feedFilter(r *http.Request) model.FeedFilter {
	q := r.URL.Query()
	return model.FeedFilter{
		Track:         q.Get("track"),
		AvailableOnly: truthy(q.Get("available")),
	}
}
