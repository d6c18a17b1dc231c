package service

import (
	"testing"

	"github.com/sakif/skyhub/internal/blob"
	"github.com/sakif/skyhub/internal/model"
)

func TestCheckUpload(t *testing.T) {
	tests := []struct {
		name    string
		rule    uploadRule
		upload  *blob.Upload
		wantMsg string
	}{
		{"nothing uploaded", avatarUpload, nil, ""},
		{"empty data", avatarUpload, &blob.Upload{Filename: "a.png"}, ""},
		{"png avatar", avatarUpload, &blob.Upload{Filename: "A.PNG", Data: pngBytes}, ""},
		{"jpeg spelling", avatarUpload, &blob.Upload{Filename: "a.jpeg", Data: []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00")}, ""},
		{"gif not allowed for avatar", avatarUpload, &blob.Upload{Filename: "a.gif", Data: []byte("GIF89a")}, "must be one of: jpg, jpeg, png"},
		{"pdf cv", cvUpload, &blob.Upload{Filename: "cv.pdf", Data: pdfBytes}, ""},
		{"renamed cv", cvUpload, &blob.Upload{Filename: "cv.pdf", Data: pngBytes}, "content does not match the .pdf extension"},
		{"mp4 video", postVideoUpload, &blob.Upload{Filename: "v.mp4", Data: mp4Bytes}, ""},
		{"too big", postImageUpload, &blob.Upload{Filename: "i.png", Data: make([]byte, 2048)}, "must be at most 1.0 KiB"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := checkUpload(tt.rule, tt.upload, 1024, nil)
			got := fields[tt.rule.field]
			if got != tt.wantMsg {
				t.Errorf("message = %q, want %q", got, tt.wantMsg)
			}
		})
	}
}

func TestApplyProfile(t *testing.T) {
	track := "Other"
	link := "https://example.test/old"
	m := &model.Member{Track: &track, GitHubLink: &link, Skills: "go", AvailableForProject: true}

	applyProfile(m, ProfileInput{
		GitHubLink:          strPtr(""),
		PortfolioLink:       strPtr("https://example.test/new"),
		AvailableForProject: boolPtr(false),
	})

	if m.Track == nil || *m.Track != "Other" {
		t.Errorf("Track = %v, want kept", m.Track)
	}
	if m.GitHubLink != nil {
		t.Errorf("GitHubLink = %q, want cleared", *m.GitHubLink)
	}
	if m.PortfolioLink == nil || *m.PortfolioLink != "https://example.test/new" {
		t.Errorf("PortfolioLink = %v", m.PortfolioLink)
	}
	if m.Skills != "go" {
		t.Errorf("Skills = %q, want kept", m.Skills)
	}
	if m.AvailableForProject {
		t.Error("AvailableForProject should be false")
	}
}

func TestCheckStruct_UsesJSONNames(t *testing.T) {
	fields := checkStruct(UpdateProfileInput{
		Username:     "ok_name",
		Email:        "ok@uni.edu",
		ProfileInput: ProfileInput{PortfolioLink: strPtr("nope")},
	})
	if _, ok := fields["portfolioLink"]; !ok || len(fields) != 1 {
		t.Errorf("fields = %v, want only portfolioLink", fields)
	}
}
