package handler

import (
	"context"
	"log/slog"
	"time"

	"github.com/sakif/skyhub/internal/blob"
	"github.com/sakif/skyhub/internal/model"
	"github.com/sakif/skyhub/internal/service"
)

// URLResolver turns stored refs into URLs a browser can load.
type URLResolver interface {
	URL(ctx context.Context, ref blob.Ref) (string, error)
}

// views builds response bodies, resolving blob refs on the way out.
type views struct {
	urls   URLResolver
	logger *slog.Logger
}

func (v views) url(ctx context.Context, ref *blob.Ref) string {
	if ref == nil || *ref == "" {
		return ""
	}
	u, err := v.urls.URL(ctx, *ref)
	if err != nil {
		v.logger.Warn("could not resolve blob URL",
			slog.String("ref", string(*ref)),
			slog.String("error", err.Error()),
		)
		return ""
	}
	return u
}

type memberView struct {
	ID                  string    `json:"id"`
	Username            string    `json:"username"`
	Email               string    `json:"email,omitempty"`
	Track               *string   `json:"track"`
	Skills              string    `json:"skills"`
	AvailableForProject bool      `json:"availableForProject"`
	GitHubLink          *string   `json:"githubLink"`
	PortfolioLink       *string   `json:"portfolioLink"`
	LinkedInLink        *string   `json:"linkedinLink"`
	PhoneNumber         *string   `json:"phoneNumber,omitempty"`
	AvatarURL           string    `json:"avatarUrl"`
	CVURL               string    `json:"cvUrl,omitempty"`
	HasPassword         bool      `json:"hasPassword,omitempty"`
	CreatedAt           time.Time `json:"createdAt"`
}

// member renders m. Contact details and account state only go to the
// member themselves.
func (v views) member(ctx context.Context, m *model.Member, self bool) memberView {
	out := memberView{
		ID:                  m.ID,
		Username:            m.Username,
		Track:               m.Track,
		Skills:              m.Skills,
		AvailableForProject: m.AvailableForProject,
		GitHubLink:          m.GitHubLink,
		PortfolioLink:       m.PortfolioLink,
		LinkedInLink:        m.LinkedInLink,
		AvatarURL:           v.url(ctx, &m.AvatarRef),
		CVURL:               v.url(ctx, m.CVRef),
		CreatedAt:           m.CreatedAt,
	}
	if self {
		out.Email = m.Email
		out.PhoneNumber = m.PhoneNumber
		out.HasPassword = m.HasPassword()
	}
	return out
}

func (v views) members(ctx context.Context, ms []model.Member) []memberView {
	out := make([]memberView, 0, len(ms))
	for i := range ms {
		out = append(out, v.member(ctx, &ms[i], false))
	}
	return out
}

type postView struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	ImageURL  string    `json:"imageUrl,omitempty"`
	VideoURL  string    `json:"videoUrl,omitempty"`
	AuthorID  string    `json:"authorId"`
	LikeCount int       `json:"likeCount"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (v views) post(ctx context.Context, p *model.Post) postView {
	return postView{
		ID:        p.ID,
		Title:     p.Title,
		Content:   p.Content,
		ImageURL:  v.url(ctx, p.ImageRef),
		VideoURL:  v.url(ctx, p.VideoRef),
		AuthorID:  p.AuthorID,
		LikeCount: p.LikeCount,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

func (v views) posts(ctx context.Context, ps []model.Post) []postView {
	out := make([]postView, 0, len(ps))
	for i := range ps {
		out = append(out, v.post(ctx, &ps[i]))
	}
	return out
}

type feedItemView struct {
	postView
	Author struct {
		Username  string  `json:"username"`
		Track     *string `json:"track"`
		AvatarURL string  `json:"avatarUrl"`
		Available bool    `json:"availableForProject"`
	} `json:"author"`
}

func (v views) feed(ctx context.Context, items []model.FeedItem) []feedItemView {
	out := make([]feedItemView, 0, len(items))
	for i := range items {
		it := &items[i]
		fv := feedItemView{postView: v.post(ctx, &it.Post)}
		fv.Author.Username = it.AuthorUsername
		fv.Author.Track = it.AuthorTrack
		fv.Author.AvatarURL = v.url(ctx, &it.AuthorAvatarRef)
		fv.Author.Available = it.AuthorAvailable
		out = append(out, fv)
	}
	return out
}

type profileView struct {
	Member     memberView `json:"member"`
	Posts      []postView `json:"posts"`
	TotalLikes int        `json:"totalLikes"`
}

func (v views) profile(ctx context.Context, p *service.ProfilePage, self bool) profileView {
	return profileView{
		Member:     v.member(ctx, p.Member, self),
		Posts:      v.posts(ctx, p.Posts),
		TotalLikes: p.TotalLikes,
	}
}

type postDetailView struct {
	Post     postView        `json:"post"`
	Author   memberView      `json:"author"`
	Comments []model.Comment `json:"comments"`
	Liked    bool            `json:"liked"`
}

func (v views) postDetail(ctx context.Context, d *service.PostDetail) postDetailView {
	return postDetailView{
		Post:     v.post(ctx, d.Post),
		Author:   v.member(ctx, d.Author, false),
		Comments: d.Comments,
		Liked:    d.Liked,
	}
}
