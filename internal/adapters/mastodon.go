package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/klistr-labs/fedgatewayd/internal/htmlutil"
	"github.com/klistr-labs/fedgatewayd/internal/httpfetch"
	"github.com/klistr-labs/fedgatewayd/internal/model"
	"github.com/klistr-labs/fedgatewayd/internal/outbound"
	"github.com/klistr-labs/fedgatewayd/internal/pagination"
)

// mastodonAdapter implements the Mastodon-API family (Mastodon, Pleroma,
// Akkoma, Pixelfed). Grounded on klistr's ap/client.go request-building
// style (context.Context, manual URL building, json.Unmarshal into a
// tailored wire struct) generalized to the Mastodon REST surface. See
// SPEC_FULL.md §4.6.1.
type mastodonAdapter struct {
	client *outbound.Client
}

// NewMastodon builds the Mastodon-API Capabilities record.
func NewMastodon(client *outbound.Client) Capabilities {
	a := &mastodonAdapter{client: client}
	return Capabilities{
		Family:            model.SoftwareMastodon,
		FetchInstance:     a.fetchInstance,
		Search:            a.search,
		FetchTimeline:     a.fetchTimeline,
		FetchAccountByAcct: a.fetchAccountByAcct,
		PostStatus:        a.postStatus,
		DeleteStatus:      a.deleteStatus,
		GetContext:        a.getContext,
		Reblog:            a.reblog,
		Favourite:         a.favourite,
		Bookmark:          a.bookmark,
		FollowAccount:     a.followAccount,
		Relationships:     a.relationships,
		Notifications:     a.notifications,
		Bookmarks:         a.bookmarks,
		Favourites:        a.favourites,
		VoteOnPoll:        a.voteOnPoll,
		UploadMedia:       a.uploadMedia,
		ScheduleStatus:    a.scheduleStatus,
		ListScheduled:     a.listScheduled,
		DeleteScheduled:   a.deleteScheduled,
		VerifyCredentials: a.verifyCredentials,
	}
}

func apiURL(host, path string) string {
	return fmt.Sprintf("https://%s/api/%s", host, path)
}

func authHeaders(token string) map[string]string {
	if token == "" {
		return nil
	}
	return map[string]string{"Authorization": "Bearer " + token}
}

// doJSON performs a call through the governed outbound client and decodes
// a successful JSON body into out. Non-2xx responses return the matching
// typed error from the httpfetch classification.
func (a *mastodonAdapter) doJSON(ctx context.Context, caller, method, u, token string, body []byte, out any) (*httpfetch.Result, error) {
	req := httpfetch.Request{
		Method:  method,
		URL:     u,
		Accept:  "application/json",
		Headers: authHeaders(token),
	}
	if body != nil {
		req.Body = bytes.NewReader(body)
		if req.Headers == nil {
			req.Headers = map[string]string{}
		}
		req.Headers["Content-Type"] = "application/json"
	}
	result, err := a.client.Do(ctx, caller, req)
	if err != nil {
		return nil, err
	}
	switch result.Classification {
	case httpfetch.ClassOk:
		if out != nil {
			if err := json.Unmarshal(result.Body, out); err != nil {
				return result, fmt.Errorf("decode %s: %w", u, err)
			}
		}
		return result, nil
	case httpfetch.ClassClientError:
		return result, &model.ClientError{URL: u, Status: result.Status}
	case httpfetch.ClassServerError:
		return result, &model.ServerError{URL: u, Status: result.Status}
	default:
		return result, &model.ClientError{URL: u, Status: result.Status}
	}
}

type wireInstance struct {
	URI         string   `json:"uri"`
	Version     string   `json:"version"`
	Description string   `json:"description"`
	Languages   []string `json:"languages"`
	Registrations bool   `json:"registrations"`
	Stats       struct {
		UserCount   int `json:"user_count"`
		StatusCount int `json:"status_count"`
		DomainCount int `json:"domain_count"`
	} `json:"stats"`
	Usage struct {
		Users struct {
			ActiveMonth int `json:"active_month"`
		} `json:"users"`
	} `json:"usage"`
	Contact struct {
		Account json.RawMessage `json:"account"`
	} `json:"contact"`
}

// fetchInstance detects Mastodon-API eligibility per §4.6.1: the response
// must parse with a version field and either stats.user_count or
// usage.users present.
func (a *mastodonAdapter) fetchInstance(ctx context.Context, caller, host string) (*model.Instance, error) {
	var wi wireInstance
	if _, err := a.doJSON(ctx, caller, "GET", apiURL(host, "v1/instance"), "", nil, &wi); err != nil {
		return nil, err
	}
	if wi.Version == "" || (wi.Stats.UserCount == 0 && wi.Usage.Users.ActiveMonth == 0) {
		return nil, &model.ActorMalformedError{Identifier: host, Reason: "not a Mastodon-API instance document"}
	}
	inst := &model.Instance{
		Domain:           host,
		Software:         classifyMastodonFamily(wi.Version),
		Version:          wi.Version,
		Description:      wi.Description,
		UserCount:        wi.Stats.UserCount,
		PostCount:        wi.Stats.StatusCount,
		DomainCount:      wi.Stats.DomainCount,
		Languages:        wi.Languages,
		RegistrationOpen: wi.Registrations,
		FetchedAt:        time.Now(),
	}
	return inst, nil
}

// classifyMastodonFamily distinguishes Pleroma/Akkoma from stock Mastodon
// by substring match on the version string, per §4.6.1. This is a fragile
// heuristic; it is the only signal used here — no NodeInfo software.name
// check is consulted for this classification.
func classifyMastodonFamily(version string) model.SoftwareFamily {
	switch {
	case strings.Contains(version, "Akkoma"):
		return model.SoftwareAkkoma
	case strings.Contains(version, "Pleroma"):
		return model.SoftwarePleroma
	case strings.Contains(version, "Pixelfed") || strings.Contains(version, "Glitch"):
		return model.SoftwarePixelfed
	default:
		return model.SoftwareMastodon
	}
}

type wireAccount struct {
	ID             string `json:"id"`
	Acct           string `json:"acct"`
	Username       string `json:"username"`
	DisplayName    string `json:"display_name"`
	Note           string `json:"note"`
	Avatar         string `json:"avatar"`
	URL            string `json:"url"`
	Fields         []struct {
		Name       string     `json:"name"`
		Value      string     `json:"value"`
		VerifiedAt *time.Time `json:"verified_at"`
	} `json:"fields"`
}

func (wa *wireAccount) toActor(host string) model.Actor {
	actor := model.Actor{
		Acct:              wa.Acct,
		LocalID:           wa.ID,
		PreferredUsername: wa.Username,
		DisplayName:       wa.DisplayName,
		SummaryHTML:       wa.Note,
		SummaryText:       htmlutil.Strip(wa.Note),
		AvatarURL:         wa.Avatar,
		ActivityPubURL:    wa.URL,
		CachedAt:          time.Now(),
	}
	if !strings.Contains(actor.Acct, "@") {
		actor.Acct = actor.Acct + "@" + host
	}
	for _, f := range wa.Fields {
		var verifiedAt time.Time
		if f.VerifiedAt != nil {
			verifiedAt = *f.VerifiedAt
		}
		actor.Fields = append(actor.Fields, model.ProfileField{Name: f.Name, Value: f.Value, VerifiedAt: verifiedAt})
	}
	return actor
}

type wireStatus struct {
	ID             string          `json:"id"`
	URI            string          `json:"uri"`
	URL            string          `json:"url"`
	Content        string          `json:"content"`
	SpoilerText    string          `json:"spoiler_text"`
	Visibility     string          `json:"visibility"`
	CreatedAt      time.Time       `json:"created_at"`
	InReplyToID    string          `json:"in_reply_to_id"`
	RepliesCount   int             `json:"replies_count"`
	ReblogsCount   int             `json:"reblogs_count"`
	FavouritesCount int            `json:"favourites_count"`
	Language       string          `json:"language"`
	Account        wireAccount     `json:"account"`
	MediaAttachments []struct {
		Type        string  `json:"type"`
		URL         string  `json:"url"`
		Description string  `json:"description"`
		Meta        struct {
			Focus struct {
				X float64 `json:"x"`
				Y float64 `json:"y"`
			} `json:"focus"`
		} `json:"meta"`
	} `json:"media_attachments"`
	Poll   *wirePoll  `json:"poll"`
	Tags   []struct {
		Name string `json:"name"`
		URL  string `json:"url"`
	} `json:"tags"`
	Emojis []struct {
		Shortcode string `json:"shortcode"`
		URL       string `json:"url"`
	} `json:"emojis"`
}

type wirePoll struct {
	Options []struct {
		Title      string `json:"title"`
		VotesCount int    `json:"votes_count"`
	} `json:"options"`
	ExpiresAt  time.Time `json:"expires_at"`
	Multiple   bool      `json:"multiple"`
	VotesCount int       `json:"votes_count"`
}

func (wp *wirePoll) toPoll() *model.Poll {
	if wp == nil {
		return nil
	}
	p := &model.Poll{ExpiresAt: wp.ExpiresAt, Multiple: wp.Multiple, VotesCount: wp.VotesCount}
	for _, o := range wp.Options {
		p.Options = append(p.Options, model.PollOption{Title: o.Title, VotesCount: o.VotesCount})
	}
	return p
}

func (ws *wireStatus) toPost(host string) model.Post {
	post := model.Post{
		ID:              ws.ID,
		URL:             ws.URL,
		Author:          ws.Account.toActor(host),
		ContentHTML:     ws.Content,
		ContentText:     htmlutil.Strip(ws.Content),
		SpoilerText:     ws.SpoilerText,
		Visibility:      normalizeVisibility(ws.Visibility),
		PublishedAt:     ws.CreatedAt,
		InReplyTo:       ws.InReplyToID,
		RepliesCount:    ws.RepliesCount,
		ReblogsCount:    ws.ReblogsCount,
		FavouritesCount: ws.FavouritesCount,
		Poll:            ws.Poll.toPoll(),
		Language:        ws.Language,
	}
	for _, m := range ws.MediaAttachments {
		post.Media = append(post.Media, model.MediaAttachment{
			Type: m.Type, URL: m.URL, AltText: m.Description,
			FocalX: m.Meta.Focus.X, FocalY: m.Meta.Focus.Y,
			HasFocus: m.Meta.Focus.X != 0 || m.Meta.Focus.Y != 0,
		})
	}
	for _, t := range ws.Tags {
		post.Tags = append(post.Tags, model.Tag{Type: "Hashtag", Name: t.Name, Href: t.URL})
	}
	for _, e := range ws.Emojis {
		post.Emojis = append(post.Emojis, model.CustomEmoji{Shortcode: e.Shortcode, URL: e.URL})
	}
	return post
}

func normalizeVisibility(v string) model.Visibility {
	switch v {
	case "public":
		return model.VisibilityPublic
	case "unlisted":
		return model.VisibilityUnlisted
	case "private":
		return model.VisibilityFollowersOnly
	case "direct":
		return model.VisibilityDirect
	default:
		return model.VisibilityPublic
	}
}

func (a *mastodonAdapter) search(ctx context.Context, caller, host string, q SearchQuery) (*SearchResult, error) {
	v := url.Values{}
	v.Set("q", q.Query)
	if q.Type != "" {
		v.Set("type", q.Type)
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	var wire struct {
		Accounts []wireAccount `json:"accounts"`
		Statuses []wireStatus  `json:"statuses"`
		Hashtags []struct {
			Name string `json:"name"`
		} `json:"hashtags"`
	}
	u := apiURL(host, "v2/search") + "?" + v.Encode()
	if _, err := a.doJSON(ctx, caller, "GET", u, "", nil, &wire); err != nil {
		return nil, err
	}
	result := &SearchResult{}
	for _, acc := range wire.Accounts {
		result.Accounts = append(result.Accounts, acc.toActor(host))
	}
	for _, s := range wire.Statuses {
		result.Statuses = append(result.Statuses, s.toPost(host))
	}
	for _, h := range wire.Hashtags {
		result.Hashtags = append(result.Hashtags, h.Name)
	}
	return result, nil
}

func (a *mastodonAdapter) fetchTimeline(ctx context.Context, caller, host string, kind TimelineKind, b Bounds) (*model.Page[model.Post], error) {
	resolved, err := pagination.Resolve(b.Cursor, b.MinID, b.MaxID, b.SinceID)
	if err != nil {
		return nil, &model.InvalidInputError{Field: "cursor", Reason: err.Error()}
	}

	var u string
	if resolved.DirectURL != "" {
		u = resolved.DirectURL
	} else {
		b.MinID, b.MaxID, b.SinceID = resolved.MinID, resolved.MaxID, resolved.SinceID
		path, query := timelinePathAndQuery(kind, b)
		u = apiURL(host, path)
		if query != "" {
			u += "?" + query
		}
	}

	var wire []wireStatus
	result, err := a.doJSON(ctx, caller, "GET", u, "", nil, &wire)
	if err != nil {
		return nil, err
	}
	page := &model.Page[model.Post]{}
	for _, s := range wire {
		page.Items = append(page.Items, s.toPost(host))
	}
	if len(wire) > 0 {
		page.NextCursor = pagination.NextCursor(result.Pagination.Next, wire[len(wire)-1].ID, wire[0].ID)
	}
	if result.Pagination.Prev != "" {
		page.PrevCursor = pagination.FromLinkURL(result.Pagination.Prev)
	}
	page.HasMore = page.NextCursor != ""
	return page, nil
}

func timelinePathAndQuery(kind TimelineKind, b Bounds) (string, string) {
	v := url.Values{}
	if b.Limit > 0 {
		v.Set("limit", strconv.Itoa(b.Limit))
	}
	if b.MinID != "" {
		v.Set("min_id", b.MinID)
	}
	if b.MaxID != "" {
		v.Set("max_id", b.MaxID)
	}
	if b.SinceID != "" {
		v.Set("since_id", b.SinceID)
	}
	switch kind {
	case TimelineLocal:
		v.Set("local", "true")
		return "v1/timelines/public", v.Encode()
	case TimelineHome:
		return "v1/timelines/home", v.Encode()
	case TimelineTag:
		return "v1/timelines/tag/" + url.PathEscape(b.Tag), v.Encode()
	case TimelineAccount:
		return "v1/accounts/" + url.PathEscape(b.AccountID) + "/statuses", v.Encode()
	default:
		return "v1/timelines/public", v.Encode()
	}
}

func (a *mastodonAdapter) fetchAccountByAcct(ctx context.Context, caller, host, acct string) (*model.Actor, error) {
	v := url.Values{}
	v.Set("acct", acct)
	var wa wireAccount
	if _, err := a.doJSON(ctx, caller, "GET", apiURL(host, "v1/accounts/lookup")+"?"+v.Encode(), "", nil, &wa); err != nil {
		return nil, err
	}
	actor := wa.toActor(host)
	return &actor, nil
}

func (a *mastodonAdapter) postStatus(ctx context.Context, caller, host, token string, draft StatusDraft) (*model.Post, error) {
	body, err := json.Marshal(statusDraftPayload(draft))
	if err != nil {
		return nil, fmt.Errorf("encode status draft: %w", err)
	}
	var ws wireStatus
	if _, err := a.doJSON(ctx, caller, "POST", apiURL(host, "v1/statuses"), token, body, &ws); err != nil {
		return nil, err
	}
	post := ws.toPost(host)
	return &post, nil
}

func statusDraftPayload(d StatusDraft) map[string]any {
	payload := map[string]any{
		"status":       d.Text,
		"spoiler_text": d.SpoilerText,
		"visibility":   string(d.Visibility),
	}
	if d.InReplyTo != "" {
		payload["in_reply_to_id"] = d.InReplyTo
	}
	if len(d.MediaIDs) > 0 {
		payload["media_ids"] = d.MediaIDs
	}
	if d.Language != "" {
		payload["language"] = d.Language
	}
	if d.ScheduledAt != nil {
		payload["scheduled_at"] = d.ScheduledAt.Format(time.RFC3339)
	}
	return payload
}

func (a *mastodonAdapter) deleteStatus(ctx context.Context, caller, host, token, id string) error {
	_, err := a.doJSON(ctx, caller, "DELETE", apiURL(host, "v1/statuses/"+id), token, nil, nil)
	return err
}

func (a *mastodonAdapter) getContext(ctx context.Context, caller, host, id string) (*model.Page[model.Post], *model.Page[model.Post], error) {
	var wire struct {
		Ancestors   []wireStatus `json:"ancestors"`
		Descendants []wireStatus `json:"descendants"`
	}
	if _, err := a.doJSON(ctx, caller, "GET", apiURL(host, "v1/statuses/"+id+"/context"), "", nil, &wire); err != nil {
		return nil, nil, err
	}
	ancestors := &model.Page[model.Post]{}
	for _, s := range wire.Ancestors {
		ancestors.Items = append(ancestors.Items, s.toPost(host))
	}
	descendants := &model.Page[model.Post]{}
	for _, s := range wire.Descendants {
		descendants.Items = append(descendants.Items, s.toPost(host))
	}
	return ancestors, descendants, nil
}

func (a *mastodonAdapter) reblog(ctx context.Context, caller, host, token, id string, undo bool) error {
	action := "reblog"
	if undo {
		action = "unreblog"
	}
	_, err := a.doJSON(ctx, caller, "POST", apiURL(host, "v1/statuses/"+id+"/"+action), token, nil, nil)
	return err
}

func (a *mastodonAdapter) favourite(ctx context.Context, caller, host, token, id string, undo bool) error {
	action := "favourite"
	if undo {
		action = "unfavourite"
	}
	_, err := a.doJSON(ctx, caller, "POST", apiURL(host, "v1/statuses/"+id+"/"+action), token, nil, nil)
	return err
}

func (a *mastodonAdapter) bookmark(ctx context.Context, caller, host, token, id string, undo bool) error {
	action := "bookmark"
	if undo {
		action = "unbookmark"
	}
	_, err := a.doJSON(ctx, caller, "POST", apiURL(host, "v1/statuses/"+id+"/"+action), token, nil, nil)
	return err
}

func (a *mastodonAdapter) followAccount(ctx context.Context, caller, host, token, accountID string, undo bool) error {
	action := "follow"
	if undo {
		action = "unfollow"
	}
	_, err := a.doJSON(ctx, caller, "POST", apiURL(host, "v1/accounts/"+accountID+"/"+action), token, nil, nil)
	return err
}

func (a *mastodonAdapter) relationships(ctx context.Context, caller, host, token string, accountIDs []string) ([]Relationship, error) {
	v := url.Values{}
	for _, id := range accountIDs {
		v.Add("id[]", id)
	}
	var wire []struct {
		ID         string `json:"id"`
		Following  bool   `json:"following"`
		FollowedBy bool   `json:"followed_by"`
		Blocking   bool   `json:"blocking"`
		Muting     bool   `json:"muting"`
	}
	if _, err := a.doJSON(ctx, caller, "GET", apiURL(host, "v1/accounts/relationships")+"?"+v.Encode(), token, nil, &wire); err != nil {
		return nil, err
	}
	rels := make([]Relationship, 0, len(wire))
	for _, w := range wire {
		rels = append(rels, Relationship{ID: w.ID, Following: w.Following, FollowedBy: w.FollowedBy, Blocking: w.Blocking, Muting: w.Muting})
	}
	return rels, nil
}

func (a *mastodonAdapter) pageFromPath(ctx context.Context, caller, host, token, path string, b Bounds) (*model.Page[model.Post], error) {
	resolved, err := pagination.Resolve(b.Cursor, b.MinID, b.MaxID, b.SinceID)
	if err != nil {
		return nil, &model.InvalidInputError{Field: "cursor", Reason: err.Error()}
	}

	var u string
	if resolved.DirectURL != "" {
		u = resolved.DirectURL
	} else {
		v := url.Values{}
		if b.Limit > 0 {
			v.Set("limit", strconv.Itoa(b.Limit))
		}
		if resolved.MinID != "" {
			v.Set("min_id", resolved.MinID)
		}
		if resolved.MaxID != "" {
			v.Set("max_id", resolved.MaxID)
		}
		u = apiURL(host, path)
		if q := v.Encode(); q != "" {
			u += "?" + q
		}
	}

	var wire []wireStatus
	result, err := a.doJSON(ctx, caller, "GET", u, token, nil, &wire)
	if err != nil {
		return nil, err
	}
	page := &model.Page[model.Post]{}
	for _, s := range wire {
		page.Items = append(page.Items, s.toPost(host))
	}
	if len(wire) > 0 {
		page.NextCursor = pagination.NextCursor(result.Pagination.Next, wire[len(wire)-1].ID, wire[0].ID)
	} else if result.Pagination.Next != "" {
		page.NextCursor = pagination.FromLinkURL(result.Pagination.Next)
	}
	if result.Pagination.Prev != "" {
		page.PrevCursor = pagination.FromLinkURL(result.Pagination.Prev)
	}
	page.HasMore = page.NextCursor != ""
	return page, nil
}

func (a *mastodonAdapter) notifications(ctx context.Context, caller, host, token string, b Bounds) (*model.Page[model.Post], error) {
	return a.pageFromPath(ctx, caller, host, token, "v1/notifications", b)
}

func (a *mastodonAdapter) bookmarks(ctx context.Context, caller, host, token string, b Bounds) (*model.Page[model.Post], error) {
	return a.pageFromPath(ctx, caller, host, token, "v1/bookmarks", b)
}

func (a *mastodonAdapter) favourites(ctx context.Context, caller, host, token string, b Bounds) (*model.Page[model.Post], error) {
	return a.pageFromPath(ctx, caller, host, token, "v1/favourites", b)
}

func (a *mastodonAdapter) voteOnPoll(ctx context.Context, caller, host, token, pollID string, choices []int) (*model.Poll, error) {
	body, err := json.Marshal(map[string]any{"choices": choices})
	if err != nil {
		return nil, fmt.Errorf("encode poll vote: %w", err)
	}
	var wp wirePoll
	if _, err := a.doJSON(ctx, caller, "POST", apiURL(host, "v1/polls/"+pollID+"/votes"), token, body, &wp); err != nil {
		return nil, err
	}
	return wp.toPoll(), nil
}

func (a *mastodonAdapter) uploadMedia(ctx context.Context, caller, host, token string, m MediaUpload) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", m.FileName)
	if err != nil {
		return "", fmt.Errorf("create media form file: %w", err)
	}
	if _, err := fw.Write(m.Data); err != nil {
		return "", fmt.Errorf("write media bytes: %w", err)
	}
	if m.Description != "" {
		_ = mw.WriteField("description", m.Description)
	}
	if m.HasFocus {
		_ = mw.WriteField("focus", fmt.Sprintf("%g,%g", m.FocusX, m.FocusY))
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("close media form: %w", err)
	}

	req := httpfetch.Request{
		Method:  "POST",
		URL:     apiURL(host, "v1/media"),
		Accept:  "application/json",
		Headers: map[string]string{"Authorization": "Bearer " + token, "Content-Type": mw.FormDataContentType()},
		Body:    &buf,
	}
	result, err := a.client.Do(ctx, caller, req)
	if err != nil {
		return "", err
	}
	if result.Classification != httpfetch.ClassOk {
		return "", &model.ClientError{URL: req.URL, Status: result.Status}
	}
	var wire struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(result.Body, &wire); err != nil {
		return "", fmt.Errorf("decode media upload response: %w", err)
	}
	return wire.ID, nil
}

func (a *mastodonAdapter) scheduleStatus(ctx context.Context, caller, host, token string, draft StatusDraft) (*model.Post, error) {
	if draft.ScheduledAt == nil {
		now := time.Now().Add(time.Minute)
		draft.ScheduledAt = &now
	}
	body, err := json.Marshal(statusDraftPayload(draft))
	if err != nil {
		return nil, fmt.Errorf("encode scheduled draft: %w", err)
	}
	var ws wireStatus
	if _, err := a.doJSON(ctx, caller, "POST", apiURL(host, "v1/statuses"), token, body, &ws); err != nil {
		return nil, err
	}
	post := ws.toPost(host)
	return &post, nil
}

func (a *mastodonAdapter) listScheduled(ctx context.Context, caller, host, token string) ([]model.Post, error) {
	var wire []wireStatus
	if _, err := a.doJSON(ctx, caller, "GET", apiURL(host, "v1/scheduled_statuses"), token, nil, &wire); err != nil {
		return nil, err
	}
	posts := make([]model.Post, 0, len(wire))
	for _, s := range wire {
		posts = append(posts, s.toPost(host))
	}
	return posts, nil
}

func (a *mastodonAdapter) deleteScheduled(ctx context.Context, caller, host, token, id string) error {
	_, err := a.doJSON(ctx, caller, "DELETE", apiURL(host, "v1/scheduled_statuses/"+id), token, nil, nil)
	return err
}

func (a *mastodonAdapter) verifyCredentials(ctx context.Context, caller, host, token string) (*model.Actor, error) {
	var wa wireAccount
	result, err := a.doJSON(ctx, caller, "GET", apiURL(host, "v1/accounts/verify_credentials"), token, nil, &wa)
	if err != nil {
		var clientErr *model.ClientError
		if asClientError(err, &clientErr) && clientErr.Status == http.StatusUnauthorized {
			return nil, &model.InvalidCredentialsError{}
		}
		if result != nil {
			return nil, &model.VerifyFailedError{Status: result.Status}
		}
		return nil, &model.VerifyFailedError{}
	}
	actor := wa.toActor(host)
	return &actor, nil
}

func asClientError(err error, target **model.ClientError) bool {
	ce, ok := err.(*model.ClientError)
	if !ok {
		return false
	}
	*target = ce
	return true
}
