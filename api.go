package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	log "github.com/sirupsen/logrus"
)

const hoyolabAPIBaseURL = "https://bbs-api-os.hoyolab.com/community/post/wapi"

// DefaultCategorySize is the per-category retention size when unconfigured.
const DefaultCategorySize = 5

// emptyParagraphPrefixes are the leading paragraphs the Hoyolab editor leaves
// behind in post content.
var emptyParagraphPrefixes = []string{"<p></p>", "<p>&nbsp;</p>", "<p><br></p>"}

// HoyolabClient wraps the Hoyolab community REST endpoints for one game. It
// keeps no state between calls and is safe for concurrent use.
type HoyolabClient struct {
	game    Game
	lang    Language
	baseURL string
	client  *http.Client
}

// NewHoyolabClient creates a client for one game. A nil http.Client falls
// back to a default with a request timeout.
func NewHoyolabClient(game Game, lang Language, client *http.Client) *HoyolabClient {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HoyolabClient{
		game:    game,
		lang:    lang,
		baseURL: hoyolabAPIBaseURL,
		client:  client,
	}
}

// request sends a GET request to an API endpoint and unwraps the response
// envelope, returning the raw data payload.
func (c *HoyolabClient) request(ctx context.Context, endpoint string, params url.Values) (json.RawMessage, error) {
	reqURL := fmt.Sprintf("%s/%s?%s", c.baseURL, endpoint, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAPIRequest, err)
	}
	req.Header.Set("Origin", "https://www.hoyolab.com")
	req.Header.Set("X-Rpc-Language", string(c.lang))

	log.WithFields(log.Fields{"endpoint": endpoint, "game": c.game.Name()}).Debug("Requesting Hoyolab endpoint")

	res, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAPIRequest, err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: HTTP error %d", ErrAPIRequest, res.StatusCode)
	}

	contentType := res.Header.Get("Content-Type")
	if !strings.Contains(strings.ToLower(contentType), "application/json") {
		return nil, fmt.Errorf("%w: unexpected content type %q", ErrAPIDecode, contentType)
	}

	var envelope apiEnvelope
	if err := json.NewDecoder(res.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAPIDecode, err)
	}

	if envelope.Retcode == nil || envelope.Data == nil {
		return nil, fmt.Errorf("%w: missing envelope fields", ErrAPIResponse)
	}
	if *envelope.Retcode != 0 {
		// the message might not be in english, surface it verbatim
		return nil, &APIError{Retcode: *envelope.Retcode, Message: envelope.Message}
	}

	return envelope.Data, nil
}

// getNewsList requests the most recent posts of a category.
func (c *HoyolabClient) getNewsList(ctx context.Context, category Category, size int) ([]apiPost, error) {
	params := url.Values{}
	params.Set("gids", strconv.Itoa(int(c.game)))
	params.Set("page_size", strconv.Itoa(size))
	params.Set("type", strconv.Itoa(int(category)))

	data, err := c.request(ctx, "getNewsList", params)
	if err != nil {
		return nil, err
	}

	var list apiNewsList
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAPIDecode, err)
	}
	if list.List == nil {
		return nil, fmt.Errorf("%w: missing post list", ErrAPIResponse)
	}

	return list.List, nil
}

// getPost requests a single post with its full content.
func (c *HoyolabClient) getPost(ctx context.Context, id int64) (*apiPost, error) {
	params := url.Values{}
	params.Set("gids", strconv.Itoa(int(c.game)))
	params.Set("post_id", strconv.FormatInt(id, 10))

	data, err := c.request(ctx, "getPostFull", params)
	if err != nil {
		return nil, err
	}

	var post apiPostData
	if err := json.Unmarshal(data, &post); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAPIDecode, err)
	}
	if post.Post == nil {
		return nil, fmt.Errorf("%w: missing post", ErrAPIResponse)
	}

	return post.Post, nil
}

// ListSummaries returns id and last-modified time of the most recent posts in
// a category, newest first as listed by the API.
func (c *HoyolabClient) ListSummaries(ctx context.Context, category Category, size int) ([]ItemSummary, error) {
	posts, err := c.getNewsList(ctx, category, size)
	if err != nil {
		return nil, err
	}

	summaries := make([]ItemSummary, 0, len(posts))
	for _, post := range posts {
		id, err := strconv.ParseInt(post.Post.PostID, 10, 64)
		if err != nil || post.Post.CreatedAt <= 0 {
			return nil, fmt.Errorf("%w: invalid post in list", ErrAPIResponse)
		}

		lastModified := post.Post.CreatedAt
		if post.LastModifyTime > lastModified {
			lastModified = post.LastModifyTime
		}

		summaries = append(summaries, ItemSummary{
			ID:           id,
			LastModified: time.Unix(lastModified, 0),
		})
	}

	return summaries, nil
}

// FetchItem fetches a single post and returns it as a feed item.
func (c *HoyolabClient) FetchItem(ctx context.Context, id int64) (FeedItem, error) {
	post, err := c.getPost(ctx, id)
	if err != nil {
		return FeedItem{}, err
	}
	return transformPost(*post)
}

// transformPost converts the wire shape of a full post into a FeedItem.
func transformPost(post apiPost) (FeedItem, error) {
	id, err := strconv.ParseInt(post.Post.PostID, 10, 64)
	if err != nil {
		return FeedItem{}, fmt.Errorf("%w: invalid post id %q", ErrAPIResponse, post.Post.PostID)
	}
	if post.Post.Subject == "" || post.Post.CreatedAt <= 0 || post.User.Nickname == "" {
		return FeedItem{}, fmt.Errorf("%w: post %d is missing required fields", ErrAPIResponse, id)
	}

	category := Category(post.Post.OfficialType)
	if !category.valid() {
		return FeedItem{}, fmt.Errorf("%w: post %d has unknown category %d", ErrAPIResponse, id, post.Post.OfficialType)
	}

	content := stripLeadingEmptyParagraph(post.Post.Content)

	item := FeedItem{
		ID:        id,
		Title:     post.Post.Subject,
		Author:    post.User.Nickname,
		Content:   content,
		Category:  category,
		Published: time.Unix(post.Post.CreatedAt, 0),
	}

	if post.LastModifyTime > 0 {
		item.Updated = time.Unix(post.LastModifyTime, 0)
	}

	if len(post.ImageList) > 0 {
		item.Image = post.ImageList[0].URL
	} else {
		item.Image = firstContentImage(content)
	}

	return item, nil
}

// stripLeadingEmptyParagraph removes the empty paragraph some posts start
// with. Content not starting with one is returned untouched.
func stripLeadingEmptyParagraph(content string) string {
	for _, prefix := range emptyParagraphPrefixes {
		if strings.HasPrefix(content, prefix) {
			if _, after, found := strings.Cut(content, "</p>"); found {
				return after
			}
		}
	}
	return content
}

// firstContentImage returns the src of the first inline image of the post
// content, used as feed image when the post has no preview images.
func firstContentImage(content string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return ""
	}
	src, _ := doc.Find("img").First().Attr("src")
	return src
}
