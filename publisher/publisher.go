package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	usersMePath = "/wp-json/wp/v2/users/me"
	mediaPath   = "/wp-json/wp/v2/media"
	postsPath   = "/wp-json/wp/v2/posts"

	focusKeywordMeta    = "_yoast_wpseo_focuskw"
	metaDescriptionMeta = "_yoast_wpseo_metadesc"
)

// ErrMetaRejected reports that the site refused the SEO meta fields of a post.
var ErrMetaRejected = errors.New("seo meta rejected")

// Config holds the WordPress site credentials.
type Config struct {
	BaseURL     string
	Username    string
	AppPassword string
}

// Asset is an uploaded media item.
type Asset struct {
	ID  int
	URL string
}

// Entry describes the post to create.
type Entry struct {
	Title           string
	HTML            string
	CoverID         int // 0 means no featured image
	Status          string
	FocusKeyword    string
	MetaDescription string
}

// Result is the created post.
type Result struct {
	ID  int
	URL string
}

type mediaResp struct {
	ID        int    `json:"id"`
	SourceURL string `json:"source_url"`
}

type postResp struct {
	ID   int    `json:"id"`
	Link string `json:"link"`
}

type userResp struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type postPayload struct {
	Title         string            `json:"title"`
	Content       string            `json:"content"`
	Status        string            `json:"status"`
	FeaturedMedia int               `json:"featured_media,omitempty"`
	Meta          map[string]string `json:"meta,omitempty"`
}

// WordPress publishes through the WordPress REST API with application passwords.
type WordPress struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

// New creates a WordPress sink and verifies the credentials immediately so a
// tenant with a broken site fails before any generation work.
func New(ctx context.Context, cfg Config, client *http.Client, logger *zap.Logger) (*WordPress, error) {
	if cfg.BaseURL == "" || cfg.Username == "" || cfg.AppPassword == "" {
		return nil, errors.New("wordpress config must include url, username and app password")
	}
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	p := &WordPress{
		cfg:    cfg,
		client: client,
		logger: logger.With(zap.String("site", cfg.BaseURL)),
	}
	if err := p.VerifyAuth(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

// VerifyAuth checks the credentials against the current-user endpoint.
func (p *WordPress) VerifyAuth(ctx context.Context) error {
	req, err := p.newRequest(ctx, http.MethodGet, usersMePath, nil)
	if err != nil {
		return err
	}
	var user userResp
	if err := p.do(req, http.StatusOK, &user); err != nil {
		return fmt.Errorf("wordpress auth: %w", err)
	}
	p.logger.Debug("wordpress auth ok", zap.Int("user_id", user.ID), zap.String("user", user.Name))
	return nil
}

// UploadAsset sends raw image bytes to the media library.
func (p *WordPress) UploadAsset(ctx context.Context, data []byte, filename string) (Asset, error) {
	req, err := p.newRequest(ctx, http.MethodPost, mediaPath, bytes.NewReader(data))
	if err != nil {
		return Asset{}, err
	}
	req.Header.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	req.Header.Set("Content-Type", contentType(filename))

	var media mediaResp
	if err := p.do(req, http.StatusCreated, &media); err != nil {
		return Asset{}, fmt.Errorf("upload %s: %w", filename, err)
	}
	if media.ID == 0 || media.SourceURL == "" {
		return Asset{}, fmt.Errorf("upload %s: response without id or source_url", filename)
	}
	p.logger.Debug("uploaded media", zap.String("file", filename), zap.Int("media_id", media.ID))
	return Asset{ID: media.ID, URL: media.SourceURL}, nil
}

// CreateEntry creates the post. SEO fields travel as Yoast meta; when the site
// rejects them the post is created again without meta.
func (p *WordPress) CreateEntry(ctx context.Context, e Entry) (Result, error) {
	payload := postPayload{
		Title:         e.Title,
		Content:       e.HTML,
		Status:        e.Status,
		FeaturedMedia: e.CoverID,
	}
	if payload.Status == "" {
		payload.Status = "publish"
	}
	meta := map[string]string{}
	if e.FocusKeyword != "" {
		meta[focusKeywordMeta] = e.FocusKeyword
	}
	if e.MetaDescription != "" {
		meta[metaDescriptionMeta] = e.MetaDescription
	}
	if len(meta) > 0 {
		payload.Meta = meta
	}

	res, err := p.createPost(ctx, payload)
	if errors.Is(err, ErrMetaRejected) && payload.Meta != nil {
		p.logger.Warn("seo meta rejected, retrying without meta", zap.Error(err))
		payload.Meta = nil
		res, err = p.createPost(ctx, payload)
	}
	if err != nil {
		return Result{}, fmt.Errorf("create post %q: %w", e.Title, err)
	}
	p.logger.Info("post created", zap.Int("post_id", res.ID), zap.String("url", res.URL))
	return res, nil
}

func (p *WordPress) createPost(ctx context.Context, payload postPayload) (Result, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Result{}, err
	}
	req, err := p.newRequest(ctx, http.MethodPost, postsPath, bytes.NewReader(body))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	var post postResp
	if err := p.do(req, http.StatusCreated, &post); err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.Code == http.StatusBadRequest && strings.Contains(se.Body, "meta") {
			return Result{}, fmt.Errorf("%w: %v", ErrMetaRejected, err)
		}
		return Result{}, err
	}
	return Result{ID: post.ID, URL: post.Link}, nil
}

// StatusError is a non-success response from the site.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("wordpress returned %d: %s", e.Code, e.Body)
}

func (p *WordPress) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, p.cfg.BaseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(p.cfg.Username, p.cfg.AppPassword)
	return req, nil
}

func (p *WordPress) do(req *http.Request, want int, out any) error {
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != want && resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func contentType(filename string) string {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), ".")) {
	case "png", "":
		return "image/png"
	case "webp":
		return "image/webp"
	case "gif":
		return "image/gif"
	default:
		return "image/jpeg"
	}
}
