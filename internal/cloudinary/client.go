package cloudinary

import (
	"bytes"
	"context"
	"crypto/sha1"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
)

const defaultBaseURL = "https://api.cloudinary.com"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Client uploads and removes gallery images through the Cloudinary REST API.
type Client struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
	BaseURL   string
	HTTP      *http.Client

	now func() time.Time
}

// New creates a Cloudinary client.
func New(cloudName, apiKey, apiSecret, folder string) *Client {
	return &Client{
		CloudName: cloudName,
		APIKey:    apiKey,
		APISecret: apiSecret,
		Folder:    folder,
		BaseURL:   defaultBaseURL,
		HTTP:      &http.Client{Timeout: 30 * time.Second},
		now:       time.Now,
	}
}

// Configured reports whether credentials are present.
func (c *Client) Configured() bool {
	return c != nil && c.CloudName != "" && c.APIKey != "" && c.APISecret != ""
}

// Source is the image to upload: either a data URL or raw bytes.
type Source struct {
	DataURL  string
	Bytes    []byte
	Filename string
}

// UploadResult holds the response from Cloudinary after a successful upload.
type UploadResult struct {
	PublicID  string `json:"public_id"`
	SecureURL string `json:"secure_url"`
	URL       string `json:"url"`
	Format    string `json:"format"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Bytes     int    `json:"bytes"`
}

// Upload sends src to the image upload endpoint.
func (c *Client) Upload(ctx context.Context, src Source) (*UploadResult, error) {
	if src.DataURL == "" && len(src.Bytes) == 0 {
		return nil, errors.New("cloudinary: empty source")
	}
	params := map[string]string{}
	if c.Folder != "" {
		params["folder"] = c.Folder
	}
	params = c.signedParams(params)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range params {
		_ = w.WriteField(k, v)
	}
	if src.DataURL != "" {
		// data URLs are accepted as the plain "file" field
		_ = w.WriteField("file", src.DataURL)
	} else {
		filename := src.Filename
		if filename == "" {
			filename = "upload"
		}
		part, err := w.CreateFormFile("file", filename)
		if err != nil {
			return nil, fmt.Errorf("cloudinary: create form file failed: %w", err)
		}
		if _, err := part.Write(src.Bytes); err != nil {
			return nil, fmt.Errorf("cloudinary: write file failed: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("cloudinary: close form failed: %w", err)
	}

	var result UploadResult
	if err := c.post(ctx, "upload", w.FormDataContentType(), &buf, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Destroy removes the asset with publicID. A missing asset is not an error.
func (c *Client) Destroy(ctx context.Context, publicID string) error {
	if publicID == "" {
		return nil
	}
	params := c.signedParams(map[string]string{"public_id": publicID})

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range params {
		_ = w.WriteField(k, v)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("cloudinary: close form failed: %w", err)
	}

	var result struct {
		Result string `json:"result"`
	}
	if err := c.post(ctx, "destroy", w.FormDataContentType(), &buf, &result); err != nil {
		return err
	}
	switch result.Result {
	case "ok", "not found":
		return nil
	default:
		return fmt.Errorf("cloudinary: destroy %s: %s", publicID, result.Result)
	}
}

func (c *Client) signedParams(params map[string]string) map[string]string {
	now := c.now
	if now == nil {
		now = time.Now
	}
	params["timestamp"] = strconv.FormatInt(now().Unix(), 10)
	params["api_key"] = c.APIKey
	params["signature"] = c.sign(params)
	return params
}

func (c *Client) post(ctx context.Context, action, contentType string, body io.Reader, out any) error {
	base := c.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	url := fmt.Sprintf("%s/v1_1/%s/image/%s", strings.TrimRight(base, "/"), c.CloudName, action)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return fmt.Errorf("cloudinary: create request failed: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("cloudinary: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return fmt.Errorf("cloudinary: %s failed (%d): %s", action, resp.StatusCode, string(raw))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("cloudinary: decode response failed: %w", err)
	}
	return nil
}

// sign computes the Cloudinary API signature from the given params.
// api_key, file and signature itself are excluded.
func (c *Client) sign(params map[string]string) string {
	excludeKeys := map[string]bool{"api_key": true, "file": true, "resource_type": true, "signature": true}

	pairs := make([]string, 0, len(params))
	for k, v := range params {
		if !excludeKeys[k] && v != "" {
			pairs = append(pairs, k+"="+v)
		}
	}
	sort.Strings(pairs)

	payload := strings.Join(pairs, "&") + c.APISecret
	h := sha1.New()
	h.Write([]byte(payload))
	return fmt.Sprintf("%x", h.Sum(nil))
}
