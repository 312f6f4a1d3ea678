package locator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/geongi-im/yolo-traffic-monitor/internal/config"
	"github.com/geongi-im/yolo-traffic-monitor/internal/logger"
)

const (
	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	referer   = "https://map.naver.com/"

	maxBodySize = 4 << 20
)

var (
	ErrAuth     = errors.New("session cookie acquisition failed")
	ErrNotFound = errors.New("camera stream not found")
	ErrUpstream = errors.New("upstream request failed")
)

// Client resolves a camera id to a playable HLS URL. It keeps no state between calls
// and never retries.
type Client struct {
	authURL   string
	lookupURL string
	http      *http.Client
	logger    *logger.Logger
}

func NewClient(config *config.Config, logger *logger.Logger) *Client {
	return New(config.AuthURL, config.LookupURL, &http.Client{Timeout: config.HTTPTimeout}, logger)
}

// New builds a Client against explicit endpoints.
func New(authURL, lookupURL string, httpClient *http.Client, logger *logger.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		authURL:   authURL,
		lookupURL: lookupURL,
		http:      httpClient,
		logger:    logger,
	}
}

type lookupResponse struct {
	Message struct {
		Result struct {
			CCTVList []channelDescriptor `json:"cctvList"`
		} `json:"result"`
	} `json:"message"`
}

type channelDescriptor struct {
	Channel channelID `json:"channel"`
	HLSURL  string    `json:"hlsUrl"`
}

// channelID accepts the channel as either a JSON number or a numeric string.
type channelID int

func (c *channelID) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*c = -1
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		*c = -1
		return nil
	}
	*c = channelID(n)
	return nil
}

// Resolve runs the two-step handshake: acquire session cookies, then look the camera up.
func (c *Client) Resolve(ctx context.Context, cameraID int) (string, error) {
	cookies, err := c.sessionCookies(ctx)
	if err != nil {
		return "", err
	}
	c.logger.Debug("Acquired %d session cookies", len(cookies))

	hlsURL, err := c.lookup(ctx, cameraID, cookies)
	if err != nil {
		return "", err
	}
	c.logger.Debug("Resolved camera %d to %s", cameraID, truncate(hlsURL, 50))
	return hlsURL, nil
}

func (c *Client) sessionCookies(ctx context.Context) ([]*http.Cookie, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.authURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuth, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuth, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: auth endpoint returned HTTP %d", ErrUpstream, resp.StatusCode)
	}
	cookies := resp.Cookies()
	if len(cookies) == 0 {
		return nil, fmt.Errorf("%w: auth endpoint set no cookies", ErrAuth)
	}
	return cookies, nil
}

func (c *Client) lookup(ctx context.Context, cameraID int, cookies []*http.Cookie) (string, error) {
	u, err := url.Parse(c.lookupURL)
	if err != nil {
		return "", fmt.Errorf("%w: bad lookup url: %v", ErrUpstream, err)
	}
	q := u.Query()
	q.Set("cctvId", strconv.Itoa(cameraID))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Referer", referer)
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: lookup returned HTTP %d", ErrUpstream, resp.StatusCode)
	}

	var body lookupResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(&body); err != nil {
		return "", fmt.Errorf("%w: decode lookup response: %v", ErrUpstream, err)
	}

	matched := false
	for _, ch := range body.Message.Result.CCTVList {
		if int(ch.Channel) != cameraID {
			continue
		}
		matched = true
		if ch.HLSURL != "" {
			return ch.HLSURL, nil
		}
	}
	if matched {
		return "", fmt.Errorf("%w: channel %d has no stream url", ErrNotFound, cameraID)
	}
	return "", fmt.Errorf("%w: channel %d", ErrNotFound, cameraID)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
