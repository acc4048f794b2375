package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/orgportal-project/orgportal/internal/config"
	"github.com/orgportal-project/orgportal/internal/observability"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Client is the seam between the entity layer and GitHub. Both the live
// client and the caching decorator satisfy it, so every caller can be fed
// either one.
type Client interface {
	QueryGraphQLAPI(ctx context.Context, query string, variables map[string]interface{}) ([]byte, error)
	CallRestAPI(ctx context.Context, endpoint, parameters, method string, body map[string]interface{}, githubToken *string) ([]byte, error)
	GetAccessToken(ctx context.Context) (string, error)
	CreateJWT() (string, error)
	GetAppSlug() string
}

// AppClient talks to GitHub authenticated as a GitHub App installation, or
// with a personal access token when one is configured.
type AppClient struct {
	server         string
	appID          int64
	installationID int64
	appSlug        string
	privateKey     []byte
	patToken       string
	httpClient     *http.Client

	mu              sync.Mutex
	accessToken     string
	tokenExpiration time.Time
}

// NewClient resolves the app installation for organizationName and returns a
// ready-to-use client. When patToken is non-empty the private key is not read
// and the token is used directly.
func NewClient(server, organizationName string, appID int64, privateKeyFile, patToken string) (Client, error) {
	c := &AppClient{
		server:   server,
		appID:    appID,
		patToken: patToken,
	}

	if patToken == "" {
		key, err := os.ReadFile(privateKeyFile)
		if err != nil {
			return nil, fmt.Errorf("not able to read the app private key: %w", err)
		}
		c.privateKey = key

		if err := c.resolveInstallation(organizationName); err != nil {
			return nil, err
		}
	}

	c.httpClient = &http.Client{Transport: &appTokenTransport{client: c}}
	return c, nil
}

// appTokenTransport injects the installation token into every request,
// renewing it shortly before expiry so a long call never carries a dead token.
type appTokenTransport struct {
	client *AppClient
}

func (t *appTokenTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	token, err := t.client.authToken(req.Context())
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return http.DefaultTransport.RoundTrip(req)
}

func (c *AppClient) authToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.patToken != "" {
		return c.patToken, nil
	}

	if c.accessToken == "" || time.Until(c.tokenExpiration) < 5*time.Minute {
		signedJWT, err := c.CreateJWT()
		if err != nil {
			return "", err
		}
		token, expiresAt, err := c.installationToken(ctx, signedJWT)
		if err != nil {
			return "", err
		}
		c.accessToken = token
		c.tokenExpiration = expiresAt
	}

	return c.accessToken, nil
}

// GetAccessToken returns a valid installation token (or the configured
// personal access token), renewing the installation token when needed.
func (c *AppClient) GetAccessToken(ctx context.Context) (string, error) {
	return c.authToken(ctx)
}

// CreateJWT signs the short-lived app JWT used to mint installation tokens.
func (c *AppClient) CreateJWT() (string, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM(c.privateKey)
	if err != nil {
		return "", fmt.Errorf("not able to parse the app private key: %w", err)
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"iat": now.Unix(),
		"exp": now.Add(10 * time.Minute).Unix(),
		"iss": c.appID,
	})
	return token.SignedString(key)
}

func (c *AppClient) GetAppSlug() string {
	return c.appSlug
}

func (c *AppClient) installationToken(ctx context.Context, signedJWT string) (string, time.Time, error) {
	endpoint := fmt.Sprintf("%s/app/installations/%d/access_tokens", c.server, c.installationID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return "", time.Time{}, err
	}
	req.Header.Set("Authorization", "Bearer "+signedJWT)
	req.Header.Set("Accept", "application/vnd.github+json")

	countAPICall(ctx, "rest")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", time.Time{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return "", time.Time{}, newAPIError(resp.StatusCode, "/app/installations/access_tokens", body)
	}

	var payload struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", time.Time{}, err
	}

	// installation tokens are granted for one hour
	return payload.Token, time.Now().Add(time.Hour), nil
}

type graphQLRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables"`
}

// QueryGraphQLAPI executes a GraphQL query and returns the raw response body.
// Rate-limited requests sleep until the limit resets and are retried.
func (c *AppClient) QueryGraphQLAPI(ctx context.Context, query string, variables map[string]interface{}) ([]byte, error) {
	ctx, span := startAPISpan(ctx, "QueryGraphQLAPI", strings.Contains(query, "mutation"))
	defer span.end()
	span.setAttributes(attribute.String("query", query))
	if jsonVariables, err := json.Marshal(variables); err == nil {
		span.setAttributes(attribute.String("variables", string(jsonVariables)))
	}

	payload, err := json.Marshal(graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		span.fail("not able to marshal the query: %s", err)
		return nil, err
	}

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.server+"/graphql", bytes.NewReader(payload))
		if err != nil {
			span.fail("not able to prepare the request: %s", err)
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")

		countAPICall(ctx, "graphql")
		resp, err := c.httpClient.Do(req)
		if err != nil {
			span.fail("not able to send the request: %s", err)
			return nil, err
		}

		// GraphQL reports secondary limits as 403
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusForbidden {
			countThrottled(ctx)
			retry, rlErr := sleepUntilReset(resp)
			resp.Body.Close()
			if rlErr != nil {
				span.fail("%s", rlErr)
				return nil, rlErr
			}
			if retry {
				continue
			}
			span.fail("throttled without rate limit headers")
			return nil, newAPIError(resp.StatusCode, "/graphql", nil)
		}

		responseBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			span.fail("not able to read the response body: %s", err)
			return nil, err
		}
		span.setAttributes(attribute.String("response", string(responseBody)))
		return responseBody, nil
	}
}

// CallRestAPI issues a REST call against the GitHub API. parameters is the
// raw query string (without the leading "?"). When githubToken is non-nil it
// is used instead of the client's own credentials. On a non-2xx status the
// response body is returned alongside the *APIError so callers can inspect it.
func (c *AppClient) CallRestAPI(ctx context.Context, endpoint, parameters, method string, body map[string]interface{}, githubToken *string) ([]byte, error) {
	ctx, span := startAPISpan(ctx, "CallRestAPI "+endpoint, method != http.MethodGet)
	defer span.end()
	span.setAttributes(
		attribute.String("method", method),
		attribute.String("endpoint", endpoint),
		attribute.String("parameters", parameters),
	)

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			span.fail("not able to marshal the body: %s", err)
			return nil, err
		}
		span.setAttributes(attribute.String("body", string(payload)))
	}

	urlpath, err := url.JoinPath(c.server, endpoint)
	if err != nil {
		span.fail("not able to build the url: %s", err)
		return nil, err
	}
	if parameters != "" {
		urlpath = urlpath + "?" + parameters
	}

	for {
		var bodyReader io.Reader
		if payload != nil {
			bodyReader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, urlpath, bodyReader)
		if err != nil {
			span.fail("not able to prepare the request: %s", err)
			return nil, err
		}
		req.Header.Set("Accept", "application/vnd.github+json")
		req.Header.Set("X-GitHub-Api-Version", "2022-11-28")

		countAPICall(ctx, "rest")

		var resp *http.Response
		if githubToken != nil {
			req.Header.Set("Authorization", "Bearer "+*githubToken)
			resp, err = http.DefaultClient.Do(req)
		} else {
			resp, err = c.httpClient.Do(req)
		}
		if err != nil {
			span.fail("not able to send the request: %s", err)
			return nil, err
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			countThrottled(ctx)
			retry, rlErr := sleepUntilReset(resp)
			resp.Body.Close()
			if rlErr != nil {
				span.fail("%s", rlErr)
				return nil, rlErr
			}
			if retry {
				continue
			}
			return nil, newAPIError(resp.StatusCode, endpoint, nil)
		}

		responseBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			span.fail("not able to read the response body: %s", err)
			return nil, err
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			span.fail("unexpected status: %s", resp.Status)
			return responseBody, newAPIError(resp.StatusCode, endpoint, responseBody)
		}
		return responseBody, nil
	}
}

// sleepUntilReset honors the rate limit headers, cf.
// https://docs.github.com/en/rest/guides/best-practices-for-integrators#dealing-with-rate-limits
// It reports whether the request should be retried.
func sleepUntilReset(resp *http.Response) (bool, error) {
	if reset := resp.Header.Get("X-RateLimit-Reset"); reset != "" {
		resetUnix, err := strconv.ParseInt(reset, 10, 64)
		if err != nil {
			return false, fmt.Errorf("not able to parse the X-RateLimit-Reset header: %w", err)
		}
		until := time.Until(time.Unix(resetUnix, 0))
		logrus.Infof("rate limit reached, sleeping %s", until.Round(time.Second))
		time.Sleep(until)
		return true, nil
	}

	if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
		seconds, err := strconv.Atoi(retryAfter)
		if err != nil {
			return false, fmt.Errorf("not able to parse the Retry-After header: %w", err)
		}
		if seconds > 30 {
			seconds = seconds / 2
		}
		logrus.Debugf("secondary rate limit reached, sleeping %d seconds", seconds)
		time.Sleep(time.Duration(seconds) * time.Second)
		return true, nil
	}

	return false, nil
}

func countAPICall(ctx context.Context, kind string) {
	observability.GithubApiCalls.WithLabelValues(kind).Inc()
	if stats, ok := ctx.Value(config.ContextKeyStatistics).(*config.PortalStatistics); ok {
		stats.GithubApiCalls++
	}
}

func countThrottled(ctx context.Context) {
	observability.GithubThrottled.Inc()
	if stats, ok := ctx.Value(config.ContextKeyStatistics).(*config.PortalStatistics); ok {
		stats.GithubThrottled++
	}
}

// apiSpan wraps an optional trace span so call sites stay flat when tracing
// is disabled. Mutations are always traced; reads only with TraceAll.
type apiSpan struct {
	span trace.Span
}

func startAPISpan(ctx context.Context, name string, always bool) (context.Context, *apiSpan) {
	s := &apiSpan{}
	if config.Config.OpenTelemetryEnabled && (always || config.Config.OpenTelemetryTraceAll) {
		ctx, s.span = otel.Tracer("orgportal").Start(ctx, name)
	}
	return ctx, s
}

func (s *apiSpan) setAttributes(attrs ...attribute.KeyValue) {
	if s.span != nil {
		s.span.SetAttributes(attrs...)
	}
}

func (s *apiSpan) fail(format string, args ...interface{}) {
	if s.span != nil {
		s.span.SetStatus(codes.Error, fmt.Sprintf(format, args...))
	}
}

func (s *apiSpan) end() {
	if s.span != nil {
		s.span.End()
	}
}
