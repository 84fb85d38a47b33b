package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-logr/logr"

	"github.com/openshift-assisted/fleet-telemetry/internal/config"
	"github.com/openshift-assisted/fleet-telemetry/pkg/gateway"
)

const (
	tokenParam    = "token"
	accountParam  = "account"
	passwordParam = "password"

	maxBodySize = 10 << 20
)

// Client performs one HTTP round-trip per call and classifies the outcome into gateway error kinds.
type Client struct {
	baseURL string
	http    *http.Client

	rateLimitStatus int
	authStatuses    []int

	logger *logr.Logger
}

var _ gateway.Transport[Response] = Client{}

func NewClient(conf config.Upstream) (Client, error) {
	u, err := url.Parse(conf.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return Client{}, fmt.Errorf("invalid upstream url %q", conf.URL)
	}

	timeout := conf.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return Client{
		baseURL:         strings.TrimRight(conf.URL, "/"),
		http:            &http.Client{Timeout: timeout},
		rateLimitStatus: conf.RateLimitStatus,
		authStatuses:    conf.AuthStatuses,
	}, nil
}

func (c Client) WithLogger(logger logr.Logger) Client {
	c.logger = &logger

	return c
}

func (c Client) Do(ctx context.Context, req gateway.Request) (Response, error) {
	httpReq, err := c.newRequest(ctx, req)
	if err != nil {
		return nil, gateway.NewErrBadRequest(err)
	}

	start := time.Now()

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, transportError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, transportError(err)
	}

	c.logInfo(3, "Upstream call done", "action", req.Action, "status", resp.StatusCode, "duration", time.Since(start))

	err = statusError(resp.StatusCode, raw)
	if err != nil {
		return nil, err
	}

	var env envelope

	err = json.Unmarshal(raw, &env)
	if err != nil {
		return nil, gateway.NewErrMalformedResponse(err, req.Action, raw)
	}

	err = c.envelopeError(env)
	if err != nil {
		return nil, err
	}

	return decodeResponse(req.Action, env, raw)
}

func (c Client) newRequest(ctx context.Context, req gateway.Request) (*http.Request, error) {
	query := url.Values{}
	query.Set("action", req.Action)

	if token := req.Params[tokenParam]; token != "" {
		query.Set(tokenParam, token)
	}

	target := c.baseURL + "?" + query.Encode()

	if req.Action == ActionLogin {
		body, err := json.Marshal(loginBody{
			Account:  req.Params[accountParam],
			Password: req.Params[passwordParam],
		})
		if err != nil {
			return nil, fmt.Errorf("failed to encode login body: %w", err)
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}

		httpReq.Header.Set("Content-Type", "application/json")

		return httpReq, nil
	}

	form := url.Values{}

	for k, v := range req.Params {
		if k == tokenParam {
			continue
		}

		form.Set(k, v)
	}

	if len(req.EntityIDs) > 0 {
		form.Set("devids", strings.Join(req.EntityIDs, ","))
	}

	if req.Cursor > 0 {
		form.Set("lastquerypositiontime", strconv.FormatInt(req.Cursor, 10))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return httpReq, nil
}

func (c Client) envelopeError(env envelope) error {
	if env.Status == 0 {
		return nil
	}

	err := fmt.Errorf("upstream status %d: %s", env.Status, env.reason())

	switch {
	case env.Status == c.rateLimitStatus:
		return gateway.NewErrRateLimit(err)
	case slices.Contains(c.authStatuses, env.Status):
		return gateway.NewErrAuthentication(err)
	default:
		return gateway.NewErrServer(err)
	}
}

func (c Client) logInfo(level int, msg string, keysAndValues ...any) {
	if c.logger == nil {
		return
	}

	c.logger.V(level).Info(msg, keysAndValues...)
}

func transportError(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return gateway.NewErrTimeout(err)
	}

	return gateway.NewErrNetwork(err)
}

func statusError(code int, raw []byte) error {
	if code < http.StatusBadRequest {
		return nil
	}

	preview := raw
	if len(preview) > 128 {
		preview = preview[:128]
	}

	err := fmt.Errorf("http status %d: %s", code, bytes.TrimSpace(preview))

	switch {
	case code == http.StatusTooManyRequests:
		return gateway.NewErrRateLimit(err)
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return gateway.NewErrAuthentication(err)
	case code < http.StatusInternalServerError:
		return gateway.NewErrBadRequest(err)
	default:
		return gateway.NewErrServer(err)
	}
}

func decodeResponse(action string, env envelope, raw []byte) (Response, error) {
	switch action {
	case ActionLogin:
		if env.Token == "" {
			return nil, gateway.NewErrMalformedResponse(errors.New("missing token"), action, raw)
		}

		return LoginResponse{Token: env.Token}, nil
	case ActionLastPosition:
		ret := PositionsResponse{Cursor: env.LastQueryPositionTime}

		body := env.body()
		if body == nil {
			return ret, nil
		}

		err := json.Unmarshal(body, &ret.Records)
		if err != nil {
			return nil, gateway.NewErrMalformedResponse(err, action, raw)
		}

		return ret, nil
	case ActionMonitorList:
		ret := MonitorListResponse{}

		body := env.body()
		if body == nil {
			return ret, nil
		}

		err := json.Unmarshal(body, &ret.Devices)
		if err != nil {
			return nil, gateway.NewErrMalformedResponse(err, action, raw)
		}

		return ret, nil
	default:
		return UnknownResponse{Name: action, Raw: env.body()}, nil
	}
}
