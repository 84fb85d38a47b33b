package upstream

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/jonboulle/clockwork"

	"github.com/openshift-assisted/fleet-telemetry/internal/config"
	"github.com/openshift-assisted/fleet-telemetry/internal/domain/entity"
	"github.com/openshift-assisted/fleet-telemetry/pkg/gateway"
)

var ErrUnexpectedResponse = errors.New("unexpected response type")

type Caller interface {
	Call(ctx context.Context, req gateway.Request) (Response, error)
}

type SourceConfig struct {
	Creds        config.UpstreamCreds
	LiveTTL      time.Duration
	ReferenceTTL time.Duration
}

// Source serves entity positions through the gateway. It logs in lazily, keeps the session token
// and tracks one server cursor per entity set.
type Source struct {
	caller Caller
	clock  clockwork.Clock
	config SourceConfig

	logger      *logr.Logger
	onDataError func(entity.DataError)

	mu      sync.Mutex
	token   string
	cursors map[string]int64
}

func NewSource(caller Caller, clock clockwork.Clock, config SourceConfig) *Source {
	return &Source{
		caller:  caller,
		clock:   clock,
		config:  config,
		cursors: make(map[string]int64),
	}
}

func (s *Source) WithLogger(logger logr.Logger) *Source {
	s.logger = &logger

	return s
}

// OnDataError registers a hook called with every malformed upstream payload.
func (s *Source) OnDataError(hook func(entity.DataError)) *Source {
	s.onDataError = hook

	return s
}

func (s *Source) Positions(ctx context.Context, entityIDs []string, fresh bool) ([]entity.Entity, error) {
	if len(entityIDs) == 0 {
		return nil, nil
	}

	key := cursorKey(entityIDs)

	s.mu.Lock()
	cursor := s.cursors[key]
	s.mu.Unlock()

	resp, err := s.authenticatedCall(ctx, gateway.Request{
		Action:    ActionLastPosition,
		EntityIDs: entityIDs,
		Cursor:    cursor,
		Fresh:     fresh,
		TTL:       s.config.LiveTTL,
	})
	if err != nil {
		return nil, err
	}

	positions, ok := resp.(PositionsResponse)
	if !ok {
		return nil, fmt.Errorf("%w: %T for %s", ErrUnexpectedResponse, resp, ActionLastPosition)
	}

	if positions.Cursor > 0 {
		s.mu.Lock()
		if positions.Cursor > s.cursors[key] {
			s.cursors[key] = positions.Cursor
		}
		s.mu.Unlock()
	}

	ret := make([]entity.Entity, 0, len(positions.Records))
	for _, record := range positions.Records {
		if record.DeviceID == "" {
			continue
		}

		ret = append(ret, record.Entity())
	}

	return ret, nil
}

// Entities lists every entity known upstream. It is reference data, cached longer.
func (s *Source) Entities(ctx context.Context) ([]entity.Entity, error) {
	resp, err := s.authenticatedCall(ctx, gateway.Request{
		Action: ActionMonitorList,
		TTL:    s.config.ReferenceTTL,
	})
	if err != nil {
		return nil, err
	}

	list, ok := resp.(MonitorListResponse)
	if !ok {
		return nil, fmt.Errorf("%w: %T for %s", ErrUnexpectedResponse, resp, ActionMonitorList)
	}

	ret := make([]entity.Entity, 0, len(list.Devices))
	for _, device := range list.Devices {
		ret = append(ret, entity.Entity{ID: device.DeviceID, Name: device.DeviceName, Tier: entity.TierInactive})
	}

	return ret, nil
}

func (s *Source) Cursors() map[string]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	ret := make(map[string]int64, len(s.cursors))
	for k, v := range s.cursors {
		ret[k] = v
	}

	return ret
}

func (s *Source) RestoreCursors(cursors map[string]int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k, v := range cursors {
		s.cursors[k] = v
	}
}

// authenticatedCall runs req with the current token. An authentication error drops the token and
// the call is replayed once after a new login.
func (s *Source) authenticatedCall(ctx context.Context, req gateway.Request) (Response, error) {
	resp, err := s.callWithToken(ctx, req)
	if errors.Is(err, gateway.ErrAuthentication) {
		s.logInfo(1, "Token rejected, login again", "action", req.Action)

		resp, err = s.callWithToken(ctx, req)
	}

	if err != nil {
		s.reportDataError(err)

		return nil, err
	}

	return resp, nil
}

func (s *Source) callWithToken(ctx context.Context, req gateway.Request) (Response, error) {
	token, err := s.login(ctx)
	if err != nil {
		return nil, err
	}

	params := make(map[string]string, len(req.Params)+1)
	for k, v := range req.Params {
		params[k] = v
	}

	params[tokenParam] = token
	req.Params = params

	resp, err := s.caller.Call(ctx, req)
	if errors.Is(err, gateway.ErrAuthentication) {
		s.mu.Lock()
		if s.token == token {
			s.token = ""
		}
		s.mu.Unlock()
	}

	return resp, err
}

func (s *Source) login(ctx context.Context) (string, error) {
	s.mu.Lock()
	token := s.token
	s.mu.Unlock()

	if token != "" {
		return token, nil
	}

	resp, err := s.caller.Call(ctx, gateway.Request{
		Action:  ActionLogin,
		NoCache: true,
		Params: map[string]string{
			accountParam:  s.config.Creds.Account,
			passwordParam: s.config.Creds.Password,
		},
	})
	if err != nil {
		return "", fmt.Errorf("login failed: %w", err)
	}

	login, ok := resp.(LoginResponse)
	if !ok {
		return "", fmt.Errorf("%w: %T for %s", ErrUnexpectedResponse, resp, ActionLogin)
	}

	s.mu.Lock()
	s.token = login.Token
	s.mu.Unlock()

	s.logInfo(1, "Logged in upstream")

	return login.Token, nil
}

func (s *Source) reportDataError(err error) {
	var malformed gateway.ErrMalformedResponse
	if !errors.As(err, &malformed) {
		return
	}

	s.logInfo(0, "Malformed upstream payload", "action", malformed.Action, "preview", malformed.Preview)

	if s.onDataError == nil {
		return
	}

	s.onDataError(entity.DataError{
		Action:    malformed.Action,
		Preview:   malformed.Preview,
		Error:     malformed.Error(),
		Timestamp: s.clock.Now().UTC(),
	})
}

func (s *Source) logInfo(level int, msg string, keysAndValues ...any) {
	if s.logger == nil {
		return
	}

	s.logger.V(level).Info(msg, keysAndValues...)
}

func cursorKey(entityIDs []string) string {
	ids := append([]string(nil), entityIDs...)
	sort.Strings(ids)

	return strings.Join(ids, ",")
}
