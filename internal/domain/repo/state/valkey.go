package state

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/openshift-assisted/fleet-telemetry/internal/common"
	"github.com/openshift-assisted/fleet-telemetry/internal/domain/entity"
)

const (
	categoryInternalError     = "valkey_internal_error"
	categoryValkeyClientError = "valkey_client"
)

// ValkeyRepo keeps the whole state in a single hash: one field per entity, one per cursor.
type ValkeyRepo struct {
	client     valkey.Client
	key        string
	expiration time.Duration
}

func NewValkeyRepo(client valkey.Client, key string, expiration time.Duration) ValkeyRepo {
	return ValkeyRepo{
		client:     client,
		key:        key,
		expiration: expiration,
	}
}

func (r ValkeyRepo) SaveState(ctx context.Context, state entity.State) error {
	savedAt := state.SavedAt
	if savedAt.IsZero() {
		savedAt = time.Now()
	}

	hset := r.client.B().Hset().Key(r.key).FieldValue().FieldValue(savedAtField, strconv.FormatInt(savedAt.UnixMilli(), 10))

	for id, e := range state.Entities {
		// Marshal local model
		data, err := json.Marshal(mapToModels(e))
		if err != nil {
			return common.NewErrProcessingError(err, categoryInternalError, nil, "failed to marshal entity %s", id)
		}

		hset = hset.FieldValue(entityFieldPrefix+id, string(data))
	}

	for set, cursor := range state.Cursors {
		hset = hset.FieldValue(cursorFieldPrefix+set, strconv.FormatInt(cursor, 10))
	}

	commands := []valkey.Completed{
		r.client.B().Multi().Build(),
		r.client.B().Del().Key(r.key).Build(),
		hset.Build(),
		r.client.B().Expire().Key(r.key).Seconds(int64(r.expiration.Seconds())).Build(),
		r.client.B().Exec().Build(),
	}

	for _, resp := range r.client.DoMulti(ctx, commands...) {
		err := resp.Error()
		if err != nil {
			switch {
			case r.isRetryable(err):
				return common.NewRetryableErrProcessingError(err, categoryValkeyClientError, nil, "failed to save state")
			default:
				return common.NewErrProcessingError(err, categoryValkeyClientError, nil, "failed to save state")
			}
		}
	}

	return nil
}

func (r ValkeyRepo) LoadState(ctx context.Context) (entity.State, error) {
	ret := entity.State{
		Entities: make(map[string]entity.Entity),
		Cursors:  make(map[string]int64),
	}

	command := r.client.B().Hgetall().Key(r.key).Build()

	resp := r.client.Do(ctx, command)

	err := resp.Error()
	if err != nil {
		switch {
		case r.isRetryable(err):
			return ret, common.NewRetryableErrProcessingError(err, categoryValkeyClientError, nil, "failed to load state")
		default:
			return ret, common.NewErrProcessingError(err, categoryValkeyClientError, nil, "failed to load state")
		}
	}

	result, err := resp.AsStrMap()
	if err != nil {
		return ret, common.NewErrProcessingError(err, categoryInternalError, nil, "unexpected hgetall response type for %s", r.key)
	}

	for field, value := range result {
		switch {
		case field == savedAtField:
			ms, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return ret, common.NewErrProcessingError(err, categoryInternalError, nil, "invalid %s in %s", savedAtField, r.key)
			}

			ret.SavedAt = time.UnixMilli(ms).UTC()
		case strings.HasPrefix(field, entityFieldPrefix):
			id := strings.TrimPrefix(field, entityFieldPrefix)
			model := Entity{}

			err := json.Unmarshal([]byte(value), &model)
			if err != nil {
				return ret, common.NewErrProcessingError(err, categoryInternalError, nil, "failed to unmarshal entity %s", id)
			}

			ret.Entities[id] = mapToEntity(id, model)
		case strings.HasPrefix(field, cursorFieldPrefix):
			cursor, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return ret, common.NewErrProcessingError(err, categoryInternalError, nil, "invalid cursor %s", field)
			}

			ret.Cursors[strings.TrimPrefix(field, cursorFieldPrefix)] = cursor
		}
	}

	return ret, nil
}

func (r ValkeyRepo) isRetryable(err error) bool {
	// Network error
	if errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}

	// Valkey specfic error
	vErr, isValkeyError := valkey.IsValkeyErr(err)
	if !isValkeyError {
		return false
	}

	return vErr.IsTryAgain()
}
