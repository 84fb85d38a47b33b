package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/openshift-assisted/fleet-telemetry/internal/domain/entity"
)

func FuzzComputeObjectKey(f *testing.F) {
	for _, seed := range []string{"default", "fleet-a", "with space", "a/b", ""} {
		f.Add(seed)
	}

	repo := S3Writer{prefix: "archive"}
	now := time.Now()

	f.Fuzz(func(t *testing.T, id string) {
		key, err := repo.computeObjectKey(entity.TelemetryBatch{
			SessionID: id,
			FetchedAt: now,
		})

		invalid := id == "" || containsAny(id, "/ ")
		if invalid {
			assert.ErrorIs(t, err, ErrInvalidSessionID)

			return
		}

		assert.NoError(t, err)
		assert.Contains(t, key, "/"+id+"/")
	})
}

func containsAny(s string, chars string) bool {
	for _, r := range s {
		for _, c := range chars {
			if r == c {
				return true
			}
		}
	}

	return false
}

func TestComputeObjectKey(t *testing.T) {
	repo := S3Writer{prefix: "archive"}

	testcases := []struct {
		id         string
		ts         time.Time
		shouldFail bool
		expect     string
	}{
		{
			id:     "default",
			ts:     time.Unix(1741014594, 0),
			expect: "archive/2025-03-03/default/1741014594000.ndjson",
		},
		{
			id:     "fleet-a",
			ts:     time.Unix(1741014594, 5e8),
			expect: "archive/2025-03-03/fleet-a/1741014594500.ndjson",
		},
		{
			id:         "a/b",
			ts:         time.Unix(1741014594, 0),
			shouldFail: true,
		},
		{
			id:         "",
			ts:         time.Unix(1741014594, 0),
			shouldFail: true,
		},
	}
	for _, tc := range testcases {
		key, err := repo.computeObjectKey(entity.TelemetryBatch{
			SessionID: tc.id,
			FetchedAt: tc.ts,
		})

		if tc.shouldFail {
			assert.Error(t, err, "id is supposed to generate an invalid key")

			continue
		}

		assert.Equal(t, tc.expect, key)
	}
}
