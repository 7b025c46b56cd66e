package shared

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryInt(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		url     string
		want    int
		wantErr bool
	}{
		{name: "missing uses default", url: "/history", want: 20},
		{name: "present", url: "/history?limit=5", want: 5},
		{name: "negative", url: "/history?limit=-1", want: -1},
		{name: "not a number", url: "/history?limit=ten", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := QueryInt(httptest.NewRequest(http.MethodGet, tc.url, nil), "limit", 20)
			if tc.wantErr {
				assert.ErrorContains(t, err, "limit must be an integer")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

type limitQuery struct {
	Limit int `validate:"min=1,max=100"`
}

type selfValidating struct{}

func (selfValidating) Validate() error { return errors.New("custom rule") }

func TestValidateRequest(t *testing.T) {
	t.Parallel()

	assert.NoError(t, ValidateRequest(limitQuery{Limit: 10}))
	assert.Error(t, ValidateRequest(limitQuery{Limit: 0}))
	assert.EqualError(t, ValidateRequest(selfValidating{}), "custom rule")
}
