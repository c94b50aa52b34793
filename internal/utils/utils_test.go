package utils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatNumbers(t *testing.T) {
	assert.Equal(t, "ORD-000042", FormatOrderNumber(42))
	assert.Equal(t, "DRF-000007", FormatDraftNumber(7))
	assert.Equal(t, "ORD-1234567", FormatOrderNumber(1234567))
}

func TestParseOrderNumber(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		n, err := ParseOrderNumber("ORD-000042")
		require.NoError(t, err)
		assert.Equal(t, int64(42), n)
	})

	for _, bad := range []string{"", "DRF-000001", "ORD-", "ORD-abc", "ORD-000000"} {
		t.Run("Invalid_"+bad, func(t *testing.T) {
			_, err := ParseOrderNumber(bad)
			assert.Error(t, err)
		})
	}
}

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"987 654 321", "51987654321"},
		{"+51 987-654-321", "51987654321"},
		{"51987654321", "51987654321"},
		{"0987654321", "51987654321"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizePhone(tt.in, "51"), tt.in)
	}
}

func TestWriteJSONError(t *testing.T) {
	w := httptest.NewRecorder()
	WriteJSONError(w, "bad request", http.StatusBadRequest)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "bad request", body["error"])
}
