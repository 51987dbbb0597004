package types

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecretStringRedaction(t *testing.T) {
	s := SecretString("token-abc")

	assert.Equal(t, redactedPlaceholder, fmt.Sprintf("%s", s))
	assert.Equal(t, redactedPlaceholder, fmt.Sprintf("%v", s))

	data, err := json.Marshal(struct {
		Token SecretString `json:"token"`
	}{Token: s})
	require.NoError(t, err)
	assert.JSONEq(t, `{"token":"***REDACTED***"}`, string(data))

	assert.Equal(t, "token-abc", s.Unmask())
}
