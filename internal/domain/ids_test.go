package domain_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aelexs/authsession/internal/domain"
)

func TestGenerateRequestID(t *testing.T) {
	a := domain.GenerateRequestID()
	b := domain.GenerateRequestID()

	_, err := uuid.Parse(a.String())
	require.NoError(t, err)
	assert.NotEqual(t, a.String(), b.String())
}
