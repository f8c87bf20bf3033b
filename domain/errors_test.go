package domain

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOfWalksWrappedChain(t *testing.T) {
	inner := NewError(KindRateLimited, "provider said 429")
	wrapped := fmt.Errorf("calling provider: %w", inner)

	assert.Equal(t, KindRateLimited, KindOf(wrapped))
	assert.Equal(t, KindUnexpected, KindOf(errors.New("plain")))
}

func TestAsPipelineErrorPreservesKind(t *testing.T) {
	err := AsPipelineError("generating response", NewError(KindConnectionFailure, "dial tcp: refused"))

	var p *PipelineError
	require.ErrorAs(t, err, &p)
	assert.Equal(t, KindConnectionFailure, p.Kind)
	assert.Contains(t, p.Message, "generating response")

	// wrapping twice keeps the original
	again := AsPipelineError("outer", err)
	assert.Same(t, err, again)
	assert.Nil(t, AsPipelineError("stage", nil))
}

func TestKindHTTPStatusTaxonomy(t *testing.T) {
	assert.Equal(t, http.StatusTooManyRequests, KindRateLimited.HTTPStatus())
	assert.Equal(t, http.StatusServiceUnavailable, KindConnectionFailure.HTTPStatus())
	assert.Equal(t, http.StatusBadRequest, KindUnknownStrategy.HTTPStatus())
	assert.Equal(t, http.StatusInternalServerError, KindProviderError.HTTPStatus())
	assert.Equal(t, http.StatusInternalServerError, KindMalformedOutput.HTTPStatus())
}

func TestRetryableKinds(t *testing.T) {
	assert.True(t, KindRateLimited.Retryable())
	assert.True(t, KindConnectionFailure.Retryable())
	assert.False(t, KindProviderError.Retryable())
	assert.False(t, KindUnknownStrategy.Retryable())
}
